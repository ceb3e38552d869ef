// Package observability configures the process-wide slog logger.
//
// The text and json formats write to stderr. The otel format bridges slog
// records into an OpenTelemetry log pipeline, exporting over OTLP when an
// endpoint is configured through the standard OTEL_EXPORTER_OTLP_* variables
// and to stdout otherwise.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "github.com/florianilch/garmin-connect-go"

// Formats accepted by Instrument.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatOTel = "otel"
)

var (
	mu       sync.Mutex
	provider *sdklog.LoggerProvider
)

// Instrument installs the default slog logger for the given level and format.
func Instrument(level slog.Level, format string) error {
	var handler slog.Handler

	switch strings.ToLower(format) {
	case "", FormatText:
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	case FormatJSON:
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	case FormatOTel:
		lp, err := newLoggerProvider(context.Background(), level)
		if err != nil {
			return fmt.Errorf("failed to create otel logger provider: %w", err)
		}
		global.SetLoggerProvider(lp)

		mu.Lock()
		provider = lp
		mu.Unlock()

		handler = otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(lp))
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}

	slog.SetDefault(slog.New(handler))

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Warn("opentelemetry error", "error", err)
	}))

	return nil
}

// Shutdown flushes buffered log records. It is a no-op unless the otel format
// is active.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	lp := provider
	provider = nil
	mu.Unlock()

	if lp == nil {
		return nil
	}
	return lp.Shutdown(ctx)
}

func newLoggerProvider(ctx context.Context, level slog.Level) (*sdklog.LoggerProvider, error) {
	exporter, err := newExporter(ctx)
	if err != nil {
		return nil, err
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level))
	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor)), nil
}

// newExporter picks the exporter from the standard OTLP environment variables.
func newExporter(ctx context.Context) (sdklog.Exporter, error) {
	if firstEnv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return stdoutlog.New()
	}

	switch protocol := firstEnv("OTEL_EXPORTER_OTLP_LOGS_PROTOCOL", "OTEL_EXPORTER_OTLP_PROTOCOL"); protocol {
	case "grpc":
		return otlploggrpc.New(ctx)
	case "", "http/protobuf":
		return otlploghttp.New(ctx)
	default:
		return nil, errors.New("unsupported OTLP protocol: " + protocol)
	}
}

func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
