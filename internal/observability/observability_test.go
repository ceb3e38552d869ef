package observability

import (
	"context"
	"log/slog"
	"testing"

	"go.opentelemetry.io/contrib/processors/minsev"
)

func TestInstrument(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	tests := []struct {
		format  string
		wantErr bool
	}{
		{format: ""},
		{format: FormatText},
		{format: "JSON"},
		{format: FormatOTel},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
			t.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "")

			err := Instrument(slog.LevelDebug, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Instrument() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err := Shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestNewExporter_UnsupportedProtocol(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_PROTOCOL", "carrier-pigeon")

	if _, err := newExporter(context.Background()); err == nil {
		t.Fatal("newExporter() expected error, got nil")
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  minsev.Severity
	}{
		{slog.LevelDebug, minsev.SeverityDebug},
		{slog.LevelInfo, minsev.SeverityInfo},
		{slog.LevelWarn, minsev.SeverityWarn},
		{slog.LevelError, minsev.SeverityError},
		{slog.LevelError + 4, minsev.SeverityError},
	}

	for _, tt := range tests {
		if got := severity(tt.level); got != tt.want {
			t.Errorf("severity(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
