package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
	"github.com/florianilch/garmin-connect-go/internal/gateway"
	"github.com/florianilch/garmin-connect-go/internal/transport"
)

// App wires the Garmin client, its persisted session and the local gateway.
type App struct {
	cfg     *Config
	client  *garmin.Client
	session *PersistentSession
}

// New creates a new App instance. No network or storage I/O is performed.
func New(cfg *Config, opts ...garmin.Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}

	tr, err := transport.NewHTTP(cfg.TransportOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	// Caller options come last so tests can replace the transport
	client, err := garmin.New(clientCfg, append([]garmin.Option{garmin.WithTransport(tr)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	store, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	session, err := NewPersistentSession(client, store)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &App{
		cfg:     cfg,
		client:  client,
		session: session,
	}, nil
}

// Client returns the Garmin client.
func (a *App) Client() *garmin.Client {
	return a.client
}

// Session returns the persistent session.
func (a *App) Session() *PersistentSession {
	return a.session
}

// Config returns the validated configuration.
func (a *App) Config() *Config {
	return a.cfg
}

// Authenticated returns the client after restoring or establishing a session.
func (a *App) Authenticated(ctx context.Context) (*garmin.Client, error) {
	if err := a.session.Ensure(ctx); err != nil {
		return nil, err
	}
	return a.client, nil
}

// Start starts the gateway and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	gw, err := gateway.New(a.client, gateway.WithSessionGuard(a.session.Ensure))
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting gateway", "address", address)
	gatewayErrCh, err := gw.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("gateway startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, gw.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-gatewayErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "gateway runtime error", "error", err)
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", gw.Addr(), "domain", string(a.client.Domain()))

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	a.session.Close()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
