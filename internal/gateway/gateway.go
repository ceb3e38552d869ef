// Package gateway serves the Garmin client operations as a local JSON API.
//
// Every request first makes sure the client holds a session (restored from
// storage or obtained by logging in), then calls one typed operation and maps
// its error to an HTTP status.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
)

// Client is the set of operations exposed by the gateway.
type Client interface {
	GetUserSettings(ctx context.Context) (*garmin.UserSettings, error)
	GetUserProfile(ctx context.Context) (*garmin.SocialProfile, error)
	GetActivities(ctx context.Context, q garmin.ActivitiesQuery) ([]garmin.Activity, error)
	GetActivity(ctx context.Context, ref garmin.ActivityRef) (*garmin.Activity, error)
	CountActivities(ctx context.Context) (*garmin.ActivityCount, error)
	DownloadOriginalActivityData(ctx context.Context, ref garmin.ActivityRef, dir string, format garmin.ExportFormat) ([]byte, error)
	GetWorkouts(ctx context.Context, start, limit int) ([]garmin.Workout, error)
	GetWorkoutDetail(ctx context.Context, ref garmin.WorkoutRef) (*garmin.WorkoutDetail, error)
}

// Compile-time check that *garmin.Client satisfies Client
var _ Client = (*garmin.Client)(nil)

// SessionGuard makes sure a session exists before an operation runs.
type SessionGuard func(ctx context.Context) error

// Option configures a Gateway.
type Option func(*Gateway)

// WithSessionGuard runs guard before every operation.
func WithSessionGuard(guard SessionGuard) Option {
	return func(g *Gateway) {
		g.guard = guard
	}
}

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// Gateway is the local HTTP server.
type Gateway struct {
	client Client
	guard  SessionGuard
	logger *slog.Logger

	mux    *http.ServeMux
	server *http.Server
	addr   net.Addr
}

// Compile-time check that Gateway implements http.Handler
var _ http.Handler = (*Gateway)(nil)

// New creates a Gateway for client.
func New(client Client, opts ...Option) (*Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("missing client")
	}

	g := &Gateway{
		client: client,
		logger: slog.Default(),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.routes()
	return g, nil
}

func (g *Gateway) routes() {
	handle := func(pattern string, h http.HandlerFunc) {
		g.mux.Handle(pattern, applyMiddlewares(h,
			Logging(g.logger),
			RequestID,
			Recovery,
			g.requireSession,
		))
	}

	handle("GET /v1/user/settings", g.handleUserSettings)
	handle("GET /v1/user/profile", g.handleUserProfile)
	handle("GET /v1/activities", g.handleActivities)
	handle("GET /v1/activities/count", g.handleActivityCount)
	handle("GET /v1/activities/{id}", g.handleActivity)
	handle("GET /v1/activities/{id}/export/{format}", g.handleActivityExport)
	handle("GET /v1/workouts", g.handleWorkouts)
	handle("GET /v1/workouts/{id}", g.handleWorkout)
}

// ServeHTTP implements http.Handler interface
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (g *Gateway) Start(ctx context.Context, address string) (<-chan error, error) {
	// Startup phase: Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	g.addr = listener.Addr()
	g.server = &http.Server{
		Handler:      g,
		ReadTimeout:  30 * time.Second, // Inbound: Read entire client request
		WriteTimeout: 5 * time.Minute,  // Inbound: Write entire response, large exports included
		IdleTimeout:  90 * time.Second, // Inbound: Keep-alive wait for next request from client
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := g.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Addr returns the listening address once Start succeeded.
func (g *Gateway) Addr() string {
	if g.addr == nil {
		return ""
	}
	return g.addr.String()
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	if err := g.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = g.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
