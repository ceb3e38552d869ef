package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/garmin-connect-go/internal/app"
	"github.com/florianilch/garmin-connect-go/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "gcconnect",
		Usage: "Garmin Connect client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "garmin--domain",
				Usage: "Garmin domain (garmin.com|garmin.cn)",
				Value: app.DefaultConfigDomain,
			},
			&cli.StringFlag{
				Name:  "garmin--username",
				Usage: "Garmin account email",
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "token storage (file|env|keyring)",
				Value: string(app.DefaultConfigAuthStorage),
			},
			&cli.StringFlag{
				Name:  "auth--file",
				Usage: "token file for file storage",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			tokenCommand(),
			settingsCommand(),
			profileCommand(),
			activitiesCommand(),
			activityCommand(),
			countCommand(),
			workoutsCommand(),
			workoutCommand(),
			exportCommand(),
			serveCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

// setup loads the configuration, installs logging and creates the app.
// The returned cleanup flushes buffered telemetry.
func setup(ctx context.Context, cmd *cli.Command) (*app.App, func(), error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ, terminalPrompt(cmd.Root().ErrWriter))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	if err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat)); err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}
	cleanup := func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(flushCtx); err != nil {
			slog.ErrorContext(ctx, "failed to flush telemetry", "error", err)
		}
	}

	application, err := app.New(cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create app: %w", err)
	}

	return application, cleanup, nil
}

// terminalPrompt reads the password without echo when stdin is a terminal.
func terminalPrompt(w io.Writer) passwordPrompt {
	return func(username string) (string, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", nil
		}
		if w == nil {
			w = os.Stderr
		}

		fmt.Fprintf(w, "Password for %s: ", username)
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		if len(password) == 0 {
			return "", errors.New("empty password")
		}
		return string(password), nil
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the client operations as a local JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	application, cleanup, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
