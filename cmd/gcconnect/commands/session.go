package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/garmin-connect-go/internal/tokenstore"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in with the configured credentials and store the session",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, cleanup, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := application.Session().Login(ctx, "", ""); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			_, err = fmt.Fprintf(cmd.Root().Writer, "logged in as %s\n", application.Config().Garmin.Username)
			return err
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "manage the stored session token",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "print the session token pair as JSON",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					application, cleanup, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					defer cleanup()

					client, err := application.Authenticated(ctx)
					if err != nil {
						return err
					}
					pair, err := client.ExportToken()
					if err != nil {
						return err
					}
					data, err := tokenstore.Encode(pair)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.Root().Writer, string(data))
					return err
				},
			},
			{
				Name:      "import",
				Usage:     "load a token pair exported earlier and store it",
				ArgsUsage: "<file|->",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					source := cmd.Args().First()
					if source == "" {
						return fmt.Errorf("missing token file (use - for stdin)")
					}

					data, err := readSource(source)
					if err != nil {
						return err
					}
					pair, err := tokenstore.Decode(data)
					if err != nil {
						return err
					}

					application, cleanup, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					defer cleanup()

					if err := application.Session().Import(ctx, pair); err != nil {
						return fmt.Errorf("failed to import token: %w", err)
					}
					_, err = fmt.Fprintln(cmd.Root().Writer, "token imported")
					return err
				},
			},
		},
	}
}

func readSource(source string) ([]byte, error) {
	if source == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(source)
}
