package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
)

func exportCommand() *cli.Command {
	formats := make([]string, 0, len(garmin.ExportFormats()))
	for _, f := range garmin.ExportFormats() {
		formats = append(formats, string(f))
	}

	return &cli.Command{
		Name:      "export",
		Usage:     "download an activity file",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "export format (" + strings.Join(formats, "|") + ")",
				Value: string(garmin.ExportGPX),
			},
			&cli.StringFlag{
				Name:  "export--dir",
				Usage: "directory to save the file in; without it the file is written to stdout",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ref, err := activityArg(cmd)
			if err != nil {
				return err
			}
			format, err := garmin.ParseExportFormat(cmd.String("format"))
			if err != nil {
				return err
			}

			application, cleanup, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			client, err := application.Authenticated(ctx)
			if err != nil {
				return err
			}

			dir := application.Config().Export.Dir
			data, err := client.DownloadOriginalActivityData(ctx, ref, dir, format)
			if err != nil {
				return err
			}

			if dir == "" {
				_, err = cmd.Root().Writer.Write(data)
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, filepath.Join(dir, garmin.ExportFileName(ref.ActivityID, format)))
			return err
		},
	}
}
