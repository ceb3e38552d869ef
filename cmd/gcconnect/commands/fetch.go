package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
)

// fetchAction runs fn with an authenticated client and prints its result as JSON.
func fetchAction(fn func(ctx context.Context, cmd *cli.Command, client *garmin.Client) (any, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		application, cleanup, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		client, err := application.Authenticated(ctx)
		if err != nil {
			return err
		}

		result, err := fn(ctx, cmd, client)
		if err != nil {
			return err
		}
		return printJSON(cmd.Root().Writer, result)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "show user settings",
		Action: fetchAction(func(ctx context.Context, _ *cli.Command, client *garmin.Client) (any, error) {
			return client.GetUserSettings(ctx)
		}),
	}
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "show the social profile",
		Action: fetchAction(func(ctx context.Context, _ *cli.Command, client *garmin.Client) (any, error) {
			return client.GetUserProfile(ctx)
		}),
	}
}

func activitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "activities",
		Usage: "list activities",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "start", Usage: "offset of the first activity"},
			&cli.IntFlag{Name: "limit", Usage: "maximum number of activities"},
			&cli.StringFlag{Name: "type", Usage: "activity type key (e.g. running)"},
			&cli.StringFlag{Name: "subtype", Usage: "activity subtype key"},
		},
		Action: fetchAction(func(ctx context.Context, cmd *cli.Command, client *garmin.Client) (any, error) {
			q := garmin.ActivitiesQuery{
				ActivityType:    cmd.String("type"),
				SubActivityType: cmd.String("subtype"),
			}
			if cmd.IsSet("start") {
				start := cmd.Int("start")
				q.Start = &start
			}
			if cmd.IsSet("limit") {
				limit := cmd.Int("limit")
				q.Limit = &limit
			}
			return client.GetActivities(ctx, q)
		}),
	}
}

func activityCommand() *cli.Command {
	return &cli.Command{
		Name:      "activity",
		Usage:     "show one activity",
		ArgsUsage: "<id>",
		Action: fetchAction(func(ctx context.Context, cmd *cli.Command, client *garmin.Client) (any, error) {
			ref, err := activityArg(cmd)
			if err != nil {
				return nil, err
			}
			return client.GetActivity(ctx, ref)
		}),
	}
}

func countCommand() *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "show lifetime activity totals",
		Action: fetchAction(func(ctx context.Context, _ *cli.Command, client *garmin.Client) (any, error) {
			return client.CountActivities(ctx)
		}),
	}
}

func workoutsCommand() *cli.Command {
	return &cli.Command{
		Name:  "workouts",
		Usage: "list workouts",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "start", Usage: "offset of the first workout"},
			&cli.IntFlag{Name: "limit", Usage: "maximum number of workouts", Value: 20},
		},
		Action: fetchAction(func(ctx context.Context, cmd *cli.Command, client *garmin.Client) (any, error) {
			return client.GetWorkouts(ctx, cmd.Int("start"), cmd.Int("limit"))
		}),
	}
}

func workoutCommand() *cli.Command {
	return &cli.Command{
		Name:      "workout",
		Usage:     "show one workout with its steps",
		ArgsUsage: "<id>",
		Action: fetchAction(func(ctx context.Context, cmd *cli.Command, client *garmin.Client) (any, error) {
			return client.GetWorkoutDetail(ctx, garmin.WorkoutRef{WorkoutID: cmd.Args().First()})
		}),
	}
}

// activityArg parses the first positional argument as an activity id.
func activityArg(cmd *cli.Command) (garmin.ActivityRef, error) {
	raw := cmd.Args().First()
	if raw == "" {
		return garmin.ActivityRef{}, fmt.Errorf("missing activity id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return garmin.ActivityRef{}, fmt.Errorf("invalid activity id %q: %w", raw, err)
	}
	return garmin.ActivityRef{ActivityID: id}, nil
}
