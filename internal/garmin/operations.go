package garmin

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/florianilch/garmin-connect-go/internal/endpoint"
)

const (
	lifetimeStartDate = "1970-01-01"
	dateLayout        = "2006-01-02"
)

// ActivitiesQuery filters GetActivities. Nil or empty fields are not sent;
// the provider validates ranges.
type ActivitiesQuery struct {
	Start           *int
	Limit           *int
	ActivityType    string
	SubActivityType string
}

func (q ActivitiesQuery) values() url.Values {
	v := url.Values{}
	if q.Start != nil {
		v.Set("start", strconv.Itoa(*q.Start))
	}
	if q.Limit != nil {
		v.Set("limit", strconv.Itoa(*q.Limit))
	}
	if q.ActivityType != "" {
		v.Set("activityType", q.ActivityType)
	}
	if q.SubActivityType != "" {
		v.Set("subActivityType", q.SubActivityType)
	}
	return v
}

// ActivityRef identifies an activity.
type ActivityRef struct {
	ActivityID int64
}

// WorkoutRef identifies a workout.
type WorkoutRef struct {
	WorkoutID string
}

// GetUserSettings returns the user settings.
func (c *Client) GetUserSettings(ctx context.Context) (*UserSettings, error) {
	target, err := c.resolver.URL(endpoint.UserSettings)
	if err != nil {
		return nil, err
	}
	var out UserSettings
	if err := c.dispatcher.Get(ctx, target, RequestOptions{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUserProfile returns the social profile.
func (c *Client) GetUserProfile(ctx context.Context) (*SocialProfile, error) {
	target, err := c.resolver.URL(endpoint.UserProfile)
	if err != nil {
		return nil, err
	}
	var out SocialProfile
	if err := c.dispatcher.Get(ctx, target, RequestOptions{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetActivities lists activities, newest first.
func (c *Client) GetActivities(ctx context.Context, q ActivitiesQuery) ([]Activity, error) {
	target, err := c.resolver.URL(endpoint.Activities)
	if err != nil {
		return nil, err
	}
	var out []Activity
	if err := c.dispatcher.Get(ctx, target, RequestOptions{Query: q.values()}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetActivity returns a single activity.
func (c *Client) GetActivity(ctx context.Context, ref ActivityRef) (*Activity, error) {
	if ref.ActivityID == 0 {
		return nil, invalidArgument("activityId", "missing activityId")
	}
	target, err := c.resolver.URLWithID(endpoint.Activity, strconv.FormatInt(ref.ActivityID, 10))
	if err != nil {
		return nil, err
	}
	var out Activity
	if err := c.dispatcher.Get(ctx, target, RequestOptions{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CountActivities returns the lifetime activity aggregation up to today.
func (c *Client) CountActivities(ctx context.Context) (*ActivityCount, error) {
	target, err := c.resolver.URL(endpoint.StatActivities)
	if err != nil {
		return nil, err
	}
	query := url.Values{
		"aggregation": {"lifetime"},
		"startDate":   {lifetimeStartDate},
		"endDate":     {c.now().Format(dateLayout)},
		"metric":      {"duration"},
	}
	var out ActivityCount
	if err := c.dispatcher.Get(ctx, target, RequestOptions{Query: query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadOriginalActivityData downloads an activity in the given format.
// When dir is non-empty the bytes are also written to <dir>/<id>.<format>.
func (c *Client) DownloadOriginalActivityData(ctx context.Context, ref ActivityRef, dir string, format ExportFormat) ([]byte, error) {
	if ref.ActivityID == 0 {
		return nil, invalidArgument("activityId", "missing activityId")
	}
	binding, ok := exportFormats[ExportFormat(strings.ToLower(string(format)))]
	if !ok {
		return nil, invalidArgument("format", "unsupported export format "+strconv.Quote(string(format)))
	}

	target, err := c.resolver.URLWithID(binding.resource, strconv.FormatInt(ref.ActivityID, 10))
	if err != nil {
		return nil, err
	}
	data, err := c.dispatcher.DownloadBinary(ctx, target, RequestOptions{ResponseType: binding.responseType})
	if err != nil {
		return nil, err
	}

	if dir != "" {
		path, err := saveExport(c.fs, dir, ref.ActivityID, ExportFormat(strings.ToLower(string(format))), data)
		if err != nil {
			return data, err
		}
		slog.InfoContext(ctx, "saved activity export", "activity_id", ref.ActivityID, "format", string(format), "path", path)
	}
	return data, nil
}

// GetWorkouts lists workouts.
func (c *Client) GetWorkouts(ctx context.Context, start, limit int) ([]Workout, error) {
	target, err := c.resolver.URL(endpoint.Workouts)
	if err != nil {
		return nil, err
	}
	query := url.Values{
		"start": {strconv.Itoa(start)},
		"limit": {strconv.Itoa(limit)},
	}
	var out []Workout
	if err := c.dispatcher.Get(ctx, target, RequestOptions{Query: query}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetWorkoutDetail returns a workout with its steps.
func (c *Client) GetWorkoutDetail(ctx context.Context, ref WorkoutRef) (*WorkoutDetail, error) {
	if strings.TrimSpace(ref.WorkoutID) == "" {
		return nil, invalidArgument("workoutId", "missing workoutId")
	}
	target, err := c.resolver.URLWithID(endpoint.Workout, ref.WorkoutID)
	if err != nil {
		return nil, err
	}
	var out WorkoutDetail
	if err := c.dispatcher.Get(ctx, target, RequestOptions{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
