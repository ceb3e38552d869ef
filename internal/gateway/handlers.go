package gateway

import (
	"net/http"
	"strconv"

	"github.com/oapi-codegen/runtime"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
)

// Defaults for /v1/workouts when the caller omits paging.
const (
	defaultWorkoutsStart = 0
	defaultWorkoutsLimit = 20
)

// exportContentTypes are the media types served for each export format.
var exportContentTypes = map[garmin.ExportFormat]string{
	garmin.ExportZip: "application/zip",
	garmin.ExportGPX: "application/gpx+xml",
	garmin.ExportTCX: "application/vnd.garmin.tcx+xml",
	garmin.ExportKML: "application/vnd.google-earth.kml+xml",
}

func (g *Gateway) handleUserSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := g.client.GetUserSettings(r.Context())
	if err != nil {
		writeClientError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, settings, http.StatusOK)
}

func (g *Gateway) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := g.client.GetUserProfile(r.Context())
	if err != nil {
		writeClientError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, profile, http.StatusOK)
}

func (g *Gateway) handleActivities(w http.ResponseWriter, r *http.Request) {
	var (
		q     garmin.ActivitiesQuery
		query = r.URL.Query()
	)
	if err := runtime.BindQueryParameter("form", true, false, "start", query, &q.Start); err != nil {
		writeClientError(r.Context(), w, invalidParameter("start", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &q.Limit); err != nil {
		writeClientError(r.Context(), w, invalidParameter("limit", err))
		return
	}
	q.ActivityType = query.Get("activityType")
	q.SubActivityType = query.Get("subActivityType")

	activities, err := g.client.GetActivities(r.Context(), q)
	if err != nil {
		writeClientError(r.Context(), w, err)
		return
	}
	if activities == nil {
		activities = []garmin.Activity{}
	}
	writeJSON(r.Context(), w, activities, http.StatusOK)
}

func (g *Gateway) handleActivityCount(w http.ResponseWriter, r *http.Request) {
	count, err := g.client.CountActivities(r.Context())
	if err != nil {
		writeClientError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, count, http.StatusOK)
}

func (g *Gateway) handleActivity(w http.ResponseWriter, r *http.Request) {
	ref, err := activityRef(r)
	if err != nil {
		writeClientError(r.Context(), w, err)
		return
	}

	activity, err := g.client.GetActivity(r.Context(), ref)
	if err != nil {
		writeClientError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, activity, http.StatusOK)
}

func (g *Gateway) handleActivityExport(w http.ResponseWriter, r *http.Request) {
	ref, err := activityRef(r)
	if err != nil {
		writeClientError(r.Context(), w, err)
		return
	}
	format, err := garmin.ParseExportFormat(r.PathValue("format"))
	if err != nil {
		writeClientError(r.Context(), w, err)
		return
	}

	data, err := g.client.DownloadOriginalActivityData(r.Context(), ref, "", format)
	if err != nil {
		writeClientError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", exportContentTypes[format])
	w.Header().Set("Content-Disposition", `attachment; filename="`+garmin.ExportFileName(ref.ActivityID, format)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (g *Gateway) handleWorkouts(w http.ResponseWriter, r *http.Request) {
	start, limit := defaultWorkoutsStart, defaultWorkoutsLimit
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "start", query, &start); err != nil {
		writeClientError(r.Context(), w, invalidParameter("start", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeClientError(r.Context(), w, invalidParameter("limit", err))
		return
	}

	workouts, err := g.client.GetWorkouts(r.Context(), start, limit)
	if err != nil {
		writeClientError(r.Context(), w, err)
		return
	}
	if workouts == nil {
		workouts = []garmin.Workout{}
	}
	writeJSON(r.Context(), w, workouts, http.StatusOK)
}

func (g *Gateway) handleWorkout(w http.ResponseWriter, r *http.Request) {
	detail, err := g.client.GetWorkoutDetail(r.Context(), garmin.WorkoutRef{WorkoutID: r.PathValue("id")})
	if err != nil {
		writeClientError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, detail, http.StatusOK)
}

// activityRef binds the {id} path segment.
func activityRef(r *http.Request) (garmin.ActivityRef, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", r.PathValue("id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return garmin.ActivityRef{}, invalidParameter("id", err)
	}
	return garmin.ActivityRef{ActivityID: id}, nil
}

func invalidParameter(name string, err error) error {
	return &garmin.InvalidArgumentError{Argument: name, Reason: err.Error()}
}
