package garmin

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/garmin-connect-go/internal/endpoint"
	"github.com/florianilch/garmin-connect-go/internal/transport"
)

func okHandler(body string) func(*transport.Request) (*transport.Response, error) {
	return func(*transport.Request) (*transport.Response, error) {
		return jsonResponse(http.StatusOK, body), nil
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds *Credentials
	}{
		{name: "nil credentials", creds: nil},
		{name: "missing username", creds: &Credentials{Password: "secret"}},
		{name: "missing password", creds: &Credentials{Username: "user@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(Config{Credentials: tt.creds}, WithTransport(&fakeTransport{}))
			require.ErrorIs(t, err, ErrCredentialsMissing)
			assert.Nil(t, client)
		})
	}
}

func TestNew_DefaultsToGlobalDomain(t *testing.T) {
	client := newTestClient(t, &fakeTransport{}, &fakeHandshake{})
	assert.Equal(t, endpoint.DomainGlobal, client.Domain())
}

func TestClient_OperationsRequireAuthentication(t *testing.T) {
	tr := &fakeTransport{handler: okHandler(`{}`)}
	client := newTestClient(t, tr, &fakeHandshake{})
	ctx := context.Background()

	_, err := client.GetUserSettings(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = client.GetActivities(ctx, ActivitiesQuery{})
	require.ErrorIs(t, err, ErrNotAuthenticated)

	err = client.Get(ctx, "/custom", nil, nil)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	assert.Zero(t, tr.count(), "no request may reach the transport without tokens")
}

func TestClient_ExportTokenBeforeLogin(t *testing.T) {
	client := newTestClient(t, &fakeTransport{}, &fakeHandshake{})

	_, err := client.ExportToken()
	require.ErrorIs(t, err, ErrTokenMissing)
	assert.False(t, client.IsAuthenticated())
}

func TestClient_LoadTokenRoundTrip(t *testing.T) {
	client := newTestClient(t, &fakeTransport{}, &fakeHandshake{})
	pair := testPair("loaded")

	client.LoadToken(pair.Exchange, pair.Access)

	got, err := client.ExportToken()
	require.NoError(t, err)
	assert.Equal(t, pair, got)
	assert.True(t, client.IsAuthenticated())
}

func TestClient_IncompletePairIsNotAuthenticated(t *testing.T) {
	pair := testPair("half")

	tests := []struct {
		name     string
		exchange ExchangeToken
		access   AccessToken
	}{
		{name: "access token missing", exchange: pair.Exchange},
		{name: "exchange token missing", access: pair.Access},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{handler: okHandler(`{}`)}
			client := newTestClient(t, tr, &fakeHandshake{})
			ctx := context.Background()

			client.LoadToken(tt.exchange, tt.access)
			assert.False(t, client.IsAuthenticated())

			_, err := client.ExportToken()
			require.ErrorIs(t, err, ErrTokenMissing)

			_, err = client.GetUserProfile(ctx)
			require.ErrorIs(t, err, ErrNotAuthenticated)

			_, err = client.DownloadOriginalActivityData(ctx, ActivityRef{ActivityID: 42}, "", ExportKML)
			require.ErrorIs(t, err, ErrNotAuthenticated)

			assert.Zero(t, tr.count())
		})
	}
}

func TestClient_OffUnknownSubscription(t *testing.T) {
	client := newTestClient(t, &fakeTransport{}, &fakeHandshake{})

	fired := 0
	sub := client.On(EventSessionChange, func() { fired++ })

	client.Off(EventSessionChange, sub+999)
	client.Off(Event(7), sub)

	_, err := client.Login(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestClient_LoadTokenDoesNotEmit(t *testing.T) {
	client := newTestClient(t, &fakeTransport{}, &fakeHandshake{})
	fired := 0
	client.On(EventSessionChange, func() { fired++ })

	pair := testPair("loaded")
	client.LoadToken(pair.Exchange, pair.Access)

	assert.Zero(t, fired)
}

func TestClient_Login(t *testing.T) {
	hs := &fakeHandshake{}
	client := newTestClient(t, &fakeTransport{}, hs)

	var order []string
	client.On(EventSessionChange, func() { order = append(order, "first") })
	client.On(EventSessionChange, func() { panic("listener failure") })
	removed := client.On(EventSessionChange, func() { order = append(order, "removed") })
	client.On(EventSessionChange, func() { order = append(order, "last") })
	client.Off(EventSessionChange, removed)

	got, err := client.Login(context.Background(), "", "")
	require.NoError(t, err)
	assert.Same(t, client, got)

	assert.Equal(t, []string{"first", "last"}, order)
	assert.Equal(t, 1, hs.count())

	pair, err := client.ExportToken()
	require.NoError(t, err)
	assert.Equal(t, "access-1", pair.Access.AccessToken)
}

func TestClient_LoginReplacesCredentials(t *testing.T) {
	hs := &fakeHandshake{}
	client := newTestClient(t, &fakeTransport{}, hs)
	ctx := context.Background()

	_, err := client.Login(ctx, "other@example.com", "other-secret")
	require.NoError(t, err)

	// One half alone keeps the stored credentials.
	_, err = client.Login(ctx, "ignored@example.com", "")
	require.NoError(t, err)

	require.Len(t, hs.creds, 2)
	assert.Equal(t, Credentials{Username: "other@example.com", Password: "other-secret"}, hs.creds[0])
	assert.Equal(t, hs.creds[0], hs.creds[1])
}

func TestClient_LoginFailureKeepsSession(t *testing.T) {
	hs := &fakeHandshake{err: errors.New("boom")}
	client := newTestClient(t, &fakeTransport{}, hs)

	previous := testPair("previous")
	client.LoadToken(previous.Exchange, previous.Access)

	fired := 0
	client.On(EventSessionChange, func() { fired++ })

	_, err := client.Login(context.Background(), "", "")

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, AuthFailureUnexpected, authErr.Category)
	assert.Zero(t, fired)

	got, err := client.ExportToken()
	require.NoError(t, err)
	assert.Equal(t, previous, got)
}

func TestClient_InvalidArgumentsFailBeforeNetwork(t *testing.T) {
	tr := &fakeTransport{handler: okHandler(`{}`)}
	client := newTestClient(t, tr, &fakeHandshake{})
	pair := testPair("valid")
	client.LoadToken(pair.Exchange, pair.Access)
	ctx := context.Background()

	_, err := client.GetActivity(ctx, ActivityRef{})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = client.GetWorkoutDetail(ctx, WorkoutRef{WorkoutID: "  "})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = client.DownloadOriginalActivityData(ctx, ActivityRef{}, "", ExportGPX)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = client.DownloadOriginalActivityData(ctx, ActivityRef{ActivityID: 42}, "", ExportFormat("csv"))
	var argErr *InvalidArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "format", argErr.Argument)

	assert.Zero(t, tr.count())
}

func TestClient_RetriesOnceAfterExpiry(t *testing.T) {
	tr := &fakeTransport{handler: func(req *transport.Request) (*transport.Response, error) {
		if req.Header.Get("Authorization") == "Bearer stale" {
			return jsonResponse(http.StatusUnauthorized, `{}`), nil
		}
		return jsonResponse(http.StatusOK, `{"id": 7, "userData": {"gender": "FEMALE"}}`), nil
	}}
	hs := &fakeHandshake{}
	client := newTestClient(t, tr, hs)

	stale := testPair("stale")
	client.LoadToken(stale.Exchange, stale.Access)

	fired := 0
	client.On(EventSessionChange, func() { fired++ })

	settings, err := client.GetUserSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), settings.ID)
	assert.Equal(t, "FEMALE", settings.UserData.Gender)

	assert.Equal(t, 2, tr.count())
	assert.Equal(t, 1, hs.count())
	assert.Equal(t, 1, fired)

	reqs := tr.requests()
	assert.Equal(t, "Bearer access-1", reqs[1].Header.Get("Authorization"))
}

func TestClient_ExpiryAfterReauthentication(t *testing.T) {
	tr := &fakeTransport{handler: func(*transport.Request) (*transport.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{}`), nil
	}}
	hs := &fakeHandshake{}
	client := newTestClient(t, tr, hs)
	pair := testPair("stale")
	client.LoadToken(pair.Exchange, pair.Access)

	_, err := client.GetWorkouts(context.Background(), 0, 10)
	require.ErrorIs(t, err, ErrSessionExpired)

	assert.Equal(t, 2, tr.count(), "the call must be retried exactly once")
	assert.Equal(t, 1, hs.count())
}

func TestClient_ReauthenticationFailure(t *testing.T) {
	tr := &fakeTransport{handler: func(*transport.Request) (*transport.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{}`), nil
	}}
	hs := &fakeHandshake{err: &AuthenticationError{Category: AuthFailureInvalidCredentials}}
	client := newTestClient(t, tr, hs)
	pair := testPair("stale")
	client.LoadToken(pair.Exchange, pair.Access)

	_, err := client.GetUserProfile(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, AuthFailureInvalidCredentials, authErr.Category)
	assert.Equal(t, 1, tr.count())

	got, err := client.ExportToken()
	require.NoError(t, err)
	assert.Equal(t, pair, got)
}

func TestClient_CustomExpiryPredicate(t *testing.T) {
	tr := &fakeTransport{handler: func(req *transport.Request) (*transport.Response, error) {
		if req.Header.Get("Authorization") == "Bearer stale" {
			return jsonResponse(http.StatusForbidden, `{}`), nil
		}
		return jsonResponse(http.StatusOK, `[]`), nil
	}}
	hs := &fakeHandshake{}
	client, err := New(Config{
		Credentials: &Credentials{Username: "user@example.com", Password: "secret"},
		IsExpired:   ExpiredOnStatus(http.StatusForbidden),
	}, WithTransport(tr), WithHandshake(hs))
	require.NoError(t, err)
	pair := testPair("stale")
	client.LoadToken(pair.Exchange, pair.Access)

	_, err = client.GetActivities(context.Background(), ActivitiesQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, hs.count())
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		handler func(*transport.Request) (*transport.Response, error)
		check   func(t *testing.T, err error)
	}{
		{
			name: "upstream status",
			handler: func(*transport.Request) (*transport.Response, error) {
				return jsonResponse(http.StatusNotFound, `{"message":"not found"}`), nil
			},
			check: func(t *testing.T, err error) {
				var reqErr *RequestError
				require.ErrorAs(t, err, &reqErr)
				assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
				assert.JSONEq(t, `{"message":"not found"}`, string(reqErr.Body))
			},
		},
		{
			name: "network failure",
			handler: func(*transport.Request) (*transport.Response, error) {
				return nil, errNetwork
			},
			check: func(t *testing.T, err error) {
				var trErr *TransportError
				require.ErrorAs(t, err, &trErr)
				assert.ErrorIs(t, err, errNetwork)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{handler: tt.handler}
			hs := &fakeHandshake{}
			client := newTestClient(t, tr, hs)
			pair := testPair("valid")
			client.LoadToken(pair.Exchange, pair.Access)

			_, err := client.GetActivity(context.Background(), ActivityRef{ActivityID: 99})
			tt.check(t, err)
			assert.Equal(t, 1, tr.count())
			assert.Zero(t, hs.count(), "only expiry triggers re-authentication")
		})
	}
}

func TestClient_GetActivitiesSendsOnlySetParameters(t *testing.T) {
	tr := &fakeTransport{handler: okHandler(`[{"activityId": 1, "activityName": "Morning Run"}]`)}
	client := newTestClient(t, tr, &fakeHandshake{})
	pair := testPair("valid")
	client.LoadToken(pair.Exchange, pair.Access)

	limit := 5
	activities, err := client.GetActivities(context.Background(), ActivitiesQuery{Limit: &limit, ActivityType: "running"})
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "Morning Run", activities[0].ActivityName)

	req := tr.requests()[0]
	assert.Equal(t, "https://connectapi.garmin.com/activitylist-service/activities/search/activities", req.URL)
	assert.Equal(t, "5", req.Query.Get("limit"))
	assert.Equal(t, "running", req.Query.Get("activityType"))
	assert.False(t, req.Query.Has("start"))
	assert.False(t, req.Query.Has("subActivityType"))
}

func TestClient_CountActivities(t *testing.T) {
	tr := &fakeTransport{handler: okHandler(`{"countOfActivities": 321, "date": "2024-03-09", "stats": {"running": {"count": 200}}}`)}
	client := newTestClient(t, tr, &fakeHandshake{})
	pair := testPair("valid")
	client.LoadToken(pair.Exchange, pair.Access)

	count, err := client.CountActivities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(321), count.CountOfActivities)
	assert.Contains(t, count.Stats, "running")

	req := tr.requests()[0]
	assert.Equal(t, "https://connectapi.garmin.com/fitnessstats-service/activity", req.URL)
	assert.Equal(t, "lifetime", req.Query.Get("aggregation"))
	assert.Equal(t, "1970-01-01", req.Query.Get("startDate"))
	assert.Equal(t, "2024-03-09", req.Query.Get("endDate"))
	assert.Equal(t, "duration", req.Query.Get("metric"))
}

func TestClient_GetWorkoutDetail(t *testing.T) {
	tr := &fakeTransport{handler: okHandler(`{"workoutId": 55, "workoutName": "Intervals", "poolLength": 25}`)}
	client := newTestClient(t, tr, &fakeHandshake{})
	pair := testPair("valid")
	client.LoadToken(pair.Exchange, pair.Access)

	detail, err := client.GetWorkoutDetail(context.Background(), WorkoutRef{WorkoutID: "55"})
	require.NoError(t, err)
	assert.Equal(t, int64(55), detail.WorkoutID)
	assert.Equal(t, "Intervals", detail.WorkoutName)
	assert.InDelta(t, 25.0, detail.PoolLength, 0.001)
	assert.Equal(t, "https://connectapi.garmin.com/workout-service/workout/55", tr.requests()[0].URL)
}

type memFS struct {
	mu    sync.Mutex
	dirs  []string
	files map[string][]byte
}

func (m *memFS) WriteFile(path string, data []byte, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *memFS) MkdirAll(path string, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs = append(m.dirs, path)
	return nil
}

func TestClient_DownloadOriginalActivityData(t *testing.T) {
	archive := []byte{'P', 'K', 0x03, 0x04, 0x00, 0xff}

	tests := []struct {
		name         string
		format       ExportFormat
		body         []byte
		wantURL      string
		wantResponse transport.ResponseType
	}{
		{
			name:         "zip is binary",
			format:       ExportZip,
			body:         archive,
			wantURL:      "https://connectapi.garmin.com/download-service/files/activity/42",
			wantResponse: transport.ResponseBinary,
		},
		{
			name:         "gpx is text",
			format:       ExportGPX,
			body:         []byte(`<?xml version="1.0"?><gpx></gpx>`),
			wantURL:      "https://connectapi.garmin.com/download-service/export/gpx/activity/42",
			wantResponse: transport.ResponseText,
		},
		{
			name:         "tcx is text",
			format:       ExportTCX,
			body:         []byte(`<TrainingCenterDatabase/>`),
			wantURL:      "https://connectapi.garmin.com/download-service/export/tcx/activity/42",
			wantResponse: transport.ResponseText,
		},
		{
			name:         "kml is text",
			format:       ExportKML,
			body:         []byte(`<kml xmlns="http://www.opengis.net/kml/2.2"/>`),
			wantURL:      "https://connectapi.garmin.com/download-service/export/kml/activity/42",
			wantResponse: transport.ResponseText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{handler: func(*transport.Request) (*transport.Response, error) {
				return &transport.Response{StatusCode: http.StatusOK, Body: tt.body}, nil
			}}
			fs := &memFS{}
			client := newTestClient(t, tr, &fakeHandshake{}, WithFileSystem(fs))
			pair := testPair("valid")
			client.LoadToken(pair.Exchange, pair.Access)

			data, err := client.DownloadOriginalActivityData(context.Background(), ActivityRef{ActivityID: 42}, "", tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.body, data)

			req := tr.requests()[0]
			assert.Equal(t, tt.wantURL, req.URL)
			assert.Equal(t, tt.wantResponse, req.ResponseType)
			assert.Empty(t, fs.files, "nothing is written without a directory")
		})
	}
}

func TestClient_DownloadWritesToDirectory(t *testing.T) {
	archive := []byte{'P', 'K', 0x03, 0x04}
	tr := &fakeTransport{handler: func(*transport.Request) (*transport.Response, error) {
		return &transport.Response{StatusCode: http.StatusOK, Body: archive}, nil
	}}
	fs := &memFS{}
	client := newTestClient(t, tr, &fakeHandshake{}, WithFileSystem(fs))
	pair := testPair("valid")
	client.LoadToken(pair.Exchange, pair.Access)

	dir := filepath.Join("exports", "2024")
	data, err := client.DownloadOriginalActivityData(context.Background(), ActivityRef{ActivityID: 42}, dir, ExportZip)
	require.NoError(t, err)
	assert.Equal(t, archive, data)

	assert.Equal(t, []string{dir}, fs.dirs)
	assert.Equal(t, archive, fs.files[filepath.Join(dir, "42.zip")])
}

func TestClient_EscapeHatch(t *testing.T) {
	tr := &fakeTransport{handler: okHandler(`{"steps": 1234}`)}
	client := newTestClient(t, tr, &fakeHandshake{})
	pair := testPair("valid")
	client.LoadToken(pair.Exchange, pair.Access)

	type summary struct {
		Steps int `json:"steps"`
	}

	got, err := GetAs[summary](context.Background(), client, "/usersummary-service/usersummary/daily", map[string][]string{"calendarDate": {"2024-03-09"}})
	require.NoError(t, err)
	assert.Equal(t, 1234, got.Steps)

	_, err = PostAs[map[string]any](context.Background(), client, "https://connectapi.garmin.com/custom", map[string]string{"key": "value"})
	require.NoError(t, err)

	reqs := tr.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "https://connectapi.garmin.com/usersummary-service/usersummary/daily", reqs[0].URL)
	assert.Equal(t, "2024-03-09", reqs[0].Query.Get("calendarDate"))
	assert.Equal(t, http.MethodPost, reqs[1].Method)
	assert.Equal(t, "https://connectapi.garmin.com/custom", reqs[1].URL)
	assert.Equal(t, "application/json", reqs[1].Header.Get("Content-Type"))
	assert.JSONEq(t, `{"key":"value"}`, string(reqs[1].Body))
}

func TestParseExportFormat(t *testing.T) {
	for _, f := range ExportFormats() {
		got, err := ParseExportFormat(" " + string(f) + " ")
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	got, err := ParseExportFormat("GPX")
	require.NoError(t, err)
	assert.Equal(t, ExportGPX, got)

	_, err = ParseExportFormat("csv")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
