package httphandler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sdbrowser/internal/adapter/driven/schedulesdirect"
	"github.com/ericfisherdev/sdbrowser/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/sdbrowser/internal/adapter/driven/vault"
	httphandler "github.com/ericfisherdev/sdbrowser/internal/adapter/driving/http"
	"github.com/ericfisherdev/sdbrowser/internal/application"
)

// fakeSD is a minimal Schedules Direct upstream.
func fakeSD(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /20141201/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body["username"] {
		case "sduser":
			_, _ = w.Write([]byte(`{"code":0,"token":"abc123"}`))
		case "staleuser":
			_, _ = w.Write([]byte(`{"code":0,"token":"revoked"}`))
		case "badpass":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":4003,"message":"Invalid username or password."}`))
		default:
			_, _ = w.Write([]byte(`{"code":4003,"message":"Invalid username or password."}`))
		}
	})
	mux.HandleFunc("GET /20141201/lineups", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("token") != "abc123" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":4001,"message":"Token expired."}`))
			return
		}
		_, _ = w.Write([]byte(`{"lineups":[{"lineup":"USA-NY31587-X","name":"Cablevision","location":"Bethpage","transport":"Cable"}]}`))
	})
	mux.HandleFunc("GET /20141201/lineups/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stations":[{"stationID":"10021","callsign":"AMC"}]}`))
	})
	mux.HandleFunc("GET /20141201/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// setupServer wires the full stack over a temp database and a fake upstream.
func setupServer(t *testing.T) (http.Handler, *sqlite.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = sqlite.RunMigrations(db.Writer)
	require.NoError(t, err)

	upstream := fakeSD(t)
	exec := schedulesdirect.NewExecutor(upstream.URL+"/20141201", "test-app",
		schedulesdirect.WithHTTPClient(upstream.Client()),
		schedulesdirect.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	client := schedulesdirect.NewClient(exec, nil)
	t.Cleanup(client.Close)

	v, err := vault.New("test-secret", vault.DerivationLegacy)
	require.NoError(t, err)

	svc := application.NewAccountService(client, v, sqlite.NewAccountRepo(db), sqlite.NewLineupRepo(db), nil)
	h := httphandler.NewHandler(svc, db, nil)
	return httphandler.NewServeMux(h, slogDiscard()), db
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func connect(t *testing.T, h http.Handler) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/accounts/acct-1/sd/connect", `{"sd_username":"sduser","sd_password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestConnectAndStatus(t *testing.T) {
	h, _ := setupServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/accounts/acct-1/sd/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[httphandler.ConnectionResponse](t, rec).Connected)

	connect(t, h)

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/acct-1/sd/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[httphandler.ConnectionResponse](t, rec)
	assert.True(t, status.Connected)
	require.NotNil(t, status.Username)
	assert.Equal(t, "sduser", *status.Username)
	assert.Nil(t, status.LastSuccess)
	assert.NotContains(t, rec.Body.String(), "abc123", "the token never leaves the server")
}

func TestConnect_Validation(t *testing.T) {
	h, _ := setupServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{name: "malformed json", body: `{`, wantCode: http.StatusBadRequest, wantMsg: "invalid request body"},
		{name: "missing password", body: `{"sd_username":"sduser"}`, wantCode: http.StatusBadRequest, wantMsg: "required"},
		{name: "rejected login", body: `{"sd_username":"other","sd_password":"pw"}`, wantCode: http.StatusBadRequest, wantMsg: "Invalid username or password."},
		{name: "rejected login with http 400", body: `{"sd_username":"badpass","sd_password":"pw"}`, wantCode: http.StatusBadRequest, wantMsg: "failed to connect: Invalid username or password."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/accounts/acct-1/sd/connect", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
		})
	}
}

func TestLineupFlow(t *testing.T) {
	h, _ := setupServer(t)
	connect(t, h)

	rec := do(t, h, http.MethodGet, "/api/v1/accounts/acct-1/sd/lineups", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lineups := decode[[]httphandler.LineupResponse](t, rec)
	require.Len(t, lineups, 1)
	assert.Equal(t, "USA-NY31587-X", lineups[0].ID)

	rec = do(t, h, http.MethodPost, "/api/v1/accounts/acct-1/lineups/USA-NY31587-X", "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/accounts/acct-1/lineups/USA-NY31587-X", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/accounts/acct-1/lineups/UNKNOWN", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/acct-1/lineups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]httphandler.LineupResponse](t, rec), 1)

	rec = do(t, h, http.MethodDelete, "/api/v1/accounts/acct-1/lineups/USA-NY31587-X", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/accounts/acct-1/lineups/USA-NY31587-X", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/acct-1/sd/status", "")
	status := decode[httphandler.ConnectionResponse](t, rec)
	assert.NotNil(t, status.LastSuccess, "a successful lookup is recorded")
}

func TestStations(t *testing.T) {
	h, _ := setupServer(t)
	connect(t, h)

	rec := do(t, h, http.MethodGet, "/api/v1/accounts/acct-1/sd/lineups/USA-NY31587-X/stations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	stations := decode[[]map[string]any](t, rec)
	require.Len(t, stations, 1)
	assert.Equal(t, "AMC", stations[0]["callsign"])
}

func TestNotConnected(t *testing.T) {
	h, _ := setupServer(t)

	for _, path := range []string{
		"/api/v1/accounts/acct-1/sd/lineups",
		"/api/v1/accounts/acct-1/sd/lineups/L1/stations",
		"/api/v1/accounts/acct-1/sd/upstream-status",
	} {
		rec := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "no schedules direct account connected")
	}

	rec := do(t, h, http.MethodDelete, "/api/v1/accounts/acct-1/sd", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpstreamUnavailable(t *testing.T) {
	h, _ := setupServer(t)
	connect(t, h)

	rec := do(t, h, http.MethodGet, "/api/v1/accounts/acct-1/sd/upstream-status", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDisconnect(t *testing.T) {
	h, _ := setupServer(t)
	connect(t, h)

	rec := do(t, h, http.MethodDelete, "/api/v1/accounts/acct-1/sd", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/acct-1/sd/status", "")
	assert.False(t, decode[httphandler.ConnectionResponse](t, rec).Connected)
}

func TestHealth(t *testing.T) {
	h, db := setupServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[httphandler.HealthResponse](t, rec).Status)

	require.NoError(t, db.Close())
	rec = do(t, h, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth_NilPinger(t *testing.T) {
	h := httphandler.NewServeMux(httphandler.NewHandler(nil, nil, nil), slogDiscard())

	rec := do(t, h, http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("disk gone") }

func TestHealth_Degraded(t *testing.T) {
	h := httphandler.NewServeMux(httphandler.NewHandler(nil, failingPinger{}, nil), slogDiscard())

	rec := do(t, h, http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[httphandler.HealthResponse](t, rec).Status)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := setupServer(t)
	connect(t, h)

	rec := do(t, h, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sdbrowser_upstream_requests_total")
}

func TestRejectedTokenRequiresReconnect(t *testing.T) {
	h, _ := setupServer(t)
	rec := do(t, h, http.MethodPost, "/api/v1/accounts/acct-1/sd/connect", `{"sd_username":"staleuser","sd_password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/acct-1/sd/lineups", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "reconnect required")
}
