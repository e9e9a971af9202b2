package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/collision-dashboard/internal/adapter/http"
	"github.com/couchcryptid/collision-dashboard/internal/adapter/source"
	"github.com/couchcryptid/collision-dashboard/internal/dashboard"
	"github.com/couchcryptid/collision-dashboard/internal/dataset"
	"github.com/couchcryptid/collision-dashboard/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const crashesCSV = `CRASH DATE,CRASH TIME,LATITUDE,LONGITUDE,ON STREET NAME,NUMBER OF PERSONS INJURED,NUMBER OF PEDESTRIANS INJURED,NUMBER OF CYCLIST INJURED,NUMBER OF MOTORIST INJURED
09/11/2021,8:13,40.70,-73.90,BROADWAY,2,1,0,1
09/11/2021,8:13,40.80,-73.80,CANAL STREET,0,0,0,0
09/11/2021,8:59,40.60,-74.00,ATLANTIC AVENUE,5,3,1,1
09/11/2021,17:05,,,FLATBUSH AVENUE,1,1,0,0
09/11/2021,23:30,40.65,-73.96,FLATBUSH AVENUE,1,0,2,0
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, load bool) *httpadapter.Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crashes.csv")
	require.NoError(t, os.WriteFile(path, []byte(crashesCSV), 0o600))

	metrics := observability.NewMetricsForTesting()
	loader, err := dataset.NewLoader(dataset.DefaultMaxRows, time.UTC, metrics, discardLogger())
	require.NoError(t, err)
	store := dataset.NewStore(loader, source.NewFile(path), metrics, discardLogger())
	if load {
		_, err := store.Load(context.Background())
		require.NoError(t, err)
	}

	svc := dashboard.NewService(store, nil, 16, metrics, discardLogger())
	return httpadapter.NewServer(":0", svc, discardLogger())
}

func get(t *testing.T, srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(t, false), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns200WhenLoaded(t *testing.T) {
	rec := get(t, newTestServer(t, true), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns503BeforeLoad(t *testing.T) {
	rec := get(t, newTestServer(t, false), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, dataset.ErrNotLoaded.Error(), body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t, false), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIReturns503BeforeLoad(t *testing.T) {
	srv := newTestServer(t, false)
	for _, target := range []string{
		"/api/v1/summary",
		"/api/v1/injuries",
		"/api/v1/hours/8",
		"/api/v1/hours/8/histogram",
		"/api/v1/hours/8/histogram.png",
		"/api/v1/hours/8/collisions",
		"/api/v1/streets/top",
	} {
		t.Run(target, func(t *testing.T) {
			rec := get(t, srv, target)
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestSummary(t *testing.T) {
	rec := get(t, newTestServer(t, true), "/api/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[dashboard.Summary](t, rec)
	assert.Equal(t, 5, got.Stats.RowsRead)
	assert.Equal(t, 4, got.Stats.RowsKept)
	assert.Equal(t, 1, got.Stats.Dropped[dataset.DropMissingCoordinates])
	assert.Equal(t, 19, got.MaxInjuredThreshold)
	assert.Equal(t, "UTC", got.Timezone)
}

func TestInjuries(t *testing.T) {
	srv := newTestServer(t, true)

	tests := []struct {
		target string
		status int
		count  int
	}{
		{target: "/api/v1/injuries", status: http.StatusOK, count: 4},
		{target: "/api/v1/injuries?min=0", status: http.StatusOK, count: 4},
		{target: "/api/v1/injuries?min=1", status: http.StatusOK, count: 3},
		{target: "/api/v1/injuries?min=5", status: http.StatusOK, count: 1},
		{target: "/api/v1/injuries?min=20", status: http.StatusBadRequest},
		{target: "/api/v1/injuries?min=-1", status: http.StatusBadRequest},
		{target: "/api/v1/injuries?min=many", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, srv, tt.target)
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				assert.Contains(t, decode[map[string]string](t, rec)["error"], "invalid injured threshold")
				return
			}
			got := decode[dashboard.InjuryMap](t, rec)
			assert.Equal(t, tt.count, got.Count)
			assert.Len(t, got.Points, tt.count)
		})
	}
}

func TestHourView(t *testing.T) {
	rec := get(t, newTestServer(t, true), "/api/v1/hours/8")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[dashboard.HourView](t, rec)
	assert.Equal(t, "Vehicle collisions between 8:00 and 9:00", got.Label)
	assert.Equal(t, 3, got.Count)
	require.NotNil(t, got.Midpoint)
	assert.InDelta(t, 40.70, got.Midpoint.Latitude, 1e-9)
	assert.Equal(t, "HexagonLayer", got.Layer.Type)
	assert.Len(t, got.Histogram.Buckets, 60)
}

func TestHourViewInvalid(t *testing.T) {
	srv := newTestServer(t, true)
	for _, target := range []string{"/api/v1/hours/24", "/api/v1/hours/-1", "/api/v1/hours/noon"} {
		t.Run(target, func(t *testing.T) {
			rec := get(t, srv, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec)["error"], "invalid hour")
		})
	}
}

func TestHistogram(t *testing.T) {
	rec := get(t, newTestServer(t, true), "/api/v1/hours/8/histogram")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[dashboard.Histogram](t, rec)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 2, got.Buckets[13].Crashes)
	assert.Equal(t, 1, got.Buckets[59].Crashes)
}

func TestHistogramPNG(t *testing.T) {
	rec := get(t, newTestServer(t, true), "/api/v1/hours/8/histogram.png")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestHourCollisions(t *testing.T) {
	rec := get(t, newTestServer(t, true), "/api/v1/hours/23/collisions")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[dashboard.HourCollisions](t, rec)
	require.Equal(t, 1, got.Count)
	assert.Equal(t, "FLATBUSH AVENUE", got.Records[0].OnStreetName)
	assert.Equal(t, 4, got.Records[0].Row)
}

func TestTopStreets(t *testing.T) {
	srv := newTestServer(t, true)

	rec := get(t, srv, "/api/v1/streets/top")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[dashboard.TopStreets](t, rec)
	assert.Equal(t, "pedestrians", string(got.Category))
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "ATLANTIC AVENUE", got.Rows[0].Street)
	assert.Equal(t, 3, got.Rows[0].Injured)
	assert.Equal(t, "BROADWAY", got.Rows[1].Street)

	rec = get(t, srv, "/api/v1/streets/top?category=Motorists")
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[dashboard.TopStreets](t, rec)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "BROADWAY", got.Rows[0].Street, "ties keep row order")

	rec = get(t, srv, "/api/v1/streets/top?category=trucks")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
