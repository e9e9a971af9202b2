package dataset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/collision-dashboard/internal/domain"
	"github.com/couchcryptid/collision-dashboard/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "testdata/crashes.csv"

var loadTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fileOpener reads a CSV from disk. It counts opens so tests can observe memoization.
type fileOpener struct {
	path  string
	opens int
	err   error
}

func (f *fileOpener) Open(_ context.Context) (io.ReadCloser, error) {
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	return os.Open(f.path)
}

func (f *fileOpener) String() string { return f.path }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func testLoader(t *testing.T, maxRows int) *Loader {
	t.Helper()
	l, err := NewLoader(maxRows, newYork(t), observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, err)
	return l
}

func TestMain(m *testing.M) {
	SetClock(clockwork.NewFakeClockAt(loadTime))
	code := m.Run()
	SetClock(nil)
	os.Exit(code)
}

func TestLoader_Fixture(t *testing.T) {
	snap, err := testLoader(t, DefaultMaxRows).Load(context.Background(), &fileOpener{path: fixture})
	require.NoError(t, err)

	assert.Equal(t, fixture, snap.Source)
	assert.Equal(t, loadTime, snap.LoadedAt)
	assert.Equal(t, LoadStats{
		RowsRead: 12,
		RowsKept: 8,
		Dropped: map[string]int{
			DropMissingCoordinates: 2,
			DropInvalidTimestamp:   1,
			DropMalformedRow:       1,
		},
	}, snap.Stats)

	rows := make([]int, len(snap.Records))
	for i, r := range snap.Records {
		rows[i] = r.Row
		assert.NotZero(t, r.Latitude)
		assert.NotZero(t, r.Longitude)
	}
	assert.Equal(t, []int{0, 1, 3, 4, 5, 6, 7, 10}, rows)
}

func TestLoader_RecordValues(t *testing.T) {
	snap, err := testLoader(t, DefaultMaxRows).Load(context.Background(), &fileOpener{path: fixture})
	require.NoError(t, err)

	first := snap.Records[0]
	assert.Equal(t, time.Date(2021, 9, 11, 2, 39, 0, 0, time.UTC), first.DateTime)
	assert.Equal(t, "America/New_York", snap.Timezone)
	assert.InDelta(t, 40.667202, first.Latitude, 1e-9)
	assert.InDelta(t, -73.8665, first.Longitude, 1e-9)
	assert.Equal(t, 2, first.InjuredPersons)
	assert.Equal(t, 2, first.InjuredMotorists)
	assert.Equal(t, "WHITESTONE EXPRESSWAY", first.OnStreetName)
	assert.True(t, strings.HasPrefix(first.ID, "collision-"))

	noStreet := snap.Records[2]
	assert.Equal(t, 3, noStreet.Row)
	assert.Empty(t, noStreet.OnStreetName)

	quoted := snap.Records[7]
	assert.Equal(t, 10, quoted.Row)
	assert.Equal(t, "JACKSON AVENUE, SERVICE RD", quoted.OnStreetName)
	assert.Equal(t, 0, quoted.InjuredPersons, "NA counts read as zero")
	assert.Equal(t, 1, quoted.InjuredPedestrians)
	assert.Equal(t, 0, quoted.InjuredCyclists)
}

func TestLoader_RowCeiling(t *testing.T) {
	snap, err := testLoader(t, 3).Load(context.Background(), &fileOpener{path: fixture})
	require.NoError(t, err)

	assert.Equal(t, 3, snap.Stats.RowsRead)
	assert.Equal(t, 2, snap.Stats.RowsKept)
	assert.Equal(t, 1, snap.Stats.Dropped[DropMissingCoordinates])
}

func TestLoader_Metrics(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	l, err := NewLoader(DefaultMaxRows, time.UTC, metrics, discardLogger())
	require.NoError(t, err)

	_, err = l.Load(context.Background(), &fileOpener{path: fixture})
	require.NoError(t, err)

	assert.InDelta(t, 8, testutil.ToFloat64(metrics.RecordsLoaded), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues(DropMissingCoordinates)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues(DropMalformedRow)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.LoadDuration))
}

func TestLoader_ThreeRowExample(t *testing.T) {
	csv := "CRASH_DATE,CRASH_TIME,LATITUDE,LONGITUDE,NUMBER OF PERSONS INJURED\n" +
		"2021-09-11T00:00:00.000,10:00,40.7,-73.9,2\n" +
		"2021-09-11T00:00:00.000,11:00,40.8,-73.8,0\n" +
		"2021-09-11T00:00:00.000,12:00,,,5\n"

	snap, err := testLoader(t, DefaultMaxRows).Read(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, snap.Records, 2)

	injured := domain.FilterByInjured(snap.Records, 1)
	require.Len(t, injured, 1)
	assert.Equal(t, 0, injured[0].Row)
	assert.Len(t, domain.FilterByInjured(snap.Records, 0), 2)
}

func TestLoader_HeaderVariants(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "spaces", header: "CRASH DATE,CRASH TIME,LATITUDE,LONGITUDE,NUMBER OF CYCLIST INJURED"},
		{name: "underscores", header: "crash_date,crash_time,latitude,longitude,number_of_cyclist_injured"},
		{name: "short aliases", header: "Crash Date,Crash Time,Latitude,Longitude,Injured Cyclists"},
		{name: "byte order mark", header: "\ufeffCRASH DATE,CRASH TIME,LATITUDE,LONGITUDE,NUMBER OF CYCLISTS INJURED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			csv := tt.header + "\n12/14/2021,8:17,40.86816,-73.83148,3\n"
			snap, err := testLoader(t, 10).Read(context.Background(), strings.NewReader(csv))
			require.NoError(t, err)
			require.Len(t, snap.Records, 1)
			assert.Equal(t, 3, snap.Records[0].InjuredCyclists)
		})
	}
}

func TestLoader_MissingColumn(t *testing.T) {
	csv := "CRASH DATE,CRASH TIME,LATITUDE\n12/14/2021,8:17,40.86816\n"
	_, err := testLoader(t, 10).Read(context.Background(), strings.NewReader(csv))
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "longitude")
}

func TestLoader_EmptyInput(t *testing.T) {
	_, err := testLoader(t, 10).Read(context.Background(), strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyDataset)
}

func TestLoader_HeaderOnly(t *testing.T) {
	snap, err := testLoader(t, 10).Read(context.Background(), strings.NewReader("CRASH DATE,CRASH TIME,LATITUDE,LONGITUDE\n"))
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
	assert.Equal(t, 0, snap.Stats.RowsRead)
}

func TestLoader_MissingValues(t *testing.T) {
	csv := strings.Join([]string{
		"CRASH DATE,CRASH TIME,LATITUDE,LONGITUDE,NUMBER OF PERSONS INJURED,NUMBER OF CYCLIST INJURED,ON STREET NAME",
		"12/14/2021,8:17,NA,-73.83148,1,0,BROADWAY",
		"12/14/2021,8:18,40.86816,nan,1,0,BROADWAY",
		"12/14/2021,8:19,na,,1,0,BROADWAY",
		"12/14/2021,8:20, N/A ,-73.83148,1,0,BROADWAY",
		"12/14/2021,8:21,40.86816,-73.83148,2.0,NA,NaN",
		"12/14/2021,8:22,40.86816,-73.83148,,-2, CANAL STREET ",
		"12/14/2021,8:23,140.0,-73.83148,1,0,BROADWAY",
	}, "\n") + "\n"

	snap, err := testLoader(t, 10).Read(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 5, snap.Stats.Dropped[DropMissingCoordinates])
	require.Len(t, snap.Records, 2)

	first := snap.Records[0]
	assert.Equal(t, 4, first.Row)
	assert.Equal(t, 2, first.InjuredPersons)
	assert.Equal(t, 0, first.InjuredCyclists)
	assert.Empty(t, first.OnStreetName)

	second := snap.Records[1]
	assert.Equal(t, 5, second.Row)
	assert.Equal(t, 0, second.InjuredPersons)
	assert.Equal(t, 0, second.InjuredCyclists)
	assert.Equal(t, "CANAL STREET", second.OnStreetName)
}

func TestLoader_SpringForwardKeepsRecordedHour(t *testing.T) {
	csv := "CRASH DATE,CRASH TIME,LATITUDE,LONGITUDE\n03/10/2019,2:30,40.7128,-74.0060\n"

	snap, err := testLoader(t, 10).Read(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)

	ts := snap.Records[0].DateTime
	assert.Equal(t, 2, ts.Hour())
	assert.Equal(t, 30, ts.Minute())
	assert.Len(t, domain.FilterByHour(snap.Records, 2), 1)
	assert.Equal(t, "America/New_York", snap.Timezone)
}

func TestLoader_DuplicateColumns(t *testing.T) {
	csv := "CRASH DATE,CRASH TIME,LATITUDE,LONGITUDE,,LATITUDE\n12/14/2021,8:17,40.86816,-73.83148,x,0\n"
	snap, err := testLoader(t, 10).Read(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.InDelta(t, 40.86816, snap.Records[0].Latitude, 1e-9)
}

func TestLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testLoader(t, 10).Load(ctx, &fileOpener{path: fixture})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoader_OpenError(t *testing.T) {
	boom := errors.New("bucket unreachable")
	_, err := testLoader(t, 10).Load(context.Background(), &fileOpener{path: "s3://x/y", err: boom})
	require.ErrorIs(t, err, boom)
}

func TestNewLoader_InvalidCeiling(t *testing.T) {
	_, err := NewLoader(0, nil, observability.NewMetricsForTesting(), discardLogger())
	require.Error(t, err)
}

func TestNormalizeHeader(t *testing.T) {
	got := normalizeHeader([]string{"CRASH DATE", "", "crash_date", "Crash-Date"})
	assert.Equal(t, []string{"crash_date", "column_1", "crash_date_2", "crash_date_3"}, got)
}

func TestLoader_TempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashes.csv")
	require.NoError(t, os.WriteFile(path, []byte("CRASH DATE,CRASH TIME,LATITUDE,LONGITUDE\n01/01/2022,23:59,40.7,-73.9\n"), 0o600))

	snap, err := testLoader(t, 10).Load(context.Background(), &fileOpener{path: path})
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, 23, snap.Records[0].DateTime.Hour())
	assert.Equal(t, 59, snap.Records[0].DateTime.Minute())
}
