// Package dataset loads the collision CSV into an immutable in-memory snapshot.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/collision-dashboard/internal/domain"
	"github.com/couchcryptid/collision-dashboard/internal/observability"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	// ErrMissingColumn means the header lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrEmptyDataset means the resource has no header row.
	ErrEmptyDataset = errors.New("empty dataset")
)

// Drop reasons, also used as the rows_dropped_total label.
const (
	DropMissingCoordinates = "missing_coordinates"
	DropInvalidTimestamp   = "invalid_timestamp"
	DropMalformedRow       = "malformed_row"
)

var dropReasons = []string{DropMissingCoordinates, DropInvalidTimestamp, DropMalformedRow}

// DefaultMaxRows is the row ceiling used when none is configured.
const DefaultMaxRows = 100000

// Opener is a readable dataset location.
type Opener interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// LoadStats summarizes what happened to the source rows.
type LoadStats struct {
	RowsRead int            `json:"rows_read"`
	RowsKept int            `json:"rows_kept"`
	Dropped  map[string]int `json:"rows_dropped"`
}

// Snapshot is the loaded collection. It is never mutated after Load returns.
// Record times are wall-clock times as written in the source; Timezone names
// the zone they were recorded in.
type Snapshot struct {
	Records  []domain.Collision
	Stats    LoadStats
	Source   string
	Timezone string
	LoadedAt time.Time
}

// Loader reads at most maxRows data rows from a source.
type Loader struct {
	maxRows  int
	timezone string
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewLoader creates a loader. loc labels the snapshot's record times; a nil
// loc means UTC.
func NewLoader(maxRows int, loc *time.Location, metrics *observability.Metrics, logger *slog.Logger) (*Loader, error) {
	if maxRows <= 0 {
		return nil, fmt.Errorf("row ceiling must be positive, got %d", maxRows)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Loader{maxRows: maxRows, timezone: loc.String(), metrics: metrics, logger: logger}, nil
}

// Load opens src and reads it into a snapshot.
func (l *Loader) Load(ctx context.Context, src Opener) (*Snapshot, error) {
	start := time.Now()

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	snap, err := l.Read(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src, err)
	}
	snap.Source = src.String()

	l.metrics.LoadDuration.Observe(time.Since(start).Seconds())
	l.logger.Info("dataset loaded",
		"source", snap.Source,
		"rows_read", snap.Stats.RowsRead,
		"rows_kept", snap.Stats.RowsKept,
		"missing_coordinates", snap.Stats.Dropped[DropMissingCoordinates],
		"invalid_timestamp", snap.Stats.Dropped[DropInvalidTimestamp],
		"malformed_row", snap.Stats.Dropped[DropMalformedRow],
		"duration", time.Since(start),
	)
	return snap, nil
}

// Read parses CSV from r. The header does not count against the row ceiling;
// malformed rows do.
func (l *Loader) Read(ctx context.Context, r io.Reader) (*Snapshot, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := normalizeHeader(header)

	fieldColumns, err := resolveFields(columns)
	if err != nil {
		return nil, err
	}

	stats := LoadStats{Dropped: make(map[string]int, len(dropReasons))}
	for _, reason := range dropReasons {
		stats.Dropped[reason] = 0
	}

	table := [][]string{append([]string{rowColumn}, columns...)}
	for stats.RowsRead < l.maxRows {
		if stats.RowsRead%1000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row := stats.RowsRead
		stats.RowsRead++

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) || (err == nil && len(record) != len(columns)) {
			stats.Dropped[DropMalformedRow]++
			l.logger.Debug("malformed row dropped", "row", row, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		table = append(table, tableRow(row, record))
	}

	raws, missing, err := frameRows(table, fieldColumns)
	if err != nil {
		return nil, err
	}
	stats.Dropped[DropMissingCoordinates] += missing

	records := make([]domain.Collision, 0, len(raws))
	for _, raw := range raws {
		c, err := domain.ParseRawRow(raw)
		switch {
		case errors.Is(err, domain.ErrMissingCoordinates):
			stats.Dropped[DropMissingCoordinates]++
			continue
		case errors.Is(err, domain.ErrInvalidTimestamp):
			stats.Dropped[DropInvalidTimestamp]++
			l.logger.Debug("row with invalid timestamp dropped", "row", raw.Row, "error", err)
			continue
		case err != nil:
			stats.Dropped[DropMalformedRow]++
			continue
		}
		records = append(records, c)
	}
	stats.RowsKept = len(records)

	l.metrics.RecordsLoaded.Set(float64(stats.RowsKept))
	for reason, n := range stats.Dropped {
		l.metrics.RowsDropped.WithLabelValues(reason).Add(float64(n))
	}

	return &Snapshot{
		Records:  records,
		Stats:    stats,
		Timezone: l.timezone,
		LoadedAt: clock.Now(),
	}, nil
}

// normalizeHeader normalizes column names and makes them unique and non-empty.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := domain.NormalizeColumn(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		out[i] = name
	}
	return out
}

// resolveFields maps each recognized field to the first alias present in the header.
func resolveFields(columns []string) (map[domain.Field]string, error) {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	resolved := make(map[domain.Field]string, len(domain.ColumnAliases))
	for field, aliases := range domain.ColumnAliases {
		for _, alias := range aliases {
			if present[alias] {
				resolved[field] = alias
				break
			}
		}
	}

	for _, field := range domain.RequiredFields {
		if _, ok := resolved[field]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, field)
		}
	}
	return resolved, nil
}

// rowColumn carries each data row's source position through the frame. Normalized
// header names never start with an underscore, so it cannot collide.
const rowColumn = "_row"

// naValues are the cell values read as missing.
var naValues = []string{"", "NA", "NaN", "na", "nan", "N/A", "<nil>"}

func tableRow(row int, record []string) []string {
	out := make([]string, 0, len(record)+1)
	out = append(out, strconv.Itoa(row))
	for _, v := range record {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

// frameRows loads the table into a typed DataFrame, keeps the recognized
// columns, drops rows whose latitude or longitude is missing, and converts the
// rest into raw rows. It returns the number of rows dropped for missing
// coordinates.
func frameRows(table [][]string, fieldColumns map[domain.Field]string) ([]domain.RawRow, int, error) {
	if len(table) < 2 {
		return nil, 0, nil
	}

	types := map[string]series.Type{rowColumn: series.Int}
	selected := []string{rowColumn}
	for field, column := range fieldColumns {
		types[column] = fieldType(field)
		selected = append(selected, column)
	}

	df := dataframe.LoadRecords(table,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(types),
		dataframe.NaNValues(naValues),
	)
	df = df.Select(selected)
	if df.Err != nil {
		return nil, 0, fmt.Errorf("build frame: %w", df.Err)
	}

	before := df.Nrow()
	present := func(el series.Element) bool {
		return !el.IsNA() && !math.IsNaN(el.Float())
	}
	df = df.FilterAggregation(dataframe.And,
		dataframe.F{Colname: fieldColumns[domain.FieldLatitude], Comparator: series.CompFunc, Comparando: present},
		dataframe.F{Colname: fieldColumns[domain.FieldLongitude], Comparator: series.CompFunc, Comparando: present},
	)
	if df.Err != nil {
		return nil, 0, fmt.Errorf("drop missing coordinates: %w", df.Err)
	}
	missing := before - df.Nrow()

	rows, err := df.Col(rowColumn).Int()
	if err != nil {
		return nil, 0, fmt.Errorf("row index: %w", err)
	}

	n := df.Nrow()
	col := func(field domain.Field) (series.Series, bool) {
		column, ok := fieldColumns[field]
		if !ok {
			return series.Series{}, false
		}
		return df.Col(column), true
	}
	strs := func(field domain.Field) []string {
		out := make([]string, n)
		if s, ok := col(field); ok {
			for i := range out {
				if e := s.Elem(i); !e.IsNA() {
					out[i] = e.String()
				}
			}
		}
		return out
	}
	counts := func(field domain.Field) []int {
		out := make([]int, n)
		if s, ok := col(field); ok {
			for i, f := range s.Float() {
				if !math.IsNaN(f) && !math.IsInf(f, 0) {
					out[i] = int(f)
				}
			}
		}
		return out
	}

	dates, clocks, streets := strs(domain.FieldCrashDate), strs(domain.FieldCrashTime), strs(domain.FieldOnStreetName)
	lats := df.Col(fieldColumns[domain.FieldLatitude]).Float()
	lons := df.Col(fieldColumns[domain.FieldLongitude]).Float()
	persons, pedestrians := counts(domain.FieldInjuredPersons), counts(domain.FieldInjuredPedestrians)
	cyclists, motorists := counts(domain.FieldInjuredCyclists), counts(domain.FieldInjuredMotorists)

	out := make([]domain.RawRow, n)
	for i := range out {
		out[i] = domain.RawRow{
			Row:                rows[i],
			CrashDate:          dates[i],
			CrashTime:          clocks[i],
			Latitude:           lats[i],
			Longitude:          lons[i],
			InjuredPersons:     persons[i],
			InjuredPedestrians: pedestrians[i],
			InjuredCyclists:    cyclists[i],
			InjuredMotorists:   motorists[i],
			OnStreetName:       streets[i],
		}
	}
	return out, missing, nil
}

// fieldType is the frame column type a field is read as. Counts are read as
// floats because exports often write them as "2.0".
func fieldType(field domain.Field) series.Type {
	switch field {
	case domain.FieldLatitude, domain.FieldLongitude,
		domain.FieldInjuredPersons, domain.FieldInjuredPedestrians,
		domain.FieldInjuredCyclists, domain.FieldInjuredMotorists:
		return series.Float
	default:
		return series.String
	}
}
