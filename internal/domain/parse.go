package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrMissingCoordinates marks a row without a usable latitude or longitude.
	ErrMissingCoordinates = errors.New("missing coordinates")

	// ErrInvalidTimestamp marks a row whose date or time cannot be parsed.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// Field names a recognized dataset column after normalization.
type Field string

const (
	FieldCrashDate          Field = "crash_date"
	FieldCrashTime          Field = "crash_time"
	FieldLatitude           Field = "latitude"
	FieldLongitude          Field = "longitude"
	FieldInjuredPersons     Field = "injured_persons"
	FieldInjuredPedestrians Field = "injured_pedestrians"
	FieldInjuredCyclists    Field = "injured_cyclists"
	FieldInjuredMotorists   Field = "injured_motorists"
	FieldOnStreetName       Field = "on_street_name"
)

// ColumnAliases maps each field to the normalized header names it appears under,
// in order of preference.
var ColumnAliases = map[Field][]string{
	FieldCrashDate:          {"crash_date"},
	FieldCrashTime:          {"crash_time"},
	FieldLatitude:           {"latitude"},
	FieldLongitude:          {"longitude"},
	FieldInjuredPersons:     {"number_of_persons_injured", "injured_persons"},
	FieldInjuredPedestrians: {"number_of_pedestrians_injured", "injured_pedestrians"},
	FieldInjuredCyclists:    {"number_of_cyclist_injured", "number_of_cyclists_injured", "injured_cyclists"},
	FieldInjuredMotorists:   {"number_of_motorist_injured", "number_of_motorists_injured", "injured_motorists"},
	FieldOnStreetName:       {"on_street_name"},
}

// RequiredFields must be present in a dataset header for it to load.
var RequiredFields = []Field{FieldCrashDate, FieldCrashTime, FieldLatitude, FieldLongitude}

// columnSeparatorRe matches the runs of whitespace, slashes and dashes folded to "_".
var columnSeparatorRe = regexp.MustCompile(`[\s/\-_]+`)

var (
	dateLayouts = []string{
		"01/02/2006",
		"1/2/2006",
		"2006-01-02",
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
	}
	timeLayouts = []string{
		"15:04",
		"15:04:05",
		"3:04 PM",
		"3:04:05 PM",
	}
)

// NormalizeColumn lowercases a header name and folds separators into single
// underscores, e.g. "NUMBER OF PERSONS INJURED" -> "number_of_persons_injured".
func NormalizeColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Trim(columnSeparatorRe.ReplaceAllString(name, "_"), "_")
}

// ParseRawRow validates a raw row and converts it into a Collision. It returns
// ErrMissingCoordinates or ErrInvalidTimestamp (wrapped) when the row must be
// dropped. Negative counts read as zero.
func ParseRawRow(raw RawRow) (Collision, error) {
	if !validCoordinate(raw.Latitude, 90) || !validCoordinate(raw.Longitude, 180) {
		return Collision{}, fmt.Errorf("row %d: %w", raw.Row, ErrMissingCoordinates)
	}

	ts, err := ParseTimestamp(raw.CrashDate, raw.CrashTime)
	if err != nil {
		return Collision{}, fmt.Errorf("row %d: %w", raw.Row, err)
	}

	street := strings.TrimSpace(raw.OnStreetName)
	return Collision{
		ID:                 generateID(ts, raw.Latitude, raw.Longitude, street, raw.Row),
		Row:                raw.Row,
		DateTime:           ts,
		Latitude:           raw.Latitude,
		Longitude:          raw.Longitude,
		InjuredPersons:     max(raw.InjuredPersons, 0),
		InjuredPedestrians: max(raw.InjuredPedestrians, 0),
		InjuredCyclists:    max(raw.InjuredCyclists, 0),
		InjuredMotorists:   max(raw.InjuredMotorists, 0),
		OnStreetName:       street,
	}, nil
}

// ParseTimestamp combines a crash date and a crash time of day into the
// wall-clock time as recorded. The result carries no zone offset (it is held
// in UTC), so hour and minute always match the source even across daylight
// saving transitions.
func ParseTimestamp(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, ErrInvalidTimestamp
	}

	d, ok := parseFirst(dateLayouts, date)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidTimestamp, date)
	}
	c, ok := parseFirst(timeLayouts, strings.ToUpper(clock))
	if !ok {
		return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidTimestamp, clock)
	}

	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC), nil
}

func parseFirst(layouts []string, value string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// validCoordinate reports whether v is a finite latitude or longitude bounded by ±limit.
func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= limit
}

// generateID produces a deterministic ID from the record's key fields.
func generateID(ts time.Time, lat, lon float64, street string, row int) string {
	input := fmt.Sprintf("%s|%.6f|%.6f|%s|%d", ts.Format("2006-01-02T15:04:05"), lat, lon, street, row)
	hash := sha256.Sum256([]byte(input))
	return "collision-" + hex.EncodeToString(hash[:8])
}
