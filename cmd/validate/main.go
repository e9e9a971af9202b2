// Command validate loads a collision CSV with the dashboard loader and checks
// the properties every dashboard view relies on: coordinates present, threshold
// monotonicity, hour partitioning, ranking bounds, and histogram totals.
//
// Usage:
//
//	go run ./cmd/validate -data Crashes.csv -max-rows 100000
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/collision-dashboard/internal/adapter/source"
	"github.com/couchcryptid/collision-dashboard/internal/dataset"
	"github.com/couchcryptid/collision-dashboard/internal/domain"
	"github.com/couchcryptid/collision-dashboard/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataPath := flag.String("data", "", "path or URL of the collision CSV")
	maxRows := flag.Int("max-rows", dataset.DefaultMaxRows, "row ceiling")
	tz := flag.String("tz", "America/New_York", "time zone of crash timestamps")
	flag.Parse()

	if *dataPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *dataPath, *maxRows, *tz); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, dataPath string, maxRows int, tz string) int {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: time zone: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	src, err := source.New(ctx, dataPath, source.Options{}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: source: %v\n", err)
		return 1
	}
	loader, err := dataset.NewLoader(maxRows, loc, observability.NewUnregisteredMetrics(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	fmt.Fprintln(out, "=== Collision Data Validation ===")
	fmt.Fprintln(out)

	snap, err := loader.Load(ctx, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load: %v\n", err)
		return 1
	}

	phases := validate(snap.Records)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows: %d read, %d kept, %d missing coordinates, %d invalid timestamp, %d malformed\n",
		snap.Stats.RowsRead, snap.Stats.RowsKept,
		snap.Stats.Dropped[dataset.DropMissingCoordinates],
		snap.Stats.Dropped[dataset.DropInvalidTimestamp],
		snap.Stats.Dropped[dataset.DropMalformedRow],
	)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func validate(records []domain.Collision) []*phase {
	return []*phase{
		validateCoordinates(records),
		validateThresholds(records),
		validateHourPartition(records),
		validateRankings(records),
		validateHistograms(records),
	}
}

func validateCoordinates(records []domain.Collision) *phase {
	p := &phase{name: "Coordinates present"}
	for _, r := range records {
		if math.IsNaN(r.Latitude) || math.IsNaN(r.Longitude) ||
			math.Abs(r.Latitude) > 90 || math.Abs(r.Longitude) > 180 {
			p.errorf("row %d: coordinates (%v, %v) out of range", r.Row, r.Latitude, r.Longitude)
		}
	}
	return p
}

func validateThresholds(records []domain.Collision) *phase {
	p := &phase{name: "Injured threshold monotonic"}
	if n := len(domain.FilterByInjured(records, 0)); n != len(records) {
		p.errorf("threshold 0 kept %d of %d records", n, len(records))
	}
	prev := len(records)
	for threshold := 1; threshold <= domain.MaxInjuredThreshold; threshold++ {
		n := len(domain.FilterByInjured(records, threshold))
		if n > prev {
			p.errorf("threshold %d kept %d records, more than threshold %d (%d)", threshold, n, threshold-1, prev)
		}
		prev = n
	}
	return p
}

func validateHourPartition(records []domain.Collision) *phase {
	p := &phase{name: "Hour filter partitions records"}
	seen := make(map[string]int, len(records))
	total := 0
	for hour := range 24 {
		for _, r := range domain.FilterByHour(records, hour) {
			if prevHour, dup := seen[r.ID]; dup {
				p.errorf("record %s (row %d) in hours %d and %d", r.ID, r.Row, prevHour, hour)
			}
			seen[r.ID] = hour
			total++
		}
	}
	if total != len(records) {
		p.errorf("hours cover %d of %d records", total, len(records))
	}
	return p
}

func validateRankings(records []domain.Collision) *phase {
	p := &phase{name: "Top streets bounded and ordered"}
	for _, c := range domain.Categories {
		rows := domain.RankByCategory(records, c, domain.TopN)
		if len(rows) > domain.TopN {
			p.errorf("%s: %d rows, want at most %d", c, len(rows), domain.TopN)
		}
		for i, row := range rows {
			if row.Injured < 1 {
				p.errorf("%s: row %d has %d injured", c, row.Row, row.Injured)
			}
			if row.Street == "" {
				p.errorf("%s: row %d has no street", c, row.Row)
			}
			if i > 0 && row.Injured > rows[i-1].Injured {
				p.errorf("%s: position %d (%d) above position %d (%d)", c, i, row.Injured, i-1, rows[i-1].Injured)
			}
		}
	}
	return p
}

func validateHistograms(records []domain.Collision) *phase {
	p := &phase{name: "Minute histograms sum to hour counts"}
	for hour := range 24 {
		buckets := domain.MinuteHistogram(records, hour)
		sum := 0
		for _, n := range buckets {
			sum += n
		}
		if want := len(domain.FilterByHour(records, hour)); sum != want {
			p.errorf("hour %d: buckets sum to %d, hour has %d records", hour, sum, want)
		}
	}
	return p
}
