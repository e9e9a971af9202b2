// Package dashboard computes the dashboard views over the loaded snapshot.
// Views are pure functions of the snapshot and their parameters, so they are
// memoized; geocoding enrichment runs per request behind its own cache.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/collision-dashboard/internal/dataset"
	"github.com/couchcryptid/collision-dashboard/internal/domain"
	"github.com/couchcryptid/collision-dashboard/internal/lru"
	"github.com/couchcryptid/collision-dashboard/internal/observability"
)

var (
	// ErrInvalidThreshold rejects injured thresholds outside [0, MaxInjuredThreshold].
	ErrInvalidThreshold = errors.New("invalid injured threshold")

	// ErrInvalidHour rejects hours outside [0, 23].
	ErrInvalidHour = errors.New("invalid hour")

	// ErrUnknownCategory rejects categories other than pedestrians, cyclists and motorists.
	ErrUnknownCategory = errors.New("unknown category")
)

// SnapshotSource provides the loaded snapshot or dataset.ErrNotLoaded.
type SnapshotSource interface {
	Snapshot() (*dataset.Snapshot, error)
}

// Service answers dashboard queries.
type Service struct {
	snapshots SnapshotSource
	geocoder  domain.Geocoder
	metrics   *observability.Metrics
	logger    *slog.Logger

	hours    *lru.Cache[int, []domain.Collision]
	injuries *lru.Cache[int, InjuryMap]
	rankings *lru.Cache[domain.Category, []domain.RankedRow]
}

// NewService creates a dashboard service. geocoder may be nil to disable
// place labels and street locations.
func NewService(snapshots SnapshotSource, geocoder domain.Geocoder, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		snapshots: snapshots,
		geocoder:  geocoder,
		metrics:   metrics,
		logger:    logger,
		hours:     lru.New[int, []domain.Collision](cacheSize),
		injuries:  lru.New[int, InjuryMap](cacheSize),
		rankings:  lru.New[domain.Category, []domain.RankedRow](cacheSize),
	}
}

// Summary reports what was loaded.
func (s *Service) Summary() (Summary, error) {
	snap, err := s.snapshot("summary")
	if err != nil {
		return Summary{}, err
	}
	s.observe("summary", nil)
	return Summary{
		Source:              snap.Source,
		Timezone:            snap.Timezone,
		LoadedAt:            snap.LoadedAt,
		Stats:               snap.Stats,
		MaxInjuredThreshold: domain.MaxInjuredThreshold,
		Categories:          domain.Categories,
	}, nil
}

// InjuryMap returns the positions of collisions with at least minInjured injured persons.
func (s *Service) InjuryMap(minInjured int) (InjuryMap, error) {
	const view = "injuries"
	if minInjured < 0 || minInjured > domain.MaxInjuredThreshold {
		return InjuryMap{}, s.invalid(view, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidThreshold, minInjured, domain.MaxInjuredThreshold))
	}
	snap, err := s.snapshot(view)
	if err != nil {
		return InjuryMap{}, err
	}

	m := cached(s, s.injuries, view, minInjured, func() InjuryMap {
		filtered := domain.FilterByInjured(snap.Records, minInjured)
		return InjuryMap{MinInjured: minInjured, Count: len(filtered), Points: domain.Points(filtered)}
	})
	s.observe(view, nil)
	return m, nil
}

// HourView returns the map, layer and histogram for collisions in one hour of day.
func (s *Service) HourView(ctx context.Context, hour int) (HourView, error) {
	const view = "hour"
	records, err := s.hourRecords(view, hour)
	if err != nil {
		return HourView{}, err
	}

	v := HourView{
		Hour:      hour,
		Label:     "Vehicle collisions between " + domain.HourWindowLabel(hour),
		Count:     len(records),
		MapStyle:  MapStyle,
		ViewState: viewState(cityCenter),
		Layer:     hexagonLayer(),
		Points:    domain.Points(records),
		Histogram: newHistogram(records, hour),
	}
	if mid, ok := domain.Midpoint(records); ok {
		v.Midpoint = &mid
		v.ViewState = viewState(mid)
		v.Place = domain.DescribePlace(ctx, mid, s.geocoder, s.logger)
	}
	s.observe(view, nil)
	return v, nil
}

// Histogram returns the per-minute breakdown of one hour of day.
func (s *Service) Histogram(hour int) (Histogram, error) {
	const view = "histogram"
	records, err := s.hourRecords(view, hour)
	if err != nil {
		return Histogram{}, err
	}
	s.observe(view, nil)
	return newHistogram(records, hour), nil
}

// HourCollisions lists the records behind an hour view.
func (s *Service) HourCollisions(hour int) (HourCollisions, error) {
	const view = "collisions"
	records, err := s.hourRecords(view, hour)
	if err != nil {
		return HourCollisions{}, err
	}
	s.observe(view, nil)
	return HourCollisions{Hour: hour, Count: len(records), Records: records}, nil
}

// TopStreets ranks the most dangerous streets for a category over the whole snapshot.
func (s *Service) TopStreets(ctx context.Context, category string) (TopStreets, error) {
	const view = "streets"
	c, err := domain.ParseCategory(category)
	if err != nil {
		return TopStreets{}, s.invalid(view, fmt.Errorf("%w: %q", ErrUnknownCategory, category))
	}
	snap, err := s.snapshot(view)
	if err != nil {
		return TopStreets{}, err
	}

	rows := cached(s, s.rankings, view, c, func() []domain.RankedRow {
		return domain.RankByCategory(snap.Records, c, domain.TopN)
	})
	rows = domain.LocateStreets(ctx, rows, domain.DefaultRegion, s.geocoder, s.logger)
	s.observe(view, nil)
	return TopStreets{Category: c, Rows: rows}, nil
}

// CheckReadiness reports ready once the snapshot is loaded.
func (s *Service) CheckReadiness(_ context.Context) error {
	_, err := s.snapshots.Snapshot()
	return err
}

func (s *Service) hourRecords(view string, hour int) ([]domain.Collision, error) {
	if hour < 0 || hour > 23 {
		return nil, s.invalid(view, fmt.Errorf("%w: %d not in [0, 23]", ErrInvalidHour, hour))
	}
	snap, err := s.snapshot(view)
	if err != nil {
		return nil, err
	}
	return cached(s, s.hours, "hour_records", hour, func() []domain.Collision {
		return domain.FilterByHour(snap.Records, hour)
	}), nil
}

func (s *Service) snapshot(view string) (*dataset.Snapshot, error) {
	snap, err := s.snapshots.Snapshot()
	if err != nil {
		s.observe(view, err)
		return nil, err
	}
	return snap, nil
}

func (s *Service) invalid(view string, err error) error {
	s.observe(view, err)
	return err
}

func (s *Service) observe(view string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidThreshold), errors.Is(err, ErrInvalidHour), errors.Is(err, ErrUnknownCategory):
		outcome = "invalid"
	case errors.Is(err, dataset.ErrNotLoaded):
		outcome = "unavailable"
	default:
		outcome = "error"
	}
	s.metrics.ViewRequests.WithLabelValues(view, outcome).Inc()
}

// cached returns the memoized value for key, computing and storing it on a miss.
func cached[K comparable, V any](s *Service, c *lru.Cache[K, V], view string, key K, compute func() V) V {
	if v, ok := c.Get(key); ok {
		s.metrics.ViewCache.WithLabelValues(view, "hit").Inc()
		return v
	}
	s.metrics.ViewCache.WithLabelValues(view, "miss").Inc()
	v := compute()
	c.Put(key, v)
	return v
}
