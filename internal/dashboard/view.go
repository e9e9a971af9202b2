package dashboard

import (
	"time"

	"github.com/couchcryptid/collision-dashboard/internal/dataset"
	"github.com/couchcryptid/collision-dashboard/internal/domain"
)

// Map rendering defaults for the hour view.
const (
	MapStyle       = "mapbox://styles/mapbox/light-v9"
	DefaultZoom    = 11
	DefaultPitch   = 50
	HexagonRadius  = 100
	ElevationScale = 4
	MaxElevation   = 1000
)

// cityCenter positions the map when an hour has no collisions.
var cityCenter = domain.Point{Latitude: 40.7128, Longitude: -74.0060}

// Summary describes the loaded snapshot.
type Summary struct {
	Source              string            `json:"source"`
	Timezone            string            `json:"timezone"`
	LoadedAt            time.Time         `json:"loaded_at"`
	Stats               dataset.LoadStats `json:"stats"`
	MaxInjuredThreshold int               `json:"max_injured_threshold"`
	Categories          []domain.Category `json:"categories"`
}

// InjuryMap is the point set of collisions with at least MinInjured injured persons.
type InjuryMap struct {
	MinInjured int            `json:"min_injured"`
	Count      int            `json:"count"`
	Points     []domain.Point `json:"points"`
}

// ViewState is the initial camera of the 3D map.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      int     `json:"zoom"`
	Pitch     int     `json:"pitch"`
}

// HexagonLayer parameterizes the extruded hex-bin layer drawn over the hour's points.
type HexagonLayer struct {
	Type           string `json:"type"`
	Radius         int    `json:"radius"`
	Extruded       bool   `json:"extruded"`
	Pickable       bool   `json:"pickable"`
	ElevationScale int    `json:"elevation_scale"`
	ElevationRange [2]int `json:"elevation_range"`
}

// MinuteBucket is one bar of the per-minute histogram.
type MinuteBucket struct {
	Minute  int `json:"minute"`
	Crashes int `json:"crashes"`
}

// Histogram breaks one hour down by minute.
type Histogram struct {
	Hour    int            `json:"hour"`
	Label   string         `json:"label"`
	Buckets []MinuteBucket `json:"buckets"`
	Total   int            `json:"total"`
}

// HourView bundles everything the dashboard draws for one hour of day.
type HourView struct {
	Hour      int            `json:"hour"`
	Label     string         `json:"label"`
	Count     int            `json:"count"`
	Midpoint  *domain.Point  `json:"midpoint"`
	Place     *domain.Place  `json:"place,omitempty"`
	MapStyle  string         `json:"map_style"`
	ViewState ViewState      `json:"view_state"`
	Layer     HexagonLayer   `json:"layer"`
	Points    []domain.Point `json:"points"`
	Histogram Histogram      `json:"histogram"`
}

// HourCollisions is the raw record listing behind an hour view.
type HourCollisions struct {
	Hour    int                `json:"hour"`
	Count   int                `json:"count"`
	Records []domain.Collision `json:"records"`
}

// TopStreets is the ranked dangerous-streets table for one category.
type TopStreets struct {
	Category domain.Category    `json:"category"`
	Rows     []domain.RankedRow `json:"rows"`
}

func hexagonLayer() HexagonLayer {
	return HexagonLayer{
		Type:           "HexagonLayer",
		Radius:         HexagonRadius,
		Extruded:       true,
		Pickable:       true,
		ElevationScale: ElevationScale,
		ElevationRange: [2]int{0, MaxElevation},
	}
}

func viewState(center domain.Point) ViewState {
	return ViewState{
		Latitude:  center.Latitude,
		Longitude: center.Longitude,
		Zoom:      DefaultZoom,
		Pitch:     DefaultPitch,
	}
}

func newHistogram(records []domain.Collision, hour int) Histogram {
	counts := domain.MinuteHistogram(records, hour)
	h := Histogram{
		Hour:    hour,
		Label:   "Breakdown by minute between " + domain.HourWindowLabel(hour),
		Buckets: make([]MinuteBucket, len(counts)),
	}
	for minute, n := range counts {
		h.Buckets[minute] = MinuteBucket{Minute: minute, Crashes: n}
		h.Total += n
	}
	return h
}
