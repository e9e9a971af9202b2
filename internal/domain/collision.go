package domain

import (
	"fmt"
	"strings"
	"time"
)

// RawRow holds the typed column values of one data row before validation.
// Missing strings are empty and missing counts are zero.
type RawRow struct {
	Row                int
	CrashDate          string
	CrashTime          string
	Latitude           float64
	Longitude          float64
	InjuredPersons     int
	InjuredPedestrians int
	InjuredCyclists    int
	InjuredMotorists   int
	OnStreetName       string
}

// Collision is one normalized crash record.
type Collision struct {
	ID                 string    `json:"id"`
	Row                int       `json:"row"`
	DateTime           time.Time `json:"date_time"` // wall clock as recorded, held in UTC
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	InjuredPersons     int       `json:"injured_persons"`
	InjuredPedestrians int       `json:"injured_pedestrians"`
	InjuredCyclists    int       `json:"injured_cyclists"`
	InjuredMotorists   int       `json:"injured_motorists"`
	OnStreetName       string    `json:"on_street_name,omitempty"`
}

// Point is a WGS-84 coordinate pair as consumed by map widgets.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Category selects which injured-party count a ranking is computed over.
type Category string

const (
	CategoryPedestrians Category = "pedestrians"
	CategoryCyclists    Category = "cyclists"
	CategoryMotorists   Category = "motorists"
)

// Categories lists the rankable categories in display order.
var Categories = []Category{CategoryPedestrians, CategoryCyclists, CategoryMotorists}

// ParseCategory accepts a category name in any letter case, e.g. "Pedestrians".
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryPedestrians, CategoryCyclists, CategoryMotorists:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// Count returns the injured count of r for the category. Unknown categories count zero.
func (c Category) Count(r Collision) int {
	switch c {
	case CategoryPedestrians:
		return r.InjuredPedestrians
	case CategoryCyclists:
		return r.InjuredCyclists
	case CategoryMotorists:
		return r.InjuredMotorists
	default:
		return 0
	}
}

// RankedRow is one line of a top-N dangerous streets table.
type RankedRow struct {
	ID       string          `json:"id"`
	Row      int             `json:"row"`
	Street   string          `json:"street"`
	Injured  int             `json:"injured"`
	Location *StreetLocation `json:"location,omitempty"`
}

// StreetLocation is the geocoded position of a ranked street.
type StreetLocation struct {
	Point
	FormattedAddress string  `json:"formatted_address,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
}

// Place is a human-readable label for a map position.
type Place struct {
	Name             string `json:"name,omitempty"`
	FormattedAddress string `json:"formatted_address,omitempty"`
	GeoSource        string `json:"geo_source"` // "reverse", "original", "failed"
}
