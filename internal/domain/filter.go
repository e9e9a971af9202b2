package domain

import (
	"cmp"
	"slices"
)

const (
	// MaxInjuredThreshold is the largest selectable injured-persons threshold.
	MaxInjuredThreshold = 19

	// TopN is the length of a dangerous streets table.
	TopN = 5
)

// FilterByInjured keeps records with at least minInjured injured persons.
func FilterByInjured(records []Collision, minInjured int) []Collision {
	out := make([]Collision, 0, len(records))
	for _, r := range records {
		if r.InjuredPersons >= minInjured {
			out = append(out, r)
		}
	}
	return out
}

// FilterByHour keeps records whose timestamp falls in the given hour of day.
func FilterByHour(records []Collision, hour int) []Collision {
	out := make([]Collision, 0, len(records)/24+1)
	for _, r := range records {
		if r.DateTime.Hour() == hour {
			out = append(out, r)
		}
	}
	return out
}

// RankByCategory returns up to n records with at least one injured party in the
// category and a known street, ordered by that count descending. Ties keep
// their original row order.
func RankByCategory(records []Collision, category Category, n int) []RankedRow {
	if n <= 0 {
		return []RankedRow{}
	}

	candidates := make([]Collision, 0)
	for _, r := range records {
		if category.Count(r) >= 1 && r.OnStreetName != "" {
			candidates = append(candidates, r)
		}
	}
	// Ties fall back to row order, not input order, so composed filters rank the same.
	slices.SortStableFunc(candidates, func(a, b Collision) int {
		if c := cmp.Compare(category.Count(b), category.Count(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.Row, b.Row)
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}

	out := make([]RankedRow, len(candidates))
	for i, r := range candidates {
		out[i] = RankedRow{
			ID:      r.ID,
			Row:     r.Row,
			Street:  r.OnStreetName,
			Injured: category.Count(r),
		}
	}
	return out
}
