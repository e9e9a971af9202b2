package domain

import "fmt"

// MinutesPerHour is the number of fixed-width buckets in a minute histogram.
const MinutesPerHour = 60

// Points projects records onto their coordinates.
func Points(records []Collision) []Point {
	out := make([]Point, len(records))
	for i, r := range records {
		out[i] = Point{Latitude: r.Latitude, Longitude: r.Longitude}
	}
	return out
}

// MinuteHistogram counts the records falling inside the given hour by minute.
// Records outside the hour are ignored, so the buckets sum to the number of
// records in that hour.
func MinuteHistogram(records []Collision, hour int) [MinutesPerHour]int {
	var buckets [MinutesPerHour]int
	for _, r := range records {
		if r.DateTime.Hour() != hour {
			continue
		}
		buckets[r.DateTime.Minute()]++
	}
	return buckets
}

// Midpoint returns the mean coordinate of the records, or false when there are none.
func Midpoint(records []Collision) (Point, bool) {
	if len(records) == 0 {
		return Point{}, false
	}
	var lat, lon float64
	for _, r := range records {
		lat += r.Latitude
		lon += r.Longitude
	}
	n := float64(len(records))
	return Point{Latitude: lat / n, Longitude: lon / n}, true
}

// HourWindowLabel describes a one-hour window, wrapping at midnight:
// 23 -> "23:00 and 0:00".
func HourWindowLabel(hour int) string {
	return fmt.Sprintf("%d:00 and %d:00", hour, (hour+1)%24)
}
