package domain

import (
	"context"
	"log/slog"
)

// DefaultRegion scopes forward geocoding of street names.
const DefaultRegion = "New York, NY"

// DescribePlace labels a map position by reverse geocoding it.
// A nil geocoder yields a nil place; failures degrade to GeoSource "failed".
func DescribePlace(ctx context.Context, p Point, geocoder Geocoder, logger *slog.Logger) *Place {
	if geocoder == nil {
		return nil
	}

	result, err := geocoder.ReverseGeocode(ctx, p.Latitude, p.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", p.Latitude,
			"lon", p.Longitude,
			"error", err,
		)
		return &Place{GeoSource: "failed"}
	}
	if result.FormattedAddress == "" {
		return &Place{GeoSource: "original"}
	}
	return &Place{
		Name:             result.PlaceName,
		FormattedAddress: result.FormattedAddress,
		GeoSource:        "reverse",
	}
}

// LocateStreets attaches geocoded positions to ranked rows. The input slice is
// not modified. Rows whose street cannot be resolved keep a nil Location.
func LocateStreets(ctx context.Context, rows []RankedRow, region string, geocoder Geocoder, logger *slog.Logger) []RankedRow {
	out := make([]RankedRow, len(rows))
	copy(out, rows)
	if geocoder == nil {
		return out
	}

	for i := range out {
		if ctx.Err() != nil {
			return out
		}
		result, err := geocoder.ForwardGeocode(ctx, out[i].Street, region)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"record_id", out[i].ID,
				"street", out[i].Street,
				"error", err,
			)
			continue
		}
		if result.Lat == 0 && result.Lon == 0 {
			continue
		}
		out[i].Location = &StreetLocation{
			Point:            Point{Latitude: result.Lat, Longitude: result.Lon},
			FormattedAddress: result.FormattedAddress,
			Confidence:       result.Confidence,
		}
	}
	return out
}
