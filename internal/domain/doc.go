// Package domain models NYC motor vehicle collision records and the pure
// filters and projections the dashboard is built from.
//
// # Data Source
//
// Records come from the NYC Open Data "Motor Vehicle Collisions - Crashes"
// export (one row per police-reported crash). The service reads a bounded
// prefix of the CSV once at startup; see package dataset.
//
// # Column Conventions
//
// Header names vary between exports ("CRASH DATE" vs "CRASH_DATE",
// "NUMBER OF PERSONS INJURED" vs "INJURED_PERSONS"). [NormalizeColumn]
// lowercases a header and folds spaces, slashes and dashes into underscores,
// and [ColumnAliases] maps each recognized field to every normalized name it
// is known by. Unrecognized columns are ignored.
//
// Date and time are separate columns:
//
//	CRASH DATE  "07/14/2021" or "2021-07-14T00:00:00.000"
//	CRASH TIME  "9:35" or "09:35:00"
//
// They are combined into one wall-clock timestamp by [ParseTimestamp].
//
// Missing values:
//
//	Empty strings, "NA" and "NaN" are missing. A row missing either
//	coordinate is dropped. A missing injury count reads as zero.
//
// # Filters and Projections
//
// Every function in this package takes a slice of records and returns a new
// slice or value. Input slices are never reordered or modified, so a single
// loaded snapshot can back any number of concurrent views.
//
// # ID Generation
//
// Record IDs are deterministic SHA-256 hashes of date|time|lat|lon|street|row,
// so re-publishing the same CSV yields the same Kafka keys. See [generateID].
package domain
