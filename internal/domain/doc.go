// Package domain models tropical cyclone track data as typed records.
//
// # Sources
//
// Three format families feed the same record model:
//
//	ATCF decks: comma-separated text lines. a-decks hold objective aid and
//	  official forecasts, b-decks the best track, e-decks probabilities and
//	  f-decks fixes (satellite, microwave, radar, aircraft, dropsonde, analysis).
//	CXML: Cyclone XML with a header, then <data> blocks per forecast type or
//	  ensemble member, each holding <disturbance> elements with <fix> children.
//	BUFR: WMO binary messages, consumed here as decoded key/value sequences.
//
// # ATCF Conventions
//
// Coordinates are integer tenths (hundredths in f-decks) with a hemisphere
// suffix: "132N" is 13.2 degrees north, "1102W" is 110.2 degrees west. South
// and west are negative after conversion.
//
// Date-time groups are YYYYMMDDHH (YYYYMMDDHHMM in f-decks). For best-track
// lines the technique-number field holds minutes past the hour.
//
// Wind radii are one line per threshold (34, 50, 64 kt) with four values
// ordered clockwise from the quadrant named by the wind code (NEQ, SEQ, SWQ,
// NWQ). "AAA" means a single full-circle radius.
//
// Missing values: blank fields, and the literals "-999", "9999", "-9999" and
// "nan" in numeric columns.
//
// # Records
//
// A Record maps column names to Values and carries the format's identity keys
// (basin, cyclone number, date-time group, technique, forecast hour or member).
// Repeated substructures such as per-quadrant radii are expanded into sibling
// records that copy the parent's identity keys and add their own occurrence
// keys ("threshold", "sector"). Tokens the schema does not claim are kept in
// Record.Extra so no raw information is lost.
//
// # Errors
//
// A bad token in an ordinary field becomes a FieldConversionError attached to
// that Value; the record survives. A bad identity key rejects the record with
// an IdentityKeyError. A malformed source aborts the read with a
// SourceFormatError.
package domain
