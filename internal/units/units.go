// Package units provides canonical unit names and conversions for the
// quantities found in cyclone track data.
package units

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/tctrack/internal/domain"
)

// Canonical units. Track tables use the ATCF conventions regardless of the
// source format.
const (
	Knots       = "kt"
	MPS         = "m/s"
	KMPH        = "km/h"
	MPH         = "mph"
	Hectopascal = "hPa"
	Pascal      = "Pa"
	NauticalMi  = "nm"
	Kilometre   = "km"
	Metre       = "m"
	StatuteMi   = "mi"
	Feet        = "ft"
	Degree      = "deg"
	Celsius     = "degC"
	Kelvin      = "K"
)

type dimension int

const (
	speed dimension = iota + 1
	pressure
	length
	angle
	temperature
)

type unitDef struct {
	dim    dimension
	factor float64 // multiply to reach the dimension's base unit
	offset float64 // added after factor, temperature only
}

// Base units: m/s, Pa, m, degree, kelvin.
var defs = map[string]unitDef{
	Knots:       {dim: speed, factor: 1852.0 / 3600.0},
	MPS:         {dim: speed, factor: 1},
	KMPH:        {dim: speed, factor: 1000.0 / 3600.0},
	MPH:         {dim: speed, factor: 1609.344 / 3600.0},
	Hectopascal: {dim: pressure, factor: 100},
	Pascal:      {dim: pressure, factor: 1},
	NauticalMi:  {dim: length, factor: 1852},
	Kilometre:   {dim: length, factor: 1000},
	Metre:       {dim: length, factor: 1},
	StatuteMi:   {dim: length, factor: 1609.344},
	Feet:        {dim: length, factor: 0.3048},
	Degree:      {dim: angle, factor: 1},
	Celsius:     {dim: temperature, factor: 1, offset: 273.15},
	Kelvin:      {dim: temperature, factor: 1},
}

// aliases maps the spellings seen in CXML unit attributes and BUFR tables to
// canonical names.
var aliases = map[string]string{
	"kt": Knots, "kts": Knots, "knot": Knots, "knots": Knots,
	"m/s": MPS, "m s-1": MPS, "ms-1": MPS, "m s**-1": MPS, "mps": MPS,
	"km/h": KMPH, "kmh": KMPH, "kph": KMPH, "kmph": KMPH,
	"mph": MPH,
	"hpa": Hectopascal, "mb": Hectopascal, "mbar": Hectopascal, "millibar": Hectopascal,
	"pa": Pascal,
	"nm": NauticalMi, "nmi": NauticalMi, "n mi": NauticalMi, "nautical mile": NauticalMi,
	"km": Kilometre,
	"m": Metre,
	"mi": StatuteMi,
	"ft": Feet, "feet": Feet,
	"deg": Degree, "degree": Degree, "degrees": Degree, "degree true": Degree,
	"deg n": Degree, "deg s": Degree, "deg e": Degree, "deg w": Degree,
	"c": Celsius, "degc": Celsius, "celsius": Celsius, "deg c": Celsius,
	"k": Kelvin,
}

// Normalize maps a unit spelling to its canonical name.
func Normalize(unit string) (string, bool) {
	u, ok := aliases[strings.ToLower(strings.TrimSpace(unit))]
	return u, ok
}

// IsValid checks if the given unit spelling is recognized.
func IsValid(unit string) bool {
	_, ok := Normalize(unit)
	return ok
}

// Convert converts v from one unit to another of the same dimension.
func Convert(v float64, from, to string) (float64, error) {
	f, ok := Normalize(from)
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownUnit, from)
	}
	t, ok := Normalize(to)
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownUnit, to)
	}
	if f == t {
		return v, nil
	}
	fd, td := defs[f], defs[t]
	if fd.dim != td.dim {
		return 0, fmt.Errorf("%w: cannot convert %s to %s", domain.ErrUnknownUnit, f, t)
	}
	base := v*fd.factor + fd.offset
	return (base - td.offset) / td.factor, nil
}
