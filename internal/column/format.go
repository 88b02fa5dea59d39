package column

import (
	"math"
	"strconv"

	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/units"
)

// Format renders a value back into the token it was converted from: scale and
// unit conversion are undone, coordinates regain their hemisphere letter and
// datetimes use the column layout. Missing values render as "".
//
// Format is used for round-trip validation. It does not reproduce zero
// padding of fixed-width fields.
func (c Column) Format(v domain.Value) string {
	if v.Missing {
		return ""
	}
	switch c.kind {
	case domain.KindNumeric:
		x := v.Num
		if c.unit != "" && c.assumedUnit != "" {
			if back, err := units.Convert(x, c.unit, c.assumedUnit); err == nil {
				x = back
			}
		}
		return formatFloat(unscale(x-c.offset, c.scale))
	case domain.KindLatLon:
		x := unscale(math.Abs(v.Num), c.scale)
		s := formatFloat(x)
		switch c.axis {
		case axisLat:
			if v.Num < 0 {
				return s + "S"
			}
			return s + "N"
		case axisLon:
			if v.Num < 0 {
				return s + "W"
			}
			return s + "E"
		}
		return formatFloat(unscale(v.Num, c.scale))
	case domain.KindDatetime:
		return v.Time.Format(c.layout)
	default:
		return v.String()
	}
}

func unscale(x, scale float64) float64 {
	if scale == 1 || scale == 0 {
		return x
	}
	if scale < 1 {
		inv := 1 / scale
		if r := math.Round(inv); math.Abs(inv-r) < 1e-9 {
			return x * r
		}
	}
	return x / scale
}

// formatFloat prints x without trailing zeros, snapping float noise below
// 1e-6 so that 13.2 / 0.1 prints as 132.
func formatFloat(x float64) string {
	r := math.Round(x*1e6) / 1e6
	if r == 0 {
		r = 0 // avoid "-0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
