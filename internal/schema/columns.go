package schema

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/tctrack/internal/column"
	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/units"
)

// ATCF missing-value literals.
var atcfMissing = []string{"-999", "9999", "-9999"}

// Vocabularies shared by several tables.
var (
	basins = []string{"AL", "AS", "BB", "CP", "EP", "IO", "LS", "SH", "SL", "WP"}

	developmentLevels = []string{
		"DB", "TD", "TS", "TY", "ST", "TC", "HU", "SD", "SS",
		"EX", "PT", "IN", "DS", "LO", "WV", "ET", "MD", "GN", "XX",
	}

	subregions = []string{"A", "B", "C", "E", "L", "P", "Q", "S", "W"}

	quadrants = []string{"NEQ", "SEQ", "SWQ", "NWQ"}
	octants   = []string{"NNEO", "ENEO", "ESEO", "SSEO", "SSWO", "WSWO", "WNWO", "NNWO"}

	radiusCodes = slices.Concat([]string{"AAA"}, quadrants, octants)
)

func atcfNum(opts ...column.Option) column.Column {
	return column.Numeric(append([]column.Option{column.WithMissing(atcfMissing...)}, opts...)...)
}

func atcfLat(scale float64) column.Column {
	return column.Latitude(column.WithScale(scale), column.WithMissing(atcfMissing...))
}

func atcfLon(scale float64) column.Column {
	return column.Longitude(column.WithScale(scale), column.WithMissing(atcfMissing...))
}

func str() column.Column { return column.String() }

func cat(vocab ...string) column.Column { return column.Categorical(vocab) }

func fld(name, locator string, col column.Column) Field {
	return Field{Name: name, Locators: []string{locator}, Column: col}
}

func key(name, locator string, col column.Column) Field {
	return Field{Name: name, Locators: []string{locator}, Column: col, Identity: true, Cardinality: ExactlyOne}
}

func composite(name string, col column.Column, locators ...string) Field {
	return Field{Name: name, Locators: locators, Column: col}
}

// plusDuration adds the numeric parts, scaled by unit, to the leading time.
// Missing offsets count as zero; a missing base time stays missing.
func plusDuration(unit time.Duration, sign float64) column.CombineFunc {
	return func(parts []domain.Value) (domain.Value, error) {
		if parts[0].Missing {
			return domain.Missing(domain.KindDatetime), nil
		}
		t := parts[0].Time
		for _, p := range parts[1:] {
			if !p.Missing {
				t = t.Add(time.Duration(sign * p.Num * float64(unit)))
			}
		}
		return domain.Timestamp(t), nil
	}
}

// plusMinutesHours handles the best-track case: DTG + minutes + tau hours.
func plusMinutesHours(parts []domain.Value) (domain.Value, error) {
	if parts[0].Missing {
		return domain.Missing(domain.KindDatetime), nil
	}
	t := parts[0].Time
	if !parts[1].Missing {
		t = t.Add(time.Duration(parts[1].Num) * time.Minute)
	}
	if !parts[2].Missing {
		t = t.Add(time.Duration(parts[2].Num * float64(time.Hour)))
	}
	return domain.Timestamp(t), nil
}

// validTime is datetime + tau hours.
var validTime = column.Composite(domain.KindDatetime, plusDuration(time.Hour, 1),
	column.Datetime("2006010215"), atcfNum())

// sectorName turns a radius code and a 1-based ordinal into the sector the
// ordinal describes, counting clockwise from the code's starting sector.
func sectorName(parts []domain.Value) (domain.Value, error) {
	code, ord := parts[0], parts[1]
	if code.Missing || ord.Missing {
		return domain.Missing(domain.KindCategorical), nil
	}
	n := int(ord.Num) - 1
	name := strings.ToUpper(code.Str)
	var ring []string
	switch {
	case name == "AAA":
		if n != 0 {
			return domain.Missing(domain.KindCategorical), nil
		}
		return domain.Category("AAA"), nil
	case slices.Contains(quadrants, name):
		ring = quadrants
	case slices.Contains(octants, name):
		ring = octants
	default:
		v := domain.Category(fmt.Sprintf("%s%d", name, n+1))
		v.Unknown = true
		return v, nil
	}
	if n < 0 || n >= len(ring) {
		return domain.Missing(domain.KindCategorical), nil
	}
	start := slices.Index(ring, name)
	return domain.Category(ring[(start+n)%len(ring)]), nil
}

var sector = column.Composite(domain.KindCategorical, sectorName, cat(radiusCodes...), column.Numeric())

// bearingSectors names BUFR bearing pairs.
var bearingSectors = map[[2]float64]string{
	{0, 90}:    "NEQ",
	{90, 180}:  "SEQ",
	{180, 270}: "SWQ",
	{270, 0}:   "NWQ",
	{270, 360}: "NWQ",
}

func bearingSector(parts []domain.Value) (domain.Value, error) {
	from, to := parts[0], parts[1]
	if from.Missing || to.Missing {
		return domain.Missing(domain.KindCategorical), nil
	}
	if s, ok := bearingSectors[[2]float64{from.Num, to.Num}]; ok {
		return domain.Category(s), nil
	}
	v := domain.Category(fmt.Sprintf("%.0f:%.0f", from.Num, to.Num))
	v.Unknown = true
	return v, nil
}

// modelTechs maps CXML model names onto ATCF technique names. A %02d verb
// takes the ensemble member.
var modelTechs = map[string]string{
	"GEFS":      "AP%02d",
	"GFS":       "AVNO",
	"MOGREPS-G": "EG%02d",
}

func modelTech(parts []domain.Value) (domain.Value, error) {
	model, member := parts[0], parts[1]
	if model.Missing {
		return domain.Missing(domain.KindString), nil
	}
	pattern, ok := modelTechs[strings.ToUpper(model.Str)]
	if !ok {
		return domain.Text(model.Str), nil
	}
	if !strings.Contains(pattern, "%") {
		return domain.Text(pattern), nil
	}
	m := 0
	if !member.Missing {
		m = int(member.Num)
	}
	return domain.Text(fmt.Sprintf(pattern, m)), nil
}

// structuralTime assembles year, month, day, hour and minute fields.
func structuralTime(parts []domain.Value) (domain.Value, error) {
	var n [5]int
	for i, p := range parts[:5] {
		if p.Missing {
			if i < 3 {
				return domain.Missing(domain.KindDatetime), nil
			}
			continue
		}
		if p.Num != math.Trunc(p.Num) {
			return domain.Missing(domain.KindDatetime), fmt.Errorf("%w: non-integral component %v", domain.ErrBadTimestamp, p.Num)
		}
		n[i] = int(p.Num)
	}
	if n[1] < 1 || n[1] > 12 || n[2] < 1 || n[2] > 31 || n[3] > 23 || n[4] > 59 {
		return domain.Missing(domain.KindDatetime), fmt.Errorf("%w: %04d-%02d-%02d %02d:%02d", domain.ErrBadTimestamp, n[0], n[1], n[2], n[3], n[4])
	}
	return domain.Timestamp(time.Date(n[0], time.Month(n[1]), n[2], n[3], n[4], 0, 0, time.UTC)), nil
}

// Unit helpers for formats that label their own units.
func speedKt(assumed string) column.Option  { return column.WithUnit(units.Knots, assumed) }
func pressHPa(assumed string) column.Option { return column.WithUnit(units.Hectopascal, assumed) }
func distNM(assumed string) column.Option   { return column.WithUnit(units.NauticalMi, assumed) }
