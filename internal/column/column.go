// Package column declares typed column descriptors. Each Column knows how to
// turn one raw token into a typed domain.Value, which tokens mean "missing",
// and how to scale or unit-convert the result.
package column

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/units"
)

// CombineFunc merges the converted parts of a composite column.
type CombineFunc func(parts []domain.Value) (domain.Value, error)

type axis uint8

const (
	axisNone axis = iota
	axisLat
	axisLon
)

// Column is a typed column descriptor. The zero value is a string column.
// Columns are values; options return modified copies, so declared schemas
// can share them safely.
type Column struct {
	kind          domain.Kind
	missing       []string
	missingValues []float64
	scale         float64
	offset        float64
	unit          string // canonical output unit
	assumedUnit   string // unit of tokens that carry no "units" attribute
	round         bool
	floor         bool
	vocabulary    []string
	layout        string
	axis          axis
	parts         []Column
	resultKind    domain.Kind
	combine       CombineFunc
}

// Option customizes a column at declaration time.
type Option func(*Column)

// WithMissing declares additional tokens that mean "no value".
func WithMissing(tokens ...string) Option {
	return func(c *Column) { c.missing = append(slices.Clone(c.missing), tokens...) }
}

// WithMissingValues declares numeric sentinels compared after parsing and
// before scaling, e.g. BUFR's missing-long marker.
func WithMissingValues(values ...float64) Option {
	return func(c *Column) { c.missingValues = append(slices.Clone(c.missingValues), values...) }
}

// WithScale multiplies parsed numbers by scale. Latitude/longitude use this for
// tenths or hundredths of degrees.
func WithScale(scale float64) Option {
	return func(c *Column) { c.scale = scale }
}

// WithOffset adds offset after scaling.
func WithOffset(offset float64) Option {
	return func(c *Column) { c.offset = offset }
}

// WithUnit converts values into the canonical unit. Tokens carrying a "units"
// attribute are converted from that unit; others are assumed to be in assumed
// (pass "" when they are already canonical).
func WithUnit(canonical, assumed string) Option {
	return func(c *Column) {
		c.unit = canonical
		c.assumedUnit = assumed
	}
}

// WithRound rounds converted numbers to the nearest integer.
func WithRound() Option {
	return func(c *Column) { c.round = true }
}

// WithFloor truncates converted numbers towards negative infinity. BUFR wind
// thresholds use it to map 18, 26 and 33 m/s onto 34, 50 and 64 kt.
func WithFloor() Option {
	return func(c *Column) { c.floor = true }
}

// DefaultMissing are the tokens every column treats as "no value".
var DefaultMissing = []string{"", "nan", "NaN", "MISSING"}

func newColumn(kind domain.Kind, opts []Option) Column {
	c := Column{kind: kind, scale: 1, missing: slices.Clone(DefaultMissing)}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Numeric parses floating point numbers.
func Numeric(opts ...Option) Column {
	return newColumn(domain.KindNumeric, opts)
}

// String passes trimmed text through.
func String(opts ...Option) Column {
	return newColumn(domain.KindString, opts)
}

// Categorical validates membership in vocabulary. A nil vocabulary accepts
// every value. Unknown values are kept and flagged, not rejected.
func Categorical(vocabulary []string, opts ...Option) Column {
	c := newColumn(domain.KindCategorical, opts)
	c.vocabulary = slices.Clone(vocabulary)
	return c
}

// Datetime parses timestamps with a Go time layout, in UTC. An empty layout
// means RFC 3339.
func Datetime(layout string, opts ...Option) Column {
	c := newColumn(domain.KindDatetime, opts)
	if layout == "" {
		layout = time.RFC3339
	}
	c.layout = layout
	return c
}

// Latitude parses "132N"-style or signed latitudes, scaled to degrees.
func Latitude(opts ...Option) Column {
	c := newColumn(domain.KindLatLon, opts)
	c.axis = axisLat
	return c
}

// Longitude parses "1102W"-style or signed longitudes, scaled to degrees.
func Longitude(opts ...Option) Column {
	c := newColumn(domain.KindLatLon, opts)
	c.axis = axisLon
	return c
}

// Composite converts several tokens with parts and merges them with combine.
// kind is the kind of the merged value.
func Composite(kind domain.Kind, combine CombineFunc, parts ...Column) Column {
	return Column{
		kind:       domain.KindComposite,
		scale:      1,
		parts:      slices.Clone(parts),
		resultKind: kind,
		combine:    combine,
	}
}

// Kind returns the declared kind. Composite columns report KindComposite.
func (c Column) Kind() domain.Kind { return c.kind }

// ValueKind returns the kind of values the column produces.
func (c Column) ValueKind() domain.Kind {
	if c.kind == domain.KindComposite {
		return c.resultKind
	}
	return c.kind
}

// Arity is the number of tokens the column consumes.
func (c Column) Arity() int {
	if c.kind == domain.KindComposite {
		return len(c.parts)
	}
	return 1
}

// Unit returns the canonical unit, if any.
func (c Column) Unit() string { return c.unit }

// IsMissingToken reports whether text is a declared missing sentinel.
func (c Column) IsMissingToken(text string) bool {
	return slices.Contains(c.missing, strings.TrimSpace(text))
}

// Convert turns one token into a value. A missing sentinel yields a missing
// value and no error. Any other token outside the column's domain yields a
// missing value and an error; nothing is silently truncated.
func (c Column) Convert(tok domain.Token) (domain.Value, error) {
	if c.kind == domain.KindComposite {
		return c.ConvertTokens([]domain.Token{tok})
	}
	text := strings.TrimSpace(tok.Text)
	if c.IsMissingToken(text) {
		return domain.Missing(c.kind), nil
	}

	switch c.kind {
	case domain.KindNumeric:
		return c.convertNumeric(text, tok)
	case domain.KindCategorical:
		v := domain.Category(text)
		v.Unknown = c.vocabulary != nil && !slices.Contains(c.vocabulary, text)
		return v, nil
	case domain.KindDatetime:
		t, err := time.ParseInLocation(c.layout, text, time.UTC)
		if err != nil {
			return domain.Missing(c.kind), fmt.Errorf("%w: %q does not match %q", domain.ErrBadTimestamp, text, c.layout)
		}
		return domain.Timestamp(t), nil
	case domain.KindLatLon:
		return c.convertLatLon(text, tok)
	default:
		return domain.Text(text), nil
	}
}

// ConvertTokens converts the tokens of a composite column. Non-composite
// columns use the first token.
func (c Column) ConvertTokens(toks []domain.Token) (domain.Value, error) {
	if c.kind != domain.KindComposite {
		if len(toks) == 0 {
			return domain.Missing(c.kind), nil
		}
		return c.Convert(toks[0])
	}
	vals := make([]domain.Value, len(c.parts))
	for i, part := range c.parts {
		var tok domain.Token
		if i < len(toks) {
			tok = toks[i]
		}
		v, err := part.Convert(tok)
		if err != nil {
			return domain.Missing(c.resultKind), err
		}
		vals[i] = v
	}
	v, err := c.combine(vals)
	if err != nil {
		return domain.Missing(c.resultKind), err
	}
	return v, nil
}

func (c Column) convertNumeric(text string, tok domain.Token) (domain.Value, error) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) {
		return domain.Missing(c.kind), fmt.Errorf("%w: %q", domain.ErrNotNumeric, text)
	}
	if slices.Contains(c.missingValues, f) {
		return domain.Missing(c.kind), nil
	}
	v := applyScale(f, c.scale) + c.offset
	if c.unit != "" {
		from := tok.Attr("units")
		if from == "" {
			from = c.assumedUnit
		}
		if from != "" {
			v, err = units.Convert(v, from, c.unit)
			if err != nil {
				return domain.Missing(c.kind), err
			}
		}
	}
	switch {
	case c.round:
		v = math.Round(v)
	case c.floor:
		v = math.Floor(v)
	}
	return domain.Number(v), nil
}

func (c Column) convertLatLon(text string, tok domain.Token) (domain.Value, error) {
	sign := 1.0
	last := text[len(text)-1]
	if last < '0' || last > '9' {
		switch {
		case (last == 'N' || last == 'n') && c.axis != axisLon,
			(last == 'E' || last == 'e') && c.axis != axisLat:
		case (last == 'S' || last == 's') && c.axis != axisLon,
			(last == 'W' || last == 'w') && c.axis != axisLat:
			sign = -1
		case last == '.':
		default:
			return domain.Missing(c.kind), fmt.Errorf("%w: %q", domain.ErrBadHemisphere, text)
		}
		if last != '.' {
			text = strings.TrimSpace(text[:len(text)-1])
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) {
		return domain.Missing(c.kind), fmt.Errorf("%w: %q", domain.ErrNotNumeric, text)
	}
	if slices.Contains(c.missingValues, f) {
		return domain.Missing(c.kind), nil
	}
	// CXML writes the hemisphere into the unit attribute ("deg S").
	hemi := strings.ToUpper(strings.TrimSpace(tok.Attr("units")))
	if strings.HasSuffix(hemi, " S") || strings.HasSuffix(hemi, " W") {
		sign = -sign
	}
	return domain.Coordinate(sign * applyScale(f, c.scale)), nil
}

// applyScale multiplies by scale, dividing by the integer inverse when the
// scale is a unit fraction so that 132 * 0.1 is exactly 13.2.
func applyScale(f, scale float64) float64 {
	if scale == 1 || scale == 0 {
		return f
	}
	if scale < 1 {
		inv := 1 / scale
		if r := math.Round(inv); math.Abs(inv-r) < 1e-9 {
			return f / r
		}
	}
	return f * scale
}
