package domain

import (
	"cmp"
	"strconv"
	"time"
)

// Kind tags the variant a column converts into. Dispatch on Kind happens once
// per field when a schema is declared, never by inspecting values.
type Kind uint8

const (
	KindString Kind = iota
	KindNumeric
	KindCategorical
	KindDatetime
	KindLatLon
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	case KindDatetime:
		return "datetime"
	case KindLatLon:
		return "latlon"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Token is the atomic unit a tokenizer yields: a trimmed text field, an XML
// leaf (text plus attributes), or a BUFR value with its unit in Attrs["units"].
type Token struct {
	Text  string
	Attrs map[string]string

	// Locator is the concrete locator the token was read from when the
	// source resolved a pattern, e.g. "windSpeed[2]/radius" for
	// "//radius". Empty when the requested locator is already concrete.
	Locator string
}

// Attr returns the named attribute or "".
func (t Token) Attr(name string) string {
	if t.Attrs == nil {
		return ""
	}
	return t.Attrs[name]
}

// Value is one converted field. Exactly one of Num, Str or Time is meaningful,
// selected by Kind. A missing value carries its Kind so tables keep their
// column types.
type Value struct {
	Kind    Kind
	Num     float64
	Str     string
	Time    time.Time
	Missing bool

	// Unknown marks a categorical value outside the declared vocabulary.
	Unknown bool

	// Err is set when the raw token violated the column's domain. The value
	// is then also Missing.
	Err error
}

// Missing returns a missing value of kind k.
func Missing(k Kind) Value { return Value{Kind: k, Missing: true} }

// Number returns a present numeric value.
func Number(v float64) Value { return Value{Kind: KindNumeric, Num: v} }

// Text returns a present string value.
func Text(s string) Value { return Value{Kind: KindString, Str: s} }

// Category returns a present categorical value.
func Category(s string) Value { return Value{Kind: KindCategorical, Str: s} }

// Timestamp returns a present datetime value in UTC.
func Timestamp(t time.Time) Value { return Value{Kind: KindDatetime, Time: t.UTC()} }

// Coordinate returns a present latitude/longitude in decimal degrees.
func Coordinate(v float64) Value { return Value{Kind: KindLatLon, Num: v} }

// IsNumber reports whether v holds a float (numeric or coordinate).
func (v Value) IsNumber() bool {
	return v.Kind == KindNumeric || v.Kind == KindLatLon
}

// String renders the value for keys and diagnostics. Missing values render
// as the empty string.
func (v Value) String() string {
	if v.Missing {
		return ""
	}
	switch v.Kind {
	case KindNumeric, KindLatLon:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindDatetime:
		return v.Time.Format(time.RFC3339)
	default:
		return v.Str
	}
}

// Equal reports whether two values hold the same data. Errors are ignored.
func (v Value) Equal(o Value) bool {
	if v.Missing || o.Missing {
		return v.Missing == o.Missing
	}
	return Compare(v, o) == 0 && v.Kind == o.Kind
}

// Compare orders two values: missing sorts first, then numbers numerically,
// times chronologically and everything else lexically.
func Compare(a, b Value) int {
	switch {
	case a.Missing && b.Missing:
		return 0
	case a.Missing:
		return -1
	case b.Missing:
		return 1
	}
	switch {
	case a.IsNumber() && b.IsNumber():
		return cmp.Compare(a.Num, b.Num)
	case a.Kind == KindDatetime && b.Kind == KindDatetime:
		return a.Time.Compare(b.Time)
	default:
		return cmp.Compare(a.String(), b.String())
	}
}
