package domain

import (
	"maps"
	"slices"
	"strings"
)

// Origin locates the logical input unit a record was assembled from.
type Origin struct {
	Source   string // file name or caller-supplied label
	Position int    // 1-based line, element or message index
}

// Record is the uniform output of assembly. Records are treated as immutable
// once returned by the assembler; use With to derive a modified copy.
type Record struct {
	Format string // adeck, bdeck, fdeck, edeck, cxml, bufr
	Type   string // record type and variant, plus the group path for expanded rows

	// Columns lists the names in Values in declaration order.
	Columns []string
	Values  map[string]Value

	// Extra holds raw tokens the schema did not claim, keyed by locator.
	Extra map[string]Token

	Origin Origin
}

// NewRecord returns an empty record ready for Set calls.
func NewRecord(format, typ string, origin Origin) Record {
	return Record{
		Format: format,
		Type:   typ,
		Values: make(map[string]Value),
		Origin: origin,
	}
}

// Get returns the named value, or a missing string value when absent.
func (r Record) Get(name string) Value {
	if v, ok := r.Values[name]; ok {
		return v
	}
	return Missing(KindString)
}

// Has reports whether the record declares the named column.
func (r Record) Has(name string) bool {
	_, ok := r.Values[name]
	return ok
}

// Set stores a value, appending the name to Columns on first use. Only the
// assembler and collection helpers call Set, before a record is published.
func (r *Record) Set(name string, v Value) {
	if r.Values == nil {
		r.Values = make(map[string]Value)
	}
	if _, ok := r.Values[name]; !ok {
		r.Columns = append(r.Columns, name)
	}
	r.Values[name] = v
}

// Clone returns a deep copy whose maps can be modified independently.
func (r Record) Clone() Record {
	c := r
	c.Columns = slices.Clone(r.Columns)
	c.Values = maps.Clone(r.Values)
	if r.Extra != nil {
		c.Extra = maps.Clone(r.Extra)
	}
	if c.Values == nil {
		c.Values = make(map[string]Value)
	}
	return c
}

// With returns a copy of r with one value replaced or added.
func (r Record) With(name string, v Value) Record {
	c := r.Clone()
	c.Set(name, v)
	return c
}

// FieldErrors returns the conversion errors attached to the record's fields
// in column order.
func (r Record) FieldErrors() []error {
	var errs []error
	for _, name := range r.Columns {
		if err := r.Values[name].Err; err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// UnknownCategories counts categorical values outside their vocabulary.
func (r Record) UnknownCategories() int {
	n := 0
	for _, v := range r.Values {
		if v.Unknown {
			n++
		}
	}
	return n
}

// Key returns the values of the named key columns.
func (r Record) Key(columns []string) []Value {
	key := make([]Value, len(columns))
	for i, c := range columns {
		key[i] = r.Get(c)
	}
	return key
}

// KeyString encodes the record type and key tuple into a map key.
func (r Record) KeyString(columns []string) string {
	var b strings.Builder
	b.WriteString(r.Type)
	for _, v := range r.Key(columns) {
		b.WriteByte(0x1f)
		if v.Missing {
			b.WriteByte(0x00)
			continue
		}
		b.WriteString(v.String())
	}
	return b.String()
}

// CompareKeys orders two records by key tuple, then by type.
func CompareKeys(a, b Record, columns []string) int {
	for _, c := range columns {
		if n := Compare(a.Get(c), b.Get(c)); n != 0 {
			return n
		}
	}
	return strings.Compare(a.Type, b.Type)
}
