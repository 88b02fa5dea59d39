// Package schema declares how raw tokens map to typed columns for every
// supported record shape. Schemas are data: ordered field tables bound to a
// (format, record type, variant) key and looked up by a record's
// discriminant.
package schema

import (
	"slices"
	"strings"

	"github.com/couchcryptid/tctrack/internal/column"
	"github.com/couchcryptid/tctrack/internal/domain"
)

// Cardinality says how many times a field may occur in one input unit.
type Cardinality uint8

const (
	// Optional fields contribute a missing value when absent.
	Optional Cardinality = iota
	// ExactlyOne fields are required. A missing value is an error.
	ExactlyOne
	// Repeated fields spawn one sibling record per occurrence.
	Repeated
)

func (c Cardinality) String() string {
	switch c {
	case ExactlyOne:
		return "exactly-one"
	case Repeated:
		return "repeated"
	default:
		return "optional"
	}
}

// Field binds one output column to the locators of its raw tokens. Composite
// columns take one locator per part. A locator starting with "=" is a literal
// token.
type Field struct {
	Name        string
	Locators    []string
	Column      column.Column
	Cardinality Cardinality

	// Identity fields form the record's natural key. They are copied into
	// every sibling record, and a conversion failure rejects the record.
	Identity bool

	// Inherit copies a non-identity value into sibling records as well.
	Inherit bool
}

// Group is a repeated substructure expanded wide-to-long. Occurrences come
// either from Slots (positional formats) or from the source's occurrences of
// Locator (nested formats).
type Group struct {
	Name    string
	Locator string

	// Slots maps the group's local locators onto the parent's locators, one
	// map per occurrence. Locators missing from a slot resolve against the
	// parent unchanged.
	Slots []map[string]string

	Fields []Field
	Groups []Group

	// Emit produces one record per occurrence. Non-emitting groups only
	// contribute their fields to nested groups.
	Emit bool

	// Require lists fields that must be present for an occurrence to emit.
	Require []string

	// RequireAny drops occurrences in which every listed field is missing.
	RequireAny []string

	// ZeroMeansEmpty names a field whose value being zero in every
	// occurrence means the whole group carries no data.
	ZeroMeansEmpty string
}

// Schema is the ordered field table of one record shape.
type Schema struct {
	Format     string
	RecordType string
	Variant    string
	Fields     []Field
	Groups     []Group

	// NoParentRow suppresses the record of the unit itself. Its fields are
	// still assembled and inherited by the group records.
	NoParentRow bool
}

// Type is the record type tag written to assembled records.
func (s *Schema) Type() string {
	if s.Variant == "" {
		return s.RecordType
	}
	return s.RecordType + "/" + s.Variant
}

// Format describes one input family: its natural key and how a unit's
// discriminant is read and mapped onto a variant.
type Format struct {
	Name       string
	RecordType string

	// Keys is the identity key tuple used to sort and deduplicate records.
	Keys []string

	// Discriminators are tried in order; the first present token is the
	// discriminant.
	Discriminators []string

	// Variants maps a discriminant to a schema variant. An empty map means
	// the discriminant is the variant.
	Variants map[string]string

	// DefaultVariant applies to discriminants absent from Variants. Empty
	// means unknown discriminants fail to resolve.
	DefaultVariant string
}

// Discriminant reads the discriminant of a unit through lookup.
func (f Format) Discriminant(lookup func(locator string) (domain.Token, bool)) string {
	for _, loc := range f.Discriminators {
		if tok, ok := lookup(loc); ok {
			if s := strings.TrimSpace(tok.Text); s != "" {
				return s
			}
		}
	}
	return ""
}

func (f Format) variant(discriminant string) (string, bool) {
	if len(f.Variants) == 0 {
		return discriminant, discriminant != ""
	}
	if v, ok := f.Variants[discriminant]; ok {
		return v, true
	}
	if f.DefaultVariant != "" {
		return f.DefaultVariant, true
	}
	return "", false
}

// KeyColumns returns a copy of the key tuple.
func (f Format) KeyColumns() []string { return slices.Clone(f.Keys) }
