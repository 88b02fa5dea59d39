// Package assemble turns a tokenized input unit into records by walking its
// schema: fields are converted in declared order, repeated groups fan out
// into sibling records, and unclaimed tokens are kept in the Extra bucket.
package assemble

import (
	"maps"
	"slices"
	"strings"

	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/schema"
)

// Result is the outcome of assembling one unit.
type Result struct {
	// Records holds the unit's own record first (unless the schema
	// suppresses it), then the expanded sibling records.
	Records []domain.Record

	// Rejected holds *domain.IdentityKeyError values for sibling records
	// dropped because a group key failed to convert.
	Rejected []error
}

// Resolve reads the unit's discriminant and looks up its schema.
func Resolve(reg *schema.Registry, format string, src Source) (*schema.Schema, error) {
	f, ok := reg.Format(format)
	if !ok {
		return nil, &domain.SchemaResolutionError{Format: format}
	}
	return reg.Resolve(format, f.RecordType, f.Discriminant(func(loc string) (domain.Token, bool) {
		return lookup(src, loc)
	}))
}

// Assemble converts src with s. A conversion failure in an identity field
// rejects the unit with a *domain.IdentityKeyError; failures in other fields
// are attached to the field's value and assembly continues.
func Assemble(src Source, s *schema.Schema, origin domain.Origin) (Result, error) {
	t := newTracker(src)
	a := &assembler{}

	parent := domain.NewRecord(s.Format, s.Type(), origin)
	if err := a.fill(&parent, t, s.Fields); err != nil {
		return Result{}, err
	}
	carried := carry(nil, s.Fields)

	groups := slices.Clone(s.Groups)
	for _, f := range s.Fields {
		if f.Cardinality == schema.Repeated {
			groups = append(groups, repeatedGroup(f))
		}
	}
	var siblings []domain.Record
	for _, g := range groups {
		siblings = append(siblings, a.expand(t, g, parent, carried, s.Type())...)
	}

	extra := make(map[string]domain.Token)
	for _, loc := range src.Locators() {
		if t.claimed[loc] {
			continue
		}
		if tok, ok := src.Token(loc); ok {
			extra[loc] = tok
		}
	}

	var records []domain.Record
	if !s.NoParentRow {
		records = append(records, parent)
	}
	records = append(records, siblings...)
	if len(extra) > 0 && len(records) > 0 {
		records[0].Extra = extra
	}
	return Result{Records: records, Rejected: a.rejected}, nil
}

type assembler struct {
	rejected []error
}

// fill converts fields into rec.
func (a *assembler) fill(rec *domain.Record, src Source, fields []schema.Field) error {
	for _, f := range fields {
		if f.Cardinality == schema.Repeated {
			continue
		}
		toks := make([]domain.Token, len(f.Locators))
		for i, loc := range f.Locators {
			toks[i], _ = lookup(src, loc)
		}
		v, err := f.Column.ConvertTokens(toks)
		if err == nil && v.Missing && f.Cardinality == schema.ExactlyOne {
			err = domain.ErrMissingField
		}
		if err != nil {
			raw := rawText(toks)
			if f.Identity {
				return &domain.IdentityKeyError{Field: f.Name, Token: raw, Err: err}
			}
			v = domain.Missing(f.Column.ValueKind())
			v.Err = &domain.FieldConversionError{Field: f.Name, Token: raw, Err: err}
		}
		rec.Set(f.Name, v)
	}
	return nil
}

// expand fans one group out into sibling records. Each occurrence starts
// from the carried identity of its parent.
func (a *assembler) expand(src Source, g schema.Group, parent domain.Record, carried []string, typ string) []domain.Record {
	var occurrences []Source
	if g.Slots != nil {
		for _, slot := range g.Slots {
			occurrences = append(occurrences, slotSource{parent: src, slot: slot})
		}
	} else {
		occurrences = src.Occurrences(g.Locator)
	}

	typ += "/" + g.Name
	next := carry(carried, g.Fields)
	var emitted, nested []domain.Record
	for _, occ := range occurrences {
		rec := domain.NewRecord(parent.Format, typ, parent.Origin)
		for _, name := range carried {
			rec.Set(name, parent.Get(name))
		}
		if err := a.fill(&rec, occ, g.Fields); err != nil {
			a.rejected = append(a.rejected, err)
			continue
		}
		if g.Emit && keep(rec, g) {
			emitted = append(emitted, rec)
		}
		for _, sub := range g.Groups {
			nested = append(nested, a.expand(occ, sub, rec, next, typ)...)
		}
	}
	if g.ZeroMeansEmpty != "" && allZero(emitted, g.ZeroMeansEmpty) {
		emitted = nil
	}
	return append(emitted, nested...)
}

// carry extends names with the fields that propagate into sibling records.
func carry(names []string, fields []schema.Field) []string {
	out := slices.Clone(names)
	for _, f := range fields {
		if (f.Identity || f.Inherit) && !slices.Contains(out, f.Name) {
			out = append(out, f.Name)
		}
	}
	return out
}

func keep(rec domain.Record, g schema.Group) bool {
	for _, name := range g.Require {
		if rec.Get(name).Missing {
			return false
		}
	}
	if len(g.RequireAny) == 0 {
		return true
	}
	for _, name := range g.RequireAny {
		if !rec.Get(name).Missing {
			return true
		}
	}
	return false
}

func allZero(records []domain.Record, name string) bool {
	for _, r := range records {
		if v := r.Get(name); !v.Missing && v.Num != 0 {
			return false
		}
	}
	return true
}

// repeatedGroup expands a field of repeated cardinality: one sibling per
// occurrence of its locator.
func repeatedGroup(f schema.Field) schema.Group {
	inner := f
	inner.Locators = []string{"."}
	inner.Cardinality = schema.Optional
	return schema.Group{
		Name:    f.Name,
		Locator: f.Locators[0],
		Fields:  []schema.Field{inner},
		Emit:    true,
		Require: []string{f.Name},
	}
}

func rawText(toks []domain.Token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// ExtraKeys returns the sorted locators in a record's Extra bucket.
func ExtraKeys(r domain.Record) []string {
	return slices.Sorted(maps.Keys(r.Extra))
}
