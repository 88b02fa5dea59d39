package schema

import (
	"fmt"
	"slices"
	"sync"

	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/units"
)

type schemaKey struct {
	format, recordType, variant string
}

// Registry stores formats and their schema variants. It is populated once
// and frozen; after Freeze every method is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	frozen  bool
	formats map[string]Format
	schemas map[schemaKey]*Schema
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		formats: make(map[string]Format),
		schemas: make(map[schemaKey]*Schema),
	}
}

// RegisterFormat declares an input family.
func (r *Registry) RegisterFormat(f Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("register format %s: %w", f.Name, domain.ErrSchemaFrozen)
	}
	if _, ok := r.formats[f.Name]; ok {
		return fmt.Errorf("register format %s: %w", f.Name, domain.ErrDuplicateEntry)
	}
	r.formats[f.Name] = f
	return nil
}

// Register adds a schema variant. Variants are independent: adding one never
// touches another.
func (r *Registry) Register(s *Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("register %s/%s: %w", s.Format, s.Type(), domain.ErrSchemaFrozen)
	}
	if _, ok := r.formats[s.Format]; !ok {
		return fmt.Errorf("register %s/%s: unknown format", s.Format, s.Type())
	}
	if err := checkUnits(s.Fields, s.Groups); err != nil {
		return fmt.Errorf("register %s/%s: %w", s.Format, s.Type(), err)
	}
	k := schemaKey{s.Format, s.RecordType, s.Variant}
	if _, ok := r.schemas[k]; ok {
		return fmt.Errorf("register %s/%s: %w", s.Format, s.Type(), domain.ErrDuplicateEntry)
	}
	r.schemas[k] = s
	return nil
}

// checkUnits rejects columns whose canonical unit has no conversion.
func checkUnits(fields []Field, groups []Group) error {
	for _, f := range fields {
		if u := f.Column.Unit(); u != "" && !units.IsValid(u) {
			return fmt.Errorf("field %s: %w %q", f.Name, domain.ErrUnknownUnit, u)
		}
	}
	for _, g := range groups {
		if err := checkUnits(g.Fields, g.Groups); err != nil {
			return err
		}
	}
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Format returns the named format declaration.
func (r *Registry) Format(name string) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formats[name]
	return f, ok
}

// Resolve maps a discriminant onto its schema variant. It never falls back to
// an unrelated schema: a discriminant with no variant is a
// *domain.SchemaResolutionError.
func (r *Registry) Resolve(format, recordType, discriminant string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fail := &domain.SchemaResolutionError{Format: format, RecordType: recordType, Discriminant: discriminant}
	f, ok := r.formats[format]
	if !ok {
		return nil, fail
	}
	variant, ok := f.variant(discriminant)
	if !ok {
		return nil, fail
	}
	s, ok := r.schemas[schemaKey{format, recordType, variant}]
	if !ok {
		return nil, fail
	}
	return s, nil
}

// Variants lists the registered variants of a record type, sorted.
func (r *Registry) Variants(format, recordType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for k := range r.schemas {
		if k.format == format && k.recordType == recordType {
			out = append(out, k.variant)
		}
	}
	slices.Sort(out)
	return out
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry holding every built-in format.
// It is built on first use and frozen before it is returned.
func Default() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		for _, declare := range builtins {
			if err := declare(r); err != nil {
				panic(fmt.Sprintf("schema: built-in declaration: %v", err))
			}
		}
		r.Freeze()
		defaultRegistry = r
	})
	return defaultRegistry
}

// builtins declare the static tables. Each table file appends itself.
var builtins []func(*Registry) error

func register(r *Registry, f Format, schemas ...*Schema) error {
	if err := r.RegisterFormat(f); err != nil {
		return err
	}
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
