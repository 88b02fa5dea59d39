package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField   = errors.New("required field missing")
	ErrNotNumeric     = errors.New("not a number")
	ErrBadHemisphere  = errors.New("invalid hemisphere")
	ErrBadTimestamp   = errors.New("invalid timestamp")
	ErrUnknownUnit    = errors.New("unknown unit")
	ErrTooFewTokens   = errors.New("too few tokens")
	ErrSchemaFrozen   = errors.New("schema registry is frozen")
	ErrDuplicateEntry = errors.New("duplicate schema entry")
)

// SchemaResolutionError reports that no schema matches a record's discriminant.
type SchemaResolutionError struct {
	Format       string
	RecordType   string
	Discriminant string
}

func (e *SchemaResolutionError) Error() string {
	return fmt.Sprintf("no schema for %s/%s with discriminant %q", e.Format, e.RecordType, e.Discriminant)
}

// FieldConversionError is attached to a single non-identity field whose raw
// token violates its column's domain. The rest of the record survives.
type FieldConversionError struct {
	Field string
	Token string
	Err   error
}

func (e *FieldConversionError) Error() string {
	return fmt.Sprintf("field %s: convert %q: %v", e.Field, e.Token, e.Err)
}

func (e *FieldConversionError) Unwrap() error { return e.Err }

// IdentityKeyError rejects a whole record because one of its identity key
// fields could not be converted.
type IdentityKeyError struct {
	Field string
	Token string
	Err   error
}

func (e *IdentityKeyError) Error() string {
	return fmt.Sprintf("identity key %s: convert %q: %v", e.Field, e.Token, e.Err)
}

func (e *IdentityKeyError) Unwrap() error { return e.Err }

// SourceFormatError is raised by a tokenizer for malformed structure. It aborts
// the read of that source.
type SourceFormatError struct {
	Source   string
	Position int
	Err      error
}

func (e *SourceFormatError) Error() string {
	if e.Position > 0 {
		return fmt.Sprintf("%s:%d: malformed source: %v", e.Source, e.Position, e.Err)
	}
	return fmt.Sprintf("%s: malformed source: %v", e.Source, e.Err)
}

func (e *SourceFormatError) Unwrap() error { return e.Err }
