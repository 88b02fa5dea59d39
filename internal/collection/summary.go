package collection

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/couchcryptid/tctrack/internal/domain"
)

// Rejection reasons.
const (
	ReasonSchema   = "schema"
	ReasonIdentity = "identity"
)

// Rejection is one unit or expanded record that did not make it into the
// collection.
type Rejection struct {
	Origin domain.Origin
	Reason string
	Err    error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("%s:%d: %s: %v", r.Origin.Source, r.Origin.Position, r.Reason, r.Err)
}

func (r Rejection) Unwrap() error { return r.Err }

// Summary counts the outcome of a read. Counts accumulate across Extend and
// Merge.
type Summary struct {
	Format  string
	Sources []string

	Units             int // logical input units read
	Records           int // records in the final collection
	Replaced          int // records superseded by a later one with the same key
	FieldErrors       int // field values kept as missing after a conversion error
	UnknownCategories int // categorical values outside their vocabulary

	Rejected []Rejection

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time of the read.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Err joins every rejection, or returns nil when none occurred.
func (s Summary) Err() error {
	errs := make([]error, len(s.Rejected))
	for i, r := range s.Rejected {
		errs[i] = r
	}
	return errors.Join(errs...)
}

// RejectedBy counts rejections with the given reason.
func (s Summary) RejectedBy(reason string) int {
	n := 0
	for _, r := range s.Rejected {
		if r.Reason == reason {
			n++
		}
	}
	return n
}

func (s Summary) clone() Summary {
	c := s
	c.Sources = slices.Clone(s.Sources)
	c.Rejected = slices.Clone(s.Rejected)
	return c
}

// add folds o's counts into s. Timestamps widen to cover both reads.
func (s *Summary) add(o Summary) {
	s.Sources = append(s.Sources, o.Sources...)
	s.Units += o.Units
	s.Replaced += o.Replaced
	s.FieldErrors += o.FieldErrors
	s.UnknownCategories += o.UnknownCategories
	s.Rejected = append(s.Rejected, o.Rejected...)
	if !o.StartedAt.IsZero() && (s.StartedAt.IsZero() || o.StartedAt.Before(s.StartedAt)) {
		s.StartedAt = o.StartedAt
	}
	if o.FinishedAt.After(s.FinishedAt) {
		s.FinishedAt = o.FinishedAt
	}
}
