// Package collection accumulates assembled records into an ordered,
// deduplicated table. A Builder ingests units from a Scanner; the resulting
// Collection is sorted by the format's identity key tuple and owned by the
// caller.
package collection

import (
	"cmp"
	"slices"
	"strings"

	"github.com/couchcryptid/tctrack/internal/domain"
)

// Collection is an immutable, sorted table of records sharing a format.
type Collection struct {
	format  string
	keys    []string
	records []domain.Record
	columns []string
	summary Summary
}

// New builds a collection from records, keeping the last record for each
// (type, key tuple).
func New(format string, keys []string, records []domain.Record) *Collection {
	st := newState(format, keys, nil)
	for _, r := range records {
		st.put(r)
	}
	return st.collection()
}

// WithRecords returns a collection of the same format and keys holding
// records, deduplicated and sorted as by New. The read summary is kept.
func (c *Collection) WithRecords(records []domain.Record) *Collection {
	out := New(c.format, c.keys, records)
	out.summary = c.summary.clone()
	out.summary.Records = out.Len()
	return out
}

// Format returns the input family the records came from.
func (c *Collection) Format() string { return c.format }

// Keys returns the identity key columns.
func (c *Collection) Keys() []string { return slices.Clone(c.keys) }

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.records) }

// At returns the i-th record in key order.
func (c *Collection) At(i int) domain.Record { return c.records[i] }

// Records returns the records in key order. The slice is a copy; the
// records themselves are shared and must not be modified.
func (c *Collection) Records() []domain.Record { return slices.Clone(c.records) }

// Columns returns the union of record columns in first-seen order.
func (c *Collection) Columns() []string { return slices.Clone(c.columns) }

// Column returns one value per record. Records without the column yield a
// missing value.
func (c *Collection) Column(name string) []domain.Value {
	out := make([]domain.Value, len(c.records))
	for i, r := range c.records {
		out[i] = r.Get(name)
	}
	return out
}

// Summary reports what happened while the collection was read.
func (c *Collection) Summary() Summary { return c.summary.clone() }

// Filter returns the records for which keep returns true.
func (c *Collection) Filter(keep func(domain.Record) bool) *Collection {
	out := &Collection{format: c.format, keys: c.keys, summary: c.summary.clone()}
	for _, r := range c.records {
		if keep(r) {
			out.records = append(out.records, r)
		}
	}
	out.columns = unionColumns(out.records)
	out.summary.Records = len(out.records)
	return out
}

// OfType keeps records whose type equals typ or lies below it.
func (c *Collection) OfType(typ string) *Collection {
	return c.Filter(func(r domain.Record) bool {
		return r.Type == typ || strings.HasPrefix(r.Type, typ+"/")
	})
}

// state is the mutable table a Builder fills during one read.
type state struct {
	format  string
	keys    []string
	index   map[string]int
	records []domain.Record
	summary Summary
}

func newState(format string, keys []string, from *Collection) *state {
	st := &state{
		format: format,
		keys:   keys,
		index:  make(map[string]int),
		summary: Summary{
			Format:    format,
			StartedAt: domain.Now(),
		},
	}
	if from == nil {
		return st
	}
	st.summary = from.summary.clone()
	for _, r := range from.records {
		st.index[r.KeyString(keys)] = len(st.records)
		st.records = append(st.records, r)
	}
	return st
}

// put stores r, replacing any earlier record with the same key. It reports
// whether a record was replaced.
func (st *state) put(r domain.Record) bool {
	k := r.KeyString(st.keys)
	if i, ok := st.index[k]; ok {
		st.records[i] = r
		st.summary.Replaced++
		return true
	}
	st.index[k] = len(st.records)
	st.records = append(st.records, r)
	return false
}

func (st *state) collection() *Collection {
	records := slices.Clone(st.records)
	keys := st.keys
	slices.SortStableFunc(records, func(a, b domain.Record) int {
		return cmp.Or(
			domain.CompareKeys(a, b, keys),
			strings.Compare(a.KeyString(keys), b.KeyString(keys)),
		)
	})
	st.summary.Records = len(records)
	st.summary.FinishedAt = domain.Now()
	return &Collection{
		format:  st.format,
		keys:    slices.Clone(keys),
		records: records,
		columns: unionColumns(st.records),
		summary: st.summary.clone(),
	}
}

func unionColumns(records []domain.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for _, name := range r.Columns {
			if !seen[name] {
				seen[name] = true
				cols = append(cols, name)
			}
		}
	}
	return cols
}
