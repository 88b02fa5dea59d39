package collection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/tctrack/internal/assemble"
	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/observability"
	"github.com/couchcryptid/tctrack/internal/schema"
)

// Unit is one tokenized logical input unit and where it came from.
type Unit struct {
	Source assemble.Source
	Origin domain.Origin
}

// Scanner yields the units of one source. Next returns io.EOF after the last
// unit; any other error means the source is malformed and aborts the read.
type Scanner interface {
	Next() (Unit, error)
}

// Builder reads units of one format into collections.
type Builder struct {
	format  string
	keys    []string
	reg     *schema.Registry
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithMetrics records ingestion counters on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithRegistry resolves schemas from r instead of the built-in tables.
func WithRegistry(r *schema.Registry) Option {
	return func(b *Builder) { b.reg = r }
}

// NewBuilder returns a Builder for format.
func NewBuilder(format string, opts ...Option) (*Builder, error) {
	b := &Builder{
		format: format,
		logger: observability.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.reg == nil {
		b.reg = schema.Default()
	}
	f, ok := b.reg.Format(format)
	if !ok {
		return nil, &domain.SchemaResolutionError{Format: format}
	}
	b.keys = f.KeyColumns()
	return b, nil
}

// Format returns the builder's input family.
func (b *Builder) Format() string { return b.format }

// Ingest reads every unit of sc into a fresh collection.
func (b *Builder) Ingest(ctx context.Context, name string, sc Scanner) (*Collection, error) {
	return b.Extend(ctx, nil, name, sc)
}

// Extend reads sc on top of c and returns the combined collection. Records
// whose key already exists in c replace it. c itself is left unchanged; a
// nil c starts empty. c must hold the builder's format.
func (b *Builder) Extend(ctx context.Context, c *Collection, name string, sc Scanner) (*Collection, error) {
	if c != nil && c.format != b.format {
		return nil, fmt.Errorf("extend %s with %s: format mismatch", c.format, b.format)
	}
	st := newState(b.format, b.keys, c)
	if err := b.read(ctx, st, name, sc); err != nil {
		return nil, err
	}
	return st.collection(), nil
}

func (b *Builder) read(ctx context.Context, st *state, name string, sc Scanner) error {
	start := domain.Now()
	before := st.summary
	st.summary.Sources = append(st.summary.Sources, name)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		u, err := sc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			b.count(func(m *observability.Metrics) {
				m.RecordsRejected.WithLabelValues(b.format, "source").Inc()
			})
			return fmt.Errorf("read %s: %w", name, err)
		}
		b.process(st, u)
	}

	elapsed := domain.Since(start)
	b.count(func(m *observability.Metrics) {
		m.IngestDuration.WithLabelValues(b.format).Observe(elapsed.Seconds())
	})
	b.logger.Info("source read",
		"format", b.format,
		"source", name,
		"units", st.summary.Units-before.Units,
		"records", len(st.records),
		"rejected", len(st.summary.Rejected)-len(before.Rejected),
		"field_errors", st.summary.FieldErrors-before.FieldErrors,
		"duration", elapsed,
	)
	return nil
}

// process assembles one unit and stores its records. Schema and identity
// failures are recorded in the summary; the read continues.
func (b *Builder) process(st *state, u Unit) {
	st.summary.Units++
	records := b.assembleUnit(u, func(r Rejection) {
		st.summary.Rejected = append(st.summary.Rejected, r)
	})
	for _, r := range records {
		fieldErrs := len(r.FieldErrors())
		st.summary.FieldErrors += fieldErrs
		st.summary.UnknownCategories += r.UnknownCategories()
		replaced := st.put(r)
		b.count(func(m *observability.Metrics) {
			m.RecordsIngested.WithLabelValues(b.format).Inc()
			m.FieldErrors.WithLabelValues(b.format).Add(float64(fieldErrs))
			if replaced {
				m.RecordsReplaced.WithLabelValues(b.format).Inc()
			}
		})
	}
}

// assembleUnit resolves and assembles one unit. Every rejection is logged,
// counted and handed to reject; the surviving records are returned.
func (b *Builder) assembleUnit(u Unit, reject func(Rejection)) []domain.Record {
	b.count(func(m *observability.Metrics) { m.UnitsRead.WithLabelValues(b.format).Inc() })

	s, err := assemble.Resolve(b.reg, b.format, u.Source)
	if err != nil {
		b.logger.Debug("no schema for unit",
			"source", u.Origin.Source, "position", u.Origin.Position, "error", err)
		b.reject(reject, u.Origin, ReasonSchema, err)
		return nil
	}

	res, err := assemble.Assemble(u.Source, s, u.Origin)
	if err != nil {
		b.logger.Warn("identity key failed, skipping unit",
			"source", u.Origin.Source, "position", u.Origin.Position, "error", err)
		b.reject(reject, u.Origin, ReasonIdentity, err)
		return nil
	}
	for _, rerr := range res.Rejected {
		b.logger.Warn("identity key failed, skipping expanded record",
			"source", u.Origin.Source, "position", u.Origin.Position, "error", rerr)
		b.reject(reject, u.Origin, ReasonIdentity, rerr)
	}
	return res.Records
}

func (b *Builder) reject(fn func(Rejection), origin domain.Origin, reason string, err error) {
	fn(Rejection{Origin: origin, Reason: reason, Err: err})
	b.count(func(m *observability.Metrics) {
		m.RecordsRejected.WithLabelValues(b.format, reason).Inc()
	})
}

func (b *Builder) count(fn func(*observability.Metrics)) {
	if b.metrics != nil {
		fn(b.metrics)
	}
}

// Merge combines collections of one format in argument order; later records
// replace earlier ones with the same key. Nil entries are skipped.
func Merge(cols ...*Collection) (*Collection, error) {
	var st *state
	for _, c := range cols {
		if c == nil {
			continue
		}
		if st == nil {
			st = newState(c.format, c.keys, c)
			continue
		}
		if c.format != st.format {
			return nil, fmt.Errorf("merge %s into %s: format mismatch", c.format, st.format)
		}
		for _, r := range c.records {
			st.put(r)
		}
		st.summary.add(c.summary)
	}
	if st == nil {
		return nil, errors.New("merge: no collections")
	}
	return st.collection(), nil
}
