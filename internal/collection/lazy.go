package collection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/couchcryptid/tctrack/internal/domain"
)

// Input names a source and opens a fresh scanner over it. A scanner that
// also implements io.Closer is closed when reading stops.
type Input struct {
	Name string
	Open func() (Scanner, error)
}

// Lazy defers reading until first access. Collect materializes the table
// once, even under concurrent callers; Records can stream without
// materializing.
type Lazy struct {
	builder *Builder
	inputs  []Input
	finish  func(*Collection) *Collection

	mu   sync.Mutex // serializes Collect
	c    *Collection
	err  error
	done chan struct{}

	smu      sync.Mutex
	streamed Summary
}

// NewLazy returns a deferred read of inputs, merged in order.
func NewLazy(b *Builder, inputs ...Input) *Lazy {
	return &Lazy{
		builder:  b,
		inputs:   inputs,
		done:     make(chan struct{}),
		streamed: Summary{Format: b.format},
	}
}

// Finally sets fn to post-process the table built by Collect. Call it
// before the first Collect; streamed records are not affected.
func (l *Lazy) Finally(fn func(*Collection) *Collection) *Lazy {
	l.finish = fn
	return l
}

// Collect reads every input and returns the collection. Later calls return
// the cached result. A read stopped by ctx is not cached, so a later call
// with a live context reads again.
func (l *Lazy) Collect(ctx context.Context) (*Collection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Materialized() {
		return l.c, l.err
	}
	c, err := l.collect(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	l.c, l.err = c, err
	close(l.done)
	return c, err
}

// Materialized reports whether Collect has completed.
func (l *Lazy) Materialized() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Summary reports the outcome of the read. Once materialized it is the
// collection's summary. Before that it covers the latest Records stream:
// Records counts what was yielded, without deduplication.
func (l *Lazy) Summary() Summary {
	if l.Materialized() {
		if l.c != nil {
			return l.c.Summary()
		}
		return Summary{Format: l.builder.format}
	}
	l.smu.Lock()
	defer l.smu.Unlock()
	return l.streamed.clone()
}

func (l *Lazy) collect(ctx context.Context) (*Collection, error) {
	var c *Collection
	for _, in := range l.inputs {
		sc, err := in.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", in.Name, err)
		}
		next, err := l.builder.Extend(ctx, c, in.Name, sc)
		closeScanner(sc)
		if err != nil {
			return nil, err
		}
		c = next
	}
	if c == nil {
		c = newState(l.builder.format, l.builder.keys, nil).collection()
	}
	if l.finish != nil {
		c = l.finish(c)
	}
	return c, nil
}

// Records iterates the records. Once materialized it yields the sorted,
// deduplicated table; before that it streams records in input order without
// sorting or deduplication, and unresolvable or rejected units are skipped
// and counted in Summary. Iteration stops at the first source error, which
// is yielded.
func (l *Lazy) Records(ctx context.Context) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		if l.Materialized() {
			if l.err != nil {
				yield(domain.Record{}, l.err)
				return
			}
			for _, r := range l.c.records {
				if !yield(r, nil) {
					return
				}
			}
			return
		}
		l.track(func(s *Summary) {
			*s = Summary{Format: l.builder.format, StartedAt: domain.Now()}
		})
		defer l.track(func(s *Summary) { s.FinishedAt = domain.Now() })
		for _, in := range l.inputs {
			if !l.stream(ctx, in, yield) {
				return
			}
		}
	}
}

func (l *Lazy) stream(ctx context.Context, in Input, yield func(domain.Record, error) bool) bool {
	sc, err := in.Open()
	if err != nil {
		yield(domain.Record{}, fmt.Errorf("open %s: %w", in.Name, err))
		return false
	}
	defer closeScanner(sc)
	l.track(func(s *Summary) { s.Sources = append(s.Sources, in.Name) })

	b := l.builder
	for {
		if err := ctx.Err(); err != nil {
			yield(domain.Record{}, err)
			return false
		}
		u, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			yield(domain.Record{}, fmt.Errorf("read %s: %w", in.Name, err))
			return false
		}
		l.track(func(s *Summary) { s.Units++ })
		records := b.assembleUnit(u, func(r Rejection) {
			l.track(func(s *Summary) { s.Rejected = append(s.Rejected, r) })
		})
		for _, r := range records {
			l.track(func(s *Summary) {
				s.Records++
				s.FieldErrors += len(r.FieldErrors())
				s.UnknownCategories += r.UnknownCategories()
			})
			if !yield(r, nil) {
				return false
			}
		}
	}
}

// track updates the streaming summary.
func (l *Lazy) track(fn func(*Summary)) {
	l.smu.Lock()
	defer l.smu.Unlock()
	fn(&l.streamed)
}

func closeScanner(sc Scanner) {
	if c, ok := sc.(io.Closer); ok {
		_ = c.Close()
	}
}
