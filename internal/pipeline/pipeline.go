// Package pipeline reads many inputs of one format concurrently. Each input
// is ingested into its own collection; the parts are merged in input order so
// that later inputs win key collisions exactly as in a sequential read.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/tctrack/internal/collection"
	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/observability"
)

// DefaultWorkers bounds concurrent reads when no limit is given.
const DefaultWorkers = 4

// FinishFunc post-processes the merged collection.
type FinishFunc func(*collection.Collection) *collection.Collection

// Pipeline orchestrates the open-ingest-merge cycle for one builder.
type Pipeline struct {
	builder *collection.Builder
	logger  *slog.Logger
	metrics *observability.Metrics
	workers int
	finish  FinishFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics records in-flight sources.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithWorkers bounds the number of inputs read at once.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithFinish applies fn to the merged collection.
func WithFinish(fn FinishFunc) Option {
	return func(p *Pipeline) { p.finish = fn }
}

// New creates a Pipeline reading through b.
func New(b *collection.Builder, opts ...Option) *Pipeline {
	p := &Pipeline{
		builder: b,
		logger:  observability.DiscardLogger(),
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reads every input and merges the results in argument order. The
// first failing input cancels the others and its error is returned.
func (p *Pipeline) Run(ctx context.Context, inputs ...collection.Input) (*collection.Collection, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s: no inputs", p.builder.Format())
	}
	start := domain.Now()
	p.logger.Info("pipeline started", "format", p.builder.Format(), "inputs", len(inputs), "workers", p.workers)

	parts := make([]*collection.Collection, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, in := range inputs {
		g.Go(func() error {
			c, err := p.readOne(gctx, in)
			if err != nil {
				return err
			}
			parts[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Error("pipeline failed", "format", p.builder.Format(), "error", err)
		return nil, err
	}

	merged, err := collection.Merge(parts...)
	if err != nil {
		return nil, err
	}
	if p.finish != nil {
		merged = p.finish(merged)
	}
	s := merged.Summary()
	p.logger.Info("pipeline finished",
		"format", p.builder.Format(),
		"inputs", len(inputs),
		"records", s.Records,
		"replaced", s.Replaced,
		"rejected", len(s.Rejected),
		"duration", domain.Since(start),
	)
	return merged, nil
}

func (p *Pipeline) readOne(ctx context.Context, in collection.Input) (*collection.Collection, error) {
	if p.metrics != nil {
		p.metrics.SourcesInFlight.Inc()
		defer p.metrics.SourcesInFlight.Dec()
	}
	sc, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", in.Name, err)
	}
	defer func() {
		if c, ok := sc.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil {
				p.logger.Warn("close input failed", "source", in.Name, "error", cerr)
			}
		}
	}()
	return p.builder.Ingest(ctx, in.Name, sc)
}
