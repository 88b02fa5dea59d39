// Package tctrack reads tropical cyclone track data from ATCF a, b, e and f
// decks and CXML documents into one uniform table model. BUFR ensemble
// tracks are read by the bufr subpackage.
//
// Every Read function returns a sorted, deduplicated Collection together
// with a Summary of what was skipped. Scan functions return a Lazy that
// reads on first access.
package tctrack

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/tctrack/internal/atcf"
	"github.com/couchcryptid/tctrack/internal/collection"
	"github.com/couchcryptid/tctrack/internal/cxml"
	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/observability"
	"github.com/couchcryptid/tctrack/internal/pipeline"
	"github.com/couchcryptid/tctrack/internal/schema"
)

type (
	Collection = collection.Collection
	Lazy       = collection.Lazy
	Summary    = collection.Summary
	Rejection  = collection.Rejection
	Record     = domain.Record
	Value      = domain.Value
	Token      = domain.Token
	Origin     = domain.Origin
	Kind       = domain.Kind
	Metrics    = observability.Metrics

	SchemaResolutionError = domain.SchemaResolutionError
	FieldConversionError  = domain.FieldConversionError
	IdentityKeyError      = domain.IdentityKeyError
	SourceFormatError     = domain.SourceFormatError
)

// Format names accepted by the readers.
const (
	ADeck = schema.ADeck
	BDeck = schema.BDeck
	EDeck = schema.EDeck
	FDeck = schema.FDeck
	CXML  = schema.CXML
)

// Rejection reasons reported in Summary.Rejected.
const (
	ReasonSchema   = collection.ReasonSchema
	ReasonIdentity = collection.ReasonIdentity
)

// NewMetrics registers the reader metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return observability.NewMetrics(reg)
}

// Option configures a read.
type Option func(*Options)

// Options holds read settings. Use the With functions to set them.
type Options struct {
	Logger  *slog.Logger
	Metrics *Metrics
	Workers int
}

// WithLogger logs rejected records and per-source summaries to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics counts units, records and rejections in m.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithWorkers bounds how many files the plural readers parse at once.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// Apply folds opts into a fresh Options. It lets sibling packages share the
// option set.
func Apply(opts []Option) Options {
	o := Options{Workers: pipeline.DefaultWorkers}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Builder returns a collection builder for format configured by o.
func (o Options) Builder(format string) (*collection.Builder, error) {
	var bopts []collection.Option
	if o.Logger != nil {
		bopts = append(bopts, collection.WithLogger(o.Logger))
	}
	if o.Metrics != nil {
		bopts = append(bopts, collection.WithMetrics(o.Metrics))
	}
	return collection.NewBuilder(format, bopts...)
}

// ReadADeck reads an a-deck (forecast aids). Storm names are stretched
// across each storm's rows.
func ReadADeck(ctx context.Context, path string, opts ...Option) (*Collection, error) {
	return readDeck(ctx, ADeck, path, opts)
}

// ReadBDeck reads a b-deck (best track).
func ReadBDeck(ctx context.Context, path string, opts ...Option) (*Collection, error) {
	return readDeck(ctx, BDeck, path, opts)
}

// ReadFDeck reads an f-deck (fixes).
func ReadFDeck(ctx context.Context, path string, opts ...Option) (*Collection, error) {
	return readDeck(ctx, FDeck, path, opts)
}

// ReadEDeck reads an e-deck (probabilities).
func ReadEDeck(ctx context.Context, path string, opts ...Option) (*Collection, error) {
	return readDeck(ctx, EDeck, path, opts)
}

// ReadADecks reads several a-decks concurrently into one collection. Later
// paths win key collisions.
func ReadADecks(ctx context.Context, paths []string, opts ...Option) (*Collection, error) {
	return readDecks(ctx, ADeck, paths, opts)
}

// ReadBDecks reads several b-decks concurrently into one collection. Later
// paths win key collisions.
func ReadBDecks(ctx context.Context, paths []string, opts ...Option) (*Collection, error) {
	return readDecks(ctx, BDeck, paths, opts)
}

// ReadCXML reads a CXML document.
func ReadCXML(ctx context.Context, path string, opts ...Option) (*Collection, error) {
	b, err := Apply(opts).Builder(CXML)
	if err != nil {
		return nil, err
	}
	return cxml.ReadFile(ctx, b, path)
}

// ScanADeck defers reading a-decks until first access.
func ScanADeck(paths []string, opts ...Option) (*Lazy, error) {
	return scanDecks(ADeck, paths, opts)
}

// ScanBDeck defers reading b-decks until first access.
func ScanBDeck(paths []string, opts ...Option) (*Lazy, error) {
	return scanDecks(BDeck, paths, opts)
}

// ScanFDeck defers reading f-decks until first access.
func ScanFDeck(paths []string, opts ...Option) (*Lazy, error) {
	return scanDecks(FDeck, paths, opts)
}

// ScanEDeck defers reading e-decks until first access.
func ScanEDeck(paths []string, opts ...Option) (*Lazy, error) {
	return scanDecks(EDeck, paths, opts)
}

// ScanCXML defers reading CXML documents until first access.
func ScanCXML(paths []string, opts ...Option) (*Lazy, error) {
	b, err := Apply(opts).Builder(CXML)
	if err != nil {
		return nil, err
	}
	inputs := make([]collection.Input, len(paths))
	for i, p := range paths {
		inputs[i] = cxml.Input(p)
	}
	return collection.NewLazy(b, inputs...), nil
}

func readDeck(ctx context.Context, format, path string, opts []Option) (*Collection, error) {
	b, err := Apply(opts).Builder(format)
	if err != nil {
		return nil, err
	}
	return atcf.ReadFile(ctx, b, path)
}

func readDecks(ctx context.Context, format string, paths []string, opts []Option) (*Collection, error) {
	o := Apply(opts)
	b, err := o.Builder(format)
	if err != nil {
		return nil, err
	}
	var popts []pipeline.Option
	if o.Logger != nil {
		popts = append(popts, pipeline.WithLogger(o.Logger))
	}
	if o.Metrics != nil {
		popts = append(popts, pipeline.WithMetrics(o.Metrics))
	}
	popts = append(popts,
		pipeline.WithWorkers(o.Workers),
		pipeline.WithFinish(func(c *Collection) *Collection { return atcf.Finish(format, c) }),
	)
	return pipeline.New(b, popts...).Run(ctx, deckInputs(paths)...)
}

func scanDecks(format string, paths []string, opts []Option) (*Lazy, error) {
	b, err := Apply(opts).Builder(format)
	if err != nil {
		return nil, err
	}
	lazy := collection.NewLazy(b, deckInputs(paths)...)
	return lazy.Finally(func(c *Collection) *Collection { return atcf.Finish(format, c) }), nil
}

func deckInputs(paths []string) []collection.Input {
	inputs := make([]collection.Input, len(paths))
	for i, p := range paths {
		inputs[i] = atcf.Input(p)
	}
	return inputs
}
