package cxml

import (
	"context"
	"encoding/xml"
	"errors"
	"io"

	"github.com/couchcryptid/tctrack/internal/collection"
	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/fileio"
)

// Scanner yields one unit per <fix> in document order. The document is
// parsed on the first call to Next.
type Scanner struct {
	name   string
	r      io.Reader
	units  []collection.Unit
	parsed bool
	i      int
}

// NewScanner reads a CXML document from r. If r is also an io.Closer, Close
// closes it.
func NewScanner(name string, r io.Reader) *Scanner {
	return &Scanner{name: name, r: r}
}

// Next returns the next fix. A document that is not well formed ends the
// read with a *domain.SourceFormatError.
func (s *Scanner) Next() (collection.Unit, error) {
	if !s.parsed {
		s.parsed = true
		root, err := Parse(s.r)
		if err != nil {
			pos := 0
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				pos = syn.Line
			}
			return collection.Unit{}, &domain.SourceFormatError{Source: s.name, Position: pos, Err: err}
		}
		s.units = fixes(s.name, root)
	}
	if s.i >= len(s.units) {
		return collection.Unit{}, io.EOF
	}
	s.i++
	return s.units[s.i-1], nil
}

// Close closes the underlying reader when it is closable.
func (s *Scanner) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// fixes walks header, data blocks and disturbances down to each fix.
func fixes(name string, root *Element) []collection.Unit {
	header := root.Child(ctxHeader)
	var units []collection.Unit
	for _, data := range root.All(ctxData) {
		for _, dist := range data.FindAll(ctxDisturbance) {
			for _, fix := range dist.FindAll("fix") {
				units = append(units, collection.Unit{
					Source: source{el: fix, root: fix, ctx: map[string]*Element{
						ctxHeader:      header,
						ctxData:        data,
						ctxDisturbance: dist,
					}},
					Origin: domain.Origin{Source: name, Position: len(units) + 1},
				})
			}
		}
	}
	return units
}

// Input opens path lazily, decompressing gzip documents.
func Input(path string) collection.Input {
	return collection.Input{
		Name: path,
		Open: func() (collection.Scanner, error) {
			f, err := fileio.Open(path)
			if err != nil {
				return nil, err
			}
			return NewScanner(path, f), nil
		},
	}
}

// Read ingests one document from r.
func Read(ctx context.Context, b *collection.Builder, name string, r io.Reader) (*collection.Collection, error) {
	return b.Ingest(ctx, name, NewScanner(name, r))
}

// ReadFile ingests the document at path.
func ReadFile(ctx context.Context, b *collection.Builder, path string) (*collection.Collection, error) {
	f, err := fileio.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(ctx, b, path, f)
}
