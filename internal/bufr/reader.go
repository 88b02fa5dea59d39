package bufr

import (
	"context"
	"errors"
	"io"

	"github.com/couchcryptid/tctrack/internal/collection"
	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/fileio"
)

// Scanner yields one unit per message.
type Scanner struct {
	name   string
	dump   *dumpReader
	pos    int
	closer io.Closer
}

// NewScanner reads "bufr_dump -p" output from r. If r is also an io.Closer,
// Close closes it.
func NewScanner(name string, r io.Reader) *Scanner {
	s := &Scanner{name: name, dump: newDumpReader(r)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next message. Origin positions count messages; a
// malformed line ends the read with a *domain.SourceFormatError naming the
// line.
func (s *Scanner) Next() (collection.Unit, error) {
	msg, err := s.dump.next()
	if errors.Is(err, io.EOF) {
		return collection.Unit{}, io.EOF
	}
	if err != nil {
		var le *lineError
		if errors.As(err, &le) {
			return collection.Unit{}, &domain.SourceFormatError{Source: s.name, Position: le.line, Err: le.err}
		}
		return collection.Unit{}, &domain.SourceFormatError{Source: s.name, Err: err}
	}
	s.pos++
	return collection.Unit{
		Source: messageSource{msg: msg},
		Origin: domain.Origin{Source: s.name, Position: s.pos},
	}, nil
}

// Close closes the underlying reader when it is closable.
func (s *Scanner) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Input opens path lazily, decompressing gzip dumps.
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

// Read ingests the messages in r.
func Read(ctx context.Context, b *collection.Builder, name string, r io.Reader) (*collection.Collection, error) {
	return b.Ingest(ctx, name, NewScanner(name, r))
}

// ReadFile ingests the dump at path.
func ReadFile(ctx context.Context, b *collection.Builder, path string) (*collection.Collection, error) {
	f, err := fileio.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(ctx, b, path, f)
}
