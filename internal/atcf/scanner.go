// Package atcf tokenizes ATCF a, b, e and f deck files. Each non-blank line
// is one unit whose comma-separated fields are addressed by position.
package atcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/tctrack/internal/assemble"
	"github.com/couchcryptid/tctrack/internal/collection"
	"github.com/couchcryptid/tctrack/internal/domain"
)

// minFields is the shortest usable line: basin, cyclone number and DTG.
const minFields = 3

const maxLine = 1 << 20

// Line is one deck line split into trimmed fields. Locators are the decimal
// field positions starting at "0".
type Line []string

// Split breaks a deck line on commas and trims each field.
func Split(text string) Line {
	fields := strings.Split(strings.TrimRight(text, "\r\n"), ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func (l Line) Token(locator string) (domain.Token, bool) {
	i, err := strconv.Atoi(locator)
	if err != nil || i < 0 || i >= len(l) {
		return domain.Token{}, false
	}
	return domain.Token{Text: l[i]}, true
}

// Occurrences is always empty: deck groups are declared as positional slots.
func (l Line) Occurrences(string) []assemble.Source { return nil }

func (l Line) Locators() []string {
	locs := make([]string, len(l))
	for i := range l {
		locs[i] = strconv.Itoa(i)
	}
	return locs
}

// Scanner yields one unit per non-blank line.
type Scanner struct {
	name   string
	sc     *bufio.Scanner
	pos    int
	closer io.Closer
}

// NewScanner reads lines from r. If r is also an io.Closer, Close closes it.
func NewScanner(name string, r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	s := &Scanner{name: name, sc: sc}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next line. A line with fewer than three fields is a
// truncated record and ends the read with a *domain.SourceFormatError.
func (s *Scanner) Next() (collection.Unit, error) {
	for s.sc.Scan() {
		s.pos++
		text := s.sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		line := Split(text)
		if len(line) < minFields {
			return collection.Unit{}, &domain.SourceFormatError{
				Source:   s.name,
				Position: s.pos,
				Err:      fmt.Errorf("truncated line: %w: %d fields", domain.ErrTooFewTokens, len(line)),
			}
		}
		return collection.Unit{
			Source: line,
			Origin: domain.Origin{Source: s.name, Position: s.pos},
		}, nil
	}
	if err := s.sc.Err(); err != nil {
		return collection.Unit{}, &domain.SourceFormatError{Source: s.name, Position: s.pos + 1, Err: err}
	}
	return collection.Unit{}, io.EOF
}

// Close closes the underlying reader when it is closable.
func (s *Scanner) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
