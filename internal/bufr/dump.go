// Package bufr reads BUFR tropical cyclone track messages from the key/value
// text that ecCodes prints with "bufr_dump -p". Every message becomes one
// unit; periods, ensemble members, wind thresholds and bearing sectors are
// exposed as nested occurrences so that schemas address plain key names.
package bufr

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const maxLine = 1 << 20

// Entry is one key of a message: one value per subset, plus attributes such
// as "units" printed as "key->units=...".
type Entry struct {
	Values []string
	Attrs  map[string]string
}

// Value returns the value for subset i. A single value applies to every
// subset.
func (e *Entry) Value(i int) (string, bool) {
	switch {
	case e == nil || len(e.Values) == 0:
		return "", false
	case len(e.Values) == 1:
		return e.Values[0], true
	case i >= 0 && i < len(e.Values):
		return e.Values[i], true
	default:
		return "", false
	}
}

// Message is one decoded BUFR message. Keys repeated in the data section are
// addressed by their 1-based rank, as in "#3#latitude"; rank 0 holds keys
// printed without one.
type Message struct {
	entries map[string]map[int]*Entry
	plain   []string
}

func newMessage() *Message {
	return &Message{entries: make(map[string]map[int]*Entry)}
}

// Get returns the entry for key at rank. Rank 1 and unranked keys stand in
// for each other, since ecCodes omits the rank of keys that occur once.
func (m *Message) Get(key string, rank int) *Entry {
	ranks := m.entries[key]
	if e, ok := ranks[rank]; ok {
		return e
	}
	switch rank {
	case 0:
		return ranks[1]
	case 1:
		return ranks[0]
	}
	return nil
}

// Has reports whether key is present at rank.
func (m *Message) Has(key string, rank int) bool {
	return m.Get(key, rank) != nil
}

// Subsets is the number of ensemble members in the message.
func (m *Message) Subsets() int {
	if e := m.Get("ensembleMemberNumber", 0); e != nil && len(e.Values) > 0 {
		return len(e.Values)
	}
	if v, ok := m.Get("numberOfSubsets", 0).Value(0); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// Keys lists the unranked keys in print order.
func (m *Message) Keys() []string {
	return m.plain
}

func (m *Message) entry(key string, rank int) *Entry {
	ranks, ok := m.entries[key]
	if !ok {
		ranks = make(map[int]*Entry)
		m.entries[key] = ranks
	}
	e, ok := ranks[rank]
	if !ok {
		e = &Entry{}
		ranks[rank] = e
		if rank == 0 {
			m.plain = append(m.plain, key)
		}
	}
	return e
}

func (m *Message) empty() bool { return len(m.entries) == 0 }

// parseKey splits "#3#latitude->units" into key, rank and attribute.
func parseKey(raw string) (string, int, string, error) {
	key, attr, _ := strings.Cut(raw, "->")
	rank := 0
	if rest, ok := strings.CutPrefix(key, "#"); ok {
		n, name, found := strings.Cut(rest, "#")
		if !found {
			return "", 0, "", fmt.Errorf("bad rank in key %q", raw)
		}
		r, err := strconv.Atoi(n)
		if err != nil || r < 1 {
			return "", 0, "", fmt.Errorf("bad rank in key %q", raw)
		}
		key, rank = name, r
	}
	if key == "" {
		return "", 0, "", fmt.Errorf("empty key in %q", raw)
	}
	return key, rank, attr, nil
}

// splitValues unpacks "{1, 2, MISSING}" into its members and strips quotes
// from string values.
func splitValues(raw string) []string {
	raw = strings.TrimSpace(raw)
	if inner, ok := strings.CutPrefix(raw, "{"); ok {
		inner = strings.TrimSuffix(inner, "}")
		parts := strings.Split(inner, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, unquote(p))
			}
		}
		return out
	}
	return []string{unquote(raw)}
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// dumpReader splits "bufr_dump -p" output into messages. A blank line ends a
// message; array values may continue over several lines until the closing
// brace.
type dumpReader struct {
	sc   *bufio.Scanner
	line int
}

func newDumpReader(r io.Reader) *dumpReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &dumpReader{sc: sc}
}

// next returns the next message, or io.EOF.
func (d *dumpReader) next() (*Message, error) {
	m := newMessage()
	for d.sc.Scan() {
		d.line++
		text := strings.TrimSpace(d.sc.Text())
		if text == "" {
			if !m.empty() {
				return m, nil
			}
			continue
		}
		if strings.HasPrefix(text, "//") {
			continue
		}
		if err := d.add(m, text); err != nil {
			return nil, &lineError{line: d.line, err: err}
		}
	}
	if err := d.sc.Err(); err != nil {
		return nil, &lineError{line: d.line + 1, err: err}
	}
	if m.empty() {
		return nil, io.EOF
	}
	return m, nil
}

func (d *dumpReader) add(m *Message, text string) error {
	rawKey, raw, ok := strings.Cut(text, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", text)
	}
	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		for !strings.Contains(raw, "}") {
			if !d.sc.Scan() {
				return fmt.Errorf("unterminated array for %s", rawKey)
			}
			d.line++
			raw += " " + strings.TrimSpace(d.sc.Text())
		}
	}
	key, rank, attr, err := parseKey(strings.TrimSpace(rawKey))
	if err != nil {
		return err
	}
	e := m.entry(key, rank)
	if attr != "" {
		if e.Attrs == nil {
			e.Attrs = make(map[string]string)
		}
		e.Attrs[attr] = unquote(strings.TrimSpace(raw))
		return nil
	}
	e.Values = splitValues(raw)
	return nil
}

type lineError struct {
	line int
	err  error
}

func (e *lineError) Error() string { return fmt.Sprintf("line %d: %v", e.line, e.err) }

func (e *lineError) Unwrap() error { return e.err }
