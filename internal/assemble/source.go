package assemble

import (
	"strings"

	"github.com/couchcryptid/tctrack/internal/domain"
)

// Source is one tokenized logical input unit: an ATCF line, a CXML fix or a
// BUFR message. Tokenizers implement it; the assembler only reads.
type Source interface {
	// Token returns the token at locator.
	Token(locator string) (domain.Token, bool)

	// Occurrences returns the repeated substructures under locator in
	// document order. Each occurrence resolves "." to itself.
	Occurrences(locator string) []Source

	// Locators lists the unit's own locators. Those no schema field claims
	// end up in the record's Extra bucket.
	Locators() []string
}

// lookup resolves literal locators ("=text") before asking the source.
func lookup(src Source, locator string) (domain.Token, bool) {
	if lit, ok := strings.CutPrefix(locator, "="); ok {
		return domain.Token{Text: lit}, true
	}
	return src.Token(locator)
}

// slotSource renames a group's local locators onto the parent's.
type slotSource struct {
	parent Source
	slot   map[string]string
}

func (s slotSource) Token(locator string) (domain.Token, bool) {
	if mapped, ok := s.slot[locator]; ok {
		return lookup(s.parent, mapped)
	}
	return s.parent.Token(locator)
}

func (s slotSource) Occurrences(locator string) []Source {
	if mapped, ok := s.slot[locator]; ok {
		locator = mapped
	}
	return s.parent.Occurrences(locator)
}

func (s slotSource) Locators() []string { return nil }

// tracker records which concrete locators the schema consumed. Trackers
// over occurrences share the root's claim set. Tokens that report their own
// locator claim exactly that; otherwise the requested locator is claimed
// when it was asked of the root unit, where it is already concrete.
type tracker struct {
	Source
	claimed map[string]bool
	nested  bool
}

func newTracker(src Source) *tracker {
	return &tracker{Source: src, claimed: make(map[string]bool)}
}

func (t *tracker) Token(locator string) (domain.Token, bool) {
	tok, ok := t.Source.Token(locator)
	if !ok {
		return tok, ok
	}
	switch {
	case tok.Locator != "":
		t.claimed[tok.Locator] = true
	case !t.nested:
		t.claimed[locator] = true
	}
	return tok, ok
}

func (t *tracker) Occurrences(locator string) []Source {
	occ := t.Source.Occurrences(locator)
	for i, o := range occ {
		occ[i] = &tracker{Source: o, claimed: t.claimed, nested: true}
	}
	return occ
}
