// Command validate checks that ATCF decks survive a parse and format round
// trip: every top-level field of every line is converted, rendered back with
// its column's formatter and compared with the raw token.
//
// Usage:
//
//	go run ./cmd/validate -format adeck aal032023.dat aal042023.dat.gz
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/couchcryptid/tctrack/internal/assemble"
	"github.com/couchcryptid/tctrack/internal/atcf"
	"github.com/couchcryptid/tctrack/internal/collection"
	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/fileio"
	"github.com/couchcryptid/tctrack/internal/schema"
)

// maxReported caps the mismatches printed per file.
const maxReported = 20

// phase tracks pass/fail for one validated file.
type phase struct {
	name       string
	units      int
	unresolved int
	fields     int
	errors     []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	format := flag.String("format", schema.ADeck, "deck format: adeck, bdeck, edeck or fdeck")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(os.Stdout, *format, flag.Args()); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, format string, paths []string) int {
	switch format {
	case schema.ADeck, schema.BDeck, schema.EDeck, schema.FDeck:
	default:
		fmt.Fprintf(os.Stderr, "FATAL: %s is not an ATCF deck format\n", format)
		return 1
	}
	reg := schema.Default()

	fmt.Fprintf(w, "=== ATCF %s round trip ===\n\n", format)
	phases := make([]*phase, 0, len(paths))
	for _, path := range paths {
		p := &phase{name: path}
		if err := checkDeck(p, reg, format, path); err != nil {
			p.errorf("read: %v", err)
		}
		phases = append(phases, p)
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s  (%d lines, %d fields, %d unresolved)\n",
			p.name, status, p.units, p.fields, p.unresolved)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxReported {
				fmt.Fprintf(w, "  ... %d more\n", len(p.errors)-maxReported)
				break
			}
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func checkDeck(p *phase, reg *schema.Registry, format, path string) error {
	f, err := fileio.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := atcf.NewScanner(path, f)
	for {
		u, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		p.units++
		checkUnit(p, reg, format, u)
	}
}

func checkUnit(p *phase, reg *schema.Registry, format string, u collection.Unit) {
	s, err := assemble.Resolve(reg, format, u.Source)
	if err != nil {
		p.unresolved++
		return
	}
	res, err := assemble.Assemble(u.Source, s, u.Origin)
	if err != nil {
		p.errorf("line %d: %v", u.Origin.Position, err)
		return
	}
	rec, ok := ownRecord(res.Records, s.Type())
	if !ok {
		return
	}

	for _, field := range s.Fields {
		if len(field.Locators) != 1 || strings.HasPrefix(field.Locators[0], "=") {
			continue
		}
		tok, ok := u.Source.Token(field.Locators[0])
		if !ok || tok.Text == "" {
			continue
		}
		v := rec.Get(field.Name)
		if v.Missing {
			continue
		}
		p.fields++
		if got := field.Column.Format(v); !sameToken(tok.Text, got) {
			p.errorf("line %d: %s: raw %q, formatted %q", u.Origin.Position, field.Name, tok.Text, got)
		}
	}
}

func ownRecord(records []domain.Record, typ string) (domain.Record, bool) {
	for _, r := range records {
		if r.Type == typ {
			return r, true
		}
	}
	return domain.Record{}, false
}

// sameToken compares a raw token with its formatted value. Numbers compare by
// value so that zero padding and trailing zeros do not count; a trailing
// hemisphere or unit letter must match exactly.
func sameToken(raw, got string) bool {
	if strings.EqualFold(raw, got) {
		return true
	}
	rn, rs := splitSuffix(raw)
	gn, gs := splitSuffix(got)
	if !strings.EqualFold(rs, gs) {
		return false
	}
	a, err := strconv.ParseFloat(rn, 64)
	if err != nil {
		return false
	}
	b, err := strconv.ParseFloat(gn, 64)
	if err != nil {
		return false
	}
	return math.Abs(a-b) < 1e-6
}

func splitSuffix(s string) (string, string) {
	i := len(s)
	for i > 0 && unicode.IsLetter(rune(s[i-1])) {
		i--
	}
	return s[:i], s[i:]
}
