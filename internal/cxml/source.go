package cxml

import (
	"strconv"
	"strings"

	"github.com/couchcryptid/tctrack/internal/assemble"
	"github.com/couchcryptid/tctrack/internal/domain"
)

// Context element names reachable from any fix by locator prefix.
const (
	ctxDisturbance = "disturbance"
	ctxData        = "data"
	ctxHeader      = "header"
)

var contextNames = []string{ctxDisturbance, ctxData, ctxHeader}

// source exposes one element, usually a fix, to the assembler. Locators are
// reported relative to root, the fix the element belongs to.
type source struct {
	el   *Element
	root *Element
	ctx  map[string]*Element
}

func (s source) Token(locator string) (domain.Token, bool) {
	el, attr := s.resolve(locator)
	if el == nil {
		return domain.Token{}, false
	}
	if attr != "" {
		v, ok := el.Attrs[attr]
		return domain.Token{Text: v, Locator: s.concrete(el, attr)}, ok
	}
	return domain.Token{Text: el.Text, Attrs: el.Attrs, Locator: s.concrete(el, "")}, true
}

// concrete names el (and attr) in the form Locators uses. Context elements
// outside the fix have no concrete locator.
func (s source) concrete(el *Element, attr string) string {
	path, ok := el.pathFrom(s.root)
	switch {
	case !ok:
		return ""
	case attr == "":
		return path
	case path == "":
		return "@" + attr
	default:
		return path + "/@" + attr
	}
}

func (s source) Occurrences(locator string) []assemble.Source {
	base, path := s.base(locator)
	if base == nil {
		return nil
	}
	var els []*Element
	if rest, ok := strings.CutPrefix(path, "//"); ok {
		els = base.FindAll(rest)
	} else {
		els = base.All(path)
	}
	out := make([]assemble.Source, len(els))
	for i, el := range els {
		out[i] = source{el: el, root: s.root, ctx: s.ctx}
	}
	return out
}

// Locators lists the element's own attributes and every descendant element
// carrying text or no children. Repeated siblings after the first get an
// occurrence index. Attributes of descendants travel with their element's
// token.
func (s source) Locators() []string {
	var locs []string
	for name := range s.el.Attrs {
		locs = append(locs, "@"+name)
	}
	var walk func(el *Element, prefix string)
	walk = func(el *Element, prefix string) {
		seen := make(map[string]int)
		for _, c := range el.Children {
			seen[c.Name]++
			seg := c.Name
			if n := seen[c.Name]; n > 1 {
				seg += "[" + strconv.Itoa(n) + "]"
			}
			path := prefix + seg
			if c.Text != "" || len(c.Children) == 0 {
				locs = append(locs, path)
			}
			walk(c, path+"/")
		}
	}
	walk(s.el, "")
	return locs
}

// base picks the element a locator is relative to: a context element when
// the locator starts with its name, otherwise the source element.
func (s source) base(locator string) (*Element, string) {
	for _, name := range contextNames {
		rest, ok := strings.CutPrefix(locator, name+"/")
		if !ok {
			continue
		}
		if strings.HasPrefix(rest, "/") {
			rest = "/" + rest
		}
		return s.ctx[name], rest
	}
	return s.el, locator
}

// resolve returns the element a locator names and the attribute, if any.
func (s source) resolve(locator string) (*Element, string) {
	base, loc := s.base(locator)
	if base == nil {
		return nil, ""
	}
	path, attr := splitAttr(loc)
	switch {
	case path == "" || path == ".":
		return base, attr
	case strings.HasPrefix(path, "//"):
		return base.Find(path[2:]), attr
	default:
		return base.Child(path), attr
	}
}

// splitAttr splits "a/b/@c" into "a/b" and "c".
func splitAttr(loc string) (string, string) {
	i := strings.LastIndexByte(loc, '@')
	switch {
	case i == 0:
		return "", loc[1:]
	case i > 0 && loc[i-1] == '/':
		return strings.TrimSuffix(loc[:i-1], "/"), loc[i+1:]
	default:
		return loc, ""
	}
}
