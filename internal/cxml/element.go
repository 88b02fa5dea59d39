// Package cxml reads Cyclone XML documents. The document is parsed into a
// light element tree, and every <fix> becomes one unit whose locators are
// slash paths relative to the fix.
package cxml

import (
	"encoding/xml"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
)

// Element is one XML element with its own character data.
type Element struct {
	Name     string
	Attrs    map[string]string
	Text     string // trimmed character data directly inside the element
	Children []*Element

	parent *Element
	buf    strings.Builder
}

// Parse reads a whole document. Namespace prefixes are dropped from element
// and attribute names.
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	var root *Element
	var stack []*Element
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local, Attrs: attrs(t.Attr)}
			if n := len(stack); n > 0 {
				el.parent = stack[n-1]
				el.parent.Children = append(el.parent.Children, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			top := stack[len(stack)-1]
			top.Text = strings.TrimSpace(top.buf.String())
			top.buf.Reset()
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if n := len(stack); n > 0 {
				stack[n-1].buf.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("no root element")
	}
	return root, nil
}

func attrs(in []xml.Attr) map[string]string {
	out := make(map[string]string, len(in))
	for _, a := range in {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		out[a.Name.Local] = a.Value
	}
	return out
}

// Child follows a relative path of element names. A segment may carry a
// 1-based occurrence index, as in "radius[2]".
func (e *Element) Child(path string) *Element {
	cur := e
	for _, seg := range strings.Split(path, "/") {
		name, nth := segment(seg)
		var next *Element
		for _, c := range cur.Children {
			if c.Name != name {
				continue
			}
			if nth--; nth == 0 {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// All returns the children named by path's last segment under the element
// the rest of path leads to.
func (e *Element) All(path string) []*Element {
	dir, name := "", path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		dir, name = path[:i], path[i+1:]
	}
	parent := e
	if dir != "" {
		parent = e.Child(dir)
	}
	if parent == nil {
		return nil
	}
	var out []*Element
	for _, c := range parent.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// FindAll returns, in document order, the descendants whose trailing
// ancestry matches path, e.g. "windContours/windSpeed".
func (e *Element) FindAll(path string) []*Element {
	segs := names(path)
	var out []*Element
	var walk func(*Element)
	walk = func(el *Element) {
		for _, c := range el.Children {
			if c.endsWith(segs, e) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(e)
	return out
}

// endsWith reports whether the names from e up towards root end with segs.
func (e *Element) endsWith(segs []string, root *Element) bool {
	cur := e
	for i := len(segs) - 1; i >= 0; i-- {
		if cur == nil || cur == root || cur.Name != segs[i] {
			return false
		}
		cur = cur.parent
	}
	return true
}

// Find returns the shallowest descendant matching path, the first in
// document order among equals.
func (e *Element) Find(path string) *Element {
	segs := names(path)
	level := e.Children
	for len(level) > 0 {
		var next []*Element
		for _, c := range level {
			if c.endsWith(segs, e) {
				return c
			}
			next = append(next, c.Children...)
		}
		level = next
	}
	return nil
}

// pathFrom returns e's slash path below root. A segment carries an
// occurrence index from its second same-named sibling on. ok is false when
// e is not root or one of its descendants.
func (e *Element) pathFrom(root *Element) (string, bool) {
	var segs []string
	for cur := e; cur != root; cur = cur.parent {
		if cur == nil || cur.parent == nil {
			return "", false
		}
		n := 0
		for _, sib := range cur.parent.Children {
			if sib.Name == cur.Name {
				n++
			}
			if sib == cur {
				break
			}
		}
		seg := cur.Name
		if n > 1 {
			seg += "[" + strconv.Itoa(n) + "]"
		}
		segs = append(segs, seg)
	}
	slices.Reverse(segs)
	return strings.Join(segs, "/"), true
}

// names strips occurrence indices from the segments of path.
func names(path string) []string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i], _ = segment(s)
	}
	return segs
}

// segment splits "name[n]" into name and n; n defaults to 1.
func segment(seg string) (string, int) {
	open := strings.IndexByte(seg, '[')
	if open < 0 || !strings.HasSuffix(seg, "]") {
		return seg, 1
	}
	n, err := strconv.Atoi(seg[open+1 : len(seg)-1])
	if err != nil || n < 1 {
		return seg, 1
	}
	return seg[:open], n
}
