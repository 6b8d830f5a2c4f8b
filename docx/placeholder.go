package docx

import (
	"strings"

	"github.com/beevik/etree"
)

// MatchPolicy selects how a paragraph is tested against a marker.
type MatchPolicy int

const (
	// MatchContains hits a paragraph whose run text contains the marker,
	// even when the marker is split across runs.
	MatchContains MatchPolicy = iota
	// MatchWhole hits a paragraph whose trimmed text equals the marker.
	MatchWhole
)

func (m MatchPolicy) matches(text, marker string) bool {
	if m == MatchWhole {
		return strings.TrimSpace(text) == marker
	}
	return strings.Contains(text, marker)
}

// Hit locates a paragraph carrying a marker. Table, Row and Cell are zero
// when the paragraph is not inside a table; they refer to the innermost
// enclosing table otherwise. Depth counts the enclosing tables.
type Hit struct {
	Paragraph Node
	Table     Node
	Row       Node
	Cell      Node
	Depth     int
}

// InTable reports whether the hit sits in a table cell.
func (h Hit) InTable() bool {
	return !h.Cell.IsZero()
}

// Find returns the first paragraph under root matching marker, in Walk
// order.
func Find(root Node, marker string, policy MatchPolicy) (Hit, bool) {
	var hit Hit
	found := false
	search(root, marker, policy, func(h Hit) bool {
		hit, found = h, true
		return false
	})
	return hit, found
}

// FindAll returns every matching paragraph in Walk order.
func FindAll(root Node, marker string, policy MatchPolicy) []Hit {
	var hits []Hit
	search(root, marker, policy, func(h Hit) bool {
		hits = append(hits, h)
		return true
	})
	return hits
}

func search(root Node, marker string, policy MatchPolicy, emit func(Hit) bool) {
	if marker == "" {
		return
	}
	Walk(root, func(n Node, ancestors []Node) bool {
		if n.Kind != KindParagraph || !policy.matches(n.Text(), marker) {
			return true
		}
		h := Hit{Paragraph: n}
		for _, a := range ancestors {
			switch a.Kind {
			case KindTable:
				h.Table = a
				h.Depth++
			case KindRow:
				h.Row = a
			case KindCell:
				h.Cell = a
			}
		}
		return emit(h)
	})
}

// cutMarker removes the first occurrence of marker from the paragraph's
// run text. The run holding the start of the marker is split so that text
// after the marker moves to a new run; the run before the split and its
// parent are returned. Both are nil when the split point is not a run.
func cutMarker(p *etree.Element, marker string) (parent *etree.Element, after *etree.Element, ok bool) {
	ts := textElements(p)
	starts := make([]int, len(ts))
	var full strings.Builder
	for i, t := range ts {
		starts[i] = full.Len()
		full.WriteString(t.Text())
	}
	idx := strings.Index(full.String(), marker)
	if idx < 0 || marker == "" {
		return nil, nil, false
	}
	end := idx + len(marker)

	var first *etree.Element
	var suffix string
	for i, t := range ts {
		text := t.Text()
		s, e := starts[i], starts[i]+len(text)
		if e <= idx || s >= end {
			continue
		}
		lo := max(idx-s, 0)
		hi := min(end-s, len(text))
		if first == nil {
			first = t
			suffix = text[hi:]
			setText(t, text[:lo])
			continue
		}
		setText(t, text[:lo]+text[hi:])
	}

	run := first.Parent()
	if run == nil || !isW(run, "r") {
		// Text outside a run; keep the suffix and let the caller append.
		setText(first, first.Text()+suffix)
		return nil, nil, true
	}

	// Split the run after first: the suffix and any later run content move
	// to a sibling run sharing the same formatting.
	tail := etree.NewElement(wTag(run, "r"))
	if rPr := childW(run, "rPr"); rPr != nil {
		tail.AddChild(rPr.Copy())
	}
	if suffix != "" {
		t := tail.CreateElement(wTag(run, "t"))
		setText(t, suffix)
	}
	moving := false
	for _, c := range run.ChildElements() {
		if moving {
			run.RemoveChild(c)
			tail.AddChild(c)
		}
		if c == first {
			moving = true
		}
	}
	if len(tail.ChildElements()) > len(childrenW(tail, "rPr")) {
		insertAfter(run.Parent(), run, tail)
	}
	return run.Parent(), run, true
}

func setText(t *etree.Element, text string) {
	t.SetText(text)
	if text != strings.TrimSpace(text) {
		t.CreateAttr("xml:space", "preserve")
	}
}

func childrenW(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if isW(c, tag) {
			out = append(out, c)
		}
	}
	return out
}

// insertAfter places child right after ref inside parent.
func insertAfter(parent, ref, child *etree.Element) {
	if parent == nil {
		return
	}
	idx := -1
	if ref != nil {
		idx = ref.Index()
	}
	parent.InsertChildAt(idx+1, child)
}
