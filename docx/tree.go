package docx

import (
	"strings"

	"github.com/beevik/etree"
)

// NamespaceW is the WordprocessingML main namespace.
const NamespaceW = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// Kind tags the variant held by a Node.
type Kind int

const (
	KindBody Kind = iota
	KindParagraph
	KindTable
	KindRow
	KindCell
)

func (k Kind) String() string {
	switch k {
	case KindBody:
		return "body"
	case KindParagraph:
		return "paragraph"
	case KindTable:
		return "table"
	case KindRow:
		return "row"
	case KindCell:
		return "cell"
	}
	return "unknown"
}

// Node is one element of the block-level document tree.
type Node struct {
	Kind Kind
	El   *etree.Element
}

// IsZero reports whether n holds no element.
func (n Node) IsZero() bool {
	return n.El == nil
}

// Children returns the block-level children of n in document order.
// Content controls (w:sdt) are transparent.
func (n Node) Children() []Node {
	if n.El == nil {
		return nil
	}
	var out []Node
	var collect func(parent *etree.Element)
	collect = func(parent *etree.Element) {
		for _, el := range parent.ChildElements() {
			switch {
			case isW(el, "sdt"):
				if content := childW(el, "sdtContent"); content != nil {
					collect(content)
				}
			case (n.Kind == KindBody || n.Kind == KindCell) && isW(el, "p"):
				out = append(out, Node{Kind: KindParagraph, El: el})
			case (n.Kind == KindBody || n.Kind == KindCell) && isW(el, "tbl"):
				out = append(out, Node{Kind: KindTable, El: el})
			case n.Kind == KindTable && isW(el, "tr"):
				out = append(out, Node{Kind: KindRow, El: el})
			case n.Kind == KindRow && isW(el, "tc"):
				out = append(out, Node{Kind: KindCell, El: el})
			}
		}
	}
	collect(n.El)
	return out
}

// Walk visits the tree depth first. Inside a body or cell, paragraphs are
// visited before tables; tables descend row by row and cell by cell.
// ancestors holds the path from the walk root to the parent of n and must
// not be retained. Returning false from visit stops the walk.
func Walk(root Node, visit func(n Node, ancestors []Node) bool) {
	walk(root, nil, visit)
}

func walk(n Node, ancestors []Node, visit func(Node, []Node) bool) bool {
	if !visit(n, ancestors) {
		return false
	}
	ancestors = append(ancestors, n)
	children := n.Children()
	// Paragraphs first, then the remaining containers, each in document order.
	for _, pass := range []bool{true, false} {
		for _, c := range children {
			if (c.Kind == KindParagraph) != pass {
				continue
			}
			if !walk(c, ancestors, visit) {
				return false
			}
		}
	}
	return true
}

// Text returns the concatenated run text of a paragraph.
func (n Node) Text() string {
	var b strings.Builder
	for _, t := range textElements(n.El) {
		b.WriteString(t.Text())
	}
	return b.String()
}

// textElements returns the w:t elements that make up a paragraph's visible
// text, in order. Text inside drawings, text boxes and nested paragraphs is
// skipped.
func textElements(p *etree.Element) []*etree.Element {
	var out []*etree.Element
	var descend func(el *etree.Element)
	descend = func(el *etree.Element) {
		for _, c := range el.ChildElements() {
			switch {
			case isW(c, "t"):
				out = append(out, c)
			case isW(c, "p"), isW(c, "drawing"), isW(c, "pict"), isW(c, "txbxContent"),
				isW(c, "pPr"), isW(c, "rPr"), c.Tag == "AlternateContent":
				// not paragraph text
			default:
				descend(c)
			}
		}
	}
	if p != nil {
		descend(p)
	}
	return out
}

// isW reports whether el is the WordprocessingML element tag.
func isW(el *etree.Element, tag string) bool {
	if el == nil || el.Tag != tag {
		return false
	}
	return el.Space == "w" || el.NamespaceURI() == NamespaceW
}

// childW returns the first WordprocessingML child named tag.
func childW(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if isW(c, tag) {
			return c
		}
	}
	return nil
}

// wTag qualifies tag with the WordprocessingML prefix used by el.
func wTag(el *etree.Element, tag string) string {
	prefix := "w"
	if el != nil && el.Space != "" {
		prefix = el.Space
	}
	return prefix + ":" + tag
}

// wAttr returns the value of the w-prefixed attribute key on el.
func wAttr(el *etree.Element, key string) string {
	if el == nil {
		return ""
	}
	for _, a := range el.Attr {
		if a.Key == key && (a.Space == "w" || a.Space == el.Space) {
			return a.Value
		}
	}
	return ""
}

// setWAttr sets the w-prefixed attribute key on el.
func setWAttr(el *etree.Element, key, value string) {
	el.CreateAttr(wTag(el, key), value)
}
