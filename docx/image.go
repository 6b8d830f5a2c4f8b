package docx

import (
	"errors"
	"strconv"

	"github.com/beevik/etree"
)

// DrawingML namespaces used by inline pictures.
const (
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// Picture is an image already stored in the package.
type Picture struct {
	RelID    string
	Name     string
	ID       int // unique wp:docPr id
	WidthMM  float64
	HeightMM float64
}

var errNotParagraph = errors.New("docx: target is not a paragraph")

// InsertImage places pic in paragraph p in place of marker.
//
// By default the paragraph keeps only its w:pPr and gains a single run
// holding the picture. With keepText the text around the marker survives
// and the picture run sits where the marker was.
func InsertImage(p Node, marker string, pic Picture, keepText bool) error {
	if p.Kind != KindParagraph || p.El == nil {
		return errNotParagraph
	}
	run := pictureRun(p.El, pic)

	if keepText {
		parent, after, ok := cutMarker(p.El, marker)
		if ok && parent != nil {
			insertAfter(parent, after, run)
			return nil
		}
		p.El.AddChild(run)
		return nil
	}

	for _, c := range p.El.ChildElements() {
		if !isW(c, "pPr") {
			p.El.RemoveChild(c)
		}
	}
	p.El.AddChild(run)
	return nil
}

// pictureRun builds a w:r holding an inline DrawingML picture. Namespace
// declarations are repeated on the inline so the fragment stays valid in
// documents that do not declare them at the root.
func pictureRun(p *etree.Element, pic Picture) *etree.Element {
	cx := strconv.FormatInt(MMToEMU(pic.WidthMM), 10)
	cy := strconv.FormatInt(MMToEMU(pic.HeightMM), 10)
	name := pic.Name
	if name == "" {
		name = "Picture " + strconv.Itoa(pic.ID)
	}

	run := etree.NewElement(wTag(p, "r"))
	drawing := run.CreateElement(wTag(p, "drawing"))

	inline := drawing.CreateElement("wp:inline")
	inline.CreateAttr("xmlns:wp", nsWP)
	inline.CreateAttr("xmlns:a", nsA)
	inline.CreateAttr("xmlns:pic", nsPic)
	inline.CreateAttr("xmlns:r", nsR)
	for _, k := range []string{"distT", "distB", "distL", "distR"} {
		inline.CreateAttr(k, "0")
	}

	extent := inline.CreateElement("wp:extent")
	extent.CreateAttr("cx", cx)
	extent.CreateAttr("cy", cy)

	effect := inline.CreateElement("wp:effectExtent")
	for _, k := range []string{"l", "t", "r", "b"} {
		effect.CreateAttr(k, "0")
	}

	docPr := inline.CreateElement("wp:docPr")
	docPr.CreateAttr("id", strconv.Itoa(pic.ID))
	docPr.CreateAttr("name", name)

	locks := inline.CreateElement("wp:cNvGraphicFramePr").CreateElement("a:graphicFrameLocks")
	locks.CreateAttr("noChangeAspect", "1")

	data := inline.CreateElement("a:graphic").CreateElement("a:graphicData")
	data.CreateAttr("uri", nsPic)
	pp := data.CreateElement("pic:pic")

	nv := pp.CreateElement("pic:nvPicPr")
	cNvPr := nv.CreateElement("pic:cNvPr")
	cNvPr.CreateAttr("id", "0")
	cNvPr.CreateAttr("name", name)
	nv.CreateElement("pic:cNvPicPr")

	fill := pp.CreateElement("pic:blipFill")
	fill.CreateElement("a:blip").CreateAttr("r:embed", pic.RelID)
	fill.CreateElement("a:stretch").CreateElement("a:fillRect")

	spPr := pp.CreateElement("pic:spPr")
	xfrm := spPr.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", "0")
	off.CreateAttr("y", "0")
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", cx)
	ext.CreateAttr("cy", cy)
	geom := spPr.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")

	return run
}

// nextDocPrID returns one more than the largest wp:docPr id under root.
func nextDocPrID(root *etree.Element) int {
	maxID := 0
	var visit func(el *etree.Element)
	visit = func(el *etree.Element) {
		for _, c := range el.ChildElements() {
			if c.Tag == "docPr" {
				if v, err := strconv.Atoi(c.SelectAttrValue("id", "")); err == nil && v > maxID {
					maxID = v
				}
			}
			visit(c)
		}
	}
	if root != nil {
		visit(root)
	}
	return maxID + 1
}
