// Package docx edits WordprocessingML packages in memory: raw placeholder
// substitution, a paragraph/table tree walker, and image placement that
// sizes pictures to fit the table cell they land in.
//
// Only word/document.xml, its relationships and the content types are
// parsed; every other part is carried through byte for byte.
//
//	pkg, err := docx.Open(data)
//	if err != nil {
//	    return err
//	}
//	placement, err := docx.NewEmbedder().EmbedQR(pkg, png, 40)
//	if errors.Is(err, docx.ErrPlaceholderNotFound) {
//	    // ship the document without a QR code
//	}
//	out, err := pkg.Bytes()
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// Part names inside a DOCX package.
const (
	DocumentPart      = "word/document.xml"
	DocumentRelsPart  = "word/_rels/document.xml.rels"
	ContentTypesPart  = "[Content_Types].xml"
	relsNamespace     = "http://schemas.openxmlformats.org/package/2006/relationships"
	typesNamespace    = "http://schemas.openxmlformats.org/package/2006/content-types"
	imageRelationship = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

var (
	// ErrInvalidPackage is returned for archives that are not DOCX files.
	ErrInvalidPackage = errors.New("docx: invalid package")
	// ErrPlaceholderNotFound is returned when no paragraph carries the marker.
	ErrPlaceholderNotFound = errors.New("docx: placeholder not found")
)

type part struct {
	name     string
	data     []byte
	modified time.Time
}

// Package is an opened DOCX archive.
type Package struct {
	parts []*part
	index map[string]*part

	doc   *etree.Document
	rels  *etree.Document
	types *etree.Document
}

// Open reads a DOCX archive from data.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	pkg := &Package{index: make(map[string]*part, len(zr.File))}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("docx: opening %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("docx: reading %s: %w", f.Name, err)
		}
		p := &part{name: f.Name, data: content, modified: f.Modified}
		pkg.parts = append(pkg.parts, p)
		pkg.index[f.Name] = p
	}

	if _, ok := pkg.index[DocumentPart]; !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidPackage, DocumentPart)
	}
	return pkg, nil
}

// Part returns the raw bytes of a part. Parsed parts are serialised first.
func (p *Package) Part(name string) ([]byte, bool) {
	if err := p.flush(); err != nil {
		return nil, false
	}
	pt, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return pt.data, true
}

// SetPart replaces or adds a part. Replacing a parsed part discards the
// parsed tree.
func (p *Package) SetPart(name string, data []byte) {
	switch name {
	case DocumentPart:
		p.doc = nil
	case DocumentRelsPart:
		p.rels = nil
	case ContentTypesPart:
		p.types = nil
	}
	if pt, ok := p.index[name]; ok {
		pt.data = data
		return
	}
	pt := &part{name: name, data: data, modified: time.Now()}
	p.parts = append(p.parts, pt)
	p.index[name] = pt
}

// PartNames lists parts in archive order.
func (p *Package) PartNames() []string {
	names := make([]string, len(p.parts))
	for i, pt := range p.parts {
		names[i] = pt.name
	}
	return names
}

// Document returns the parsed main document part.
func (p *Package) Document() (*etree.Document, error) {
	if p.doc != nil {
		return p.doc, nil
	}
	doc, err := p.parse(DocumentPart)
	if err != nil {
		return nil, err
	}
	p.doc = doc
	return doc, nil
}

// Body returns the w:body node of the main document.
func (p *Package) Body() (Node, error) {
	doc, err := p.Document()
	if err != nil {
		return Node{}, err
	}
	root := doc.Root()
	if root == nil || root.Tag != "document" {
		return Node{}, fmt.Errorf("%w: no w:document root", ErrInvalidPackage)
	}
	for _, el := range root.ChildElements() {
		if isW(el, "body") {
			return Node{Kind: KindBody, El: el}, nil
		}
	}
	return Node{}, fmt.Errorf("%w: no w:body", ErrInvalidPackage)
}

// AddImage stores a PNG under word/media, links it from the main document
// and returns the relationship id.
func (p *Package) AddImage(png []byte) (string, error) {
	rels, err := p.relationships()
	if err != nil {
		return "", err
	}
	if err := p.ensureDefaultType("png", "image/png"); err != nil {
		return "", err
	}

	n := 1
	for {
		if _, taken := p.index[fmt.Sprintf("word/media/image%d.png", n)]; !taken {
			break
		}
		n++
	}
	name := fmt.Sprintf("word/media/image%d.png", n)
	p.SetPart(name, png)

	root := rels.Root()
	used := make(map[string]bool)
	for _, rel := range root.SelectElements("Relationship") {
		used[rel.SelectAttrValue("Id", "")] = true
	}
	id := ""
	for i := len(used) + 1; ; i++ {
		if candidate := "rId" + strconv.Itoa(i); !used[candidate] {
			id = candidate
			break
		}
	}

	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", imageRelationship)
	rel.CreateAttr("Target", strings.TrimPrefix(name, "word/"))
	return id, nil
}

// Bytes serialises the package as a DOCX archive.
func (p *Package) Bytes() ([]byte, error) {
	if err := p.flush(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, pt := range p.parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     pt.name,
			Method:   zip.Deflate,
			Modified: pt.modified,
		})
		if err != nil {
			return nil, fmt.Errorf("docx: writing %s: %w", pt.name, err)
		}
		if _, err := w.Write(pt.data); err != nil {
			return nil, fmt.Errorf("docx: writing %s: %w", pt.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("docx: closing archive: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Package) parse(name string) (*etree.Document, error) {
	pt, ok := p.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidPackage, name)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(pt.data); err != nil {
		return nil, fmt.Errorf("docx: parsing %s: %w", name, err)
	}
	return doc, nil
}

func (p *Package) relationships() (*etree.Document, error) {
	if p.rels != nil {
		return p.rels, nil
	}
	if _, ok := p.index[DocumentRelsPart]; !ok {
		doc := etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
		doc.CreateElement("Relationships").CreateAttr("xmlns", relsNamespace)
		p.rels = doc
		p.index[DocumentRelsPart] = &part{name: DocumentRelsPart, modified: time.Now()}
		p.parts = append(p.parts, p.index[DocumentRelsPart])
		return doc, nil
	}
	doc, err := p.parse(DocumentRelsPart)
	if err != nil {
		return nil, err
	}
	p.rels = doc
	return doc, nil
}

func (p *Package) ensureDefaultType(ext, contentType string) error {
	if p.types == nil {
		if _, ok := p.index[ContentTypesPart]; !ok {
			doc := etree.NewDocument()
			doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
			doc.CreateElement("Types").CreateAttr("xmlns", typesNamespace)
			p.types = doc
			p.index[ContentTypesPart] = &part{name: ContentTypesPart, modified: time.Now()}
			p.parts = append([]*part{p.index[ContentTypesPart]}, p.parts...)
		} else {
			doc, err := p.parse(ContentTypesPart)
			if err != nil {
				return err
			}
			p.types = doc
		}
	}

	root := p.types.Root()
	for _, d := range root.SelectElements("Default") {
		if strings.EqualFold(d.SelectAttrValue("Extension", ""), ext) {
			return nil
		}
	}
	d := etree.NewElement("Default")
	d.CreateAttr("Extension", ext)
	d.CreateAttr("ContentType", contentType)
	root.InsertChildAt(0, d)
	return nil
}

// flush writes parsed trees back into their parts.
func (p *Package) flush() error {
	for name, doc := range map[string]*etree.Document{
		DocumentPart:     p.doc,
		DocumentRelsPart: p.rels,
		ContentTypesPart: p.types,
	} {
		if doc == nil {
			continue
		}
		data, err := doc.WriteToBytes()
		if err != nil {
			return fmt.Errorf("docx: serialising %s: %w", name, err)
		}
		p.index[name].data = data
	}
	return nil
}
