package convert

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/phpdave11/gofpdi"
)

// ErrInvalidPDF is returned by Inspect for data gofpdi cannot parse or for
// documents without pages.
var ErrInvalidPDF = errors.New("convert: invalid pdf")

// Info summarises a produced PDF.
type Info struct {
	Pages    int
	WidthPt  float64 // first page media box
	HeightPt float64
}

// Inspect reads the page count and first page size of a PDF.
func Inspect(pdf []byte) (info Info, err error) {
	if len(pdf) == 0 {
		return Info{}, fmt.Errorf("%w: empty", ErrInvalidPDF)
	}
	// gofpdi reports parse failures by panicking.
	defer func() {
		if r := recover(); r != nil {
			info, err = Info{}, fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	imp := gofpdi.NewImporter()
	var rs io.ReadSeeker = bytes.NewReader(pdf)
	imp.SetSourceStream(&rs)

	sizes := imp.GetPageSizes()
	info.Pages = len(sizes)
	if info.Pages == 0 {
		return Info{}, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	if boxes, ok := sizes[1]; ok {
		if mb, ok := boxes["/MediaBox"]; ok {
			info.WidthPt = mb["w"]
			info.HeightPt = mb["h"]
		}
	}
	return info, nil
}
