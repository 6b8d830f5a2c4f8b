// Package qrimage renders payment payloads as QR bitmaps ready for printing.
//
// Rendering uses github.com/boombuler/barcode; padding and resizing use
// golang.org/x/image/draw. All bitmaps are opaque RGB on white so they
// survive office converters that crop or flatten transparency.
package qrimage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"golang.org/x/image/draw"
)

var (
	// ErrUnavailable means no renderer is configured.
	ErrUnavailable = errors.New("qrimage: renderer unavailable")
	// ErrEncode means the payload could not be encoded, usually because it
	// exceeds QR capacity.
	ErrEncode = errors.New("qrimage: encoding failed")
	// ErrEmptyPayload is returned for blank payloads.
	ErrEmptyPayload = errors.New("qrimage: empty payload")
)

// Renderer turns a payload into a bitmap.
type Renderer interface {
	Render(payload string) (image.Image, error)
}

// Option configures a QRRenderer.
type Option func(*QRRenderer)

// WithModuleSize sets the edge of one QR module in pixels.
func WithModuleSize(px int) Option {
	return func(r *QRRenderer) {
		if px > 0 {
			r.moduleSize = px
		}
	}
}

// WithQuietZone sets the white border, in modules, drawn around the symbol.
func WithQuietZone(modules int) Option {
	return func(r *QRRenderer) {
		if modules >= 0 {
			r.quietZone = modules
		}
	}
}

// WithErrorCorrection selects the level by name: L, M, Q or H.
// Unknown names keep the default.
func WithErrorCorrection(level string) Option {
	return func(r *QRRenderer) {
		switch strings.ToUpper(strings.TrimSpace(level)) {
		case "L":
			r.level = qr.L
		case "M":
			r.level = qr.M
		case "Q":
			r.level = qr.Q
		case "H":
			r.level = qr.H
		}
	}
}

// QRRenderer renders payloads with boombuler/barcode.
type QRRenderer struct {
	moduleSize int
	quietZone  int
	level      qr.ErrorCorrectionLevel
}

// NewRenderer returns a renderer with 10 px modules, a 4-module quiet zone
// and error correction level M.
func NewRenderer(opts ...Option) *QRRenderer {
	r := &QRRenderer{
		moduleSize: 10,
		quietZone:  4,
		level:      qr.M,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render encodes payload as UTF-8 and returns an opaque RGBA image.
func (r *QRRenderer) Render(payload string) (image.Image, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, ErrEmptyPayload
	}

	code, err := qr.Encode(payload, r.level, qr.Unicode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	modules := code.Bounds().Dx()
	side := modules * r.moduleSize
	scaled, err := barcode.Scale(code, side, side)
	if err != nil {
		return nil, fmt.Errorf("%w: scaling: %v", ErrEncode, err)
	}

	border := r.quietZone * r.moduleSize
	canvas := whiteCanvas(side+2*border, side+2*border)
	target := image.Rect(border, border, border+side, border+side)
	draw.Draw(canvas, target, scaled, scaled.Bounds().Min, draw.Src)
	return canvas, nil
}

// Bitmap is an encoded PNG with its pixel dimensions.
type Bitmap struct {
	PNG    []byte
	Width  int
	Height int
}

// Generate renders payload, pads the result and encodes it as PNG.
func Generate(r Renderer, payload string, p Padding) (*Bitmap, error) {
	if r == nil {
		return nil, ErrUnavailable
	}
	img, err := r.Render(payload)
	if err != nil {
		return nil, err
	}
	img = Pad(img, p)

	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Bitmap{PNG: data, Width: b.Dx(), Height: b.Dy()}, nil
}

// EncodePNG encodes img. Opaque images are written as RGB.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("qrimage: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func whiteCanvas(w, h int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return canvas
}
