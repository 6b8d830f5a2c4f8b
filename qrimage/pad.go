package qrimage

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Padding describes the white margin added around a rendered code so PDF
// renderers that crop image edges do not eat into the quiet zone.
type Padding struct {
	MinPx int     // lower bound in pixels
	Ratio float64 // fraction of the shorter side
}

// DefaultPadding is 32 px or 10% of the shorter side, whichever is larger.
var DefaultPadding = Padding{MinPx: 32, Ratio: 0.1}

// Pixels returns the padding for a w×h image.
func (p Padding) Pixels(w, h int) int {
	shorter := w
	if h < shorter {
		shorter = h
	}
	byRatio := 0
	if p.Ratio > 0 && shorter > 0 {
		byRatio = int(math.Round(float64(shorter) * p.Ratio))
	}
	if p.MinPx > byRatio {
		return p.MinPx
	}
	return byRatio
}

// Pad returns img centred on a white canvas grown by p on every side.
// When the padding is zero img is returned unchanged.
func Pad(img image.Image, p Padding) image.Image {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	pad := p.Pixels(b.Dx(), b.Dy())
	if pad <= 0 {
		return img
	}

	canvas := whiteCanvas(b.Dx()+2*pad, b.Dy()+2*pad)
	target := image.Rect(pad, pad, pad+b.Dx(), pad+b.Dy())
	draw.Draw(canvas, target, img, b.Min, draw.Over)
	return canvas
}

// Resize scales img to a px×px square with nearest-neighbour sampling,
// which keeps module edges sharp. Non-positive sizes return img.
func Resize(img image.Image, px int) image.Image {
	if img == nil || px <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == px && b.Dy() == px {
		return img
	}
	dst := whiteCanvas(px, px)
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
