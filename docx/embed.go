package docx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png" // register the PNG decoder for DecodeConfig

	"github.com/rs/zerolog"
)

// DefaultMarker is the placeholder replaced by the payment QR code.
const DefaultMarker = "{{QR_CODE}}"

// Placement reports where and how large an embedded image ended up.
type Placement struct {
	Found    bool
	InTable  bool
	Depth    int
	WidthMM  float64
	HeightMM float64
	RelID    string
}

// Embedder places QR images at a marker.
type Embedder struct {
	marker   string
	policy   MatchPolicy
	fit      Fit
	keepText bool
	log      zerolog.Logger
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithMarker sets the placeholder text.
func WithMarker(marker string) EmbedderOption {
	return func(e *Embedder) { e.marker = marker }
}

// WithPolicy sets the paragraph match policy.
func WithPolicy(p MatchPolicy) EmbedderOption {
	return func(e *Embedder) { e.policy = p }
}

// WithFit overrides DefaultFit.
func WithFit(f Fit) EmbedderOption {
	return func(e *Embedder) { e.fit = f }
}

// WithKeepText keeps paragraph text around the marker.
func WithKeepText(keep bool) EmbedderOption {
	return func(e *Embedder) { e.keepText = keep }
}

// WithLogger sets the logger for cell adjustment warnings.
func WithLogger(log zerolog.Logger) EmbedderOption {
	return func(e *Embedder) { e.log = log }
}

// NewEmbedder returns an Embedder matching DefaultMarker anywhere in a
// paragraph.
func NewEmbedder(opts ...EmbedderOption) *Embedder {
	e := &Embedder{
		marker: DefaultMarker,
		policy: MatchContains,
		fit:    DefaultFit,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Marker returns the placeholder text.
func (e *Embedder) Marker() string { return e.marker }

// EmbedQR replaces the first marker in pkg with png, sized to
// requestedWidthMM bounded by the enclosing table cell. When no paragraph
// carries the marker it returns ErrPlaceholderNotFound and leaves pkg
// unchanged.
func (e *Embedder) EmbedQR(pkg *Package, png []byte, requestedWidthMM float64) (Placement, error) {
	body, err := pkg.Body()
	if err != nil {
		return Placement{}, err
	}
	hit, ok := Find(body, e.marker, e.policy)
	if !ok {
		return Placement{}, ErrPlaceholderNotFound
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return Placement{}, fmt.Errorf("docx: reading image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Placement{}, fmt.Errorf("docx: reading image: empty %dx%d bitmap", cfg.Width, cfg.Height)
	}

	g := Measure(hit)
	g.Aspect = float64(cfg.Height) / float64(cfg.Width)
	width := e.fit.EffectiveWidth(requestedWidthMM, g)
	height := width * g.Aspect

	if hit.InTable() {
		e.fit.EnsureCellFits(hit, height, e.log)
	}

	relID, err := pkg.AddImage(png)
	if err != nil {
		return Placement{}, err
	}
	doc, err := pkg.Document()
	if err != nil {
		return Placement{}, err
	}
	pic := Picture{
		RelID:    relID,
		Name:     "Payment QR",
		ID:       nextDocPrID(doc.Root()),
		WidthMM:  width,
		HeightMM: height,
	}
	if err := InsertImage(hit.Paragraph, e.marker, pic, e.keepText); err != nil {
		return Placement{}, err
	}

	e.log.Debug().
		Bool("in_table", hit.InTable()).
		Int("depth", hit.Depth).
		Float64("width_mm", width).
		Float64("requested_mm", requestedWidthMM).
		Msg("docx: qr placed")

	return Placement{
		Found:    true,
		InTable:  hit.InTable(),
		Depth:    hit.Depth,
		WidthMM:  width,
		HeightMM: height,
		RelID:    relID,
	}, nil
}
