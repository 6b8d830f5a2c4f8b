// Package invoicegen produces invoices from a DOCX template: it fills the
// template from request parameters, embeds a payment QR code that follows
// the ST00012 convention, and converts the result to PDF.
//
// Example:
//
//	gen, err := invoicegen.New(
//	    invoicegen.WithTemplatePath("./Templates/invoice.docx"),
//	    invoicegen.WithResolver(payment.NewResolver(payee)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := gen.Build(ctx, invoice.Query{"deal": "A1B2C3", "price": "1500"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer res.Cleanup()
package invoicegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/lvillar/invoicegen/convert"
	"github.com/lvillar/invoicegen/docx"
	"github.com/lvillar/invoicegen/invoice"
	"github.com/lvillar/invoicegen/payment"
	"github.com/lvillar/invoicegen/qrimage"
)

// File names inside bundles and scratch directories.
const (
	DocxName = "document.docx"
	PDFName  = "document.pdf"
	QRName   = "payment_qr.png"
)

// Generator builds invoices. It is safe for concurrent use; every Build
// works in its own scratch directory.
type Generator struct {
	cfg generatorConfig
}

// New creates a Generator. The template is read and validated once.
func New(opts ...Option) (*Generator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.embedder == nil {
		cfg.embedder = docx.NewEmbedder(docx.WithLogger(cfg.log))
	}
	if cfg.resolver == nil {
		cfg.resolver = payment.NewResolver(payment.Payee{})
	}

	if cfg.template == nil {
		data, err := os.ReadFile(cfg.templatePath)
		if err != nil {
			return nil, newGenError("New", fmt.Errorf("%w: %v", ErrNoTemplate, err))
		}
		cfg.template = data
	}
	if _, err := docx.Open(cfg.template); err != nil {
		return nil, newGenError("New", fmt.Errorf("%w: %v", ErrNoTemplate, err))
	}

	if err := os.MkdirAll(cfg.outputDir, 0o755); err != nil {
		return nil, newGenError("New", fmt.Errorf("creating output dir: %w", err))
	}
	return &Generator{cfg: *cfg}, nil
}

// Inputs are the values derived from one request.
type Inputs struct {
	Replacements map[string]string
	Details      payment.Details
	Payload      string
	WidthMM      float64
}

// Prepare derives template values, payment details and the QR width from
// q. With a strict resolver, incomplete details are an error wrapping
// payment.ErrIncompleteDetails.
func (g *Generator) Prepare(q invoice.Query) (*Inputs, error) {
	repl := invoice.Replacements(q, g.cfg.invoice)
	details, err := g.cfg.resolver.ResolveStrict(payment.Inputs{
		Query:      q,
		InvoiceID:  repl[invoice.KeyID],
		InvoiceSum: repl[invoice.KeySum],
	})
	if err != nil {
		return nil, newGenError("Prepare", err)
	}
	return &Inputs{
		Replacements: repl,
		Details:      details,
		Payload:      payment.BuildPayload(details),
		WidthMM:      invoice.QRWidthMM(q, g.cfg.widthMM),
	}, nil
}

// Result describes the files produced by Build.
type Result struct {
	ID        string
	Dir       string
	DocxPath  string
	PDFPath   string
	QRPath    string // empty when no QR code was produced
	Payload   string
	Placement docx.Placement
	PDF       convert.Info
	URLs      map[string]string // remote copies by file name

	keep bool
}

// Cleanup removes the scratch directory unless artifacts are kept.
func (r *Result) Cleanup() error {
	if r == nil || r.keep || r.Dir == "" {
		return nil
	}
	return os.RemoveAll(r.Dir)
}

// Build fills the template, embeds the payment QR code and converts the
// document to PDF. Without payment details the QR fields stay empty; other
// QR failures are recorded in the document and logged. Template and
// conversion failures are returned. The caller owns the
// returned Result and must call Cleanup.
func (g *Generator) Build(ctx context.Context, q invoice.Query) (*Result, error) {
	in, err := g.Prepare(q)
	if err != nil {
		return nil, err
	}

	id := g.cfg.newID()
	dir := filepath.Join(g.cfg.outputDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newGenError("Build", fmt.Errorf("creating scratch dir: %w", err))
	}
	res := &Result{ID: id, Dir: dir, Payload: in.Payload, keep: g.cfg.keep}
	log := g.cfg.log.With().Str("build", id).Str("invoice", in.Replacements[invoice.KeyID]).Logger()

	fail := func(err error) (*Result, error) {
		if cerr := res.Cleanup(); cerr != nil {
			log.Warn().Err(cerr).Msg("removing scratch dir")
		}
		return nil, newGenError("Build", err)
	}

	values := make(map[string]string, len(in.Replacements))
	for k, v := range in.Replacements {
		values[k] = v
	}

	qr, err := g.renderQR(in.Payload, 0)
	switch {
	case errors.Is(err, ErrNoPayload):
		log.Info().Msg("no payment details, invoice without qr code")
		values[invoice.KeyPaymentQRPayload] = ""
		values[invoice.KeyPaymentQRBase64] = ""
	case err != nil:
		log.Warn().Err(err).Msg("payment qr not generated")
		values[invoice.KeyPaymentQRPayload] = err.Error()
		values[invoice.KeyPaymentQRBase64] = ""
	default:
		res.QRPath = filepath.Join(dir, QRName)
		if err := os.WriteFile(res.QRPath, qr.PNG, 0o644); err != nil {
			return fail(fmt.Errorf("writing qr image: %w", err))
		}
		values[invoice.KeyPaymentQRPayload] = qr.Payload
		values[invoice.KeyPaymentQRBase64] = qr.Base64
	}

	doc, err := docx.Fill(g.cfg.template, values)
	if err != nil {
		return fail(fmt.Errorf("filling template: %w", err))
	}
	if qr != nil {
		doc = g.embed(doc, qr.PNG, in.WidthMM, res, log)
	}

	res.DocxPath = filepath.Join(dir, id+".docx")
	if err := os.WriteFile(res.DocxPath, doc, 0o644); err != nil {
		return fail(fmt.Errorf("writing docx: %w", err))
	}

	if g.cfg.converter == nil {
		return fail(fmt.Errorf("%w: no pdf converter", ErrUnavailable))
	}
	pdfPath, err := g.cfg.converter.Convert(ctx, res.DocxPath, dir)
	if err != nil {
		return fail(err)
	}
	res.PDFPath = pdfPath

	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return fail(fmt.Errorf("reading pdf: %w", err))
	}
	if len(pdf) == 0 {
		return fail(ErrEmptyOutput)
	}
	if info, err := convert.Inspect(pdf); err != nil {
		log.Warn().Err(err).Msg("pdf not inspectable")
	} else {
		res.PDF = info
		log.Info().Int("pages", info.Pages).Float64("width_pt", info.WidthPt).Float64("height_pt", info.HeightPt).Msg("pdf produced")
	}

	g.upload(ctx, res, doc, pdf, qr, log)
	return res, nil
}

// embed places the QR image in doc. Placement problems leave the filled
// document as it was.
func (g *Generator) embed(doc, png []byte, widthMM float64, res *Result, log zerolog.Logger) []byte {
	pkg, err := docx.Open(doc)
	if err != nil {
		log.Error().Err(err).Msg("reopening filled document")
		return doc
	}
	placement, err := g.cfg.embedder.EmbedQR(pkg, png, widthMM)
	switch {
	case errors.Is(err, docx.ErrPlaceholderNotFound):
		log.Info().Str("marker", g.cfg.embedder.Marker()).Msg("no qr placeholder in template")
		return doc
	case err != nil:
		log.Error().Err(err).Msg("embedding qr code")
		return doc
	}
	out, err := pkg.Bytes()
	if err != nil {
		log.Error().Err(err).Msg("serialising document")
		return doc
	}
	res.Placement = placement
	return out
}

type artifact struct {
	name, contentType string
	data              []byte
}

func (g *Generator) upload(ctx context.Context, res *Result, doc, pdf []byte, qr *QR, log zerolog.Logger) {
	if g.cfg.uploader == nil {
		return
	}
	files := []artifact{
		{DocxName, ContentTypeDocx, doc},
		{PDFName, ContentTypePDF, pdf},
	}
	if qr != nil {
		files = append(files, artifact{QRName, ContentTypePNG, qr.PNG})
	}

	res.URLs = make(map[string]string, len(files))
	for _, f := range files {
		url, err := g.cfg.uploader.Upload(ctx, res.ID+"/"+f.name, f.data, f.contentType)
		if err != nil {
			log.Warn().Err(err).Str("file", f.name).Msg("upload failed")
			continue
		}
		res.URLs[f.name] = url
	}
}

// Content types of generated files.
const (
	ContentTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypePDF  = "application/pdf"
	ContentTypePNG  = "image/png"
	ContentTypeZip  = "application/zip"
)

// QR is a rendered payment code.
type QR struct {
	Payload string
	PNG     []byte
	Base64  string
	Width   int
	Height  int
}

// PaymentQR resolves payment details from q and renders them. sizePx
// rescales the padded image to a square of that many pixels when positive.
// An empty payload is ErrNoPayload; a missing renderer is ErrUnavailable.
func (g *Generator) PaymentQR(q invoice.Query, sizePx int) (*QR, error) {
	in, err := g.Prepare(q)
	if err != nil {
		return nil, err
	}
	qr, err := g.renderQR(in.Payload, sizePx)
	if err != nil {
		return nil, newGenError("PaymentQR", err)
	}
	return qr, nil
}

func (g *Generator) renderQR(payload string, sizePx int) (*QR, error) {
	if payment.IsEmptyPayload(payload) {
		return nil, ErrNoPayload
	}
	if g.cfg.renderer == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, qrimage.ErrUnavailable)
	}

	var data []byte
	var w, h int
	if sizePx <= 0 {
		bm, err := qrimage.Generate(g.cfg.renderer, payload, g.cfg.padding)
		if err != nil {
			return nil, err
		}
		data, w, h = bm.PNG, bm.Width, bm.Height
	} else {
		img, err := g.cfg.renderer.Render(payload)
		if err != nil {
			return nil, err
		}
		img = qrimage.Resize(qrimage.Pad(img, g.cfg.padding), sizePx)
		if data, err = qrimage.EncodePNG(img); err != nil {
			return nil, err
		}
		w, h = img.Bounds().Dx(), img.Bounds().Dy()
	}

	return &QR{
		Payload: payload,
		PNG:     data,
		Base64:  base64.StdEncoding.EncodeToString(data),
		Width:   w,
		Height:  h,
	}, nil
}
