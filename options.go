package invoicegen

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lvillar/invoicegen/convert"
	"github.com/lvillar/invoicegen/docx"
	"github.com/lvillar/invoicegen/invoice"
	"github.com/lvillar/invoicegen/payment"
	"github.com/lvillar/invoicegen/qrimage"
)

// Defaults used by New.
const (
	DefaultTemplatePath = "./Templates/LeadsForce_v0.docx"
	DefaultOutputDir    = "./output"
	DefaultWidthMM      = 40
)

// Uploader mirrors generated files to remote storage.
// *archive.S3Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Option is a functional option for configuring a Generator via New.
type Option func(*generatorConfig)

type generatorConfig struct {
	templatePath string
	template     []byte
	outputDir    string
	resolver     *payment.Resolver
	renderer     qrimage.Renderer
	padding      qrimage.Padding
	converter    convert.Converter
	embedder     *docx.Embedder
	uploader     Uploader
	log          zerolog.Logger
	widthMM      float64
	newID        func() string
	invoice      invoice.Options
	keep         bool
}

// WithTemplatePath sets the DOCX template read by New.
func WithTemplatePath(path string) Option {
	return func(c *generatorConfig) {
		c.templatePath = path
	}
}

// WithTemplate uses an in-memory template instead of reading a file.
func WithTemplate(data []byte) Option {
	return func(c *generatorConfig) {
		c.template = data
	}
}

// WithOutputDir sets the directory holding per-request scratch folders.
func WithOutputDir(dir string) Option {
	return func(c *generatorConfig) {
		c.outputDir = dir
	}
}

// WithResolver sets how payment details are resolved. The default resolver
// has no payee, so only request parameters contribute.
func WithResolver(r *payment.Resolver) Option {
	return func(c *generatorConfig) {
		c.resolver = r
	}
}

// WithRenderer sets the QR renderer. A nil renderer makes every QR request
// fail with ErrUnavailable.
func WithRenderer(r qrimage.Renderer) Option {
	return func(c *generatorConfig) {
		c.renderer = r
	}
}

// WithPadding sets the white margin added around rendered codes.
func WithPadding(p qrimage.Padding) Option {
	return func(c *generatorConfig) {
		c.padding = p
	}
}

// WithConverter sets the DOCX to PDF converter.
func WithConverter(conv convert.Converter) Option {
	return func(c *generatorConfig) {
		c.converter = conv
	}
}

// WithEmbedder sets the QR placement engine. By default an Embedder with
// the generator's logger is used.
func WithEmbedder(e *docx.Embedder) Option {
	return func(c *generatorConfig) {
		c.embedder = e
	}
}

// WithUploader mirrors every generated file through u.
func WithUploader(u Uploader) Option {
	return func(c *generatorConfig) {
		c.uploader = u
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *generatorConfig) {
		c.log = log
	}
}

// WithDefaultWidthMM sets the QR width used when the request has none.
func WithDefaultWidthMM(mm float64) Option {
	return func(c *generatorConfig) {
		c.widthMM = mm
	}
}

// WithIDFunc sets the generator of scratch directory names.
func WithIDFunc(fn func() string) Option {
	return func(c *generatorConfig) {
		c.newID = fn
	}
}

// WithInvoiceOptions sets the clock, invoice id source and product line
// used for template values.
func WithInvoiceOptions(opts invoice.Options) Option {
	return func(c *generatorConfig) {
		c.invoice = opts
	}
}

// WithKeepArtifacts keeps scratch directories after Cleanup.
func WithKeepArtifacts(keep bool) Option {
	return func(c *generatorConfig) {
		c.keep = keep
	}
}

func defaultConfig() *generatorConfig {
	return &generatorConfig{
		templatePath: DefaultTemplatePath,
		outputDir:    DefaultOutputDir,
		resolver:     payment.NewResolver(payment.Payee{}),
		renderer:     qrimage.NewRenderer(),
		padding:      qrimage.DefaultPadding,
		converter:    convert.NewOffice(),
		log:          zerolog.Nop(),
		widthMM:      DefaultWidthMM,
		newID:        uuid.NewString,
		invoice:      invoice.DefaultOptions(),
	}
}
