// Package convert turns filled DOCX files into PDF and inspects the result.
//
// The default converter drives LibreOffice in headless mode:
//
//	conv := convert.NewOffice(convert.WithTimeout(time.Minute))
//	pdfPath, err := conv.Convert(ctx, "/tmp/job/invoice.docx", "/tmp/job")
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrUnavailable is returned when the conversion tool is not installed.
	ErrUnavailable = errors.New("convert: converter unavailable")
	// ErrFailed is returned when the conversion tool ran but produced no PDF.
	ErrFailed = errors.New("convert: conversion failed")
)

// Converter converts a DOCX file into a PDF inside outDir and returns the
// PDF path.
type Converter interface {
	Convert(ctx context.Context, docxPath, outDir string) (string, error)
}

// Func adapts a function to Converter.
type Func func(ctx context.Context, docxPath, outDir string) (string, error)

// Convert calls f.
func (f Func) Convert(ctx context.Context, docxPath, outDir string) (string, error) {
	return f(ctx, docxPath, outDir)
}

// DefaultBinary is the LibreOffice executable looked up on PATH.
const DefaultBinary = "soffice"

// Office converts documents with a headless LibreOffice process.
type Office struct {
	binary  string
	timeout time.Duration
	log     zerolog.Logger
}

// OfficeOption configures an Office converter.
type OfficeOption func(*Office)

// WithBinary sets the executable name or path.
func WithBinary(path string) OfficeOption {
	return func(o *Office) { o.binary = path }
}

// WithTimeout bounds a single conversion. Zero disables the bound.
func WithTimeout(d time.Duration) OfficeOption {
	return func(o *Office) { o.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) OfficeOption {
	return func(o *Office) { o.log = log }
}

// NewOffice returns a converter running DefaultBinary with a two minute
// timeout.
func NewOffice(opts ...OfficeOption) *Office {
	o := &Office{
		binary:  DefaultBinary,
		timeout: 2 * time.Minute,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Convert runs `soffice --headless --convert-to pdf --outdir outDir docxPath`.
// Each call uses its own LibreOffice profile under outDir so concurrent
// conversions do not contend for the user profile lock.
func (o *Office) Convert(ctx context.Context, docxPath, outDir string) (string, error) {
	bin, err := exec.LookPath(o.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, o.binary, err)
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	profile, err := filepath.Abs(filepath.Join(outDir, ".lo-profile"))
	if err != nil {
		return "", fmt.Errorf("convert: resolving profile dir: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-env:UserInstallation=file://"+filepath.ToSlash(profile),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		docxPath,
	)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s: %v: %s", ErrFailed, filepath.Base(bin), err, strings.TrimSpace(stderr.String()))
	}

	pdfPath := PDFPath(docxPath, outDir)
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("%w: %s not produced", ErrFailed, pdfPath)
	}
	o.log.Debug().
		Str("input", docxPath).
		Str("output", pdfPath).
		Dur("elapsed", time.Since(start)).
		Msg("convert: docx converted")
	return pdfPath, nil
}

// PDFPath returns where a converter writes the PDF for docxPath.
func PDFPath(docxPath, outDir string) string {
	base := filepath.Base(docxPath)
	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
}
