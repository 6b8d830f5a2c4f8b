package invoicegen

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lvillar/invoicegen/convert"
	"github.com/lvillar/invoicegen/docx"
	"github.com/lvillar/invoicegen/invoice"
	"github.com/lvillar/invoicegen/payment"
)

var testPayee = payment.Payee{
	Name:        "ИП Тестов",
	PersonalAcc: "40802810200000000001",
	BankName:    "Тест Банк",
	BIC:         "044525000",
	CorrespAcc:  "30101810100000000000",
	PayeeINN:    "770000000000",
	Purpose:     "Оплата по счету №{{ID}}",
}

func templateDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/></Types>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `</w:body></w:document>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"[Content_Types].xml", "word/document.xml", "word/_rels/document.xml.rels"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(parts[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeConverter writes a stub PDF next to the DOCX and records its calls.
type fakeConverter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeConverter) Convert(_ context.Context, docxPath, outDir string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, docxPath)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	out := convert.PDFPath(docxPath, outDir)
	return out, os.WriteFile(out, []byte("%PDF-1.4 stub"), 0o644)
}

type fakeUploader struct {
	keys []string
}

func (f *fakeUploader) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	f.keys = append(f.keys, key)
	return "https://example.invalid/" + key, nil
}

func newTestGenerator(t *testing.T, opts ...Option) (*Generator, string) {
	t.Helper()
	out := t.TempDir()
	base := []Option{
		WithTemplate(templateDocx(t, "Счет {{ID}} на {{SUM}}", "{{QR_CODE}}", "QR: {{PAYMENT_QR_PAYLOAD}}")),
		WithOutputDir(out),
		WithResolver(payment.NewResolver(testPayee)),
		WithConverter(&fakeConverter{}),
		WithIDFunc(func() string { return "job-1" }),
		WithInvoiceOptions(invoice.Options{
			Now:   func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) },
			NewID: func() string { return "gen00001" },
		}),
	}
	g, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g, out
}

func documentXML(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading docx: %v", err)
	}
	pkg, err := docx.Open(data)
	if err != nil {
		t.Fatalf("opening docx: %v", err)
	}
	xml, _ := pkg.Part(docx.DocumentPart)
	return string(xml)
}

func TestNewMissingTemplate(t *testing.T) {
	_, err := New(WithTemplatePath(filepath.Join(t.TempDir(), "missing.docx")))
	if !errors.Is(err, ErrNoTemplate) {
		t.Fatalf("expected ErrNoTemplate, got %v", err)
	}
	var ge *GenError
	if !errors.As(err, &ge) || ge.Op != "New" {
		t.Errorf("expected GenError for New, got %v", err)
	}
}

func TestNewRejectsNonDocxTemplate(t *testing.T) {
	_, err := New(WithTemplate([]byte("plain text")), WithOutputDir(t.TempDir()))
	if !errors.Is(err, ErrNoTemplate) {
		t.Fatalf("expected ErrNoTemplate, got %v", err)
	}
}

func TestBuildEmbedsQR(t *testing.T) {
	g, out := newTestGenerator(t)

	res, err := g.Build(context.Background(), invoice.Query{"deal": "A1B2C3", "price": "1500,50"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if res.Dir != filepath.Join(out, "job-1") {
		t.Errorf("unexpected scratch dir %s", res.Dir)
	}
	for _, p := range []string{res.DocxPath, res.PDFPath, res.QRPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
	if !res.Placement.Found || res.Placement.InTable {
		t.Errorf("expected top-level placement, got %+v", res.Placement)
	}
	if res.Placement.WidthMM != DefaultWidthMM {
		t.Errorf("expected default width, got %v", res.Placement.WidthMM)
	}

	want := "ST00012|Name=ИП Тестов|PersonalAcc=40802810200000000001|BankName=Тест Банк|BIC=044525000|" +
		"CorrespAcc=30101810100000000000|PayeeINN=770000000000|Sum=150050|Purpose=Оплата по счету №A1B2C3"
	if res.Payload != want {
		t.Errorf("expected payload\n%s\ngot\n%s", want, res.Payload)
	}

	xml := documentXML(t, res.DocxPath)
	if !strings.Contains(xml, "Счет A1B2C3 на 1500.50") {
		t.Errorf("expected filled values, got %s", xml)
	}
	if strings.Contains(xml, docx.DefaultMarker) {
		t.Error("expected the QR marker to be replaced")
	}
	if !strings.Contains(xml, "QR: ST00012|") {
		t.Error("expected the payload in the template")
	}

	if err := res.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(res.Dir); !os.IsNotExist(err) {
		t.Errorf("expected scratch dir removed, got %v", err)
	}
}

func TestBuildRecordsQRFailure(t *testing.T) {
	g, _ := newTestGenerator(t, WithRenderer(nil))

	res, err := g.Build(context.Background(), invoice.Query{"deal": "X1"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer res.Cleanup()

	if res.QRPath != "" || res.Placement.Found {
		t.Errorf("expected no QR, got %+v", res)
	}
	xml := documentXML(t, res.DocxPath)
	if !strings.Contains(xml, "QR: "+ErrUnavailable.Error()) {
		t.Errorf("expected the QR error in the document, got %s", xml)
	}
	if !strings.Contains(xml, docx.DefaultMarker) {
		t.Error("expected the marker to stay when no QR was produced")
	}
}

func TestBuildWithoutPaymentDetails(t *testing.T) {
	g, _ := newTestGenerator(t, WithResolver(payment.NewResolver(payment.Payee{}, payment.WithRules(nil))))

	res, err := g.Build(context.Background(), invoice.Query{"deal": "X1"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer res.Cleanup()

	if res.QRPath != "" || res.Payload != "" {
		t.Errorf("expected no QR and no payload, got %+v", res)
	}
	xml := documentXML(t, res.DocxPath)
	if strings.Contains(xml, ErrNoPayload.Error()) {
		t.Errorf("expected no error text in the document, got %s", xml)
	}
	if !strings.Contains(xml, "QR: <") {
		t.Errorf("expected an empty payload field, got %s", xml)
	}
}

func TestBuildConversionFailure(t *testing.T) {
	conv := &fakeConverter{err: convert.ErrUnavailable}
	g, out := newTestGenerator(t, WithConverter(conv))

	_, err := g.Build(context.Background(), invoice.Query{"deal": "X1"})
	if !errors.Is(err, convert.ErrUnavailable) {
		t.Fatalf("expected convert.ErrUnavailable, got %v", err)
	}
	if len(conv.calls) != 1 {
		t.Errorf("expected one conversion attempt, got %d", len(conv.calls))
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Errorf("expected scratch dir removed after failure, got %d entries", len(entries))
	}
}

func TestBuildKeepArtifacts(t *testing.T) {
	g, _ := newTestGenerator(t, WithKeepArtifacts(true))
	res, err := g.Build(context.Background(), invoice.Query{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(res.DocxPath); err != nil {
		t.Errorf("expected artifacts kept, got %v", err)
	}
}

func TestBuildUploads(t *testing.T) {
	up := &fakeUploader{}
	g, _ := newTestGenerator(t, WithUploader(up))
	res, err := g.Build(context.Background(), invoice.Query{"deal": "U1"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer res.Cleanup()

	want := []string{"job-1/" + DocxName, "job-1/" + PDFName, "job-1/" + QRName}
	if strings.Join(up.keys, ",") != strings.Join(want, ",") {
		t.Errorf("expected uploads %v, got %v", want, up.keys)
	}
	if res.URLs[PDFName] != "https://example.invalid/job-1/"+PDFName {
		t.Errorf("unexpected url map %v", res.URLs)
	}
}

func TestPaymentQR(t *testing.T) {
	g, _ := newTestGenerator(t)

	qr, err := g.PaymentQR(invoice.Query{"deal": "A1", "qr_purpose": "Аванс"}, 0)
	if err != nil {
		t.Fatalf("PaymentQR: %v", err)
	}
	if !strings.HasSuffix(qr.Payload, "|Purpose=Аванс") {
		t.Errorf("expected override purpose, got %s", qr.Payload)
	}
	decoded, err := base64.StdEncoding.DecodeString(qr.Base64)
	if err != nil || !bytes.Equal(decoded, qr.PNG) {
		t.Error("expected base64 of the png")
	}
	img, err := png.Decode(bytes.NewReader(qr.PNG))
	if err != nil {
		t.Fatalf("decoding png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != qr.Width || b.Dy() != qr.Height {
		t.Errorf("expected %dx%d, got %dx%d", qr.Width, qr.Height, b.Dx(), b.Dy())
	}
}

func TestPaymentQRResize(t *testing.T) {
	g, _ := newTestGenerator(t)
	qr, err := g.PaymentQR(invoice.Query{}, 300)
	if err != nil {
		t.Fatalf("PaymentQR: %v", err)
	}
	if qr.Width != 300 || qr.Height != 300 {
		t.Errorf("expected 300x300, got %dx%d", qr.Width, qr.Height)
	}
}

func TestPaymentQRNoPayload(t *testing.T) {
	// No rules and no payee: nothing can produce a field.
	g, _ := newTestGenerator(t, WithResolver(payment.NewResolver(payment.Payee{}, payment.WithRules(nil))))
	_, err := g.PaymentQR(invoice.Query{"deal": "A1"}, 0)
	if !errors.Is(err, ErrNoPayload) {
		t.Fatalf("expected ErrNoPayload, got %v", err)
	}
}

func TestPaymentQRUnavailable(t *testing.T) {
	g, _ := newTestGenerator(t, WithRenderer(nil))
	_, err := g.PaymentQR(invoice.Query{}, 0)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPrepareStrict(t *testing.T) {
	g, _ := newTestGenerator(t, WithResolver(payment.NewResolver(payment.Payee{Name: "Only name"}, payment.WithStrict(true))))
	_, err := g.Prepare(invoice.Query{})
	if !errors.Is(err, payment.ErrIncompleteDetails) {
		t.Fatalf("expected ErrIncompleteDetails, got %v", err)
	}
}

func TestPrepareWidth(t *testing.T) {
	g, _ := newTestGenerator(t, WithDefaultWidthMM(35))
	in, err := g.Prepare(invoice.Query{"qr_width_mm": "25,5"})
	if err != nil {
		t.Fatal(err)
	}
	if in.WidthMM != 25.5 {
		t.Errorf("expected 25.5, got %v", in.WidthMM)
	}
	in, _ = g.Prepare(invoice.Query{})
	if in.WidthMM != 35 {
		t.Errorf("expected configured default, got %v", in.WidthMM)
	}
}
