package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lvillar/invoicegen"
	"github.com/lvillar/invoicegen/config"
	"github.com/lvillar/invoicegen/invoice"
	"github.com/lvillar/invoicegen/payment"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeGenerator writes fixed files into a temp dir per Build.
type fakeGenerator struct {
	t        *testing.T
	buildErr error
	qrErr    error
	noQR     bool
	lastDir  string
	lastSize int
	lastQ    invoice.Query
}

func (f *fakeGenerator) Build(_ context.Context, q invoice.Query) (*invoicegen.Result, error) {
	f.lastQ = q
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	dir := f.t.TempDir()
	f.lastDir = filepath.Join(dir, "job")
	if err := os.MkdirAll(f.lastDir, 0o755); err != nil {
		return nil, err
	}
	res := &invoicegen.Result{ID: "job", Dir: f.lastDir, Payload: "ST00012|Name=X"}
	write := func(name, body string) string {
		p := filepath.Join(f.lastDir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			f.t.Fatal(err)
		}
		return p
	}
	res.DocxPath = write("job.docx", "docx-bytes")
	res.PDFPath = write("job.pdf", "%PDF-1.4 fake")
	if !f.noQR {
		res.QRPath = write(invoicegen.QRName, "png-bytes")
	}
	return res, nil
}

func (f *fakeGenerator) PaymentQR(q invoice.Query, sizePx int) (*invoicegen.QR, error) {
	f.lastQ = q
	f.lastSize = sizePx
	if f.qrErr != nil {
		return nil, f.qrErr
	}
	return &invoicegen.QR{
		Payload: "ST00012|Name=ИП Тестов",
		PNG:     []byte("png-bytes"),
		Base64:  "cG5nLWJ5dGVz",
		Width:   100,
		Height:  100,
	}, nil
}

func newTestServer(t *testing.T, gen Generator, cfg config.ServerConfig) *Server {
	t.Helper()
	s, err := New(gen, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reading zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestIndexAndDocs(t *testing.T) {
	s := newTestServer(t, &fakeGenerator{t: t}, config.ServerConfig{})
	for _, path := range []string{"/", "/docs"} {
		rec := get(t, s, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		var body struct {
			Message   string            `json:"message"`
			Endpoints map[string]string `json:"endpoints"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Message != "LeadForce Document Generator" {
			t.Errorf("%s: unexpected message %q", path, body.Message)
		}
		if body.Endpoints["qr_png"] != "/Document/GetPaymentQr" {
			t.Errorf("%s: unexpected endpoints %v", path, body.Endpoints)
		}
	}
}

func TestFaviconAndHealth(t *testing.T) {
	s := newTestServer(t, &fakeGenerator{t: t}, config.ServerConfig{})
	if rec := get(t, s, "/favicon.ico"); rec.Code != http.StatusNoContent {
		t.Errorf("favicon: expected 204, got %d", rec.Code)
	}
	rec := get(t, s, "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"status":"ok"}` {
		t.Errorf("healthz: got %d %q", rec.Code, rec.Body.String())
	}
}

func TestGetPdf(t *testing.T) {
	gen := &fakeGenerator{t: t}
	s := newTestServer(t, gen, config.ServerConfig{})

	rec := get(t, s, "/Document/GetPdf?deal=A1&price=100")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != invoicegen.ContentTypePDF {
		t.Errorf("expected pdf content type, got %q", ct)
	}
	if rec.Body.String() != "%PDF-1.4 fake" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if gen.lastQ.Get("deal") != "A1" {
		t.Errorf("expected query to reach the generator, got %v", gen.lastQ)
	}
	if _, err := os.Stat(gen.lastDir); !os.IsNotExist(err) {
		t.Errorf("expected scratch dir removed, stat err = %v", err)
	}
}

func TestGetDocx(t *testing.T) {
	s := newTestServer(t, &fakeGenerator{t: t}, config.ServerConfig{})
	rec := get(t, s, "/Document/GetDocx")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != invoicegen.ContentTypeDocx {
		t.Errorf("expected docx content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `inline; filename="document.docx"` {
		t.Errorf("unexpected disposition %q", cd)
	}
}

func TestZipRoutes(t *testing.T) {
	tests := []struct {
		path     string
		noQR     bool
		filename string
		want     []string
	}{
		{"/Document/GetPdfZip", false, "document_pdf.zip", []string{"document.pdf"}},
		{"/Document/GetDocxZip", false, "document_docx.zip", []string{"document.docx"}},
		{"/Document/GetAllZip", false, "documents_full.zip", []string{"document.docx", "document.pdf", "payment_qr.png"}},
		{"/Document/GetAllZip", true, "documents_full.zip", []string{"document.docx", "document.pdf"}},
	}
	for _, tt := range tests {
		s := newTestServer(t, &fakeGenerator{t: t, noQR: tt.noQR}, config.ServerConfig{})
		rec := get(t, s, tt.path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != invoicegen.ContentTypeZip {
			t.Errorf("%s: expected zip content type, got %q", tt.path, ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); cd != fmt.Sprintf("attachment; filename=%q", tt.filename) {
			t.Errorf("%s: unexpected disposition %q", tt.path, cd)
		}
		got := zipNames(t, rec.Body.Bytes())
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("%s (noQR=%v): expected %v, got %v", tt.path, tt.noQR, tt.want, got)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("wrapped: %w", payment.ErrIncompleteDetails), http.StatusBadRequest},
		{fmt.Errorf("convert: %w", errors.New("soffice exited 1")), http.StatusInternalServerError},
		{invoicegen.ErrUnavailable, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		s := newTestServer(t, &fakeGenerator{t: t, buildErr: tt.err}, config.ServerConfig{})
		rec := get(t, s, "/Document/GetPdf")
		if rec.Code != tt.code {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.code, rec.Code)
		}
		if msg := errorBody(t, rec); msg != tt.err.Error() {
			t.Errorf("expected error %q, got %q", tt.err.Error(), msg)
		}
	}
}

func TestGetPaymentQr(t *testing.T) {
	gen := &fakeGenerator{t: t}
	s := newTestServer(t, gen, config.ServerConfig{})

	rec := get(t, s, "/Document/GetPaymentQr?deal=A1&qr_px=300")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	if got := rec.Header().Get(headerQRPayload); got != "ST00012|Name=ИП Тестов" {
		t.Errorf("unexpected payload header %q", got)
	}
	if got := rec.Header().Get(headerQRBase64); got != "cG5nLWJ5dGVz" {
		t.Errorf("unexpected base64 header %q", got)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "png-bytes" {
		t.Errorf("unexpected body %q", body)
	}
	if gen.lastSize != 300 {
		t.Errorf("expected size 300, got %d", gen.lastSize)
	}
}

func TestGetPaymentQrBadSize(t *testing.T) {
	s := newTestServer(t, &fakeGenerator{t: t}, config.ServerConfig{})
	for _, v := range []string{"abc", "-1", "100000"} {
		if rec := get(t, s, "/Document/GetPaymentQr?qr_px="+v); rec.Code != http.StatusBadRequest {
			t.Errorf("qr_px=%s: expected 400, got %d", v, rec.Code)
		}
	}
}

func TestGetPaymentQrErrors(t *testing.T) {
	s := newTestServer(t, &fakeGenerator{t: t, qrErr: &invoicegen.GenError{Op: "PaymentQR", Err: invoicegen.ErrNoPayload}}, config.ServerConfig{})
	rec := get(t, s, "/Document/GetPaymentQr")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorBody(t, rec); msg != msgNoQR {
		t.Errorf("expected %q, got %q", msgNoQR, msg)
	}

	s = newTestServer(t, &fakeGenerator{t: t, qrErr: invoicegen.ErrUnavailable}, config.ServerConfig{})
	if rec := get(t, s, "/Document/GetPaymentQr"); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, &fakeGenerator{t: t}, config.ServerConfig{})
	rec := get(t, s, "/healthz")
	if rec.Header().Get(headerRequestID) == "" {
		t.Error("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(headerRequestID); got != "abc-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
}

func TestRequestLog(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(&fakeGenerator{t: t}, config.ServerConfig{}, zerolog.New(&buf))
	if err != nil {
		t.Fatal(err)
	}
	get(t, s, "/healthz")
	if !bytes.Contains(buf.Bytes(), []byte(`"path":"/healthz"`)) || !bytes.Contains(buf.Bytes(), []byte(`"status":200`)) {
		t.Errorf("expected request log entry, got %q", buf.String())
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &fakeGenerator{t: t}, config.ServerConfig{RateLimit: "2-M"})
	for i := 0; i < 2; i++ {
		if rec := get(t, s, "/healthz"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	if rec := get(t, s, "/healthz"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
}

func TestBadRateLimit(t *testing.T) {
	if _, err := New(&fakeGenerator{t: t}, config.ServerConfig{RateLimit: "lots"}, zerolog.Nop()); err == nil {
		t.Error("expected error for malformed rate limit")
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, &fakeGenerator{t: t}, config.ServerConfig{CORSOrigins: []string{"https://crm.example.com"}})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://crm.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://crm.example.com" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
}
