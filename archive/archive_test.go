package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestZipKeepsOrderAndSkipsEmpty(t *testing.T) {
	data, err := Zip(
		Entry{Name: "document.docx", Data: []byte("docx")},
		Entry{Name: "document.pdf"},
		Entry{Name: "payment_qr.png", Data: []byte("png")},
	)
	if err != nil {
		t.Fatalf("Zip: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reading zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 files, got %d", len(zr.File))
	}
	if zr.File[0].Name != "document.docx" || zr.File[1].Name != "payment_qr.png" {
		t.Errorf("unexpected order: %s, %s", zr.File[0].Name, zr.File[1].Name)
	}
	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	content, _ := io.ReadAll(rc)
	if string(content) != "png" {
		t.Errorf("expected png content, got %q", content)
	}
}

func TestFileEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := FileEntry(path, "document.pdf")
	if err != nil || string(e.Data) != "%PDF" || e.Name != "document.pdf" {
		t.Errorf("unexpected entry %+v (%v)", e, err)
	}

	missing, err := FileEntry(filepath.Join(dir, "nope.png"), "payment_qr.png")
	if err != nil || missing.Data != nil {
		t.Errorf("expected empty entry for a missing file, got %+v (%v)", missing, err)
	}
}

type fakeS3 struct {
	in  *s3.PutObjectInput
	err error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Upload(t *testing.T) {
	fake := &fakeS3{}
	u := NewS3Uploader(fake, "invoices", "eu-central-1", "/generated/")

	url, err := u.Upload(context.Background(), "abc/document.pdf", []byte("%PDF"), "application/pdf")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if want := "https://invoices.s3.eu-central-1.amazonaws.com/generated/abc/document.pdf"; url != want {
		t.Errorf("expected %s, got %s", want, url)
	}
	if aws.ToString(fake.in.Key) != "generated/abc/document.pdf" {
		t.Errorf("unexpected key %q", aws.ToString(fake.in.Key))
	}
	if aws.ToString(fake.in.ContentType) != "application/pdf" {
		t.Errorf("unexpected content type %q", aws.ToString(fake.in.ContentType))
	}
}

func TestS3UploadError(t *testing.T) {
	boom := errors.New("access denied")
	u := NewS3Uploader(&fakeS3{err: boom}, "invoices", "eu-central-1", "")
	if _, err := u.Upload(context.Background(), "k", nil, "text/plain"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
