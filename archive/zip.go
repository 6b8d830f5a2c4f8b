// Package archive bundles generated documents for download and optionally
// mirrors them to S3.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"time"
)

// Entry is one file inside a ZIP bundle.
type Entry struct {
	Name string
	Data []byte
}

// FileEntry reads path into an Entry named name. A missing path yields an
// entry without data, which Zip skips.
func FileEntry(path, name string) (Entry, error) {
	if path == "" {
		return Entry{Name: name}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Entry{Name: name}, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("archive: reading %s: %w", path, err)
	}
	return Entry{Name: name, Data: data}, nil
}

// Zip packs entries in order. Entries without data are skipped.
func Zip(entries ...Entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()
	for _, e := range entries {
		if e.Data == nil {
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, fmt.Errorf("archive: adding %s: %w", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("archive: writing %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: closing zip: %w", err)
	}
	return buf.Bytes(), nil
}
