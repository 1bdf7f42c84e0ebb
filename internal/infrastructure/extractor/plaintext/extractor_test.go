package plaintext

import (
	"context"
	"io"
	"strings"
	"testing"
)

type storageFake struct {
	files map[string]string
	key   string
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.key = key
	content, ok := f.files[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func TestLoadBodyPlainText(t *testing.T) {
	storage := &storageFake{files: map[string]string{
		"statutes/ra-7394.txt": "  AN ACT TO PROTECT CONSUMERS  ",
	}}
	e := NewExtractor(storage)

	body, err := e.LoadBody(context.Background(), "statutes", "ra-7394.txt")
	if err != nil {
		t.Fatalf("LoadBody() error = %v", err)
	}
	if body != "AN ACT TO PROTECT CONSUMERS" {
		t.Fatalf("unexpected body %q", body)
	}
	if storage.key != "statutes/ra-7394.txt" {
		t.Fatalf("unexpected storage key %q", storage.key)
	}
}

func TestLoadBodyHTMLTagsStripped(t *testing.T) {
	storage := &storageFake{files: map[string]string{
		"cases/gr-1.html": "<html><body><h1>Decision</h1><p>The petition is granted.</p></body></html>",
	}}
	e := NewExtractor(storage)

	body, err := e.LoadBody(context.Background(), "cases", "gr-1.html")
	if err != nil {
		t.Fatalf("LoadBody() error = %v", err)
	}
	if strings.Contains(body, "<") {
		t.Fatalf("tags survived: %q", body)
	}
	if !strings.Contains(body, "The petition is granted.") {
		t.Fatalf("text lost: %q", body)
	}
}

func TestLoadBodyRejectsBinary(t *testing.T) {
	storage := &storageFake{files: map[string]string{
		"blobs/raw.bin": string([]byte{0xff, 0xfe, 0x00, 0x80}),
	}}
	e := NewExtractor(storage)

	if _, err := e.LoadBody(context.Background(), "blobs", "raw.bin"); err == nil {
		t.Fatalf("expected error for invalid utf-8")
	}
}

func TestLoadBodyStorageError(t *testing.T) {
	e := NewExtractor(&storageFake{})
	if _, err := e.LoadBody(context.Background(), "missing", "doc.txt"); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
