package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/jptamayo/juris-rag/internal/core/ports"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Extractor loads a document body as plain text from corpus storage, handling
// the formats the corpus actually contains: txt/md, html, pdf.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) LoadBody(ctx context.Context, relativePath, filename string) (string, error) {
	key := path.Join(relativePath, filename)
	reader, err := e.storage.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("open document body: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read document body: %w", err)
	}

	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return extractPDF(raw)
	case ".html", ".htm":
		return strings.TrimSpace(htmlTag.ReplaceAllString(string(raw), " ")), nil
	default:
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("unsupported binary format: %s", filename)
		}
		return strings.TrimSpace(string(raw)), nil
	}
}

func extractPDF(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, textReader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
