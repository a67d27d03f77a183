// Package extractor turns stored document blobs into plain text, routing on
// the document's mime type. Unsupported types are input errors, not faults.
package extractor

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/dkotenko/doc-analysis-service/internal/core/domain"
	"github.com/dkotenko/doc-analysis-service/internal/core/ports"
)

type extractFunc func(raw []byte) (string, error)

type Extractor struct {
	storage ports.ObjectStorage
	byMime  map[string]extractFunc
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{
		storage: storage,
		byMime: map[string]extractFunc{
			"text/plain":       extractPlaintext,
			"text/csv":         extractPlaintext,
			"text/markdown":    extractPlaintext,
			"application/json": extractPlaintext,
			"application/pdf":  extractPDF,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": extractXLSX,
		},
	}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	fn, err := e.resolve(doc.MimeType)
	if err != nil {
		return "", err
	}

	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	text, err := fn(raw)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", doc.MimeType, err)
	}
	return strings.TrimSpace(text), nil
}

func (e *Extractor) resolve(mimeType string) (extractFunc, error) {
	parsed, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		parsed = strings.ToLower(strings.TrimSpace(mimeType))
	}
	fn, ok := e.byMime[parsed]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported content type %q", mimeType))
	}
	return fn, nil
}
