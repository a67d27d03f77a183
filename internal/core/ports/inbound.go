package ports

import (
	"context"
	"io"

	"github.com/dkotenko/doc-analysis-service/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) (*domain.Document, error)
	ProcessBatch(ctx context.Context) (domain.BatchResult, error)
}
