package ports

import (
	"context"
	"io"

	"github.com/dkotenko/doc-analysis-service/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	// ClaimForProcessing atomically moves a PENDING/QUEUED document to
	// PROCESSING. Returns ErrConflict when the document is not eligible.
	ClaimForProcessing(ctx context.Context, id string) error
	// MarkTerminal writes a terminal status plus its error detail.
	MarkTerminal(ctx context.Context, id string, status domain.ProcessingStatus, errDetail string) error
	// SaveAnalysis stores the analysis result and completes the document,
	// passing through WARNING when warning is non-empty.
	SaveAnalysis(ctx context.Context, id string, analysis domain.Analysis, warning string) error
	ListEligible(ctx context.Context, limit int) ([]string, error)
	CountEligible(ctx context.Context) (int, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes document-uploaded events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// DocumentAnalyzer produces AI-derived metadata for extracted text.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, text string) (domain.Analysis, error)
}
