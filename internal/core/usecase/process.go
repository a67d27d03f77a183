package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkotenko/doc-analysis-service/internal/core/domain"
	"github.com/dkotenko/doc-analysis-service/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	analyzer  ports.DocumentAnalyzer

	// batchLimit caps a single batch sweep; zero means unbounded.
	batchLimit int
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	analyzer ports.DocumentAnalyzer,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		analyzer:  analyzer,
	}
}

// WithBatchLimit caps how many documents a single ProcessBatch call may
// sweep. Values below one leave the sweep unbounded.
func (uc *ProcessDocumentUseCase) WithBatchLimit(limit int) *ProcessDocumentUseCase {
	if limit > 0 {
		uc.batchLimit = limit
	}
	return uc
}

// ProcessByID drives one document from PENDING/QUEUED to a terminal state.
// Input and provider faults are converted into FAILED/ERROR with stored
// detail and do not surface as errors; only infrastructure failures do.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) (*domain.Document, error) {
	if err := uc.repo.ClaimForProcessing(ctx, documentID); err != nil {
		return nil, fmt.Errorf("claim document: %w", err)
	}

	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch claimed document: %w", err)
	}
	doc.Status = domain.StatusProcessing

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return uc.finishFaulted(ctx, doc, err)
	}

	analysis, err := uc.analyze(ctx, text)
	if err != nil {
		return uc.finishFaulted(ctx, doc, err)
	}

	warning, _ := analysis.Partial()
	if err := uc.repo.SaveAnalysis(ctx, doc.ID, analysis, warning); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	doc.Status = domain.StatusCompleted
	doc.Analysis = &analysis
	doc.Warning = warning
	doc.ErrorDetail = ""
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty document content"))
	}
	return text, nil
}

func (uc *ProcessDocumentUseCase) analyze(ctx context.Context, text string) (domain.Analysis, error) {
	analysis, err := uc.analyzer.Analyze(ctx, text)
	if err != nil {
		return domain.Analysis{}, err
	}
	if !analysis.Usable() {
		return domain.Analysis{}, domain.WrapError(domain.ErrProviderFault, "analyze document", errors.New("analysis has no summary"))
	}
	return analysis, nil
}

// finishFaulted maps a pipeline fault onto its terminal status: FAILED for
// input problems, ERROR for provider and parsing faults.
func (uc *ProcessDocumentUseCase) finishFaulted(ctx context.Context, doc *domain.Document, faultErr error) (*domain.Document, error) {
	status := domain.StatusError
	if domain.IsKind(faultErr, domain.ErrInvalidInput) {
		status = domain.StatusFailed
	}
	if err := domain.ValidateTransition(doc.Status, status); err != nil {
		return nil, err
	}

	detail := faultErr.Error()
	if err := uc.repo.MarkTerminal(ctx, doc.ID, status, detail); err != nil {
		return nil, fmt.Errorf("%w; mark %s status: %w", faultErr, status, err)
	}

	doc.Status = status
	doc.ErrorDetail = detail
	doc.Analysis = nil
	return doc, nil
}
