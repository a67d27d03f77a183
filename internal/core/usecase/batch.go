package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dkotenko/doc-analysis-service/internal/core/domain"
)

// ProcessBatch sweeps every eligible document once, sequentially. Outcomes
// are independent: one document's failure never aborts the rest.
func (uc *ProcessDocumentUseCase) ProcessBatch(ctx context.Context) (domain.BatchResult, error) {
	ids, err := uc.repo.ListEligible(ctx, uc.batchLimit)
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("list eligible documents: %w", err)
	}

	var result domain.BatchResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		doc, err := uc.ProcessByID(ctx, id)
		if err != nil {
			if domain.IsKind(err, domain.ErrConflict) {
				// Claimed by a concurrent worker between listing and claiming.
				continue
			}
			slog.Warn("batch_document_error", "document_id", id, "error", err)
			result.Processed++
			result.Failed++
			continue
		}

		result.Processed++
		if doc.Status == domain.StatusCompleted {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	return result, nil
}
