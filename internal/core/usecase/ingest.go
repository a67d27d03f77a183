package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dkotenko/doc-analysis-service/internal/core/domain"
	"github.com/dkotenko/doc-analysis-service/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo             ports.DocumentRepository
	storage          ports.ObjectStorage
	queue            ports.MessageQueue
	backlogThreshold int
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	backlogThreshold int,
) *IngestDocumentUseCase {
	if backlogThreshold <= 0 {
		backlogThreshold = 25
	}
	return &IngestDocumentUseCase{
		repo:             repo,
		storage:          storage,
		queue:            queue,
		backlogThreshold: backlogThreshold,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      uc.initialStatus(ctx),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	if err := uc.queue.PublishDocumentUploaded(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	return doc, nil
}

// initialStatus picks QUEUED over PENDING when the eligible backlog already
// exceeds the configured threshold. A count error degrades to PENDING.
func (uc *IngestDocumentUseCase) initialStatus(ctx context.Context) domain.ProcessingStatus {
	backlog, err := uc.repo.CountEligible(ctx)
	if err != nil {
		return domain.StatusPending
	}
	if backlog >= uc.backlogThreshold {
		return domain.StatusQueued
	}
	return domain.StatusPending
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
