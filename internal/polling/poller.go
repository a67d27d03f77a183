// Package polling implements the client-side status polling contract:
// fetch a document's status at a fixed interval until a terminal state is
// observed or the attempt ceiling is reached.
package polling

import (
	"context"
	"fmt"
	"time"

	"github.com/dkotenko/doc-analysis-service/internal/core/domain"
)

type OutcomeKind string

const (
	// OutcomeCompleted means the document reached COMPLETED.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeFailed means the document reached FAILED or ERROR.
	OutcomeFailed OutcomeKind = "failed"
	// OutcomeTimedOut means the attempt ceiling passed without a terminal
	// state. Distinct from OutcomeFailed: the document may still complete.
	OutcomeTimedOut OutcomeKind = "timed_out"
)

type Outcome struct {
	Kind     OutcomeKind
	Document *domain.Document
	Attempts int
	// LastErr holds the most recent fetch error for timed-out outcomes.
	LastErr error
}

// FetchFunc returns the current state of the polled document.
type FetchFunc func(ctx context.Context) (*domain.Document, error)

type Poller struct {
	maxAttempts int
	interval    time.Duration
}

func New(maxAttempts int, interval time.Duration) *Poller {
	if maxAttempts <= 0 {
		maxAttempts = 12
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{maxAttempts: maxAttempts, interval: interval}
}

// Wait polls fetch until a terminal status, the attempt ceiling, or context
// cancellation. Transient fetch errors consume an attempt and do not abort.
func (p *Poller) Wait(ctx context.Context, fetch FetchFunc) (Outcome, error) {
	if fetch == nil {
		return Outcome{}, fmt.Errorf("polling: fetch callback is nil")
	}

	var lastErr error
	var lastDoc *domain.Document

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Attempts: attempt - 1, Document: lastDoc, LastErr: lastErr}, err
		}

		doc, err := fetch(ctx)
		if err != nil {
			lastErr = err
		} else {
			lastDoc = doc
			if doc.Status.Terminal() {
				kind := OutcomeFailed
				if doc.Status == domain.StatusCompleted {
					kind = OutcomeCompleted
				}
				return Outcome{Kind: kind, Document: doc, Attempts: attempt}, nil
			}
		}

		if attempt == p.maxAttempts {
			break
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome{Attempts: attempt, Document: lastDoc, LastErr: lastErr}, ctx.Err()
		case <-timer.C:
		}
	}

	return Outcome{
		Kind:     OutcomeTimedOut,
		Document: lastDoc,
		Attempts: p.maxAttempts,
		LastErr:  lastErr,
	}, nil
}
