// Command poll watches a document until it reaches a terminal status or the
// attempt ceiling passes. Exit codes: 0 completed, 1 failed, 2 timed out.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkotenko/doc-analysis-service/internal/config"
	"github.com/dkotenko/doc-analysis-service/internal/core/domain"
	"github.com/dkotenko/doc-analysis-service/internal/observability/logging"
	"github.com/dkotenko/doc-analysis-service/internal/polling"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("doc-analysis-poll", cfg.LogLevel))

	baseURL := flag.String("url", "http://localhost:"+cfg.APIPort, "API base URL")
	documentID := flag.String("id", "", "document id to watch")
	attempts := flag.Int("attempts", cfg.MaxPollAttempts, "maximum poll attempts")
	interval := flag.Duration("interval", cfg.PollInterval, "delay between polls")
	flag.Parse()

	if *documentID == "" {
		fmt.Fprintln(os.Stderr, "usage: poll -id <document-id> [-url ...] [-attempts N] [-interval 5s]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 15 * time.Second}
	fetch := func(fetchCtx context.Context) (*domain.Document, error) {
		return fetchDocument(fetchCtx, client, *baseURL, *documentID)
	}

	outcome, err := polling.New(*attempts, *interval).Wait(ctx, fetch)
	if err != nil {
		slog.Error("poll_aborted", "document_id", *documentID, "error", err)
		os.Exit(2)
	}

	switch outcome.Kind {
	case polling.OutcomeCompleted:
		summary := ""
		if outcome.Document.Analysis != nil {
			summary = outcome.Document.Analysis.Summary
		}
		slog.Info("document_completed",
			"document_id", *documentID,
			"attempts", outcome.Attempts,
			"summary", summary,
			"warning", outcome.Document.Warning,
		)
	case polling.OutcomeFailed:
		slog.Error("document_failed",
			"document_id", *documentID,
			"status", outcome.Document.Status,
			"error_detail", outcome.Document.ErrorDetail,
		)
		os.Exit(1)
	case polling.OutcomeTimedOut:
		slog.Warn("document_still_processing",
			"document_id", *documentID,
			"attempts", outcome.Attempts,
			"last_error", outcome.LastErr,
		)
		os.Exit(2)
	}
}

func fetchDocument(ctx context.Context, client *http.Client, baseURL, id string) (*domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/documents/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status endpoint returned %s: %s", resp.Status, raw)
	}

	var doc domain.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &doc, nil
}
