package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dkotenko/doc-analysis-service/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	summary TEXT,
	key_insights JSONB NOT NULL DEFAULT '[]'::jsonb,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	warning TEXT NOT NULL DEFAULT '',
	error_detail TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, mime_type, storage_path, status, warning, error_detail, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, string(doc.Status),
		doc.Warning, doc.ErrorDetail, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, status, summary, key_insights, confidence, warning, error_detail, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var status string
	var summary sql.NullString
	var insightsRaw []byte
	var confidence float64

	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &status,
		&summary, &insightsRaw, &confidence, &doc.Warning, &doc.ErrorDetail,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.ProcessingStatus(status)
	if doc.Status == domain.StatusCompleted {
		analysis := domain.Analysis{
			Summary:    summary.String,
			Confidence: confidence,
		}
		if err := json.Unmarshal(insightsRaw, &analysis.KeyInsights); err != nil {
			return nil, fmt.Errorf("unmarshal key insights: %w", err)
		}
		doc.Analysis = &analysis
	}
	return &doc, nil
}

// ClaimForProcessing is the at-most-one-writer guard: the UPDATE only
// matches eligible statuses, so a concurrent claim loses the race cleanly.
func (r *DocumentRepository) ClaimForProcessing(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, updated_at = $3
WHERE id = $1 AND status IN ($4, $5)
`, id, string(domain.StatusProcessing), time.Now().UTC(),
		string(domain.StatusPending), string(domain.StatusQueued))
	if err != nil {
		return fmt.Errorf("claim document: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrDocumentNotFound, "claim document", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return fmt.Errorf("inspect unclaimed document: %w", err)
	}
	return domain.WrapError(domain.ErrConflict, "claim document", fmt.Errorf("status=%s", current))
}

func (r *DocumentRepository) MarkTerminal(ctx context.Context, id string, status domain.ProcessingStatus, errDetail string) error {
	if !status.Terminal() {
		return domain.WrapError(domain.ErrInvalidTransition, "mark terminal", fmt.Errorf("status %s is not terminal", status))
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_detail = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errDetail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark terminal status: %w", err)
	}
	return requireRow(res, id, "mark terminal status")
}

func (r *DocumentRepository) SaveAnalysis(ctx context.Context, id string, analysis domain.Analysis, warning string) error {
	insights := analysis.KeyInsights
	if insights == nil {
		insights = []string{}
	}
	insightsJSON, err := json.Marshal(insights)
	if err != nil {
		return fmt.Errorf("marshal key insights: %w", err)
	}

	if warning != "" {
		// Record the WARNING annotation before completing so the status
		// history moves PROCESSING -> WARNING -> COMPLETED.
		res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, warning = $3, updated_at = $4
WHERE id = $1
`, id, string(domain.StatusWarning), warning, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("annotate warning: %w", err)
		}
		if err := requireRow(res, id, "annotate warning"); err != nil {
			return err
		}
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, summary = $3, key_insights = $4, confidence = $5, error_detail = '', updated_at = $6
WHERE id = $1
`, id, string(domain.StatusCompleted), analysis.Summary, insightsJSON, analysis.Confidence, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return requireRow(res, id, "save analysis")
}

func (r *DocumentRepository) ListEligible(ctx context.Context, limit int) ([]string, error) {
	query := `
SELECT id FROM documents
WHERE status IN ($1, $2)
ORDER BY created_at ASC
`
	args := []any{string(domain.StatusPending), string(domain.StatusQueued)}
	if limit > 0 {
		query += "LIMIT $3\n"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list eligible documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan eligible id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligible ids: %w", err)
	}
	return ids, nil
}

func (r *DocumentRepository) CountEligible(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM documents WHERE status IN ($1, $2)
`, string(domain.StatusPending), string(domain.StatusQueued)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count eligible documents: %w", err)
	}
	return count, nil
}

func requireRow(res sql.Result, id, operation string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
