package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkotenko/doc-analysis-service/internal/config"
	"github.com/dkotenko/doc-analysis-service/internal/core/domain"
)

type ingestorFake struct {
	err error
}

func (f ingestorFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}

	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_file.txt",
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type processorFake struct {
	doc      *domain.Document
	batch    domain.BatchResult
	err      error
	batchErr error
}

func (f processorFake) ProcessByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f processorFake) ProcessBatch(context.Context) (domain.BatchResult, error) {
	if f.batchErr != nil {
		return domain.BatchResult{}, f.batchErr
	}
	return f.batch, nil
}

type readerFake struct {
	doc *domain.Document
	err error
}

func (f readerFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func newTestHandler(cfg config.Config, ingestor ingestorFake, processor processorFake, reader readerFake) http.Handler {
	return NewRouter(cfg, ingestor, processor, reader).Handler()
}

func multipartBody(t *testing.T, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "file.txt")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, ingestorFake{}, processorFake{}, readerFake{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentReturnsAnalysisID(t *testing.T) {
	handler := newTestHandler(config.Config{}, ingestorFake{}, processorFake{}, readerFake{})

	body, contentType := multipartBody(t, "hello")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}

	var payload map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["analysis_id"] != "doc-1" || payload["document_id"] != "doc-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadDocumentWithoutFileIs400(t *testing.T) {
	handler := newTestHandler(config.Config{}, ingestorFake{}, processorFake{}, readerFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentNotFoundIs404(t *testing.T) {
	reader := readerFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id=missing"))}
	handler := newTestHandler(config.Config{}, ingestorFake{}, processorFake{}, reader)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetDocumentReturnsStatusAndErrorDetail(t *testing.T) {
	reader := readerFake{doc: &domain.Document{
		ID:          "doc-1",
		Status:      domain.StatusError,
		ErrorDetail: "provider analyze status: 429 Too Many Requests",
	}}
	handler := newTestHandler(config.Config{}, ingestorFake{}, processorFake{}, reader)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var doc domain.Document
	if err := json.Unmarshal(res.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Status != domain.StatusError || doc.ErrorDetail == "" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Analysis != nil {
		t.Fatalf("errored document must not expose analysis")
	}
}

func TestProcessDocumentConflictIs409(t *testing.T) {
	processor := processorFake{err: domain.WrapError(domain.ErrConflict, "claim document", errors.New("status=PROCESSING"))}
	handler := newTestHandler(config.Config{}, ingestorFake{}, processor, readerFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/process", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestProcessDocumentReturnsTerminalRecordNotServerError(t *testing.T) {
	processor := processorFake{doc: &domain.Document{
		ID:          "doc-1",
		Status:      domain.StatusFailed,
		ErrorDetail: "extract text: invalid input: empty document content",
	}}
	handler := newTestHandler(config.Config{}, ingestorFake{}, processor, readerFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/process", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("pipeline fault must not become a server fault, got %d", res.Code)
	}
	var doc domain.Document
	if err := json.Unmarshal(res.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED record, got %s", doc.Status)
	}
}

func TestProcessBatchReturnsCounts(t *testing.T) {
	processor := processorFake{batch: domain.BatchResult{Processed: 5, Succeeded: 3, Failed: 2}}
	handler := newTestHandler(config.Config{}, ingestorFake{}, processor, readerFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/process-batch", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var result domain.BatchResult
	if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Processed != 5 || result.Succeeded != 3 || result.Failed != 2 {
		t.Fatalf("unexpected batch result: %+v", result)
	}
}
