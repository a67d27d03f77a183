package domain

import "time"

// ProcessingStatus is the canonical lifecycle status of a document.
// The exact strings are stored in the database; do not rename.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "PENDING"
	StatusQueued     ProcessingStatus = "QUEUED"
	StatusProcessing ProcessingStatus = "PROCESSING"
	StatusCompleted  ProcessingStatus = "COMPLETED"
	StatusFailed     ProcessingStatus = "FAILED"
	StatusError      ProcessingStatus = "ERROR"
	StatusWarning    ProcessingStatus = "WARNING"
)

// Terminal reports whether no further automatic transition happens from s.
func (s ProcessingStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError:
		return true
	default:
		return false
	}
}

// Eligible reports whether a worker may claim a document in status s.
func (s ProcessingStatus) Eligible() bool {
	return s == StatusPending || s == StatusQueued
}

// CanTransition encodes the allowed edges of the lifecycle graph.
// WARNING sits between PROCESSING and COMPLETED for partially usable results.
func CanTransition(from, to ProcessingStatus) bool {
	switch from {
	case StatusPending, StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusWarning || to == StatusFailed || to == StatusError
	case StatusWarning:
		return to == StatusCompleted
	default:
		return false
	}
}

func ValidateTransition(from, to ProcessingStatus) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return WrapError(ErrInvalidTransition, "validate transition", statusEdgeError{from: from, to: to})
	}
	return nil
}

type statusEdgeError struct {
	from, to ProcessingStatus
}

func (e statusEdgeError) Error() string {
	return string(e.from) + " -> " + string(e.to)
}

// Document is the persisted record of an uploaded file and its
// processing lifecycle.
type Document struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	MimeType    string           `json:"mime_type"`
	StoragePath string           `json:"storage_path"`
	Status      ProcessingStatus `json:"status"`
	Analysis    *Analysis        `json:"analysis,omitempty"`
	Warning     string           `json:"warning,omitempty"`
	ErrorDetail string           `json:"error_detail,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Analysis is the AI-derived metadata for a completed document.
type Analysis struct {
	Summary     string   `json:"summary"`
	KeyInsights []string `json:"key_insights"`
	Confidence  float64  `json:"confidence"`
}

// Partial reports whether the analysis is usable but incomplete; such
// results complete with a WARNING annotation on the record.
func (a Analysis) Partial() (string, bool) {
	if a.Summary == "" {
		return "", false
	}
	if len(a.KeyInsights) == 0 {
		return "provider returned no key insights", true
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return "provider confidence out of range", true
	}
	return "", false
}

// Usable reports whether the analysis carries at least a summary.
func (a Analysis) Usable() bool {
	return a.Summary != ""
}

// BatchResult summarizes one batch sweep over eligible documents.
type BatchResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
