package domain

import (
	"errors"
	"testing"
)

func TestStatusTerminal(t *testing.T) {
	terminal := []ProcessingStatus{StatusCompleted, StatusFailed, StatusError}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	open := []ProcessingStatus{StatusPending, StatusQueued, StatusProcessing, StatusWarning}
	for _, s := range open {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestStatusEligible(t *testing.T) {
	if !StatusPending.Eligible() || !StatusQueued.Eligible() {
		t.Fatal("PENDING and QUEUED must be claimable")
	}
	for _, s := range []ProcessingStatus{StatusProcessing, StatusCompleted, StatusFailed, StatusError, StatusWarning} {
		if s.Eligible() {
			t.Fatalf("%s must not be claimable", s)
		}
	}
}

func TestLifecycleEdges(t *testing.T) {
	allowed := []struct{ from, to ProcessingStatus }{
		{StatusPending, StatusProcessing},
		{StatusQueued, StatusProcessing},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusWarning},
		{StatusProcessing, StatusFailed},
		{StatusProcessing, StatusError},
		{StatusWarning, StatusCompleted},
	}
	for _, e := range allowed {
		if !CanTransition(e.from, e.to) {
			t.Fatalf("%s -> %s should be allowed", e.from, e.to)
		}
	}

	forbidden := []struct{ from, to ProcessingStatus }{
		{StatusPending, StatusCompleted},
		{StatusCompleted, StatusProcessing},
		{StatusFailed, StatusProcessing},
		{StatusError, StatusCompleted},
		{StatusWarning, StatusFailed},
	}
	for _, e := range forbidden {
		if CanTransition(e.from, e.to) {
			t.Fatalf("%s -> %s should be forbidden", e.from, e.to)
		}
	}
}

func TestValidateTransition(t *testing.T) {
	if err := ValidateTransition(StatusProcessing, StatusCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateTransition(StatusPending, StatusPending); err != nil {
		t.Fatalf("self-transition should be a no-op, got %v", err)
	}

	err := ValidateTransition(StatusCompleted, StatusProcessing)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAnalysisPartial(t *testing.T) {
	full := Analysis{Summary: "s", KeyInsights: []string{"a"}, Confidence: 0.7}
	if warning, partial := full.Partial(); partial || warning != "" {
		t.Fatalf("complete analysis flagged partial: %q", warning)
	}

	noInsights := Analysis{Summary: "s", Confidence: 0.7}
	if warning, partial := noInsights.Partial(); !partial || warning == "" {
		t.Fatal("missing insights should produce a warning")
	}

	badConfidence := Analysis{Summary: "s", KeyInsights: []string{"a"}, Confidence: 1.4}
	if warning, partial := badConfidence.Partial(); !partial || warning == "" {
		t.Fatal("out-of-range confidence should produce a warning")
	}

	empty := Analysis{}
	if _, partial := empty.Partial(); partial {
		t.Fatal("unusable analysis is not partial, it is unusable")
	}
	if empty.Usable() {
		t.Fatal("analysis without summary must not be usable")
	}
}
