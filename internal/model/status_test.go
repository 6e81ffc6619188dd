package model_test

import (
	"testing"

	"jobmate/jobsync/internal/model"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{"open", "in-progress", "assigned", "completed", "cancelled"}
	for _, s := range valid {
		got, err := model.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"", "OPEN", "in_progress", " open", "closed"} {
		if _, err := model.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

func TestParseStatus_AllConstantsRoundTrip(t *testing.T) {
	for _, s := range model.Statuses {
		got, err := model.ParseStatus(string(s))
		if err != nil {
			t.Errorf("ParseStatus(%q) unexpected error: %v", s, err)
		}
		if got != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

// ── IsTerminal ─────────────────────────────────────────────────────────────

func TestIsTerminal(t *testing.T) {
	terminal := map[model.Status]bool{
		model.StatusOpen:       false,
		model.StatusInProgress: false,
		model.StatusAssigned:   false,
		model.StatusCompleted:  true,
		model.StatusCancelled:  true,
	}
	for s, want := range terminal {
		if got := model.IsTerminal(s); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", s, got, want)
		}
	}
}
