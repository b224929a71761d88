package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew_MatchesKind(t *testing.T) {
	err := New(ErrNotFound, "appointment not found")
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected errors.Is to match ErrNotFound")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("did not expect match on ErrConflict")
	}
	if err.Error() != "appointment not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestKind_ThroughWrapping(t *testing.T) {
	base := New(ErrConflict, "cannot delete time slot with active appointments")
	wrapped := fmt.Errorf("delete slot: %w", base)

	if got := Kind(wrapped); got != ErrConflict {
		t.Errorf("expected ErrConflict, got %v", got)
	}
	if got := Kind(errors.New("boom")); got != nil {
		t.Errorf("expected nil kind, got %v", got)
	}
	if got := Kind(Validation("patient_id is required")); got != ErrValidation {
		t.Errorf("expected ErrValidation, got %v", got)
	}
}
