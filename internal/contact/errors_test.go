package contact

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorRendering(t *testing.T) {
	err := ErrNoWritePermission(5, 10)
	if got := err.Error(); got != "CON-0012: no permission to modify contact 5 in folder 10" {
		t.Errorf("Error() = %q", got)
	}
	if err.Category != CategoryPermission {
		t.Errorf("Category = %q", err.Category)
	}
}

func TestErrorMatching(t *testing.T) {
	wrapped := fmt.Errorf("update: %w", ErrConflict(3))
	if !errors.Is(wrapped, ErrConflictSentinel) {
		t.Error("errors.Is by code failed")
	}
	if errors.Is(wrapped, ErrNotFoundSentinel) {
		t.Error("different codes must not match")
	}
	if CategoryOf(wrapped) != CategoryConflict {
		t.Errorf("CategoryOf() = %q", CategoryOf(wrapped))
	}
	if CategoryOf(errors.New("x")) != CategoryError {
		t.Error("foreign errors are CategoryError")
	}
}

func TestErrSQL(t *testing.T) {
	if ErrSQL(nil) != nil {
		t.Error("ErrSQL(nil) must be nil")
	}
	cause := errors.New("disk full")
	err := ErrSQL(cause)
	if !errors.Is(err, cause) {
		t.Error("cause not unwrapped")
	}
	if CategoryOf(err) != CategoryServiceDown {
		t.Errorf("CategoryOf() = %q", CategoryOf(err))
	}
	nf := ErrNotFound(1, 2)
	if ErrSQL(nf) != error(nf) {
		t.Error("contact errors pass through unchanged")
	}
}
