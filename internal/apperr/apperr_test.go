package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindForbidden, http.StatusForbidden},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Status(); got != tt.want {
				t.Errorf("Status() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("update post: %w", Forbidden("not yours"))
	if got := KindOf(err); got != KindForbidden {
		t.Errorf("KindOf = %v, want forbidden", got)
	}
	if !Is(err, KindForbidden) {
		t.Error("Is(forbidden) = false")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Errorf("KindOf = %v, want internal", got)
	}
	if Is(nil, KindInternal) {
		t.Error("Is(nil) should be false")
	}
}

func TestFieldList(t *testing.T) {
	var fields FieldList
	if fields.Err() != nil {
		t.Fatal("empty list should not produce an error")
	}
	fields.Add("title", "Title is required.")
	fields.Add("category", "Category is required.")

	err := fields.Err()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Kind != KindValidation {
		t.Errorf("kind = %v, want validation", e.Kind)
	}
	if len(e.Fields) != 2 {
		t.Errorf("fields = %d, want 2", len(e.Fields))
	}
}

func TestInternalUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("save image", cause)
	if !errors.Is(err, cause) {
		t.Error("Internal should unwrap to its cause")
	}
}
