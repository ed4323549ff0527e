package apperror

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("food item", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("name", "name is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "InvalidInput wraps ErrValidation",
			err:       InvalidInput("invalid image", io.ErrUnexpectedEOF),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "email"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "ExternalUnavailable wraps ErrExternalUnavailable",
			err:       ExternalUnavailable("product database", io.EOF),
			target:    ErrExternalUnavailable,
			wantMatch: true,
		},
		{
			name:      "ExternalUnavailable also matches its cause",
			err:       ExternalUnavailable("product database", io.EOF),
			target:    io.EOF,
			wantMatch: true,
		},
		{
			name:      "ParseFailure wraps ErrParseFailure",
			err:       ParseFailure("vision reply", nil),
			target:    ErrParseFailure,
			wantMatch: true,
		},
		{
			name:      "StorageUnavailable wraps ErrStorageUnavailable",
			err:       StorageUnavailable("creating food item", io.ErrClosedPipe),
			target:    ErrStorageUnavailable,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrForbidden",
			err:       NotFound("food item", "abc123"),
			target:    ErrForbidden,
			wantMatch: false,
		},
		{
			name:      "Forbidden does NOT match ErrNotFound",
			err:       Forbidden("not yours"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("food item", "abc123"),
			wantMessage: "food item not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "name is required"),
			wantMessage: "name is required",
		},
		{
			name:        "Conflict names the field",
			err:         Conflict("user", "email"),
			wantMessage: "user with this email already exists",
		},
		{
			name:        "cause is appended to Error but not to Message",
			err:         ExternalUnavailable("product database", io.EOF),
			wantMessage: "product database is unavailable: EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), Forbidden("not yours"))

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As() did not find *AppError in chain")
	}
	if appErr.Message != "not yours" {
		t.Errorf("Message = %q, want %q", appErr.Message, "not yours")
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("quantity", "quantity must be zero or more")

	if err.Field != "quantity" {
		t.Errorf("Field = %q, want %q", err.Field, "quantity")
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{NotFound("food item", "x"), "not_found"},
		{Forbidden("no"), "forbidden"},
		{InvalidInput("bad", io.EOF), "validation_error"},
		{Conflict("user", "email"), "conflict"},
		{Unauthorized("bad credentials"), "unauthorized"},
		{ExternalUnavailable("vision service", nil), "external_unavailable"},
		{ParseFailure("vision reply", nil), "parse_failure"},
		{StorageUnavailable("listing", io.EOF), "storage_unavailable"},
		{fmt.Errorf("service: %w", NotFound("food item", "x")), "not_found"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
