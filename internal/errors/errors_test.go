package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestSproutErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *SproutError
		wantErr  string
		wantUser string
	}{
		{
			name:     "what only",
			err:      &SproutError{What: "something broke"},
			wantErr:  "something broke",
			wantUser: "Error: something broke",
		},
		{
			name:     "what and why",
			err:      &SproutError{What: "something broke", Why: "bad input"},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input",
		},
		{
			name: "full error",
			err: &SproutError{
				What: "something broke",
				Why:  "bad input",
				Fix:  "try again",
			},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input\n\nFix: try again",
		},
		{
			name: "with cause",
			err: &SproutError{
				What:  "something broke",
				Cause: errors.New("underlying error"),
			},
			wantErr:  "something broke: underlying error",
			wantUser: "Error: something broke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantErr {
				t.Errorf("Error() = %q, want %q", got, tt.wantErr)
			}
			if got := tt.err.UserMessage(); got != tt.wantUser {
				t.Errorf("UserMessage() = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestSproutErrorJSON(t *testing.T) {
	err := ErrExtractionFailed("plant_1_a.jpg", errors.New("zip: checksum error"))

	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("MarshalJSON failed: %v", marshalErr)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if result["code"] != string(CodeExtractionFailed) {
		t.Errorf("code = %v, want %v", result["code"], CodeExtractionFailed)
	}
	if result["cause"] != "zip: checksum error" {
		t.Errorf("cause = %v, want %v", result["cause"], "zip: checksum error")
	}
}

func TestErrUnsupportedVersion(t *testing.T) {
	err := ErrUnsupportedVersion(2, 1)

	if err.Code != CodeUnsupportedVersion {
		t.Errorf("Code = %v, want %v", err.Code, CodeUnsupportedVersion)
	}
	if err.What != "archive version 2 is not supported" {
		t.Errorf("What = %q", err.What)
	}
	if err.Category() != CategoryVersion {
		t.Errorf("Category() = %v, want version", err.Category())
	}
}

func TestCategories(t *testing.T) {
	tests := []struct {
		err  *SproutError
		want Category
	}{
		{ErrMissingVersion(), CategoryVersion},
		{ErrInvalidVersion("x"), CategoryVersion},
		{ErrUnsupportedVersion(9, 1), CategoryVersion},
		{ErrArchiveUnreadable("a.zip", nil), CategoryArchive},
		{ErrMissingDataFile("a.zip"), CategoryArchive},
		{ErrExtractionFailed("x", nil), CategoryArchive},
		{ErrStorageFailed("insert", nil), CategoryStorage},
		{ErrExportFailed("a.zip", nil), CategoryStorage},
		{ErrPlantNotFound(4), CategoryNotFound},
		{ErrConfigInvalid("import.mode", "bad"), CategoryBadRequest},
		{&SproutError{Code: "NOPE"}, CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			if got := tt.err.Category(); got != tt.want {
				t.Errorf("Category() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithCause(t *testing.T) {
	original := ErrPlantNotFound(1)
	cause := errors.New("no rows")
	wrapped := original.WithCause(cause)

	if wrapped.Cause != cause {
		t.Error("WithCause should set the cause")
	}
	if original.Cause != nil {
		t.Error("Original should not be modified")
	}
	if wrapped.Code != original.Code || wrapped.What != original.What {
		t.Error("Code and What should be copied")
	}
	if errors.Unwrap(wrapped) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestIs(t *testing.T) {
	err1 := ErrInvalidVersion("abc")
	err2 := ErrInvalidVersion("-1")
	err3 := ErrMissingVersion()

	if !errors.Is(err1, err2) {
		t.Error("errors with same code should match with Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match")
	}
}

func TestAsSproutErrorAndHasCode(t *testing.T) {
	base := ErrStorageFailed("insert plant", errors.New("disk full"))
	wrapped := fmt.Errorf("import: %w", base)

	if got := AsSproutError(wrapped); got != base {
		t.Errorf("AsSproutError() = %v, want %v", got, base)
	}
	if !HasCode(wrapped, CodeStorageFailed) {
		t.Error("HasCode should find the wrapped code")
	}
	if HasCode(wrapped, CodeExportFailed) {
		t.Error("HasCode should not match a different code")
	}
	if AsSproutError(errors.New("plain")) != nil {
		t.Error("AsSproutError should return nil for plain errors")
	}
	if AsSproutError(nil) != nil {
		t.Error("AsSproutError should return nil for nil")
	}
}
