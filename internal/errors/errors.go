// Package errors provides structured error types for sprout.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for sprout.
const (
	// Archive version gate
	CodeMissingVersion     Code = "MISSING_VERSION"
	CodeInvalidVersion     Code = "INVALID_VERSION"
	CodeUnsupportedVersion Code = "UNSUPPORTED_VERSION"

	// Archive container
	CodeArchiveUnreadable Code = "ARCHIVE_UNREADABLE"
	CodeMissingDataFile   Code = "MISSING_DATA_FILE"
	CodeExtractionFailed  Code = "EXTRACTION_FAILED"

	// Destination
	CodeStorageFailed Code = "STORAGE_FAILED"
	CodePlantNotFound Code = "PLANT_NOT_FOUND"

	// Export
	CodeExportFailed Code = "EXPORT_FAILED"

	// Config
	CodeConfigInvalid Code = "CONFIG_INVALID"
)

// Category groups error codes by how a caller should react.
type Category int

const (
	CategoryUnknown Category = iota
	// CategoryVersion errors are detected before any destination mutation.
	CategoryVersion
	// CategoryArchive errors mean the archive itself is unusable.
	CategoryArchive
	CategoryStorage
	CategoryNotFound
	CategoryBadRequest
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryVersion:
		return "version"
	case CategoryArchive:
		return "archive"
	case CategoryStorage:
		return "storage"
	case CategoryNotFound:
		return "not_found"
	case CategoryBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

var codeCategories = map[Code]Category{
	CodeMissingVersion:     CategoryVersion,
	CodeInvalidVersion:     CategoryVersion,
	CodeUnsupportedVersion: CategoryVersion,
	CodeArchiveUnreadable:  CategoryArchive,
	CodeMissingDataFile:    CategoryArchive,
	CodeExtractionFailed:   CategoryArchive,
	CodeStorageFailed:      CategoryStorage,
	CodeExportFailed:       CategoryStorage,
	CodePlantNotFound:      CategoryNotFound,
	CodeConfigInvalid:      CategoryBadRequest,
}

// SproutError is the structured error type for sprout.
type SproutError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *SproutError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *SproutError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *SproutError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category.
func (e *SproutError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// MarshalJSON implements json.Marshaler.
func (e *SproutError) MarshalJSON() ([]byte, error) {
	type alias SproutError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a SproutError with the same code.
func (e *SproutError) Is(target error) bool {
	t, ok := target.(*SproutError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *SproutError) WithCause(err error) *SproutError {
	return &SproutError{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// --- Error constructors ---

// ErrMissingVersion returns an error for an archive without a version line.
func ErrMissingVersion() *SproutError {
	return &SproutError{
		Code: CodeMissingVersion,
		What: "archive has no version",
		Why:  "The data file does not start with a version declaration",
		Fix:  "Only import archives created by 'sprout export'",
	}
}

// ErrInvalidVersion returns an error for an unparseable version value.
func ErrInvalidVersion(raw string) *SproutError {
	return &SproutError{
		Code: CodeInvalidVersion,
		What: fmt.Sprintf("archive version %q is not valid", raw),
		Why:  "The version must be a positive whole number",
		Fix:  "The archive may be damaged; export it again from the source",
	}
}

// ErrUnsupportedVersion returns an error for archives newer than this build.
func ErrUnsupportedVersion(got, max int) *SproutError {
	return &SproutError{
		Code: CodeUnsupportedVersion,
		What: fmt.Sprintf("archive version %d is not supported", got),
		Why:  fmt.Sprintf("This build reads archives up to version %d", max),
		Fix:  "Upgrade sprout to a release that understands this archive",
	}
}

// ErrArchiveUnreadable returns an error when the zip container cannot be opened.
func ErrArchiveUnreadable(path string, cause error) *SproutError {
	return &SproutError{
		Code:  CodeArchiveUnreadable,
		What:  fmt.Sprintf("cannot open archive %s", path),
		Fix:   "Check that the file exists and is a zip archive created by 'sprout export'",
		Cause: cause,
	}
}

// ErrMissingDataFile returns an error when no structured data file is in the archive.
func ErrMissingDataFile(path string) *SproutError {
	return &SproutError{
		Code: CodeMissingDataFile,
		What: fmt.Sprintf("archive %s contains no data file", path),
		Why:  "Expected data.csv or data.json at the archive root",
		Fix:  "Only import archives created by 'sprout export'",
	}
}

// ErrExtractionFailed returns an error when an archive entry cannot be read.
func ErrExtractionFailed(entry string, cause error) *SproutError {
	return &SproutError{
		Code:  CodeExtractionFailed,
		What:  fmt.Sprintf("cannot extract %s", entry),
		Why:   "The archive appears to be corrupt",
		Cause: cause,
	}
}

// ErrStorageFailed returns an error when the destination store rejects a write.
func ErrStorageFailed(op string, cause error) *SproutError {
	return &SproutError{
		Code:  CodeStorageFailed,
		What:  fmt.Sprintf("storage failure during %s", op),
		Why:   "No changes were kept",
		Cause: cause,
	}
}

// ErrExportFailed returns an error for a failed export.
func ErrExportFailed(dest string, cause error) *SproutError {
	return &SproutError{
		Code:  CodeExportFailed,
		What:  fmt.Sprintf("export to %s failed", dest),
		Cause: cause,
	}
}

// ErrPlantNotFound returns an error when a scoped plant doesn't exist.
func ErrPlantNotFound(id int64) *SproutError {
	return &SproutError{
		Code: CodePlantNotFound,
		What: fmt.Sprintf("plant %d not found", id),
		Fix:  "Run 'sprout status' to see what is stored",
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *SproutError {
	return &SproutError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check ~/.sprout/config.yaml and SPROUT_* environment variables",
	}
}

// AsSproutError returns the first SproutError in err's chain, or nil.
func AsSproutError(err error) *SproutError {
	var sErr *SproutError
	if stderrors.As(err, &sErr) {
		return sErr
	}
	return nil
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return stderrors.Is(err, &SproutError{Code: code})
}
