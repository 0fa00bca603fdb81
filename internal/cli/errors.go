package cli

import (
	"fmt"
	"io"

	serrors "github.com/randalmurphal/sprout/internal/errors"
)

// PrintError prints an error with appropriate formatting.
// If the error is a SproutError, it uses the user-friendly format.
// Otherwise, it prints a simple error message.
func PrintError(w io.Writer, err error, verbose bool) {
	if se := serrors.AsSproutError(err); se != nil {
		_, _ = fmt.Fprintln(w, se.UserMessage())
		if verbose {
			_, _ = fmt.Fprintf(w, "\nCode: %s\n", se.Code)
			if se.Cause != nil {
				_, _ = fmt.Fprintf(w, "Cause: %v\n", se.Cause)
			}
		}
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}

// reported wraps an error that has already been shown to the user so
// Execute does not print it twice.
type reported struct{ err error }

func (r reported) Error() string { return r.err.Error() }
func (r reported) Unwrap() error { return r.err }

// errMessage returns the one-line form of err for status lines.
func errMessage(err error) string {
	if se := serrors.AsSproutError(err); se != nil {
		return se.What
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func errorCode(err error) string {
	if se := serrors.AsSproutError(err); se != nil {
		return string(se.Code)
	}
	return ""
}
