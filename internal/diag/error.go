package diag

import (
	"errors"
	"fmt"
	"strings"

	"shaderpipe/internal/source"
)

// Error carries one or more diagnostics through ordinary error returns.
// The first diagnostic is the primary one.
type Error struct {
	Diags []Diagnostic
	Err   error
}

// AsError wraps diagnostics into an *Error.
func AsError(diags ...Diagnostic) *Error {
	return &Error{Diags: diags}
}

// Errorf builds an *Error with a single error-severity diagnostic.
func Errorf(code Code, primary source.Span, format string, args ...any) *Error {
	return AsError(NewError(code, primary, fmt.Sprintf(format, args...)))
}

// Wrap attaches a cause to e and returns e.
func (e *Error) Wrap(cause error) *Error {
	e.Err = cause
	return e
}

func (e *Error) Error() string {
	if e == nil || len(e.Diags) == 0 {
		if e != nil && e.Err != nil {
			return e.Err.Error()
		}
		return "unknown diagnostic error"
	}
	d := e.Diags[0]
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", d.Code.ID(), d.Message)
	if n := len(e.Diags) - 1; n > 0 {
		fmt.Fprintf(&b, " (and %d more)", n)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Primary returns the first diagnostic.
func (e *Error) Primary() Diagnostic {
	if e == nil || len(e.Diags) == 0 {
		return Diagnostic{}
	}
	return e.Diags[0]
}

// OnlyCodes reports whether every error-severity diagnostic has one of codes.
func (e *Error) OnlyCodes(codes ...Code) bool {
	if e == nil || len(e.Diags) == 0 {
		return false
	}
	for _, d := range e.Diags {
		if d.Severity < SevError {
			continue
		}
		found := false
		for _, c := range codes {
			if d.Code == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FromError extracts the diagnostic error from err's chain.
func FromError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
