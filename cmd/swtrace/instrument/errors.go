// Package instrument - Positional errors.
//
// A file either instruments completely or not at all; when it cannot, the
// error names the source position that stopped it:
//
//	main.go:3:8: import name "swt" is already used by "example.com/swt"
//
//	Suggestion: Rename the conflicting import or mark the file with //swt:notrace
package instrument

import (
	"fmt"
	"go/token"
	"strings"
)

// InstrumentationError reports why a file could not be instrumented.
//
// Fields:
//   - Pos: position of the offending node (Filename may be empty)
//   - Message: what went wrong
//   - Suggestion: optional hint, printed after a blank line
//   - Err: optional cause, returned by Unwrap
type InstrumentationError struct {
	Pos        token.Position
	Message    string
	Suggestion string
	Err        error
}

// Error formats the error as "file:line:col: message[: cause]", followed by
// the suggestion if there is one.
func (e *InstrumentationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Pos.String())
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Suggestion != "" {
		b.WriteString("\n\nSuggestion: ")
		b.WriteString(e.Suggestion)
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *InstrumentationError) Unwrap() error { return e.Err }

// errorAt creates an InstrumentationError at pos. cause may be nil.
func errorAt(fset *token.FileSet, pos token.Pos, cause error, format string, args ...any) *InstrumentationError {
	return &InstrumentationError{
		Pos:     fset.Position(pos),
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// hint sets the suggestion.
func (e *InstrumentationError) hint(suggestion string) *InstrumentationError {
	e.Suggestion = suggestion
	return e
}
