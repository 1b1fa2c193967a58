// Package report defines the conversion error taxonomy and renders
// positioned errors for the terminal.
package report

import (
	"errors"
	"fmt"

	"github.com/phobologic/sqlconv/internal/model"
)

var (
	ErrMissingRequiredField       = errors.New("missing required header field")
	ErrMissingHeaderTerminator    = errors.New("missing header terminator (ENDHEAD)")
	ErrUnterminatedBlock          = errors.New("unterminated block")
	ErrUnknownToken               = errors.New("unknown token")
	ErrUnbalancedGroup            = errors.New("unbalanced group")
	ErrMetaCommentMisplaced       = errors.New("meta comment not followed by an SQL statement")
	ErrMalformedPreparedStatement = errors.New("malformed prepared statement")
	ErrUnrecognizedLine           = errors.New("unrecognized line")
)

// Error is an error about a document location.
//
// Error() includes the position; Unwrap returns the underlying error only,
// so errors.Is matches the sentinels above.
type Error struct {
	Pos model.Pos
	// Snippet is the offending source line, if known.
	Snippet string
	Err     error
}

// Errorf wraps a sentinel with a formatted detail at pos.
func Errorf(pos model.Pos, snippet string, sentinel error, format string, args ...any) *Error {
	detail := fmt.Sprintf(format, args...)
	return &Error{Pos: pos, Snippet: snippet, Err: fmt.Errorf("%w: %s", sentinel, detail)}
}

// At wraps err at the position of tok.
func At(tok model.Token, err error) *Error {
	return &Error{Pos: tok.Pos, Snippet: tok.Line, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Pos, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MissingField reports a required header field that was never set.
func MissingField(file, field string) error {
	return &Error{Pos: model.Pos{File: file}, Err: fmt.Errorf("%w: %q", ErrMissingRequiredField, field)}
}
