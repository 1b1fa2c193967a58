// Package header builds a document Config from its leading header block.
package header

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/phobologic/sqlconv/internal/model"
	"github.com/phobologic/sqlconv/internal/report"
)

// Dialects lists the dialect values the tool knows about. Other values are
// accepted but reported by the caller.
var Dialects = map[string]struct{}{
	"postgres": {},
	"base_sql": {},
}

// TokenSource yields tokens until io.EOF.
type TokenSource interface {
	Next() (model.Token, error)
}

// Parse consumes tokens from src up to and including the ENDHEAD line and
// returns the resulting Config. Comments and other non-header tokens inside
// the header are skipped; an SQL statement before ENDHEAD is an error.
func Parse(file string, src TokenSource) (model.Config, error) {
	fields := make(map[string]string)
	for {
		tok, err := src.Next()
		if errors.Is(err, io.EOF) {
			return model.Config{}, &report.Error{Pos: model.Pos{File: file}, Err: fmt.Errorf("%w: reached end of document", report.ErrMissingHeaderTerminator)}
		}
		if err != nil {
			return model.Config{}, err
		}
		if tok.Kind == model.SQL {
			return model.Config{}, report.Errorf(tok.Pos, tok.Line, report.ErrMissingHeaderTerminator, "statement found before the header ended")
		}
		if tok.Kind != model.Header {
			continue
		}
		if tok.Field.Tag == model.FieldEndHead {
			break
		}
		fields[tok.Field.Tag] = tok.Field.Value
	}
	return Build(file, fields)
}

// Build validates a header field map and applies defaults.
func Build(file string, fields map[string]string) (model.Config, error) {
	for _, f := range model.RequiredFields {
		if v, ok := fields[f]; !ok || v == "" {
			return model.Config{}, report.MissingField(file, f)
		}
	}

	out := fields[model.FieldOutput]
	if out == "" {
		wd, err := os.Getwd()
		if err != nil {
			return model.Config{}, fmt.Errorf("resolving working directory: %w", err)
		}
		out = wd
	}

	return model.Config{
		Dialect:       fields[model.FieldDialect],
		Version:       fields[model.FieldVersion],
		Output:        filepath.Clean(out),
		AllowComments: true,
	}, nil
}
