// Package emit provides the output strategies that turn processed tokens into
// artifacts, and a registry mapping strategy names to them.
package emit

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/phobologic/sqlconv/internal/model"
	"github.com/phobologic/sqlconv/internal/report"
	"github.com/phobologic/sqlconv/internal/router"
)

// Emitter writes processed tokens into output handles. Open and Close bracket
// the lifetime of each artifact; Write is called once per token routed to it.
type Emitter interface {
	// Configure adjusts the document config before the body is processed.
	Configure(cfg *model.Config)
	// Open writes the preamble of a newly created artifact.
	Open(h *router.Handle) error
	Write(h *router.Handle, tok model.ProcessedToken) error
	// Close writes the trailer of an artifact once the stream has ended.
	Close(h *router.Handle) error
}

// Options are the user-tunable emitter settings.
type Options struct {
	// Indent is the number of spaces per nesting level of structured output.
	Indent int
}

// Strategy describes a registered emitter.
type Strategy struct {
	Name      string
	Extension string
	New       func(opts Options) Emitter
}

// Strategies maps emitter names to their configuration.
// Populated by init() functions in per-strategy files.
var Strategies = map[string]*Strategy{}

// Lookup returns the strategy registered under name.
func Lookup(name string) (*Strategy, error) {
	s, ok := Strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown emitter %q (available: %v)", name, Names())
	}
	return s, nil
}

// Names lists the registered strategies in sorted order.
func Names() []string {
	names := make([]string, 0, len(Strategies))
	for n := range Strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stream yields processed tokens until io.EOF.
type Stream interface {
	Next() (model.ProcessedToken, error)
}

// Drive routes every token of src through r into e, then closes each
// artifact. ext names the default artifact for tokens whose output is still
// a directory.
func Drive(e Emitter, r *router.Router, ext string, src Stream) error {
	for {
		tok, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		h, created, err := r.Resolve(model.DefaultFile(tok.Target(), ext))
		if err != nil {
			return &report.Error{Pos: tok.Pos, Err: err}
		}
		if created {
			if err := e.Open(h); err != nil {
				return fmt.Errorf("writing %s: %w", h.Path(), err)
			}
		}
		if err := e.Write(h, tok); err != nil {
			return err
		}
	}

	for _, h := range r.Handles() {
		if err := e.Close(h); err != nil {
			return fmt.Errorf("writing %s: %w", h.Path(), err)
		}
	}
	return nil
}
