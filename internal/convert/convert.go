// Package convert runs one annotated SQL document through the full pipeline:
// lexer, header, context engine, output router and emitter.
package convert

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/sqlconv/internal/emit"
	"github.com/phobologic/sqlconv/internal/engine"
	"github.com/phobologic/sqlconv/internal/header"
	"github.com/phobologic/sqlconv/internal/lexer"
	"github.com/phobologic/sqlconv/internal/model"
	"github.com/phobologic/sqlconv/internal/router"
	"github.com/phobologic/sqlconv/internal/sqltext"
)

// Options controls a conversion run.
type Options struct {
	// Emitter is the registered strategy name, "json" when empty.
	Emitter string
	Indent  int
	// Output replaces the header's output path when set.
	Output string
	Strict bool
	Lint   bool
	// Linter replaces the tree-sitter analyzer when Lint is set.
	Linter Linter
	Logger *slog.Logger
	// Claims, when set, is shared by every document of a batch so that no
	// document overwrites an artifact another one wrote.
	Claims *router.Claims
}

// File converts the document at path.
func File(path string, opts Options) (*model.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Convert(path, f, opts)
}

// Convert reads a document from r and writes its artifacts. name identifies
// the document in diagnostics and in the manifest. On error, artifacts
// written so far are left on disk but the run is not complete.
func Convert(name string, r io.Reader, opts Options) (*model.Manifest, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Emitter == "" {
		opts.Emitter = "json"
	}
	strategy, err := emit.Lookup(opts.Emitter)
	if err != nil {
		return nil, err
	}

	lx := lexer.New(name, r, lexer.Options{Strict: opts.Strict, Logger: log})
	cfg, err := header.Parse(name, lx)
	if err != nil {
		return nil, err
	}
	if opts.Output != "" {
		cfg.Output = filepath.Clean(opts.Output)
	}
	if _, ok := header.Dialects[strings.ToLower(cfg.Dialect)]; !ok {
		log.Warn("unknown dialect", "document", name, "dialect", cfg.Dialect)
	}

	em := strategy.New(emit.Options{Indent: opts.Indent})
	em.Configure(&cfg)
	log.Debug("header parsed", "document", name, "dialect", cfg.Dialect, "version", cfg.Version, "output", cfg.Output)

	analyzer := sqltext.NewAnalyzer()
	defer analyzer.Close()

	var stream emit.Stream = engine.New(cfg, lx, engine.WithStripper(analyzer))
	if opts.Lint {
		var lt Linter = analyzer
		if opts.Linter != nil {
			lt = opts.Linter
		}
		stream = &linter{src: stream, analyzer: lt, log: log}
	}

	rt := router.New()
	if opts.Claims != nil {
		rt = router.NewShared(opts.Claims, name)
	}
	defer rt.Release()
	if err := emit.Drive(em, rt, cfg.OutfileType, stream); err != nil {
		return nil, err
	}

	m := &model.Manifest{Document: name, Emitter: strategy.Name}
	for _, h := range rt.Handles() {
		log.Debug("artifact written", "path", h.Path(), "entries", h.Entries())
		m.Artifacts = append(m.Artifacts, model.Artifact{Path: h.Path(), Entries: h.Entries(), Bytes: h.Size()})
	}
	if err := rt.Close(); err != nil {
		return nil, fmt.Errorf("finishing %s: %w", name, err)
	}
	return m, nil
}

// Linter reports syntax problems in a statement.
type Linter interface {
	Lint(stmt string) []sqltext.Finding
}

// linter passes tokens through, warning about statements the SQL grammar
// cannot parse. Findings are reported at the statement's source position;
// their offsets refer to the collapsed statement text.
type linter struct {
	src      emit.Stream
	analyzer Linter
	log      *slog.Logger
}

func (l *linter) Next() (model.ProcessedToken, error) {
	tok, err := l.src.Next()
	if err != nil || tok.Kind != model.SQL {
		return tok, err
	}
	for _, f := range l.analyzer.Lint(tok.Text) {
		if f.Missing {
			l.log.Warn("statement is missing a token", "pos", tok.Pos.String(), "expected", f.Text)
		} else {
			l.log.Warn("statement does not parse", "pos", tok.Pos.String(), "near", f.Text)
		}
	}
	return tok, nil
}
