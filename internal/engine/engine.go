// Package engine threads a Context through the body of a document and turns
// tokens into ProcessedTokens ready for emission.
package engine

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/phobologic/sqlconv/internal/model"
	"github.com/phobologic/sqlconv/internal/report"
	"github.com/phobologic/sqlconv/internal/sqltext"
)

// TokenSource yields tokens until io.EOF.
type TokenSource interface {
	Next() (model.Token, error)
}

// CommentStripper removes "--" comments from a statement.
type CommentStripper interface {
	StripLineComments(stmt string) string
}

type lexicalStripper struct{}

func (lexicalStripper) StripLineComments(stmt string) string {
	return sqltext.StripLineComments(stmt)
}

type state int

const (
	idle state = iota
	awaitingSQL
)

// Engine is a cursor over the processed body of a document. A meta-comment
// moves it to awaitingSQL; the only edge out of that state is an SQL token.
type Engine struct {
	cfg     model.Config
	src     TokenSource
	strip   CommentStripper
	ctx     model.Context
	state   state
	metaTok model.Token
}

// Option configures an Engine.
type Option func(*Engine)

// WithStripper replaces the lexical comment stripper.
func WithStripper(s CommentStripper) Option {
	return func(e *Engine) {
		if s != nil {
			e.strip = s
		}
	}
}

// New creates an Engine reading the body tokens of a document from src.
func New(cfg model.Config, src TokenSource, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg,
		src:   src,
		strip: lexicalStripper{},
		ctx:   Initial(cfg),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initial is the context a document body starts with.
func Initial(cfg model.Config) model.Context {
	return model.Context{Output: cfg.Output, AllowComments: cfg.AllowComments}
}

// Context returns the current context.
func (e *Engine) Context() model.Context {
	return e.ctx
}

// Next returns the next token to emit, or io.EOF at the end of the document.
// Tokens that produce no output (hidden comments, excluded statements,
// meta-comments) are consumed silently.
func (e *Engine) Next() (model.ProcessedToken, error) {
	for {
		tok, err := e.src.Next()
		if errors.Is(err, io.EOF) {
			if e.state == awaitingSQL {
				return model.ProcessedToken{}, report.Errorf(e.metaTok.Pos, e.metaTok.Line, report.ErrMetaCommentMisplaced, "followed by end of document")
			}
			return model.ProcessedToken{}, io.EOF
		}
		if err != nil {
			return model.ProcessedToken{}, err
		}

		pt, ok, err := e.feed(tok)
		if err != nil {
			return model.ProcessedToken{}, err
		}
		if ok {
			return pt, nil
		}
	}
}

func (e *Engine) feed(tok model.Token) (model.ProcessedToken, bool, error) {
	switch e.state {
	case awaitingSQL:
		if tok.Kind != model.SQL {
			return model.ProcessedToken{}, false, report.Errorf(tok.Pos, tok.Line, report.ErrMetaCommentMisplaced,
				"meta comment on line %d followed by %s token", e.metaTok.Pos.Line, tok.Kind)
		}
		e.state = idle
	case idle:
		if tok.Kind == model.MetaComment {
			e.state = awaitingSQL
			e.metaTok = tok
		}
	}

	pt, next, err := e.Process(tok, e.ctx)
	if err != nil {
		return model.ProcessedToken{}, false, err
	}
	e.ctx = next
	if pt == nil {
		return model.ProcessedToken{}, false, nil
	}
	return *pt, true, nil
}

// Process applies one token to ctx. It returns the token to emit, if any,
// and the context for the following token. ctx is not modified.
func (e *Engine) Process(tok model.Token, ctx model.Context) (*model.ProcessedToken, model.Context, error) {
	switch tok.Kind {
	case model.LineComment, model.BlockComment:
		if !ctx.AllowComments {
			return nil, ctx, nil
		}
		return &model.ProcessedToken{Kind: tok.Kind, Text: tok.Text, Context: ctx, Pos: tok.Pos}, ctx, nil

	case model.Header:
		// A header-shaped line in the body is an ordinary comment.
		if !ctx.AllowComments {
			return nil, ctx, nil
		}
		text := tok.Field.Tag + ": " + tok.Field.Value
		return &model.ProcessedToken{Kind: model.LineComment, Text: text, Context: ctx, Pos: tok.Pos}, ctx, nil

	case model.GroupTag:
		if tok.Group.Op == model.StartGroup {
			pt := e.startGroup(tok, ctx)
			return pt, pt.Context, nil
		}
		return e.endGroup(tok, ctx)

	case model.MetaComment:
		ctx.Pending = ParseMeta(tok.Text)
		return nil, ctx, nil

	case model.SQL:
		return e.statement(tok, ctx), clearPending(ctx), nil

	default:
		return nil, ctx, report.At(tok, fmt.Errorf("%w: %s", report.ErrUnknownToken, tok.Kind))
	}
}

func (e *Engine) startGroup(tok model.Token, ctx model.Context) *model.ProcessedToken {
	prev := ctx.Output
	switch {
	case tok.Group.Output != "":
		ctx.Output = filepath.Join(dirOf(prev), tok.Group.Output+e.cfg.OutfileType)
	case filepath.Ext(prev) == "":
		ctx.Output = model.DefaultFile(prev, e.cfg.OutfileType)
	}
	ctx = ctx.Push(model.Frame{Name: tok.Group.Name, Output: prev})
	return &model.ProcessedToken{Kind: model.GroupTag, Group: tok.Group, Context: ctx, Pos: tok.Pos}
}

func (e *Engine) endGroup(tok model.Token, ctx model.Context) (*model.ProcessedToken, model.Context, error) {
	frame, next, ok := ctx.Pop()
	if !ok {
		return nil, ctx, report.Errorf(tok.Pos, tok.Line, report.ErrUnbalancedGroup, "ENDGROUP %q without a matching STARTGROUP", tok.Group.Name)
	}
	if next.Depth() == 0 {
		next.Output = model.DefaultFile(frame.Output, e.cfg.OutfileType)
	} else {
		next.Output = frame.Output
	}
	pt := &model.ProcessedToken{
		Kind:    model.GroupTag,
		Group:   model.Group{Op: model.EndGroup, Name: tok.Group.Name},
		Context: next,
		Exited:  ctx.Output,
		Pos:     tok.Pos,
	}
	return pt, next, nil
}

func (e *Engine) statement(tok model.Token, ctx model.Context) *model.ProcessedToken {
	meta := ctx.Pending
	if meta.Has(model.Exclude) {
		return nil
	}

	text := sqltext.Collapse(e.strip.StripLineComments(tok.Text))
	if meta.Has(model.Multiline) {
		text = strings.TrimSpace(tok.Text)
	}

	snap := clearPending(ctx)
	if meta.Output != "" {
		snap.Output = redirect(ctx.Output, meta.Output, e.cfg.OutfileType)
	}
	return &model.ProcessedToken{Kind: model.SQL, Text: text, Context: snap, Pos: tok.Pos}
}

func clearPending(ctx model.Context) model.Context {
	ctx.Pending = model.Meta{}
	return ctx
}
