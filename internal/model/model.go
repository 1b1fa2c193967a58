// Package model defines core data structures for sqlconv.
package model

import (
	"fmt"
	"path/filepath"
	"slices"
)

// TokenKind classifies a lexed source construct.
type TokenKind int

const (
	SQL TokenKind = iota + 1
	LineComment
	BlockComment
	Header
	GroupTag
	MetaComment
)

func (k TokenKind) String() string {
	switch k {
	case SQL:
		return "SQL"
	case LineComment:
		return "LineComment"
	case BlockComment:
		return "BlockComment"
	case Header:
		return "Header"
	case GroupTag:
		return "GroupTag"
	case MetaComment:
		return "MetaComment"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Pos is a 1-based location in a source document.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// GroupOp distinguishes the two grouping markers.
type GroupOp string

const (
	StartGroup GroupOp = "startgroup"
	EndGroup   GroupOp = "endgroup"
)

// Group is the payload of a GroupTag token. Output is only meaningful on
// StartGroup and holds the optional override file name (no extension).
type Group struct {
	Op     GroupOp
	Name   string
	Output string
}

// Header field tags.
const (
	FieldDialect = "dialect"
	FieldVersion = "version"
	FieldOutput  = "output"
	FieldEndHead = "endhead"
)

// HeaderFields are the tags recognized in "-- tag : value" header lines.
var HeaderFields = []string{FieldDialect, FieldVersion, FieldOutput, FieldEndHead}

// RequiredFields must be present before the header ends.
var RequiredFields = []string{FieldDialect}

// Field is the payload of a Header token. Tag is lower-cased.
type Field struct {
	Tag   string
	Value string
}

// Token is one classified source construct. Only the payload matching Kind
// is populated: Text for SQL and comments, Field for Header, Group for GroupTag.
type Token struct {
	Kind  TokenKind
	Text  string
	Field Field
	Group Group
	Pos   Pos
	// Line is the first source line of the construct, kept for diagnostics.
	Line string
}

// Config is the per-document configuration built from the header block.
type Config struct {
	Dialect       string
	Version       string
	Output        string
	AllowComments bool
	// OutfileType is the artifact extension including the dot, set by the emitter.
	OutfileType string
}

// Directive is a set of meta-comment flags.
type Directive uint8

const (
	Exclude Directive = 1 << iota
	Multiline
)

// Meta is the parsed content of a meta-comment, pending until the next SQL token.
type Meta struct {
	Directives Directive
	// Output is the OUTPUT: override name, empty when absent.
	Output string
}

// Has reports whether d is set.
func (m Meta) Has(d Directive) bool {
	return m.Directives&d != 0
}

// Frame is one open group. Output is the path that was current before the
// group started and is restored when it ends.
type Frame struct {
	Name   string
	Output string
}

// Context is the state threaded through the document body. It is a value:
// every method returns a new Context and never mutates the receiver's slices,
// so a copy stored on a ProcessedToken stays valid after processing moves on.
type Context struct {
	Output        string
	Groups        []Frame
	AllowComments bool
	Pending       Meta
}

// Push returns c with f on top of the group stack.
func (c Context) Push(f Frame) Context {
	c.Groups = append(slices.Clip(c.Groups), f)
	return c
}

// Pop returns the top frame and c without it. ok is false when the stack is empty.
func (c Context) Pop() (f Frame, next Context, ok bool) {
	n := len(c.Groups)
	if n == 0 {
		return Frame{}, c, false
	}
	f = c.Groups[n-1]
	c.Groups = c.Groups[: n-1 : n-1]
	return f, c, true
}

// Depth is the number of open groups.
func (c Context) Depth() int {
	return len(c.Groups)
}

// GroupNames lists the open groups, outermost first.
func (c Context) GroupNames() []string {
	names := make([]string, len(c.Groups))
	for i, f := range c.Groups {
		names[i] = f.Name
	}
	return names
}

// ProcessedToken is a token resolved against the context it was seen in.
type ProcessedToken struct {
	Kind    TokenKind
	Text    string
	Group   Group
	Context Context
	// Exited is set on EndGroup tokens to the output path of the group being
	// closed, so the closing marker lands in the file the group was written to.
	Exited string
	Pos    Pos
}

// Target is the output path this token is written to.
func (p ProcessedToken) Target() string {
	if p.Kind == GroupTag && p.Group.Op == EndGroup && p.Exited != "" {
		return p.Exited
	}
	return p.Context.Output
}

// DefaultFile returns output unchanged when it names a file, or the default
// artifact inside it when it names a directory (has no extension).
func DefaultFile(output, ext string) string {
	if filepath.Ext(output) != "" {
		return output
	}
	return filepath.Join(output, "default"+ext)
}

// Artifact describes one generated file.
type Artifact struct {
	Path    string
	Entries int
	Bytes   int64
}

// Manifest is the summary of one conversion run, ready for serialization.
type Manifest struct {
	Document  string
	Emitter   string
	Artifacts []Artifact
}
