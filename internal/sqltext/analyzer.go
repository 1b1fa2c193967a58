package sqltext

import (
	"bytes"
	"context"
	_ "embed"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	grammar "github.com/smacker/go-tree-sitter/sql"
)

//go:embed queries/comments.scm
var commentQuery []byte

// Analyzer runs statements through the tree-sitter SQL grammar. The grammar is
// generic, not dialect-aware: when it cannot parse a statement cleanly the
// Analyzer falls back to the lexical scanner in this package.
//
// An Analyzer is not safe for concurrent use.
type Analyzer struct {
	parser *sitter.Parser
	query  *sitter.Query
}

// NewAnalyzer creates an Analyzer with its own parser.
func NewAnalyzer() *Analyzer {
	lang := grammar.GetLanguage()
	p := sitter.NewParser()
	p.SetLanguage(lang)
	a := &Analyzer{parser: p}
	if q, err := sitter.NewQuery(commentQuery, lang); err == nil {
		a.query = q
	}
	return a
}

// Close releases the parser and query.
func (a *Analyzer) Close() {
	if a.query != nil {
		a.query.Close()
	}
	a.parser.Close()
}

func (a *Analyzer) parse(src []byte) *sitter.Tree {
	tree, err := a.parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil
	}
	return tree
}

// StripLineComments removes "--" comments from stmt, using the syntax tree
// to find them when the statement parses without errors.
func (a *Analyzer) StripLineComments(stmt string) string {
	if a == nil || a.query == nil || !strings.Contains(stmt, "--") {
		return StripLineComments(stmt)
	}
	src := []byte(stmt)
	tree := a.parse(src)
	if tree == nil {
		return StripLineComments(stmt)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return StripLineComments(stmt)
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(a.query, root)

	type span struct{ start, end int }
	var spans []span
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range match.Captures {
			start, end := int(c.Node.StartByte()), int(c.Node.EndByte())
			if !bytes.HasPrefix(src[start:end], []byte("--")) {
				continue
			}
			for end > start && (src[end-1] == '\n' || src[end-1] == '\r') {
				end--
			}
			spans = append(spans, span{start, end})
		}
	}
	slices.SortFunc(spans, func(x, y span) int { return x.start - y.start })

	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for _, s := range spans {
		if s.start < last {
			continue
		}
		b.Write(src[last:s.start])
		last = s.end
	}
	b.Write(src[last:])
	return b.String()
}

// Finding is a syntax problem reported by Lint. Line and Col are 1-based and
// relative to the statement text.
type Finding struct {
	Line    int
	Col     int
	Missing bool
	Text    string
}

// Lint reports the ERROR and MISSING nodes the grammar produced for stmt.
func (a *Analyzer) Lint(stmt string) []Finding {
	src := []byte(stmt)
	tree := a.parse(src)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}

	var findings []Finding
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "ERROR" || n.IsMissing() {
			pt := n.StartPoint()
			f := Finding{Line: int(pt.Row) + 1, Col: int(pt.Column) + 1, Missing: n.IsMissing()}
			if f.Missing {
				f.Text = n.Type()
			} else {
				f.Text = Collapse(string(src[n.StartByte():n.EndByte()]))
			}
			findings = append(findings, f)
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return findings
}
