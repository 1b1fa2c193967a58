package engine

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/phobologic/sqlconv/internal/model"
	"github.com/phobologic/sqlconv/internal/report"
)

type tokens []model.Token

func (ts *tokens) Next() (model.Token, error) {
	if len(*ts) == 0 {
		return model.Token{}, io.EOF
	}
	tok := (*ts)[0]
	*ts = (*ts)[1:]
	return tok, nil
}

func sql(text string) model.Token {
	return model.Token{Kind: model.SQL, Text: text}
}

func start(name, output string) model.Token {
	return model.Token{Kind: model.GroupTag, Group: model.Group{Op: model.StartGroup, Name: name, Output: output}}
}

func end(name string) model.Token {
	return model.Token{Kind: model.GroupTag, Group: model.Group{Op: model.EndGroup, Name: name}}
}

func meta(text string) model.Token {
	return model.Token{Kind: model.MetaComment, Text: text}
}

func jsonConfig(output string) model.Config {
	return model.Config{Dialect: "postgres", Output: output, OutfileType: ".json"}
}

func drain(t *testing.T, cfg model.Config, ts ...model.Token) ([]model.ProcessedToken, error) {
	t.Helper()
	src := tokens(ts)
	e := New(cfg, &src)
	var out []model.ProcessedToken
	for {
		pt, err := e.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, pt)
	}
}

func targets(pts []model.ProcessedToken) []string {
	var ts []string
	for _, pt := range pts {
		ts = append(ts, pt.Target())
	}
	return ts
}

func TestGroupRoundTrip(t *testing.T) {
	t.Parallel()
	out := filepath.Join("out", "all.json")
	pts, err := drain(t, jsonConfig(out), start("a", ""), start("b", ""), end("b"), end("a"), sql("SELECT 1;"))
	if err != nil {
		t.Fatal(err)
	}
	for i, pt := range pts {
		if pt.Target() != out {
			t.Errorf("token %d target = %q, want %q", i, pt.Target(), out)
		}
	}
	if d := pts[len(pts)-1].Context.Depth(); d != 0 {
		t.Errorf("depth after groups = %d", d)
	}
}

func TestGroupOutputOverride(t *testing.T) {
	t.Parallel()
	pts, err := drain(t, jsonConfig("out"),
		sql("SELECT 0;"),
		start("users", "users"),
		sql("SELECT 1;"),
		start("admins", "admins"),
		sql("SELECT 2;"),
		end("admins"),
		sql("SELECT 3;"),
		end("users"),
		sql("SELECT 4;"),
	)
	if err != nil {
		t.Fatal(err)
	}
	users := filepath.Join("out", "users.json")
	admins := filepath.Join("out", "admins.json")
	def := filepath.Join("out", "default.json")
	want := []string{"out", users, users, admins, admins, admins, users, users, def}
	if diff := cmp.Diff(want, targets(pts)); diff != "" {
		t.Errorf("targets (-want +got):\n%s", diff)
	}
}

func TestGroupIntoDirectory(t *testing.T) {
	t.Parallel()
	pts, err := drain(t, jsonConfig("out"), start("g", ""), sql("SELECT 1;"), end("g"))
	if err != nil {
		t.Fatal(err)
	}
	def := filepath.Join("out", "default.json")
	if diff := cmp.Diff([]string{def, def, def}, targets(pts)); diff != "" {
		t.Errorf("targets (-want +got):\n%s", diff)
	}
}

func TestContextSnapshots(t *testing.T) {
	t.Parallel()
	pts, err := drain(t, jsonConfig("out"), start("a", ""), start("b", ""), end("b"), start("c", ""), sql("SELECT 1;"))
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"a"}, {"a", "b"}, {"a"}, {"a", "c"}, {"a", "c"}}
	var got [][]string
	for _, pt := range pts {
		got = append(got, pt.Context.GroupNames())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("group stacks (-want +got):\n%s", diff)
	}
}

func TestUnbalancedGroup(t *testing.T) {
	t.Parallel()
	_, err := drain(t, jsonConfig("out"), start("a", ""), end("a"), end("a"))
	if !errors.Is(err, report.ErrUnbalancedGroup) {
		t.Fatalf("expected ErrUnbalancedGroup, got %v", err)
	}
}

func TestStatementText(t *testing.T) {
	t.Parallel()
	pts, err := drain(t, jsonConfig("out"), sql("SELECT a, -- first\n  b\nFROM t;"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "SELECT a, b FROM t;"; pts[0].Text != want {
		t.Errorf("text = %q, want %q", pts[0].Text, want)
	}
}

func TestMetaExclude(t *testing.T) {
	t.Parallel()
	pts, err := drain(t, jsonConfig("out"), meta("EXCLUDE"), sql("SELECT 1;"), sql("SELECT 2;"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 1 || pts[0].Text != "SELECT 2;" {
		t.Errorf("tokens = %+v", pts)
	}
}

func TestMetaMultiline(t *testing.T) {
	t.Parallel()
	raw := "SELECT a, -- keep\n  b\nFROM t;"
	pts, err := drain(t, jsonConfig("out"), meta("MULTILINE"), sql(raw), sql(raw))
	if err != nil {
		t.Fatal(err)
	}
	if pts[0].Text != raw {
		t.Errorf("multiline text = %q", pts[0].Text)
	}
	if pts[1].Text != "SELECT a, b FROM t;" {
		t.Errorf("directive leaked to the next statement: %q", pts[1].Text)
	}
}

func TestMetaOutput(t *testing.T) {
	t.Parallel()
	pts, err := drain(t, jsonConfig("out"), meta("OUTPUT: special"), sql("SELECT 1;"), sql("SELECT 2;"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join("out", "special.json"), "out"}
	if diff := cmp.Diff(want, targets(pts)); diff != "" {
		t.Errorf("targets (-want +got):\n%s", diff)
	}
}

func TestMetaMisplaced(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		toks []model.Token
	}{
		{"followed by group", []model.Token{meta("EXCLUDE"), start("a", "")}},
		{"followed by comment", []model.Token{meta("EXCLUDE"), {Kind: model.LineComment, Text: "x"}}},
		{"followed by meta", []model.Token{meta("EXCLUDE"), meta("MULTILINE"), sql("SELECT 1;")}},
		{"end of document", []model.Token{sql("SELECT 1;"), meta("EXCLUDE")}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := drain(t, jsonConfig("out"), tt.toks...)
			if !errors.Is(err, report.ErrMetaCommentMisplaced) {
				t.Fatalf("expected ErrMetaCommentMisplaced, got %v", err)
			}
		})
	}
}

func TestComments(t *testing.T) {
	t.Parallel()
	toks := []model.Token{
		{Kind: model.LineComment, Text: "note"},
		{Kind: model.BlockComment, Text: "block"},
		{Kind: model.Header, Field: model.Field{Tag: "version", Value: "2"}},
	}

	cfg := jsonConfig("out")
	pts, err := drain(t, cfg, toks...)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 0 {
		t.Errorf("comments emitted with AllowComments off: %+v", pts)
	}

	cfg.AllowComments = true
	pts, err = drain(t, cfg, toks...)
	if err != nil {
		t.Fatal(err)
	}
	var texts []string
	for _, pt := range pts {
		texts = append(texts, pt.Text)
	}
	if diff := cmp.Diff([]string{"note", "block", "version: 2"}, texts); diff != "" {
		t.Errorf("comments (-want +got):\n%s", diff)
	}
	if pts[2].Kind != model.LineComment {
		t.Errorf("header in body kind = %s", pts[2].Kind)
	}
}

func TestUnknownToken(t *testing.T) {
	t.Parallel()
	e := New(jsonConfig("out"), new(tokens))
	_, _, err := e.Process(model.Token{Kind: model.TokenKind(42)}, e.Context())
	if !errors.Is(err, report.ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestProcessDoesNotMutate(t *testing.T) {
	t.Parallel()
	e := New(jsonConfig("out"), new(tokens))
	ctx := e.Context()
	_, next, err := e.Process(start("a", "a"), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Depth() != 0 || ctx.Output != "out" {
		t.Errorf("input context changed: %+v", ctx)
	}
	if next.Depth() != 1 {
		t.Errorf("next depth = %d", next.Depth())
	}
}

func TestParseMeta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want model.Meta
	}{
		{"EXCLUDE", model.Meta{Directives: model.Exclude}},
		{"multiline", model.Meta{Directives: model.Multiline}},
		{"OUTPUT: extra", model.Meta{Output: "extra"}},
		{"MULTILINE\nOUTPUT : extra", model.Meta{Directives: model.Multiline, Output: "extra"}},
		{"EXCLUDED", model.Meta{}},
		{"OUTPUT: admin file  ", model.Meta{Output: "admin file"}},
		{"OUTPUT: first\nMULTILINE", model.Meta{Directives: model.Multiline, Output: "first"}},
	}
	for _, tt := range tests {
		if got := ParseMeta(tt.text); got != tt.want {
			t.Errorf("ParseMeta(%q) = %+v, want %+v", tt.text, got, tt.want)
		}
	}
}

func TestRedirect(t *testing.T) {
	t.Parallel()
	if got, want := redirect("out", "x", ".json"), filepath.Join("out", "x.json"); got != want {
		t.Errorf("redirect dir = %q, want %q", got, want)
	}
	if got, want := redirect(filepath.Join("out", "a.sql"), "x", ".json"), filepath.Join("out", "a", "x.sql"); got != want {
		t.Errorf("redirect file = %q, want %q", got, want)
	}
}
