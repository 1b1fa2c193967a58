package emit

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/phobologic/sqlconv/internal/model"
	"github.com/phobologic/sqlconv/internal/report"
	"github.com/phobologic/sqlconv/internal/router"
	"github.com/phobologic/sqlconv/internal/sqltext"
)

const defaultIndent = 4

func init() {
	Strategies["json"] = &Strategy{
		Name:      "json",
		Extension: ".json",
		New: func(opts Options) Emitter {
			indent := opts.Indent
			if indent <= 0 {
				indent = defaultIndent
			}
			return &document{space: strings.Repeat(" ", indent), files: make(map[*router.Handle]*docState)}
		},
	}
}

// document writes one nested JSON object per artifact. Only PREPARE
// statements are kept, keyed by statement name; groups become nested objects.
//
// Each artifact holds back its last line so the trailing comma can be dropped
// before a closing brace is written.
type document struct {
	space   string
	version string
	files   map[*router.Handle]*docState
}

type docState struct {
	depth   int
	pending string
}

func (d *document) Configure(cfg *model.Config) {
	cfg.OutfileType = Strategies["json"].Extension
	cfg.AllowComments = false
	d.version = cfg.Version
}

func (d *document) Open(h *router.Handle) error {
	version := "null"
	if d.version != "" {
		version = quote(d.version)
	}
	st := &docState{depth: 1}
	d.files[h] = st
	if _, err := h.WriteString("{\n"); err != nil {
		return err
	}
	return d.push(h, st, `"version": `+version+",")
}

func (d *document) Write(h *router.Handle, tok model.ProcessedToken) error {
	st := d.files[h]
	switch tok.Kind {
	case model.SQL:
		if !sqltext.IsPrepare(tok.Text) {
			return nil
		}
		p, ok := sqltext.ParsePrepared(tok.Text)
		if !ok {
			first, _, _ := strings.Cut(tok.Text, "\n")
			return report.Errorf(tok.Pos, first, report.ErrMalformedPreparedStatement, "expected PREPARE name [(types)] AS query;")
		}
		h.AddEntry()
		return d.push(h, st, quote(p.Name)+": "+quote(sqltext.FlattenLines(p.Query))+",")

	case model.GroupTag:
		if tok.Group.Op == model.StartGroup {
			if err := d.push(h, st, quote(tok.Group.Name)+": {"); err != nil {
				return err
			}
			st.depth++
			return nil
		}
		if st.depth > 1 {
			st.depth--
		}
		return d.push(h, st, "},")
	}
	return nil
}

func (d *document) Close(h *router.Handle) error {
	st := d.files[h]
	if err := d.flush(h, st); err != nil {
		return err
	}
	_, err := h.WriteString("}\n")
	return err
}

// push writes the held-back line and holds line, indented, in its place.
// A line that closes an object first strips the comma from the line before it.
func (d *document) push(h *router.Handle, st *docState, line string) error {
	if strings.HasPrefix(line, "}") {
		st.pending = strings.TrimSuffix(st.pending, ",")
	}
	if st.pending != "" {
		if _, err := h.WriteString(st.pending + "\n"); err != nil {
			return err
		}
	}
	st.pending = strings.Repeat(d.space, st.depth) + line
	return nil
}

// flush writes the held-back line without its trailing comma.
func (d *document) flush(h *router.Handle, st *docState) error {
	line := strings.TrimSuffix(st.pending, ",")
	st.pending = ""
	if line == "" {
		return nil
	}
	_, err := h.WriteString(line + "\n")
	return err
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
