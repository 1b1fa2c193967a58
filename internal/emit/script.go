package emit

import (
	"fmt"
	"strings"

	"github.com/phobologic/sqlconv/internal/model"
	"github.com/phobologic/sqlconv/internal/router"
)

func init() {
	Strategies["script"] = &Strategy{
		Name:      "script",
		Extension: ".sql",
		New:       func(Options) Emitter { return &script{opened: make(map[*router.Handle]bool)} },
	}
}

// script writes a plain SQL file: one statement per line, comments kept,
// group markers rendered back as separators.
type script struct {
	// opened records handles whose last write was a STARTGROUP marker.
	opened map[*router.Handle]bool
}

func (*script) Configure(cfg *model.Config) {
	cfg.OutfileType = Strategies["script"].Extension
}

func (*script) Open(*router.Handle) error { return nil }

func (s *script) Write(h *router.Handle, tok model.ProcessedToken) error {
	afterStart := s.opened[h]
	s.opened[h] = false
	var out string
	switch tok.Kind {
	case model.SQL:
		h.AddEntry()
		out = tok.Text + "\n"
	case model.LineComment:
		out = "-- " + tok.Text + "\n"
	case model.BlockComment, model.MetaComment:
		if strings.Contains(tok.Text, "\n") {
			out = "/*\n" + tok.Text + "\n*/\n"
		} else {
			out = "/* " + tok.Text + " */\n"
		}
	case model.GroupTag:
		if tok.Group.Op == model.StartGroup {
			if h.Size() > 0 && !afterStart {
				out = "\n"
			}
			s.opened[h] = true
			out += fmt.Sprintf("/* STARTGROUP : %s */\n", tok.Group.Name)
		} else {
			out = fmt.Sprintf("/* ENDGROUP : %s */\n", tok.Group.Name)
		}
	default:
		return nil
	}
	_, err := h.WriteString(out)
	return err
}

func (*script) Close(*router.Handle) error { return nil }
