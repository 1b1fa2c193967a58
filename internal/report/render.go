package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// Render formats err for a terminal. Positioned errors get the source line
// and a caret underline:
//
//	queries.sql:12:1: unbalanced group: ENDGROUP "users" without STARTGROUP
//	   12 | /* ENDGROUP : users */
//	      | ^^^^^^^^^^^^^^^^^^^^^^
func Render(err error) string {
	var perr *Error
	if !errors.As(err, &perr) || perr.Pos.Line == 0 || perr.Snippet == "" {
		return err.Error()
	}

	line := strings.TrimRight(strings.ReplaceAll(perr.Snippet, "\t", "    "), " \r\n")
	indent := len(line) - len(strings.TrimLeft(line, " "))
	body := line[indent:]
	width := uniseg.StringWidth(body)
	if width == 0 {
		width = 1
	}

	gutter := fmt.Sprintf("%d", perr.Pos.Line)
	pad := strings.Repeat(" ", len(gutter))

	var b strings.Builder
	b.WriteString(err.Error())
	fmt.Fprintf(&b, "\n  %s | %s", gutter, line)
	fmt.Fprintf(&b, "\n  %s | %s%s", pad, strings.Repeat(" ", uniseg.StringWidth(line[:indent])), strings.Repeat("^", width))
	return b.String()
}
