// Package sqltext handles the text of SQL statements and comments: dedenting,
// whitespace collapsing, inline comment stripping and PREPARE parsing.
// It never validates SQL beyond what Lint reports as warnings.
package sqltext

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	prepareRe    = regexp.MustCompile(`(?is)^PREPARE\s+(\w+)\s*(?:\((.*?)\))?\s+AS\s+(.+?)\s*;?\s*$`)
	dollarTagRe  = regexp.MustCompile(`^\$[A-Za-z_][A-Za-z0-9_]*\$|^\$\$`)
)

// Collapse replaces runs of whitespace with a single space and trims.
func Collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Dedent joins lines the way a docstring is cleaned: the first line loses its
// leading whitespace, the common indentation of the remaining lines is
// removed, trailing whitespace is dropped and leading/trailing blank lines go.
func Dedent(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRight(l, " \t\r\n")
	}
	out[0] = strings.TrimLeft(out[0], " \t")

	margin := -1
	for _, l := range out[1:] {
		content := strings.TrimLeft(l, " \t")
		if content == "" {
			continue
		}
		if n := len(l) - len(content); margin < 0 || n < margin {
			margin = n
		}
	}
	if margin > 0 {
		for i := 1; i < len(out); i++ {
			if len(out[i]) >= margin {
				out[i] = out[i][margin:]
			} else {
				out[i] = strings.TrimLeft(out[i], " \t")
			}
		}
	}

	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// StripLineComments removes "--" comments. Quoted strings, quoted
// identifiers, dollar-quoted bodies and /* */ comments are left intact, and
// line breaks are preserved.
func StripLineComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range scanComments(s) {
		b.WriteString(s[r.keepFrom:r.start])
	}
	return b.String()
}

// EndsStatement reports whether line, ignoring a trailing "--" comment,
// ends with the statement terminator.
func EndsStatement(line string) bool {
	return strings.HasSuffix(strings.TrimRight(StripLineComments(line), " \t\r\n"), ";")
}

type cut struct {
	keepFrom int // start of the text kept before this cut
	start    int // first byte of the comment, or len(s) for the tail
}

// scanComments walks s and returns the kept segments; the last segment runs
// to the end of s.
func scanComments(s string) []cut {
	var cuts []cut
	keep := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'' || c == '"':
			i = skipQuoted(s, i, c)
		case c == '$':
			if tag := dollarTagRe.FindString(s[i:]); tag != "" {
				if end := strings.Index(s[i+len(tag):], tag); end >= 0 {
					i += len(tag) + end + len(tag) - 1
				} else {
					i = len(s) - 1
				}
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			if end := strings.Index(s[i+2:], "*/"); end >= 0 {
				i += 2 + end + 1
			} else {
				i = len(s) - 1
			}
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			cuts = append(cuts, cut{keepFrom: keep, start: i})
			for i < len(s) && s[i] != '\n' && s[i] != '\r' {
				i++
			}
			keep = i
			i--
		}
	}
	return append(cuts, cut{keepFrom: keep, start: len(s)})
}

// skipQuoted returns the index of the closing quote of the literal opened at
// s[i]. A doubled quote is an escaped quote and does not close the literal.
func skipQuoted(s string, i int, q byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j
	}
	return len(s) - 1
}

// IsPrepare reports whether stmt starts with the PREPARE keyword.
func IsPrepare(stmt string) bool {
	fields := strings.Fields(stmt)
	return len(fields) > 0 && strings.EqualFold(fields[0], "PREPARE")
}

// Prepared is a parsed `PREPARE name [(types)] AS query;` statement.
type Prepared struct {
	Name   string
	Params string
	Query  string
}

// ParsePrepared splits a PREPARE statement. ok is false when stmt does not
// have the expected shape.
func ParsePrepared(stmt string) (p Prepared, ok bool) {
	m := prepareRe.FindStringSubmatch(strings.TrimSpace(stmt))
	if m == nil {
		return Prepared{}, false
	}
	return Prepared{Name: m[1], Params: strings.TrimSpace(m[2]), Query: m[3]}, true
}

// FlattenLines replaces line breaks with single spaces, keeping all other
// whitespace as written.
func FlattenLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
