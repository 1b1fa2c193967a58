// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/sqlconv/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a run Manifest into TOON format.
func Encode(m *model.Manifest) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("document: %s", encodeValue(m.Document)))
	parts = append(parts, fmt.Sprintf("emitter: %s", encodeValue(m.Emitter)))

	var rows [][]string
	for i := range m.Artifacts {
		a := &m.Artifacts[i]
		rows = append(rows, []string{
			a.Path,
			strconv.Itoa(a.Entries),
			strconv.FormatInt(a.Bytes, 10),
		})
	}
	parts = append(parts, formatTabular("artifacts", []string{"path", "entries", "bytes"}, rows))

	return strings.Join(parts, "\n")
}

// EncodeAll joins the manifests of a batch, separated by blank lines.
func EncodeAll(ms []*model.Manifest) string {
	blocks := make([]string, len(ms))
	for i, m := range ms {
		blocks[i] = Encode(m)
	}
	return strings.Join(blocks, "\n\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
