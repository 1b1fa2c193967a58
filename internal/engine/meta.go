package engine

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/phobologic/sqlconv/internal/model"
)

var (
	excludeRe   = regexp.MustCompile(`(?i)\bEXCLUDE\b`)
	multilineRe = regexp.MustCompile(`(?i)\bMULTILINE\b`)
	outputRe    = regexp.MustCompile(`(?i)\bOUTPUT\s*:[ \t]*(.*)`)
)

// ParseMeta extracts the directives of a meta-comment body.
func ParseMeta(text string) model.Meta {
	var m model.Meta
	if excludeRe.MatchString(text) {
		m.Directives |= model.Exclude
	}
	if multilineRe.MatchString(text) {
		m.Directives |= model.Multiline
	}
	if sub := outputRe.FindStringSubmatch(text); sub != nil {
		m.Output = strings.TrimSpace(sub[1])
	}
	return m
}

// dirOf is the directory an output path lives in. A path without an
// extension is a directory itself.
func dirOf(output string) string {
	if filepath.Ext(output) == "" {
		return output
	}
	return filepath.Dir(output)
}

// redirect is the target of a statement preceded by "OUTPUT: name".
func redirect(output, name, outfileType string) string {
	ext := filepath.Ext(output)
	base := output[:len(output)-len(ext)]
	if ext == "" {
		ext = outfileType
	}
	return filepath.Join(base, name+ext)
}
