// Package golden runs table-driven tests whose table lives on disk: every
// input file under a root directory is one case, and its expected outputs
// sit next to it as <input>.<extension> files.
package golden

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pmezard/go-difflib/difflib"
)

// Suite describes a directory of golden cases.
type Suite struct {
	// Root is the case directory, relative to the test's working directory.
	Root string
	// Pattern selects the input files under Root, e.g. "**/*.sql".
	Pattern string
	// Refresh names an environment variable holding a glob. Cases matching it
	// have their expected outputs rewritten instead of compared.
	Refresh string
	// Outputs are the expected files of each case. A missing file means the
	// output is expected to be empty.
	Outputs []string
	// Test runs one case and returns one result per entry of Outputs. name is
	// the slash-separated path of the input relative to Root.
	Test func(t *testing.T, name, text string) []string
}

// Run executes every case as a subtest.
func (s Suite) Run(t *testing.T) {
	t.Helper()
	if !doublestar.ValidatePattern(s.Pattern) {
		t.Fatalf("golden: invalid pattern %q", s.Pattern)
	}
	cases, err := doublestar.Glob(os.DirFS(s.Root), s.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		t.Fatalf("golden: listing %s: %v", s.Root, err)
	}
	if len(cases) == 0 {
		t.Fatalf("golden: no cases matching %q in %s", s.Pattern, s.Root)
	}

	var refresh string
	if s.Refresh != "" {
		refresh = os.Getenv(s.Refresh)
		if refresh != "" && !doublestar.ValidatePattern(refresh) {
			t.Fatalf("golden: invalid %s glob %q", s.Refresh, refresh)
		}
	}

	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			input := filepath.Join(s.Root, filepath.FromSlash(name))
			data, err := os.ReadFile(input)
			if err != nil {
				t.Fatalf("golden: reading %s: %v", input, err)
			}
			results := s.Test(t, name, string(data))
			if len(results) != len(s.Outputs) {
				t.Fatalf("golden: got %d results for %d outputs", len(results), len(s.Outputs))
			}

			rewrite, _ := doublestar.Match(refresh, name)
			for i, ext := range s.Outputs {
				path := fmt.Sprint(input, ".", ext)
				if rewrite {
					if err := write(path, results[i]); err != nil {
						t.Errorf("golden: %v", err)
					}
					continue
				}
				want, err := os.ReadFile(path)
				if err != nil && !errors.Is(err, fs.ErrNotExist) {
					t.Errorf("golden: reading %s: %v", path, err)
					continue
				}
				if d := Diff(string(want), results[i]); d != "" {
					t.Errorf("%s mismatch:\n%s", filepath.Base(path), d)
				}
			}
		})
	}
}

// write stores an expected output, removing the file when it is empty.
func write(path, content string) error {
	if content == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// Diff returns a unified diff from want to got, or "" when they are equal.
func Diff(want, got string) string {
	if want == got {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	if err != nil {
		return err.Error()
	}
	return strings.TrimRight(diff, "\n")
}
