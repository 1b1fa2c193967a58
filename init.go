package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var endHeadRe = regexp.MustCompile(`(?im)^\s*--\s*endhead\s*:`)

// runInit implements the `sqlconv init` subcommand, which writes a header
// block at the top of an annotated SQL document.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sqlconv init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		dryRun  bool
		dialect string
		ver     string
		output  string
	)
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	fs.StringVar(&dialect, "dialect", "postgres", "value of the DIALECT field")
	fs.StringVar(&ver, "version", "0.0.1", "value of the VERSION field")
	fs.StringVar(&output, "output", "", "value of the OUTPUT field (omitted when empty)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: sqlconv init [flags] [path-to-document.sql]

Write a header block to an annotated SQL document. A document that already
ends its header with ENDHEAD is left untouched. Creates the file, with an
example group, if it does not exist.

path-to-document.sql defaults to ./queries.sql.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	head := generateHeader(dialect, ver, output)

	// --dry-run with no path: just print the header itself.
	if dryRun && fs.NArg() == 0 {
		_, _ = fmt.Fprint(stdout, head)
		return nil
	}

	path := "queries.sql"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	existing, _ := os.ReadFile(path)
	updated, changed := applyHeader(string(existing), head)
	if !changed {
		_, _ = fmt.Fprintf(stderr, "%s already has a header\n", path)
		return nil
	}

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote header to %s\n", path)
	return nil
}

// generateHeader returns the header block, ENDHEAD line included.
func generateHeader(dialect, ver, output string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- DIALECT : %s\n", dialect)
	if ver != "" {
		fmt.Fprintf(&b, "-- VERSION : %s\n", ver)
	}
	if output != "" {
		fmt.Fprintf(&b, "-- OUTPUT : %s\n", output)
	}
	b.WriteString("-- ENDHEAD ::\n")
	return b.String()
}

const exampleBody = `/* STARTGROUP : example */
PREPARE get_example (int) AS
    SELECT * FROM example WHERE id = $1;
/* ENDGROUP : example */
`

// applyHeader puts head at the top of content unless content already has
// a header terminator. An empty document also gets an example group. It is
// a pure function for easy testing.
func applyHeader(content, head string) (string, bool) {
	if endHeadRe.MatchString(content) {
		return content, false
	}
	if strings.TrimSpace(content) == "" {
		return head + "\n" + exampleBody, true
	}
	return head + "\n" + content, true
}
