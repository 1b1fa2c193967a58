package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestApplyHeaderEmpty verifies that an empty document gets the header and
// an example group.
func TestApplyHeaderEmpty(t *testing.T) {
	t.Parallel()
	head := generateHeader("postgres", "1.0", "")
	got, changed := applyHeader("", head)
	if !changed {
		t.Fatal("expected change")
	}
	if !strings.HasPrefix(got, head) {
		t.Errorf("header should come first:\n%s", got)
	}
	if !strings.Contains(got, "STARTGROUP : example") {
		t.Error("missing example group")
	}
}

// TestApplyHeaderPrepend verifies that an existing body is preserved below
// the new header.
func TestApplyHeaderPrepend(t *testing.T) {
	t.Parallel()
	body := "SELECT 1;\n"
	head := generateHeader("postgres", "", "")
	got, changed := applyHeader(body, head)
	if !changed {
		t.Fatal("expected change")
	}
	if got != head+"\n"+body {
		t.Errorf("unexpected result:\n%s", got)
	}
}

// TestApplyHeaderExisting verifies that a document with ENDHEAD is untouched.
func TestApplyHeaderExisting(t *testing.T) {
	t.Parallel()
	existing := "-- dialect: base_sql\n-- EndHead ::\nSELECT 1;\n"
	got, changed := applyHeader(existing, generateHeader("postgres", "", ""))
	if changed {
		t.Error("document with a header should not change")
	}
	if got != existing {
		t.Errorf("content changed:\n%s", got)
	}
}

func TestGenerateHeader(t *testing.T) {
	t.Parallel()
	got := generateHeader("postgres", "0.2.0", "out/")
	want := "-- DIALECT : postgres\n-- VERSION : 0.2.0\n-- OUTPUT : out/\n-- ENDHEAD ::\n"
	if got != want {
		t.Errorf("generateHeader = %q, want %q", got, want)
	}
}

// TestInitCreatesFile verifies that runInit creates a document that converts.
func TestInitCreatesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "queries.sql")

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{"-output", filepath.Join(dir, "out"), path}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if !strings.Contains(string(data), "-- ENDHEAD ::") {
		t.Error("header terminator missing from created file")
	}

	stdout.Reset()
	if err := run([]string{"-q", path}, &stdout, &stderr); err != nil {
		t.Fatalf("run on generated document: %v\nstderr: %s", err, stderr.String())
	}
	out, err := os.ReadFile(filepath.Join(dir, "out", "default.json"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if !strings.Contains(string(out), `"get_example": "SELECT * FROM example WHERE id = $1"`) {
		t.Errorf("unexpected artifact:\n%s", out)
	}
}

// TestInitDryRun verifies that --dry-run prints the would-be file content and
// does not create the target file.
func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "queries.sql")

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{"--dry-run", path}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	if _, err := os.Stat(path); err == nil {
		t.Error("--dry-run should not create the file")
	}
	if !strings.Contains(stdout.String(), "-- DIALECT : postgres") {
		t.Errorf("dry-run output missing header:\n%s", stdout.String())
	}
}

// TestInitDryRunNoPath verifies that --dry-run without a path prints only the
// header.
func TestInitDryRunNoPath(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{"--dry-run", "-dialect", "base_sql"}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	want := generateHeader("base_sql", "0.0.1", "")
	if stdout.String() != want {
		t.Errorf("got %q, want %q", stdout.String(), want)
	}
}

// TestInitExistingHeader verifies that a document with a header is left alone.
func TestInitExistingHeader(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "queries.sql")
	original := "-- DIALECT : postgres\n-- ENDHEAD ::\nSELECT 1;\n"
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{path}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != original {
		t.Errorf("file modified:\n%s", data)
	}
	if !strings.Contains(stderr.String(), "already has a header") {
		t.Errorf("stderr: %q", stderr.String())
	}
}
