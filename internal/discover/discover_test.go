package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDocuments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "queries.sql", "-- DIALECT : postgres")
	writeFile(t, dir, "users/accounts.sql", "-- DIALECT : postgres")
	// Not a document
	writeFile(t, dir, "readme.txt", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".scratch.sql", "secret")

	docs, err := Documents(dir, "")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}

	want := []string{"queries.sql", "users/accounts.sql"}
	if len(docs) != len(want) {
		t.Fatalf("expected %d documents, got %v", len(want), docs)
	}
	for i := range want {
		if docs[i] != want[i] {
			t.Errorf("document %d: got %q, want %q", i, docs[i], want[i])
		}
	}
}

func TestDocumentsSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.sql", "")
	writeFile(t, dir, "node_modules/pkg.sql", "")
	writeFile(t, dir, "vendor/dep.sql", "")
	writeFile(t, dir, ".hidden/secret.sql", "")

	docs, err := Documents(dir, "")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 1 || docs[0] != "main.sql" {
		t.Fatalf("expected [main.sql], got %v", docs)
	}
}

func TestDocumentsGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "generated/\nscratch_*.sql\n")
	writeFile(t, dir, "main.sql", "")
	writeFile(t, dir, "scratch_1.sql", "")
	writeFile(t, dir, "generated/out.sql", "")

	docs, err := Documents(dir, "")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 1 || docs[0] != "main.sql" {
		t.Fatalf("expected [main.sql], got %v", docs)
	}
}

func TestDocumentsPattern(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "api/users.sql", "")
	writeFile(t, dir, "api/admin/roles.sql", "")
	writeFile(t, dir, "migrations/001.sql", "")

	docs, err := Documents(dir, "api/**/*.sql")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	want := []string{"api/admin/roles.sql", "api/users.sql"}
	if len(docs) != len(want) {
		t.Fatalf("expected %v, got %v", want, docs)
	}
	for i := range want {
		if docs[i] != want[i] {
			t.Errorf("document %d: got %q, want %q", i, docs[i], want[i])
		}
	}
}

func TestDocumentsInvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := Documents(t.TempDir(), "[unclosed"); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestDocumentsSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.sql", "")

	// Create symlink
	err := os.Symlink(filepath.Join(dir, "real.sql"), filepath.Join(dir, "link.sql"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	docs, err := Documents(dir, "")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 1 || docs[0] != "real.sql" {
		t.Fatalf("expected [real.sql], got %v", docs)
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
