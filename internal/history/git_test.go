package history

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initTestRepo creates a git repository with one committed model file and
// returns its root. Tests skip when git is unavailable.
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v: %s", args, err, out)
		}
	}

	run("init", "--initial-branch=main")
	require := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	require(os.MkdirAll(filepath.Join(dir, "models"), 0o755))
	require(os.WriteFile(filepath.Join(dir, "models", "orders.sql"), []byte("SELECT id FROM raw_orders\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "add orders model")
	return dir
}

func TestShow(t *testing.T) {
	dir := initTestRepo(t)
	repo := NewRepo(dir)

	content, err := repo.Show(context.Background(), "main", "models/orders.sql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "SELECT id FROM raw_orders\n" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestShow_AbsolutePath(t *testing.T) {
	dir := initTestRepo(t)
	repo := NewRepo(dir)

	content, err := repo.Show(context.Background(), "main", filepath.Join(dir, "models", "orders.sql"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content == "" {
		t.Error("expected file content")
	}
}

func TestShow_MissingFileAtRevision(t *testing.T) {
	dir := initTestRepo(t)
	repo := NewRepo(dir)

	// On disk but never committed.
	path := filepath.Join(dir, "models", "fresh.sql")
	if err := os.WriteFile(path, []byte("SELECT 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := repo.Show(context.Background(), "main", "models/fresh.sql")
	if err == nil {
		t.Fatal("expected error for file missing at revision")
	}
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %T: %v", err, err)
	}
	if notFound.Revision != "main" {
		t.Errorf("unexpected revision in error: %+v", notFound)
	}
}

func TestShow_NotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	repo := NewRepo(t.TempDir())

	_, err := repo.Show(context.Background(), "main", "models/orders.sql")
	if err == nil {
		t.Fatal("expected error outside a repository")
	}
}
