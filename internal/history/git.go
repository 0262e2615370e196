// Package history retrieves prior revisions of model definitions from git.
// It supplies the "old" defining text when no materialized relation of the
// previous version exists.
package history

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// NotFoundError indicates the file does not exist at the requested revision.
type NotFoundError struct {
	Path     string
	Revision string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found at revision %s", e.Path, e.Revision)
}

// Repo reads historical file content from a git working copy.
type Repo struct {
	// Dir is the repository root (or any directory inside it).
	Dir string
}

// NewRepo creates a Repo rooted at dir.
func NewRepo(dir string) *Repo {
	return &Repo{Dir: dir}
}

// Show returns the content of path at the given revision, equivalent to
// `git show <revision>:<path>`. The path is made relative to the repository
// root, since git show addresses files that way.
func (r *Repo) Show(ctx context.Context, revision, path string) (string, error) {
	rel, err := r.relToRoot(ctx, path)
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", "show", revision+":"+rel)
	cmd.Dir = r.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if strings.Contains(msg, "does not exist") || strings.Contains(msg, "exists on disk, but not in") {
			return "", &NotFoundError{Path: rel, Revision: revision}
		}
		return "", fmt.Errorf("git show %s:%s failed: %v: %s", revision, rel, err, strings.TrimSpace(msg))
	}
	return stdout.String(), nil
}

// relToRoot converts path to a repo-root-relative, slash-separated path.
func (r *Repo) relToRoot(ctx context.Context, path string) (string, error) {
	root, err := r.root(ctx)
	if err != nil {
		return "", err
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.Dir, path)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path), nil
	}
	return filepath.ToSlash(rel), nil
}

// root resolves the repository top-level directory.
func (r *Repo) root(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = r.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("not a git repository: %s: %s", r.Dir, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
