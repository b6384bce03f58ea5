package gitsource

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// newUpstream creates a local repository with one committed markdown file.
func newUpstream(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cards.md"), []byte("Q: One\nA: 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if _, err := wt.Add("cards.md"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	hash, err := wt.Commit("add cards", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return dir, hash.String()
}

func TestHeadResolvesCommit(t *testing.T) {
	dir, commit := newUpstream(t)
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	got, err := head(repo, dir)
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if got != commit {
		t.Errorf("Expected HEAD %s, got %s", commit, got)
	}
}

func TestSyncPullWithoutRemoteFails(t *testing.T) {
	dir, _ := newUpstream(t)
	if _, err := Sync(Options{URL: "unused", Path: dir}); err == nil {
		t.Error("Expected an error pulling a repository that has no origin remote")
	}
}

func TestSyncRejectsNonRepository(t *testing.T) {
	dir := t.TempDir()
	if _, err := Sync(Options{URL: "unused", Path: dir}); err == nil {
		t.Error("Expected an error when the path exists but is not a repository")
	}
}
