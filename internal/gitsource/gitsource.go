// Package gitsource keeps a local checkout of a git card source up to date.
package gitsource

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Options describes one repository checkout.
type Options struct {
	URL    string
	Path   string
	Branch string // empty means the remote HEAD
	Depth  int    // zero means full history
	// Progress receives git progress output; nil discards it.
	Progress io.Writer
}

// Sync clones the repository into Path if it is absent, or pulls the latest
// changes if it is present. It returns the checked-out HEAD commit hash.
func Sync(opts Options) (string, error) {
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}

	_, err := os.Stat(opts.Path)
	switch {
	case os.IsNotExist(err):
		return clone(opts)
	case err != nil:
		return "", fmt.Errorf("error checking path %s: %w", opts.Path, err)
	}
	return pull(opts)
}

func clone(opts Options) (string, error) {
	slog.Info("Cloning repository", "url", opts.URL, "path", opts.Path)
	co := &git.CloneOptions{
		URL:      opts.URL,
		Depth:    opts.Depth,
		Progress: opts.Progress,
	}
	if opts.Branch != "" {
		co.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
		co.SingleBranch = true
	}
	repo, err := git.PlainClone(opts.Path, false, co)
	if err != nil {
		return "", fmt.Errorf("failed to clone repo %s: %w", opts.URL, err)
	}
	return head(repo, opts.Path)
}

func pull(opts Options) (string, error) {
	repo, err := git.PlainOpen(opts.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open existing repo at %s: %w", opts.Path, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree for repo at %s: %w", opts.Path, err)
	}

	po := &git.PullOptions{
		RemoteName: git.DefaultRemoteName,
		Depth:      opts.Depth,
		Progress:   opts.Progress,
	}
	if opts.Branch != "" {
		po.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
		po.SingleBranch = true
	}
	err = worktree.Pull(po)
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		slog.Debug("Repository already up to date", "path", opts.Path)
	case err != nil:
		return "", fmt.Errorf("failed to pull changes for repo at %s: %w", opts.Path, err)
	}
	return head(repo, opts.Path)
}

func head(repo *git.Repository, path string) (string, error) {
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD at %s: %w", path, err)
	}
	return ref.Hash().String(), nil
}
