// Package ingest reconciles configured card sources with the database.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/gitsource"
	"github.com/conorfennell/knolsched/internal/knol"
	"github.com/conorfennell/knolsched/internal/parser"
	"github.com/conorfennell/knolsched/internal/storage"
)

// Report summarizes one source reconciliation.
type Report struct {
	SourceID int64
	Parsed   int
	Inserted int
	// Orphaned counts cards this source no longer holds; Deleted counts
	// those that no other source held either.
	Orphaned int
	Deleted  int
	Errors   []error
}

// SourceType classifies a source path as git or local.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return storage.SourceGit
	}
	return storage.SourceLocal
}

// Run reconciles every configured source. Git sources are cloned or pulled
// under reposDir first. A failing source is logged and skipped.
func Run(db *storage.DB, reposDir string) ([]Report, error) {
	sources, err := db.GetAllSources()
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with: knolsched add-source <path/or/url.git>")
		return nil, nil
	}

	var reports []Report
	for _, source := range sources {
		slog.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		if source.Type == storage.SourceGit {
			local, err := GitURLToLocalPath(reposDir, source.Path)
			if err != nil {
				slog.Error("Error determining local path for git repo", "url", source.Path, "error", err)
				continue
			}
			head, err := gitsource.Sync(gitsource.Options{URL: source.Path, Path: local, Depth: 1})
			if err != nil {
				slog.Error("Error syncing git repo", "url", source.Path, "error", err)
				continue
			}
			slog.Info("Git source up to date", "url", source.Path, "head", head)
			source.Path = local
		}

		report, err := Reconcile(db, source)
		if err != nil {
			slog.Error("Error reconciling source", "id", source.ID, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	slog.Info("Sync process complete.", "sources", len(reports))
	return reports, nil
}

// Reconcile parses every markdown file under source.Path, inserts unseen
// cards, links cards already known from another source and releases cards
// the source no longer contains. A card is deleted only when no source holds
// it, so cards that still exist somewhere keep their scheduling state.
func Reconcile(db *storage.DB, source storage.Source) (Report, error) {
	report := Report{SourceID: source.ID}
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(source.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") && path != source.Path {
			return filepath.SkipDir
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		cards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, card := range cards {
			card.ID = knol.Hash(card)
			card.Group = source.Group
			card.CreatedAt = time.Now()
			report.Parsed++
			if found[card.ID] {
				continue
			}
			found[card.ID] = true

			_, findErr := db.FindCard(card.ID)
			if findErr == nil {
				if linkErr := db.LinkCard(card.ID, source.ID); linkErr != nil {
					report.Errors = append(report.Errors, linkErr)
				}
				continue
			}
			if !errors.Is(findErr, domain.ErrNotFound) {
				report.Errors = append(report.Errors, fmt.Errorf("db check for %s: %w", card.ID, findErr))
				continue
			}
			slog.Debug("New card found, inserting", "id", card.ID)
			if insertErr := db.InsertCard(card, source.ID); insertErr != nil {
				report.Errors = append(report.Errors, fmt.Errorf("db insert for %s: %w", card.ID, insertErr))
				continue
			}
			report.Inserted++
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking directory %s: %w", source.Path, walkErr)
	}

	ids, err := db.CardIDsBySource(source.ID)
	if err != nil {
		return report, fmt.Errorf("error getting cards for source %d: %w", source.ID, err)
	}
	for _, id := range ids {
		if found[id] {
			continue
		}
		deleted, err := db.ReleaseCard(id, source.ID)
		if err != nil {
			slog.Warn("Failed to release orphaned card", "id", id, "error", err)
			continue
		}
		slog.Info("Orphaned card released", "id", id, "deleted", deleted)
		report.Orphaned++
		if deleted {
			report.Deleted++
		}
	}

	if err := db.UpdateSourceLastScanned(source.ID, time.Now()); err != nil {
		slog.Warn("Failed to update last scanned for source", "source_id", source.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", source.Path,
		"parsed_cards", report.Parsed,
		"inserted", report.Inserted,
		"orphaned", report.Orphaned,
		"deleted", report.Deleted,
		"errors", len(report.Errors),
	)
	return report, nil
}

// GitURLToLocalPath maps an https or scp-style git URL to a directory under
// baseDir. URLs whose path would escape baseDir are rejected.
func GitURLToLocalPath(baseDir, repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != "" {
		return underBase(baseDir, repoURL, u.Host, strings.TrimSuffix(u.Path, ".git"))
	}

	if filepath.IsAbs(repoURL) {
		return underBase(baseDir, repoURL, "local", strings.TrimSuffix(filepath.Base(repoURL), ".git"))
	}

	// git@host:owner/repo.git
	userHost, repoPath, ok := strings.Cut(repoURL, ":")
	if ok {
		if _, host, ok := strings.Cut(userHost, "@"); ok && host != "" && repoPath != "" {
			return underBase(baseDir, repoURL, host, strings.TrimSuffix(repoPath, ".git"))
		}
	}
	return "", errors.New("could not parse git URL: " + repoURL)
}

// underBase joins parts below baseDir and fails unless the result is a
// directory strictly inside it.
func underBase(baseDir, repoURL string, parts ...string) (string, error) {
	path := filepath.Join(append([]string{baseDir}, parts...)...)
	rel, err := filepath.Rel(baseDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("git URL %s resolves outside %s", repoURL, baseDir)
	}
	return path, nil
}
