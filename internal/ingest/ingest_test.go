package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/storage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestReconcile(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "Q: One\nA: 1\n---\nQ: Two\nA: 2\n")
	writeFile(t, filepath.Join(dir, "nested", "b.md"), "- **Three**: the number 3\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "Q: ignored\nA: not markdown\n")
	writeFile(t, filepath.Join(dir, ".hidden", "c.md"), "Q: hidden\nA: skipped\n")

	id, err := db.InsertSource(dir, storage.SourceLocal, "numbers")
	if err != nil {
		t.Fatalf("InsertSource: %v", err)
	}
	source, err := db.FindSourceByPath(dir)
	if err != nil || source == nil {
		t.Fatalf("FindSourceByPath: %v", err)
	}

	report, err := Reconcile(db, *source)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Parsed != 3 || report.Inserted != 3 || report.Orphaned != 0 {
		t.Fatalf("Unexpected first report: %+v", report)
	}

	cards, err := db.LoadCards("numbers")
	if err != nil {
		t.Fatalf("LoadCards: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("Expected 3 cards in group, got %d", len(cards))
	}

	// Review state must survive a re-sync.
	var reviewed domain.Card
	for _, c := range cards {
		if c.Prompt == "One" {
			reviewed = c
		}
	}
	if reviewed.ID == "" {
		t.Fatal("Expected card 'One' to be ingested")
	}
	reviewed.Difficulty = domain.Hard
	reviewed.Weight = 2.0
	if err := db.SaveCard(reviewed); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	// Remove card "Two" from the source.
	writeFile(t, filepath.Join(dir, "a.md"), "Q: One\nA: 1\n")
	report, err = Reconcile(db, *source)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Inserted != 0 || report.Orphaned != 1 || report.Deleted != 1 {
		t.Errorf("Unexpected second report: %+v", report)
	}

	ids, _ := db.CardIDsBySource(id)
	if len(ids) != 2 {
		t.Errorf("Expected 2 cards after orphan removal, got %d", len(ids))
	}
	got, err := db.FindCard(reviewed.ID)
	if err != nil {
		t.Fatalf("FindCard: %v", err)
	}
	if got.Difficulty != domain.Hard || got.Weight != 2.0 {
		t.Error("Expected scheduling state to survive reconciliation")
	}
}

func TestReconcileSharedCard(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	dirA, dirB := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(dirA, "a.md"), "Q: Shared\nA: both\n")
	writeFile(t, filepath.Join(dirB, "b.md"), "Q: Shared\nA: both\n")

	var sources []storage.Source
	for _, src := range []struct{ path, group string }{{dirA, "ga"}, {dirB, "gb"}} {
		if _, err := db.InsertSource(src.path, storage.SourceLocal, src.group); err != nil {
			t.Fatalf("InsertSource: %v", err)
		}
		s, err := db.FindSourceByPath(src.path)
		if err != nil || s == nil {
			t.Fatalf("FindSourceByPath: %v", err)
		}
		sources = append(sources, *s)
		if _, err := Reconcile(db, *s); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
	}

	inB, err := db.LoadCards("gb")
	if err != nil {
		t.Fatalf("LoadCards: %v", err)
	}
	if len(inB) != 1 {
		t.Fatalf("Expected the shared card in the second source's group, got %d", len(inB))
	}
	card := inB[0]
	card.TimesCorrect = 3
	if err := db.SaveCard(card); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	// Dropping the card from the first source must not lose its state.
	if err := os.Remove(filepath.Join(dirA, "a.md")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	report, err := Reconcile(db, sources[0])
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Orphaned != 1 || report.Deleted != 0 {
		t.Errorf("Expected the card to be released but kept, got %+v", report)
	}
	report, err = Reconcile(db, sources[1])
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Inserted != 0 {
		t.Errorf("Expected no re-insert, got %+v", report)
	}

	got, err := db.FindCard(card.ID)
	if err != nil {
		t.Fatalf("FindCard: %v", err)
	}
	if got.TimesCorrect != 3 {
		t.Errorf("Expected scheduling state to survive, got times_correct=%d", got.TimesCorrect)
	}
	if inA, _ := db.LoadCards("ga"); len(inA) != 0 {
		t.Errorf("Expected group ga to be empty once its source dropped the card, got %d", len(inA))
	}

	// Once the last source drops it, the card goes.
	if err := os.Remove(filepath.Join(dirB, "b.md")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	report, err = Reconcile(db, sources[1])
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Deleted != 1 {
		t.Errorf("Expected the card to be deleted, got %+v", report)
	}
	if _, err := db.FindCard(card.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSourceType(t *testing.T) {
	testCases := map[string]string{
		"/home/me/notes":              storage.SourceLocal,
		"./cards":                     storage.SourceLocal,
		"git@github.com:me/notes.git": storage.SourceGit,
		"https://github.com/me/notes": storage.SourceGit,
		"/srv/mirrors/notes.git":      storage.SourceGit,
	}
	for path, want := range testCases {
		if got := SourceType(path); got != want {
			t.Errorf("SourceType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestGitURLToLocalPath(t *testing.T) {
	testCases := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://github.com/me/notes.git", filepath.Join("repos", "github.com", "me", "notes"), false},
		{"git@gitlab.com:team/cards.git", filepath.Join("repos", "gitlab.com", "team", "cards"), false},
		{"/srv/mirrors/notes.git", filepath.Join("repos", "local", "notes"), false},
		{"not a url", "", true},
		{"https://github.com/../../etc", "", true},
		{"https://evil.example/../../../tmp/x.git", "", true},
		{"git@github.com:../../outside.git", "", true},
		{"https://github.com/me/../notes.git", filepath.Join("repos", "github.com", "notes"), false},
	}
	for _, tc := range testCases {
		got, err := GitURLToLocalPath("repos", tc.url)
		if tc.wantErr {
			if err == nil {
				t.Errorf("GitURLToLocalPath(%q): expected error", tc.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("GitURLToLocalPath(%q): %v", tc.url, err)
			continue
		}
		if got != tc.want {
			t.Errorf("GitURLToLocalPath(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
