package deck

import (
	"errors"
	"testing"

	"github.com/conorfennell/knolsched/internal/domain"
)

func TestStoreOrderAndLookup(t *testing.T) {
	s := New()
	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		if err := s.Add(domain.NewCard(id, "prompt "+id, "answer")); err != nil {
			t.Fatalf("Add(%s): %v", id, err)
		}
	}

	all := s.All()
	if len(all) != len(ids) {
		t.Fatalf("Expected %d cards, got %d", len(ids), len(all))
	}
	for i, c := range all {
		if c.ID != ids[i] {
			t.Errorf("Expected card %d to be %s, got %s", i, ids[i], c.ID)
		}
	}

	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Prompt != "prompt a" {
		t.Errorf("Expected prompt 'prompt a', got '%s'", got.Prompt)
	}
}

func TestStoreErrors(t *testing.T) {
	s := New()
	if err := s.Add(domain.NewCard("x", "Q", "A")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	t.Run("unknown id", func(t *testing.T) {
		if _, err := s.Get("missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if _, err := s.Mutate("missing", func(*domain.Card) {}); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected ErrNotFound from Mutate, got %v", err)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		if err := s.Add(domain.NewCard("x", "Q2", "A2")); !errors.Is(err, domain.ErrDuplicate) {
			t.Errorf("Expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("missing prompt", func(t *testing.T) {
		if err := s.Add(domain.Card{ID: "y"}); err == nil {
			t.Error("Expected a validation error for a card without a prompt")
		}
	})
}

func TestStoreRepairsLoadedState(t *testing.T) {
	s := New()
	c := domain.NewCard("bad", "Q", "A")
	c.Weight = 0
	c.TimesCorrect = -2
	c.Horizon = &domain.Horizon{EaseFactor: 0.9, ReviewCount: -1}
	if err := s.Add(c); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, _ := s.Get("bad")
	if got.Weight != domain.InitialWeight {
		t.Errorf("Expected weight reset to %.1f, got %.2f", domain.InitialWeight, got.Weight)
	}
	if got.TimesCorrect != 0 {
		t.Errorf("Expected times correct 0, got %d", got.TimesCorrect)
	}
	if got.Horizon.EaseFactor != domain.MinEaseFactor {
		t.Errorf("Expected ease floor, got %.2f", got.Horizon.EaseFactor)
	}
	if got.Horizon.ReviewCount != 0 {
		t.Errorf("Expected review count 0, got %d", got.Horizon.ReviewCount)
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := New()
	if err := s.Add(domain.NewCard("x", "Q", "A")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	snap := s.All()
	snap[0].Weight = 42

	got, _ := s.Get("x")
	if got.Weight != domain.InitialWeight {
		t.Errorf("Expected store to be unaffected by snapshot edits, weight=%.2f", got.Weight)
	}

	updated, err := s.Mutate("x", func(c *domain.Card) { c.Weight = 2.0 })
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if updated.Weight != 2.0 {
		t.Errorf("Expected mutated weight 2.0, got %.2f", updated.Weight)
	}
}
