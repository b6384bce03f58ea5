// Package deck holds the in-memory working set of cards for a study run.
package deck

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/knolsched/internal/domain"
)

var validate = validator.New()

// Store owns every Card in the working set. Order is insertion order.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	cards []*domain.Card
	index map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Add inserts cards supplied by ingestion or persistence. Loaded scheduling
// state that breaks an invariant is repaired rather than rejected.
func (s *Store) Add(cards ...domain.Card) error {
	for _, c := range cards {
		if err := validate.Struct(c); err != nil {
			return fmt.Errorf("invalid card %q: %w", c.ID, err)
		}
		if _, ok := s.index[c.ID]; ok {
			return fmt.Errorf("%w: %s", domain.ErrDuplicate, c.ID)
		}
		c = repair(c.Clone())
		s.index[c.ID] = len(s.cards)
		s.cards = append(s.cards, &c)
	}
	return nil
}

func repair(c domain.Card) domain.Card {
	if c.Weight <= 0 {
		c.Weight = domain.InitialWeight
	}
	if c.TimesCorrect < 0 {
		c.TimesCorrect = 0
	}
	if c.TimesWrong < 0 {
		c.TimesWrong = 0
	}
	if h := c.Horizon; h != nil {
		if h.EaseFactor < domain.MinEaseFactor {
			h.EaseFactor = domain.MinEaseFactor
		}
		if h.ReviewCount < 0 {
			h.ReviewCount = 0
		}
		if h.CorrectStreak < 0 {
			h.CorrectStreak = 0
		}
	}
	return c
}

// Len reports the number of cards.
func (s *Store) Len() int { return len(s.cards) }

// All returns a snapshot of every card in insertion order.
func (s *Store) All() []domain.Card {
	out := make([]domain.Card, len(s.cards))
	for i, c := range s.cards {
		out[i] = c.Clone()
	}
	return out
}

// Get returns a snapshot of the card with the given id.
func (s *Store) Get(id string) (domain.Card, error) {
	i, ok := s.index[id]
	if !ok {
		return domain.Card{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return s.cards[i].Clone(), nil
}

// Mutate applies fn to the stored card in place and returns the updated
// snapshot. It is the single write path and belongs to the review processor.
func (s *Store) Mutate(id string, fn func(c *domain.Card)) (domain.Card, error) {
	i, ok := s.index[id]
	if !ok {
		return domain.Card{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	fn(s.cards[i])
	return s.cards[i].Clone(), nil
}
