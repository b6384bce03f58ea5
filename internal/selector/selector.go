// Package selector picks the next card to show within a study session using
// a recency- and difficulty-weighted random draw.
package selector

import (
	"math/rand"
	"time"

	"github.com/conorfennell/knolsched/internal/domain"
)

// Source is anything that can list the cards to draw from.
type Source interface {
	All() []domain.Card
}

// Selector draws cards with replacement. The rng is injectable so draws are
// reproducible under a fixed seed.
type Selector struct {
	rng *rand.Rand
	now func() time.Time
}

// New returns a Selector. A nil rng is seeded from the clock and a nil now
// defaults to time.Now.
func New(rng *rand.Rand, now func() time.Time) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Selector{rng: rng, now: now}
}

// Score is the unnormalized selection weight of a card at time now.
func Score(c domain.Card, now time.Time) float64 {
	score := c.Weight
	if c.LastSeen == nil {
		return score * 2
	}
	hours := now.Sub(*c.LastSeen).Hours()
	if hours > 1 {
		score *= 1 + hours/24
	}
	return score
}

// Next draws one card from every card in src.
func (s *Selector) Next(src Source) (domain.Card, error) {
	return s.Pick(src.All())
}

// Pick draws one card from cards with probability proportional to Score.
func (s *Selector) Pick(cards []domain.Card) (domain.Card, error) {
	if len(cards) == 0 {
		return domain.Card{}, domain.ErrEmptyStore
	}

	now := s.now()
	scores := make([]float64, len(cards))
	var total float64
	for i, c := range cards {
		scores[i] = Score(c, now)
		total += scores[i]
	}
	if total <= 0 {
		return cards[s.rng.Intn(len(cards))], nil
	}

	r := s.rng.Float64() * total
	for i, sc := range scores {
		r -= sc
		if r < 0 {
			return cards[i], nil
		}
	}
	// Float rounding can leave r at a hair above zero.
	return cards[len(cards)-1], nil
}
