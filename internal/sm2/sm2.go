// Package sm2 computes calendar review dates with an ease-factor/interval
// model. It is independent of any single study session.
package sm2

import (
	"math"
	"sort"
	"time"

	"github.com/conorfennell/knolsched/internal/domain"
)

const (
	firstInterval  = 1 // days
	secondInterval = 6 // days
	lapsePenalty   = 0.2
	maxInterval    = 36500 // days
)

// Params holds the tunable parameters of the model.
type Params struct {
	InitialEaseFactor float64
}

// DefaultParams returns the classic starting ease of 2.5.
func DefaultParams() *Params {
	return &Params{InitialEaseFactor: domain.InitialEaseFactor}
}

// NewHorizon returns the state for a card entering long-horizon tracking.
func (p *Params) NewHorizon() *domain.Horizon {
	return domain.NewHorizon(p.InitialEaseFactor)
}

// NextState applies one review to h and returns the new state together with
// the interval in days that was used to set NextReview.
func (p *Params) NextState(h domain.Horizon, correct bool, quality int, now time.Time) (domain.Horizon, int) {
	var interval int
	if correct {
		h.CorrectStreak++
		h.EaseFactor = nextEase(h.EaseFactor, domain.ClampQuality(quality))
		interval = Interval(h.ReviewCount, h.EaseFactor)
	} else {
		h.CorrectStreak = 0
		h.EaseFactor = math.Max(domain.MinEaseFactor, h.EaseFactor-lapsePenalty)
		interval = firstInterval
	}

	next := now.AddDate(0, 0, interval)
	h.NextReview = &next
	h.ReviewCount++
	return h, interval
}

// nextEase is the SM-2 ease update: EF' = EF + (0.1 - (5-q)(0.08 + (5-q)0.02)).
func nextEase(ease float64, quality int) float64 {
	d := float64(domain.MaxQuality - quality)
	return math.Max(domain.MinEaseFactor, ease+(0.1-d*(0.08+d*0.02)))
}

// Interval returns the days until the next review after a correct answer,
// given the review count before this review.
func Interval(reviewCount int, ease float64) int {
	switch reviewCount {
	case 0:
		return firstInterval
	case 1:
		return secondInterval
	}
	days := math.Floor(secondInterval * math.Pow(ease, float64(reviewCount-1)))
	if days > maxInterval || math.IsNaN(days) {
		return maxInterval
	}
	return max(int(days), firstInterval)
}

// IsDue reports whether the card should be reviewed at now. Cards that have
// never been scheduled are always due.
func IsDue(c domain.Card, now time.Time) bool {
	if c.Horizon == nil || c.Horizon.NextReview == nil {
		return true
	}
	return !c.Horizon.NextReview.After(now)
}

// DueQuery narrows a due-card lookup. Zero values mean no filter.
type DueQuery struct {
	Group string
	Limit int
}

// Due returns the due cards oldest first (by CreatedAt, then input order).
func Due(cards []domain.Card, now time.Time, q DueQuery) []domain.Card {
	var due []domain.Card
	for _, c := range cards {
		if q.Group != "" && c.Group != q.Group {
			continue
		}
		if IsDue(c, now) {
			due = append(due, c)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if q.Limit > 0 && len(due) > q.Limit {
		due = due[:q.Limit]
	}
	return due
}
