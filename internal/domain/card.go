package domain

import (
	"fmt"
	"strings"
	"time"
)

// Session weights and long-horizon constants shared by the schedulers.
const (
	InitialWeight     = 1.0
	InitialEaseFactor = 2.5
	MinEaseFactor     = 1.3

	MinQuality = 0
	MaxQuality = 5
)

// Difficulty is the coarse session-local classification of a card.
type Difficulty int

const (
	New Difficulty = iota
	Easy
	Medium
	Hard
)

var difficultyNames = [...]string{"new", "easy", "medium", "hard"}

func (d Difficulty) String() string {
	if d < New || d > Hard {
		return fmt.Sprintf("difficulty(%d)", int(d))
	}
	return difficultyNames[d]
}

// ParseDifficulty is the inverse of Difficulty.String.
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range difficultyNames {
		if s == name {
			return Difficulty(i), nil
		}
	}
	return New, fmt.Errorf("unknown difficulty %q", s)
}

// Horizon is the long-horizon (ease factor / interval) state of a card.
// A nil NextReview means the card has never been scheduled and is due now.
type Horizon struct {
	EaseFactor    float64
	ReviewCount   int
	CorrectStreak int
	NextReview    *time.Time
}

// NewHorizon returns an unscheduled Horizon starting at the given ease factor.
func NewHorizon(ease float64) *Horizon {
	if ease < MinEaseFactor {
		ease = MinEaseFactor
	}
	return &Horizon{EaseFactor: ease}
}

// Card represents a single study item and its scheduling state.
type Card struct {
	ID       string `validate:"required"`
	Prompt   string `validate:"required"`
	Response string
	Context  string
	Group    string

	CreatedAt time.Time

	Difficulty   Difficulty `validate:"gte=0,lte=3"`
	Weight       float64
	TimesCorrect int
	TimesWrong   int
	LastSeen     *time.Time

	// Horizon is nil unless long-horizon tracking is enabled for the card.
	Horizon *Horizon
}

// NewCard returns a card in its initial scheduling state.
func NewCard(id, prompt, response string) Card {
	return Card{
		ID:         id,
		Prompt:     prompt,
		Response:   response,
		CreatedAt:  time.Now(),
		Difficulty: New,
		Weight:     InitialWeight,
	}
}

// Clone returns a deep copy so snapshots never alias store-owned state.
func (c Card) Clone() Card {
	if c.LastSeen != nil {
		t := *c.LastSeen
		c.LastSeen = &t
	}
	if c.Horizon != nil {
		h := *c.Horizon
		if h.NextReview != nil {
			t := *h.NextReview
			h.NextReview = &t
		}
		c.Horizon = &h
	}
	return c
}

// ReviewOutcome is a single recall result reported by the caller.
// WasCorrect and Quality are independent signals and may disagree.
type ReviewOutcome struct {
	CardID     string
	WasCorrect bool
	Quality    int
}

// ClampQuality forces q into [MinQuality, MaxQuality].
func ClampQuality(q int) int {
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}

// DefaultQuality is used when the presentation layer collects no quality score.
func DefaultQuality(correct bool) int {
	if correct {
		return 4
	}
	return 1
}

// ReviewLog records a single review event for a card.
type ReviewLog struct {
	CardID       string
	SessionID    string
	WasCorrect   bool
	Quality      int
	IntervalDays int
	Timestamp    time.Time
}

// SessionSummary is the persisted summary of one study run.
type SessionSummary struct {
	ID        string
	Group     string
	Reviewed  int
	Correct   int
	Wrong     int
	StartedAt time.Time
	EndedAt   *time.Time
}
