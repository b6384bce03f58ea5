// Package study runs one study session: it selects cards, routes answers
// through the review processor and hands every updated card to persistence.
package study

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolsched/internal/deck"
	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/review"
	"github.com/conorfennell/knolsched/internal/selector"
	"github.com/conorfennell/knolsched/internal/sm2"
)

// Repository persists session output. storage.DB implements it.
type Repository interface {
	SaveCard(c domain.Card) error
	InsertReview(r domain.ReviewLog) error
	SaveSession(s domain.SessionSummary) error
}

// CardLoader supplies previously persisted cards.
type CardLoader interface {
	LoadCards(group string) ([]domain.Card, error)
}

// LoadDeck builds a Store from persisted cards of a group ("" for all).
// Cards loaded for a group carry that group, even when another source first
// ingested them.
func LoadDeck(src CardLoader, group string) (*deck.Store, error) {
	cards, err := src.LoadCards(group)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	if group != "" {
		for i := range cards {
			cards[i].Group = group
		}
	}
	store := deck.New()
	if err := store.Add(cards...); err != nil {
		return nil, fmt.Errorf("failed to build deck: %w", err)
	}
	return store, nil
}

// Options configures a Session.
type Options struct {
	Group string
	// DueOnly restricts selection to cards the long-horizon schedule says are due.
	DueOnly  bool
	DueLimit int
	Now      func() time.Time
	Logger   *slog.Logger
}

// Stats is a snapshot of deck composition and session progress.
type Stats struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	Easy     int `json:"easy"`
	Medium   int `json:"medium"`
	Hard     int `json:"hard"`
	Due      int `json:"due"`
	Reviewed int `json:"reviewed"`
	Correct  int `json:"correct"`
	Wrong    int `json:"wrong"`
}

// Session is a single interactive study run. It is not safe for concurrent
// use; one answer is processed at a time.
type Session struct {
	store     *deck.Store
	selector  *selector.Selector
	processor *review.Processor
	repo      Repository
	opts      Options
	summary   domain.SessionSummary
}

// New starts a session. repo may be nil for a purely in-memory session;
// otherwise the session subscribes to proc and persists every review.
func New(store *deck.Store, sel *selector.Selector, proc *review.Processor, repo Repository, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Session{
		store:     store,
		selector:  sel,
		processor: proc,
		repo:      repo,
		opts:      opts,
		summary: domain.SessionSummary{
			ID:        uuid.NewString(),
			Group:     opts.Group,
			StartedAt: opts.Now(),
		},
	}
	s.opts.Logger = opts.Logger.With("session", s.summary.ID)
	if repo != nil {
		proc.Subscribe(s.persist)
	}
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.summary.ID }

// Next selects the next card to present.
func (s *Session) Next() (domain.Card, error) {
	if !s.opts.DueOnly {
		return s.selector.Next(s.store)
	}
	due := s.Due()
	if len(due) == 0 {
		return domain.Card{}, fmt.Errorf("nothing due: %w", domain.ErrEmptyStore)
	}
	return s.selector.Pick(due)
}

// Due lists the cards currently due, oldest first.
func (s *Session) Due() []domain.Card {
	q := sm2.DueQuery{Group: s.opts.Group, Limit: s.opts.DueLimit}
	return sm2.Due(s.store.All(), s.opts.Now(), q)
}

// Answer records the user's answer. With a Repository the resulting card
// state and review log are persisted before Answer returns.
func (s *Session) Answer(id string, correct bool, quality int) (review.Result, error) {
	res, err := s.processor.Apply(domain.ReviewOutcome{CardID: id, WasCorrect: correct, Quality: quality})
	if res.Card.ID == "" {
		return review.Result{}, err
	}

	s.summary.Reviewed++
	if correct {
		s.summary.Correct++
	} else {
		s.summary.Wrong++
	}
	return res, err
}

// persist writes one applied review through the Repository.
func (s *Session) persist(res review.Result) error {
	id := res.Card.ID
	if err := s.repo.SaveCard(res.Card); err != nil {
		return fmt.Errorf("failed to persist card %s: %w", id, err)
	}
	log := domain.ReviewLog{
		CardID:       id,
		SessionID:    s.summary.ID,
		WasCorrect:   res.Outcome.WasCorrect,
		Quality:      res.Outcome.Quality,
		IntervalDays: res.IntervalDays,
		Timestamp:    res.ReviewedAt,
	}
	if err := s.repo.InsertReview(log); err != nil {
		return fmt.Errorf("failed to persist review of %s: %w", id, err)
	}
	return nil
}

// Stats reports current deck composition and session counters.
func (s *Session) Stats() Stats {
	st := Stats{
		Reviewed: s.summary.Reviewed,
		Correct:  s.summary.Correct,
		Wrong:    s.summary.Wrong,
		Due:      len(sm2.Due(s.store.All(), s.opts.Now(), sm2.DueQuery{Group: s.opts.Group})),
	}
	for _, c := range s.store.All() {
		st.Total++
		switch c.Difficulty {
		case domain.New:
			st.New++
		case domain.Easy:
			st.Easy++
		case domain.Medium:
			st.Medium++
		case domain.Hard:
			st.Hard++
		}
	}
	return st
}

// Summary returns the session summary as it would be persisted.
func (s *Session) Summary() domain.SessionSummary {
	return s.summary
}

// Close stamps the end time and persists the session summary.
func (s *Session) Close() error {
	ended := s.opts.Now()
	s.summary.EndedAt = &ended
	s.opts.Logger.Info("study session finished",
		"reviewed", s.summary.Reviewed,
		"correct", s.summary.Correct,
		"wrong", s.summary.Wrong,
	)
	if s.repo == nil {
		return nil
	}
	return s.repo.SaveSession(s.summary)
}
