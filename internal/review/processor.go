// Package review is the single entry point for recording recall outcomes.
// It keeps the session weighting and the long-horizon schedule of a card in
// step by updating both inside one store mutation.
package review

import (
	"log/slog"
	"time"

	"github.com/conorfennell/knolsched/internal/deck"
	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/selector"
	"github.com/conorfennell/knolsched/internal/sm2"
)

// Result describes one applied review.
type Result struct {
	Card       domain.Card
	Outcome    domain.ReviewOutcome
	ReviewedAt time.Time
	// IntervalDays is zero when long-horizon tracking is off.
	IntervalDays int
}

// Listener receives every applied review, e.g. for persistence. A listener
// error is returned from Apply; the in-memory update has already happened.
type Listener func(Result) error

// Processor applies review outcomes to cards held in a deck.Store.
type Processor struct {
	store       *deck.Store
	params      *sm2.Params
	longHorizon bool
	now         func() time.Time
	logger      *slog.Logger
	listeners   []Listener
}

// Option configures a Processor.
type Option func(*Processor)

// WithLongHorizon toggles ease-factor scheduling. It is on by default.
func WithLongHorizon(enabled bool) Option {
	return func(p *Processor) { p.longHorizon = enabled }
}

// WithParams sets the long-horizon parameters.
func WithParams(params *sm2.Params) Option {
	return func(p *Processor) { p.params = params }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// New returns a Processor over store.
func New(store *deck.Store, opts ...Option) *Processor {
	p := &Processor{
		store:       store,
		params:      sm2.DefaultParams(),
		longHorizon: true,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers l to be called after each applied review.
func (p *Processor) Subscribe(l Listener) {
	p.listeners = append(p.listeners, l)
}

// Record applies a review and returns the updated card snapshot.
func (p *Processor) Record(id string, correct bool, quality int) (domain.Card, error) {
	res, err := p.Apply(domain.ReviewOutcome{CardID: id, WasCorrect: correct, Quality: quality})
	if err != nil {
		return domain.Card{}, err
	}
	return res.Card, nil
}

// Apply applies outcome to its card and notifies listeners. Quality is
// clamped into [0,5]. It fails with domain.ErrNotFound for unknown ids, in
// which case the zero Result is returned.
func (p *Processor) Apply(outcome domain.ReviewOutcome) (Result, error) {
	outcome.Quality = domain.ClampQuality(outcome.Quality)
	now := p.now()

	var interval int
	card, err := p.store.Mutate(outcome.CardID, func(c *domain.Card) {
		selector.ApplyOutcome(c, outcome.WasCorrect, now)
		if !p.longHorizon {
			return
		}
		if c.Horizon == nil {
			c.Horizon = p.params.NewHorizon()
		}
		var h domain.Horizon
		h, interval = p.params.NextState(*c.Horizon, outcome.WasCorrect, outcome.Quality, now)
		c.Horizon = &h
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Card: card, Outcome: outcome, ReviewedAt: now, IntervalDays: interval}
	p.logger.Debug("review recorded",
		"card", card.ID,
		"correct", outcome.WasCorrect,
		"quality", outcome.Quality,
		"difficulty", card.Difficulty.String(),
		"weight", card.Weight,
		"interval_days", interval,
	)
	for _, l := range p.listeners {
		if err := l(res); err != nil {
			return res, err
		}
	}
	return res, nil
}
