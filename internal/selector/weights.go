package selector

import (
	"time"

	"github.com/conorfennell/knolsched/internal/domain"
)

// Presentation weights. Promotion is quick and demotion is immediate.
const (
	EasyWeight     = 0.1
	MediumWeight   = 0.3
	LearningWeight = 0.5
	HardWeight     = 2.0
)

// ApplyOutcome updates the session-local counters, difficulty and weight of c.
func ApplyOutcome(c *domain.Card, correct bool, now time.Time) {
	seen := now
	c.LastSeen = &seen

	if !correct {
		c.TimesWrong++
		c.Difficulty = domain.Hard
		c.Weight = HardWeight
		if c.TimesCorrect > 0 {
			c.TimesCorrect--
		}
		return
	}

	c.TimesCorrect++
	switch {
	case c.TimesCorrect >= 3 && c.TimesWrong == 0:
		c.Difficulty = domain.Easy
		c.Weight = EasyWeight
	case c.TimesCorrect >= 2:
		c.Difficulty = domain.Medium
		c.Weight = MediumWeight
	default:
		c.Weight = LearningWeight
	}
}
