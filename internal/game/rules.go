// internal/game/rules.go
package game

import (
	"fmt"
	"time"
)

// HouseRules are the per-room tunables.
type HouseRules struct {
	NopeWindow     time.Duration `json:"nopeWindow"`     // how long a pending action stays open to nopes
	HandSize       int           `json:"handSize"`       // cards dealt per participant at round start
	SeeFutureCount int           `json:"seeFutureCount"` // cards revealed by see_future
	Deck           DeckSpec      `json:"deck"`
}

// DefaultHouseRules returns the standard rules: a 2s nope window, 5 card hands and
// the default 54 card deck.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		NopeWindow:     2 * time.Second,
		HandSize:       5,
		SeeFutureCount: 3,
		Deck:           DefaultDeckSpec(),
	}
}

// Validate checks that the rules can run a round.
func (r HouseRules) Validate() error {
	if r.NopeWindow <= 0 {
		return fmt.Errorf("nopeWindow must be positive, got %s", r.NopeWindow)
	}
	if r.HandSize < 0 {
		return fmt.Errorf("handSize must be non-negative, got %d", r.HandSize)
	}
	if r.SeeFutureCount < 1 {
		return fmt.Errorf("seeFutureCount must be at least 1, got %d", r.SeeFutureCount)
	}
	for c, n := range r.Deck {
		if !c.Valid() {
			return fmt.Errorf("deck contains unknown card %q", c)
		}
		if n < 0 {
			return fmt.Errorf("deck count for %s must be non-negative", c)
		}
	}
	return nil
}
