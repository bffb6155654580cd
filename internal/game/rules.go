// internal/game/rules.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/uno/internal/models"
)

// Rules holds the table configuration fixed at server start.
type Rules struct {
	MaxPlayers int `json:"maxPlayers"` // seats available; joins beyond this fail with ErrCapacityExceeded
	MinPlayers int `json:"minPlayers"` // plays are refused until this many players joined
	HandSize   int `json:"handSize"`   // cards dealt on join
}

// DefaultRules mirrors the physical game: 2-10 players, 7 cards each.
func DefaultRules() Rules {
	return Rules{
		MaxPlayers: 10,
		MinPlayers: 2,
		HandSize:   7,
	}
}

// Validate makes sure the rules can be honored by a single deck.
func (r Rules) Validate() error {
	if r.MinPlayers < 2 {
		return fmt.Errorf("minPlayers must be at least 2, got %d", r.MinPlayers)
	}
	if r.MaxPlayers < r.MinPlayers {
		return fmt.Errorf("maxPlayers (%d) must not be below minPlayers (%d)", r.MaxPlayers, r.MinPlayers)
	}
	if r.HandSize < 1 {
		return fmt.Errorf("handSize must be positive, got %d", r.HandSize)
	}
	// one card is always the current card
	if r.MaxPlayers*r.HandSize > models.DeckSize-1 {
		return fmt.Errorf("%d players with %d cards each do not fit in a %d card deck", r.MaxPlayers, r.HandSize, models.DeckSize)
	}
	return nil
}

// CardPoints is the score value of a card left in a losing hand.
func CardPoints(c models.Card) int {
	switch {
	case c.Kind.IsNumber():
		return int(c.Kind)
	case c.IsWild():
		return 50
	default:
		return 20
	}
}
