// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
)

// PlayerView is one seat as seen in a snapshot. Hand is only filled in for the recipient.
type PlayerView struct {
	PlayerID      uuid.UUID   `json:"player_id"`
	Name          string      `json:"name"`
	TurnIndex     int         `json:"turn_index"`
	HandSize      int         `json:"hand_size"`
	Connected     bool        `json:"connected"`
	IsCurrentTurn bool        `json:"is_current_turn"`
	Hand          models.Deck `json:"hand,omitempty"`
}

// Snapshot is a read-only copy of the game. It never aliases live state.
type Snapshot struct {
	GameID       uuid.UUID    `json:"game_id"`
	CurrentCard  models.Card  `json:"current_card"`
	ActiveColor  models.Color `json:"active_color"`
	ActiveTurn   int          `json:"active_turn"`
	Direction    int          `json:"direction"`
	DrawPileSize int          `json:"draw_pile_size"`
	DiscardSize  int          `json:"discard_size"`
	Players      []PlayerView `json:"players"`
	GameOver     bool         `json:"game_over"`
	Winner       uuid.UUID    `json:"winner"`
}

// Snapshot copies the whole game, every hand included. Filter it with For before sending it anywhere.
func (g *UnoGame) Snapshot() Snapshot {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	snap := Snapshot{
		GameID:       g.ID,
		CurrentCard:  g.CurrentCard,
		ActiveColor:  g.ActiveColor,
		ActiveTurn:   g.ActiveTurn,
		Direction:    g.Direction,
		DrawPileSize: len(g.DrawPile),
		DiscardSize:  len(g.DiscardPile),
		Players:      make([]PlayerView, 0, len(g.Players)),
		GameOver:     g.GameOver,
		Winner:       g.Winner,
	}
	for i, p := range g.Players {
		snap.Players = append(snap.Players, PlayerView{
			PlayerID:      p.ID,
			Name:          p.Name,
			TurnIndex:     p.TurnIndex,
			HandSize:      len(p.Hand),
			Connected:     p.Connected,
			IsCurrentTurn: i == g.ActiveTurn,
			Hand:          p.Hand.Clone(),
		})
	}
	return snap
}

// For returns the snapshot as recipient may see it: their own cards, everyone else's hand size.
func (s Snapshot) For(recipient uuid.UUID) Snapshot {
	out := s
	out.Players = make([]PlayerView, len(s.Players))
	for i, p := range s.Players {
		if p.PlayerID != recipient {
			p.Hand = nil
		} else {
			p.Hand = p.Hand.Clone()
		}
		out.Players[i] = p
	}
	return out
}

// Player returns the view of playerID, if present.
func (s Snapshot) Player(playerID uuid.UUID) (PlayerView, bool) {
	for _, p := range s.Players {
		if p.PlayerID == playerID {
			return p, true
		}
	}
	return PlayerView{}, false
}
