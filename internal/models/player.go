package models

import (
	"github.com/google/uuid"
)

// Player is a seat at the table. TurnIndex is fixed at join time.
type Player struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	TurnIndex int       `json:"turn_index"`
	Hand      Deck      `json:"hand"`
	Connected bool      `json:"connected"`
}

func NewPlayer(name string, turnIndex int) (*Player, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	return &Player{
		ID:        id,
		Name:      name,
		TurnIndex: turnIndex,
		Hand:      Deck{},
		Connected: true,
	}, nil
}
