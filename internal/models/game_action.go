package models

// Move is a player's proposed play. ChosenColor is required iff Card is wild.
type Move struct {
	Card        Card  `json:"card"`
	ChosenColor Color `json:"color,omitempty"`
}
