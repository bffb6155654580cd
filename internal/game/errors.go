// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// Client-input and capacity errors. None of them mutate game state.
var (
	ErrNotYourTurn      = errors.New("it is not your turn")
	ErrIllegalCard      = errors.New("that card does not work on the current card")
	ErrCardNotHeld      = errors.New("card is not in your hand")
	ErrCapacityExceeded = errors.New("the table is full")
	ErrDeckExhausted    = errors.New("not enough cards left to draw")
	ErrGameOver         = errors.New("the game is over")
	ErrNotEnoughPlayers = errors.New("waiting for more players to join")
	ErrUnknownPlayer    = errors.New("player is not part of this game")
	ErrBadRequest       = errors.New("malformed request")

	// ErrColorRequired is an IllegalCard variant for wild cards played without a color.
	ErrColorRequired = fmt.Errorf("%w: a wild card needs a chosen color", ErrIllegalCard)

	// ErrInternal marks a broken invariant. The game refuses further mutations once it is seen.
	ErrInternal = errors.New("internal game error")
)

// Wire codes reported to clients.
const (
	CodeNotYourTurn      = "not_your_turn"
	CodeIllegalCard      = "illegal_card"
	CodeColorRequired    = "color_required"
	CodeCardNotHeld      = "card_not_held"
	CodeCapacityExceeded = "capacity_exceeded"
	CodeDeckExhausted    = "deck_exhausted"
	CodeGameOver         = "game_over"
	CodeNotEnoughPlayers = "not_enough_players"
	CodeUnknownPlayer    = "unknown_player"
	CodeBadRequest       = "bad_request"
	CodeInternal         = "internal"
)

// ErrorCode maps err onto the stable code sent to clients.
// ErrColorRequired is checked before ErrIllegalCard since it wraps it.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotYourTurn):
		return CodeNotYourTurn
	case errors.Is(err, ErrColorRequired):
		return CodeColorRequired
	case errors.Is(err, ErrIllegalCard):
		return CodeIllegalCard
	case errors.Is(err, ErrCardNotHeld):
		return CodeCardNotHeld
	case errors.Is(err, ErrCapacityExceeded):
		return CodeCapacityExceeded
	case errors.Is(err, ErrDeckExhausted):
		return CodeDeckExhausted
	case errors.Is(err, ErrGameOver):
		return CodeGameOver
	case errors.Is(err, ErrNotEnoughPlayers):
		return CodeNotEnoughPlayers
	case errors.Is(err, ErrUnknownPlayer):
		return CodeUnknownPlayer
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}

// Recoverable reports whether the client may simply retry after err.
func Recoverable(err error) bool {
	return err != nil && ErrorCode(err) != CodeInternal
}
