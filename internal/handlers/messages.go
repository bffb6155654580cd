// internal/handlers/messages.go
package handlers

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/models"
)

// Client message types.
const (
	MsgJoin  = "join"
	MsgPlay  = "play"
	MsgDraw  = "draw"
	MsgState = "state"
	MsgPing  = "ping"
)

// Server message types. MsgState doubles as the state push.
const (
	MsgJoined   = "joined"
	MsgDrawn    = "drawn"
	MsgError    = "error"
	MsgGameOver = "game_over"
	MsgPong     = "pong"
)

// ClientMessage is anything a client sends. Only the fields its Type needs are read.
type ClientMessage struct {
	Type  string       `json:"type"`
	Name  string       `json:"name,omitempty"`  // join
	Card  *models.Card `json:"card,omitempty"`  // play
	Color models.Color `json:"color,omitempty"` // play, wild cards only
}

// ServerMessage is anything the server sends.
type ServerMessage struct {
	Type      string         `json:"type"`
	PlayerID  *uuid.UUID     `json:"player_id,omitempty"`
	TurnIndex *int           `json:"turn_index,omitempty"`
	Hand      models.Deck    `json:"hand,omitempty"`
	Cards     models.Deck    `json:"cards,omitempty"`
	State     *game.Snapshot `json:"state,omitempty"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message,omitempty"`
	Winner    *uuid.UUID     `json:"winner,omitempty"`
}

func joinedMessage(res game.JoinResult) ServerMessage {
	id, turn := res.PlayerID, res.TurnIndex
	return ServerMessage{Type: MsgJoined, PlayerID: &id, TurnIndex: &turn, Hand: res.Hand}
}

func stateMessage(snap game.Snapshot) ServerMessage {
	return ServerMessage{Type: MsgState, State: &snap}
}

func drawnMessage(cards models.Deck) ServerMessage {
	return ServerMessage{Type: MsgDrawn, Cards: cards}
}

func gameOverMessage(winner uuid.UUID, snap game.Snapshot) ServerMessage {
	return ServerMessage{Type: MsgGameOver, Winner: &winner, State: &snap}
}

func pongMessage() ServerMessage {
	return ServerMessage{Type: MsgPong}
}

// errorMessage reports err with its stable code. Internal errors never leak their detail.
func errorMessage(err error) ServerMessage {
	code := game.ErrorCode(err)
	if errors.Is(err, ErrMalformedFrame) {
		code = game.CodeBadRequest
	}
	msg := err.Error()
	if code == game.CodeInternal {
		msg = "internal server error"
	}
	return ServerMessage{Type: MsgError, Code: code, Message: msg}
}
