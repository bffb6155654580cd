// internal/game/turn.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/uno/internal/models"
)

// TurnView is the part of the game a move is judged against.
// It is a copy; deciding never touches live state.
type TurnView struct {
	Current    models.Card // effective current card, wild color already resolved
	ActiveTurn int
	Direction  int // +1 or -1
	Connected  []bool
	MinPlayers int
	GameOver   bool
}

// Players is the number of seats at the table.
func (v TurnView) Players() int {
	return len(v.Connected)
}

// Plan is the mutation a legal move results in.
type Plan struct {
	Card        models.Card
	ActiveColor models.Color
	Direction   int
	ForcedSeat  int // seat receiving ForcedDraw cards, -1 when none
	ForcedDraw  int
	NextTurn    int
	EndsGame    bool
}

// Decide validates a play from seat and works out what committing it does.
// handSize is the mover's hand size before the play.
func Decide(view TurnView, seat int, handSize int, move models.Move) (Plan, error) {
	if err := checkTurn(view, seat); err != nil {
		return Plan{}, err
	}

	card := move.Card
	if !card.Valid() {
		return Plan{}, fmt.Errorf("%w: %v is not a real card", ErrIllegalCard, card)
	}
	activeColor := card.Color
	if card.IsWild() {
		if !move.ChosenColor.Valid() {
			return Plan{}, ErrColorRequired
		}
		activeColor = move.ChosenColor
	} else if move.ChosenColor != models.ColorNone {
		return Plan{}, fmt.Errorf("%w: only wild cards take a chosen color", ErrIllegalCard)
	}
	if !models.Matches(view.Current, card) {
		return Plan{}, fmt.Errorf("%w: %v on %v", ErrIllegalCard, card, view.Current)
	}

	plan := Plan{
		Card:        card,
		ActiveColor: activeColor,
		Direction:   view.Direction,
		ForcedSeat:  -1,
		NextTurn:    view.ActiveTurn,
		EndsGame:    handSize == 1,
	}
	if plan.EndsGame {
		return plan, nil
	}

	n := view.Players()
	// the seat an action card lands on is the next connected one, never an absent seat
	next := nextConnected(view.Connected, wrap(seat+view.Direction, n), view.Direction)
	switch card.Kind {
	case models.Skip:
		plan.NextTurn = passOver(view.Connected, seat, next, view.Direction)
	case models.Reverse:
		plan.Direction = -view.Direction
		if connectedOthers(view.Connected, seat) <= 1 {
			plan.NextTurn = seat
		} else {
			plan.NextTurn = nextConnected(view.Connected, wrap(seat+plan.Direction, n), plan.Direction)
		}
	case models.DrawTwo, models.DrawFour:
		if next != seat {
			plan.ForcedSeat = next
			plan.ForcedDraw = 2
			if card.Kind == models.DrawFour {
				plan.ForcedDraw = 4
			}
		}
		plan.NextTurn = passOver(view.Connected, seat, next, view.Direction)
	default:
		plan.NextTurn = next
	}
	return plan, nil
}

// DecidePass validates a draw-and-pass from seat and returns where the turn goes.
func DecidePass(view TurnView, seat int) (Plan, error) {
	if err := checkTurn(view, seat); err != nil {
		return Plan{}, err
	}
	n := view.Players()
	return Plan{
		Direction:  view.Direction,
		ForcedSeat: -1,
		NextTurn:   nextConnected(view.Connected, wrap(seat+view.Direction, n), view.Direction),
	}, nil
}

func checkTurn(view TurnView, seat int) error {
	if view.GameOver {
		return ErrGameOver
	}
	if view.Players() < view.MinPlayers {
		return ErrNotEnoughPlayers
	}
	if seat != view.ActiveTurn {
		return ErrNotYourTurn
	}
	return nil
}

// nextConnected walks from seat in direction until it finds a connected player.
// If nobody is connected the turn stays on seat.
func nextConnected(connected []bool, seat, direction int) int {
	n := len(connected)
	for i := 0; i < n; i++ {
		candidate := wrap(seat+i*direction, n)
		if connected[candidate] {
			return candidate
		}
	}
	return seat
}

// passOver returns the connected seat after victim. When victim is the mover itself
// nobody else is connected and the turn stays.
func passOver(connected []bool, seat, victim, direction int) int {
	if victim == seat {
		return seat
	}
	return nextConnected(connected, wrap(victim+direction, len(connected)), direction)
}

// connectedOthers counts connected seats other than seat.
func connectedOthers(connected []bool, seat int) int {
	n := 0
	for i, c := range connected {
		if c && i != seat {
			n++
		}
	}
	return n
}

func wrap(i, n int) int {
	if n == 0 {
		return 0
	}
	return ((i % n) + n) % n
}
