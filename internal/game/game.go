// internal/game/game.go
package game

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

// maxNameLength bounds player names accepted on join.
const maxNameLength = 32

// Action types written to the action log.
const (
	ActionPlayerJoin       = "player_join"
	ActionPlayerDraw       = "player_draw"
	ActionPlayerPlay       = "player_play"
	ActionPlayerPass       = "player_draw_pass"
	ActionForcedDraw       = "player_forced_draw"
	ActionPlayerDisconnect = "player_disconnect"
	ActionReshuffle        = "game_reshuffle_discard"
	ActionGameEnd          = "game_end"
)

// OnGameEndFunc receives the final result. It runs on its own goroutine, never under the game lock.
type OnGameEndFunc func(result Result)

// Result is the final outcome of a game.
type Result struct {
	GameID  uuid.UUID
	Winner  uuid.UUID
	Players []PlayerResult
}

// PlayerResult is one seat's final standing. Score is the point value of the cards left in hand.
type PlayerResult struct {
	PlayerID  uuid.UUID
	Name      string
	TurnIndex int
	CardsLeft int
	Score     int
}

// JoinResult is what a newly seated player is told.
type JoinResult struct {
	PlayerID  uuid.UUID
	TurnIndex int
	Hand      models.Deck
}

// Outcome describes a committed play.
type Outcome struct {
	Card         models.Card
	ActiveColor  models.Color
	ForcedPlayer uuid.UUID // uuid.Nil when nobody was forced to draw
	ForcedCards  models.Deck
	NextPlayer   uuid.UUID
	GameOver     bool
	Winner       uuid.UUID
}

// UnoGame holds the entire state for the single game a server hosts.
// Every exported method takes Mu for its full duration and never blocks on I/O while holding it.
type UnoGame struct {
	ID    uuid.UUID
	Rules Rules

	Players     []*models.Player
	DrawPile    models.Deck
	DiscardPile models.Deck
	CurrentCard models.Card
	ActiveColor models.Color // effective color of CurrentCard; differs only for wild cards

	ActiveTurn int
	Direction  int

	GameOver bool
	Winner   uuid.UUID

	Mu sync.Mutex

	// ActionSink receives every action record. It is called with Mu held and must not block.
	ActionSink func(rec cache.GameActionRecord)

	// OnGameEnd is invoked once when a player empties their hand.
	OnGameEnd OnGameEndFunc

	log         logrus.FieldLogger
	actionIndex int
	corrupted   error
}

// NewUnoGame builds a game with a freshly shuffled deck and the first card turned up.
func NewUnoGame(rules Rules, log logrus.FieldLogger) *UnoGame {
	return NewUnoGameFromDeck(rules, models.BuildFullDeck(), log)
}

// NewUnoGameFromDeck builds a game dealing from deck in order. The first card becomes the current card.
func NewUnoGameFromDeck(rules Rules, deck models.Deck, log logrus.FieldLogger) *UnoGame {
	if log == nil {
		log = logrus.StandardLogger()
	}
	id, _ := uuid.NewRandom()
	g := &UnoGame{
		ID:          id,
		Rules:       rules,
		Players:     []*models.Player{},
		DrawPile:    deck.Clone(),
		DiscardPile: models.Deck{},
		Direction:   1,
		log:         log.WithField("game", id),
	}
	if len(g.DrawPile) > 0 {
		g.CurrentCard = g.DrawPile[0]
		g.DrawPile = g.DrawPile[1:]
		g.ActiveColor = g.CurrentCard.Color
	}
	g.log.Infof("Initialized deck with %d cards, current card %v.", len(g.DrawPile), g.CurrentCard)
	return g
}

// AddPlayer seats a new player with an empty hand at the next turn index.
func (g *UnoGame) AddPlayer(name string) (uuid.UUID, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p, err := g.addPlayerLocked(name)
	if err != nil {
		return uuid.Nil, err
	}
	g.seatLocked(p)
	return p.ID, nil
}

// Join seats a player and deals them a starting hand in one critical section.
// If the deal fails the seat is released again.
func (g *UnoGame) Join(name string) (JoinResult, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p, err := g.addPlayerLocked(name)
	if err != nil {
		return JoinResult{}, err
	}
	hand, err := g.drawLocked(p, g.Rules.HandSize)
	if err != nil {
		g.Players = g.Players[:len(g.Players)-1]
		g.log.WithError(err).Warnf("Could not deal a hand to %q, seat released.", name)
		return JoinResult{}, err
	}
	g.seatLocked(p)
	if err := g.verifyLocked(); err != nil {
		return JoinResult{}, err
	}
	return JoinResult{PlayerID: p.ID, TurnIndex: p.TurnIndex, Hand: hand.Clone()}, nil
}

// addPlayerLocked assigns the turn index inside the same critical section that registers the player.
// Assumes lock is held.
func (g *UnoGame) addPlayerLocked(name string) (*models.Player, error) {
	if g.corrupted != nil {
		return nil, g.corrupted
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: name must be 1-%d characters", ErrBadRequest, maxNameLength)
	}
	if g.GameOver {
		return nil, ErrGameOver
	}
	if len(g.Players) >= g.Rules.MaxPlayers {
		return nil, ErrCapacityExceeded
	}
	p, err := models.NewPlayer(name, len(g.Players))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	g.Players = append(g.Players, p)
	return p, nil
}

// seatLocked commits a seat added by addPlayerLocked. If the turn is parked on a
// disconnected seat it moves to the next connected one, which may be the newcomer.
// Assumes lock is held.
func (g *UnoGame) seatLocked(p *models.Player) {
	g.log.WithField("player", p.ID).Infof("Player %q joined at turn index %d.", p.Name, p.TurnIndex)
	g.logAction(p.ID, ActionPlayerJoin, map[string]interface{}{"name": p.Name, "turn_index": p.TurnIndex})

	if g.GameOver || g.Players[g.ActiveTurn].Connected {
		return
	}
	view := g.turnViewLocked()
	g.ActiveTurn = nextConnected(view.Connected, wrap(g.ActiveTurn+g.Direction, len(g.Players)), g.Direction)
	g.log.Infof("Turn moves off a disconnected seat to %q.", g.Players[g.ActiveTurn].Name)
}

// DrawCards moves n cards from the draw pile into the player's hand and returns them.
func (g *UnoGame) DrawCards(playerID uuid.UUID, n int) (models.Deck, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.corrupted != nil {
		return nil, g.corrupted
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: cannot draw %d cards", ErrBadRequest, n)
	}
	p, _ := g.getPlayerByID(playerID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	drawn, err := g.drawLocked(p, n)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		g.logAction(playerID, ActionPlayerDraw, map[string]interface{}{"count": n})
	}
	if err := g.verifyLocked(); err != nil {
		return nil, err
	}
	return drawn.Clone(), nil
}

// drawLocked pops n cards off the draw pile into p's hand, reshuffling the discard pile
// back in when the draw pile runs short. Nothing changes when there are not enough cards.
// Assumes lock is held.
func (g *UnoGame) drawLocked(p *models.Player, n int) (models.Deck, error) {
	if n == 0 {
		return models.Deck{}, nil
	}
	if len(g.DrawPile) < n {
		if len(g.DrawPile)+len(g.DiscardPile) < n {
			g.log.Warnf("Cannot draw %d cards: %d in draw pile, %d in discard pile.", n, len(g.DrawPile), len(g.DiscardPile))
			return nil, ErrDeckExhausted
		}
		g.replenishLocked()
	}

	drawn := g.DrawPile[:n].Clone()
	g.DrawPile = g.DrawPile[n:]
	p.Hand = append(p.Hand, drawn...)
	return drawn, nil
}

// replenishLocked shuffles the discard pile and puts it under the draw pile.
// The current card stays where it is.
// Assumes lock is held.
func (g *UnoGame) replenishLocked() {
	g.log.Infof("Draw pile low (%d). Reshuffling %d card(s) from discard pile.", len(g.DrawPile), len(g.DiscardPile))
	stock := g.DiscardPile
	models.Reshuffle(stock)
	g.DrawPile = append(g.DrawPile.Clone(), stock...)
	g.DiscardPile = models.Deck{}
	g.logAction(uuid.Nil, ActionReshuffle, map[string]interface{}{"newSize": len(g.DrawPile)})
}

// Play validates a move and, if it is legal, commits it. Validation and commit happen
// under one lock acquisition so no other play can slip in between.
func (g *UnoGame) Play(playerID uuid.UUID, move models.Move) (Outcome, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.corrupted != nil {
		return Outcome{}, g.corrupted
	}
	p, seat := g.getPlayerByID(playerID)
	if p == nil {
		return Outcome{}, ErrUnknownPlayer
	}

	plan, err := Decide(g.turnViewLocked(), seat, len(p.Hand), move)
	if err != nil {
		return Outcome{}, err
	}
	idx := p.Hand.Index(move.Card)
	if idx < 0 {
		return Outcome{}, ErrCardNotHeld
	}
	// the old current card joins the discard pile before any forced draw happens
	if plan.ForcedDraw > len(g.DrawPile)+len(g.DiscardPile)+1 {
		return Outcome{}, ErrDeckExhausted
	}

	p.Hand = p.Hand.Without(idx)
	g.DiscardPile = append(g.DiscardPile, g.CurrentCard)
	g.CurrentCard = move.Card
	g.ActiveColor = plan.ActiveColor
	g.logAction(playerID, ActionPlayerPlay, map[string]interface{}{
		"card":  move.Card.String(),
		"color": plan.ActiveColor.String(),
	})

	out := Outcome{Card: move.Card, ActiveColor: plan.ActiveColor}
	if plan.EndsGame {
		g.endGameLocked(p)
		out.GameOver = true
		out.Winner = p.ID
		return out, g.verifyLocked()
	}

	g.Direction = plan.Direction
	if plan.ForcedDraw > 0 {
		target := g.Players[plan.ForcedSeat]
		forced, err := g.drawLocked(target, plan.ForcedDraw)
		if err != nil {
			// checked above, so this means the piles are not what we think they are
			return Outcome{}, g.corruptLocked(fmt.Errorf("forced draw failed after capacity check: %w", err))
		}
		out.ForcedPlayer = target.ID
		out.ForcedCards = forced.Clone()
		g.logAction(target.ID, ActionForcedDraw, map[string]interface{}{"count": plan.ForcedDraw})
	}
	g.ActiveTurn = plan.NextTurn
	out.NextPlayer = g.Players[g.ActiveTurn].ID

	return out, g.verifyLocked()
}

// DrawAndPass lets the active player take one card instead of playing; the turn then moves on.
func (g *UnoGame) DrawAndPass(playerID uuid.UUID) (models.Deck, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.corrupted != nil {
		return nil, g.corrupted
	}
	p, seat := g.getPlayerByID(playerID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	plan, err := DecidePass(g.turnViewLocked(), seat)
	if err != nil {
		return nil, err
	}
	drawn, err := g.drawLocked(p, 1)
	if err != nil {
		return nil, err
	}
	g.ActiveTurn = plan.NextTurn
	g.logAction(playerID, ActionPlayerPass, nil)
	return drawn.Clone(), g.verifyLocked()
}

// HandleDisconnect marks a player as gone. Their seat and hand stay, and the turn skips them
// from now on. If it was their turn, the turn moves to the next connected player immediately.
func (g *UnoGame) HandleDisconnect(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p, seat := g.getPlayerByID(playerID)
	if p == nil {
		g.log.Warnf("Disconnected player %s not found in game.", playerID)
		return
	}
	if !p.Connected {
		return
	}
	p.Connected = false
	g.logAction(playerID, ActionPlayerDisconnect, nil)
	g.log.WithField("player", playerID).Infof("Player %q disconnected.", p.Name)

	if g.GameOver || seat != g.ActiveTurn {
		return
	}
	view := g.turnViewLocked()
	next := nextConnected(view.Connected, wrap(seat+g.Direction, len(g.Players)), g.Direction)
	if !view.Connected[next] {
		g.log.Warn("No connected players left, turn stays put.")
		return
	}
	g.ActiveTurn = next
	g.log.Infof("Current player left, turn passes to %q.", g.Players[next].Name)
}

// endGameLocked records the winner and hands the result to OnGameEnd.
// Assumes lock is held.
func (g *UnoGame) endGameLocked(winner *models.Player) {
	g.GameOver = true
	g.Winner = winner.ID

	result := Result{GameID: g.ID, Winner: winner.ID}
	scores := make(map[string]int, len(g.Players))
	for _, p := range g.Players {
		score := 0
		for _, c := range p.Hand {
			score += CardPoints(c)
		}
		scores[p.ID.String()] = score
		result.Players = append(result.Players, PlayerResult{
			PlayerID:  p.ID,
			Name:      p.Name,
			TurnIndex: p.TurnIndex,
			CardsLeft: len(p.Hand),
			Score:     score,
		})
	}
	g.logAction(winner.ID, ActionGameEnd, map[string]interface{}{"scores": scores})
	g.log.WithField("player", winner.ID).Infof("Game over, %q wins.", winner.Name)

	if g.OnGameEnd != nil {
		go g.OnGameEnd(result)
	}
}

// turnViewLocked copies what the turn coordinator needs.
// Assumes lock is held.
func (g *UnoGame) turnViewLocked() TurnView {
	connected := make([]bool, len(g.Players))
	for i, p := range g.Players {
		connected[i] = p.Connected
	}
	return TurnView{
		Current:    g.effectiveCardLocked(),
		ActiveTurn: g.ActiveTurn,
		Direction:  g.Direction,
		Connected:  connected,
		MinPlayers: g.Rules.MinPlayers,
		GameOver:   g.GameOver,
	}
}

// effectiveCardLocked is the current card with a nominated wild color applied.
// Assumes lock is held.
func (g *UnoGame) effectiveCardLocked() models.Card {
	return models.Card{Color: g.ActiveColor, Kind: g.CurrentCard.Kind}
}

// getPlayerByID returns the player and their seat, or nil and -1.
// Assumes lock is held.
func (g *UnoGame) getPlayerByID(playerID uuid.UUID) (*models.Player, int) {
	for i, p := range g.Players {
		if p.ID == playerID {
			return p, i
		}
	}
	return nil, -1
}

// VerifyConservation checks that no card was created, destroyed or duplicated.
func (g *UnoGame) VerifyConservation() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.verifyLocked()
}

// verifyLocked compares every pile against the standard composition. A mismatch
// poisons the game so later mutations fail with ErrInternal too.
// Assumes lock is held.
func (g *UnoGame) verifyLocked() error {
	if g.corrupted != nil {
		return g.corrupted
	}
	all := make(models.Deck, 0, models.DeckSize)
	all = append(all, g.DrawPile...)
	all = append(all, g.DiscardPile...)
	all = append(all, g.CurrentCard)
	for _, p := range g.Players {
		all = append(all, p.Hand...)
	}
	got := all.Composition()
	want := models.StandardComposition()
	if len(all) != models.DeckSize || len(got) != len(want) {
		return g.corruptLocked(fmt.Errorf("expected %d cards in play, found %d", models.DeckSize, len(all)))
	}
	for c, n := range want {
		if got[c] != n {
			return g.corruptLocked(fmt.Errorf("expected %d x %v, found %d", n, c, got[c]))
		}
	}
	return nil
}

// Assumes lock is held.
func (g *UnoGame) corruptLocked(err error) error {
	g.corrupted = fmt.Errorf("%w: %v", ErrInternal, err)
	g.log.WithError(err).Error("Game state invariant broken, refusing further changes.")
	return g.corrupted
}

// logAction hands an action record to the sink. Assumes lock is held.
func (g *UnoGame) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if g.ActionSink == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	g.ActionSink(cache.GameActionRecord{
		GameID:        g.ID,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	})
}
