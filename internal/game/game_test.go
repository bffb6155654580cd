// internal/game/game_test.go
package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stackedDeck puts front on top of an otherwise standard deck, keeping the composition intact.
func stackedDeck(t *testing.T, front ...models.Card) models.Deck {
	t.Helper()
	rest := models.NewOrderedDeck()
	for _, c := range front {
		i := rest.Index(c)
		require.GreaterOrEqual(t, i, 0, "deck has no spare %v", c)
		rest = rest.Without(i)
	}
	deck := make(models.Deck, 0, models.DeckSize)
	deck = append(deck, front...)
	return append(deck, rest...)
}

// hand lists the cards a seat must hold; setupTestGame pads it with filler.
func hand(cards ...models.Card) []models.Card {
	return cards
}

// fillerCards never match a red five, a blue five or a green three.
func fillerCards() []models.Card {
	var out []models.Card
	for _, color := range []models.Color{models.Yellow, models.Green} {
		for _, kind := range []models.Kind{models.One, models.Two, models.Four, models.Six, models.Seven, models.Eight, models.Nine} {
			out = append(out, card(color, kind), card(color, kind))
		}
	}
	return out
}

// setupTestGame deals the given hands, in join order, under current.
func setupTestGame(t *testing.T, rules Rules, current models.Card, hands ...[]models.Card) (*UnoGame, []uuid.UUID) {
	t.Helper()
	filler := fillerCards()
	front := []models.Card{current}
	dealt := make([][]models.Card, len(hands))
	for i, h := range hands {
		padded := append([]models.Card{}, h...)
		for len(padded) < rules.HandSize {
			require.NotEmpty(t, filler, "ran out of filler cards")
			padded = append(padded, filler[0])
			filler = filler[1:]
		}
		require.Len(t, padded, rules.HandSize)
		dealt[i] = padded
		front = append(front, padded...)
	}
	logger, _ := test.NewNullLogger()
	g := NewUnoGameFromDeck(rules, stackedDeck(t, front...), logger)

	ids := make([]uuid.UUID, len(hands))
	for i, h := range dealt {
		res, err := g.Join(fmt.Sprintf("player-%d", i))
		require.NoError(t, err)
		require.Equal(t, i, res.TurnIndex)
		require.Equal(t, models.Deck(h), res.Hand)
		ids[i] = res.PlayerID
	}
	require.NoError(t, g.VerifyConservation())
	return g, ids
}

func card(color models.Color, kind models.Kind) models.Card {
	return models.Card{Color: color, Kind: kind}
}

var (
	redFive    = card(models.Red, models.Five)
	blueFive   = card(models.Blue, models.Five)
	greenThree = card(models.Green, models.Three)
)

// TestTwoPlayerScenario walks through a kind match followed by an illegal card.
func TestTwoPlayerScenario(t *testing.T) {
	rules := DefaultRules()
	g, ids := setupTestGame(t, rules, redFive,
		hand(blueFive),
		hand(greenThree),
	)
	a, b := ids[0], ids[1]

	snap := g.Snapshot()
	require.Equal(t, redFive, snap.CurrentCard)
	require.Equal(t, 0, snap.ActiveTurn)
	for _, p := range snap.Players {
		assert.Equal(t, 7, p.HandSize)
	}

	out, err := g.Play(a, models.Move{Card: blueFive})
	require.NoError(t, err)
	assert.Equal(t, blueFive, out.Card)
	assert.Equal(t, b, out.NextPlayer)
	assert.False(t, out.GameOver)

	before := g.Snapshot()
	assert.Equal(t, blueFive, before.CurrentCard)
	assert.Equal(t, 1, before.ActiveTurn)

	_, err = g.Play(b, models.Move{Card: greenThree})
	require.ErrorIs(t, err, ErrIllegalCard)
	assert.Equal(t, CodeIllegalCard, ErrorCode(err))
	assert.Equal(t, before, g.Snapshot(), "illegal card must not change state")
	require.NoError(t, g.VerifyConservation())
}

func TestNotYourTurnLeavesStateUnchanged(t *testing.T) {
	rules := DefaultRules()
	g, ids := setupTestGame(t, rules, redFive,
		hand(blueFive),
		hand(card(models.Red, models.Nine)),
	)

	g.Mu.Lock()
	drawBefore := g.DrawPile.Clone()
	discardBefore := g.DiscardPile.Clone()
	g.Mu.Unlock()
	before := g.Snapshot()

	_, err := g.Play(ids[1], models.Move{Card: card(models.Red, models.Nine)})
	require.ErrorIs(t, err, ErrNotYourTurn)

	_, err = g.DrawAndPass(ids[1])
	require.ErrorIs(t, err, ErrNotYourTurn)

	assert.Equal(t, before, g.Snapshot())
	g.Mu.Lock()
	assert.Equal(t, drawBefore, g.DrawPile)
	assert.Equal(t, discardBefore, g.DiscardPile)
	g.Mu.Unlock()
}

func TestCardNotHeld(t *testing.T) {
	g, ids := setupTestGame(t, DefaultRules(), redFive,
		hand(blueFive),
		hand(),
	)
	before := g.Snapshot()
	_, err := g.Play(ids[0], models.Move{Card: card(models.Red, models.One)})
	require.ErrorIs(t, err, ErrCardNotHeld)
	assert.Equal(t, before, g.Snapshot())
}

func TestNotEnoughPlayers(t *testing.T) {
	rules := DefaultRules()
	g, ids := setupTestGame(t, rules, redFive, hand(blueFive))
	_, err := g.Play(ids[0], models.Move{Card: blueFive})
	require.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestUnknownPlayer(t *testing.T) {
	g, _ := setupTestGame(t, DefaultRules(), redFive, hand(), hand())
	_, err := g.Play(uuid.New(), models.Move{Card: blueFive})
	require.ErrorIs(t, err, ErrUnknownPlayer)
	_, err = g.DrawCards(uuid.New(), 1)
	require.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestSkipWithTwoPlayersReturnsToPlayer(t *testing.T) {
	redSkip := card(models.Red, models.Skip)
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(redSkip), hand())

	out, err := g.Play(ids[0], models.Move{Card: redSkip})
	require.NoError(t, err)
	assert.Equal(t, ids[0], out.NextPlayer)
	assert.Equal(t, 0, g.Snapshot().ActiveTurn)
}

func TestReverseWithTwoPlayersReturnsToPlayer(t *testing.T) {
	redReverse := card(models.Red, models.Reverse)
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(redReverse), hand())

	out, err := g.Play(ids[0], models.Move{Card: redReverse})
	require.NoError(t, err)
	assert.Equal(t, ids[0], out.NextPlayer)
	snap := g.Snapshot()
	assert.Equal(t, 0, snap.ActiveTurn)
	assert.Equal(t, -1, snap.Direction)
}

func TestReverseWithThreePlayers(t *testing.T) {
	redReverse := card(models.Red, models.Reverse)
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(redReverse), hand(), hand())

	out, err := g.Play(ids[0], models.Move{Card: redReverse})
	require.NoError(t, err)
	assert.Equal(t, ids[2], out.NextPlayer, "turn should wrap backwards to the last seat")
	assert.Equal(t, -1, g.Snapshot().Direction)
}

func TestSkipWithThreePlayers(t *testing.T) {
	redSkip := card(models.Red, models.Skip)
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(redSkip), hand(), hand())

	out, err := g.Play(ids[0], models.Move{Card: redSkip})
	require.NoError(t, err)
	assert.Equal(t, ids[2], out.NextPlayer)
}

func TestDrawTwoForcesNextPlayer(t *testing.T) {
	redDrawTwo := card(models.Red, models.DrawTwo)
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(redDrawTwo), hand(), hand())

	out, err := g.Play(ids[0], models.Move{Card: redDrawTwo})
	require.NoError(t, err)
	assert.Equal(t, ids[1], out.ForcedPlayer)
	assert.Len(t, out.ForcedCards, 2)
	assert.Equal(t, ids[2], out.NextPlayer)

	snap := g.Snapshot()
	b, _ := snap.Player(ids[1])
	assert.Equal(t, 9, b.HandSize)
	a, _ := snap.Player(ids[0])
	assert.Equal(t, 6, a.HandSize)
	require.NoError(t, g.VerifyConservation())
}

func TestDrawFourNeedsColor(t *testing.T) {
	drawFour := models.Card{Kind: models.DrawFour}
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(drawFour), hand(), hand())
	before := g.Snapshot()

	_, err := g.Play(ids[0], models.Move{Card: drawFour})
	require.ErrorIs(t, err, ErrColorRequired)
	require.ErrorIs(t, err, ErrIllegalCard)
	assert.Equal(t, CodeColorRequired, ErrorCode(err))
	assert.Equal(t, before, g.Snapshot())

	out, err := g.Play(ids[0], models.Move{Card: drawFour, ChosenColor: models.Green})
	require.NoError(t, err)
	assert.Equal(t, models.Green, out.ActiveColor)
	assert.Equal(t, ids[1], out.ForcedPlayer)
	assert.Len(t, out.ForcedCards, 4)
	assert.Equal(t, ids[2], out.NextPlayer)

	snap := g.Snapshot()
	assert.Equal(t, drawFour, snap.CurrentCard, "the physical card stays colorless")
	assert.Equal(t, models.Green, snap.ActiveColor)

	// green is now the color to follow
	_, err = g.Play(ids[2], models.Move{Card: card(models.Yellow, models.Eight)})
	require.ErrorIs(t, err, ErrIllegalCard)
}

func TestChosenColorOnPlainCard(t *testing.T) {
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(blueFive), hand())
	_, err := g.Play(ids[0], models.Move{Card: blueFive, ChosenColor: models.Red})
	require.ErrorIs(t, err, ErrIllegalCard)
}

func TestWildOnAnything(t *testing.T) {
	wild := models.Card{Kind: models.Wild}
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(wild), hand(card(models.Blue, models.Two)))

	out, err := g.Play(ids[0], models.Move{Card: wild, ChosenColor: models.Blue})
	require.NoError(t, err)
	assert.Equal(t, ids[1], out.NextPlayer)

	_, err = g.Play(ids[1], models.Move{Card: card(models.Blue, models.Two)})
	require.NoError(t, err)
}

func TestDrawCardsZeroIsNoop(t *testing.T) {
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(), hand())
	before := g.Snapshot()
	drawn, err := g.DrawCards(ids[0], 0)
	require.NoError(t, err)
	assert.Empty(t, drawn)
	assert.Equal(t, before, g.Snapshot())
}

func TestDrawCardsExhausted(t *testing.T) {
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(), hand())

	g.Mu.Lock()
	available := len(g.DrawPile) + len(g.DiscardPile)
	g.Mu.Unlock()
	before := g.Snapshot()

	_, err := g.DrawCards(ids[0], available+1)
	require.ErrorIs(t, err, ErrDeckExhausted)
	assert.Equal(t, CodeDeckExhausted, ErrorCode(err))
	assert.Equal(t, before, g.Snapshot())
	require.NoError(t, g.VerifyConservation())

	drawn, err := g.DrawCards(ids[0], available)
	require.NoError(t, err)
	assert.Len(t, drawn, available)
	assert.Equal(t, 0, g.Snapshot().DrawPileSize)
	require.NoError(t, g.VerifyConservation())
}

func TestDrawReplenishesFromDiscard(t *testing.T) {
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(), hand())

	// move most of the draw pile onto the discard pile
	g.Mu.Lock()
	g.DiscardPile = append(g.DiscardPile, g.DrawPile[3:].Clone()...)
	g.DrawPile = g.DrawPile[:3].Clone()
	discarded := len(g.DiscardPile)
	current := g.CurrentCard
	g.Mu.Unlock()
	require.NoError(t, g.VerifyConservation())

	drawn, err := g.DrawCards(ids[1], 10)
	require.NoError(t, err)
	assert.Len(t, drawn, 10)

	snap := g.Snapshot()
	assert.Equal(t, 0, snap.DiscardSize)
	assert.Equal(t, 3+discarded-10, snap.DrawPileSize)
	assert.Equal(t, current, snap.CurrentCard, "current card never goes back into the draw pile")
	require.NoError(t, g.VerifyConservation())
}

func TestCapacityExceeded(t *testing.T) {
	rules := Rules{MaxPlayers: 2, MinPlayers: 2, HandSize: 7}
	g, _ := setupTestGame(t, rules, redFive, hand(), hand())

	_, err := g.Join("late")
	require.ErrorIs(t, err, ErrCapacityExceeded)
	_, err = g.AddPlayer("later")
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Len(t, g.Snapshot().Players, 2)
}

func TestJoinRejectsBadName(t *testing.T) {
	g := NewUnoGame(DefaultRules(), nil)
	_, err := g.Join("   ")
	require.ErrorIs(t, err, ErrBadRequest)
	assert.Empty(t, g.Snapshot().Players)
}

func TestConcurrentJoinsGetContiguousTurnIndexes(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := NewUnoGame(DefaultRules(), logger)

	var wg sync.WaitGroup
	results := make(chan JoinResult, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := g.Join(fmt.Sprintf("p%d", i))
			if assert.NoError(t, err) {
				results <- res
			}
		}(i)
	}
	wg.Wait()
	close(results)

	seen := map[int]bool{}
	for res := range results {
		assert.False(t, seen[res.TurnIndex], "turn index %d assigned twice", res.TurnIndex)
		seen[res.TurnIndex] = true
		assert.Len(t, res.Hand, 7)
	}
	assert.Len(t, seen, 10)
	for i := 0; i < 10; i++ {
		assert.True(t, seen[i], "turn index %d missing", i)
	}
	require.NoError(t, g.VerifyConservation())
}

func TestGameOver(t *testing.T) {
	rules := Rules{MaxPlayers: 4, MinPlayers: 2, HandSize: 1}
	results := make(chan Result, 1)
	g, ids := setupTestGame(t, rules, redFive, hand(blueFive), hand(card(models.Red, models.Two)))
	g.OnGameEnd = func(r Result) { results <- r }

	out, err := g.Play(ids[0], models.Move{Card: blueFive})
	require.NoError(t, err)
	assert.True(t, out.GameOver)
	assert.Equal(t, ids[0], out.Winner)

	snap := g.Snapshot()
	assert.True(t, snap.GameOver)
	assert.Equal(t, ids[0], snap.Winner)

	select {
	case r := <-results:
		assert.Equal(t, ids[0], r.Winner)
		require.Len(t, r.Players, 2)
		assert.Equal(t, 0, r.Players[0].CardsLeft)
		assert.Equal(t, 2, r.Players[1].Score)
	case <-time.After(time.Second):
		t.Fatal("OnGameEnd was not called")
	}

	_, err = g.Play(ids[1], models.Move{Card: card(models.Red, models.Two)})
	require.ErrorIs(t, err, ErrGameOver)
	_, err = g.Join("late")
	require.ErrorIs(t, err, ErrGameOver)
	require.NoError(t, g.VerifyConservation())
}

func TestDisconnectedPlayerIsSkipped(t *testing.T) {
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(blueFive), hand(), hand())

	g.HandleDisconnect(ids[1])
	out, err := g.Play(ids[0], models.Move{Card: blueFive})
	require.NoError(t, err)
	assert.Equal(t, ids[2], out.NextPlayer)

	p, _ := g.Snapshot().Player(ids[1])
	assert.False(t, p.Connected)
	assert.Equal(t, 7, p.HandSize, "a disconnected player keeps their cards")
	require.NoError(t, g.VerifyConservation())
}

func TestActivePlayerDisconnectPassesTurn(t *testing.T) {
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(), hand(), hand())

	g.HandleDisconnect(ids[0])
	assert.Equal(t, 1, g.Snapshot().ActiveTurn)

	g.HandleDisconnect(ids[0])
	assert.Equal(t, 1, g.Snapshot().ActiveTurn, "a second disconnect is ignored")

	g.HandleDisconnect(ids[2])
	g.HandleDisconnect(ids[1])
	assert.Equal(t, 1, g.Snapshot().ActiveTurn, "turn stays put when nobody is left")
}

func TestSnapshotForHidesOtherHands(t *testing.T) {
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(blueFive), hand(greenThree))

	full := g.Snapshot()
	view := full.For(ids[0])

	mine, _ := view.Player(ids[0])
	theirs, _ := view.Player(ids[1])
	assert.Len(t, mine.Hand, 7)
	assert.Nil(t, theirs.Hand)
	assert.Equal(t, 7, theirs.HandSize)

	// mutating the view must not touch the game
	mine.Hand[0] = card(models.Green, models.Nine)
	fresh, _ := g.Snapshot().Player(ids[0])
	assert.Equal(t, blueFive, fresh.Hand[0])
}

func TestActionSinkRecordsMutations(t *testing.T) {
	var records []cache.GameActionRecord
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(blueFive), hand())
	g.ActionSink = func(rec cache.GameActionRecord) { records = append(records, rec) }

	_, err := g.Play(ids[0], models.Move{Card: blueFive})
	require.NoError(t, err)
	_, err = g.DrawAndPass(ids[1])
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, ActionPlayerPlay, records[0].ActionType)
	assert.Equal(t, ids[0], records[0].ActorUserID)
	assert.Equal(t, ActionPlayerPass, records[1].ActionType)
	assert.Greater(t, records[1].ActionIndex, records[0].ActionIndex)
}

func TestDrawAndPass(t *testing.T) {
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(), hand())

	drawn, err := g.DrawAndPass(ids[0])
	require.NoError(t, err)
	assert.Len(t, drawn, 1)

	snap := g.Snapshot()
	assert.Equal(t, 1, snap.ActiveTurn)
	a, _ := snap.Player(ids[0])
	assert.Equal(t, 8, a.HandSize)
}

func TestBrokenInvariantPoisonsGame(t *testing.T) {
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(blueFive), hand())

	g.Mu.Lock()
	g.Players[1].Hand = append(g.Players[1].Hand, models.Card{Kind: models.Wild})
	g.Mu.Unlock()

	err := g.VerifyConservation()
	require.ErrorIs(t, err, ErrInternal)
	assert.False(t, Recoverable(err))

	_, err = g.Play(ids[0], models.Move{Card: blueFive})
	require.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, CodeInternal, ErrorCode(err))
}

// TestConservationUnderRandomPlay plays whole games with naive players and checks the deck after every move.
func TestConservationUnderRandomPlay(t *testing.T) {
	for round := 0; round < 20; round++ {
		logger, _ := test.NewNullLogger()
		g := NewUnoGame(DefaultRules(), logger)
		var ids []uuid.UUID
		for i := 0; i < 4; i++ {
			res, err := g.Join(fmt.Sprintf("bot-%d", i))
			require.NoError(t, err)
			ids = append(ids, res.PlayerID)
		}

		for move := 0; move < 2000; move++ {
			snap := g.Snapshot()
			if snap.GameOver {
				break
			}
			current := snap.Players[snap.ActiveTurn]
			effective := models.Card{Color: snap.ActiveColor, Kind: snap.CurrentCard.Kind}

			played := false
			for _, c := range current.Hand {
				if !models.Matches(effective, c) {
					continue
				}
				m := models.Move{Card: c}
				if c.IsWild() {
					m.ChosenColor = models.Colors[move%len(models.Colors)]
				}
				_, err := g.Play(current.PlayerID, m)
				if err == ErrDeckExhausted {
					break
				}
				require.NoError(t, err, "playing %v on %v", c, effective)
				played = true
				break
			}
			if !played {
				if _, err := g.DrawAndPass(current.PlayerID); err != nil {
					require.ErrorIs(t, err, ErrDeckExhausted)
					break
				}
			}
			require.NoError(t, g.VerifyConservation())
		}
	}
}

func TestTurnLeavesAbandonedSeatWhenPlayersJoin(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := NewUnoGame(DefaultRules(), logger)

	a, err := g.Join("alice")
	require.NoError(t, err)
	g.HandleDisconnect(a.PlayerID)
	assert.Equal(t, 0, g.Snapshot().ActiveTurn, "nobody to hand the turn to yet")

	b, err := g.Join("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Snapshot().ActiveTurn)
	c, err := g.Join("carol")
	require.NoError(t, err)

	_, err = g.DrawAndPass(b.PlayerID)
	require.NoError(t, err)
	_, err = g.DrawAndPass(c.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Snapshot().ActiveTurn, "the turn wraps past the disconnected seat")
	require.NoError(t, g.VerifyConservation())
}

func TestDrawTwoPassesOverDisconnectedSeat(t *testing.T) {
	redDrawTwo := card(models.Red, models.DrawTwo)
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(redDrawTwo), hand(), hand(), hand())
	g.HandleDisconnect(ids[1])

	out, err := g.Play(ids[0], models.Move{Card: redDrawTwo})
	require.NoError(t, err)
	assert.Equal(t, ids[2], out.ForcedPlayer)
	assert.Len(t, out.ForcedCards, 2)
	assert.Equal(t, ids[3], out.NextPlayer)

	snap := g.Snapshot()
	gone, _ := snap.Player(ids[1])
	assert.Equal(t, 7, gone.HandSize, "a disconnected player never takes a penalty")
	victim, _ := snap.Player(ids[2])
	assert.Equal(t, 9, victim.HandSize)
	require.NoError(t, g.VerifyConservation())
}

func TestSkipPassesOverDisconnectedSeat(t *testing.T) {
	redSkip := card(models.Red, models.Skip)
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(redSkip), hand(), hand(), hand())
	g.HandleDisconnect(ids[1])

	out, err := g.Play(ids[0], models.Move{Card: redSkip})
	require.NoError(t, err)
	assert.Equal(t, ids[3], out.NextPlayer, "seat 2 is the one skipped")
}

// drainPiles moves every draw and discard card into the given seat's hand.
func drainPiles(t *testing.T, g *UnoGame, id uuid.UUID) {
	t.Helper()
	g.Mu.Lock()
	available := len(g.DrawPile) + len(g.DiscardPile)
	g.Mu.Unlock()
	_, err := g.DrawCards(id, available)
	require.NoError(t, err)
	snap := g.Snapshot()
	require.Equal(t, 0, snap.DrawPileSize)
	require.Equal(t, 0, snap.DiscardSize)
}

func TestForcedDrawRefusedWhenPilesCannotCoverIt(t *testing.T) {
	redDrawTwo := card(models.Red, models.DrawTwo)
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(redDrawTwo), hand())
	drainPiles(t, g, ids[1])
	before := g.Snapshot()

	_, err := g.Play(ids[0], models.Move{Card: redDrawTwo})
	require.ErrorIs(t, err, ErrDeckExhausted)
	assert.True(t, Recoverable(err))
	assert.Equal(t, before, g.Snapshot())

	mover, _ := g.Snapshot().Player(ids[0])
	assert.Contains(t, mover.Hand, redDrawTwo, "the card stays in hand")
	require.NoError(t, g.VerifyConservation())
}

func TestJoinReleasesSeatWhenDealFails(t *testing.T) {
	var records []cache.GameActionRecord
	g, ids := setupTestGame(t, DefaultRules(), redFive, hand(), hand())
	drainPiles(t, g, ids[0])
	g.ActionSink = func(rec cache.GameActionRecord) { records = append(records, rec) }
	before := g.Snapshot()
	g.Mu.Lock()
	lastIndex := g.actionIndex
	g.Mu.Unlock()

	_, err := g.Join("late")
	require.ErrorIs(t, err, ErrDeckExhausted)
	assert.Equal(t, before, g.Snapshot())
	g.Mu.Lock()
	assert.Len(t, g.Players, 2)
	g.Mu.Unlock()
	assert.Empty(t, records, "a released seat leaves nothing in the action log")
	require.NoError(t, g.VerifyConservation())

	// the next successful seat continues the action numbering without a gap
	_, err = g.AddPlayer("empty-handed")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ActionPlayerJoin, records[0].ActionType)
	assert.Equal(t, 2, records[0].ActionPayload["turn_index"])
	assert.Equal(t, lastIndex+1, records[0].ActionIndex)
}
