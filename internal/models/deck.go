// internal/models/deck.go
package models

import (
	"math/rand"
	"time"
)

// DeckSize is the number of cards in a standard deck.
const DeckSize = 108

// Deck is an ordered pile of cards. Index 0 is the next card dealt.
type Deck []Card

// NewOrderedDeck returns the standard composition in a fixed order:
// per color one 0, two of each 1-9, two Skip, two Reverse, two DrawTwo;
// then four Wild and four DrawFour.
func NewOrderedDeck() Deck {
	deck := make(Deck, 0, DeckSize)
	for _, color := range Colors {
		deck = append(deck, Card{Color: color, Kind: Zero})
		for copies := 0; copies < 2; copies++ {
			for kind := One; kind <= DrawTwo; kind++ {
				deck = append(deck, Card{Color: color, Kind: kind})
			}
		}
	}
	for i := 0; i < 4; i++ {
		deck = append(deck, Card{Kind: Wild}, Card{Kind: DrawFour})
	}
	return deck
}

// BuildFullDeck returns a freshly shuffled standard deck.
func BuildFullDeck() Deck {
	deck := NewOrderedDeck()
	Reshuffle(deck)
	return deck
}

// Reshuffle applies a uniform Fisher-Yates shuffle to pile in place.
func Reshuffle(pile Deck) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	r.Shuffle(len(pile), func(i, j int) {
		pile[i], pile[j] = pile[j], pile[i]
	})
}

// Clone returns a copy that does not alias d.
func (d Deck) Clone() Deck {
	if d == nil {
		return nil
	}
	out := make(Deck, len(d))
	copy(out, d)
	return out
}

// Composition counts each distinct card in d.
func (d Deck) Composition() map[Card]int {
	counts := make(map[Card]int)
	for _, c := range d {
		counts[c]++
	}
	return counts
}

// Index returns the position of the first card equal to c, or -1.
func (d Deck) Index(c Card) int {
	for i, held := range d {
		if held == c {
			return i
		}
	}
	return -1
}

// Without returns d with the card at i removed. The backing array is reused.
func (d Deck) Without(i int) Deck {
	return append(d[:i], d[i+1:]...)
}

// StandardComposition is the multiset every game must conserve.
func StandardComposition() map[Card]int {
	return NewOrderedDeck().Composition()
}
