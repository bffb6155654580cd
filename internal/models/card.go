// internal/models/card.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Color is the color of a card. ColorNone marks the colorless wild family.
type Color int

const (
	ColorNone Color = iota
	Red
	Blue
	Green
	Yellow
)

// Colors lists the four playable colors in deck order.
var Colors = []Color{Red, Blue, Green, Yellow}

var colorNames = map[Color]string{
	ColorNone: "",
	Red:       "red",
	Blue:      "blue",
	Green:     "green",
	Yellow:    "yellow",
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		if name == "" {
			return "none"
		}
		return name
	}
	return fmt.Sprintf("color(%d)", int(c))
}

// Valid reports whether c is one of the four playable colors.
func (c Color) Valid() bool {
	return c >= Red && c <= Yellow
}

// ParseColor accepts the wire names of a color. The empty string parses as ColorNone.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "none" {
		return ColorNone, nil
	}
	for c, name := range colorNames {
		if name == s {
			return c, nil
		}
	}
	return ColorNone, fmt.Errorf("unknown color %q", s)
}

func (c Color) MarshalJSON() ([]byte, error) {
	name, ok := colorNames[c]
	if !ok {
		return nil, fmt.Errorf("cannot marshal %s", c)
	}
	return json.Marshal(name)
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Kind is the face of a card. Zero through Nine are the numeric kinds.
type Kind int

const (
	Zero Kind = iota
	One
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Skip
	Reverse
	DrawTwo
	DrawFour
	Wild
)

var kindNames = [...]string{
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
	"skip", "reverse", "draw_two", "draw_four", "wild",
}

func (k Kind) String() string {
	if k < Zero || k > Wild {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsNumber reports whether k is one of 0..9.
func (k Kind) IsNumber() bool {
	return k >= Zero && k <= Nine
}

// ParseKind accepts the wire names of a kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return Zero, fmt.Errorf("unknown kind %q", s)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if k < Zero || k > Wild {
		return nil, fmt.Errorf("cannot marshal %s", k)
	}
	return json.Marshal(kindNames[k])
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Card is an immutable card value. Two cards with the same color and kind are interchangeable.
type Card struct {
	Color Color `json:"color"`
	Kind  Kind  `json:"kind"`
}

// IsWild reports whether the card belongs to the colorless wild family.
func (c Card) IsWild() bool {
	return c.Kind == Wild || c.Kind == DrawFour
}

// Valid reports whether the card could exist in a standard deck:
// wild-family cards are colorless and every other card has a color.
func (c Card) Valid() bool {
	if c.Kind < Zero || c.Kind > Wild {
		return false
	}
	if c.IsWild() {
		return c.Color == ColorNone
	}
	return c.Color.Valid()
}

func (c Card) String() string {
	if c.IsWild() {
		return c.Kind.String()
	}
	return c.Color.String() + " " + c.Kind.String()
}

// Matches reports whether proposed may be played on top of current.
// A card is playable when colors match, kinds match, or either card is colorless.
func Matches(current, proposed Card) bool {
	if proposed.Color == ColorNone || current.Color == ColorNone {
		return true
	}
	return current.Color == proposed.Color || current.Kind == proposed.Kind
}
