package shedding

import (
	"fmt"
	"slices"
)

const (
	NumSuits = 4
	MinRank  = 6
	MaxRank  = 14
	DeckSize = NumSuits * (MaxRank - MinRank + 1)
)

// Card is a playing card. The zero value is a face-down card.
type Card struct {
	Suit int
	Rank int
}

var hidden = Card{}

func (c Card) IsHidden() bool {
	return c == hidden
}

// Index maps a visible card into [0, DeckSize).
func (c Card) Index() int {
	return c.Suit*(MaxRank-MinRank+1) + c.Rank - MinRank
}

// Beats reports whether c may be played on top.
func (c Card) Beats(top Card) bool {
	return c.Suit == top.Suit || c.Rank > top.Rank
}

func (c Card) String() string {
	if c.IsHidden() {
		return "??"
	}
	ranks := map[int]string{11: "J", 12: "Q", 13: "K", 14: "A"}
	rank, ok := ranks[c.Rank]
	if !ok {
		rank = fmt.Sprint(c.Rank)
	}
	return rank + string("CDHS"[c.Suit])
}

// NewDeck returns the ordered 36-card deck.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for suit := 0; suit < NumSuits; suit++ {
		for rank := MinRank; rank <= MaxRank; rank++ {
			deck = append(deck, Card{Suit: suit, Rank: rank})
		}
	}
	return deck
}

func sortCards(cards []Card) {
	slices.SortFunc(cards, func(a, b Card) int {
		return a.Index() - b.Index()
	})
}
