// Package shedding is a hidden-information card game: players take turns
// shedding cards onto a shared pile and finish once their hand and the deck
// are both empty.
package shedding

import (
	"fmt"
	"slices"

	"rlframework/engine"
	"rlframework/game"

	"golang.org/x/exp/rand"
)

const DefaultHandSize = 6

type Option func(r *Rules)

type Rules struct {
	players  int
	handSize int
}

func WithHandSize(size int) Option {
	return func(r *Rules) {
		if size > 0 {
			r.handSize = size
		}
	}
}

func New(players int, options ...Option) *Rules {
	r := &Rules{ // Default values
		players:  players,
		handSize: DefaultHandSize,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Table is the payload. Hands are private to their owner and the deck is
// face down; the pile is public.
type Table struct {
	Hands [][]Card
	Deck  []Card // Top of the deck is the last card
	Pile  []Card // Top of the pile is the last card
	First int
}

func (t *Table) Copy() game.Payload {
	hands := make([][]Card, len(t.Hands))
	for pid, hand := range t.Hands {
		hands[pid] = slices.Clone(hand)
	}
	return &Table{Hands: hands, Deck: slices.Clone(t.Deck), Pile: slices.Clone(t.Pile), First: t.First}
}

func (t *Table) Equal(other game.Payload) bool {
	o, ok := other.(*Table)
	if !ok || len(t.Hands) != len(o.Hands) || t.First != o.First {
		return false
	}
	for pid := range t.Hands {
		if !slices.Equal(t.Hands[pid], o.Hands[pid]) {
			return false
		}
	}
	return slices.Equal(t.Deck, o.Deck) && slices.Equal(t.Pile, o.Pile)
}

// Mask turns every card the perspective player cannot see face down,
// keeping the counts.
func (t *Table) Mask(perspective int) game.Payload {
	masked := t.Copy().(*Table)
	for pid, hand := range masked.Hands {
		if pid == perspective {
			continue
		}
		for i := range hand {
			hand[i] = hidden
		}
	}
	for i := range masked.Deck {
		masked.Deck[i] = hidden
	}
	return masked
}

// Vector encodes the perspective player's hand, the cards on the pile and
// the pile top as deck-sized indicator vectors, followed by the hand sizes
// and the deck size.
func (t *Table) Vector(perspective int) []float64 {
	vec := make([]float64, 3*DeckSize, 3*DeckSize+len(t.Hands)+1)
	if perspective >= 0 {
		for _, c := range t.Hands[perspective] {
			if !c.IsHidden() {
				vec[c.Index()] = 1
			}
		}
	}
	for _, c := range t.Pile {
		vec[DeckSize+c.Index()] = 1
	}
	if top, ok := t.top(); ok {
		vec[2*DeckSize+top.Index()] = 1
	}
	for _, hand := range t.Hands {
		vec = append(vec, float64(len(hand))/DeckSize)
	}
	return append(vec, float64(len(t.Deck))/DeckSize)
}

func (t *Table) top() (Card, bool) {
	if len(t.Pile) == 0 {
		return Card{}, false
	}
	return t.Pile[len(t.Pile)-1], true
}

func (t *Table) playable(pid int) bool {
	top, ok := t.top()
	for _, c := range t.Hands[pid] {
		if !ok || c.Beats(top) {
			return true
		}
	}
	return false
}

type Play struct {
	Player int
	Card   Card
}

func (a Play) IsLegal(e *engine.Engine) bool {
	t := e.Payload().(*Table)
	if e.ToMove() != a.Player || !slices.Contains(t.Hands[a.Player], a.Card) || a.Card.IsHidden() {
		return false
	}
	top, ok := t.top()
	return !ok || a.Card.Beats(top)
}

func (a Play) Modify(e *engine.Engine) error {
	t := e.Payload().(*Table)
	idx := slices.Index(t.Hands[a.Player], a.Card)
	if idx < 0 {
		return fmt.Errorf("card %s not in hand", a.Card)
	}
	t.Hands[a.Player] = slices.Delete(t.Hands[a.Player], idx, idx+1)
	t.Pile = append(t.Pile, a.Card)
	return nil
}

func (a Play) String() string {
	return "play " + a.Card.String()
}

// Draw takes the top card of the deck.
type Draw struct {
	Player int
}

func (a Draw) IsLegal(e *engine.Engine) bool {
	t := e.Payload().(*Table)
	return e.ToMove() == a.Player && len(t.Deck) > 0
}

func (a Draw) Modify(e *engine.Engine) error {
	t := e.Payload().(*Table)
	if len(t.Deck) == 0 {
		return fmt.Errorf("deck is empty")
	}
	card := t.Deck[len(t.Deck)-1]
	t.Deck = t.Deck[:len(t.Deck)-1]
	t.Hands[a.Player] = append(t.Hands[a.Player], card)
	sortCards(t.Hands[a.Player])
	return nil
}

func (a Draw) String() string {
	return "draw"
}

// PickUp takes the whole pile when the player cannot play and the deck is
// exhausted.
type PickUp struct {
	Player int
}

func (a PickUp) IsLegal(e *engine.Engine) bool {
	t := e.Payload().(*Table)
	return e.ToMove() == a.Player && len(t.Pile) > 0 && len(t.Deck) == 0 && !t.playable(a.Player)
}

func (a PickUp) Modify(e *engine.Engine) error {
	t := e.Payload().(*Table)
	t.Hands[a.Player] = append(t.Hands[a.Player], t.Pile...)
	t.Pile = nil
	sortCards(t.Hands[a.Player])
	return nil
}

func (a PickUp) String() string {
	return "pick up"
}

func (r *Rules) Name() string {
	return "shedding"
}

func (r *Rules) NumPlayers() int {
	return r.players
}

func (r *Rules) Setup(rng *rand.Rand) (game.Payload, error) {
	if r.players < 2 || r.players*r.handSize > DeckSize {
		return nil, fmt.Errorf("cannot deal %d cards to %d players", r.handSize, r.players)
	}
	deck := NewDeck()
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	hands := make([][]Card, r.players)
	for pid := range hands {
		hands[pid] = slices.Clone(deck[len(deck)-r.handSize:])
		deck = deck[:len(deck)-r.handSize]
		sortCards(hands[pid])
	}
	return &Table{Hands: hands, Deck: slices.Clone(deck), Pile: []Card{}, First: rng.Intn(r.players)}, nil
}

func (r *Rules) StartingPlayer(e *engine.Engine) int {
	return e.Payload().(*Table).First
}

func (r *Rules) LegalActions(e *engine.Engine, pid int) []engine.Action {
	t := e.Payload().(*Table)
	var actions []engine.Action
	top, hasTop := t.top()
	for _, c := range t.Hands[pid] {
		if !c.IsHidden() && (!hasTop || c.Beats(top)) {
			actions = append(actions, Play{Player: pid, Card: c})
		}
	}
	if len(t.Deck) > 0 {
		actions = append(actions, Draw{Player: pid})
	} else if hasTop && len(actions) == 0 {
		actions = append(actions, PickUp{Player: pid})
	}
	return actions
}

// Truncate keeps the lowest cards first, then drawing.
func (r *Rules) Truncate(e *engine.Engine, actions []engine.Action, limit int, rng *rand.Rand) []engine.Action {
	sorted := slices.Clone(actions)
	slices.SortStableFunc(sorted, func(a, b engine.Action) int {
		return priority(a) - priority(b)
	})
	return sorted[:limit]
}

func priority(a engine.Action) int {
	if p, ok := a.(Play); ok {
		return p.Card.Rank
	}
	return MaxRank + 1
}

func (r *Rules) IsFinished(e *engine.Engine, pid int) bool {
	t := e.Payload().(*Table)
	return len(t.Hands[pid]) == 0 && len(t.Deck) == 0
}

// IsTerminal ends the game when only the loser holds cards.
func (r *Rules) IsTerminal(e *engine.Engine) bool {
	return len(e.Unfinished()) <= 1
}

func (r *Rules) NextPlayer(e *engine.Engine) int {
	return engine.NextUnfinished(e)
}

// Scores: finished players by finish position, the others lose a point per
// card left in hand.
func (r *Rules) Scores(e *engine.Engine) []float64 {
	t := e.Payload().(*Table)
	scores := make([]float64, r.players)
	for pid, hand := range t.Hands {
		scores[pid] = -float64(len(hand))
	}
	for idx, pid := range e.FinishOrder() {
		scores[pid] = float64(r.players - idx)
	}
	return scores
}
