// Package countdown is a minimal race: every player counts down from the
// same start and finishes on reaching zero.
package countdown

import (
	"fmt"
	"slices"

	"rlframework/engine"
	"rlframework/game"

	"golang.org/x/exp/rand"
)

const (
	DefaultStart   = 10
	DefaultMaxStep = 3
)

type Option func(r *Rules)

type Rules struct {
	players int
	start   int
	maxStep int
}

func WithStart(start int) Option {
	return func(r *Rules) {
		if start > 0 {
			r.start = start
		}
	}
}

func WithMaxStep(step int) Option {
	return func(r *Rules) {
		if step > 0 {
			r.maxStep = step
		}
	}
}

func New(players int, options ...Option) *Rules {
	r := &Rules{ // Default values
		players: players,
		start:   DefaultStart,
		maxStep: DefaultMaxStep,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Counters is the fully public payload.
type Counters struct {
	Remaining []int
	Start     int
	First     int // Starting player, drawn at setup
}

func (c *Counters) Copy() game.Payload {
	return &Counters{Remaining: slices.Clone(c.Remaining), Start: c.Start, First: c.First}
}

func (c *Counters) Equal(other game.Payload) bool {
	o, ok := other.(*Counters)
	return ok && slices.Equal(c.Remaining, o.Remaining) && c.Start == o.Start && c.First == o.First
}

// Mask hides nothing: countdown is a perfect-information game.
func (c *Counters) Mask(perspective int) game.Payload {
	return c.Copy()
}

func (c *Counters) Vector(perspective int) []float64 {
	vec := make([]float64, len(c.Remaining))
	for pid, left := range c.Remaining {
		vec[pid] = float64(left) / float64(c.Start)
	}
	return vec
}

// Count lowers the player's counter by N.
type Count struct {
	Player int
	N      int
}

func (a Count) IsLegal(e *engine.Engine) bool {
	c := e.Payload().(*Counters)
	r := e.Rules().(interface{ MaxStep() int })
	return e.ToMove() == a.Player && a.N >= 1 && a.N <= min(r.MaxStep(), c.Remaining[a.Player])
}

func (a Count) Modify(e *engine.Engine) error {
	c := e.Payload().(*Counters)
	c.Remaining[a.Player] -= a.N
	return nil
}

func (a Count) String() string {
	return fmt.Sprintf("count(%d)", a.N)
}

func (r *Rules) Name() string {
	return "countdown"
}

func (r *Rules) MaxStep() int {
	return r.maxStep
}

func (r *Rules) NumPlayers() int {
	return r.players
}

func (r *Rules) Setup(rng *rand.Rand) (game.Payload, error) {
	if r.players < 1 {
		return nil, fmt.Errorf("countdown needs at least one player, got %d", r.players)
	}
	remaining := make([]int, r.players)
	for pid := range remaining {
		remaining[pid] = r.start
	}
	return &Counters{Remaining: remaining, Start: r.start, First: rng.Intn(r.players)}, nil
}

func (r *Rules) StartingPlayer(e *engine.Engine) int {
	return e.Payload().(*Counters).First
}

func (r *Rules) LegalActions(e *engine.Engine, pid int) []engine.Action {
	c := e.Payload().(*Counters)
	steps := min(r.maxStep, c.Remaining[pid])
	actions := make([]engine.Action, 0, steps)
	for n := 1; n <= steps; n++ {
		actions = append(actions, Count{Player: pid, N: n})
	}
	return actions
}

func (r *Rules) IsFinished(e *engine.Engine, pid int) bool {
	return e.Payload().(*Counters).Remaining[pid] == 0
}

// IsTerminal ends the game once a single player is left counting.
func (r *Rules) IsTerminal(e *engine.Engine) bool {
	return len(e.Unfinished()) <= min(1, r.players-1)
}

func (r *Rules) NextPlayer(e *engine.Engine) int {
	return engine.NextUnfinished(e)
}

// Scores rewards finishing early: the first to finish gets n, the last 1,
// players still counting 0.
func (r *Rules) Scores(e *engine.Engine) []float64 {
	scores := make([]float64, r.players)
	for idx, pid := range e.FinishOrder() {
		scores[pid] = float64(r.players - idx)
	}
	return scores
}
