package engine

import (
	"context"

	"rlframework/game"

	"golang.org/x/exp/rand"
)

// Action is one atomic proposed mutation. Implementations are immutable once
// constructed; legality and outcome depend only on the action and the engine.
type Action interface {
	// IsLegal must not have side effects.
	IsLegal(e *Engine) bool
	// Modify performs the mutation on the live engine. It is the only
	// mutation routine a concrete game writes: Apply wraps it for both
	// committing and speculative use.
	Modify(e *Engine) error
	String() string
}

// Rules is what a concrete game plugs into the engine.
type Rules interface {
	Name() string
	NumPlayers() int
	// Setup builds the initial payload. Any randomness must come from rng.
	Setup(rng *rand.Rand) (game.Payload, error)
	StartingPlayer(e *Engine) int
	// LegalActions enumerates the actions available to pid. It must return at
	// least one action for an unfinished player to move (e.g. a pass).
	LegalActions(e *Engine, pid int) []Action
	// IsFinished is the per-player terminal condition.
	IsFinished(e *Engine, pid int) bool
	// IsTerminal is the overall termination predicate, checked after
	// finish order has been updated.
	IsTerminal(e *Engine) bool
	// NextPlayer picks the next player to move among the unfinished ones.
	NextPlayer(e *Engine) int
	Scores(e *Engine) []float64
}

// Truncator lets a game choose which actions survive the max-moves cap.
// The engine still enforces the cap on whatever is returned.
type Truncator interface {
	Truncate(e *Engine, actions []Action, limit int, rng *rand.Rand) []Action
}

// Player is a decision-making agent. A player is reusable across games:
// Initialize rebinds it and resets all per-game state.
type Player interface {
	Name() string
	Initialize(e *Engine, pid int)
	// ChooseMove must not mutate the engine other than through
	// speculative Apply calls.
	ChooseMove(ctx context.Context, e *Engine) (Action, error)
}

// Classer groups players for aggregate statistics.
type Classer interface {
	Class() string
}

// Rewarder receives the player's terminal target once the game finishes.
type Rewarder interface {
	Reward(target float64)
}

// Sample is one training record before its target is known.
type Sample struct {
	Game   int
	Turn   int
	Player int
	Vector []float64
}

// Recorder receives training records for one game. Samples are recorded as
// soon as the action is committed; the targets arrive once the game ends.
type Recorder interface {
	Record(s Sample) error
	Label(targets []float64) error
	Close() error
}

// Renderer is notified with the authoritative snapshot after every commit.
type Renderer interface {
	Render(s *game.Snapshot)
}

// NextUnfinished is round-robin turn order skipping finished players.
func NextUnfinished(e *Engine) int {
	n := e.NumPlayers()
	for i := 1; i <= n; i++ {
		pid := (e.ToMove() + i) % n
		if e.IsUnfinished(pid) {
			return pid
		}
	}
	return game.NoPlayer
}
