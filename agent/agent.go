package agent

import (
	"context"
	"fmt"

	"rlframework/engine"
	"rlframework/game"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
)

// DefaultMaxMoves bounds the candidates evaluated per turn.
const DefaultMaxMoves = 1000

type State int

const (
	Idle        State = iota // Between games
	Initialized              // Bound to a game
	Deciding                 // Evaluating candidates
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initialized:
		return "initialized"
	case Deciding:
		return "deciding"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Option func(a *Agent)

// Agent is a Player that scores the outcome of every candidate action with
// an evaluation function and picks one with a selection strategy.
type Agent struct {
	name     string
	class    string
	maxMoves int
	evaluate game.Evaluate
	strategy Strategy
	seed     *uint64
	base     zerolog.Logger

	pid     int
	state   State
	rng     *rand.Rand
	logger  zerolog.Logger
	rewards int
	reward  float64
}

func WithClass(class string) Option {
	return func(a *Agent) {
		if class != "" {
			a.class = class
		}
	}
}

func WithMaxMoves(moves int) Option {
	return func(a *Agent) {
		if moves > 0 {
			a.maxMoves = moves
		}
	}
}

func WithEvaluator(evaluate game.Evaluate) Option {
	return func(a *Agent) {
		if evaluate != nil {
			a.evaluate = evaluate
		}
	}
}

func WithStrategy(strategy Strategy) Option {
	return func(a *Agent) {
		if strategy != nil {
			a.strategy = strategy
		}
	}
}

// WithSeed fixes the agent's random source. By default it is derived from
// the game seed and the player slot.
func WithSeed(seed uint64) Option {
	return func(a *Agent) {
		a.seed = &seed
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) {
		a.base = logger
	}
}

func New(name string, options ...Option) *Agent {
	a := &Agent{ // Default values
		name:     name,
		class:    name,
		maxMoves: DefaultMaxMoves,
		evaluate: ScoreLead,
		strategy: Best(),
		base:     zerolog.Nop(),
		pid:      game.NoPlayer,
	}
	for _, option := range options {
		option(a)
	}
	a.logger = a.base
	return a
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) Class() string {
	return a.class
}

func (a *Agent) State() State {
	return a.state
}

func (a *Agent) ID() int {
	return a.pid
}

func (a *Agent) HasReceivedReward() bool {
	return a.rewards > 0
}

func (a *Agent) LastReward() float64 {
	return a.reward
}

// Initialize binds the agent to a new game and resets per-game state.
func (a *Agent) Initialize(e *engine.Engine, pid int) {
	a.pid = pid
	a.state = Initialized
	a.rewards = 0
	a.reward = 0

	seed := e.Seed() ^ (uint64(pid)+1)*0x9e3779b97f4a7c15
	if a.seed != nil {
		seed = *a.seed
	}
	a.rng = rand.New(rand.NewSource(seed))
	a.logger = a.base.With().Int("game", e.ID()).Int("player", pid).Logger()
}

// ChooseMove evaluates up to maxMoves candidates speculatively and selects one.
func (a *Agent) ChooseMove(ctx context.Context, e *engine.Engine) (engine.Action, error) {
	if a.state == Idle {
		return nil, fmt.Errorf("%w: agent %s is not initialized", game.ErrInvariantViolation, a.name)
	}
	a.state = Deciding
	defer func() { a.state = Initialized }()

	actions := e.CandidateActions(a.pid, a.maxMoves, a.rng)
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: player %d at turn %d", game.ErrNoLegalActions, a.pid, e.Turn())
	}

	scores := make([]float64, len(actions))
	for i, action := range actions {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		s, err := e.Apply(action, false)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate %s: %w", action, err)
		}
		scores[i] = a.evaluate(s, a.pid)
	}

	choice := a.strategy(scores, a.rng)
	a.logger.Debug().Int("candidates", len(actions)).Float64("score", scores[choice]).Msgf("chose %s", actions[choice])
	return actions[choice], nil
}

// Reward records the terminal target; the agent returns to idle.
func (a *Agent) Reward(target float64) {
	a.rewards++
	a.reward = target
	a.state = Idle
}
