package communication

import (
	"context"
	"fmt"

	"rlframework/engine"
	"rlframework/game"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
)

type PlayerOption func(p *Player)

// Player delegates its decisions to an out-of-process engine. Every turn the
// engine receives the position as the player observes it and the candidate
// moves, and answers with the index of its pick.
type Player struct {
	name     string
	class    string
	maxMoves int
	client   *Client
	logger   zerolog.Logger

	pid int
	rng *rand.Rand
}

func WithClass(class string) PlayerOption {
	return func(p *Player) {
		if class != "" {
			p.class = class
		}
	}
}

func WithMaxMoves(moves int) PlayerOption {
	return func(p *Player) {
		if moves > 0 {
			p.maxMoves = moves
		}
	}
}

func WithLogger(logger zerolog.Logger) PlayerOption {
	return func(p *Player) {
		p.logger = logger
	}
}

// NewPlayer takes ownership of client; closing the player closes it.
func NewPlayer(name string, client *Client, options ...PlayerOption) *Player {
	p := &Player{
		name:   name,
		class:  name,
		client: client,
		logger: zerolog.Nop(),
		pid:    game.NoPlayer,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *Player) Name() string {
	return p.name
}

func (p *Player) Class() string {
	return p.class
}

func (p *Player) Initialize(e *engine.Engine, pid int) {
	p.pid = pid
	p.rng = rand.New(rand.NewSource(e.Seed() ^ uint64(pid)))
}

func (p *Player) ChooseMove(ctx context.Context, e *engine.Engine) (engine.Action, error) {
	if p.pid == game.NoPlayer {
		return nil, fmt.Errorf("%w: player %s is not initialized", game.ErrInvariantViolation, p.name)
	}
	candidates := e.CandidateActions(p.pid, p.maxMoves, p.rng)
	if len(candidates) == 0 {
		return nil, game.ErrNoLegalActions
	}

	if err := p.client.Position(ctx, p.pid, e.Capture(p.pid).Vector(p.pid)); err != nil {
		return nil, fmt.Errorf("failed to send position: %w", err)
	}
	moves := make([]string, len(candidates))
	for i, a := range candidates {
		moves[i] = a.String()
	}
	idx, err := p.client.GenMove(ctx, p.pid, moves)
	if err != nil {
		return nil, fmt.Errorf("failed to generate move: %w", err)
	}
	if idx < 0 || idx >= len(candidates) {
		return nil, fmt.Errorf("%w: engine picked move %d of %d", game.ErrIllegalAction, idx, len(candidates))
	}
	p.logger.Debug().Int("player", p.pid).Msgf("engine picked %s", moves[idx])
	return candidates[idx], nil
}

func (p *Player) Close() error {
	return p.client.Close()
}
