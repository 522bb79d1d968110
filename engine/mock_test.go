package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"rlframework/game"

	"golang.org/x/exp/rand"
)

// race: every player walks towards its own goal one step at a time and
// finishes on reaching it. Each step draws from the engine's random source.
type race struct {
	goals []int
	wide  int // Extra no-op actions offered per turn
}

type raceState struct {
	pos    []int
	goals  []int
	secret []int // Only visible to its owner
	draws  int
}

func (s *raceState) Copy() game.Payload {
	return &raceState{
		pos:    slices.Clone(s.pos),
		goals:  slices.Clone(s.goals),
		secret: slices.Clone(s.secret),
		draws:  s.draws,
	}
}

func (s *raceState) Equal(other game.Payload) bool {
	o, ok := other.(*raceState)
	return ok && slices.Equal(s.pos, o.pos) && slices.Equal(s.goals, o.goals) &&
		slices.Equal(s.secret, o.secret) && s.draws == o.draws
}

func (s *raceState) Mask(perspective int) game.Payload {
	c := s.Copy().(*raceState)
	for pid := range c.secret {
		if pid != perspective {
			c.secret[pid] = 0
		}
	}
	return c
}

func (s *raceState) Vector(perspective int) []float64 {
	vec := make([]float64, 0, len(s.pos)+1)
	for _, p := range s.pos {
		vec = append(vec, float64(p))
	}
	if perspective >= 0 {
		return append(vec, float64(s.secret[perspective]))
	}
	return append(vec, 0)
}

type raceStep struct {
	player int
	noop   int
}

func (a raceStep) IsLegal(e *Engine) bool {
	s := e.Payload().(*raceState)
	return e.ToMove() == a.player && s.pos[a.player] < s.goals[a.player]
}

func (a raceStep) Modify(e *Engine) error {
	s := e.Payload().(*raceState)
	s.pos[a.player]++
	s.draws += e.Rand().Intn(100)
	return nil
}

func (a raceStep) String() string {
	return fmt.Sprintf("step(%d,%d)", a.player, a.noop)
}

func (r *race) Name() string    { return "race" }
func (r *race) NumPlayers() int { return len(r.goals) }

func (r *race) Setup(rng *rand.Rand) (game.Payload, error) {
	s := &raceState{
		pos:    make([]int, len(r.goals)),
		goals:  slices.Clone(r.goals),
		secret: make([]int, len(r.goals)),
	}
	for pid := range s.secret {
		s.secret[pid] = rng.Intn(1000) + 1
	}
	return s, nil
}

func (r *race) StartingPlayer(e *Engine) int { return 0 }

func (r *race) LegalActions(e *Engine, pid int) []Action {
	actions := []Action{raceStep{player: pid}}
	for i := 1; i <= r.wide; i++ {
		actions = append(actions, raceStep{player: pid, noop: i})
	}
	return actions
}

func (r *race) IsFinished(e *Engine, pid int) bool {
	s := e.Payload().(*raceState)
	return s.pos[pid] >= s.goals[pid]
}

func (r *race) IsTerminal(e *Engine) bool {
	return len(e.Unfinished()) == 0
}

func (r *race) NextPlayer(e *Engine) int {
	return NextUnfinished(e)
}

func (r *race) Scores(e *Engine) []float64 {
	s := e.Payload().(*raceState)
	scores := make([]float64, len(s.pos))
	for pid, p := range s.pos {
		scores[pid] = float64(p)
	}
	return scores
}

// firstMover always plays its first candidate.
type firstMover struct {
	pid    int
	reward float64
}

func (p *firstMover) Name() string                  { return "first" }
func (p *firstMover) Initialize(e *Engine, pid int) { p.pid = pid }
func (p *firstMover) Reward(target float64)         { p.reward = target }
func (p *firstMover) ChooseMove(ctx context.Context, e *Engine) (Action, error) {
	actions := e.CandidateActions(p.pid, 0, e.Rand())
	return actions[0], nil
}

// cheater submits an action that is never legal.
type cheater struct{ pid int }

type forbidden struct{}

func (forbidden) IsLegal(e *Engine) bool { return false }
func (forbidden) Modify(e *Engine) error { return nil }
func (forbidden) String() string         { return "forbidden" }

func (p *cheater) Name() string                  { return "cheater" }
func (p *cheater) Initialize(e *Engine, pid int) { p.pid = pid }
func (p *cheater) ChooseMove(ctx context.Context, e *Engine) (Action, error) {
	return forbidden{}, nil
}

// sleeper ignores its context and takes too long.
type sleeper struct{ delay time.Duration }

func (p *sleeper) Name() string                  { return "sleeper" }
func (p *sleeper) Initialize(e *Engine, pid int) {}
func (p *sleeper) ChooseMove(ctx context.Context, e *Engine) (Action, error) {
	time.Sleep(p.delay)
	return forbidden{}, nil
}

// spinner keeps speculating after its turn has timed out and counts the
// applies the engine refused.
type spinner struct {
	pid     int
	spin    time.Duration
	refused int
	done    chan struct{}
}

func (p *spinner) Name() string { return "spinner" }
func (p *spinner) Initialize(e *Engine, pid int) {
	p.pid = pid
	p.done = make(chan struct{})
}
func (p *spinner) ChooseMove(ctx context.Context, e *Engine) (Action, error) {
	defer close(p.done)
	step := raceStep{player: p.pid}
	for deadline := time.Now().Add(p.spin); time.Now().Before(deadline); {
		if _, err := e.Apply(step, false); err != nil {
			p.refused++
		}
	}
	return step, nil
}

type memoryRecorder struct {
	samples []Sample
	targets []float64
	closed  bool
}

func (r *memoryRecorder) Record(s Sample) error {
	r.samples = append(r.samples, s)
	return nil
}

func (r *memoryRecorder) Label(targets []float64) error {
	r.targets = targets
	return nil
}

func (r *memoryRecorder) Close() error {
	r.closed = true
	return nil
}
