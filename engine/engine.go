package engine

import (
	"fmt"
	"slices"
	"time"

	"rlframework/game"
	"rlframework/metrics"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

// MaxMoves is the default move limit after which a game is declared over.
const MaxMoves = 10000

// DefaultHistoryLimit bounds the turn history carried by snapshots.
const DefaultHistoryLimit = 32

type Status int

const (
	NotStarted Status = iota
	InProgress
	Finished
	Aborted // A fatal failure occurred, the engine must be discarded
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case InProgress:
		return "in progress"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type Option func(e *Engine)

// Engine owns the authoritative state of one game and drives its turn loop.
// It is not safe for concurrent use: one game, one goroutine.
type Engine struct {
	id            int
	rules         Rules
	seed          uint64
	src           *rand.PCGSource
	rng           *rand.Rand
	turnTimeout   time.Duration
	gameTimeout   time.Duration
	maxTurns      int
	historyLimit  int
	recorder      Recorder
	renderer      Renderer
	logger        zerolog.Logger
	metrics       metrics.Collector
	collect       bool
	target        Target
	verifyRestore bool

	status         Status
	players        []Player
	unfinished     []int
	finishOrder    []int
	scores         []float64
	toMove         int
	turn           int
	history        []game.Turn
	payload        game.Payload
	startingPlayer int
	startTime      time.Time
	moves          []metrics.MoveMetric
	result         *Result
	decision       *decision // Set while a player is choosing
}

func WithID(id int) Option {
	return func(e *Engine) {
		e.id = id
	}
}

func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

func WithTurnTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.turnTimeout = timeout
		}
	}
}

func WithGameTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.gameTimeout = timeout
		}
	}
}

func WithMaxTurns(turns int) Option {
	return func(e *Engine) {
		if turns > 0 {
			e.maxTurns = turns
		}
	}
}

func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.historyLimit = limit
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

func WithRenderer(r Renderer) Option {
	return func(e *Engine) {
		e.renderer = r
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics collects a MoveMetric per committed action into the Result.
func WithMetrics() Option {
	return func(e *Engine) {
		e.metrics = metrics.NewCollector()
		e.collect = true
	}
}

// WithTarget selects the training target attached to recorded samples.
func WithTarget(target Target) Option {
	return func(e *Engine) {
		if target != nil {
			e.target = target
		}
	}
}

// WithVerifyRestore re-captures the engine after every speculative apply and
// fails loudly if the restored state differs from the saved one.
func WithVerifyRestore() Option {
	return func(e *Engine) {
		e.verifyRestore = true
	}
}

func New(rules Rules, options ...Option) (*Engine, error) {
	if rules == nil {
		return nil, fmt.Errorf("engine: rules are required")
	}
	if rules.NumPlayers() < 1 {
		return nil, fmt.Errorf("engine: %s needs at least one player", rules.Name())
	}

	e := &Engine{ // Default values
		rules:        rules,
		maxTurns:     MaxMoves,
		historyLimit: DefaultHistoryLimit,
		logger:       log.Logger,
		metrics:      metrics.NewDummyCollector(),
		target:       TargetScore,
		toMove:       game.NoPlayer,
	}
	for _, option := range options {
		option(e)
	}

	e.src = &rand.PCGSource{}
	e.src.Seed(e.seed)
	e.rng = rand.New(e.src)
	e.logger = e.logger.With().Int("game", e.id).Uint64("seed", e.seed).Str("rules", rules.Name()).Logger()
	return e, nil
}

// Start binds the players in the order given, resets them and sets up the
// initial state.
func (e *Engine) Start(players []Player) error {
	if e.status != NotStarted {
		return fmt.Errorf("engine: cannot start a game that is %s", e.status)
	}
	n := e.rules.NumPlayers()
	if len(players) != n {
		return fmt.Errorf("engine: %s needs %d players, got %d", e.rules.Name(), n, len(players))
	}

	payload, err := e.rules.Setup(e.rng)
	if err != nil {
		return fmt.Errorf("engine: failed to set up %s: %w", e.rules.Name(), err)
	}

	e.payload = payload
	e.players = slices.Clone(players)
	e.unfinished = make([]int, n)
	for pid := range e.unfinished {
		e.unfinished[pid] = pid
	}
	e.finishOrder = []int{}
	e.scores = make([]float64, n)
	e.history = nil
	e.turn = 0
	e.status = InProgress
	e.startTime = time.Now()

	for pid, p := range e.players {
		p.Initialize(e, pid)
	}

	e.toMove = e.rules.StartingPlayer(e)
	if !e.IsUnfinished(e.toMove) {
		e.status = Aborted
		return fmt.Errorf("%w: starting player %d is not playing", game.ErrInvariantViolation, e.toMove)
	}
	e.startingPlayer = e.toMove

	names := make([]string, n)
	for pid, p := range e.players {
		names[pid] = p.Name()
	}
	e.logger.Info().Strs("players", names).Msgf("player %d is starting", e.toMove)
	return nil
}

func (e *Engine) ID() int {
	return e.id
}

func (e *Engine) Seed() uint64 {
	return e.seed
}

// VerifyRestore reports whether speculative applies are checked.
func (e *Engine) VerifyRestore() bool {
	return e.verifyRestore
}

func (e *Engine) Rules() Rules {
	return e.rules
}

func (e *Engine) Status() Status {
	return e.status
}

func (e *Engine) NumPlayers() int {
	return e.rules.NumPlayers()
}

func (e *Engine) Players() []Player {
	return slices.Clone(e.players)
}

// ToMove returns the player to move, or game.NoPlayer in a terminal state.
func (e *Engine) ToMove() int {
	return e.toMove
}

// Turn returns the number of actions committed so far.
func (e *Engine) Turn() int {
	return e.turn
}

func (e *Engine) Unfinished() []int {
	return slices.Clone(e.unfinished)
}

func (e *Engine) FinishOrder() []int {
	return slices.Clone(e.finishOrder)
}

func (e *Engine) IsUnfinished(pid int) bool {
	return slices.Contains(e.unfinished, pid)
}

func (e *Engine) IsFinished(pid int) bool {
	return slices.Contains(e.finishOrder, pid)
}

func (e *Engine) Score(pid int) float64 {
	return e.scores[pid]
}

func (e *Engine) History() []game.Turn {
	return slices.Clone(e.history)
}

// Payload returns the live game-specific state. Only Action.Modify may
// mutate it.
func (e *Engine) Payload() game.Payload {
	return e.payload
}

// Rand is the game's random source. Its state is saved and restored around
// speculative applies.
func (e *Engine) Rand() *rand.Rand {
	return e.rng
}

func (e *Engine) Logger() *zerolog.Logger {
	return &e.logger
}

// Result is available once the engine is Finished.
func (e *Engine) Result() *Result {
	return e.result
}

// CandidateActions enumerates the legal actions of pid, capped to limit.
// Games implementing Truncator decide which actions survive; otherwise a
// uniform sample is kept in generation order.
func (e *Engine) CandidateActions(pid, limit int, rng *rand.Rand) []Action {
	actions := e.rules.LegalActions(e, pid)
	e.metrics.SetLegalActions(len(actions))
	if limit <= 0 || len(actions) <= limit {
		return actions
	}

	if t, ok := e.rules.(Truncator); ok {
		actions = t.Truncate(e, actions, limit, rng)
		if len(actions) > limit {
			actions = actions[:limit]
		}
		return actions
	}

	keep := rng.Perm(len(actions))[:limit]
	slices.Sort(keep)
	sampled := make([]Action, limit)
	for i, idx := range keep {
		sampled[i] = actions[idx]
	}
	return sampled
}
