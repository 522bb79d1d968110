// Package simulator runs many independent games on a bounded pool of workers
// and aggregates their outcomes.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"rlframework/engine"
	"rlframework/game"
	"rlframework/metrics"
	"rlframework/notify"
	"rlframework/recorder"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// GameFactory builds the engine of one game. The simulator passes the options
// it needs to attach (id, recorder, logger); the factory must apply them.
type GameFactory func(game int, options ...engine.Option) (*engine.Engine, error)

// PlayersFactory builds fresh players for one game. Players must not be shared
// between games running concurrently.
type PlayersFactory func(game int) ([]engine.Player, error)

type Option func(s *Simulator)

type Simulator struct {
	runID     string
	store     recorder.Store
	dataset   string
	publisher notify.Publisher
	results   *metrics.Writer
	logger    zerolog.Logger
}

// WithRunID names the run instead of a random id.
func WithRunID(id string) Option {
	return func(s *Simulator) {
		if id != "" {
			s.runID = id
		}
	}
}

// WithStore records every game into store. When the store can merge its
// shards, the dataset is merged once the run completes.
func WithStore(store recorder.Store) Option {
	return func(s *Simulator) {
		s.store = store
	}
}

// WithDataset sets the file the merged dataset is written to.
func WithDataset(path string) Option {
	return func(s *Simulator) {
		s.dataset = path
	}
}

func WithPublisher(p notify.Publisher) Option {
	return func(s *Simulator) {
		s.publisher = p
	}
}

// WithResultsWriter appends a row per game, and its moves, as outcomes are
// collected.
func WithResultsWriter(w *metrics.Writer) Option {
	return func(s *Simulator) {
		s.results = w
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

func New(options ...Option) *Simulator {
	s := &Simulator{
		logger: zerolog.Nop(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Run plays numGames games with at most numWorkers in flight. A failing game
// never fails the run: it is reported as a classified outcome. Cancelling ctx
// stops new games from being issued while in-flight games run to completion
// or to their own timeouts.
func (s *Simulator) Run(ctx context.Context, newGame GameFactory, newPlayers PlayersFactory, numGames, numWorkers int) (*Report, error) {
	if numGames < 0 {
		return nil, fmt.Errorf("invalid number of games %d", numGames)
	}
	if numWorkers < 1 {
		return nil, fmt.Errorf("invalid number of workers %d", numWorkers)
	}

	runID := s.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	report := newReport(runID, numGames)
	logger := s.logger.With().Str("run", report.RunID).Logger()
	logger.Info().Msgf("starting %d games on %d workers", numGames, numWorkers)

	outcomes := make(chan Outcome, numWorkers)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for o := range outcomes {
			s.collect(report, o, &logger)
		}
	}()

	// In-flight games outlive a cancelled run
	gameCtx := context.WithoutCancel(ctx)
	g := new(errgroup.Group)
	g.SetLimit(numWorkers)
	issued := 0
	var late atomic.Int64
	for id := range numGames {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Admission may have waited on a worker past the cancel
			if ctx.Err() != nil {
				late.Add(1)
				return nil
			}
			outcomes <- s.play(gameCtx, id, newGame, newPlayers, &logger)
			return nil
		})
		issued++
	}
	_ = g.Wait() // Workers report through outcomes and never return errors
	close(outcomes)
	<-collected

	report.Skipped = numGames - issued + int(late.Load())
	report.Duration = time.Since(report.Started)
	if report.Skipped > 0 {
		logger.Warn().Msgf("run cancelled, %d games skipped", report.Skipped)
	}

	if err := s.merge(report); err != nil {
		return report, err
	}

	logger.Info().
		Int("successes", report.Successes).
		Int("failures", report.FailureCount()).
		Int("skipped", report.Skipped).
		Float64("tie_rate", report.TieRate()).
		Msgf("run completed in %s", report.Duration)
	return report, nil
}

// play runs one game to an outcome. Panics anywhere in the game, including
// the factories, are confined to this game.
func (s *Simulator) play(ctx context.Context, id int, newGame GameFactory, newPlayers PlayersFactory, logger *zerolog.Logger) (outcome Outcome) {
	start := time.Now()
	outcome = Outcome{Game: id, Blame: game.NoPlayer}
	defer func() {
		if r := recover(); r != nil {
			outcome.fail(fmt.Errorf("%w: %v", game.ErrWorkerFailure, r))
		}
		outcome.Duration = time.Since(start)
	}()

	options := []engine.Option{
		engine.WithID(id),
		engine.WithLogger(*logger),
	}
	if s.results != nil {
		options = append(options, engine.WithMetrics())
	}
	if s.store != nil {
		opened, err := s.store.Open(id)
		if err != nil {
			logger.Warn().Err(err).Int("game", id).Msg("failed to open recorder, game is not recorded")
		} else {
			// The engine closes the recorder when the game ends; this covers
			// games that never start or panic on the way
			rec := &closeOnce{Recorder: opened}
			defer rec.Close()
			options = append(options, engine.WithRecorder(rec))
		}
	}

	e, err := newGame(id, options...)
	if err != nil {
		outcome.fail(fmt.Errorf("%w: failed to build game: %v", game.ErrWorkerFailure, err))
		return outcome
	}
	outcome.Seed = e.Seed()

	players, err := newPlayers(id)
	if err != nil {
		outcome.fail(fmt.Errorf("%w: failed to build players: %v", game.ErrWorkerFailure, err))
		return outcome
	}
	defer closePlayers(players, logger)
	outcome.Players = make([]string, len(players))
	outcome.Classes = make([]string, len(players))
	for pid, p := range players {
		outcome.Players[pid] = p.Name()
		outcome.Classes[pid] = p.Name()
		if c, ok := p.(engine.Classer); ok {
			outcome.Classes[pid] = c.Class()
		}
	}

	if err := e.Start(players); err != nil {
		if !errors.Is(err, game.ErrInvariantViolation) {
			err = fmt.Errorf("%w: %v", game.ErrWorkerFailure, err)
		}
		outcome.fail(err)
		return outcome
	}

	result, err := e.Run(ctx)
	if err != nil {
		outcome.fail(err)
		return outcome
	}
	outcome.Result = result
	return outcome
}

// closeOnce lets the engine and the simulator both close a recorder.
type closeOnce struct {
	engine.Recorder
	once sync.Once
	err  error
}

func (r *closeOnce) Close() error {
	r.once.Do(func() {
		r.err = r.Recorder.Close()
	})
	return r.err
}

// closePlayers releases players holding outside resources, such as a
// subprocess.
func closePlayers(players []engine.Player, logger *zerolog.Logger) {
	for _, p := range players {
		c, ok := p.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Str("player", p.Name()).Msg("failed to close player")
		}
	}
}

func (s *Simulator) collect(report *Report, o Outcome, logger *zerolog.Logger) {
	report.add(o)

	if o.Success() {
		logger.Debug().Int("game", o.Game).Msgf("game completed, winner %d", o.Result.Winner)
	} else {
		logger.Warn().Int("game", o.Game).Int("blame", o.Blame).Str("kind", string(o.Failure)).Msg(o.Error)
	}

	if s.results != nil {
		if err := s.writeResults(o); err != nil {
			logger.Warn().Err(err).Int("game", o.Game).Msg("failed to write results")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(o); err != nil {
			logger.Warn().Err(err).Int("game", o.Game).Msg("failed to publish outcome")
		}
	}
}

func (s *Simulator) writeResults(o Outcome) error {
	record := metrics.GameRecord{
		ID:       o.Game,
		Seed:     o.Seed,
		Players:  o.Players,
		Winner:   game.NoPlayer,
		Duration: o.Duration,
		Failure:  string(o.Failure),
		Blame:    o.Blame,
		Error:    o.Error,
	}
	if o.Success() {
		r := o.Result
		record.Scores = r.Scores
		record.FinishOrder = r.FinishOrder
		record.Winner = r.Winner
		record.Tie = r.Tie
		record.Turns = r.Turns
	}
	if err := s.results.WriteGame(record); err != nil {
		return err
	}
	if o.Success() && len(o.Result.Moves) > 0 {
		return s.results.WriteMoves(o.Game, o.Result.Moves)
	}
	return nil
}

func (s *Simulator) merge(report *Report) error {
	merger, ok := s.store.(recorder.Merger)
	if !ok || s.dataset == "" {
		return nil
	}

	f, err := os.Create(s.dataset)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	stats, err := merger.Merge(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to merge dataset: %w", err)
	}
	report.Dataset = &stats
	s.logger.Info().
		Int("rows", stats.Rows).
		Int("unlabelled", stats.Unlabelled).
		Msgf("dataset merged into %s", s.dataset)
	return nil
}
