package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rlframework/game"
	"rlframework/metrics"
)

// Run executes the game loop until the game finishes or fails.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.status == NotStarted {
		return nil, fmt.Errorf("engine: game %d has not been started", e.id)
	}
	if e.gameTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, e.gameTimeout, game.ErrGameTimeout)
		defer cancel()
	}

	for e.status == InProgress {
		if ctx.Err() != nil {
			err := context.Cause(ctx)
			e.abort(err)
			return nil, err
		}
		if err := e.Step(ctx); err != nil {
			return nil, err
		}
	}
	if e.status != Finished {
		return nil, fmt.Errorf("%w: game %d is %s", game.ErrNotInProgress, e.id, e.status)
	}
	return e.result, nil
}

// Step plays one turn: the player to move chooses an action, which is
// re-checked and committed. Any error aborts the game.
func (e *Engine) Step(ctx context.Context) error {
	if e.status != InProgress {
		return fmt.Errorf("%w: game %d is %s", game.ErrNotInProgress, e.id, e.status)
	}
	pid := e.toMove
	if pid == game.NoPlayer {
		e.finish()
		return nil
	}
	if !e.IsUnfinished(pid) {
		err := fmt.Errorf("%w: player %d is asked to move after finishing", game.ErrInvariantViolation, pid)
		e.abort(err)
		return err
	}

	var sample Sample
	if e.recorder != nil {
		sample = Sample{Game: e.id, Turn: e.turn, Player: pid, Vector: e.Capture(pid).Vector(pid)}
	}

	e.metrics.Start()
	action, err := e.choose(ctx, pid)
	if err != nil {
		// Cancellation from above is not the player's fault
		if errors.Is(err, game.ErrGameTimeout) || errors.Is(err, context.Canceled) {
			e.abort(err)
			return err
		}
		return e.fail(pid, "choose", err)
	}
	if action == nil || !action.IsLegal(e) {
		return e.fail(pid, "verify", fmt.Errorf("%w: %v", game.ErrIllegalAction, action))
	}
	if _, err := e.Apply(action, true); err != nil {
		return e.fail(pid, "apply", err)
	}

	decision := e.metrics.Complete()
	if e.collect {
		e.moves = append(e.moves, metrics.MoveMetric{
			Step:           e.turn,
			Player:         pid,
			Action:         action.String(),
			DecisionMetric: decision,
		})
	}
	e.logger.Debug().Int("turn", e.turn).Int("player", pid).Msgf("committed %s", action)

	if e.recorder != nil {
		if err := e.recorder.Record(sample); err != nil {
			e.logger.Warn().Err(err).Msg("recording failed, dropping recorder")
			e.closeRecorder()
		}
	}
	if e.renderer != nil {
		e.renderer.Render(e.Capture(game.NoPerspective))
	}

	if e.toMove == game.NoPlayer {
		e.finish()
	}
	return nil
}

type choice struct {
	action Action
	err    error
}

// choose asks pid for a move, bounded by the turn timeout. A player that
// overruns is abandoned; the engine is aborted and must not be reused.
func (e *Engine) choose(ctx context.Context, pid int) (Action, error) {
	if e.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, e.turnTimeout, game.ErrPlayerTimeout)
		defer cancel()
	}

	d := &decision{}
	e.decision = d
	done := make(chan choice, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- choice{err: fmt.Errorf("%w: player panicked: %v", game.ErrWorkerFailure, r)}
			}
		}()
		action, err := e.players[pid].ChooseMove(ctx, e)
		done <- choice{action, err}
	}()

	select {
	case c := <-done:
		e.decision = nil
		if c.err != nil && ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return c.action, c.err
	case <-ctx.Done():
		d.abandon()
		return nil, context.Cause(ctx)
	}
}

// decision fences off a player goroutine that outlives its turn. Speculative
// applies hold the lock, so once the turn is abandoned the engine can only
// be touched by its own goroutine.
type decision struct {
	mu        sync.Mutex
	abandoned bool
}

// enter reports whether the player may still use the engine. On success the
// caller must call leave.
func (d *decision) enter() bool {
	d.mu.Lock()
	if d.abandoned {
		d.mu.Unlock()
		return false
	}
	return true
}

func (d *decision) leave() {
	d.mu.Unlock()
}

// abandon waits for any speculative apply in progress to finish.
func (d *decision) abandon() {
	d.mu.Lock()
	d.abandoned = true
	d.mu.Unlock()
}

func (e *Engine) fail(pid int, stage string, err error) error {
	err = &game.PlayerError{Player: pid, Stage: stage, Err: err}
	e.abort(err)
	return err
}

func (e *Engine) abort(err error) {
	e.status = Aborted
	e.closeRecorder()
	e.logger.Warn().Err(err).Int("turn", e.turn).Msg("game aborted")
}

func (e *Engine) finish() {
	e.status = Finished
	e.toMove = game.NoPlayer

	n := e.NumPlayers()
	names := make([]string, n)
	classes := make([]string, n)
	for pid, p := range e.players {
		names[pid] = p.Name()
		classes[pid] = p.Name()
		if c, ok := p.(Classer); ok {
			classes[pid] = c.Class()
		}
	}

	end := time.Now()
	winner, tie := decideWinner(e.scores)
	e.result = &Result{
		ID:             e.id,
		Seed:           e.seed,
		Rules:          e.rules.Name(),
		Players:        names,
		Classes:        classes,
		Scores:         e.Capture(game.NoPerspective).Scores,
		FinishOrder:    e.FinishOrder(),
		Winner:         winner,
		Tie:            tie,
		Turns:          e.turn,
		StartingPlayer: e.startingPlayer,
		StartTime:      e.startTime,
		EndTime:        end,
		Duration:       end.Sub(e.startTime),
		Moves:          e.moves,
	}

	targets := e.result.Targets(e.target)
	if e.recorder != nil {
		if err := e.recorder.Label(targets); err != nil {
			e.logger.Warn().Err(err).Msg("labelling failed")
		}
		e.closeRecorder()
	}
	for pid, p := range e.players {
		if r, ok := p.(Rewarder); ok {
			r.Reward(targets[pid])
		}
	}

	e.logger.Info().
		Floats64("scores", e.result.Scores).
		Ints("finish_order", e.result.FinishOrder).
		Bool("tie", tie).
		Msgf("game over after %d turns, winner %d", e.turn, winner)
}

func (e *Engine) closeRecorder() {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("failed to close recorder")
	}
	e.recorder = nil
}
