package engine

import (
	"fmt"
	"slices"

	"rlframework/game"
)

// Apply checks legality and then applies a.
//
// With commit set the live engine is advanced permanently. Otherwise the
// engine is captured, mutated exactly as a commit would, captured again and
// restored, so the call has no net effect on the engine (its random source
// included). Either way the resulting snapshot is returned, drawn from the
// perspective of the player who was to move. A player still running after
// its turn timed out gets ErrNotInProgress.
func (e *Engine) Apply(a Action, commit bool) (*game.Snapshot, error) {
	if d := e.decision; d != nil {
		if !d.enter() {
			return nil, fmt.Errorf("%w: the turn was abandoned", game.ErrNotInProgress)
		}
		defer d.leave()
	}
	if e.status != InProgress {
		return nil, fmt.Errorf("%w: %s", game.ErrNotInProgress, e.status)
	}
	if e.toMove == game.NoPlayer || !a.IsLegal(e) {
		return nil, fmt.Errorf("%w: %s by player %d", game.ErrIllegalAction, a, e.toMove)
	}
	actor := e.toMove

	if commit {
		if err := e.mutate(a, actor); err != nil {
			return nil, err
		}
		return e.Capture(actor), nil
	}

	e.metrics.AddSpeculative()
	before := e.Capture(game.NoPerspective)
	rngState, err := e.src.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: saving random source: %v", game.ErrInvariantViolation, err)
	}

	var after *game.Snapshot
	mutateErr := e.mutate(a, actor)
	if mutateErr == nil {
		after = e.Capture(actor)
	}

	if err := e.src.UnmarshalBinary(rngState); err != nil {
		return nil, fmt.Errorf("%w: restoring random source: %v", game.ErrInvariantViolation, err)
	}
	if err := e.Restore(before); err != nil {
		return nil, err
	}
	if mutateErr != nil {
		return nil, mutateErr
	}
	return after, nil
}

// mutate runs the concrete mutation followed by the bookkeeping shared by
// both apply modes: history, finish order, scores and turn order.
func (e *Engine) mutate(a Action, actor int) error {
	if err := a.Modify(e); err != nil {
		return fmt.Errorf("applying %s: %w", a, err)
	}

	e.turn++
	e.history = append(e.history, game.Turn{Number: e.turn, Player: actor, Action: a.String()})
	if len(e.history) > e.historyLimit {
		e.history = slices.Clone(e.history[len(e.history)-e.historyLimit:])
	}

	// Players may finish independently, in any order
	for _, pid := range slices.Clone(e.unfinished) {
		if e.rules.IsFinished(e, pid) {
			e.unfinished = slices.DeleteFunc(e.unfinished, func(id int) bool { return id == pid })
			e.finishOrder = append(e.finishOrder, pid)
		}
	}

	scores := e.rules.Scores(e)
	if len(scores) != e.NumPlayers() {
		return fmt.Errorf("%w: %s returned %d scores for %d players", game.ErrInvariantViolation, e.rules.Name(), len(scores), e.NumPlayers())
	}
	e.scores = slices.Clone(scores)

	if len(e.unfinished) == 0 || e.rules.IsTerminal(e) || e.turn >= e.maxTurns {
		e.toMove = game.NoPlayer
		return nil
	}

	next := e.rules.NextPlayer(e)
	if !e.IsUnfinished(next) {
		return fmt.Errorf("%w: next player %d is not playing", game.ErrInvariantViolation, next)
	}
	e.toMove = next
	return nil
}

// Capture reads the engine into an independently owned snapshot. A
// perspective other than game.NoPerspective masks what that player cannot see.
func (e *Engine) Capture(perspective int) *game.Snapshot {
	var payload game.Payload
	if perspective == game.NoPerspective {
		payload = e.payload.Copy()
	} else {
		payload = e.payload.Mask(perspective)
	}
	return &game.Snapshot{
		Unfinished:  slices.Clone(e.unfinished),
		FinishOrder: slices.Clone(e.finishOrder),
		Scores:      slices.Clone(e.scores),
		Perspective: perspective,
		ToMove:      e.toMove,
		Turn:        e.turn,
		History:     slices.Clone(e.history),
		Payload:     payload,
	}
}

// Restore resets the engine to an authoritative snapshot.
func (e *Engine) Restore(s *game.Snapshot) error {
	if s.Perspective != game.NoPerspective {
		return fmt.Errorf("%w: cannot restore from the view of player %d", game.ErrInvariantViolation, s.Perspective)
	}
	if err := e.Load(s); err != nil {
		return err
	}
	if e.verifyRestore {
		if got := e.Capture(game.NoPerspective); !got.Equal(s) {
			return fmt.Errorf("%w: restored state differs from snapshot at turn %d", game.ErrInvariantViolation, s.Turn)
		}
	}
	return nil
}

// Load resets the engine to any snapshot, masked ones included. It exists
// for scratch engines used in look-ahead; with hidden-information payloads
// the engine plays on whatever the mask left visible.
func (e *Engine) Load(s *game.Snapshot) error {
	if s.NumPlayers() != e.NumPlayers() {
		return fmt.Errorf("%w: snapshot has %d players, %s has %d", game.ErrInvariantViolation, s.NumPlayers(), e.rules.Name(), e.NumPlayers())
	}
	c := s.Copy()
	e.unfinished = c.Unfinished
	e.finishOrder = c.FinishOrder
	e.scores = c.Scores
	e.toMove = c.ToMove
	e.turn = c.Turn
	e.history = c.History
	e.payload = c.Payload
	if e.status == NotStarted {
		e.status = InProgress
	}
	return nil
}
