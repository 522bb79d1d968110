package game

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalAction an action failed its legality check when applied
	ErrIllegalAction = errors.New("illegal action")

	// ErrPlayerTimeout a player exceeded its decision bound
	ErrPlayerTimeout = errors.New("player timeout")

	// ErrGameTimeout the whole game exceeded its time bound
	ErrGameTimeout = errors.New("game timeout")

	// ErrInvariantViolation programming-error class fault, never retried
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrWorkerFailure uncaught fault inside one simulated game
	ErrWorkerFailure = errors.New("worker failure")

	// ErrNoLegalActions an unfinished player was left without any action
	ErrNoLegalActions = errors.New("no legal actions")

	// ErrNotInProgress the engine is not accepting turns
	ErrNotInProgress = errors.New("game not in progress")
)

// PlayerError attributes a failure to the player slot that caused it.
type PlayerError struct {
	Player int
	Stage  string // choose, verify or apply
	Err    error
}

func (e *PlayerError) Error() string {
	return fmt.Sprintf("player %d failed to %s: %v", e.Player, e.Stage, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}

// Blame returns the player slot a failure is attributed to, or NoPlayer.
func Blame(err error) int {
	var pe *PlayerError
	if errors.As(err, &pe) {
		return pe.Player
	}
	return NoPlayer
}
