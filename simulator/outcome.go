package simulator

import (
	"context"
	"errors"
	"time"

	"rlframework/engine"
	"rlframework/game"
)

// Kind classifies a failed game.
type Kind string

const (
	KindIllegalAction      Kind = "illegal_action"
	KindPlayerTimeout      Kind = "player_timeout"
	KindGameTimeout        Kind = "game_timeout"
	KindInvariantViolation Kind = "invariant_violation"
	KindWorkerFailure      Kind = "worker_failure"
)

// Classify maps an error onto a failure kind. Anything unrecognised is a
// worker failure.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, game.ErrIllegalAction):
		return KindIllegalAction
	case errors.Is(err, game.ErrPlayerTimeout):
		return KindPlayerTimeout
	case errors.Is(err, game.ErrGameTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindGameTimeout
	case errors.Is(err, game.ErrInvariantViolation), errors.Is(err, game.ErrNoLegalActions):
		return KindInvariantViolation
	}
	return KindWorkerFailure
}

// Outcome is the immutable report of one game, successful or not.
type Outcome struct {
	Game     int            `json:"game"`
	Seed     uint64         `json:"seed"`
	Players  []string       `json:"players"`
	Classes  []string       `json:"classes"`
	Result   *engine.Result `json:"result,omitempty"` // Nil on failure
	Failure  Kind           `json:"failure,omitempty"`
	Blame    int            `json:"blame"` // Player slot at fault, game.NoPlayer if none
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`

	err error
}

func (o Outcome) Success() bool {
	return o.Failure == ""
}

// Err returns the error that failed the game.
func (o Outcome) Err() error {
	return o.err
}

func (o *Outcome) fail(err error) {
	o.err = err
	o.Failure = Classify(err)
	o.Blame = game.Blame(err)
	o.Error = err.Error()
	o.Result = nil
}
