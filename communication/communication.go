// Package communication talks to out-of-process rule engines over a line
// based request/response protocol. A request is a single line. A reply starts
// with "=" on success or "?" on failure and ends with an empty line.
package communication

import (
	"context"
	"errors"
	"fmt"
)

// Communicator sends one command at a time and returns the reply text.
type Communicator interface {
	Send(ctx context.Context, command string) (string, error)
	Close() error
}

var (
	ErrClosed   = errors.New("connection closed")
	ErrProtocol = errors.New("protocol error")
)

// CommandError is a "?" reply from the engine.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed: %s", e.Command, e.Message)
}
