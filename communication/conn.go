package communication

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

type reply struct {
	text string
	err  error
}

// Conn speaks the protocol over any reader/writer pair. Commands are
// serialised; a command abandoned through its context leaves the stream out
// of sync, so the connection is closed.
type Conn struct {
	mu     sync.Mutex
	r      *bufio.Reader
	w      io.Writer
	closed bool
}

func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{r: bufio.NewReader(r), w: w}
}

func (c *Conn) Send(ctx context.Context, command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" || strings.ContainsAny(command, "\r\n") {
		return "", fmt.Errorf("%w: invalid command %q", ErrProtocol, command)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", context.Cause(ctx)
	}

	done := make(chan reply, 1)
	go func() {
		if _, err := io.WriteString(c.w, command+"\n"); err != nil {
			done <- reply{err: fmt.Errorf("failed to send %q: %w", command, err)}
			return
		}
		text, err := c.read(command)
		done <- reply{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		c.close()
		return "", context.Cause(ctx)
	}
}

func (c *Conn) read(command string) (string, error) {
	var lines []string
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read reply to %q: %w", command, err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(lines) == 0 {
				continue // Stray separator
			}
			break
		}
		lines = append(lines, line)
	}

	raw := lines[0]
	status := raw[0]
	lines[0] = raw[1:]
	text := strings.TrimSpace(strings.Join(lines, "\n"))
	switch status {
	case '=':
		return text, nil
	case '?':
		return "", &CommandError{Command: command, Message: text}
	}
	return "", fmt.Errorf("%w: unexpected reply %q to %q", ErrProtocol, raw, command)
}

func (c *Conn) close() {
	c.closed = true
	if closer, ok := c.w.(io.Closer); ok {
		closer.Close()
	}
}

// Close closes the writing side. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if closer, ok := c.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
