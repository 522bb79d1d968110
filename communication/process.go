package communication

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// QuitTimeout bounds how long Close waits for the engine to exit.
const QuitTimeout = 2 * time.Second

// Process is an engine running as a child process, spoken to over its
// standard input and output.
type Process struct {
	*Conn
	cmd    *exec.Cmd
	logger zerolog.Logger
}

// Start spawns the engine at path. Its standard error is forwarded to the
// log at debug level. The process is killed if ctx is cancelled.
func Start(ctx context.Context, path string, args ...string) (*Process, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine %s: %w", path, err)
	}

	p := &Process{
		Conn:   NewConn(stdout, stdin),
		cmd:    cmd,
		logger: log.With().Str("engine", path).Int("pid", cmd.Process.Pid).Logger(),
	}
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			p.logger.Debug().Msg(scanner.Text())
		}
	}()
	p.logger.Info().Msg("engine started")
	return p, nil
}

// Close asks the engine to quit and waits for it, killing it if it does not
// exit in time.
func (p *Process) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), QuitTimeout)
	defer cancel()
	if _, err := p.Send(ctx, "quit"); err != nil && !errors.Is(err, ErrClosed) {
		p.logger.Warn().Err(err).Msg("engine did not acknowledge quit")
	}
	_ = p.Conn.Close()

	// Wait closes the pipes, so it only runs once the conversation is over
	exited := make(chan error, 1)
	go func() {
		exited <- p.cmd.Wait()
	}()
	select {
	case err := <-exited:
		p.logger.Info().Msg("engine stopped")
		return err
	case <-ctx.Done():
		_ = p.cmd.Process.Kill()
		return fmt.Errorf("engine did not exit, killed: %w", <-exited)
	}
}
