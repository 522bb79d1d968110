package communication

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedEngine answers every command with reply until its input is
// closed. Commands reply does not answer get no reply at all.
func scriptedEngine(t *testing.T, reply func(command string) (string, bool)) *Conn {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	go func() {
		defer respW.Close()
		scanner := bufio.NewScanner(reqR)
		for scanner.Scan() {
			answer, ok := reply(scanner.Text())
			if !ok {
				continue
			}
			if _, err := fmt.Fprintf(respW, "%s\n\n", answer); err != nil {
				return
			}
		}
	}()
	conn := NewConn(respR, reqW)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// fakeEngine answers a fixed set of commands. It never answers "hang".
func fakeEngine(t *testing.T, replies map[string]string) *Conn {
	t.Helper()
	return scriptedEngine(t, func(command string) (string, bool) {
		if command == "hang" {
			return "", false
		}
		reply, ok := replies[command]
		if !ok {
			reply = "? unknown command"
		}
		return reply, true
	})
}

func TestConn(t *testing.T) {
	ctx := context.Background()

	t.Run("success and failure replies", func(t *testing.T) {
		conn := fakeEngine(t, map[string]string{
			"name":         "= pentomino",
			"showboard":    "= row 1\nrow 2",
			"play 1 bogus": "? illegal move",
		})

		reply, err := conn.Send(ctx, "name")
		require.NoError(t, err)
		require.Equal(t, "pentomino", reply)

		reply, err = conn.Send(ctx, "showboard")
		require.NoError(t, err)
		require.Equal(t, "row 1\nrow 2", reply, "Multi-line replies are kept")

		_, err = conn.Send(ctx, "play 1 bogus")
		var cmdErr *CommandError
		require.True(t, errors.As(err, &cmdErr))
		require.Equal(t, "illegal move", cmdErr.Message)
		require.Equal(t, "play 1 bogus", cmdErr.Command)
	})

	t.Run("unexpected reply", func(t *testing.T) {
		conn := fakeEngine(t, map[string]string{"name": "pentomino"})
		_, err := conn.Send(ctx, "name")
		require.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("invalid commands are rejected locally", func(t *testing.T) {
		conn := fakeEngine(t, nil)
		_, err := conn.Send(ctx, "")
		require.ErrorIs(t, err, ErrProtocol)
		_, err = conn.Send(ctx, "play\nquit")
		require.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("abandoned command closes the connection", func(t *testing.T) {
		conn := fakeEngine(t, map[string]string{"name": "= pentomino"})
		timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := conn.Send(timeout, "hang")
		require.ErrorIs(t, err, context.DeadlineExceeded)
		_, err = conn.Send(ctx, "name")
		require.ErrorIs(t, err, ErrClosed)
	})

	t.Run("closed connection", func(t *testing.T) {
		conn := fakeEngine(t, nil)
		require.NoError(t, conn.Close())
		require.NoError(t, conn.Close())
		_, err := conn.Send(ctx, "name")
		require.ErrorIs(t, err, ErrClosed)
	})
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	client := NewClient(fakeEngine(t, map[string]string{
		"clear_board": "=",
		"to_move":     "= 2",
		"all_legal 2": "= a1 b2 c3",
		"play 2 b2":   "=",
		"final_score": "= 10 -4.5 0",
		"all_legal 1": "=",
		"position 0":  "=",
	}))

	require.NoError(t, client.Clear(ctx))

	pid, err := client.ToMove(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, pid)

	moves, err := client.Legal(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "b2", "c3"}, moves)

	moves, err = client.Legal(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, moves)

	require.NoError(t, client.Play(ctx, 2, "b2"))
	require.Error(t, client.Play(ctx, 2, "z9"))

	require.NoError(t, client.Position(ctx, 0, nil), "An empty position is just the command")

	scores, err := client.Score(ctx)
	require.NoError(t, err)
	require.Equal(t, []float64{10, -4.5, 0}, scores)
}

func TestClientGenMove(t *testing.T) {
	ctx := context.Background()
	var seen []string
	client := NewClient(scriptedEngine(t, func(command string) (string, bool) {
		seen = append(seen, command)
		switch {
		case strings.HasPrefix(command, "position"):
			return "=", true
		case strings.HasPrefix(command, "genmove 1"):
			return "= 1", true
		}
		return "= two", true
	}))

	require.NoError(t, client.Position(ctx, 1, []float64{0.5, 1, 0}))
	idx, err := client.GenMove(ctx, 1, []string{"pass", "play 3 of hearts"})
	require.NoError(t, err)
	require.Equal(t, 1, idx)
	require.Equal(t, []string{"position 1 0.5 1 0", `genmove 1 "pass" "play 3 of hearts"`}, seen)

	_, err = client.GenMove(ctx, 0, []string{"pass"})
	require.ErrorIs(t, err, ErrProtocol)
}

func TestProcess(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no shell available")
	}
	script := strings.Join([]string{
		`while read cmd; do`,
		`case "$cmd" in`,
		`quit) printf '=\n\n'; exit 0;;`,
		`to_move) printf '= 1\n\n';;`,
		`*) printf '? unknown command\n\n';;`,
		`esac`,
		`done`,
	}, "\n")

	p, err := Start(context.Background(), sh, "-c", script)
	require.NoError(t, err)

	client := NewClient(p)
	pid, err := client.ToMove(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, pid)

	_, err = p.Send(context.Background(), "genmove")
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))

	require.NoError(t, client.Close(), "Engine should exit cleanly on quit")
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start(context.Background(), "/nonexistent/engine")
	require.Error(t, err)
}
