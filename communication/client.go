package communication

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Client wraps the common rule engine commands.
type Client struct {
	c Communicator
}

func NewClient(c Communicator) *Client {
	return &Client{c: c}
}

func (c *Client) Clear(ctx context.Context) error {
	_, err := c.c.Send(ctx, "clear_board")
	return err
}

func (c *Client) ToMove(ctx context.Context) (int, error) {
	reply, err := c.c.Send(ctx, "to_move")
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(reply)
	if err != nil {
		return 0, fmt.Errorf("%w: bad player %q", ErrProtocol, reply)
	}
	return pid, nil
}

func (c *Client) Play(ctx context.Context, who int, move string) error {
	_, err := c.c.Send(ctx, fmt.Sprintf("play %d %s", who, move))
	return err
}

// Legal lists the moves available to who, one per whitespace separated field.
func (c *Client) Legal(ctx context.Context, who int) ([]string, error) {
	reply, err := c.c.Send(ctx, fmt.Sprintf("all_legal %d", who))
	if err != nil {
		return nil, err
	}
	return strings.Fields(reply), nil
}

func (c *Client) Score(ctx context.Context) ([]float64, error) {
	reply, err := c.c.Send(ctx, "final_score")
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(reply)
	scores := make([]float64, len(fields))
	for i, f := range fields {
		scores[i], err = strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad score %q", ErrProtocol, f)
		}
	}
	return scores, nil
}

// Position hands the engine the state as who observes it.
func (c *Client) Position(ctx context.Context, who int, vector []float64) error {
	fields := make([]string, len(vector))
	for i, v := range vector {
		fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	_, err := c.c.Send(ctx, strings.TrimSpace(fmt.Sprintf("position %d %s", who, strings.Join(fields, " "))))
	return err
}

// GenMove asks the engine to pick one of moves for who and returns its index.
// Moves are sent quoted so they may contain spaces.
func (c *Client) GenMove(ctx context.Context, who int, moves []string) (int, error) {
	quoted := make([]string, len(moves))
	for i, m := range moves {
		quoted[i] = strconv.Quote(m)
	}
	reply, err := c.c.Send(ctx, fmt.Sprintf("genmove %d %s", who, strings.Join(quoted, " ")))
	if err != nil {
		return 0, err
	}
	idx, err := strconv.Atoi(reply)
	if err != nil {
		return 0, fmt.Errorf("%w: bad move index %q", ErrProtocol, reply)
	}
	return idx, nil
}

func (c *Client) Close() error {
	return c.c.Close()
}
