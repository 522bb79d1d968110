package recorder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rlframework/engine"

	"github.com/redis/go-redis/v9"
)

const flushTimeout = 5 * time.Second

// Redis buffers each game's records and pushes them with one pipeline when
// the game closes. Labelled rows land in the `<prefix>:samples` list as
// `v...,target`; games closed without labels are listed in `<prefix>:failed`.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "selfplay"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) SamplesKey() string {
	return r.prefix + ":samples"
}

func (r *Redis) FailedKey() string {
	return r.prefix + ":failed"
}

func (r *Redis) Open(game int) (engine.Recorder, error) {
	return &redisShard{store: r, game: game}, nil
}

type redisShard struct {
	store   *Redis
	game    int
	samples []engine.Sample
	targets []float64
}

func (s *redisShard) Record(sample engine.Sample) error {
	s.samples = append(s.samples, sample)
	return nil
}

func (s *redisShard) Label(targets []float64) error {
	s.targets = targets
	return nil
}

func (s *redisShard) rows() ([]any, error) {
	rows := make([]any, 0, len(s.samples))
	for _, sample := range s.samples {
		if sample.Player < 0 || sample.Player >= len(s.targets) {
			return nil, fmt.Errorf("game %d: no target for player %d", s.game, sample.Player)
		}
		fields := append(formatFloats(sample.Vector), strconv.FormatFloat(s.targets[sample.Player], 'g', -1, 64))
		rows = append(rows, strings.Join(fields, ","))
	}
	return rows, nil
}

func (s *redisShard) Close() error {
	if len(s.samples) == 0 && s.targets == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	pipe := s.store.client.Pipeline()
	if s.targets == nil {
		pipe.RPush(ctx, s.store.FailedKey(), s.game)
	} else {
		rows, err := s.rows()
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			pipe.RPush(ctx, s.store.SamplesKey(), rows...)
		}
		pipe.Incr(ctx, s.store.prefix+":games")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push records of game %d: %w", s.game, err)
	}
	return nil
}
