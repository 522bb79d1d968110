// Package recorder provides sinks for the training records emitted by
// engines. Every game gets its own shard so concurrent games never share a
// writer.
package recorder

import (
	"io"
	"strconv"

	"rlframework/engine"
)

// Store opens one recorder per game.
type Store interface {
	Open(game int) (engine.Recorder, error)
}

// Merger is implemented by stores whose shards are combined into one
// dataset once every game has finished.
type Merger interface {
	Merge(w io.Writer) (MergeStats, error)
}

type MergeStats struct {
	Shards     int
	Labelled   int
	Unlabelled int // Games that failed before their targets were known
	Rows       int
}

func formatFloats(values []float64) []string {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return fields
}
