package agent

import (
	"math"

	"rlframework/game"

	"golang.org/x/exp/rand"
)

// Random scores every snapshot uniformly at random. The returned function
// owns its random source and must not be shared between games.
func Random(seed uint64) game.Evaluate {
	rng := rand.New(rand.NewSource(seed))
	return func(s *game.Snapshot, perspective int) float64 {
		return rng.Float64()
	}
}

// ScoreLead is the perspective player's score minus the best opposing score,
// plus a bonus for finishing early.
func ScoreLead(s *game.Snapshot, perspective int) float64 {
	best := math.Inf(-1)
	for pid, score := range s.Scores {
		if pid != perspective && score > best {
			best = score
		}
	}
	if math.IsInf(best, -1) {
		best = 0
	}

	lead := s.Scores[perspective] - best
	if rank := s.Rank(perspective); rank > 0 {
		lead += float64(s.NumPlayers()-rank+1) / float64(s.NumPlayers())
	}
	return lead
}
