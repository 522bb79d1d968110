package agent

import (
	"rlframework/engine"
	"rlframework/game"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
)

// MaxCutoff is the default rollout depth.
const MaxCutoff = 50

// Rollout plays random actions on a scratch engine loaded from the snapshot
// and evaluates wherever the playout stops. The scratch engine plays on the
// snapshot as given, so with hidden information it only sees what the
// perspective player sees.
func Rollout(rules engine.Rules, cutoff int, fallback game.Evaluate, seed uint64) game.Evaluate {
	if cutoff <= 0 {
		cutoff = MaxCutoff
	}
	if fallback == nil {
		fallback = ScoreLead
	}
	rng := rand.New(rand.NewSource(seed))

	return func(s *game.Snapshot, perspective int) float64 {
		scratch, err := engine.New(rules, engine.WithSeed(rng.Uint64()), engine.WithLogger(zerolog.Nop()))
		if err != nil {
			return fallback(s, perspective)
		}
		if err := scratch.Load(s); err != nil {
			return fallback(s, perspective)
		}

		// Rollout till game over or for cutoff number of moves
		for depth := 0; depth < cutoff && scratch.ToMove() != game.NoPlayer; depth++ {
			moves := scratch.CandidateActions(scratch.ToMove(), 0, rng)
			if len(moves) == 0 {
				break
			}
			move := moves[rng.Intn(len(moves))] // Random rollout policy
			if _, err := scratch.Apply(move, true); err != nil {
				break
			}
		}

		return fallback(scratch.Capture(perspective), perspective)
	}
}
