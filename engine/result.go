package engine

import (
	"slices"
	"time"

	"rlframework/game"
	"rlframework/metrics"
)

// Result is the terminal report of a finished game.
type Result struct {
	ID             int
	Seed           uint64
	Rules          string
	Players        []string
	Classes        []string
	Scores         []float64
	FinishOrder    []int
	Winner         int  // game.NoPlayer when Tie is set
	Tie            bool // Several players share the best score
	Turns          int
	StartingPlayer int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	Moves          []metrics.MoveMetric // Only collected WithMetrics
}

// Target maps a finished game to the training target of one player.
type Target func(r *Result, pid int) float64

// TargetScore uses the final score as the target.
func TargetScore(r *Result, pid int) float64 {
	return r.Scores[pid]
}

// TargetWin is 1 for the winner, 0.5 for every player tied for the best
// score and 0 otherwise.
func TargetWin(r *Result, pid int) float64 {
	if r.Winner == pid {
		return 1
	}
	if r.Tie && r.Scores[pid] == slices.Max(r.Scores) {
		return 0.5
	}
	return 0
}

// TargetRank is 1 for the first player to finish, decreasing linearly with
// finish position. Players that never finished get 0.
func TargetRank(r *Result, pid int) float64 {
	n := len(r.Scores)
	idx := slices.Index(r.FinishOrder, pid)
	if idx < 0 {
		return 0
	}
	return float64(n-idx) / float64(n)
}

// Targets evaluates target for every player.
func (r *Result) Targets(target Target) []float64 {
	targets := make([]float64, len(r.Scores))
	for pid := range targets {
		targets[pid] = target(r, pid)
	}
	return targets
}

// decideWinner returns the unique player with the maximum score. Ties are
// reported, never broken.
func decideWinner(scores []float64) (int, bool) {
	winner := game.NoPlayer
	best := 0.0
	tie := false
	for pid, score := range scores {
		switch {
		case winner == game.NoPlayer || score > best:
			winner, best, tie = pid, score, false
		case score == best:
			tie = true
		}
	}
	if tie {
		return game.NoPlayer, true
	}
	return winner, false
}
