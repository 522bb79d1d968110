package simulator

import (
	"slices"
	"time"

	"rlframework/recorder"
)

// ClassStats aggregates the successful games of one player class.
type ClassStats struct {
	Games      int     `json:"games"` // Seats taken, a class may fill several per game
	Wins       int     `json:"wins"`
	Ties       int     `json:"ties"` // Seats sharing the best score of a tied game
	TotalScore float64 `json:"total_score"`
}

func (c ClassStats) WinRate() float64 {
	if c.Games == 0 {
		return 0
	}
	return float64(c.Wins) / float64(c.Games)
}

func (c ClassStats) TieRate() float64 {
	if c.Games == 0 {
		return 0
	}
	return float64(c.Ties) / float64(c.Games)
}

func (c ClassStats) AvgScore() float64 {
	if c.Games == 0 {
		return 0
	}
	return c.TotalScore / float64(c.Games)
}

// Report is the aggregate of a run. Statistics only cover successful games;
// failures are counted per kind and never folded into the statistics.
type Report struct {
	RunID     string                 `json:"run_id"`
	Games     int                    `json:"games"` // Requested
	Successes int                    `json:"successes"`
	Failures  map[Kind]int           `json:"failures"`
	Skipped   int                    `json:"skipped"` // Never started because the run was cancelled
	Ties      int                    `json:"ties"`
	Classes   map[string]*ClassStats `json:"classes"`
	Outcomes  []Outcome              `json:"-"` // In completion order
	Dataset   *recorder.MergeStats   `json:"dataset,omitempty"`
	Started   time.Time              `json:"started"`
	Duration  time.Duration          `json:"duration"`
}

func newReport(runID string, games int) *Report {
	return &Report{
		RunID:    runID,
		Games:    games,
		Failures: map[Kind]int{},
		Classes:  map[string]*ClassStats{},
		Started:  time.Now(),
	}
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if !o.Success() {
		r.Failures[o.Failure]++
		return
	}

	r.Successes++
	result := o.Result
	if result.Tie {
		r.Ties++
	}
	best := slices.Max(result.Scores)
	for pid, class := range result.Classes {
		stats, ok := r.Classes[class]
		if !ok {
			stats = &ClassStats{}
			r.Classes[class] = stats
		}
		stats.Games++
		stats.TotalScore += result.Scores[pid]
		switch {
		case result.Winner == pid:
			stats.Wins++
		case result.Tie && result.Scores[pid] == best:
			stats.Ties++
		}
	}
}

func (r *Report) FailureCount() int {
	total := 0
	for _, n := range r.Failures {
		total += n
	}
	return total
}

// TieRate is the share of successful games without a unique winner.
func (r *Report) TieRate() float64 {
	if r.Successes == 0 {
		return 0
	}
	return float64(r.Ties) / float64(r.Successes)
}

// Outcome looks up the outcome of one game.
func (r *Report) Outcome(game int) (Outcome, bool) {
	idx := slices.IndexFunc(r.Outcomes, func(o Outcome) bool { return o.Game == game })
	if idx < 0 {
		return Outcome{}, false
	}
	return r.Outcomes[idx], true
}
