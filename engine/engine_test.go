package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"rlframework/game"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newRace(t *testing.T, goals []int, options ...Option) *Engine {
	t.Helper()
	e, err := New(&race{goals: goals}, options...)
	require.NoError(t, err, "Engine should be created")
	players := make([]Player, len(goals))
	for i := range players {
		players[i] = &firstMover{}
	}
	require.NoError(t, e.Start(players), "Game should start")
	return e
}

func TestEngineStep(t *testing.T) {
	t.Run("two players finishing at different turns", func(t *testing.T) {
		e := newRace(t, []int{1, 3})

		for i := 0; i < 4; i++ {
			require.NoError(t, e.Step(context.Background()), "Step %d should succeed", i)
		}

		require.Equal(t, []int{0, 1}, e.FinishOrder(), "Both players should have finished")
		require.Len(t, e.History(), 4, "History should hold every turn")
		require.Equal(t, Finished, e.Status(), "Game should be finished")
		require.Equal(t, game.NoPlayer, e.ToMove(), "Nobody should be to move")

		r := e.Result()
		require.NotNil(t, r)
		require.Equal(t, []float64{1, 3}, r.Scores)
		require.Equal(t, 1, r.Winner)
		require.False(t, r.Tie)
		require.Equal(t, 4, r.Turns)
	})

	t.Run("stepping a finished game", func(t *testing.T) {
		e := newRace(t, []int{1, 1})
		_, err := e.Run(context.Background())
		require.NoError(t, err)

		err = e.Step(context.Background())
		require.ErrorIs(t, err, game.ErrNotInProgress)
	})

	t.Run("history is bounded", func(t *testing.T) {
		e := newRace(t, []int{5, 5}, WithHistoryLimit(3))
		_, err := e.Run(context.Background())
		require.NoError(t, err)

		history := e.History()
		require.Len(t, history, 3, "Only the most recent turns should be kept")
		require.Equal(t, 10, history[2].Number)
	})

	t.Run("move limit ends the game", func(t *testing.T) {
		e := newRace(t, []int{50, 50}, WithMaxTurns(6))
		r, err := e.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, 6, r.Turns)
		require.Empty(t, r.FinishOrder, "Nobody reached the goal")
		require.True(t, r.Tie, "Equal scores should be reported as a tie")
		require.Equal(t, game.NoPlayer, r.Winner)
	})
}

func TestEngineApply(t *testing.T) {
	t.Run("speculative apply leaves the engine untouched", func(t *testing.T) {
		e := newRace(t, []int{3, 3}, WithVerifyRestore())
		before := e.Capture(game.NoPerspective)

		first, err := e.Apply(raceStep{player: 0}, false)
		require.NoError(t, err)
		require.True(t, before.Equal(e.Capture(game.NoPerspective)), "Engine should be restored")

		second, err := e.Apply(raceStep{player: 0}, false)
		require.NoError(t, err)
		require.True(t, first.Equal(second), "Repeated evaluation should give the same result")
		require.True(t, before.Equal(e.Capture(game.NoPerspective)), "Engine should be restored")

		require.Equal(t, 1, first.Turn)
		require.Equal(t, 1, first.ToMove)
		require.Equal(t, 0, first.Perspective, "Result should be drawn for the mover")
	})

	t.Run("speculative apply restores the random source", func(t *testing.T) {
		e := newRace(t, []int{3, 3})
		other := newRace(t, []int{3, 3})

		_, err := e.Apply(raceStep{player: 0}, false)
		require.NoError(t, err)

		require.Equal(t, other.Rand().Uint64(), e.Rand().Uint64(), "Random streams should not diverge")
	})

	t.Run("commit returns the resulting snapshot", func(t *testing.T) {
		e := newRace(t, []int{3, 3})
		speculative, err := e.Apply(raceStep{player: 0}, false)
		require.NoError(t, err)

		committed, err := e.Apply(raceStep{player: 0}, true)
		require.NoError(t, err)
		require.True(t, speculative.Equal(committed), "Both modes should agree")
		require.Equal(t, 1, e.Turn())
	})

	t.Run("illegal actions are rejected without mutation", func(t *testing.T) {
		e := newRace(t, []int{3, 3})
		before := e.Capture(game.NoPerspective)

		for _, commit := range []bool{true, false} {
			_, err := e.Apply(raceStep{player: 1}, commit)
			require.ErrorIs(t, err, game.ErrIllegalAction)
			require.True(t, before.Equal(e.Capture(game.NoPerspective)), "Engine should not change")
		}
	})

	t.Run("masked snapshots hide other players' secrets", func(t *testing.T) {
		e := newRace(t, []int{3, 3})
		view := e.Capture(1)
		secret := view.Payload.(*raceState).secret

		require.Zero(t, secret[0], "Secret of player 0 should be hidden")
		require.NotZero(t, secret[1], "Own secret should be visible")
	})
}

func TestEngineRestore(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		e := newRace(t, []int{3, 3})
		_, err := e.Apply(raceStep{player: 0}, true)
		require.NoError(t, err)

		saved := e.Capture(game.NoPerspective)
		_, err = e.Apply(raceStep{player: 1}, true)
		require.NoError(t, err)
		require.False(t, saved.Equal(e.Capture(game.NoPerspective)))

		require.NoError(t, e.Restore(saved))
		require.True(t, saved.Equal(e.Capture(game.NoPerspective)), "Engine should equal the snapshot")
	})

	t.Run("restoring a masked snapshot", func(t *testing.T) {
		e := newRace(t, []int{3, 3})
		err := e.Restore(e.Capture(0))
		require.ErrorIs(t, err, game.ErrInvariantViolation)
	})

	t.Run("snapshots do not alias the engine", func(t *testing.T) {
		e := newRace(t, []int{3, 3})
		saved := e.Capture(game.NoPerspective)
		saved.Payload.(*raceState).pos[0] = 2
		saved.Scores[0] = 42

		require.Equal(t, 0, e.Payload().(*raceState).pos[0])
		require.Equal(t, 0.0, e.Score(0))
	})
}

func TestEngineRun(t *testing.T) {
	t.Run("same seed same game", func(t *testing.T) {
		a := newRace(t, []int{2, 4, 3}, WithSeed(7))
		b := newRace(t, []int{2, 4, 3}, WithSeed(7))

		ra, err := a.Run(context.Background())
		require.NoError(t, err)
		rb, err := b.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, ra.FinishOrder, rb.FinishOrder)
		require.Equal(t, ra.Scores, rb.Scores)
		require.True(t, a.Capture(game.NoPerspective).Equal(b.Capture(game.NoPerspective)), "Final states should match")
	})

	t.Run("finished players never move again", func(t *testing.T) {
		e := newRace(t, []int{1, 4, 2})
		finished := map[int]bool{}
		for e.Status() == InProgress {
			require.False(t, finished[e.ToMove()], "Finished player %d is to move", e.ToMove())
			require.NoError(t, e.Step(context.Background()))
			for _, pid := range e.FinishOrder() {
				require.False(t, e.IsUnfinished(pid), "Player %d is both finished and unfinished", pid)
				finished[pid] = true
			}
		}
		require.Equal(t, []int{0, 2, 1}, e.FinishOrder())
	})

	t.Run("illegal move aborts the game", func(t *testing.T) {
		e, err := New(&race{goals: []int{3, 3}})
		require.NoError(t, err)
		require.NoError(t, e.Start([]Player{&firstMover{}, &cheater{}}))

		_, err = e.Run(context.Background())
		require.ErrorIs(t, err, game.ErrIllegalAction)
		require.Equal(t, 1, game.Blame(err), "The cheater should be blamed")
		require.Equal(t, Aborted, e.Status())
	})

	t.Run("slow player times out", func(t *testing.T) {
		e, err := New(&race{goals: []int{3, 3}}, WithTurnTimeout(10*time.Millisecond))
		require.NoError(t, err)
		require.NoError(t, e.Start([]Player{&sleeper{delay: 200 * time.Millisecond}, &firstMover{}}))

		_, err = e.Run(context.Background())
		require.ErrorIs(t, err, game.ErrPlayerTimeout)
		require.Equal(t, 0, game.Blame(err))
		require.Equal(t, Aborted, e.Status())
	})

	t.Run("abandoned player cannot touch the engine", func(t *testing.T) {
		e, err := New(&race{goals: []int{3, 3}}, WithTurnTimeout(5*time.Millisecond))
		require.NoError(t, err)
		p := &spinner{spin: 50 * time.Millisecond}
		require.NoError(t, e.Start([]Player{p, &firstMover{}}))

		_, err = e.Run(context.Background())
		require.ErrorIs(t, err, game.ErrPlayerTimeout)
		require.Equal(t, 0, game.Blame(err))
		before := e.Capture(game.NoPerspective)
		<-p.done

		require.Positive(t, p.refused, "Applies after the timeout should be refused")
		require.Equal(t, Aborted, e.Status())
		require.True(t, before.Equal(e.Capture(game.NoPerspective)), "The engine should be left as it was")
	})

	t.Run("game timeout is not blamed on a player", func(t *testing.T) {
		e, err := New(&race{goals: []int{3, 3}}, WithGameTimeout(10*time.Millisecond))
		require.NoError(t, err)
		require.NoError(t, e.Start([]Player{&sleeper{delay: 200 * time.Millisecond}, &firstMover{}}))

		_, err = e.Run(context.Background())
		require.ErrorIs(t, err, game.ErrGameTimeout)
		require.Equal(t, game.NoPlayer, game.Blame(err))
	})

	t.Run("recording and rewards", func(t *testing.T) {
		rec := &memoryRecorder{}
		e, err := New(&race{goals: []int{1, 3}}, WithRecorder(rec), WithTarget(TargetWin), WithMetrics())
		require.NoError(t, err)
		p0, p1 := &firstMover{}, &firstMover{}
		require.NoError(t, e.Start([]Player{p0, p1}))

		r, err := e.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, rec.samples, 4, "One sample per committed action")
		require.Equal(t, []int{0, 1, 1, 1}, []int{rec.samples[0].Player, rec.samples[1].Player, rec.samples[2].Player, rec.samples[3].Player})
		require.Equal(t, 0, rec.samples[0].Turn, "Samples hold the pre-action state")
		require.Equal(t, []float64{0, 1}, rec.targets)
		require.True(t, rec.closed, "Recorder should be closed")
		require.Equal(t, 1.0, p1.reward)
		require.Equal(t, 0.0, p0.reward)
		require.Len(t, r.Moves, 4, "Move metrics should be collected")
		require.Equal(t, 1, r.Moves[0].LegalActions)
	})

	t.Run("renderer sees every turn", func(t *testing.T) {
		var buf bytes.Buffer
		e := newRace(t, []int{1, 1}, WithRenderer(NewTextRenderer(&buf)))
		_, err := e.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
		require.Contains(t, buf.String(), "game over")
	})
}

func TestCandidateActions(t *testing.T) {
	t.Run("cap is enforced", func(t *testing.T) {
		e, err := New(&race{goals: []int{3, 3}, wide: 49})
		require.NoError(t, err)
		require.NoError(t, e.Start([]Player{&firstMover{}, &firstMover{}}))

		require.Len(t, e.CandidateActions(0, 0, e.Rand()), 50)

		rng := rand.New(rand.NewSource(1))
		actions := e.CandidateActions(0, 1, rng)
		require.Len(t, actions, 1)
		require.True(t, actions[0].IsLegal(e), "Sampled action should be legal")

		actions = e.CandidateActions(0, 10, rng)
		require.Len(t, actions, 10)
		for i := 1; i < len(actions); i++ {
			require.Less(t, actions[i-1].(raceStep).noop, actions[i].(raceStep).noop, "Generation order should be kept")
		}
	})
}

func TestDecideWinner(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		winner int
		tie    bool
	}{
		{"unique maximum", []float64{1, 5, 3}, 1, false},
		{"tie for best", []float64{5, 2, 5}, game.NoPlayer, true},
		{"tie below best", []float64{1, 1, 3}, 2, false},
		{"single player", []float64{-2}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, tie := decideWinner(tt.scores)
			require.Equal(t, tt.winner, winner)
			require.Equal(t, tt.tie, tie)
		})
	}
}

func TestTargets(t *testing.T) {
	r := &Result{Scores: []float64{4, 4, 1}, FinishOrder: []int{2, 0}, Winner: game.NoPlayer, Tie: true}

	require.Equal(t, []float64{4, 4, 1}, r.Targets(TargetScore))
	require.Equal(t, []float64{0.5, 0.5, 0}, r.Targets(TargetWin))
	require.Equal(t, []float64{2.0 / 3, 0, 1}, r.Targets(TargetRank))
}
