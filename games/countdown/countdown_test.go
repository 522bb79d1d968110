package countdown

import (
	"context"
	"testing"

	"rlframework/engine"
	"rlframework/game"

	"github.com/stretchr/testify/require"
)

type greedy struct{ pid int }

func (p *greedy) Name() string                         { return "greedy" }
func (p *greedy) Initialize(e *engine.Engine, pid int) { p.pid = pid }
func (p *greedy) ChooseMove(ctx context.Context, e *engine.Engine) (engine.Action, error) {
	actions := e.CandidateActions(p.pid, 0, e.Rand())
	return actions[len(actions)-1], nil
}

func start(t *testing.T, rules *Rules, seed uint64) *engine.Engine {
	t.Helper()
	e, err := engine.New(rules, engine.WithSeed(seed))
	require.NoError(t, err)
	players := make([]engine.Player, rules.NumPlayers())
	for i := range players {
		players[i] = &greedy{}
	}
	require.NoError(t, e.Start(players))
	return e
}

func TestLegalActions(t *testing.T) {
	t.Run("bounded by max step", func(t *testing.T) {
		e := start(t, New(2, WithStart(10), WithMaxStep(3)), 1)
		require.Len(t, e.Rules().LegalActions(e, e.ToMove()), 3)
		require.False(t, Count{Player: e.ToMove(), N: 4}.IsLegal(e), "Counting past the max step is illegal")
	})

	t.Run("bounded by the remaining count", func(t *testing.T) {
		e := start(t, New(2, WithStart(2), WithMaxStep(5)), 1)
		actions := e.Rules().LegalActions(e, e.ToMove())
		require.Len(t, actions, 2)
		for _, a := range actions {
			require.True(t, a.IsLegal(e), "%s should be legal", a)
		}
		require.False(t, Count{Player: e.ToMove(), N: 3}.IsLegal(e), "Counting below zero is illegal")
		require.False(t, Count{Player: 1 - e.ToMove(), N: 1}.IsLegal(e), "Only the player to move may count")
	})
}

func TestGame(t *testing.T) {
	t.Run("last player standing ends the game", func(t *testing.T) {
		e := start(t, New(3, WithStart(6), WithMaxStep(3)), 5)
		r, err := e.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, r.FinishOrder, 2, "The last player never finishes")
		require.Len(t, e.Unfinished(), 1)
		require.Equal(t, 3.0, r.Scores[r.FinishOrder[0]])
		require.Equal(t, 2.0, r.Scores[r.FinishOrder[1]])
		require.Equal(t, 0.0, r.Scores[e.Unfinished()[0]])
		require.Equal(t, r.FinishOrder[0], r.Winner)
	})

	t.Run("first mover wins a symmetric race", func(t *testing.T) {
		e := start(t, New(2, WithStart(4), WithMaxStep(2)), 9)
		first := e.ToMove()
		r, err := e.Run(context.Background())
		require.NoError(t, err)

		require.Equal(t, first, r.Winner)
		require.Equal(t, 3, r.Turns)
	})

	t.Run("starting player is drawn from the seed", func(t *testing.T) {
		a := start(t, New(4), 42)
		b := start(t, New(4), 42)
		require.Equal(t, a.ToMove(), b.ToMove())
		require.True(t, a.Capture(game.NoPerspective).Equal(b.Capture(game.NoPerspective)))
	})

	t.Run("payload is public", func(t *testing.T) {
		e := start(t, New(2), 3)
		view := e.Capture(1)
		require.True(t, view.Payload.Equal(e.Payload()), "Nothing should be masked")
	})
}
