package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"rlframework/agent"
	"rlframework/communication"
	"rlframework/config"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Simulation.OutputDir = t.TempDir()
	cfg.Simulation.Games = 6
	cfg.Simulation.Workers = 2
	return cfg
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.Enabled = true
	require.NoError(t, run(context.Background(), cfg))

	entries, err := os.ReadDir(cfg.Simulation.OutputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "One directory per run")
	runDir := filepath.Join(cfg.Simulation.OutputDir, entries[0].Name())

	data, err := os.ReadFile(filepath.Join(runDir, "manifest.yaml"))
	require.NoError(t, err)
	var m manifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	require.Equal(t, entries[0].Name(), m.RunID)
	require.NotNil(t, m.Finished)
	require.NotNil(t, m.Summary)
	require.Equal(t, 6, m.Summary.Successes)
	require.Contains(t, m.Summary.Classes, "score")
	require.Contains(t, m.Summary.Classes, "random")
	require.Positive(t, m.Summary.Samples)

	for _, name := range []string{"dataset.csv", "results/game_records.csv", "results/move_records.csv"} {
		_, err := os.Stat(filepath.Join(runDir, name))
		require.NoError(t, err, "%s should exist", name)
	}
}

// firstPickEngine is an external engine that always picks the first move.
func firstPickEngine(t *testing.T) []string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no shell available")
	}
	script := strings.Join([]string{
		`while read cmd args; do`,
		`case "$cmd" in`,
		`quit) printf '=\n\n'; exit 0;;`,
		`position) printf '=\n\n';;`,
		`genmove) printf '= 0\n\n';;`,
		`*) printf '? unknown command\n\n';;`,
		`esac`,
		`done`,
	}, "\n")
	return []string{sh, "-c", script}
}

func TestRunExternalPlayer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Games = 3
	cfg.Players[1] = config.PlayerConfig{Name: "gnu", Class: "external", Evaluator: "external", Command: firstPickEngine(t)}
	require.NoError(t, cfg.Validate())
	require.NoError(t, run(context.Background(), cfg))

	entries, err := os.ReadDir(cfg.Simulation.OutputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(cfg.Simulation.OutputDir, entries[0].Name(), "manifest.yaml"))
	require.NoError(t, err)
	var m manifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	require.Equal(t, 3, m.Summary.Successes)
	require.Contains(t, m.Summary.Classes, "external")
}

func TestGameFactory(t *testing.T) {
	for _, verify := range []bool{false, true} {
		cfg := testConfig(t)
		cfg.Simulation.VerifyRestore = verify
		newGame, err := gameFactory(cfg)
		require.NoError(t, err)
		e, err := newGame(3)
		require.NoError(t, err)
		require.Equal(t, verify, e.VerifyRestore())
		require.Equal(t, gameSeed(cfg.Simulation.Seed, 3), e.Seed())
	}
}

func TestNewRules(t *testing.T) {
	for _, name := range []string{"countdown", "shedding", "skate"} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Simulation.Game = name
			rules, err := newRules(cfg)
			require.NoError(t, err)
			require.Equal(t, name, rules.Name())
		})
	}

	t.Run("unknown game", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Simulation.Game = "chess"
		_, err := newRules(cfg)
		require.Error(t, err)
	})

	t.Run("skate seats two", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Simulation.Game = "skate"
		cfg.GameOptions.Players = 3
		_, err := newRules(cfg)
		require.Error(t, err)
	})
}

func TestPlayersFactory(t *testing.T) {
	t.Run("fresh agents per game", func(t *testing.T) {
		cfg := testConfig(t)
		newPlayers, closeAll, err := playersFactory(cfg)
		require.NoError(t, err)
		defer closeAll()

		first, err := newPlayers(0)
		require.NoError(t, err)
		second, err := newPlayers(0)
		require.NoError(t, err)
		require.Len(t, first, 2)
		require.NotSame(t, first[0], second[0])
		require.Equal(t, "score", first[0].(*agent.Agent).Class())
	})

	t.Run("shuffled seats are reproducible", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Simulation.Shuffle = true
		newPlayers, closeAll, err := playersFactory(cfg)
		require.NoError(t, err)
		defer closeAll()

		for g := range 5 {
			a, err := newPlayers(g)
			require.NoError(t, err)
			b, err := newPlayers(g)
			require.NoError(t, err)
			require.Equal(t, a[0].Name(), b[0].Name())
		}
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Players[0].Evaluator = "neural"
		cfg.Players[0].Model = filepath.Join(t.TempDir(), "missing.json")
		_, _, err := playersFactory(cfg)
		require.Error(t, err)
	})

	t.Run("external engine per game", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Players[1] = config.PlayerConfig{Name: "gnu", Evaluator: "external", Command: firstPickEngine(t)}
		newPlayers, closeAll, err := playersFactory(cfg)
		require.NoError(t, err)
		defer closeAll()

		players, err := newPlayers(0)
		require.NoError(t, err)
		ext, ok := players[1].(*communication.Player)
		require.True(t, ok)
		require.Equal(t, "gnu", ext.Class())
		require.NoError(t, ext.Close(), "Engine should exit cleanly on quit")
	})

	t.Run("failed external start releases started players", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Players[0] = config.PlayerConfig{Name: "gnu", Evaluator: "external", Command: firstPickEngine(t)}
		cfg.Players[1] = config.PlayerConfig{Name: "ghost", Evaluator: "external", Command: []string{"/nonexistent/engine"}}
		newPlayers, closeAll, err := playersFactory(cfg)
		require.NoError(t, err)
		defer closeAll()

		_, err = newPlayers(0)
		require.ErrorContains(t, err, "failed to start player ghost")
	})

	t.Run("player log file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Players[0].LogFile = filepath.Join(t.TempDir(), "score.log")
		newPlayers, closeAll, err := playersFactory(cfg)
		require.NoError(t, err)
		_, err = newPlayers(0)
		require.NoError(t, err)
		closeAll()
		_, err = os.Stat(cfg.Players[0].LogFile)
		require.NoError(t, err)
	})
}
