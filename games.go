package main

import (
	"fmt"

	"rlframework/config"
	"rlframework/engine"
	"rlframework/games/countdown"
	"rlframework/games/shedding"
	"rlframework/games/skate"
	"rlframework/simulator"
)

func newRules(cfg *config.Config) (engine.Rules, error) {
	opts := cfg.GameOptions
	switch cfg.Simulation.Game {
	case "countdown":
		return countdown.New(opts.Players, countdown.WithStart(opts.Start), countdown.WithMaxStep(opts.MaxStep)), nil
	case "shedding":
		return shedding.New(opts.Players, shedding.WithHandSize(opts.HandSize)), nil
	case "skate":
		if opts.Players != 2 {
			return nil, fmt.Errorf("skate is a 2 player game, got %d", opts.Players)
		}
		return skate.New(skate.WithSize(opts.BoardSize)), nil
	}
	return nil, fmt.Errorf("unknown game %q", cfg.Simulation.Game)
}

func newTarget(name string) engine.Target {
	switch name {
	case "win":
		return engine.TargetWin
	case "rank":
		return engine.TargetRank
	}
	return engine.TargetScore
}

// gameSeed gives every game of a run its own seed.
func gameSeed(seed uint64, game int) uint64 {
	return seed + uint64(game)
}

// gameFactory builds one engine per game. Rules are immutable and shared.
func gameFactory(cfg *config.Config) (simulator.GameFactory, error) {
	rules, err := newRules(cfg)
	if err != nil {
		return nil, err
	}
	sim := cfg.Simulation
	target := newTarget(cfg.Recording.Target)

	return func(game int, options ...engine.Option) (*engine.Engine, error) {
		base := []engine.Option{
			engine.WithSeed(gameSeed(sim.Seed, game)),
			engine.WithTurnTimeout(sim.TurnTimeout),
			engine.WithGameTimeout(sim.GameTimeout),
			engine.WithMaxTurns(sim.MaxTurns),
			engine.WithHistoryLimit(sim.HistoryLimit),
			engine.WithTarget(target),
		}
		if sim.VerifyRestore {
			base = append(base, engine.WithVerifyRestore())
		}
		return engine.New(rules, append(base, options...)...)
	}, nil
}
