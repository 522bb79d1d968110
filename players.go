package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"rlframework/agent"
	"rlframework/communication"
	"rlframework/config"
	"rlframework/engine"
	"rlframework/game"
	"rlframework/simulator"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
)

func newStrategy(pc config.PlayerConfig) agent.Strategy {
	switch pc.Strategy {
	case "temperature":
		return agent.Temperature(pc.Temperature)
	case "epsilon":
		return agent.EpsilonGreedy(pc.Epsilon)
	}
	return agent.Best()
}

// newPlayerLogger honours the per-player log settings. Players log nothing
// unless a level or a file is configured.
func newPlayerLogger(pc config.PlayerConfig) (zerolog.Logger, io.Closer, error) {
	if pc.LogLevel == "" && pc.LogFile == "" {
		return zerolog.Nop(), nil, nil
	}
	level, err := zerolog.ParseLevel(pc.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.DebugLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	var closer io.Closer
	if pc.LogFile != "" {
		f, err := os.OpenFile(pc.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file for %s: %w", pc.Name, err)
		}
		out, closer = f, f
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("player", pc.Name).Logger(), closer, nil
}

// newExternal starts the engine of an external player. The process lives as
// long as the game: the simulator closes the player once the game ends.
func newExternal(pc config.PlayerConfig, logger zerolog.Logger) (engine.Player, error) {
	// Not bound to the run context, in-flight games outlive a cancelled run
	p, err := communication.Start(context.Background(), pc.Command[0], pc.Command[1:]...)
	if err != nil {
		return nil, fmt.Errorf("failed to start player %s: %w", pc.Name, err)
	}
	return communication.NewPlayer(pc.Name, communication.NewClient(p),
		communication.WithClass(pc.Class),
		communication.WithMaxMoves(pc.MaxMoves),
		communication.WithLogger(logger),
	), nil
}

// closeStarted releases the players built before a factory failure.
func closeStarted(players []engine.Player) error {
	var errs []error
	for _, p := range players {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// playersFactory builds a fresh set of players per game. Models and log files
// are opened once and shared; evaluators with their own randomness and
// external engines are not.
func playersFactory(cfg *config.Config) (simulator.PlayersFactory, func(), error) {
	rules, err := newRules(cfg)
	if err != nil {
		return nil, nil, err
	}

	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	models := map[string]*agent.Model{}
	loggers := make([]zerolog.Logger, len(cfg.Players))
	for i, pc := range cfg.Players {
		if pc.Evaluator == "neural" && models[pc.Model] == nil {
			model, err := agent.LoadModel(pc.Model)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			models[pc.Model] = model
		}
		logger, closer, err := newPlayerLogger(pc)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		loggers[i] = logger
	}

	seed := cfg.Simulation.Seed
	return func(g int) ([]engine.Player, error) {
		players := make([]engine.Player, len(cfg.Players))
		for i, pc := range cfg.Players {
			if pc.Evaluator == "external" {
				p, err := newExternal(pc, loggers[i])
				if err != nil {
					if cerr := closeStarted(players[:i]); cerr != nil {
						err = errors.Join(err, cerr)
					}
					return nil, err
				}
				players[i] = p
				continue
			}
			evalSeed := gameSeed(seed, g)*uint64(len(cfg.Players)) + uint64(i)
			var evaluate game.Evaluate
			switch pc.Evaluator {
			case "random":
				evaluate = agent.Random(evalSeed)
			case "neural":
				evaluate = models[pc.Model].Evaluator()
			case "rollout":
				evaluate = agent.Rollout(rules, pc.Cutoff, agent.ScoreLead, evalSeed)
			default:
				evaluate = agent.ScoreLead
			}
			players[i] = agent.New(pc.Name,
				agent.WithClass(pc.Class),
				agent.WithMaxMoves(pc.MaxMoves),
				agent.WithEvaluator(evaluate),
				agent.WithStrategy(newStrategy(pc)),
				agent.WithLogger(loggers[i]),
			)
		}
		if cfg.Simulation.Shuffle {
			rng := rand.New(rand.NewSource(gameSeed(seed, g)))
			rng.Shuffle(len(players), func(i, j int) {
				players[i], players[j] = players[j], players[i]
			})
		}
		return players, nil
	}, closeAll, nil
}
