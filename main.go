package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rlframework/config"
	"rlframework/metrics"
	"rlframework/notify"
	"rlframework/recorder"
	"rlframework/simulator"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config, defaults are used if empty")
	envPath := flag.String("env", ".env", "Path to a .env file loaded before the config")
	games := flag.Int("games", 0, "Override the number of games")
	workers := flag.Int("workers", 0, "Override the number of workers")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Msgf("failed to load %s", *envPath)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *games > 0 {
		cfg.Simulation.Games = *games
	}
	if *workers > 0 {
		cfg.Simulation.Workers = *workers
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("self-play failed")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	runID := uuid.NewString()
	runDir := filepath.Join(cfg.Simulation.OutputDir, runID)
	logger := log.With().Str("run", runID).Logger()

	newGame, err := gameFactory(cfg)
	if err != nil {
		return err
	}
	newPlayers, closePlayers, err := playersFactory(cfg)
	if err != nil {
		return err
	}
	defer closePlayers()

	results, err := metrics.NewWriter(filepath.Join(runDir, "results"))
	if err != nil {
		return err
	}
	defer results.Close()

	options := []simulator.Option{
		simulator.WithRunID(runID),
		simulator.WithResultsWriter(results),
		simulator.WithLogger(logger),
	}

	if cfg.Recording.Enabled {
		store, closeStore, err := openStore(cfg.Recording, runDir)
		if err != nil {
			return err
		}
		defer closeStore()
		options = append(options, simulator.WithStore(store), simulator.WithDataset(filepath.Join(runDir, "dataset.csv")))
	}

	if url := cfg.Notify.NATSURL; url != "" {
		publisher, err := notify.NewNATS(url, cfg.Notify.Subject,
			notify.WithMaxReconnects(cfg.Notify.MaxReconnects),
			notify.WithReconnectWait(cfg.Notify.ReconnectWait),
		)
		if err != nil {
			return err
		}
		defer publisher.Close()
		options = append(options, simulator.WithPublisher(publisher))
	}

	manifest := newManifest(runID, cfg)
	if err := manifest.Write(runDir); err != nil {
		return err
	}

	sim := simulator.New(options...)
	report, err := sim.Run(ctx, newGame, newPlayers, cfg.Simulation.Games, cfg.Simulation.Workers)
	if report != nil {
		manifest.Complete(report)
		if werr := manifest.Write(runDir); werr != nil {
			logger.Error().Err(werr).Msg("failed to update manifest")
		}
		logReport(&logger, report)
	}
	return err
}

func openStore(cfg config.RecordingConfig, runDir string) (recorder.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		store, err := recorder.NewDir(filepath.Join(runDir, "records"))
		return store, func() {}, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
	}
	log.Info().Msgf("recording to redis at %s", cfg.Redis.Addr)
	return recorder.NewRedis(client, cfg.Redis.Prefix), func() { client.Close() }, nil
}

func logReport(logger *zerolog.Logger, report *simulator.Report) {
	for class, stats := range report.Classes {
		logger.Info().
			Int("games", stats.Games).
			Float64("win_rate", stats.WinRate()).
			Float64("tie_rate", stats.TieRate()).
			Float64("avg_score", stats.AvgScore()).
			Msgf("class %s", class)
	}
	for kind, n := range report.Failures {
		logger.Warn().Int("games", n).Msgf("failed with %s", kind)
	}
}
