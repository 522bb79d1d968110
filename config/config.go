// Package config loads the self-play configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "SELFPLAY"

var (
	Evaluators = []string{"random", "score", "neural", "rollout", "external"}
	Strategies = []string{"best", "temperature", "epsilon"}
	Targets    = []string{"score", "win", "rank"}
)

type Config struct {
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Simulation  SimulationConfig  `mapstructure:"simulation" yaml:"simulation"`
	Players     []PlayerConfig    `mapstructure:"players" yaml:"players"`
	Recording   RecordingConfig   `mapstructure:"recording" yaml:"recording"`
	Notify      NotifyConfig      `mapstructure:"notify" yaml:"notify"`
	GameOptions GameOptionsConfig `mapstructure:"game_options" yaml:"game_options"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

type SimulationConfig struct {
	Game         string        `mapstructure:"game" yaml:"game"`
	Games        int           `mapstructure:"games" yaml:"games"`
	Workers      int           `mapstructure:"workers" yaml:"workers"`
	Seed         uint64        `mapstructure:"seed" yaml:"seed"`
	TurnTimeout  time.Duration `mapstructure:"turn_timeout" yaml:"turn_timeout"`
	GameTimeout  time.Duration `mapstructure:"game_timeout" yaml:"game_timeout"`
	MaxTurns     int           `mapstructure:"max_turns" yaml:"max_turns"`
	HistoryLimit int           `mapstructure:"history_limit" yaml:"history_limit"`
	OutputDir    string        `mapstructure:"output_dir" yaml:"output_dir"`
	Shuffle      bool          `mapstructure:"shuffle" yaml:"shuffle"`
	// VerifyRestore checks every speculative apply restores the state it saved
	VerifyRestore bool `mapstructure:"verify_restore" yaml:"verify_restore"`
}

type PlayerConfig struct {
	Name        string  `mapstructure:"name" yaml:"name"`
	Class       string  `mapstructure:"class" yaml:"class"`
	Evaluator   string  `mapstructure:"evaluator" yaml:"evaluator"`
	Strategy    string  `mapstructure:"strategy" yaml:"strategy"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	Epsilon     float64 `mapstructure:"epsilon" yaml:"epsilon"`
	MaxMoves    int     `mapstructure:"max_moves" yaml:"max_moves"`
	Model       string  `mapstructure:"model" yaml:"model"`
	Cutoff      int     `mapstructure:"cutoff" yaml:"cutoff"`
	LogLevel    string  `mapstructure:"log_level" yaml:"log_level"`
	LogFile     string  `mapstructure:"log_file" yaml:"log_file"`
	// Command starts the engine an external player delegates its moves to
	Command []string `mapstructure:"command" yaml:"command"`
}

type RecordingConfig struct {
	Enabled bool        `mapstructure:"enabled" yaml:"enabled"`
	Target  string      `mapstructure:"target" yaml:"target"`
	Redis   RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig switches recording from the shard directory to Redis when Addr
// is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"-"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

type NotifyConfig struct {
	NATSURL       string        `mapstructure:"nats_url" yaml:"nats_url"`
	Subject       string        `mapstructure:"subject" yaml:"subject"`
	MaxReconnects int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
}

type GameOptionsConfig struct {
	Players   int `mapstructure:"players" yaml:"players"`
	BoardSize int `mapstructure:"board_size" yaml:"board_size"`
	HandSize  int `mapstructure:"hand_size" yaml:"hand_size"`
	Start     int `mapstructure:"start" yaml:"start"`
	MaxStep   int `mapstructure:"max_step" yaml:"max_step"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("simulation.game", "countdown")
	v.SetDefault("simulation.games", 100)
	v.SetDefault("simulation.workers", 4)
	v.SetDefault("simulation.seed", 1)
	v.SetDefault("simulation.turn_timeout", 5*time.Second)
	v.SetDefault("simulation.game_timeout", 5*time.Minute)
	v.SetDefault("simulation.max_turns", 10000)
	v.SetDefault("simulation.history_limit", 64)
	v.SetDefault("simulation.output_dir", "output")
	v.SetDefault("simulation.shuffle", false)
	v.SetDefault("simulation.verify_restore", false)

	v.SetDefault("players", []map[string]any{
		{"name": "score", "class": "score", "evaluator": "score", "strategy": "best"},
		{"name": "random", "class": "random", "evaluator": "random", "strategy": "best"},
	})

	v.SetDefault("recording.enabled", false)
	v.SetDefault("recording.target", "win")
	v.SetDefault("recording.redis.addr", "")
	v.SetDefault("recording.redis.password", "")
	v.SetDefault("recording.redis.db", 0)
	v.SetDefault("recording.redis.prefix", "selfplay")

	v.SetDefault("notify.nats_url", "")
	v.SetDefault("notify.subject", "selfplay.outcomes")
	v.SetDefault("notify.max_reconnects", 5)
	v.SetDefault("notify.reconnect_wait", time.Second)

	v.SetDefault("game_options.players", 2)
	v.SetDefault("game_options.board_size", 8)
	v.SetDefault("game_options.hand_size", 6)
	v.SetDefault("game_options.start", 10)
	v.SetDefault("game_options.max_step", 3)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the built-in configuration with environment overrides.
func Default() (*Config, error) {
	return decode(newViper())
}

// Load reads the YAML file at path over the defaults. Environment variables
// prefixed with SELFPLAY_ take precedence over the file.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	sim := c.Simulation
	if sim.Game == "" {
		errs = append(errs, errors.New("simulation.game is required"))
	}
	if sim.Games < 0 {
		errs = append(errs, fmt.Errorf("simulation.games must not be negative, got %d", sim.Games))
	}
	if sim.Workers < 1 {
		errs = append(errs, fmt.Errorf("simulation.workers must be positive, got %d", sim.Workers))
	}
	if sim.TurnTimeout < 0 || sim.GameTimeout < 0 {
		errs = append(errs, errors.New("simulation timeouts must not be negative"))
	}
	if sim.MaxTurns < 1 {
		errs = append(errs, fmt.Errorf("simulation.max_turns must be positive, got %d", sim.MaxTurns))
	}
	if !slices.Contains(Targets, c.Recording.Target) {
		errs = append(errs, fmt.Errorf("recording.target must be one of %v, got %q", Targets, c.Recording.Target))
	}
	if c.GameOptions.Players < 1 {
		errs = append(errs, fmt.Errorf("game_options.players must be positive, got %d", c.GameOptions.Players))
	}

	if len(c.Players) != c.GameOptions.Players {
		errs = append(errs, fmt.Errorf("%d players configured for a %d player game", len(c.Players), c.GameOptions.Players))
	}
	for i, p := range c.Players {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("players[%d]: name is required", i))
		}
		if !slices.Contains(Evaluators, p.Evaluator) {
			errs = append(errs, fmt.Errorf("players[%d]: evaluator must be one of %v, got %q", i, Evaluators, p.Evaluator))
		}
		if p.Strategy != "" && !slices.Contains(Strategies, p.Strategy) {
			errs = append(errs, fmt.Errorf("players[%d]: strategy must be one of %v, got %q", i, Strategies, p.Strategy))
		}
		if p.Evaluator == "neural" && p.Model == "" {
			errs = append(errs, fmt.Errorf("players[%d]: neural evaluator needs a model", i))
		}
		if p.Evaluator == "external" && len(p.Command) == 0 {
			errs = append(errs, fmt.Errorf("players[%d]: external player needs a command", i))
		}
		if p.Epsilon < 0 || p.Epsilon > 1 {
			errs = append(errs, fmt.Errorf("players[%d]: epsilon must be in [0, 1], got %g", i, p.Epsilon))
		}
		if p.MaxMoves < 0 || p.Cutoff < 0 {
			errs = append(errs, fmt.Errorf("players[%d]: max_moves and cutoff must not be negative", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
