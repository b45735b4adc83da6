package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/ludotime/go/internal/autoplay"
	"github.com/mcdev12/ludotime/go/internal/board"
	"github.com/mcdev12/ludotime/go/internal/session"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Env holds the process settings read from the environment.
type Env struct {
	Port        string `env:"PORT" envDefault:"8080"`
	GatewayPath string `env:"GATEWAY_PATH" envDefault:"/ws"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"ludotime.db"`
	NATSURL     string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	NATSEnabled bool   `env:"NATS_ENABLED" envDefault:"false"`
	RulesFile   string `env:"RULES_FILE" envDefault:"config.yaml"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// File holds the game and synchronization tunables from the rules file.
type File struct {
	Rules struct {
		SafeCells string `yaml:"safe_cells"`
	} `yaml:"rules"`
	Sync struct {
		Retry struct {
			MaxAttempts     uint          `yaml:"max_attempts"`
			InitialInterval time.Duration `yaml:"initial_interval"`
			MaxInterval     time.Duration `yaml:"max_interval"`
		} `yaml:"retry"`
	} `yaml:"sync"`
	Autoplay struct {
		Enabled     bool          `yaml:"enabled"`
		TurnTimeout time.Duration `yaml:"turn_timeout"`
		Strategy    string        `yaml:"strategy"`
	} `yaml:"autoplay"`
}

// Config is the merged application configuration.
type Config struct {
	Env
	File
}

// Load reads .env (if present), the environment and the rules file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg Config
	if err := env.Parse(&cfg.Env); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	file, err := LoadFile(cfg.RulesFile)
	if err != nil {
		return Config{}, err
	}
	cfg.File = file
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultFile returns the tunables used when no rules file exists.
func DefaultFile() File {
	var f File
	f.Rules.SafeCells = string(board.SafeStarts)
	f.Sync.Retry.MaxAttempts = 1
	f.Autoplay.TurnTimeout = 30 * time.Second
	f.Autoplay.Strategy = "first"
	return f
}

// LoadFile parses the YAML rules file over the defaults. A missing file
// yields the defaults.
func LoadFile(path string) (File, error) {
	f := DefaultFile()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", path).Msg("no rules file, using defaults")
		return f, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return f, nil
}

// Validate checks the values that cannot be checked by parsing alone.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver == DriverSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		return errors.New("SQLITE_PATH is required for the sqlite store")
	}
	if !strings.HasPrefix(c.GatewayPath, "/") {
		return fmt.Errorf("GATEWAY_PATH %q must start with /", c.GatewayPath)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if _, err := c.SafeCellPolicy(); err != nil {
		return err
	}
	if c.Autoplay.Enabled {
		if _, err := c.AutoplayConfig(); err != nil {
			return err
		}
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c Config) SafeCellPolicy() (board.SafeCellPolicy, error) {
	return board.ParseSafeCellPolicy(c.Rules.SafeCells)
}

func (c Config) RetryPolicy() session.RetryPolicy {
	r := c.Sync.Retry
	return session.RetryPolicy{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
	}
}

func (c Config) AutoplayConfig() (autoplay.Config, error) {
	strategy, err := autoplay.ParseStrategy(c.Autoplay.Strategy)
	if err != nil {
		return autoplay.Config{}, err
	}
	if c.Autoplay.TurnTimeout <= 0 {
		return autoplay.Config{}, fmt.Errorf("autoplay.turn_timeout must be positive, got %s", c.Autoplay.TurnTimeout)
	}
	return autoplay.Config{TurnTimeout: c.Autoplay.TurnTimeout, Strategy: strategy}, nil
}
