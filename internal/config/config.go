// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"signalbot-go/internal/signal"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Strategy selects the order strategy and the risk budget R handed to it per alert.
type Strategy struct {
	Mode string  `yaml:"mode"`
	Risk float64 `yaml:"risk"`
}

// Signal holds the defaults overlaid onto every parsed alert.
type Signal struct {
	Interval            int    `yaml:"interval"`
	RoundingFactorSize  int64  `yaml:"rounding_factor_size"`
	RoundingFactorPrice int64  `yaml:"rounding_factor_price"`
	DryRun              bool   `yaml:"dryrun"`
	EmitKey             string `yaml:"emit_key"`
}

// ParserDefaults converts the section into the overlay the alert parser applies.
func (s Signal) ParserDefaults() signal.Defaults {
	return signal.Defaults{
		Interval:            s.Interval,
		RoundingFactorSize:  s.RoundingFactorSize,
		RoundingFactorPrice: s.RoundingFactorPrice,
		DryRun:              s.DryRun,
		EmitKey:             s.EmitKey,
	}
}

// Paper captures paper-trading account settings such as starting cash and per-symbol caps.
type Paper struct {
	StartingCash         float64 `yaml:"starting_cash"`
	MaxPositionPerSymbol float64 `yaml:"max_position_per_symbol"`
	MaxNotionalPerTrade  float64 `yaml:"max_notional_per_trade"`
	FillsPath            string  `yaml:"fills_path"`
}

// Replay points at a historical alert log and decides how failed records are handled.
type Replay struct {
	Path    string `yaml:"path"`
	OnError string `yaml:"on_error"`
}

// Feed configures the live alert websocket.
type Feed struct {
	URL string `yaml:"url"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Strategy Strategy `yaml:"strategy"`
	Signal   Signal   `yaml:"signal"`
	Paper    Paper    `yaml:"paper"`
	Replay   Replay   `yaml:"replay"`
	Feed     Feed     `yaml:"feed"`
}

// Defaults returns a config that runs a replay with a 1000 cash account.
func Defaults() *Config {
	return &Config{
		App: App{
			Name:        "signalbot",
			Env:         "dev",
			MetricsAddr: ":9090",
			LogLevel:    "info",
		},
		Strategy: Strategy{Mode: "basic", Risk: 1000},
		Signal: Signal{
			Interval:            60,
			RoundingFactorSize:  100_000,
			RoundingFactorPrice: 100,
			EmitKey:             "signalbot",
		},
		Paper:  Paper{StartingCash: 1000},
		Replay: Replay{Path: "alerts-history.csv", OnError: "abort"},
	}
}

// Load reads a YAML file from disk on top of Defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Defaults()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv loads .env files (best effort) and overlays SIGNALBOT_* variables onto cfg.
// Variables already set in the process environment win over .env entries.
func ApplyEnv(cfg *Config, files ...string) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	_ = godotenv.Load(files...)

	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("SIGNALBOT_ENV", &cfg.App.Env)
	str("SIGNALBOT_LOG_LEVEL", &cfg.App.LogLevel)
	str("SIGNALBOT_METRICS_ADDR", &cfg.App.MetricsAddr)
	str("SIGNALBOT_STRATEGY", &cfg.Strategy.Mode)
	float("SIGNALBOT_RISK", &cfg.Strategy.Risk)

	interval := int64(cfg.Signal.Interval)
	integer("SIGNALBOT_INTERVAL", &interval)
	cfg.Signal.Interval = int(interval)
	integer("SIGNALBOT_ROUNDING_FACTOR_SIZE", &cfg.Signal.RoundingFactorSize)
	integer("SIGNALBOT_ROUNDING_FACTOR_PRICE", &cfg.Signal.RoundingFactorPrice)
	boolean("SIGNALBOT_DRYRUN", &cfg.Signal.DryRun)
	str("SIGNALBOT_EMIT_KEY", &cfg.Signal.EmitKey)

	float("SIGNALBOT_STARTING_CASH", &cfg.Paper.StartingCash)
	str("SIGNALBOT_FILLS_PATH", &cfg.Paper.FillsPath)
	str("SIGNALBOT_REPLAY_PATH", &cfg.Replay.Path)
	str("SIGNALBOT_ON_ERROR", &cfg.Replay.OnError)
	str("SIGNALBOT_FEED_URL", &cfg.Feed.URL)

	return errors.Join(errs...)
}

// Validate rejects configs the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Strategy.Risk <= 0 {
		errs = append(errs, fmt.Errorf("strategy.risk must be positive, got %v", c.Strategy.Risk))
	}
	if c.Signal.RoundingFactorSize <= 0 {
		errs = append(errs, fmt.Errorf("signal.rounding_factor_size must be positive, got %d", c.Signal.RoundingFactorSize))
	}
	if c.Signal.RoundingFactorPrice <= 0 {
		errs = append(errs, fmt.Errorf("signal.rounding_factor_price must be positive, got %d", c.Signal.RoundingFactorPrice))
	}
	if c.Signal.Interval < 0 {
		errs = append(errs, fmt.Errorf("signal.interval must not be negative, got %d", c.Signal.Interval))
	}
	if c.Paper.StartingCash <= 0 {
		errs = append(errs, fmt.Errorf("paper.starting_cash must be positive, got %v", c.Paper.StartingCash))
	}
	if c.Paper.MaxPositionPerSymbol < 0 || c.Paper.MaxNotionalPerTrade < 0 {
		errs = append(errs, errors.New("paper caps must not be negative"))
	}
	switch strings.ToLower(strings.TrimSpace(c.Replay.OnError)) {
	case "", "abort", "skip":
	default:
		errs = append(errs, fmt.Errorf("replay.on_error must be abort or skip, got %q", c.Replay.OnError))
	}
	return errors.Join(errs...)
}
