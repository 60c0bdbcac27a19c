// Binary replay feeds a historical alert log through the paper simulator and reports the final balance.
package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"signalbot-go/internal/config"
	"signalbot-go/internal/metrics"
	"signalbot-go/internal/paper"
	"signalbot-go/internal/replay"
	"signalbot-go/internal/risk"
	"signalbot-go/internal/signal"
	"signalbot-go/internal/strategy"
	"signalbot-go/internal/util"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config, defaults apply when empty")
	alertsPath := flag.String("alerts", "", "alert log CSV, overrides replay.path")
	flag.Parse()

	boot := util.NewLogger("info")
	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			boot.Fatal().Err(err).Msg("load config")
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg); err != nil {
		boot.Fatal().Err(err).Msg("apply env")
	}
	if *alertsPath != "" {
		cfg.Replay.Path = *alertsPath
	}

	log := util.NewLogger(cfg.App.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("replay failed")
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	strat, err := strategy.Build(cfg.Strategy.Mode)
	if err != nil {
		return err
	}
	policy, err := replay.ParsePolicy(cfg.Replay.OnError)
	if err != nil {
		return err
	}

	opts := []paper.SimulatorOption{
		paper.WithLogger(log),
		paper.WithRiskLimits(risk.Limits{MaxNotionalPerTrade: cfg.Paper.MaxNotionalPerTrade}),
	}
	if cfg.Paper.FillsPath != "" {
		recorder, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath, log)
		if err != nil {
			return err
		}
		defer recorder.Close()
		opts = append(opts, paper.WithRecorder(recorder))
	}
	sim := paper.NewSimulator(paper.NewAccount(cfg.Paper.StartingCash, cfg.Paper.MaxPositionPerSymbol), opts...)

	src, err := replay.OpenCSV(cfg.Replay.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	driver := replay.NewDriver(
		signal.NewParser(cfg.Signal.ParserDefaults()),
		sim,
		strat,
		cfg.Strategy.Risk,
		replay.WithPolicy(policy),
		replay.WithLogger(log),
	)

	log.Info().
		Str("alerts", cfg.Replay.Path).
		Str("strategy", strat.Name()).
		Float64("risk", cfg.Strategy.Risk).
		Str("on_error", string(policy)).
		Msg("replay started")

	sum, err := driver.Run(ctx, src)
	log.Info().
		Int("processed", sum.Processed).
		Int("skipped", sum.Skipped).
		Int("orders", sum.Orders).
		Int("dryruns", sum.DryRuns).
		Float64("start_balance", sum.StartBalance).
		Float64("full_balance", sum.FinalBalance).
		Float64("performance_pct", sum.Performance()).
		Msg("replay finished")
	return err
}
