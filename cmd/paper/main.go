package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"signalbot-go/internal/config"
	"signalbot-go/internal/execution"
	"signalbot-go/internal/feed"
	"signalbot-go/internal/metrics"
	"signalbot-go/internal/paper"
	"signalbot-go/internal/replay"
	"signalbot-go/internal/risk"
	"signalbot-go/internal/signal"
	"signalbot-go/internal/strategy"
	"signalbot-go/internal/util"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to YAML config")
	flag.Parse()

	boot := util.NewLogger("info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("load config")
	}
	if err := config.ApplyEnv(cfg); err != nil {
		boot.Fatal().Err(err).Msg("apply env")
	}
	log := util.NewLogger(cfg.App.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.Feed.URL == "" {
		log.Fatal().Msg("feed.url is required for live paper trading")
	}

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	strat, err := strategy.Build(cfg.Strategy.Mode)
	if err != nil {
		log.Fatal().Err(err).Msg("strategy")
	}

	ledger := paper.NewLedger(1024)
	recorders := paper.MultiRecorder{ledger}
	if cfg.Paper.FillsPath != "" {
		jsonl, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath, log)
		if err != nil {
			log.Fatal().Err(err).Msg("fills recorder")
		}
		defer jsonl.Close()
		recorders = append(recorders, jsonl)
	}
	sim := paper.NewSimulator(
		paper.NewAccount(cfg.Paper.StartingCash, cfg.Paper.MaxPositionPerSymbol),
		paper.WithLogger(log),
		paper.WithRecorder(recorders),
		paper.WithRiskLimits(risk.Limits{MaxNotionalPerTrade: cfg.Paper.MaxNotionalPerTrade}),
	)

	exec := execution.NewExecutor(log)
	// live alerts are noisy; a bad one should not stop the session
	driver := replay.NewDriver(
		signal.NewParser(cfg.Signal.ParserDefaults()),
		sim,
		strat,
		cfg.Strategy.Risk,
		replay.WithPolicy(replay.PolicySkip),
		replay.WithLogger(log),
		replay.WithOrderHook(func(_ replay.Record, order execution.Order) {
			if err := exec.Submit(order); err != nil {
				log.Warn().Err(err).Msg("submit order")
			}
		}),
	)

	alerts := make(chan replay.Record, 256)
	ws := feed.NewWebsocketFeed(cfg.Feed.URL, log)
	go func() {
		defer close(alerts)
		if err := ws.Run(ctx, alerts); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	log.Info().Str("feed", cfg.Feed.URL).Str("strategy", strat.Name()).Msg("paper engine started")
	sum, err := driver.Run(ctx, replay.NewChanSource(alerts))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("paper engine stopped")
	}

	logSessionVolume(log, ledger)
	log.Info().
		Int("processed", sum.Processed).
		Int("skipped", sum.Skipped).
		Float64("full_balance", sum.FinalBalance).
		Float64("performance_pct", sum.Performance()).
		Msg("shutting down")
}

// logSessionVolume reports traded notional per market, in first-fill order.
func logSessionVolume(log zerolog.Logger, ledger *paper.Ledger) {
	seen := map[string]bool{}
	for _, fill := range ledger.Snapshot() {
		if seen[fill.Symbol] {
			continue
		}
		seen[fill.Symbol] = true
		buy, sell := ledger.Volume(fill.Symbol)
		log.Info().Str("market", fill.Symbol).Float64("buy_notional", buy).Float64("sell_notional", sell).Msg("session volume")
	}
}
