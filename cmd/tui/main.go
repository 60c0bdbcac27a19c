package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"signalbot-go/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== SignalBot Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit bankroll and risk")
		fmt.Println("3) Edit alert defaults")
		fmt.Println("4) Save config")
		fmt.Println("5) Run replay")
		fmt.Println("6) Launch live paper bot")
		fmt.Println("7) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editRisk(reader, cfg)
		case "3":
			editSignal(reader, cfg)
		case "4":
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "not saved, config invalid: %v\n", err)
				continue
			}
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launch(reader, "./cmd/replay", "-config", locateConfig())
		case "6":
			launch(reader, "./cmd/paper", "-config", locateConfig())
		case "7":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Strategy: %s | risk per alert: $%.2f\n", cfg.Strategy.Mode, cfg.Strategy.Risk)
	fmt.Printf("Starting cash: $%.2f\n", cfg.Paper.StartingCash)
	fmt.Printf("Per-symbol position cap: %.4f\n", cfg.Paper.MaxPositionPerSymbol)
	fmt.Printf("Per-trade notional cap: $%.2f\n", cfg.Paper.MaxNotionalPerTrade)
	fmt.Printf("Rounding factors: size %d | price %d\n", cfg.Signal.RoundingFactorSize, cfg.Signal.RoundingFactorPrice)
	fmt.Printf("Interval: %d | dry run: %t | emit key: %s\n", cfg.Signal.Interval, cfg.Signal.DryRun, cfg.Signal.EmitKey)
	fmt.Printf("Replay: %s (on error: %s)\n", cfg.Replay.Path, cfg.Replay.OnError)
	fmt.Printf("Live feed: %s\n", cfg.Feed.URL)
}

func editRisk(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Risk / Bankroll ---")
	cfg.Strategy.Risk = promptFloat(reader, "Risk per alert (USD)", cfg.Strategy.Risk)
	cfg.Paper.StartingCash = promptFloat(reader, "Starting cash", cfg.Paper.StartingCash)
	cfg.Paper.MaxPositionPerSymbol = promptFloat(reader, "Max position per symbol (qty, 0 = none)", cfg.Paper.MaxPositionPerSymbol)
	cfg.Paper.MaxNotionalPerTrade = promptFloat(reader, "Max notional per trade (USD, 0 = none)", cfg.Paper.MaxNotionalPerTrade)
}

func editSignal(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Alert Defaults ---")
	cfg.Signal.RoundingFactorSize = promptInt(reader, "Size rounding factor", cfg.Signal.RoundingFactorSize)
	cfg.Signal.RoundingFactorPrice = promptInt(reader, "Price rounding factor", cfg.Signal.RoundingFactorPrice)
	cfg.Signal.Interval = int(promptInt(reader, "Interval", int64(cfg.Signal.Interval)))
	fmt.Printf("Dry run [%t]: ", cfg.Signal.DryRun)
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		if v, err := strconv.ParseBool(strings.TrimSpace(line)); err == nil {
			cfg.Signal.DryRun = v
		} else {
			fmt.Printf("invalid bool, keeping %t\n", cfg.Signal.DryRun)
		}
	}
	fmt.Printf("Replay error policy (abort|skip) [%s]: ", cfg.Replay.OnError)
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		cfg.Replay.OnError = strings.ToLower(strings.TrimSpace(line))
	}
}

func launch(reader *bufio.Reader, pkg string, args ...string) {
	fmt.Printf("Launching %s (Ctrl+C to stop)...\n", pkg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", append([]string{"run", pkg}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start %s: %v\n", pkg, err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptInt(reader *bufio.Reader, label string, current int64) int64 {
	fmt.Printf("%s [%d]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		fmt.Printf("invalid integer, keeping %d\n", current)
		return current
	}
	return val
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
