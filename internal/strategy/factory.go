package strategy

import (
	"fmt"
	"strings"
)

// Build returns a strategy implementation matching the configured mode.
func Build(mode string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "basic", "strat-basic":
		return Basic{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy mode %q", mode)
	}
}
