// Package signal standardizes the alert payloads handed from feeds and alert logs to strategies.
package signal

import (
	"fmt"
	"strings"
)

// Source tags the family an alert comes from and selects the Details variant.
type Source string

const (
	// SourceSuperTrend is a SuperTrend indicator flip carrying an action and a limit price.
	SourceSuperTrend Source = "SuperTrend"
	// SourceMarket is a plain market order request without a limit.
	SourceMarket Source = "Market"
	// SourceMock is a synthetic source used by tests and dry runs.
	SourceMock Source = "Mock"
)

// Action is the direction requested by an alert.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Valid reports whether the action is one of BUY or SELL.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// Details is the source specific payload of an Input. Implementations are closed to this package.
type Details interface {
	Source() Source
	details()
}

// SuperTrendDetails carries the indicator direction and the limit price to trade at.
type SuperTrendDetails struct {
	Action Action
	Limit  float64
}

func (SuperTrendDetails) Source() Source { return SourceSuperTrend }
func (SuperTrendDetails) details()       {}

// MarketDetails carries only a direction; the order executes at the prevailing price.
type MarketDetails struct {
	Action Action
}

func (MarketDetails) Source() Source { return SourceMarket }
func (MarketDetails) details()       {}

// MockDetails has no fields: a mock input always buys at its reference price.
type MockDetails struct{}

func (MockDetails) Source() Source { return SourceMock }
func (MockDetails) details()       {}

// Input is the normalized, immutable representation of one alert.
type Input struct {
	Interval            int
	RoundingFactorSize  int64
	RoundingFactorPrice int64
	DryRun              bool
	EmitKey             string
	Market              string
	// Price is the reference price used for sizing, not the order limit.
	Price   float64
	Source  Source
	Details Details
}

// Validate checks that Details matches Source.
func (in Input) Validate() error {
	if in.Details == nil {
		return fmt.Errorf("input %s: missing details", in.Source)
	}
	if in.Details.Source() != in.Source {
		return fmt.Errorf("input source %q does not match %q details", in.Source, in.Details.Source())
	}
	return nil
}

// ParseSource resolves a source keyword case-insensitively.
func ParseSource(raw string) (Source, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "supertrend":
		return SourceSuperTrend, true
	case "market":
		return SourceMarket, true
	case "mock":
		return SourceMock, true
	default:
		return "", false
	}
}

// ParseAction resolves BUY/SELL case-insensitively.
func ParseAction(raw string) (Action, bool) {
	a := Action(strings.ToUpper(strings.TrimSpace(raw)))
	return a, a.Valid()
}
