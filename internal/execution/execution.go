// Package execution defines the normalized order and the boundary that consumes it.
package execution

import (
	"time"

	"github.com/rs/zerolog"

	"signalbot-go/internal/metrics"
)

// Side enumerates order directions.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a short order.
	Sell Side = "SELL"
)

// OrderType distinguishes priced orders from orders taking the prevailing price.
type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// Order is the exchange-ready instruction produced for one input.
type Order struct {
	Market string
	Side   Side
	Type   OrderType
	// Price is the rounded limit; zero when Type is Market.
	Price   float64
	Size    float64
	DryRun  bool
	EmitKey string
}

// HasPrice reports whether the order carries its own limit price.
func (o Order) HasPrice() bool { return o.Type == Limit }

// FillPrice returns the limit, or ref for market orders.
func (o Order) FillPrice(ref float64) float64 {
	if o.HasPrice() {
		return o.Price
	}
	return ref
}

// Notional is size times the fill price.
func (o Order) Notional(ref float64) float64 {
	return o.Size * o.FillPrice(ref)
}

// Fill records an order settled against a paper account.
type Fill struct {
	Symbol  string    `json:"symbol"`
	Side    Side      `json:"side"`
	Qty     float64   `json:"qty"`
	Price   float64   `json:"price"`
	EmitKey string    `json:"emit_key,omitempty"`
	Ts      time.Time `json:"ts"`
}

// Executor is the order consumer for paper mode: it logs and counts orders instead of routing them.
type Executor struct{ log zerolog.Logger }

// NewExecutor wraps a zerolog logger for order submissions.
func NewExecutor(log zerolog.Logger) *Executor { return &Executor{log: log} }

// Submit logs the order; dry-run orders are logged but not counted.
func (executor *Executor) Submit(order Order) error {
	if !order.DryRun {
		metrics.OrdersTotal.WithLabelValues(order.Market, string(order.Side)).Inc()
	}
	executor.log.Info().
		Str("market", order.Market).
		Str("side", string(order.Side)).
		Str("type", string(order.Type)).
		Float64("size", order.Size).
		Float64("price", order.Price).
		Bool("dryrun", order.DryRun).
		Str("emit_key", order.EmitKey).
		Msg("submit order")
	return nil
}
