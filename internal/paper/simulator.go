package paper

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"signalbot-go/internal/execution"
	"signalbot-go/internal/metrics"
	"signalbot-go/internal/risk"
	"signalbot-go/internal/signal"
	"signalbot-go/internal/strategy"
)

// ErrRiskLimit is returned when an order breaches the per-trade notional cap.
var ErrRiskLimit = errors.New("order notional exceeds risk limit")

// Simulator is the backtest bot: it asks a strategy for an order and settles it
// against an Account. Process calls are serialized; a call runs to completion
// before the next one starts.
type Simulator struct {
	mu       sync.Mutex
	account  *Account
	limits   risk.Limits
	recorder FillRecorder
	log      zerolog.Logger
	now      func() time.Time
	orders   []execution.Order
}

// SimulatorOption configures Simulator construction parameters.
type SimulatorOption func(*Simulator)

// WithRiskLimits rejects orders whose notional breaches the limits.
func WithRiskLimits(l risk.Limits) SimulatorOption {
	return func(s *Simulator) { s.limits = l }
}

// WithRecorder forwards every settled fill to r.
func WithRecorder(r FillRecorder) SimulatorOption {
	return func(s *Simulator) { s.recorder = r }
}

// WithLogger sets the logger used for per-order debug lines.
func WithLogger(log zerolog.Logger) SimulatorOption {
	return func(s *Simulator) { s.log = log }
}

// WithClock overrides the fill timestamp source.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSimulator wraps account; the account must not be mutated elsewhere while the simulator runs.
func NewSimulator(account *Account, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		account: account,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process translates in into an order with strat and settles it unless the input is a dry run.
// Any error leaves the account exactly as it was.
func (s *Simulator) Process(in signal.Input, strat strategy.Strategy, riskParam float64) (execution.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := strat.Order(in, riskParam)
	if err != nil {
		return execution.Order{}, err
	}

	notional := order.Notional(in.Price)
	if !s.limits.Allow(notional) {
		return execution.Order{}, fmt.Errorf("%w: %s %s notional %.2f > %.2f",
			ErrRiskLimit, order.Side, order.Market, notional, s.limits.MaxNotionalPerTrade)
	}

	if order.DryRun {
		s.orders = append(s.orders, order)
		s.log.Debug().
			Str("market", order.Market).
			Str("side", string(order.Side)).
			Float64("size", order.Size).
			Float64("price", order.Price).
			Msg("dry run order")
		return order, nil
	}

	price := order.FillPrice(in.Price)
	if err := s.account.MarketFill(order.Market, order.Side, order.Size, price); err != nil {
		return execution.Order{}, fmt.Errorf("settle %s %s: %w", order.Side, order.Market, err)
	}
	s.account.Mark(in.Market, in.Price)
	s.orders = append(s.orders, order)

	if s.recorder != nil {
		s.recorder.Record(execution.Fill{
			Symbol:  order.Market,
			Side:    order.Side,
			Qty:     order.Size,
			Price:   price,
			EmitKey: order.EmitKey,
			Ts:      s.now(),
		})
	}

	balance := s.account.FullBalance()
	metrics.Equity.Set(balance)
	s.log.Debug().
		Str("market", order.Market).
		Str("side", string(order.Side)).
		Float64("size", order.Size).
		Float64("price", price).
		Float64("balance", balance).
		Msg("order settled")
	return order, nil
}

// FullBalance is cash plus open positions marked at their last reference price.
func (s *Simulator) FullBalance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.FullBalance()
}

// StartingBalance returns the account's initial cash.
func (s *Simulator) StartingBalance() float64 {
	return s.account.StartingCash()
}

// Orders returns a copy of every accepted order, dry runs included, in processing order.
func (s *Simulator) Orders() []execution.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]execution.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Snapshot returns the underlying account view.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.Snapshot(nil)
}
