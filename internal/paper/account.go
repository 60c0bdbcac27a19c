// Package paper simulates an account that settles orders without touching a venue.
package paper

import (
	"errors"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"signalbot-go/internal/execution"
)

// FillRecorder captures paper fills for later inspection.
type FillRecorder interface {
	Record(execution.Fill)
}

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrPositionLimit   = errors.New("position limit exceeded")
	ErrUnknownSide     = errors.New("unknown order side")
)

// positionState is signed: positive quantities are long, negative are short.
type positionState struct {
	Qty     decimal.Decimal
	AvgCost decimal.Decimal
}

// Account tracks virtual cash, realized PnL, signed per-symbol positions and the last mark per symbol.
// BUY debits cash by the notional and adds to the position; SELL credits cash and subtracts.
// Balances are settled in decimal so a replay reproduces the same cents on every run.
type Account struct {
	mu                   sync.Mutex
	startingCash         float64
	cash                 decimal.Decimal
	realizedPnL          decimal.Decimal
	maxPositionPerSymbol decimal.Decimal
	positions            map[string]positionState
	marks                map[string]decimal.Decimal
}

// PositionSnapshot exposes a read-only view of a single symbol position.
type PositionSnapshot struct {
	Qty         float64
	AvgCost     float64
	Mark        float64
	MarketValue float64
	Unrealized  float64
}

// Snapshot represents a thread-safe view of the account state marked to market.
type Snapshot struct {
	Cash        float64
	RealizedPnL float64
	Equity      float64
	Positions   map[string]PositionSnapshot
}

// NewAccount constructs an account populated with starting cash and optional absolute position cap.
func NewAccount(startingCash, maxPositionPerSymbol float64) *Account {
	return &Account{
		startingCash:         startingCash,
		cash:                 decimal.NewFromFloat(startingCash),
		maxPositionPerSymbol: decimal.NewFromFloat(maxPositionPerSymbol),
		positions:            make(map[string]positionState),
		marks:                make(map[string]decimal.Decimal),
	}
}

// StartingCash returns the initial bankroll used to compute performance.
func (a *Account) StartingCash() float64 { return a.startingCash }

// MarketFill settles qty units at price. On error the account is left untouched.
func (a *Account) MarketFill(symbol string, side execution.Side, qty, price float64) error {
	if !(qty > 0) || math.IsInf(qty, 0) {
		return ErrInvalidQuantity
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return ErrInvalidPrice
	}

	q := decimal.NewFromFloat(qty)
	p := decimal.NewFromFloat(price)
	var signed decimal.Decimal
	switch side {
	case execution.Buy:
		signed = q
	case execution.Sell:
		signed = q.Neg()
	default:
		return ErrUnknownSide
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.positions[symbol]
	newQty := state.Qty.Add(signed)
	if a.maxPositionPerSymbol.IsPositive() && newQty.Abs().GreaterThan(a.maxPositionPerSymbol) {
		return ErrPositionLimit
	}

	next := positionState{Qty: newQty, AvgCost: state.AvgCost}
	switch {
	case state.Qty.IsZero() || state.Qty.Sign() == signed.Sign():
		// opening or adding
		next.AvgCost = state.AvgCost.Mul(state.Qty.Abs()).Add(p.Mul(q)).Div(newQty.Abs())
	default:
		closed := decimal.Min(q, state.Qty.Abs())
		if state.Qty.IsPositive() {
			a.realizedPnL = a.realizedPnL.Add(p.Sub(state.AvgCost).Mul(closed))
		} else {
			a.realizedPnL = a.realizedPnL.Add(state.AvgCost.Sub(p).Mul(closed))
		}
		if !newQty.IsZero() && newQty.Sign() != state.Qty.Sign() {
			// flipped through flat; the remainder opens at the fill price
			next.AvgCost = p
		}
	}

	a.cash = a.cash.Sub(signed.Mul(p))
	if next.Qty.IsZero() {
		delete(a.positions, symbol)
	} else {
		a.positions[symbol] = next
	}
	return nil
}

// Mark records the latest reference price for symbol; non-positive prices are ignored.
func (a *Account) Mark(symbol string, price float64) {
	if !(price > 0) || math.IsInf(price, 0) {
		return
	}
	a.mu.Lock()
	a.marks[symbol] = decimal.NewFromFloat(price)
	a.mu.Unlock()
}

// Snapshot returns a copy of balances. Positions are marked with prices when supplied,
// then the last recorded mark, then average cost.
func (a *Account) Snapshot(prices map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(prices)
}

func (a *Account) snapshotLocked(prices map[string]float64) Snapshot {
	positions := make(map[string]PositionSnapshot, len(a.positions))
	equity := a.cash
	for sym, pos := range a.positions {
		var mark decimal.Decimal
		if px := prices[sym]; px > 0 && !math.IsInf(px, 0) {
			mark = decimal.NewFromFloat(px)
		} else if m, ok := a.marks[sym]; ok {
			mark = m
		} else {
			mark = pos.AvgCost
		}
		marketValue := pos.Qty.Mul(mark)
		positions[sym] = PositionSnapshot{
			Qty:         pos.Qty.InexactFloat64(),
			AvgCost:     pos.AvgCost.InexactFloat64(),
			Mark:        mark.InexactFloat64(),
			MarketValue: marketValue.InexactFloat64(),
			Unrealized:  mark.Sub(pos.AvgCost).Mul(pos.Qty).InexactFloat64(),
		}
		equity = equity.Add(marketValue)
	}

	return Snapshot{
		Cash:        a.cash.InexactFloat64(),
		RealizedPnL: a.realizedPnL.InexactFloat64(),
		Equity:      equity.InexactFloat64(),
		Positions:   positions,
	}
}

// FullBalance is cash plus every open position marked at its last price.
func (a *Account) FullBalance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(nil).Equity
}

// AvailableCash reports the cash balance.
func (a *Account) AvailableCash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash.InexactFloat64()
}

// Position returns the signed position size for the supplied symbol.
func (a *Account) Position(symbol string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[symbol].Qty.InexactFloat64()
}

// RealizedPnL returns total closed-trade profit and loss.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL.InexactFloat64()
}
