package paper

import (
	"sync"

	"signalbot-go/internal/execution"
)

// Ledger stores paper fills in memory in settlement order.
type Ledger struct {
	mu    sync.Mutex
	fills []execution.Fill
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{fills: make([]execution.Fill, 0, capacity)}
}

// Record appends a fill to the ledger.
func (l *Ledger) Record(fill execution.Fill) {
	l.mu.Lock()
	l.fills = append(l.fills, fill)
	l.mu.Unlock()
}

// Snapshot returns a copy of the recorded fills.
func (l *Ledger) Snapshot() []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]execution.Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// Volume sums the traded notional per side for symbol.
func (l *Ledger) Volume(symbol string) (buy, sell float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.fills {
		if f.Symbol != symbol {
			continue
		}
		switch f.Side {
		case execution.Buy:
			buy += f.Qty * f.Price
		case execution.Sell:
			sell += f.Qty * f.Price
		}
	}
	return buy, sell
}

// Reset clears all stored fills.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.fills = l.fills[:0]
	l.mu.Unlock()
}

// MultiRecorder fans a fill out to several recorders in order.
type MultiRecorder []FillRecorder

func (m MultiRecorder) Record(fill execution.Fill) {
	for _, r := range m {
		if r != nil {
			r.Record(fill)
		}
	}
}
