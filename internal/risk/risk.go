// Package risk holds guard-rails applied before an order touches an account.
package risk

// Limits caps the notional of a single order. A zero cap disables the check.
type Limits struct {
	MaxNotionalPerTrade float64
}

func (l Limits) Allow(notional float64) bool {
	if l.MaxNotionalPerTrade <= 0 {
		return true
	}
	return notional <= l.MaxNotionalPerTrade
}
