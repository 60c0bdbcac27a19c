// Package strategy maps normalized inputs to orders.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"signalbot-go/internal/execution"
	"signalbot-go/internal/signal"
	"signalbot-go/internal/util"
)

var (
	// ErrStrategy is wrapped by every StrategyError.
	ErrStrategy        = errors.New("strategy error")
	ErrUnknownSource   = fmt.Errorf("%w: unsupported source", ErrStrategy)
	ErrUnknownAction   = fmt.Errorf("%w: unsupported action", ErrStrategy)
	ErrDivisionByZero  = fmt.Errorf("%w: reference price must be positive and finite", ErrStrategy)
	ErrInvalidRisk     = fmt.Errorf("%w: risk must be positive and finite", ErrStrategy)
	ErrInvalidRounding = fmt.Errorf("%w: rounding factor must be positive", ErrStrategy)
	ErrInvalidLimit    = fmt.Errorf("%w: limit price must be positive and finite", ErrStrategy)
	ErrZeroSize        = fmt.Errorf("%w: order size rounds to zero", ErrStrategy)
)

// StrategyError names the input value a strategy refused.
type StrategyError struct {
	Field string
	Value string
	Err   error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%v: %s=%q", e.Err, e.Field, e.Value)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// Strategy turns one input and a risk budget into an order. Implementations must be pure.
type Strategy interface {
	Name() string
	Order(in signal.Input, risk float64) (execution.Order, error)
}

// Basic sizes every order at risk/price and trades in the alert's direction.
type Basic struct{}

// Name returns the identifier for logging.
func (Basic) Name() string { return "basic" }

// Order delegates to ComputeOrder.
func (Basic) Order(in signal.Input, risk float64) (execution.Order, error) {
	return ComputeOrder(in, risk)
}

// ComputeOrder is the stateless basic translation. Size is rounded from the
// reference price with RoundingFactorSize; the limit, when the source has one,
// is rounded with RoundingFactorPrice.
func ComputeOrder(in signal.Input, risk float64) (execution.Order, error) {
	if err := in.Validate(); err != nil {
		return execution.Order{}, &StrategyError{Field: "source", Value: string(in.Source), Err: fmt.Errorf("%w: %v", ErrUnknownSource, err)}
	}

	var (
		side      execution.Side
		limit     float64
		hasLimit  bool
		actionErr error
	)

	switch d := in.Details.(type) {
	case signal.SuperTrendDetails:
		side, actionErr = sideFor(d.Action)
		limit, hasLimit = d.Limit, true
	case signal.MarketDetails:
		side, actionErr = sideFor(d.Action)
	case signal.MockDetails:
		side = execution.Buy
		limit, hasLimit = in.Price, true
	default:
		return execution.Order{}, &StrategyError{Field: "source", Value: string(in.Source), Err: ErrUnknownSource}
	}
	if actionErr != nil {
		return execution.Order{}, actionErr
	}

	if !(risk > 0) || math.IsInf(risk, 0) {
		return execution.Order{}, &StrategyError{Field: "risk", Value: formatFloat(risk), Err: ErrInvalidRisk}
	}
	if !(in.Price > 0) || math.IsInf(in.Price, 0) {
		return execution.Order{}, &StrategyError{Field: "price", Value: formatFloat(in.Price), Err: ErrDivisionByZero}
	}
	if hasLimit && !finitePositive(limit) {
		return execution.Order{}, &StrategyError{Field: "limit", Value: formatFloat(limit), Err: ErrInvalidLimit}
	}
	if in.RoundingFactorSize <= 0 {
		return execution.Order{}, &StrategyError{Field: "roundingFactorSize", Value: strconv.FormatInt(in.RoundingFactorSize, 10), Err: ErrInvalidRounding}
	}
	if hasLimit && in.RoundingFactorPrice <= 0 {
		return execution.Order{}, &StrategyError{Field: "roundingFactorPrice", Value: strconv.FormatInt(in.RoundingFactorPrice, 10), Err: ErrInvalidRounding}
	}

	// a tiny price can overflow the quotient even when both operands are valid
	raw := risk / in.Price
	if math.IsInf(raw, 0) || math.IsNaN(raw) {
		return execution.Order{}, &StrategyError{Field: "price", Value: formatFloat(in.Price), Err: ErrDivisionByZero}
	}
	size := util.RoundTo(raw, in.RoundingFactorSize)
	if !finitePositive(size) {
		return execution.Order{}, &StrategyError{Field: "size", Value: formatFloat(raw), Err: ErrZeroSize}
	}

	order := execution.Order{
		Market:  in.Market,
		Side:    side,
		Type:    execution.Market,
		Size:    size,
		DryRun:  in.DryRun,
		EmitKey: in.EmitKey,
	}
	if hasLimit {
		price := util.RoundTo(limit, in.RoundingFactorPrice)
		if !finitePositive(price) {
			return execution.Order{}, &StrategyError{Field: "limit", Value: formatFloat(limit), Err: ErrInvalidLimit}
		}
		order.Type = execution.Limit
		order.Price = price
	}
	return order, nil
}

func finitePositive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}

func sideFor(a signal.Action) (execution.Side, error) {
	switch a {
	case signal.ActionBuy:
		return execution.Buy, nil
	case signal.ActionSell:
		return execution.Sell, nil
	default:
		return "", &StrategyError{Field: "action", Value: string(a), Err: ErrUnknownAction}
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
