package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"signalbot-go/internal/execution"
	"signalbot-go/internal/metrics"
	"signalbot-go/internal/paper"
	"signalbot-go/internal/signal"
	"signalbot-go/internal/strategy"
)

// Policy decides what a failed record does to the run.
type Policy string

const (
	// PolicyAbort stops the run at the first failed record.
	PolicyAbort Policy = "abort"
	// PolicySkip logs the failed record and continues with the next one.
	PolicySkip Policy = "skip"
)

// ParsePolicy resolves a configured policy name; empty means abort.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown replay error policy %q", raw)
	}
}

// RecordError attributes a parse, strategy or settlement failure to its record.
type RecordError struct {
	Line int
	Name string
	Err  error
}

func (e *RecordError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("alert line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("alert line %d (%s): %v", e.Line, e.Name, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Summary reports the outcome of a run.
type Summary struct {
	Processed    int
	Skipped      int
	Orders       int
	DryRuns      int
	StartBalance float64
	FinalBalance float64
}

// Performance is the percentage change of the full balance over the run.
func (s Summary) Performance() float64 {
	if s.StartBalance == 0 {
		return 0
	}
	return (s.FinalBalance/s.StartBalance - 1) * 100
}

// OrderHook receives every accepted order after the simulator settled it.
type OrderHook func(rec Record, order execution.Order)

// Driver pulls one record at a time and waits for it to settle before pulling the next.
type Driver struct {
	parser *signal.Parser
	sim    *paper.Simulator
	strat  strategy.Strategy
	risk   float64
	policy Policy
	log    zerolog.Logger
	hook   OrderHook
}

// Option configures Driver construction parameters.
type Option func(*Driver)

// WithPolicy sets the failed-record policy.
func WithPolicy(p Policy) Option {
	return func(d *Driver) {
		if p != "" {
			d.policy = p
		}
	}
}

// WithLogger sets the driver logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Driver) { d.log = log }
}

// WithOrderHook forwards accepted orders, e.g. to an execution.Executor.
func WithOrderHook(h OrderHook) Option {
	return func(d *Driver) { d.hook = h }
}

// NewDriver wires a parser, simulator and strategy with a fixed risk budget.
func NewDriver(parser *signal.Parser, sim *paper.Simulator, strat strategy.Strategy, risk float64, opts ...Option) *Driver {
	d := &Driver{
		parser: parser,
		sim:    sim,
		strat:  strat,
		risk:   risk,
		policy: PolicyAbort,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes src until io.EOF. Source failures and context cancellation always stop the run;
// record failures follow the driver policy.
func (d *Driver) Run(ctx context.Context, src Source) (Summary, error) {
	sum := Summary{StartBalance: d.sim.FullBalance()}

	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			sum.FinalBalance = d.sim.FullBalance()
			return sum, nil
		}
		if err != nil {
			sum.FinalBalance = d.sim.FullBalance()
			return sum, err
		}

		order, err := d.step(rec)
		if err != nil {
			metrics.ReplayErrorsTotal.WithLabelValues(errorKind(err)).Inc()
			recErr := &RecordError{Line: rec.Line, Name: rec.Name, Err: err}
			if d.policy == PolicySkip {
				sum.Skipped++
				d.log.Warn().Err(err).Int("line", rec.Line).Str("name", rec.Name).Msg("skipping alert")
				continue
			}
			sum.FinalBalance = d.sim.FullBalance()
			return sum, recErr
		}
		sum.Processed++
		if order.DryRun {
			sum.DryRuns++
		} else {
			sum.Orders++
		}
	}
}

func (d *Driver) step(rec Record) (execution.Order, error) {
	in, err := d.parser.Parse(rec.Description)
	if err != nil {
		return execution.Order{}, err
	}
	metrics.SignalsTotal.WithLabelValues(string(in.Source)).Inc()

	order, err := d.sim.Process(in, d.strat, d.risk)
	if err != nil {
		return execution.Order{}, err
	}
	d.log.Debug().
		Int("line", rec.Line).
		Str("source", string(in.Source)).
		Str("market", order.Market).
		Str("side", string(order.Side)).
		Float64("size", order.Size).
		Float64("price", order.Price).
		Bool("dryrun", order.DryRun).
		Msg("alert processed")

	if d.hook != nil {
		d.hook(rec, order)
	}
	return order, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, signal.ErrParse):
		return "parse"
	case errors.Is(err, strategy.ErrStrategy):
		return "strategy"
	case errors.Is(err, paper.ErrRiskLimit):
		return "risk"
	default:
		return "settle"
	}
}
