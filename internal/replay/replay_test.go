package replay

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalbot-go/internal/execution"
	"signalbot-go/internal/paper"
	"signalbot-go/internal/signal"
	"signalbot-go/internal/strategy"
)

func newDriver(t *testing.T, opts ...Option) (*Driver, *paper.Simulator) {
	t.Helper()
	sim := paper.NewSimulator(paper.NewAccount(1000, 0))
	parser := signal.NewParser(signal.Defaults{Interval: 60, RoundingFactorSize: 100_000, RoundingFactorPrice: 100})
	return NewDriver(parser, sim, strategy.Basic{}, 1000, opts...), sim
}

func TestCSVSourceYieldsRecordsInFileOrder(t *testing.T) {
	data := "Description,Nom\n" +
		"SuperTrend BUY BTC-USD price=100 limit=100,first\n" +
		"\"{\"\"source\"\":\"\"Mock\"\",\"\"market\"\":\"\"BTC-USD\"\",\"\"price\"\":1}\",second\n" +
		"Mock BTC-USD price=2,third\n"
	src, err := NewCSVSource(strings.NewReader(data))
	require.NoError(t, err)

	var got []Record
	for {
		rec, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}

	require.Len(t, got, 3)
	assert.Equal(t, Record{Line: 2, Name: "first", Description: "SuperTrend BUY BTC-USD price=100 limit=100"}, got[0])
	assert.Equal(t, `{"source":"Mock","market":"BTC-USD","price":1}`, got[1].Description)
	assert.Equal(t, 3, got[1].Line)
	assert.Equal(t, "third", got[2].Name)
	assert.NoError(t, src.Close())
}

func TestCSVSourceRequiresDescription(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader("Nom,Body\nx,y\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = NewCSVSource(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestOpenCSVMissingFile(t *testing.T) {
	_, err := OpenCSV(t.TempDir() + "/missing.csv")
	assert.Error(t, err)
}

func TestDriverPreservesOrder(t *testing.T) {
	var seen []int
	driver, sim := newDriver(t, WithOrderHook(func(rec Record, _ execution.Order) {
		seen = append(seen, rec.Line)
	}))

	src := NewSliceSource([]Record{
		{Description: "SuperTrend BUY BTC-USD price=100 limit=100"},
		{Description: "SuperTrend SELL BTC-USD price=120 limit=120"},
		{Description: "SuperTrend BUY BTC-USD price=110 limit=110"},
	})
	sum, err := driver.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 3, sum.Orders)

	orders := sim.Orders()
	require.Len(t, orders, 3)
	assert.Equal(t, execution.Buy, orders[0].Side)
	assert.Equal(t, execution.Sell, orders[1].Side)
	assert.Equal(t, execution.Buy, orders[2].Side)
	assert.Equal(t, sim.FullBalance(), sum.FinalBalance)
}

func TestDriverAbortsOnFirstBadRecord(t *testing.T) {
	driver, sim := newDriver(t)
	src := NewSliceSource([]Record{
		{Name: "ok", Description: "SuperTrend BUY BTC-USD price=100 limit=100"},
		{Name: "broken", Description: "SuperTrend HOLD BTC-USD price=100 limit=100"},
		{Name: "never", Description: "SuperTrend SELL BTC-USD price=200 limit=200"},
	})

	sum, err := driver.Run(context.Background(), src)
	require.Error(t, err)

	var recErr *RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, 2, recErr.Line)
	assert.Equal(t, "broken", recErr.Name)
	assert.ErrorIs(t, err, signal.ErrParse)
	assert.Contains(t, err.Error(), "action")

	assert.Equal(t, 1, sum.Processed)
	assert.Len(t, sim.Orders(), 1)
	assert.InDelta(t, 1000, sum.FinalBalance, 1e-9)
}

func TestDriverAbortsOnStrategyError(t *testing.T) {
	driver, _ := newDriver(t)
	src := NewSliceSource([]Record{{Description: "SuperTrend BUY BTC-USD price=0 limit=100"}})

	_, err := driver.Run(context.Background(), src)
	assert.ErrorIs(t, err, strategy.ErrDivisionByZero)
}

func TestDriverRejectsNegativeLimitBeforeSettlement(t *testing.T) {
	driver, sim := newDriver(t)
	src := NewSliceSource([]Record{{Description: "SuperTrend SELL BTC-USD price=10000 limit=-5 dryrun=true"}})

	_, err := driver.Run(context.Background(), src)
	assert.ErrorIs(t, err, signal.ErrParse)
	assert.Equal(t, "parse", errorKind(errors.Unwrap(err)))
	assert.Empty(t, sim.Orders())
}

func TestDriverSkipPolicyContinues(t *testing.T) {
	skipDriver, skipSim := newDriver(t, WithPolicy(PolicySkip))
	cleanDriver, cleanSim := newDriver(t)

	good := []Record{
		{Line: 1, Description: "SuperTrend BUY BTC-USD price=100 limit=100"},
		{Line: 3, Description: "SuperTrend SELL BTC-USD price=125 limit=125"},
	}
	withBad := []Record{
		good[0],
		{Line: 2, Description: "SuperTrend BUY BTC-USD price=0 limit=100"},
		good[1],
		{Line: 4, Description: "garbage"},
	}

	sum, err := skipDriver.Run(context.Background(), NewSliceSource(withBad))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 2, sum.Skipped)

	_, err = cleanDriver.Run(context.Background(), NewSliceSource(good))
	require.NoError(t, err)

	// skipped records leave no trace on the balance
	assert.Equal(t, cleanSim.Snapshot(), skipSim.Snapshot())
}

func TestDriverStopsOnCancel(t *testing.T) {
	driver, _ := newDriver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := driver.Run(ctx, NewSliceSource([]Record{{Description: "Mock BTC-USD price=1"}}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChanSourceFeedsDriver(t *testing.T) {
	driver, sim := newDriver(t)
	ch := make(chan Record)
	go func() {
		defer close(ch)
		ch <- Record{Line: 1, Description: "Market BUY ETH-USD price=2000"}
		ch <- Record{Line: 2, Description: "Market SELL ETH-USD price=2500"}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sum, err := driver.Run(ctx, NewChanSource(ch))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)
	// 0.5 bought at 2000, 0.4 sold at 2500, 0.1 left marked at 2500
	assert.InDelta(t, 1250, sim.FullBalance(), 1e-6)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, p)

	p, err = ParsePolicy(" SKIP ")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)

	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}

func TestSummaryPerformance(t *testing.T) {
	assert.InDelta(t, 10.0, Summary{StartBalance: 1000, FinalBalance: 1100}.Performance(), 1e-9)
	assert.Zero(t, Summary{}.Performance())
}
