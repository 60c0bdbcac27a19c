package signal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefaults() Defaults {
	return Defaults{
		Interval:            60,
		RoundingFactorSize:  100_000,
		RoundingFactorPrice: 100,
		DryRun:              false,
		EmitKey:             "replay",
	}
}

func TestParseSuperTrendText(t *testing.T) {
	p := NewParser(testDefaults())

	in, err := p.Parse("SuperTrend BUY btc-usd price=43000.5 limit=43100")
	require.NoError(t, err)

	assert.Equal(t, Input{
		Interval:            60,
		RoundingFactorSize:  100_000,
		RoundingFactorPrice: 100,
		EmitKey:             "replay",
		Market:              "BTC-USD",
		Price:               43000.5,
		Source:              SourceSuperTrend,
		Details:             SuperTrendDetails{Action: ActionBuy, Limit: 43100},
	}, in)
	require.NoError(t, in.Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	p := NewParser(testDefaults())

	in, err := p.Parse("supertrend sell ETH/USD price=2000 limit=1999.5 interval=300 size_factor=1000 price_factor=10 dryrun=true key=alpha")
	require.NoError(t, err)

	assert.Equal(t, "ETH-USD", in.Market)
	assert.Equal(t, 300, in.Interval)
	assert.Equal(t, int64(1000), in.RoundingFactorSize)
	assert.Equal(t, int64(10), in.RoundingFactorPrice)
	assert.True(t, in.DryRun)
	assert.Equal(t, "alpha", in.EmitKey)
	assert.Equal(t, SuperTrendDetails{Action: ActionSell, Limit: 1999.5}, in.Details)

	// defaults are not mutated by overrides
	assert.Equal(t, testDefaults(), p.Defaults())
}

func TestParseMarketAndMock(t *testing.T) {
	p := NewParser(testDefaults())

	in, err := p.Parse("Market SELL SOL-USD price=150")
	require.NoError(t, err)
	assert.Equal(t, SourceMarket, in.Source)
	assert.Equal(t, MarketDetails{Action: ActionSell}, in.Details)

	in, err = p.Parse("Mock BTC-USD price=100")
	require.NoError(t, err)
	assert.Equal(t, SourceMock, in.Source)
	assert.Equal(t, MockDetails{}, in.Details)
	assert.Equal(t, 100.0, in.Price)
}

func TestParseJSONAlert(t *testing.T) {
	p := NewParser(testDefaults())

	raw := `{"source":"SuperTrend","market":"BTC-USD","price":"10000","interval":15,"roundingFactorSize":10000000,"dryrun":true,"emitKey":"tv","details":{"action":"SELL","limit":50000}}`
	in, err := p.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, Input{
		Interval:            15,
		RoundingFactorSize:  10_000_000,
		RoundingFactorPrice: 100,
		DryRun:              true,
		EmitKey:             "tv",
		Market:              "BTC-USD",
		Price:               10000,
		Source:              SourceSuperTrend,
		Details:             SuperTrendDetails{Action: ActionSell, Limit: 50000},
	}, in)

	in, err = p.Parse(`{"source":"mock","market":"BTC-USD","price":12.5}`)
	require.NoError(t, err)
	assert.Equal(t, MockDetails{}, in.Details)
}

func TestParseIsDeterministic(t *testing.T) {
	p := NewParser(testDefaults())
	raw := "SuperTrend SELL BTC-USD price=41000 limit=40990.25"

	first, err := p.Parse(raw)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := p.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParseErrors(t *testing.T) {
	p := NewParser(testDefaults())

	cases := []struct {
		name  string
		raw   string
		field string
	}{
		{"empty", "   ", "description"},
		{"unknown keyword", "RSI BUY BTC-USD price=1", "source"},
		{"bad action", "SuperTrend ERR BTC-USD price=1 limit=2", "action"},
		{"missing limit", "SuperTrend BUY BTC-USD price=1", "limit"},
		{"missing price", "SuperTrend BUY BTC-USD limit=1", "price"},
		{"malformed price", "SuperTrend BUY BTC-USD price=abc limit=1", "price"},
		{"malformed limit", "SuperTrend BUY BTC-USD price=1 limit=1.2.3", "limit"},
		{"negative limit", "SuperTrend SELL BTC-USD price=10000 limit=-5", "limit"},
		{"zero limit", "SuperTrend BUY BTC-USD price=10000 limit=0", "limit"},
		{"json zero limit", `{"source":"SuperTrend","market":"BTC-USD","price":1,"details":{"action":"BUY","limit":"0"}}`, "limit"},
		{"non finite", "Market BUY BTC-USD price=NaN", "price"},
		{"bad market", "Market BUY BTC_USD! price=1", "market"},
		{"unknown field", "Market BUY BTC-USD price=1 limit=2", "limit"},
		{"duplicate field", "Mock BTC-USD price=1 price=2", "price"},
		{"bare token", "Mock BTC-USD price=1 oops", "oops"},
		{"layout", "SuperTrend BUY", "format"},
		{"bad factor", "Mock BTC-USD price=1 size_factor=0", "size_factor"},
		{"bad interval", "Mock BTC-USD price=1 interval=-5", "interval"},
		{"bad dryrun", "Mock BTC-USD price=1 dryrun=maybe", "dryrun"},
		{"json syntax", `{"source":"SuperTrend",`, "json"},
		{"json unknown key", `{"source":"Mock","market":"BTC-USD","price":1,"foo":1}`, "json"},
		{"json source", `{"source":"Elliott","market":"BTC-USD","price":1}`, "source"},
		{"json action", `{"source":"SuperTrend","market":"BTC-USD","price":1,"details":{"action":"HOLD","limit":1}}`, "action"},
		{"json mock action", `{"source":"Mock","market":"BTC-USD","price":1,"details":{"action":"BUY"}}`, "action"},
		{"json details", `{"source":"SuperTrend","market":"BTC-USD","price":1,"details":{"side":"BUY"}}`, "details"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := p.Parse(tc.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse))
			assert.Equal(t, Input{}, in, "failed parse must not leak a partial input")

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.field, pe.Field)
		})
	}
}

func TestFromDetails(t *testing.T) {
	p := NewParser(testDefaults())

	in, err := p.FromDetails("btc-usd", 10000, SuperTrendDetails{Action: ActionBuy, Limit: 50000})
	require.NoError(t, err)
	assert.Equal(t, SourceSuperTrend, in.Source)
	assert.Equal(t, "BTC-USD", in.Market)
	assert.Equal(t, int64(100_000), in.RoundingFactorSize)

	_, err = p.FromDetails("BTC-USD", 1, nil)
	assert.ErrorIs(t, err, ErrParse)
}

func TestInputValidate(t *testing.T) {
	in := Input{Source: SourceSuperTrend, Details: MockDetails{}}
	assert.Error(t, in.Validate())

	in = Input{Source: SourceMock}
	assert.Error(t, in.Validate())

	in = Input{Source: SourceMarket, Details: MarketDetails{Action: ActionBuy}}
	assert.NoError(t, in.Validate())
}
