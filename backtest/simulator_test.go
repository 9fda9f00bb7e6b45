package backtest

import (
	"testing"
	"time"

	"github.com/rustyeddy/fxsignal/market"
	"github.com/rustyeddy/fxsignal/strategies"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ohlc(o, h, l, c string) market.OHLC {
	return market.OHLC{O: dec(o), H: dec(h), L: dec(l), C: dec(c)}
}

// candle uses the same prices for bid, mid and ask unless ask is given.
func candle(i int, bid market.OHLC, ask ...market.OHLC) market.Candle {
	a := bid
	if len(ask) > 0 {
		a = ask[0]
	}
	return market.Candle{
		Instrument:  "EUR_USD",
		Granularity: market.H1,
		Time:        t0.Add(time.Duration(i) * time.Hour),
		Complete:    true,
		Bid:         bid,
		Mid:         bid.Mid(a),
		Ask:         a,
	}
}

func none(n int) []strategies.IndicatorResult {
	out := make([]strategies.IndicatorResult, n)
	for i := range out {
		out[i].Time = t0.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func buyAt(res []strategies.IndicatorResult, i int, tp, sl string) {
	res[i].Signal = strategies.Buy
	res[i].TakeProfit = dec(tp)
	res[i].StopLoss = dec(sl)
}

func sellAt(res []strategies.IndicatorResult, i int, tp, sl string) {
	res[i].Signal = strategies.Sell
	res[i].TakeProfit = dec(tp)
	res[i].StopLoss = dec(sl)
}

func TestAmbiguousBarIsUnknown(t *testing.T) {
	t.Parallel()

	candles := []market.Candle{
		candle(0, ohlc("1.0990", "1.1000", "1.0990", "1.0998"), ohlc("1.0992", "1.1002", "1.0992", "1.1000")),
		candle(1, ohlc("1.1000", "1.1150", "1.0900", "1.1010")),
	}
	res := none(2)
	buyAt(res, 0, "1.1100", "1.0950")

	trades, err := Simulate(candles, res, false)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.True(t, tr.EntryPrice.Equal(dec("1.1000")), "buy enters at ask close")
	assert.Equal(t, OutcomeUnknown, tr.Outcome)
	assert.True(t, tr.ClosePrice.Equal(dec("1.1025")), tr.ClosePrice.String())
	assert.False(t, tr.Running)
	assert.Equal(t, 1, tr.CloseIndex)
}

func TestTakeProfitScores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bar   market.OHLC
		score float64
	}{
		{"closed beyond target", ohlc("1.1000", "1.1120", "1.0990", "1.1110"), 1},
		{"touched and fell back", ohlc("1.1000", "1.1120", "1.0990", "1.1050"), 0.5},
		{"closed below entry", ohlc("1.1000", "1.1120", "1.0960", "1.0980"), 0},
	}
	for _, tt := range tests {
		candles := []market.Candle{
			candle(0, ohlc("1.1000", "1.1000", "1.1000", "1.1000")),
			candle(1, tt.bar),
		}
		res := none(2)
		buyAt(res, 0, "1.1100", "1.0950")

		trades, err := Simulate(candles, res, false)
		require.NoError(t, err, tt.name)
		require.Len(t, trades, 1, tt.name)
		assert.Equal(t, OutcomeWin, trades[0].Outcome, tt.name)
		assert.InDelta(t, tt.score, trades[0].Score, 1e-9, tt.name)
		assert.True(t, trades[0].ClosePrice.Equal(dec("1.1100")), tt.name)
		assert.True(t, trades[0].PL.Equal(dec("0.0100")), tt.name)
	}
}

func TestStopLossLoss(t *testing.T) {
	t.Parallel()

	candles := []market.Candle{
		candle(0, ohlc("1.1000", "1.1000", "1.1000", "1.1000")),
		candle(1, ohlc("1.1000", "1.1010", "1.0990", "1.1005")),
		candle(2, ohlc("1.1000", "1.1010", "1.0940", "1.0960")),
	}
	res := none(3)
	buyAt(res, 0, "1.1100", "1.0950")

	trades, err := Simulate(candles, res, false)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, OutcomeLoss, trades[0].Outcome)
	assert.Equal(t, -1.0, trades[0].Score)
	assert.True(t, trades[0].ClosePrice.Equal(dec("1.0950")))
	assert.Equal(t, 2, trades[0].CloseIndex)
}

func TestTrailingMovesStopToEntryOnce(t *testing.T) {
	t.Parallel()

	candles := []market.Candle{
		candle(0, ohlc("1.1000", "1.1000", "1.1000", "1.1000")),
		candle(1, ohlc("1.1000", "1.1060", "1.0990", "1.1040")), // halfway is 1.1050
		candle(2, ohlc("1.1040", "1.1045", "1.0995", "1.1000")),
	}
	res := none(3)
	buyAt(res, 0, "1.1100", "1.0950")

	trades, err := Simulate(candles, res, true)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Trailed)
	assert.Equal(t, OutcomeEven, trades[0].Outcome)
	assert.True(t, trades[0].StopLoss.Equal(dec("1.1000")))

	// without trailing the same path keeps running
	trades, err = Simulate(candles, res, false)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Running)
	assert.False(t, trades[0].Trailed)
}

func TestSellUsesAskForExits(t *testing.T) {
	t.Parallel()

	candles := []market.Candle{
		candle(0, ohlc("1.1000", "1.1000", "1.1000", "1.1000"), ohlc("1.1002", "1.1002", "1.1002", "1.1002")),
		// bid low reaches the target but ask low does not
		candle(1, ohlc("1.0990", "1.0995", "1.0899", "1.0950"), ohlc("1.0992", "1.0997", "1.0901", "1.0952")),
		candle(2, ohlc("1.0950", "1.0960", "1.0880", "1.0890"), ohlc("1.0952", "1.0962", "1.0882", "1.0892")),
	}
	res := none(3)
	sellAt(res, 0, "1.0900", "1.1050")

	trades, err := Simulate(candles, res, false)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.True(t, tr.EntryPrice.Equal(dec("1.1000")), "sell enters at bid close")
	assert.Equal(t, OutcomeWin, tr.Outcome)
	assert.Equal(t, 2, tr.CloseIndex)
	assert.Equal(t, 1.0, tr.Score)
	assert.True(t, tr.PL.Equal(dec("0.0100")))
}

func TestOneTradeAtATime(t *testing.T) {
	t.Parallel()

	n := 12
	candles := make([]market.Candle, n)
	res := none(n)
	for i := range candles {
		// oscillate so some trades close
		p := "1.1000"
		if i%3 == 2 {
			p = "1.1200"
		}
		candles[i] = candle(i, ohlc(p, p, p, p))
		buyAt(res, i, "1.1100", "1.0900")
	}

	trades, err := Simulate(candles, res, false)
	require.NoError(t, err)
	require.NotEmpty(t, trades)

	running := 0
	for k, tr := range trades {
		if tr.Running {
			running++
			continue
		}
		assert.Greater(t, tr.CloseIndex, tr.EntryIndex)
		if k+1 < len(trades) {
			assert.GreaterOrEqual(t, trades[k+1].EntryIndex, tr.CloseIndex, "no overlap")
		}
	}
	assert.LessOrEqual(t, running, 1)
}

func TestSimulateLengthMismatch(t *testing.T) {
	t.Parallel()

	_, err := Simulate(make([]market.Candle, 2), none(3), false)
	assert.Error(t, err)
}
