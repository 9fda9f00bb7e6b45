package live

import (
	"context"
	"testing"
	"time"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/broker/sim"
	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/internal/retry"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/rustyeddy/fxsignal/strategies"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func flatTick(instrument, price string) market.Tick {
	return market.Tick{
		Instrument: instrument,
		Time:       time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		Bid:        dec(price),
		Ask:        dec(price),
	}
}

// openLong fills a 1000 unit buy on EUR_USD at 1.1000 with the stop 20
// pips away and a target far enough not to trigger.
func openLong(t *testing.T, e *sim.Engine) (broker.OrderFill, TrailingStop) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.UpdatePrice(ctx, flatTick("EUR_USD", "1.1000")))

	sl, tp := dec("1.0980"), dec("1.1100")
	fill, err := e.SubmitOrder(ctx, broker.OrderRequest{
		Instrument: "EUR_USD",
		Units:      1000,
		StopLoss:   &sl,
		TakeProfit: &tp,
	})
	require.NoError(t, err)
	return fill, NewTrailingStop(fill.TradeID, "EUR_USD", strategies.Buy, fill.Price, sl, 2, 5)
}

func startTrailer(t *testing.T, e *sim.Engine) *Trailer {
	t.Helper()
	tr := NewTrailer(TrailerConfig{
		Capacity:    1,
		Interval:    10 * time.Millisecond,
		Retry:       retry.Policy{Attempts: 2, Delay: time.Millisecond},
		CallTimeout: time.Second,
	}, e, e, nil, nil)
	tr.Start(context.Background())
	t.Cleanup(tr.Stop)
	return tr
}

func stopOf(t *testing.T, e *sim.Engine, id string) decimal.Decimal {
	t.Helper()
	tr, err := e.GetTrade(context.Background(), id)
	require.NoError(t, err)
	return tr.StopLoss
}

func TestTrailerWaitsUntilTradeCloses(t *testing.T) {
	t.Parallel()

	e := sim.NewEngine(broker.Account{Balance: dec("10000")})
	fill, ts := openLong(t, e)
	require.NoError(t, e.UpdatePrice(context.Background(), flatTick("EUR_USD", "1.1010")))

	tr := startTrailer(t, e)
	require.NoError(t, tr.Track(ts))

	require.Eventually(t, func() bool { return e.Calls(sim.OpGetTrade) >= 3 },
		2*time.Second, 5*time.Millisecond)
	assert.Zero(t, e.Calls(sim.OpUpdateStopLoss))
	assert.True(t, stopOf(t, e, fill.TradeID).Equal(dec("1.0980")))

	require.NoError(t, e.CloseTrade(context.Background(), fill.TradeID, ""))

	// dropped: polling stops
	require.Eventually(t, func() bool {
		before := e.Calls(sim.OpGetTrade)
		time.Sleep(40 * time.Millisecond)
		return e.Calls(sim.OpGetTrade) == before
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTrailerLocksStopAtEntry(t *testing.T) {
	t.Parallel()

	e := sim.NewEngine(broker.Account{Balance: dec("10000")})
	fill, ts := openLong(t, e)
	require.NoError(t, e.UpdatePrice(context.Background(), flatTick("EUR_USD", "1.1020")))

	tr := startTrailer(t, e)
	require.NoError(t, tr.Track(ts))

	require.Eventually(t, func() bool {
		return stopOf(t, e, fill.TradeID).Equal(dec("1.1000"))
	}, 2*time.Second, 5*time.Millisecond)

	// once locked, a flat price only waits
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, e.Calls(sim.OpUpdateStopLoss))
}

func TestTrailerMovesStopBehindPrice(t *testing.T) {
	t.Parallel()

	e := sim.NewEngine(broker.Account{Balance: dec("10000")})
	fill, ts := openLong(t, e)
	require.NoError(t, e.UpdatePrice(context.Background(), flatTick("EUR_USD", "1.1040")))

	tr := startTrailer(t, e)
	require.NoError(t, tr.Track(ts))

	require.Eventually(t, func() bool {
		return stopOf(t, e, fill.TradeID).Equal(dec("1.1020"))
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.UpdatePrice(context.Background(), flatTick("EUR_USD", "1.1065")))
	require.Eventually(t, func() bool {
		return stopOf(t, e, fill.TradeID).Equal(dec("1.1045"))
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTrailerDropsAfterFailedMove(t *testing.T) {
	t.Parallel()

	e := sim.NewEngine(broker.Account{Balance: dec("10000")})
	fill, ts := openLong(t, e)
	e.Fail(sim.OpUpdateStopLoss, 5, core.WrapError(core.ErrOrderFailed, nil))
	require.NoError(t, e.UpdatePrice(context.Background(), flatTick("EUR_USD", "1.1040")))

	tr := startTrailer(t, e)
	require.NoError(t, tr.Track(ts))

	require.Eventually(t, func() bool { return e.Calls(sim.OpUpdateStopLoss) == 1 },
		2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, e.Calls(sim.OpGetTrade))
	assert.Equal(t, 1, e.Calls(sim.OpUpdateStopLoss))
	assert.True(t, stopOf(t, e, fill.TradeID).Equal(dec("1.0980")))
}

func TestTrailerRetriesTransientGetTrade(t *testing.T) {
	t.Parallel()

	e := sim.NewEngine(broker.Account{Balance: dec("10000")})
	fill, ts := openLong(t, e)
	e.Fail(sim.OpGetTrade, 2, nil)
	require.NoError(t, e.UpdatePrice(context.Background(), flatTick("EUR_USD", "1.1020")))

	tr := startTrailer(t, e)
	require.NoError(t, tr.Track(ts))

	require.Eventually(t, func() bool {
		return stopOf(t, e, fill.TradeID).Equal(dec("1.1000"))
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFromTrade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		trade  broker.Trade
		ok     bool
		signal strategies.Signal
		step   string
		target string
	}{
		{
			name: "long already trailed past entry",
			trade: broker.Trade{ID: "1", Instrument: "EUR_USD", Units: dec("1000"), Price: dec("1.1000"),
				StopLoss: dec("1.1010"), TakeProfit: dec("1.1060"), State: broker.TradeOpen},
			ok: true, signal: strategies.Buy, step: "0.003", target: "0.004",
		},
		{
			name: "short without take profit",
			trade: broker.Trade{ID: "2", Instrument: "EUR_USD", Units: dec("-1000"), Price: dec("1.2000"),
				StopLoss: dec("1.2030"), State: broker.TradeOpen},
			ok: true, signal: strategies.Sell, step: "0.003", target: "0.003",
		},
		{
			name: "no stop",
			trade: broker.Trade{ID: "3", Instrument: "EUR_USD", Units: dec("1000"), Price: dec("1.1000"),
				State: broker.TradeOpen},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts, ok := FromTrade(tt.trade, 2)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.signal, ts.Signal)
			assert.True(t, ts.Step.Equal(dec(tt.step)), "step %s", ts.Step)
			assert.True(t, ts.Target.Equal(dec(tt.target)), "target %s", ts.Target)
			assert.True(t, ts.Stop.Equal(tt.trade.StopLoss))
		})
	}
}
