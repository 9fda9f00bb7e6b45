package strategies

import (
	"math"
	"testing"

	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatSeriesNeverSignals(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 1.1
	}
	candles := fromCloses(closes...)

	for _, k := range Kinds() {
		res, err := Generate(candles, Params{Kind: k})
		require.NoError(t, err, k)
		require.Len(t, res, len(candles), k)
		for i, r := range res {
			assert.Equal(t, None, r.Signal, "%s bar %d", k, i)
		}
	}
}

func TestGenerateOneResultPerCandle(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 3, 150} {
		closes := make([]float64, n)
		for i := range closes {
			closes[i] = 1.1 + 0.004*math.Sin(float64(i)/4) + 0.001*math.Cos(float64(i))
		}
		candles := fromCloses(closes...)
		for _, k := range Kinds() {
			res, err := Generate(candles, Params{Kind: k})
			require.NoError(t, err)
			assert.Len(t, res, n, "%s n=%d", k, n)
			if n > 0 {
				assert.Equal(t, None, res[0].Signal)
				assert.True(t, res[n-1].Time.Equal(candles[n-1].Time))
			}
		}
	}
}

func TestBollingerLatchBuy(t *testing.T) {
	t.Parallel()

	candles := dipAndRecover()
	res, err := Generate(candles, Params{Kind: KindBBands, Windows: []int{5}})
	require.NoError(t, err)

	for i, r := range res {
		if i == 7 {
			continue
		}
		assert.Equal(t, None, r.Signal, "bar %d", i)
	}

	r := res[7]
	require.Equal(t, Buy, r.Signal)
	assert.InDelta(t, 0.0027, r.Gain.InexactFloat64(), 0.0001)
	price := candles[7].Ask.C
	assert.True(t, r.TakeProfit.Equal(price.Add(r.Gain)))
	assert.True(t, r.StopLoss.Equal(price.Sub(r.Loss)))
	assert.InDelta(t, r.Gain.InexactFloat64()/2, r.Loss.InexactFloat64(), 0.00001)

	// latch is spent: bar 8 closes above the middle again without a new dip
	assert.Equal(t, None, res[8].Signal)
}

func TestFiltersRejectSignals(t *testing.T) {
	t.Parallel()

	wide := dipAndRecover()
	wide[7].Ask.C = wide[7].Bid.C.Add(dec("0.0005"))
	res, err := Generate(wide, Params{Kind: KindBBands, Windows: []int{5}, MaxSpread: 0.0002})
	require.NoError(t, err)
	assert.Equal(t, None, res[7].Signal, "spread filter")

	res, err = Generate(dipAndRecover(), Params{Kind: KindBBands, Windows: []int{5}, MinGain: 0.005})
	require.NoError(t, err)
	assert.Equal(t, None, res[7].Signal, "min-gain filter")
}

func TestEngulfingAfterLowerLows(t *testing.T) {
	t.Parallel()

	candles := []market.Candle{
		bar(0, 1.1050, 1.1060, 1.1030, 1.1040),
		bar(1, 1.1040, 1.1045, 1.1020, 1.1025),
		bar(2, 1.1025, 1.1030, 1.1010, 1.1015),
		bar(3, 1.1015, 1.1020, 1.1000, 1.1005),
		bar(4, 1.1003, 1.1030, 1.0998, 1.1025),
	}
	res, err := Generate(candles, Params{Kind: KindEngulfing})
	require.NoError(t, err)
	assert.Equal(t, Buy, res[4].Signal)
	assert.True(t, res[4].Gain.IsPositive())
	assert.True(t, res[4].TakeProfit.GreaterThan(candles[4].Ask.C))
	assert.True(t, res[4].StopLoss.LessThan(candles[4].Ask.C))
}

func TestGenerateRejectsBadParams(t *testing.T) {
	t.Parallel()

	candles := dipAndRecover()
	tests := []struct {
		name string
		p    Params
		want string
	}{
		{"unknown kind", Params{Kind: "ichimoku"}, "unknown strategy kind"},
		{"window count", Params{Kind: KindMACD, Windows: []int{12, 26}}, "needs 3 windows"},
		{"zero window", Params{Kind: KindRSI, Windows: []int{0}}, "must be positive"},
		{"macd order", Params{Kind: KindMACD, Windows: []int{26, 12, 9}}, "must be below slow"},
		{"negative rr", Params{Kind: KindRSI, RiskReward: -1}, "risk_reward"},
		{"zones", Params{Kind: KindRSI, Overbought: 30, Oversold: 70}, "oversold"},
	}
	for _, tt := range tests {
		res, err := Generate(candles, tt.p)
		require.Error(t, err, tt.name)
		assert.Nil(t, res, tt.name)
		assert.ErrorIs(t, err, core.ErrInvalidParams, tt.name)
		assert.Contains(t, err.Error(), tt.want, tt.name)
	}
}

func flat(n int, c float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = c
	}
	return out
}

// swingBars puts a swing low at bar 2, broken upward at bar 4, and a swing
// high at bar 6, broken downward at bar 8.
func swingBars() []market.Candle {
	return []market.Candle{
		bar(0, 1.1010, 1.1020, 1.1000, 1.1005),
		bar(1, 1.1005, 1.1010, 1.0990, 1.0995),
		bar(2, 1.0995, 1.1000, 1.0970, 1.0980),
		bar(3, 1.0980, 1.0995, 1.0975, 1.0990),
		bar(4, 1.0990, 1.1015, 1.0985, 1.1010),
		bar(5, 1.1010, 1.1030, 1.1005, 1.1025),
		bar(6, 1.1025, 1.1050, 1.1020, 1.1040),
		bar(7, 1.1040, 1.1045, 1.1025, 1.1030),
		bar(8, 1.1030, 1.1035, 1.1010, 1.1015),
	}
}

func TestStrategiesFireBothWays(t *testing.T) {
	t.Parallel()

	keltnerCloses := append(flat(22, 1.1), 1.08, 1.093)
	keltnerCloses = append(keltnerCloses, flat(14, 1.093)...)
	keltnerCloses = append(keltnerCloses, 1.113, 1.1)

	tests := []struct {
		name    string
		candles []market.Candle
		p       Params
		want    map[int]Signal
	}{
		{
			// RSI leaves oversold after the slide, then drops out of
			// overbought after the rally. Bar 1 also crosses but is warm-up.
			name: "rsi",
			candles: fromCloses(1.1, 1.099, 1.098, 1.097, 1.096, 1.095, 1.098,
				1.099, 1.1, 1.101, 1.102, 1.103, 1.1),
			p:    Params{Kind: KindRSI, Windows: []int{3}},
			want: map[int]Signal{6: Buy, 12: Sell},
		},
		{
			name: "macd",
			candles: fromCloses(1.1, 1.101, 1.102, 1.103, 1.104, 1.105, 1.103,
				1.101, 1.099, 1.0985, 1.1005, 1.1025),
			p:    Params{Kind: KindMACD, Windows: []int{2, 4, 2}},
			want: map[int]Signal{6: Sell, 10: Buy},
		},
		{
			// a close back inside the channel after a spike out of it
			name:    "keltner",
			candles: fromCloses(keltnerCloses...),
			p:       Params{Kind: KindKeltner, Windows: []int{10, 20}},
			want:    map[int]Signal{23: Buy, 39: Sell},
		},
		{
			name: "stochrsi",
			candles: fromCloses(1.1, 1.101, 1.102, 1.1, 1.101, 1.103, 1.104, 1.106,
				1.105, 1.103, 1.104, 1.103, 1.101, 1.102, 1.104, 1.103, 1.102,
				1.104, 1.105, 1.104),
			p:    Params{Kind: KindStochRSI, Windows: []int{3, 3, 2, 2}},
			want: map[int]Signal{10: Buy, 15: Sell},
		},
		{
			name:    "swing",
			candles: swingBars(),
			p:       Params{Kind: KindSwing, Windows: []int{2}},
			want:    map[int]Signal{4: Buy, 8: Sell},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := Generate(tt.candles, tt.p)
			require.NoError(t, err)
			require.Len(t, res, len(tt.candles))

			for i, r := range res {
				want, ok := tt.want[i]
				if !ok {
					assert.Equal(t, None, r.Signal, "bar %d", i)
					continue
				}
				require.Equal(t, want, r.Signal, "bar %d", i)
				require.True(t, r.Gain.IsPositive(), "bar %d gain %s", i, r.Gain)

				c := tt.candles[i]
				switch want {
				case Buy:
					assert.True(t, r.TakeProfit.Equal(c.Ask.C.Add(r.Gain)), "bar %d tp %s", i, r.TakeProfit)
					assert.True(t, r.StopLoss.Equal(c.Ask.C.Sub(r.Loss)), "bar %d sl %s", i, r.StopLoss)
				case Sell:
					assert.True(t, r.TakeProfit.Equal(c.Bid.C.Sub(r.Gain)), "bar %d tp %s", i, r.TakeProfit)
					assert.True(t, r.StopLoss.Equal(c.Bid.C.Add(r.Loss)), "bar %d sl %s", i, r.StopLoss)
				}
			}
		})
	}
}
