package indicators

import "github.com/rustyeddy/fxsignal/market"

type StochRSIValue struct {
	Stoch float64
	K     float64
	D     float64
}

// StochRSI rescales RSI to 0-100 by its own rolling range, then smooths
// it twice with SMA. A flat range gives 0.
func StochRSI(candles []market.Candle, rsiWindow, stochWindow, kWindow, dWindow int) []StochRSIValue {
	rsi := RSI(candles, rsiWindow)
	raw := make([]float64, len(rsi))
	for i, v := range rsi {
		raw[i] = v.RSI
	}

	lo := RollingMin(raw, stochWindow)
	hi := RollingMax(raw, stochWindow)
	stoch := make([]float64, len(raw))
	for i := range raw {
		if span := hi[i] - lo[i]; span > 0 {
			stoch[i] = (raw[i] - lo[i]) / span * 100
		}
	}

	k := SMA(stoch, kWindow)
	d := SMA(k, dWindow)

	out := make([]StochRSIValue, len(raw))
	for i := range out {
		out[i] = StochRSIValue{Stoch: stoch[i], K: k[i], D: d[i]}
	}
	return out
}
