package indicators

import "github.com/rustyeddy/fxsignal/market"

type MACDValue struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD is EMA(fast) - EMA(slow) of the mid close, with an EMA signal line.
func MACD(candles []market.Candle, fast, slow, signal int) []MACDValue {
	closes := market.Closes(candles)
	f := EMA(closes, fast)
	s := EMA(closes, slow)

	diff := make([]float64, len(closes))
	for i := range diff {
		diff[i] = f[i] - s[i]
	}
	sig := EMA(diff, signal)

	out := make([]MACDValue, len(closes))
	for i := range out {
		out[i] = MACDValue{MACD: diff[i], Signal: sig[i], Histogram: diff[i] - sig[i]}
	}
	return out
}
