package indicators

import (
	"math"

	"github.com/rustyeddy/fxsignal/market"
)

// TrueRange of each bar. The first bar has no previous close and uses H-L.
func TrueRange(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		h, l := c.Mid.H.InexactFloat64(), c.Mid.L.InexactFloat64()
		tr := h - l
		if i > 0 {
			pc := candles[i-1].Mid.C.InexactFloat64()
			tr = math.Max(tr, math.Max(math.Abs(h-pc), math.Abs(pc-l)))
		}
		out[i] = tr
	}
	return out
}

// ATR is the SMA of the true range.
func ATR(candles []market.Candle, window int) []float64 {
	return SMA(TrueRange(candles), window)
}

// Keltner channels sit 2 ATR either side of the EMA of the mid close.
func Keltner(candles []market.Candle, emaWindow, atrWindow int) []Band {
	mid := EMA(market.Closes(candles), emaWindow)
	atr := ATR(candles, atrWindow)

	out := make([]Band, len(candles))
	for i := range out {
		out[i] = Band{
			Middle: mid[i],
			Upper:  mid[i] + 2*atr[i],
			Lower:  mid[i] - 2*atr[i],
		}
	}
	return out
}
