package indicators

import "github.com/rustyeddy/fxsignal/market"

// Band is one bar of a channel indicator.
type Band struct {
	Middle float64
	Upper  float64
	Lower  float64
}

// TypicalPrices returns (H+L+C)/3 of the mid side.
func TypicalPrices(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		h, l, cl := c.Mid.H.InexactFloat64(), c.Mid.L.InexactFloat64(), c.Mid.C.InexactFloat64()
		out[i] = (h + l + cl) / 3
	}
	return out
}

// Bollinger computes bands at SMA(typical) +/- k standard deviations.
func Bollinger(candles []market.Candle, window int, k float64) []Band {
	tp := TypicalPrices(candles)
	mid := SMA(tp, window)
	sd := StdDev(tp, window)

	out := make([]Band, len(candles))
	for i := range out {
		out[i] = Band{
			Middle: mid[i],
			Upper:  mid[i] + k*sd[i],
			Lower:  mid[i] - k*sd[i],
		}
	}
	return out
}
