package strategies

import (
	"github.com/rustyeddy/fxsignal/indicators"
	"github.com/rustyeddy/fxsignal/market"
)

// engulfing takes reversal candles at the end of a short trend: a bullish
// engulfing bar after n lower lows, or a bearish one after n higher highs.
type engulfing struct{ p Params }

func (s engulfing) Kind() Kind  { return KindEngulfing }
func (s engulfing) Warmup() int { return s.p.Windows[0] + 1 }

func (s engulfing) Evaluate(candles []market.Candle) []Verdict {
	n := s.p.Windows[0]
	out := make([]Verdict, len(candles))
	atr := indicators.ATR(candles, s.p.ATRWindow)

	for i := 1; i < len(candles); i++ {
		gain := atr[i] * s.p.ATRMult
		switch {
		case indicators.BullishEngulfing(candles[i-1], candles[i]) && indicators.LowerLows(candles, i-1, n):
			out[i] = Verdict{Signal: Buy, Gain: gain}
		case indicators.BearishEngulfing(candles[i-1], candles[i]) && indicators.HigherHighs(candles, i-1, n):
			out[i] = Verdict{Signal: Sell, Gain: gain}
		}
	}
	return out
}
