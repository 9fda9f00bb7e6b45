package strategies

import (
	"github.com/rustyeddy/fxsignal/indicators"
	"github.com/rustyeddy/fxsignal/market"
)

// rsiCross buys when RSI climbs back out of oversold and sells when it
// falls back out of overbought. Targets are ATR multiples.
type rsiCross struct{ p Params }

func (s rsiCross) Kind() Kind  { return KindRSI }
func (s rsiCross) Warmup() int { return s.p.Windows[0] + 1 }

func (s rsiCross) Evaluate(candles []market.Candle) []Verdict {
	out := make([]Verdict, len(candles))
	rsi := indicators.RSI(candles, s.p.Windows[0])
	atr := indicators.ATR(candles, s.p.ATRWindow)

	for i := 1; i < len(candles); i++ {
		prev, cur := rsi[i-1].RSI, rsi[i].RSI
		gain := atr[i] * s.p.ATRMult
		switch {
		case prev < s.p.Oversold && cur >= s.p.Oversold:
			out[i] = Verdict{Signal: Buy, Gain: gain}
		case prev > s.p.Overbought && cur <= s.p.Overbought:
			out[i] = Verdict{Signal: Sell, Gain: gain}
		}
	}
	return out
}
