package strategies

import (
	"github.com/rustyeddy/fxsignal/indicators"
	"github.com/rustyeddy/fxsignal/market"
)

// macdFlip trades a histogram sign change that agrees with the slope of
// the slow EMA.
type macdFlip struct{ p Params }

func (s macdFlip) Kind() Kind  { return KindMACD }
func (s macdFlip) Warmup() int { return s.p.Windows[1] + s.p.Windows[2] }

func (s macdFlip) Evaluate(candles []market.Candle) []Verdict {
	out := make([]Verdict, len(candles))
	m := indicators.MACD(candles, s.p.Windows[0], s.p.Windows[1], s.p.Windows[2])
	slow := indicators.EMA(market.Closes(candles), s.p.Windows[1])
	atr := indicators.ATR(candles, s.p.ATRWindow)

	for i := 1; i < len(candles); i++ {
		gain := atr[i] * s.p.ATRMult
		rising := slow[i] > slow[i-1]
		falling := slow[i] < slow[i-1]
		switch {
		case m[i-1].Histogram <= 0 && m[i].Histogram > 0 && rising:
			out[i] = Verdict{Signal: Buy, Gain: gain}
		case m[i-1].Histogram >= 0 && m[i].Histogram < 0 && falling:
			out[i] = Verdict{Signal: Sell, Gain: gain}
		}
	}
	return out
}
