package strategies

import (
	"github.com/rustyeddy/fxsignal/indicators"
	"github.com/rustyeddy/fxsignal/market"
)

// stochRSI trades %K crossing %D inside the oversold or overbought zone.
type stochRSI struct{ p Params }

func (s stochRSI) Kind() Kind { return KindStochRSI }

func (s stochRSI) Warmup() int {
	w := s.p.Windows
	return w[0] + w[1] + w[2] + w[3]
}

func (s stochRSI) Evaluate(candles []market.Candle) []Verdict {
	w := s.p.Windows
	out := make([]Verdict, len(candles))
	st := indicators.StochRSI(candles, w[0], w[1], w[2], w[3])
	atr := indicators.ATR(candles, s.p.ATRWindow)

	for i := 1; i < len(candles); i++ {
		prev, cur := st[i-1], st[i]
		gain := atr[i] * s.p.ATRMult
		switch {
		case crossedAbove(prev.K, cur.K, prev.D, cur.D) && cur.D < s.p.Oversold:
			out[i] = Verdict{Signal: Buy, Gain: gain}
		case crossedBelow(prev.K, cur.K, prev.D, cur.D) && cur.D > s.p.Overbought:
			out[i] = Verdict{Signal: Sell, Gain: gain}
		}
	}
	return out
}
