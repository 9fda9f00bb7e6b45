package strategies

import (
	"github.com/rustyeddy/fxsignal/indicators"
	"github.com/rustyeddy/fxsignal/market"
)

// keltner fades a close that re-enters the channel, targeting the EMA.
type keltner struct{ p Params }

func (s keltner) Kind() Kind { return KindKeltner }

func (s keltner) Warmup() int {
	if s.p.Windows[1] > s.p.Windows[0] {
		return s.p.Windows[1]
	}
	return s.p.Windows[0]
}

func (s keltner) Evaluate(candles []market.Candle) []Verdict {
	out := make([]Verdict, len(candles))
	ch := indicators.Keltner(candles, s.p.Windows[0], s.p.Windows[1])
	closes := market.Closes(candles)

	for i := 1; i < len(candles); i++ {
		prev, x := closes[i-1], closes[i]
		switch {
		case prev < ch[i-1].Lower && x >= ch[i].Lower:
			out[i] = Verdict{Signal: Buy, Gain: ch[i].Middle - x}
		case prev > ch[i-1].Upper && x <= ch[i].Upper:
			out[i] = Verdict{Signal: Sell, Gain: x - ch[i].Middle}
		}
	}
	return out
}
