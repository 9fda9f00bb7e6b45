package strategies

import (
	"github.com/rustyeddy/fxsignal/indicators"
	"github.com/rustyeddy/fxsignal/market"
)

// bbands is a Bollinger mean-reversion rule. A close below the lower band
// arms a Buy; a later close back above the middle line fires it, aiming
// for the upper band. Sells mirror this. Breaking one band disarms the
// other side.
type bbands struct{ p Params }

func (s bbands) Kind() Kind  { return KindBBands }
func (s bbands) Warmup() int { return s.p.Windows[0] }

func (s bbands) Evaluate(candles []market.Candle) []Verdict {
	out := make([]Verdict, len(candles))
	bands := indicators.Bollinger(candles, s.p.Windows[0], s.p.StdDev)
	closes := market.Closes(candles)

	var armedBuy, armedSell bool
	start := s.Warmup()
	if start < 1 {
		start = 1
	}
	for i := start; i < len(candles); i++ {
		prev, x := closes[i-1], closes[i]
		pb, b := bands[i-1], bands[i]

		if crossedBelow(prev, x, pb.Lower, b.Lower) {
			armedBuy, armedSell = true, false
		}
		if crossedAbove(prev, x, pb.Upper, b.Upper) {
			armedSell, armedBuy = true, false
		}

		switch {
		case armedBuy && crossedAbove(prev, x, pb.Middle, b.Middle):
			out[i] = Verdict{Signal: Buy, Gain: b.Upper - x}
			armedBuy = false
		case armedSell && crossedBelow(prev, x, pb.Middle, b.Middle):
			out[i] = Verdict{Signal: Sell, Gain: x - b.Lower}
			armedSell = false
		}
	}
	return out
}
