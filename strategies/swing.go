package strategies

import (
	"github.com/rustyeddy/fxsignal/indicators"
	"github.com/rustyeddy/fxsignal/market"
)

// swing enters once a swing point n bars back is confirmed and the current
// close breaks away from it: above the swing low's high for a Buy, below
// the swing high's low for a Sell.
type swing struct{ p Params }

func (s swing) Kind() Kind  { return KindSwing }
func (s swing) Warmup() int { return 2 * s.p.Windows[0] }

func (s swing) Evaluate(candles []market.Candle) []Verdict {
	n := s.p.Windows[0]
	out := make([]Verdict, len(candles))
	atr := indicators.ATR(candles, s.p.ATRWindow)

	for i := n; i < len(candles); i++ {
		pivot := i - n
		c := candles[i].Mid.C
		gain := atr[i] * s.p.ATRMult
		switch {
		case indicators.SwingLow(candles, pivot, n) && c.GreaterThan(candles[pivot].Mid.H):
			out[i] = Verdict{Signal: Buy, Gain: gain}
		case indicators.SwingHigh(candles, pivot, n) && c.LessThan(candles[pivot].Mid.L):
			out[i] = Verdict{Signal: Sell, Gain: gain}
		}
	}
	return out
}
