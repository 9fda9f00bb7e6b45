package indicators

import "github.com/rustyeddy/fxsignal/market"

// BullishEngulfing: a down bar followed by an up bar whose body covers it.
func BullishEngulfing(prev, cur market.Candle) bool {
	p, c := prev.Mid, cur.Mid
	return p.C.LessThan(p.O) &&
		c.C.GreaterThan(c.O) &&
		c.O.LessThanOrEqual(p.C) &&
		c.C.GreaterThanOrEqual(p.O) &&
		c.C.Sub(c.O).GreaterThan(p.O.Sub(p.C))
}

// BearishEngulfing: an up bar followed by a down bar whose body covers it.
func BearishEngulfing(prev, cur market.Candle) bool {
	p, c := prev.Mid, cur.Mid
	return p.C.GreaterThan(p.O) &&
		c.C.LessThan(c.O) &&
		c.O.GreaterThanOrEqual(p.C) &&
		c.C.LessThanOrEqual(p.O) &&
		c.O.Sub(c.C).GreaterThan(p.C.Sub(p.O))
}

// SwingHigh reports whether bar i has the strictly highest high of the
// 2n+1 bars centred on it. Bars without n neighbours on both sides are
// never swings.
func SwingHigh(candles []market.Candle, i, n int) bool {
	if n < 1 || i-n < 0 || i+n >= len(candles) {
		return false
	}
	h := candles[i].Mid.H
	for j := i - n; j <= i+n; j++ {
		if j != i && !h.GreaterThan(candles[j].Mid.H) {
			return false
		}
	}
	return true
}

// SwingLow mirrors SwingHigh on lows.
func SwingLow(candles []market.Candle, i, n int) bool {
	if n < 1 || i-n < 0 || i+n >= len(candles) {
		return false
	}
	l := candles[i].Mid.L
	for j := i - n; j <= i+n; j++ {
		if j != i && !l.LessThan(candles[j].Mid.L) {
			return false
		}
	}
	return true
}

// HigherHighs reports n consecutive rising highs ending at bar i.
func HigherHighs(candles []market.Candle, i, n int) bool {
	if n < 1 || i-n < 0 || i >= len(candles) {
		return false
	}
	for j := i - n + 1; j <= i; j++ {
		if !candles[j].Mid.H.GreaterThan(candles[j-1].Mid.H) {
			return false
		}
	}
	return true
}

// LowerLows reports n consecutive falling lows ending at bar i.
func LowerLows(candles []market.Candle, i, n int) bool {
	if n < 1 || i-n < 0 || i >= len(candles) {
		return false
	}
	for j := i - n + 1; j <= i; j++ {
		if !candles[j].Mid.L.LessThan(candles[j-1].Mid.L) {
			return false
		}
	}
	return true
}
