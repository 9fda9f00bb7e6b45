package market

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// OHLC is one price side of a candle.
type OHLC struct {
	O decimal.Decimal
	H decimal.Decimal
	L decimal.Decimal
	C decimal.Decimal
}

// Mid averages two sides component-wise.
func (o OHLC) Mid(other OHLC) OHLC {
	two := decimal.NewFromInt(2)
	return OHLC{
		O: o.O.Add(other.O).Div(two),
		H: o.H.Add(other.H).Div(two),
		L: o.L.Add(other.L).Div(two),
		C: o.C.Add(other.C).Div(two),
	}
}

// IsZero reports whether no prices were set.
func (o OHLC) IsZero() bool {
	return o.O.IsZero() && o.H.IsZero() && o.L.IsZero() && o.C.IsZero()
}

// Candle is an immutable OHLC snapshot of one time bucket with bid, mid
// and ask sides.
type Candle struct {
	Instrument  string
	Granularity Granularity
	Time        time.Time
	Volume      int
	Complete    bool

	Bid OHLC
	Mid OHLC
	Ask OHLC
}

// Spread is the ask minus bid close.
func (c Candle) Spread() decimal.Decimal {
	return c.Ask.C.Sub(c.Bid.C)
}

// Side returns the bid side when bid is true, the ask side otherwise.
func (c Candle) Side(bid bool) OHLC {
	if bid {
		return c.Bid
	}
	return c.Ask
}

// WithMid fills Mid from Bid and Ask when only those were supplied.
func (c Candle) WithMid() Candle {
	if c.Mid.IsZero() && !c.Bid.IsZero() && !c.Ask.IsZero() {
		c.Mid = c.Bid.Mid(c.Ask)
	}
	return c
}

// Dedupe returns candles sorted by time with only the first candle kept
// for each timestamp. The input slice is not modified.
func Dedupe(candles []Candle) []Candle {
	if len(candles) == 0 {
		return nil
	}
	out := make([]Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	n := 1
	for i := 1; i < len(out); i++ {
		if out[i].Time.Equal(out[n-1].Time) {
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

// CompleteOnly drops candles that are still forming.
func CompleteOnly(candles []Candle) []Candle {
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if c.Complete {
			out = append(out, c)
		}
	}
	return out
}

// Closes returns the mid closes as floats.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Mid.C.InexactFloat64()
	}
	return out
}
