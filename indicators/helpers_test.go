package indicators

import (
	"time"

	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, o, h, l, c float64) market.Candle {
	side := market.OHLC{
		O: decimal.NewFromFloat(o),
		H: decimal.NewFromFloat(h),
		L: decimal.NewFromFloat(l),
		C: decimal.NewFromFloat(c),
	}
	return market.Candle{
		Instrument:  "EUR_USD",
		Granularity: market.H1,
		Time:        t0.Add(time.Duration(i) * time.Hour),
		Complete:    true,
		Bid:         side,
		Mid:         side,
		Ask:         side,
	}
}

// fromCloses builds bars that open at the previous close with a small wick.
func fromCloses(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		o := c
		if i > 0 {
			o = closes[i-1]
		}
		hi, lo := o, c
		if c > o {
			hi, lo = c, o
		}
		out[i] = bar(i, o, hi+0.0005, lo-0.0005, c)
	}
	return out
}
