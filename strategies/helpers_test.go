package strategies

import (
	"time"

	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

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

// dipAndRecover is flat at 1.1000, breaks below the lower band at bar 6
// and closes back above the middle line at bar 7.
func dipAndRecover() []market.Candle {
	return fromCloses(1.1, 1.1, 1.1, 1.1, 1.1, 1.1, 1.095, 1.099, 1.099)
}
