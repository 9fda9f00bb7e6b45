package strategies

import (
	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
)

// filter turns raw verdicts into priced results.
type filter struct {
	maxSpread decimal.Decimal
	minGain   decimal.Decimal
	rr        decimal.Decimal
	precision int32
}

func newFilter(p Params, instrument string) filter {
	prec := p.Precision
	if prec == 0 {
		prec = 5
		if m, err := market.Instrument(instrument); err == nil {
			prec = m.DisplayPrecision
		}
	}
	return filter{
		maxSpread: decimal.NewFromFloat(p.MaxSpread),
		minGain:   decimal.NewFromFloat(p.MinGain),
		rr:        decimal.NewFromFloat(p.RiskReward),
		precision: prec,
	}
}

// decide applies the spread and minimum-gain filters and derives the
// take-profit and stop-loss levels. Buys price off the ask close, sells
// off the bid close.
func (f filter) decide(c market.Candle, v Verdict) IndicatorResult {
	res := IndicatorResult{Time: c.Time}
	if v.Signal == None {
		return res
	}
	if f.maxSpread.IsPositive() && c.Spread().GreaterThan(f.maxSpread) {
		return res
	}

	gain := decimal.NewFromFloat(v.Gain).Round(f.precision)
	if !gain.IsPositive() || gain.LessThan(f.minGain) {
		return res
	}
	loss := gain.Div(f.rr).Round(f.precision)

	res.Signal = v.Signal
	res.Gain = gain
	res.Loss = loss
	switch v.Signal {
	case Buy:
		price := c.Ask.C
		res.TakeProfit = price.Add(gain)
		res.StopLoss = price.Sub(loss)
	case Sell:
		price := c.Bid.C
		res.TakeProfit = price.Sub(gain)
		res.StopLoss = price.Add(loss)
	}
	return res
}
