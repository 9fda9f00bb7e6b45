package sim

import (
	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
)

// UnrealizedPL is units*(mark-entry) converted to the account currency.
func UnrealizedPL(t broker.Trade, mark, quoteToAccount decimal.Decimal) decimal.Decimal {
	return t.Units.Mul(mark.Sub(t.Price)).Mul(quoteToAccount)
}

// TradeMargin is the notional in account currency times the instrument's
// margin rate.
func TradeMargin(units, price decimal.Decimal, instrument string, quoteToAccount decimal.Decimal) decimal.Decimal {
	meta := market.Instruments[instrument]
	return units.Abs().Mul(price).Mul(quoteToAccount).Mul(decimal.NewFromFloat(meta.MarginRate))
}

func hitStopLoss(t *broker.Trade, mark decimal.Decimal) bool {
	if t.StopLoss.IsZero() {
		return false
	}
	if t.Long() {
		return mark.LessThanOrEqual(t.StopLoss)
	}
	return mark.GreaterThanOrEqual(t.StopLoss)
}

func hitTakeProfit(t *broker.Trade, mark decimal.Decimal) bool {
	if t.TakeProfit.IsZero() {
		return false
	}
	if t.Long() {
		return mark.GreaterThanOrEqual(t.TakeProfit)
	}
	return mark.LessThanOrEqual(t.TakeProfit)
}

// exitSide is the price a position closes at: bid for longs, ask for
// shorts.
func exitSide(t *broker.Trade, p market.Tick) decimal.Decimal {
	if t.Long() {
		return p.Bid
	}
	return p.Ask
}
