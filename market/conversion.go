package market

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// QuoteToAccountRate converts one unit of the instrument's quote currency
// into the account currency.
func QuoteToAccountRate(ctx context.Context, instrument, accountCurrency string, prices TickSource) (decimal.Decimal, error) {
	meta, err := Instrument(instrument)
	if err != nil {
		return decimal.Zero, err
	}

	// EUR_USD on a USD account
	if meta.QuoteCurrency == accountCurrency {
		return decimal.NewFromInt(1), nil
	}

	// USD_JPY on a USD account: mid is JPY per USD
	if meta.BaseCurrency == accountCurrency {
		px, err := prices.GetTick(ctx, instrument)
		if err != nil {
			return decimal.Zero, err
		}
		mid := px.Mid()
		if mid.IsZero() {
			return decimal.Zero, fmt.Errorf("zero mid price for %s", instrument)
		}
		return decimal.NewFromInt(1).DivRound(mid, 12), nil
	}

	// Crosses: try ACCOUNT_QUOTE then QUOTE_ACCOUNT
	if px, err := prices.GetTick(ctx, accountCurrency+"_"+meta.QuoteCurrency); err == nil && !px.Mid().IsZero() {
		return decimal.NewFromInt(1).DivRound(px.Mid(), 12), nil
	}
	if px, err := prices.GetTick(ctx, meta.QuoteCurrency+"_"+accountCurrency); err == nil {
		return px.Mid(), nil
	}
	return decimal.Zero, fmt.Errorf("no conversion path %s -> %s", meta.QuoteCurrency, accountCurrency)
}
