package risk

import (
	"context"
	"testing"
	"time"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       Inputs
		units    int64
		stopPips string
		riskAmt  string
	}{
		{
			name: "usd quote",
			in: Inputs{Equity: dec("10000"), RiskPct: 0.01, Entry: dec("1.2000"), Stop: dec("1.1900"),
				PipLocation: -4, QuoteToAccount: dec("1")},
			units: 10000, stopPips: "100", riskAmt: "100",
		},
		{
			name: "jpy quote",
			in: Inputs{Equity: dec("5000"), RiskPct: 0.02, Entry: dec("150.00"), Stop: dec("149.50"),
				PipLocation: -2, QuoteToAccount: dec("0.0091")},
			units: 21978, stopPips: "50", riskAmt: "100",
		},
		{
			name: "stop above entry",
			in: Inputs{Equity: dec("2000"), RiskPct: 0.005, Entry: dec("1.0000"), Stop: dec("1.0100"),
				PipLocation: -4, QuoteToAccount: dec("1")},
			units: 1000, stopPips: "100", riskAmt: "10",
		},
		{
			name: "stop at entry",
			in: Inputs{Equity: dec("2000"), RiskPct: 0.01, Entry: dec("1.1"), Stop: dec("1.1"),
				PipLocation: -4, QuoteToAccount: dec("1")},
			units: 0, stopPips: "0", riskAmt: "20",
		},
		{
			name: "no equity",
			in: Inputs{Equity: decimal.Zero, RiskPct: 0.01, Entry: dec("1.1"), Stop: dec("1.09"),
				PipLocation: -4, QuoteToAccount: dec("1")},
			units: 0, stopPips: "100", riskAmt: "0",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Calculate(tt.in)
			assert.Equal(t, tt.units, got.Units)
			assert.True(t, got.StopPips.Equal(dec(tt.stopPips)), got.StopPips.String())
			assert.True(t, got.RiskAmount.Equal(dec(tt.riskAmt)), got.RiskAmount.String())
		})
	}
}

func TestSizeConvertsQuoteCurrency(t *testing.T) {
	t.Parallel()

	prices := market.NewTickStore()
	prices.Set(market.Tick{Instrument: "USD_JPY", Time: time.Now(), Bid: dec("149.99"), Ask: dec("150.01")})

	acct := broker.Account{Currency: "USD", Balance: dec("9000"), NAV: dec("10000")}
	res, err := Size(context.Background(), acct, "USD_JPY", 0.01, dec("150.00"), dec("149.50"), prices)
	require.NoError(t, err)
	assert.True(t, res.RiskAmount.Equal(dec("100")), "sized from NAV")
	assert.InDelta(t, 30000, float64(res.Units), 1)

	res, err = Size(context.Background(), acct, "EUR_USD", 0.01, dec("1.1000"), dec("1.0950"), prices)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), res.Units)

	_, err = Size(context.Background(), acct, "XAU_XAG", 0.01, dec("1"), dec("0.9"), prices)
	assert.Error(t, err)

	_, err = Size(context.Background(), broker.Account{Currency: "USD", NAV: dec("1")}, "EUR_GBP", 0.01, dec("0.86"), dec("0.85"), prices)
	assert.Error(t, err, "no GBP conversion price")
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	acct := broker.Account{Currency: "USD", NAV: dec("10000"), MarginUsed: dec("500"), OpenTrades: 1}
	p := Policy{MaxRiskPct: 0.02, MinRR: 1.5, MaxOpenTrades: 3, MaxMarginPct: 0.2}
	ok := Intent{
		Instrument: "EUR_USD", Units: 10000,
		Entry: dec("1.1000"), Stop: dec("1.0900"), TakeProfit: dec("1.1200"),
		QuoteToAccount: dec("1"),
	}

	tests := []struct {
		name   string
		mutate func(*Intent, *broker.Account)
		code   string
	}{
		{"allowed", func(*Intent, *broker.Account) {}, ""},
		{"no stop", func(i *Intent, _ *broker.Account) { i.Stop = decimal.Zero }, "NO_STOP_OR_ENTRY"},
		{"no units", func(i *Intent, _ *broker.Account) { i.Units = 0 }, "NO_UNITS"},
		{"risk", func(i *Intent, _ *broker.Account) { i.Units = 30000 }, "RISK_TOO_HIGH"},
		{"rr", func(i *Intent, _ *broker.Account) { i.TakeProfit = dec("1.1100") }, "RR_TOO_LOW"},
		{"open trades", func(_ *Intent, a *broker.Account) { a.OpenTrades = 3 }, "TOO_MANY_OPEN_TRADES"},
		{"margin", func(_ *Intent, a *broker.Account) { a.MarginUsed = dec("2500") }, "MARGIN_TOO_HIGH"},
		{"equity", func(_ *Intent, a *broker.Account) { a.NAV = decimal.Zero }, "NO_EQUITY"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in, a := ok, acct
			tt.mutate(&in, &a)
			d := Evaluate(p, in, a)
			if tt.code == "" {
				assert.True(t, d.Allowed)
				assert.NoError(t, d.Error())
				assert.InDelta(t, 0.01, d.PlannedRiskPct, 1e-12)
				assert.InDelta(t, 2.0, d.PlannedRR, 1e-12)
				return
			}
			require.False(t, d.Allowed)
			assert.Equal(t, tt.code, d.Violations[0].Code)
			assert.ErrorContains(t, d.Error(), tt.code)
		})
	}
}

func TestEvaluateZeroPolicy(t *testing.T) {
	t.Parallel()

	d := Evaluate(Policy{}, Intent{Units: -5000, Entry: dec("1.1"), Stop: dec("1.2"), QuoteToAccount: dec("1")},
		broker.Account{Balance: dec("100")})
	assert.True(t, d.Allowed, "zero limits are not enforced")
	assert.True(t, d.PlannedRisk.Equal(dec("500")))
}
