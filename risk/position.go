// Package risk sizes positions from account equity and checks planned
// trades against account limits.
package risk

import (
	"context"
	"fmt"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
)

// EUR_USD → quote = USD → QuoteToAccount = 1
// USD_JPY → quote = JPY → QuoteToAccount = 1 / USDJPY mid
type Inputs struct {
	Equity         decimal.Decimal
	RiskPct        float64 // 0.01 is one percent of equity
	Entry          decimal.Decimal
	Stop           decimal.Decimal
	PipLocation    int32
	QuoteToAccount decimal.Decimal
}

type Result struct {
	Units      int64
	StopPips   decimal.Decimal
	RiskAmount decimal.Decimal
}

// Calculate returns the largest whole unit count whose loss at Stop stays
// within RiskPct of Equity. Units is 0 when nothing sensible can be sized.
func Calculate(in Inputs) Result {
	dist := in.Entry.Sub(in.Stop).Abs()
	riskAmt := in.Equity.Mul(decimal.NewFromFloat(in.RiskPct))
	res := Result{
		StopPips:   dist.Div(decimal.New(1, in.PipLocation)),
		RiskAmount: riskAmt,
	}
	if dist.IsZero() || !in.QuoteToAccount.IsPositive() || !riskAmt.IsPositive() {
		return res
	}
	units := riskAmt.DivRound(dist.Mul(in.QuoteToAccount), 8).Floor()
	res.Units = units.IntPart()
	return res
}

// Size fills in the instrument's pip location and the quote conversion
// rate for acct, then calculates.
func Size(ctx context.Context, acct broker.Account, instrument string, riskPct float64, entry, stop decimal.Decimal, prices market.TickSource) (Result, error) {
	meta, err := market.Instrument(instrument)
	if err != nil {
		return Result{}, err
	}
	q2a, err := market.QuoteToAccountRate(ctx, instrument, acct.Currency, prices)
	if err != nil {
		return Result{}, fmt.Errorf("risk: conversion for %s: %w", instrument, err)
	}
	equity := acct.NAV
	if equity.IsZero() {
		equity = acct.Balance
	}
	return Calculate(Inputs{
		Equity:         equity,
		RiskPct:        riskPct,
		Entry:          entry,
		Stop:           stop,
		PipLocation:    meta.PipLocation,
		QuoteToAccount: q2a,
	}), nil
}
