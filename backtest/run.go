package backtest

import (
	"time"

	"github.com/rustyeddy/fxsignal/internal/id"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/rustyeddy/fxsignal/strategies"
)

// RunBacktest dedupes candles, generates signals for p and simulates the
// resulting trades. Parameter errors are returned before any work is done.
func RunBacktest(candles []market.Candle, p strategies.Params) ([]TradeResult, Summary, error) {
	rep, err := Run(candles, p)
	if err != nil {
		return nil, Summary{}, err
	}
	return rep.Trades, rep.Summary, nil
}

// Report is a finished backtest with its inputs described.
type Report struct {
	RunID       string
	Instrument  string
	Granularity market.Granularity
	Params      strategies.Params
	Start       time.Time
	End         time.Time
	Duration    time.Duration

	Candles    []market.Candle
	Indicators []strategies.IndicatorResult
	Trades     []TradeResult
	Summary    Summary
}

// Run is RunBacktest returning the full report.
func Run(candles []market.Candle, p strategies.Params) (Report, error) {
	began := time.Now()

	_, p, err := strategies.New(p)
	if err != nil {
		return Report{}, err
	}

	candles = market.Dedupe(candles)
	results, err := strategies.Generate(candles, p)
	if err != nil {
		return Report{}, err
	}
	trades, err := Simulate(candles, results, p.Trailing)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		RunID:      id.New(),
		Params:     p,
		Candles:    candles,
		Indicators: results,
		Trades:     trades,
		Summary:    Summarize(trades, p.RiskPerTrade, p.RiskReward),
	}
	if len(candles) > 0 {
		rep.Instrument = candles[0].Instrument
		rep.Granularity = candles[0].Granularity
		rep.Start = candles[0].Time
		rep.End = candles[len(candles)-1].Time
	}
	rep.Duration = time.Since(began)
	return rep, nil
}
