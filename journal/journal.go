// Package journal persists backtest runs and their synthetic trades.
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rustyeddy/fxsignal/backtest"
	"github.com/shopspring/decimal"
)

// RunRecord is one backtest run with its summary.
type RunRecord struct {
	RunID       string
	Created     time.Time
	Instrument  string
	Granularity string
	Strategy    string
	Params      []byte // strategies.Params as JSON

	Start    time.Time
	End      time.Time
	Duration time.Duration

	Candles int
	Trades  int
	Wins    int
	Losses  int
	Even    int
	Unknown int
	Running int

	WinRate     float64
	BuyWinRate  float64
	SellWinRate float64
	Balance     float64
}

// TradeRecord is one simulated trade of a run. Seq is its position in the
// run.
type TradeRecord struct {
	RunID      string
	Seq        int
	Signal     string
	EntryTime  time.Time
	EntryPrice decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
	CloseTime  time.Time
	ClosePrice decimal.Decimal
	Outcome    string
	Score      float64
	PL         decimal.Decimal
	Trailed    bool
	Running    bool
}

type Journal interface {
	RecordRun(ctx context.Context, r backtest.Report) error
	Close() error
}

// FromReport flattens a report into rows.
func FromReport(r backtest.Report) (RunRecord, []TradeRecord, error) {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return RunRecord{}, nil, err
	}
	s := r.Summary
	run := RunRecord{
		RunID:       r.RunID,
		Created:     time.Now().UTC(),
		Instrument:  r.Instrument,
		Granularity: string(r.Granularity),
		Strategy:    r.Params.String(),
		Params:      params,
		Start:       r.Start,
		End:         r.End,
		Duration:    r.Duration,
		Candles:     len(r.Candles),
		Trades:      s.Trades,
		Wins:        s.Wins,
		Losses:      s.Losses,
		Even:        s.Even,
		Unknown:     s.Unknown,
		Running:     s.Running,
		WinRate:     s.WinRate,
		BuyWinRate:  s.BuyWinRate,
		SellWinRate: s.SellWinRate,
		Balance:     s.Balance,
	}

	trades := make([]TradeRecord, len(r.Trades))
	for i, t := range r.Trades {
		trades[i] = TradeRecord{
			RunID:      r.RunID,
			Seq:        i + 1,
			Signal:     t.Signal.String(),
			EntryTime:  t.EntryTime,
			EntryPrice: t.EntryPrice,
			TakeProfit: t.TakeProfit,
			StopLoss:   t.StopLoss,
			CloseTime:  t.CloseTime,
			ClosePrice: t.ClosePrice,
			Outcome:    t.Outcome.String(),
			Score:      t.Score,
			PL:         t.PL,
			Trailed:    t.Trailed,
			Running:    t.Running,
		}
		if t.Running {
			trades[i].Outcome = "running"
		}
	}
	return run, trades, nil
}

// Multi records to every journal in order and closes them all.
type Multi []Journal

func (m Multi) RecordRun(ctx context.Context, r backtest.Report) error {
	for _, j := range m {
		if err := j.RecordRun(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var first error
	for _, j := range m {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
