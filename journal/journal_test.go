package journal

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/fxsignal/backtest"
	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/rustyeddy/fxsignal/strategies"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func report(runID, instrument string) backtest.Report {
	trades := []backtest.TradeResult{
		{
			EntryIndex: 3, EntryTime: t0.Add(3 * time.Hour), EntryPrice: dec("1.10020"),
			Signal: strategies.Buy, TakeProfit: dec("1.10420"), StopLoss: dec("1.09820"),
			CloseIndex: 5, CloseTime: t0.Add(5 * time.Hour), ClosePrice: dec("1.10420"),
			Outcome: backtest.OutcomeWin, Score: 1, PL: dec("0.004"),
		},
		{
			EntryIndex: 7, EntryTime: t0.Add(7 * time.Hour), EntryPrice: dec("1.10100"),
			Signal: strategies.Sell, TakeProfit: dec("1.09700"), StopLoss: dec("1.10300"),
			CloseIndex: 8, CloseTime: t0.Add(8 * time.Hour), ClosePrice: dec("1.10300"),
			Outcome: backtest.OutcomeLoss, Score: -1, PL: dec("-0.002"),
		},
		{
			Running: true, EntryIndex: 9, EntryTime: t0.Add(9 * time.Hour), EntryPrice: dec("1.10000"),
			Signal: strategies.Buy, TakeProfit: dec("1.10400"), StopLoss: dec("1.09800"),
		},
	}
	return backtest.Report{
		RunID:       runID,
		Instrument:  instrument,
		Granularity: market.H1,
		Params:      strategies.Params{Kind: strategies.KindBBands, Windows: []int{20}, RiskReward: 2},
		Start:       t0,
		End:         t0.Add(9 * time.Hour),
		Duration:    1500 * time.Millisecond,
		Candles:     make([]market.Candle, 10),
		Trades:      trades,
		Summary:     backtest.Summarize(trades, 1, 2),
	}
}

func TestFromReport(t *testing.T) {
	t.Parallel()

	run, trades, err := FromReport(report("R1", "EUR_USD"))
	require.NoError(t, err)

	assert.Equal(t, "R1", run.RunID)
	assert.Equal(t, "H1", run.Granularity)
	assert.Equal(t, 10, run.Candles)
	assert.Equal(t, 2, run.Trades)
	assert.Equal(t, 1, run.Running)
	assert.InDelta(t, 0.5, run.WinRate, 1e-9)
	assert.JSONEq(t, `{"kind":"bbands","windows":[20],"risk_reward":2}`, string(run.Params))

	require.Len(t, trades, 3)
	assert.Equal(t, 1, trades[0].Seq)
	assert.Equal(t, "win", trades[0].Outcome)
	assert.Equal(t, "Sell", trades[1].Signal)
	assert.Equal(t, "running", trades[2].Outcome)
}

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestSQLiteRecordAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j := newTestSQLite(t)

	require.NoError(t, j.RecordRun(ctx, report("R1", "EUR_USD")))
	require.NoError(t, j.RecordRun(ctx, report("R2", "USD_JPY")))
	require.NoError(t, j.RecordRun(ctx, report("R3", "EUR_USD")))

	all, err := j.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	eur, err := j.ListRuns(ctx, "EUR_USD")
	require.NoError(t, err)
	require.Len(t, eur, 2)
	for _, r := range eur {
		assert.Equal(t, "EUR_USD", r.Instrument)
	}

	r, err := j.GetRun(ctx, "R2")
	require.NoError(t, err)
	assert.Equal(t, "USD_JPY", r.Instrument)
	assert.True(t, r.Start.Equal(t0))
	assert.Equal(t, 1500*time.Millisecond, r.Duration)
	assert.Equal(t, 1, r.Wins)
	assert.Equal(t, 1, r.Losses)
	assert.InDelta(t, 1.0, r.Balance, 1e-9)

	trades, err := j.ListTrades(ctx, "R2")
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.True(t, trades[0].EntryPrice.Equal(dec("1.1002")))
	assert.True(t, trades[1].ClosePrice.Equal(dec("1.103")))
	assert.True(t, trades[0].CloseTime.Equal(t0.Add(5*time.Hour)))
	assert.True(t, trades[2].Running)
	assert.True(t, trades[2].CloseTime.IsZero())
}

func TestSQLiteRecordRunReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j := newTestSQLite(t)

	require.NoError(t, j.RecordRun(ctx, report("R1", "EUR_USD")))
	rep := report("R1", "EUR_USD")
	rep.Trades = rep.Trades[:1]
	rep.Summary = backtest.Summarize(rep.Trades, 1, 2)
	require.NoError(t, j.RecordRun(ctx, rep))

	runs, err := j.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Trades)

	trades, err := j.ListTrades(ctx, "R1")
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	t.Parallel()

	_, err := newTestSQLite(t).GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runsPath := filepath.Join(dir, "runs.csv")
	tradesPath := filepath.Join(dir, "trades.csv")

	j, err := NewCSV(runsPath, tradesPath)
	require.NoError(t, err)
	require.NoError(t, j.RecordRun(context.Background(), report("R1", "EUR_USD")))
	require.NoError(t, j.Close())

	runs := readCSV(t, runsPath)
	require.Len(t, runs, 2)
	assert.Equal(t, runHeader, runs[0])
	assert.Equal(t, "R1", runs[1][0])
	assert.Equal(t, "2024-01-02T03:00:00Z", runs[1][4])
	assert.Equal(t, "1500", runs[1][6])

	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 3, "running trade is not exported")
	assert.Equal(t, tradeHeader, trades[0])
	assert.Equal(t, []string{"R1", "1", "Buy", "2024-01-02T06:00:00Z", "1.1002", "1.1042", "1.0982",
		"2024-01-02T08:00:00Z", "1.1042", "win", "1.000000", "0.004", "false"}, trades[1])
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestMultiRecordsToAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := newTestSQLite(t)
	c, err := NewCSV(filepath.Join(dir, "runs.csv"), filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)

	m := Multi{db, c}
	require.NoError(t, m.RecordRun(context.Background(), report("R9", "GBP_USD")))

	runs, err := db.ListRuns(context.Background(), "GBP_USD")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	require.NoError(t, m.Close())
	assert.Len(t, readCSV(t, filepath.Join(dir, "runs.csv")), 2)
}

func TestWriteOrg(t *testing.T) {
	t.Parallel()

	run, trades, err := FromReport(report("R1", "EUR_USD"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteOrg(&buf, run, trades))
	out := buf.String()

	assert.Contains(t, out, "* BACKTEST: bbands")
	assert.Contains(t, out, ":RUN_ID:      R1")
	assert.Contains(t, out, ":START_DATE:  2024-01-02")
	assert.Contains(t, out, ":WIN_RATE:    50.00")
	assert.Contains(t, out, "| 2 | Sell |")
	assert.Contains(t, out, "| running |")
}
