package journal

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rustyeddy/fxsignal/backtest"
)

var _ Journal = (*CSVJournal)(nil)

var (
	runHeader = []string{"run_id", "instrument", "granularity", "strategy", "start", "end", "duration_ms",
		"candles", "trades", "wins", "losses", "even", "unknown", "running", "win_rate", "buy_win_rate",
		"sell_win_rate", "balance"}
	tradeHeader = []string{"run_id", "seq", "signal", "entry_time", "entry_price", "take_profit", "stop_loss",
		"close_time", "close_price", "outcome", "score", "pl", "trailed"}
)

// CSVJournal appends runs and trades to two CSV files.
type CSVJournal struct {
	runs   *csv.Writer
	trades *csv.Writer
	rf, tf *os.File
}

func NewCSV(runsPath, tradesPath string) (*CSVJournal, error) {
	rf, err := os.Create(runsPath)
	if err != nil {
		return nil, err
	}
	tf, err := os.Create(tradesPath)
	if err != nil {
		_ = rf.Close()
		return nil, err
	}

	j := &CSVJournal{runs: csv.NewWriter(rf), trades: csv.NewWriter(tf), rf: rf, tf: tf}
	if err := j.write(j.runs, runHeader); err != nil {
		_ = j.Close()
		return nil, err
	}
	if err := j.write(j.trades, tradeHeader); err != nil {
		_ = j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) write(w *csv.Writer, rows ...[]string) error {
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

// RecordRun writes one run row and its trades. Running trades are
// skipped.
func (j *CSVJournal) RecordRun(_ context.Context, r backtest.Report) error {
	run, trades, err := FromReport(r)
	if err != nil {
		return err
	}

	if err := j.write(j.runs, []string{
		run.RunID,
		run.Instrument,
		run.Granularity,
		run.Strategy,
		ts(run.Start),
		ts(run.End),
		strconv.FormatInt(run.Duration.Milliseconds(), 10),
		strconv.Itoa(run.Candles),
		strconv.Itoa(run.Trades),
		strconv.Itoa(run.Wins),
		strconv.Itoa(run.Losses),
		strconv.Itoa(run.Even),
		strconv.Itoa(run.Unknown),
		strconv.Itoa(run.Running),
		f(run.WinRate),
		f(run.BuyWinRate),
		f(run.SellWinRate),
		f(run.Balance),
	}); err != nil {
		return err
	}

	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		if t.Running {
			continue
		}
		rows = append(rows, []string{
			t.RunID,
			strconv.Itoa(t.Seq),
			t.Signal,
			ts(t.EntryTime),
			t.EntryPrice.String(),
			t.TakeProfit.String(),
			t.StopLoss.String(),
			ts(t.CloseTime),
			t.ClosePrice.String(),
			t.Outcome,
			f(t.Score),
			t.PL.String(),
			strconv.FormatBool(t.Trailed),
		})
	}
	return j.write(j.trades, rows...)
}

func (j *CSVJournal) Close() error {
	j.runs.Flush()
	j.trades.Flush()
	return errors.Join(j.runs.Error(), j.trades.Error(), j.rf.Close(), j.tf.Close())
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
