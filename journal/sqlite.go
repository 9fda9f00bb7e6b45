package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/fxsignal/backtest"
	"github.com/rustyeddy/fxsignal/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

var _ Journal = (*SQLite)(nil)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// RecordRun stores the run and all of its trades in one transaction. A
// run recorded twice replaces the first copy.
func (j *SQLite) RecordRun(ctx context.Context, r backtest.Report) error {
	run, trades, err := FromReport(r)
	if err != nil {
		return err
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE run_id = ?`, run.RunID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_id, created, instrument, granularity, strategy, params, start_time, end_time, duration_ms,
		 candles, trades, wins, losses, even, unknown, running, win_rate, buy_win_rate, sell_win_rate, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Created, run.Instrument, run.Granularity, run.Strategy, string(run.Params),
		run.Start, run.End, run.Duration.Milliseconds(),
		run.Candles, run.Trades, run.Wins, run.Losses, run.Even, run.Unknown, run.Running,
		run.WinRate, run.BuyWinRate, run.SellWinRate, run.Balance,
	)
	if err != nil {
		return fmt.Errorf("journal: insert run %s: %w", run.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
		(run_id, seq, signal, entry_time, entry_price, take_profit, stop_loss, close_time, close_price,
		 outcome, score, pl, trailed, running)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		var closed sql.NullTime
		if !t.CloseTime.IsZero() {
			closed = sql.NullTime{Time: t.CloseTime, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			t.RunID, t.Seq, t.Signal, t.EntryTime, t.EntryPrice, t.TakeProfit, t.StopLoss, closed, t.ClosePrice,
			t.Outcome, t.Score, t.PL, t.Trailed, t.Running,
		)
		if err != nil {
			return fmt.Errorf("journal: insert trade %s/%d: %w", t.RunID, t.Seq, err)
		}
	}
	return tx.Commit()
}

const runColumns = `run_id, created, instrument, granularity, strategy, params, start_time, end_time, duration_ms,
	candles, trades, wins, losses, even, unknown, running, win_rate, buy_win_rate, sell_win_rate, balance`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRecord, error) {
	var (
		r      RunRecord
		params string
		ms     int64
	)
	err := s.Scan(&r.RunID, &r.Created, &r.Instrument, &r.Granularity, &r.Strategy, &params,
		&r.Start, &r.End, &ms,
		&r.Candles, &r.Trades, &r.Wins, &r.Losses, &r.Even, &r.Unknown, &r.Running,
		&r.WinRate, &r.BuyWinRate, &r.SellWinRate, &r.Balance)
	if err != nil {
		return RunRecord{}, err
	}
	r.Params = []byte(params)
	r.Duration = time.Duration(ms) * time.Millisecond
	return r, nil
}

// GetRun returns a single run by ID.
func (j *SQLite) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, core.WrapError(core.ErrNotFound, fmt.Errorf("run %q", runID))
	}
	return r, err
}

// ListRuns returns runs newest first. An empty instrument lists all.
func (j *SQLite) ListRuns(ctx context.Context, instrument string) ([]RunRecord, error) {
	q := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if instrument != "" {
		q += ` WHERE instrument = ?`
		args = append(args, instrument)
	}
	q += ` ORDER BY created DESC, run_id DESC`

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListTrades returns the trades of a run in order.
func (j *SQLite) ListTrades(ctx context.Context, runID string) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, seq, signal, entry_time, entry_price, take_profit, stop_loss, close_time, close_price,
		       outcome, score, pl, trailed, running
		FROM trades
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			t      TradeRecord
			closed sql.NullTime
		)
		if err := rows.Scan(&t.RunID, &t.Seq, &t.Signal, &t.EntryTime, &t.EntryPrice, &t.TakeProfit, &t.StopLoss,
			&closed, &t.ClosePrice, &t.Outcome, &t.Score, &t.PL, &t.Trailed, &t.Running); err != nil {
			return nil, err
		}
		if closed.Valid {
			t.CloseTime = closed.Time
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
