package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/rustyeddy/fxsignal/backtest"
	"github.com/rustyeddy/fxsignal/journal"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type backtestFlags struct {
	instruments []string
	granularity string
	specs       []string
	rr          float64
	trailing    bool
	count       int
	from, to    string
	workers     int
	csvFiles    []string
	db          string
	exportDir   string
	orgDir      string
	detail      bool
}

func newBacktestCmd(o *options) *cobra.Command {
	f := &backtestFlags{}

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run strategies over historical candles",
		Long: `Run every --strategy over every --instrument and print one row per run.

Candles come from OANDA unless --csv files are given. Strategy specs are
"kind" or "kind:w1,w2,...", e.g. bbands:20 or macd:12,26,9.

Examples:
  fxsignal backtest --instrument EUR_USD,GBP_USD --strategy bbands --strategy rsi:10
  fxsignal backtest --csv eurusd_h1.csv --strategy keltner --db runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.setup(); err != nil {
				return err
			}
			defer o.sync()
			return runBacktest(cmd, o, f)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVarP(&f.instruments, "instrument", "i", nil, "Instruments (default from config)")
	fl.StringVarP(&f.granularity, "granularity", "g", "", "Granularity (default from config)")
	fl.StringArrayVarP(&f.specs, "strategy", "s", nil, "Strategy spec, repeatable (default from config)")
	fl.Float64Var(&f.rr, "rr", 0, "Risk/reward multiple (default from config)")
	fl.BoolVar(&f.trailing, "trailing", false, "Move the stop to entry once price covers the stop distance")
	fl.IntVar(&f.count, "count", 0, "Candles to fetch when --from is not set (default from config)")
	fl.StringVar(&f.from, "from", "", "Start time, RFC3339 or YYYY-MM-DD")
	fl.StringVar(&f.to, "to", "", "End time, exclusive")
	fl.IntVarP(&f.workers, "workers", "w", 0, "Concurrent runs (default from config)")
	fl.StringSliceVar(&f.csvFiles, "csv", nil, "Candle CSV files instead of OANDA")
	fl.StringVar(&f.db, "db", "", "Record runs to this SQLite file (default journal.db)")
	fl.StringVar(&f.exportDir, "export", "", "Write runs.csv and trades.csv to this directory (default journal.csv_dir)")
	fl.StringVar(&f.orgDir, "org", "", "Write one Org-mode file per run to this directory")
	fl.BoolVar(&f.detail, "detail", false, "Print a full report per run")
	return cmd
}

func runBacktest(cmd *cobra.Command, o *options, f *backtestFlags) error {
	cfg := o.cfg
	bc := &cfg.Backtest
	if len(f.instruments) > 0 {
		bc.Instruments = f.instruments
	}
	if f.granularity != "" {
		bc.Granularity = f.granularity
	}
	if len(f.specs) > 0 {
		bc.Strategies = f.specs
	}
	if f.rr > 0 {
		bc.RiskReward = f.rr
	}
	if f.trailing {
		bc.Trailing = true
	}
	if f.count > 0 {
		bc.Count = f.count
	}
	if f.workers > 0 {
		bc.Workers = f.workers
	}
	if f.db != "" {
		cfg.Journal.DB = f.db
	}
	if f.exportDir != "" {
		cfg.Journal.CSVDir = f.exportDir
	}

	params, err := cfg.BacktestParams()
	if err != nil {
		return err
	}
	g, err := market.ParseGranularity(bc.Granularity)
	if err != nil {
		return err
	}
	from, err := parseTime("from", f.from)
	if err != nil {
		return err
	}
	to, err := parseTime("to", f.to)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	b := &backtest.Batch{Workers: bc.Workers, Logger: o.log, Metrics: o.startMetrics(ctx)}

	var jobs []backtest.Job
	if len(f.csvFiles) > 0 {
		byKey, err := loadCandleFiles(f.csvFiles)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cs := byKey[k]
			for _, p := range params {
				jobs = append(jobs, backtest.Job{
					Instrument:  cs[0].Instrument,
					Granularity: cs[0].Granularity,
					Params:      p,
					Candles:     filterRange(cs, from, to),
				})
			}
		}
	} else {
		client, err := o.oandaClient()
		if err != nil {
			return err
		}
		b.Source = client
		for _, in := range bc.Instruments {
			for _, p := range params {
				job := backtest.Job{Instrument: in, Granularity: g, Params: p, From: from, To: to}
				if from.IsZero() {
					job.Count = bc.Count
				}
				jobs = append(jobs, job)
			}
		}
	}

	o.log.Info("backtest starting", zap.Int("jobs", len(jobs)), zap.Int("workers", bc.Workers))
	results, err := b.Run(ctx, jobs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.detail {
		for _, r := range results {
			if r.Err == nil {
				backtest.PrintReport(out, r.Report)
			}
		}
	}
	if err := backtest.PrintTable(out, results); err != nil {
		return err
	}
	return record(ctx, o, f.orgDir, results)
}

// loadCandleFiles groups candles by instrument and granularity.
func loadCandleFiles(paths []string) (map[string][]market.Candle, error) {
	out := make(map[string][]market.Candle)
	for _, path := range paths {
		fh, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		cs, err := market.ReadCandlesCSV(fh)
		_ = fh.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, c := range market.CompleteOnly(cs) {
			k := c.Instrument + "/" + string(c.Granularity)
			out[k] = append(out[k], c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no complete candles in %v", paths)
	}
	return out, nil
}

func filterRange(cs []market.Candle, from, to time.Time) []market.Candle {
	if from.IsZero() && to.IsZero() {
		return cs
	}
	out := make([]market.Candle, 0, len(cs))
	for _, c := range cs {
		if !from.IsZero() && c.Time.Before(from) {
			continue
		}
		if !to.IsZero() && !c.Time.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// record sends successful runs to the configured journals.
func record(ctx context.Context, o *options, orgDir string, results []backtest.Result) error {
	var js journal.Multi
	if path := o.cfg.Journal.DB; path != "" {
		db, err := journal.NewSQLite(path)
		if err != nil {
			return err
		}
		js = append(js, db)
	}
	if dir := o.cfg.Journal.CSVDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		c, err := journal.NewCSV(filepath.Join(dir, "runs.csv"), filepath.Join(dir, "trades.csv"))
		if err != nil {
			_ = js.Close()
			return err
		}
		js = append(js, c)
	}
	if orgDir != "" {
		if err := os.MkdirAll(orgDir, 0o755); err != nil {
			_ = js.Close()
			return err
		}
	}

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if err := js.RecordRun(ctx, r.Report); err != nil {
			_ = js.Close()
			return err
		}
		if orgDir != "" {
			if err := writeOrg(filepath.Join(orgDir, r.Report.RunID+".org"), r.Report); err != nil {
				_ = js.Close()
				return err
			}
		}
	}
	if len(js) > 0 {
		o.log.Info("runs recorded", zap.Int("journals", len(js)))
	}
	return js.Close()
}

func writeOrg(path string, rep backtest.Report) error {
	run, trades, err := journal.FromReport(rep)
	if err != nil {
		return err
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := journal.WriteOrg(fh, run, trades); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}
