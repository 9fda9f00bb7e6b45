package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/internal/logging"
	"github.com/rustyeddy/fxsignal/internal/metrics"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/rustyeddy/fxsignal/strategies"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers keeps concurrent history downloads under the broker's
// rate limits.
const DefaultWorkers = 3

// Job is one (instrument, granularity, params) combination. Candles may
// be preloaded; otherwise they are fetched through the batch's source.
type Job struct {
	Instrument  string
	Granularity market.Granularity
	Params      strategies.Params
	Count       int
	From        time.Time
	To          time.Time
	Candles     []market.Candle
}

func (j Job) String() string {
	return fmt.Sprintf("%s %s %s", j.Instrument, j.Granularity, j.Params)
}

type Result struct {
	Job    Job
	Report Report
	Err    error
}

// Batch runs independent backtests with a fixed worker cap. Jobs that ask
// for the same candle range share one download.
type Batch struct {
	Source  broker.CandleSource
	Workers int
	Logger  *zap.Logger
	Metrics *metrics.Registry

	mu    sync.Mutex
	cache map[string]*fetch
}

type fetch struct {
	once    sync.Once
	candles []market.Candle
	err     error
}

// Run executes jobs and returns one Result per job, in job order. A failed
// job records its error and does not stop the others. The returned error
// is non-nil only if ctx ended.
func (b *Batch) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	log := logging.OrNop(b.Logger)
	workers := b.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Job: job, Err: err}
				return nil
			}
			began := time.Now()
			rep, err := b.runJob(gctx, job)
			results[i] = Result{Job: job, Report: rep, Err: err}

			status := "ok"
			if err != nil {
				status = "error"
				log.Warn("backtest job failed", zap.Stringer("job", job), zap.Error(err))
			} else {
				log.Debug("backtest job done",
					zap.Stringer("job", job),
					zap.Int("trades", rep.Summary.Trades),
					zap.Float64("win_rate", rep.Summary.WinRate))
			}
			b.Metrics.Backtest(status, time.Since(began))
			return nil
		})
	}

	_ = g.Wait()
	return results, ctx.Err()
}

func (b *Batch) runJob(ctx context.Context, job Job) (Report, error) {
	candles := job.Candles
	if candles == nil {
		var err error
		if candles, err = b.candles(ctx, job); err != nil {
			return Report{}, err
		}
		candles = market.CompleteOnly(candles)
	}
	return Run(candles, job.Params)
}

func (b *Batch) candles(ctx context.Context, job Job) ([]market.Candle, error) {
	if b.Source == nil {
		return nil, fmt.Errorf("backtest: no candle source for %s", job)
	}
	key := fmt.Sprintf("%s|%s|%d|%d|%d", job.Instrument, job.Granularity, job.Count, job.From.Unix(), job.To.Unix())

	b.mu.Lock()
	if b.cache == nil {
		b.cache = make(map[string]*fetch)
	}
	f, ok := b.cache[key]
	if !ok {
		f = &fetch{}
		b.cache[key] = f
	}
	b.mu.Unlock()

	f.once.Do(func() {
		f.candles, f.err = b.Source.FetchCandles(ctx, broker.CandleRequest{
			Instrument:  job.Instrument,
			Granularity: job.Granularity,
			Price:       broker.PriceAll,
			Count:       job.Count,
			From:        job.From,
			To:          job.To,
		})
	})
	return f.candles, f.err
}
