package backtest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/internal/metrics"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/rustyeddy/fxsignal/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    map[string]int
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeSource) FetchCandles(ctx context.Context, req broker.CandleRequest) ([]market.Candle, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[req.Instrument]++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if req.Instrument == "BAD_PAIR" {
		return nil, errors.New("no such instrument")
	}
	if req.Price != broker.PriceAll {
		return nil, errors.New("want bid, mid and ask")
	}

	cs := dipAndRecover()
	for i := range cs {
		cs[i].Instrument = req.Instrument
	}
	last := cs[len(cs)-1]
	last.Time = last.Time.Add(time.Hour)
	last.Complete = false
	return append(cs, last), nil
}

func TestBatchSharesDownloads(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	reg := metrics.NewRegistry()
	b := &Batch{Source: src, Workers: 2, Logger: zaptest.NewLogger(t), Metrics: reg}

	var jobs []Job
	for _, k := range []strategies.Kind{strategies.KindBBands, strategies.KindRSI, strategies.KindMACD} {
		jobs = append(jobs, Job{
			Instrument:  "EUR_USD",
			Granularity: market.H1,
			Params:      strategies.Params{Kind: k, Windows: windowsFor(k)},
			Count:       100,
		})
	}

	results, err := b.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))

	for i, r := range results {
		require.NoError(t, r.Err, r.Job.String())
		assert.Equal(t, jobs[i].Params.Kind, r.Report.Params.Kind, "results keep job order")
		assert.Len(t, r.Report.Candles, len(dipAndRecover()), "incomplete candle dropped")
	}
	assert.Equal(t, 1, src.calls["EUR_USD"])
	n, err := testutil.GatherAndCount(reg, "fxsignal_backtests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the ok status was recorded")
}

func TestBatchRecordsJobErrors(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	b := &Batch{Source: src}

	jobs := []Job{
		{Instrument: "BAD_PAIR", Granularity: market.H1, Params: strategies.Params{Kind: strategies.KindBBands}},
		{Instrument: "EUR_USD", Granularity: market.H1, Params: strategies.Params{Kind: strategies.KindBBands, Windows: []int{5}}},
		{Instrument: "EUR_USD", Granularity: market.H1, Params: strategies.Params{Kind: "nope"}},
	}
	results, err := b.Run(context.Background(), jobs)
	require.NoError(t, err)

	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.Error(t, results[2].Err)
}

func TestBatchWorkerCap(t *testing.T) {
	t.Parallel()

	src := &fakeSource{delay: 20 * time.Millisecond}
	b := &Batch{Source: src, Workers: 2}

	var jobs []Job
	for _, inst := range []string{"EUR_USD", "GBP_USD", "USD_JPY", "AUD_USD", "USD_CAD", "NZD_USD"} {
		jobs = append(jobs, Job{Instrument: inst, Granularity: market.H1, Params: strategies.Params{Kind: strategies.KindBBands}})
	}
	_, err := b.Run(context.Background(), jobs)
	require.NoError(t, err)

	assert.LessOrEqual(t, src.peak.Load(), int32(2))
	assert.Len(t, src.calls, len(jobs))
}

func TestBatchPreloadedCandles(t *testing.T) {
	t.Parallel()

	b := &Batch{}
	results, err := b.Run(context.Background(), []Job{{
		Params:  strategies.Params{Kind: strategies.KindBBands, Windows: []int{5}},
		Candles: dipAndRecover(),
	}})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	assert.NotEmpty(t, results[0].Report.Trades)

	_, err = b.Run(context.Background(), []Job{{Instrument: "EUR_USD", Params: strategies.Params{Kind: strategies.KindRSI}}})
	require.NoError(t, err, "missing source is a job error")
}

func TestBatchCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &Batch{Source: &fakeSource{}}
	results, err := b.Run(ctx, []Job{{Instrument: "EUR_USD", Params: strategies.Params{Kind: strategies.KindRSI}}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func windowsFor(k strategies.Kind) []int {
	if k == strategies.KindBBands {
		return []int{5}
	}
	return nil
}
