package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/internal/logging"
	"github.com/rustyeddy/fxsignal/internal/metrics"
	"github.com/rustyeddy/fxsignal/internal/retry"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/rustyeddy/fxsignal/strategies"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TrailingStop is the tracking state for one open trade.
//
// Step is the distance the stop trails behind price. Target is the
// favorable excursion already secured: the stop is due at
// Entry ± (Target - Step), and it moves further once price gets Step
// beyond Target.
type TrailingStop struct {
	TradeID    string
	Instrument string
	Signal     strategies.Signal
	Entry      decimal.Decimal
	Step       decimal.Decimal
	Target     decimal.Decimal
	Stop       decimal.Decimal
	RiskReward float64
	Precision  int32
}

// NewTrailingStop starts tracking a fresh trade. The first lock moves the
// stop to entry once price has gone one stop distance in favor.
func NewTrailingStop(tradeID, instrument string, sig strategies.Signal, entry, stop decimal.Decimal, rr float64, precision int32) TrailingStop {
	step := entry.Sub(stop).Abs()
	return TrailingStop{
		TradeID:    tradeID,
		Instrument: instrument,
		Signal:     sig,
		Entry:      entry,
		Step:       step,
		Target:     step,
		Stop:       stop,
		RiskReward: rr,
		Precision:  precision,
	}
}

// FromTrade rebuilds tracking state for a trade found open at startup.
// The step is recovered from the take-profit and rr when both are known,
// otherwise from the stop distance. Trades without a stop are skipped.
func FromTrade(t broker.Trade, rr float64) (TrailingStop, bool) {
	if t.StopLoss.IsZero() || t.Units.IsZero() {
		return TrailingStop{}, false
	}
	sig := strategies.Buy
	if !t.Long() {
		sig = strategies.Sell
	}
	prec := int32(5)
	if meta, err := market.Instrument(t.Instrument); err == nil {
		prec = meta.DisplayPrecision
	}

	ts := NewTrailingStop(t.ID, t.Instrument, sig, t.Price, t.StopLoss, rr, prec)
	if !t.TakeProfit.IsZero() && rr > 0 {
		ts.Step = t.TakeProfit.Sub(t.Price).Abs().Div(decimal.NewFromFloat(rr)).Round(prec)
	}
	ts.Target = ts.Step
	// a stop at or past entry has been trailed before
	if secured := ts.excursion(t.StopLoss).Add(ts.Step); secured.GreaterThan(ts.Target) {
		ts.Target = secured
	}
	return ts, true
}

func (ts TrailingStop) excursion(price decimal.Decimal) decimal.Decimal {
	return price.Sub(ts.Entry).Mul(ts.Signal.Dir())
}

// locked is the stop level that secures Target.
func (ts TrailingStop) locked() decimal.Decimal {
	return ts.Entry.Add(ts.Target.Sub(ts.Step).Mul(ts.Signal.Dir())).Round(ts.Precision)
}

// tighter reports whether level is a better stop than the current one.
func (ts TrailingStop) tighter(level decimal.Decimal) bool {
	if ts.Signal == strategies.Buy {
		return level.GreaterThan(ts.Stop)
	}
	return level.LessThan(ts.Stop)
}

// TradeUpdater is the part of broker.Broker the trailer needs.
type TradeUpdater interface {
	GetTrade(ctx context.Context, id string) (broker.Trade, error)
	UpdateStopLoss(ctx context.Context, tradeID string, level decimal.Decimal) error
}

type TrailerConfig struct {
	// Capacity sizes both the queue and the worker pool.
	Capacity int
	// Interval is the wait before re-checking an item that needs no
	// update. Intervals overrides it per instrument.
	Interval    time.Duration
	Intervals   map[string]time.Duration
	Retry       retry.Policy
	CallTimeout time.Duration
}

// Trailer moves stops of open trades as price runs in their favor. Items
// are re-enqueued only after they are processed, so updates for one trade
// never overlap.
type Trailer struct {
	cfg     TrailerConfig
	broker  TradeUpdater
	prices  market.TickSource
	log     *zap.Logger
	metrics *metrics.Registry

	queue  chan TrailingStop
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once
}

func NewTrailer(cfg TrailerConfig, b TradeUpdater, prices market.TickSource, log *zap.Logger, m *metrics.Registry) *Trailer {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Trailer{
		cfg:     cfg,
		broker:  b,
		prices:  prices,
		log:     logging.OrNop(log),
		metrics: m,
		queue:   make(chan TrailingStop, cfg.Capacity),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. They run until ctx ends or Stop is called.
func (t *Trailer) Start(ctx context.Context) {
	t.start.Do(func() {
		go func() {
			select {
			case <-ctx.Done():
				t.cancel()
			case <-t.ctx.Done():
			}
		}()
		for i := 0; i < t.cfg.Capacity; i++ {
			t.wg.Add(1)
			go t.worker()
		}
	})
}

// Stop cancels pending waits and returns once in-flight broker calls have
// finished.
func (t *Trailer) Stop() {
	t.cancel()
	t.wg.Wait()
}

// Track adds a new item. It blocks while the queue is full.
func (t *Trailer) Track(ts TrailingStop) error {
	select {
	case t.queue <- ts:
	default:
		select {
		case t.queue <- ts:
		case <-t.ctx.Done():
			return t.ctx.Err()
		}
	}
	t.metrics.TrailingTracked(1)
	t.log.Info("trailing stop tracked",
		zap.String("trade_id", ts.TradeID),
		zap.String("instrument", ts.Instrument),
		zap.Stringer("stop", ts.Stop))
	return nil
}

func (t *Trailer) worker() {
	defer t.wg.Done()
	for {
		select {
		case <-t.ctx.Done():
			return
		case ts := <-t.queue:
			t.process(ts)
		}
	}
}

func (t *Trailer) interval(instrument string) time.Duration {
	if d, ok := t.cfg.Intervals[instrument]; ok && d > 0 {
		return d
	}
	return t.cfg.Interval
}

// requeue puts ts back after wait. The wait runs in its own goroutine and
// is abandoned on shutdown.
func (t *Trailer) requeue(ts TrailingStop, wait time.Duration) {
	if wait <= 0 {
		select {
		case t.queue <- ts:
			return
		default:
		}
	}
	go func() {
		if wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-t.ctx.Done():
				return
			case <-timer.C:
			}
		}
		select {
		case t.queue <- ts:
		case <-t.ctx.Done():
		}
	}()
}

func (t *Trailer) drop(result string) {
	t.metrics.TrailingTracked(-1)
	t.metrics.TrailingUpdate(result)
}

// call runs a broker round trip that survives shutdown, bounded by
// CallTimeout.
func (t *Trailer) call(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), t.cfg.CallTimeout)
	defer cancel()
	return fn(ctx)
}

func (t *Trailer) process(ts TrailingStop) {
	log := t.log.With(zap.String("trade_id", ts.TradeID), zap.String("instrument", ts.Instrument))
	wait := t.interval(ts.Instrument)

	var tr broker.Trade
	err := t.call(func(ctx context.Context) (err error) {
		tr, err = t.broker.GetTrade(ctx, ts.TradeID)
		return err
	})
	switch {
	case errors.Is(err, core.ErrNotFound):
		log.Info("trailing stop dropped, trade not found")
		t.drop("closed")
		return
	case err != nil:
		log.Warn("get trade failed", zap.Error(err))
		t.requeue(ts, wait)
		return
	case !tr.IsOpen():
		log.Info("trailing stop done, trade closed", zap.Stringer("realized_pl", tr.RealizedPL))
		t.drop("closed")
		return
	}

	tick, err := t.prices.GetTick(t.ctx, ts.Instrument)
	if err != nil {
		log.Debug("no price yet", zap.Error(err))
		t.requeue(ts, wait)
		return
	}
	price := tick.Bid
	if ts.Signal == strategies.Sell {
		price = tick.Ask
	}
	exc := ts.excursion(price)

	switch {
	case exc.GreaterThanOrEqual(ts.Target.Add(ts.Step)):
		// A: trail the stop behind price
		level := price.Sub(ts.Step.Mul(ts.Signal.Dir())).Round(ts.Precision)
		if err := t.submit(ts, level); err != nil {
			log.Warn("trailing stop update failed, dropping", zap.Stringer("level", level), zap.Error(err))
			t.drop("failed")
			return
		}
		log.Info("trailing stop moved", zap.Stringer("from", ts.Stop), zap.Stringer("to", level))
		t.metrics.TrailingUpdate("moved")
		ts.Stop = level
		ts.Target = exc
		t.requeue(ts, 0)

	case exc.GreaterThanOrEqual(ts.Target) && ts.tighter(ts.locked()):
		// B: secure the current target
		level := ts.locked()
		if err := t.submit(ts, level); err != nil {
			log.Warn("stop lock failed", zap.Stringer("level", level), zap.Error(err))
			t.metrics.TrailingUpdate("failed")
			t.requeue(ts, wait)
			return
		}
		log.Info("stop locked", zap.Stringer("from", ts.Stop), zap.Stringer("to", level))
		t.metrics.TrailingUpdate("locked")
		ts.Stop = level
		t.requeue(ts, 0)

	default:
		// C: not there yet
		t.metrics.TrailingUpdate("waiting")
		t.requeue(ts, wait)
	}
}

func (t *Trailer) submit(ts TrailingStop, level decimal.Decimal) error {
	return retry.Do(context.WithoutCancel(t.ctx), t.cfg.Retry, func(_ context.Context, attempt int) error {
		err := t.call(func(ctx context.Context) error {
			return t.broker.UpdateStopLoss(ctx, ts.TradeID, level)
		})
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrOrderFailed) {
			return retry.Permanent(err)
		}
		return err
	})
}
