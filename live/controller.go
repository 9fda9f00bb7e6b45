package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/internal/logging"
	"github.com/rustyeddy/fxsignal/internal/metrics"
	"github.com/rustyeddy/fxsignal/internal/retry"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/rustyeddy/fxsignal/risk"
	"github.com/rustyeddy/fxsignal/strategies"
	"go.uber.org/zap"
)

var errNotClosed = errors.New("candle not closed yet")

type Config struct {
	Instruments []string
	Granularity market.Granularity
	Strategy    strategies.Params

	// Window is how many candles each evaluation fetches.
	Window int
	// RiskPct is the fraction of NAV risked per trade.
	RiskPct float64
	Policy  risk.Policy

	Confirm retry.Policy

	Trailing      bool
	TrailInterval time.Duration
	// TrailIntervals overrides TrailInterval per instrument.
	TrailIntervals map[string]time.Duration
	TrailRetry     retry.Policy
	CallTimeout    time.Duration

	ClientTag string
}

func (c *Config) defaults() {
	if c.Window <= 0 {
		c.Window = 200
	}
	if c.RiskPct <= 0 {
		c.RiskPct = 0.01
	}
	if c.Confirm.Attempts <= 0 {
		c.Confirm = retry.Policy{Attempts: 5, Delay: 2 * time.Second}
	}
	if c.TrailRetry.Attempts <= 0 {
		c.TrailRetry = retry.Policy{Attempts: 3, Delay: time.Second}
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
}

// Controller evaluates the strategy at every candle close and places at
// most one trade per instrument.
type Controller struct {
	cfg     Config
	broker  broker.Broker
	prices  *market.TickStore
	det     *Detector
	trailer *Trailer
	log     *zap.Logger
	metrics *metrics.Registry

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	mu  sync.Mutex
	err error
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.log = logging.OrNop(l) }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(c *Controller) { c.metrics = m }
}

// NewController checks cfg before anything touches the broker.
func NewController(cfg Config, b broker.Broker, opts ...Option) (*Controller, error) {
	cfg.defaults()
	if len(cfg.Instruments) == 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, errors.New("live.instruments is required"))
	}
	for _, in := range cfg.Instruments {
		if _, err := market.Instrument(in); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	if cfg.Granularity.Duration() <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("bad granularity %q", cfg.Granularity))
	}
	_, p, err := strategies.New(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	cfg.Strategy = p

	c := &Controller{
		cfg:    cfg,
		broker: b,
		prices: market.NewTickStore(),
		det:    NewDetector(cfg.Granularity),
		log:    zap.NewNop(),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.trailer = NewTrailer(TrailerConfig{
		Capacity:    len(cfg.Instruments),
		Interval:    cfg.TrailInterval,
		Intervals:   cfg.TrailIntervals,
		Retry:       cfg.TrailRetry,
		CallTimeout: cfg.CallTimeout,
	}, b, c.prices, c.log, c.metrics)
	return c, nil
}

// Prices is the live quote cache fed by the stream.
func (c *Controller) Prices() *market.TickStore { return c.prices }

// Start reconstructs trailing stops for open trades, opens the tick stream
// and returns. Evaluation runs until ctx ends, Stop is called or the
// stream fails. Trailing runs until Stop.
func (c *Controller) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	if c.cfg.Trailing {
		c.trailer.Start(context.WithoutCancel(ctx))
		trades, err := c.broker.GetOpenTrades(ctx)
		if err != nil {
			c.log.Warn("open trades unavailable, nothing to trail", zap.Error(err))
		}
		for _, t := range trades {
			ts, ok := FromTrade(t, c.cfg.Strategy.RiskReward)
			if !ok {
				continue
			}
			if err := c.trailer.Track(ts); err != nil {
				c.cancel()
				return err
			}
		}
	}

	ticks, errs, err := c.broker.StreamTicks(ctx, c.cfg.Instruments)
	if err != nil {
		c.cancel()
		c.trailer.Stop()
		return fmt.Errorf("live: open stream: %w", err)
	}

	inbox := make(map[string]chan CandleEvent, len(c.cfg.Instruments))
	for _, in := range c.cfg.Instruments {
		ch := make(chan CandleEvent, 1)
		inbox[in] = ch
		c.wg.Add(1)
		go c.evaluator(ctx, ch)
	}

	c.wg.Add(1)
	go c.stream(ctx, ticks, errs, inbox)

	c.log.Info("live controller started",
		zap.Strings("instruments", c.cfg.Instruments),
		zap.Stringer("granularity", c.cfg.Granularity),
		zap.Stringer("strategy", c.cfg.Strategy))
	return nil
}

// Stop cancels evaluation and waits for in-flight broker calls. An order
// already sent is seen through and handed to the trailer before the
// trailer stops. It returns the error that ended the stream, if any.
func (c *Controller) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.trailer.Stop()
	return c.Err()
}

// Done is closed once the tick stream has ended.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

// stream is the single writer of the tick cache and the detector.
func (c *Controller) stream(ctx context.Context, ticks <-chan market.Tick, errs <-chan error, inbox map[string]chan CandleEvent) {
	defer c.wg.Done()
	defer close(c.done)

	for t := range ticks {
		c.prices.Set(t)
		c.metrics.Tick(t.Instrument)

		ev, ok := c.det.Observe(t)
		if !ok {
			continue
		}
		c.metrics.CandleEvent(ev.Instrument)
		ch, ok := inbox[ev.Instrument]
		if !ok {
			continue
		}
		select {
		case ch <- ev:
		default:
			c.log.Warn("evaluation busy, candle event dropped",
				zap.String("instrument", ev.Instrument),
				zap.Time("boundary", ev.Boundary))
		}
	}

	if ctx.Err() != nil {
		return
	}
	var err error
	select {
	case err = <-errs:
	default:
	}
	if err == nil || !errors.Is(err, core.ErrStreamClosed) {
		err = core.WrapError(core.ErrStreamClosed, err)
	}
	c.log.Error("price stream ended", zap.Error(err))
	c.fail(err)
	c.cancel()
}

func (c *Controller) evaluator(ctx context.Context, events <-chan CandleEvent) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			c.evaluate(ctx, ev)
		}
	}
}

func (c *Controller) evaluate(ctx context.Context, ev CandleEvent) {
	log := c.log.With(
		zap.String("instrument", ev.Instrument),
		zap.Stringer("granularity", ev.Granularity),
		zap.Time("boundary", ev.Boundary))

	if err := c.confirm(ctx, ev); err != nil {
		c.metrics.ConfirmFailure()
		log.Warn("candle close not confirmed, skipping", zap.Error(err))
		return
	}

	if ctx.Err() != nil {
		return
	}
	var cs []market.Candle
	err := c.call(ctx, func(ctx context.Context) (err error) {
		cs, err = c.broker.FetchCandles(ctx, broker.CandleRequest{
			Instrument:  ev.Instrument,
			Granularity: ev.Granularity,
			Price:       broker.PriceAll,
			Count:       c.cfg.Window,
		})
		return err
	})
	if err != nil {
		log.Warn("fetch candles failed", zap.Error(err))
		return
	}
	cs = market.Dedupe(market.CompleteOnly(cs))
	if len(cs) == 0 {
		log.Debug("no candles")
		return
	}

	results, err := strategies.Generate(cs, c.cfg.Strategy)
	if err != nil {
		log.Error("generate failed", zap.Error(err))
		return
	}
	res := results[len(results)-1]
	if res.Signal == strategies.None {
		return
	}
	c.metrics.Signal(ev.Instrument, res.Signal.String())
	log.Info("signal", zap.Stringer("signal", res.Signal),
		zap.Stringer("take_profit", res.TakeProfit), zap.Stringer("stop_loss", res.StopLoss))

	if err := c.place(ctx, log, ev.Instrument, res); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("shutting down, signal not traded")
			return
		}
		log.Warn("order not placed", zap.Error(err))
	}
}

// call runs one broker round trip bounded by CallTimeout. Stop does not
// abort it, so a request already on the wire completes.
func (c *Controller) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CallTimeout)
	defer cancel()
	return fn(ctx)
}

func (c *Controller) confirm(ctx context.Context, ev CandleEvent) error {
	return retry.Do(ctx, c.cfg.Confirm, func(ctx context.Context, attempt int) error {
		var last time.Time
		err := c.call(ctx, func(ctx context.Context) (err error) {
			last, err = c.broker.FetchLastCandleTime(ctx, ev.Instrument, ev.Granularity)
			return err
		})
		if err != nil {
			return err
		}
		if ev.Granularity.Next(last).Before(ev.Boundary) {
			return fmt.Errorf("%w: last complete %s", errNotClosed, last.Format(time.RFC3339))
		}
		return nil
	})
}

func (c *Controller) place(ctx context.Context, log *zap.Logger, instrument string, res strategies.IndicatorResult) error {
	var open []broker.Trade
	err := c.call(ctx, func(ctx context.Context) (err error) {
		open, err = c.broker.GetOpenTrades(ctx)
		return err
	})
	if err != nil {
		return err
	}
	for _, t := range open {
		if t.Instrument == instrument && t.IsOpen() {
			log.Info("trade already open, signal ignored", zap.String("trade_id", t.ID))
			c.metrics.Order("skipped")
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	var acct broker.Account
	err = c.call(ctx, func(ctx context.Context) (err error) {
		acct, err = c.broker.GetAccount(ctx)
		return err
	})
	if err != nil {
		return err
	}

	entry := res.TakeProfit.Sub(res.Gain.Mul(res.Signal.Dir()))
	if tick, ok := c.prices.Get(instrument); ok {
		entry = tick.Ask
		if res.Signal == strategies.Sell {
			entry = tick.Bid
		}
	}

	size, err := risk.Size(ctx, acct, instrument, c.cfg.RiskPct, entry, res.StopLoss, c.prices)
	if err != nil {
		return err
	}
	if size.Units <= 0 {
		log.Info("position size is zero, nothing to do", zap.Stringer("risk_amount", size.RiskAmount))
		c.metrics.Order("skipped")
		return nil
	}
	units := size.Units * res.Signal.Dir().IntPart()

	q2a, err := market.QuoteToAccountRate(ctx, instrument, acct.Currency, c.prices)
	if err != nil {
		return err
	}
	d := risk.Evaluate(c.cfg.Policy, risk.Intent{
		Instrument:     instrument,
		Units:          units,
		Entry:          entry,
		Stop:           res.StopLoss,
		TakeProfit:     res.TakeProfit,
		QuoteToAccount: q2a,
	}, acct)
	if !d.Allowed {
		c.metrics.Order("rejected")
		return d.Error()
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	sl, tp := res.StopLoss, res.TakeProfit
	var fill broker.OrderFill
	err = c.call(ctx, func(ctx context.Context) (err error) {
		fill, err = c.broker.SubmitOrder(ctx, broker.OrderRequest{
			Instrument: instrument,
			Units:      units,
			StopLoss:   &sl,
			TakeProfit: &tp,
			ClientTag:  c.cfg.ClientTag,
		})
		return err
	})
	if err != nil {
		c.metrics.Order("failed")
		return err
	}
	c.metrics.Order("filled")
	log.Info("order filled",
		zap.String("trade_id", fill.TradeID),
		zap.Int64("units", fill.Units),
		zap.Stringer("price", fill.Price))

	if !c.cfg.Trailing || fill.TradeID == "" {
		return nil
	}
	meta, _ := market.Instrument(instrument)
	return c.trailer.Track(NewTrailingStop(fill.TradeID, instrument, res.Signal, fill.Price, sl,
		c.cfg.Strategy.RiskReward, meta.DisplayPrecision))
}
