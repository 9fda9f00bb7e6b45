// Package sim is an in-memory paper broker. It is driven by UpdatePrice
// and implements broker.Broker for replays and tests.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/internal/id"
	"github.com/rustyeddy/fxsignal/internal/logging"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ broker.Broker = (*Engine)(nil)

var (
	ErrTradeNotFound      = errors.New("trade not found")
	ErrTradeAlreadyClosed = errors.New("trade already closed")
)

// DefaultGranularities are aggregated when no option says otherwise.
var DefaultGranularities = []market.Granularity{market.M1, market.M5, market.M15, market.H1}

type Engine struct {
	mu     sync.Mutex
	acct   broker.Account
	ticks  *market.TickStore
	trades map[string]*broker.Trade
	order  []string // trade IDs in open order

	grans []market.Granularity
	books map[bookKey]*book

	subs   []*subscriber
	closed bool

	faultMu sync.Mutex
	faults  map[Op][]error
	calls   map[Op]int

	log *zap.Logger
}

type Option func(*Engine)

// WithGranularities replaces the aggregated granularities.
func WithGranularities(gs ...market.Granularity) Option {
	return func(e *Engine) { e.grans = append([]market.Granularity(nil), gs...) }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = logging.OrNop(l) }
}

// WithHistory preloads complete candles, for example from a CSV export, so
// strategies have a full window before the first tick. Their
// granularities are aggregated from then on.
func WithHistory(candles []market.Candle) Option {
	return func(e *Engine) {
		for _, c := range market.Dedupe(candles) {
			k := bookKey{c.Instrument, c.Granularity}
			b, ok := e.books[k]
			if !ok {
				b = &book{}
				e.books[k] = b
				e.addGranularity(c.Granularity)
			}
			c.Complete = true
			b.candles = append(b.candles, c.WithMid())
		}
	}
}

// NewEngine starts a paper account. acct.Balance is the opening balance.
func NewEngine(acct broker.Account, opts ...Option) *Engine {
	if acct.Currency == "" {
		acct.Currency = "USD"
	}
	if acct.ID == "" {
		acct.ID = "sim"
	}
	acct.NAV = acct.Balance
	e := &Engine{
		acct:   acct,
		ticks:  market.NewTickStore(),
		trades: make(map[string]*broker.Trade),
		books:  make(map[bookKey]*book),
		faults: make(map[Op][]error),
		calls:  make(map[Op]int),
		log:    zap.NewNop(),
		grans:  append([]market.Granularity(nil), DefaultGranularities...),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) addGranularity(g market.Granularity) {
	for _, have := range e.grans {
		if have == g {
			return
		}
	}
	e.grans = append(e.grans, g)
}

// Prices exposes the latest quotes.
func (e *Engine) Prices() *market.TickStore {
	return e.ticks
}

func (e *Engine) GetTick(ctx context.Context, instrument string) (market.Tick, error) {
	return e.ticks.GetTick(ctx, instrument)
}

// UpdatePrice applies a tick: candles are aggregated, stops and targets
// are checked on the exit side, the account is revalued and stream
// subscribers receive the tick.
func (e *Engine) UpdatePrice(ctx context.Context, p market.Tick) error {
	e.mu.Lock()
	e.ticks.Set(p)
	for _, g := range e.grans {
		k := bookKey{p.Instrument, g}
		b, ok := e.books[k]
		if !ok {
			b = &book{}
			e.books[k] = b
		}
		b.add(p, g)
	}

	var err error
	for _, tid := range e.order {
		t := e.trades[tid]
		if !t.IsOpen() || t.Instrument != p.Instrument {
			continue
		}
		mark := exitSide(t, p)
		reason := ""
		switch {
		case hitStopLoss(t, mark):
			reason = "StopLoss"
		case hitTakeProfit(t, mark):
			reason = "TakeProfit"
		}
		if reason != "" {
			if cerr := e.closeTradeLocked(ctx, t, mark, reason); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
	}
	if rerr := e.revalueLocked(ctx); rerr != nil {
		err = errors.Join(err, rerr)
	}
	subs := append([]*subscriber(nil), e.subs...)
	e.mu.Unlock()

	for _, s := range subs {
		s.send(p)
	}
	return err
}

func (e *Engine) closeTradeLocked(ctx context.Context, t *broker.Trade, price decimal.Decimal, reason string) error {
	rate, err := market.QuoteToAccountRate(ctx, t.Instrument, e.acct.Currency, e.ticks)
	if err != nil {
		return fmt.Errorf("close trade %s: %w", t.ID, err)
	}
	pl := UnrealizedPL(*t, price, rate)

	t.State = broker.TradeClosed
	t.RealizedPL = pl
	t.UnrealizedPL = decimal.Zero
	e.acct.Balance = e.acct.Balance.Add(pl)

	e.log.Info("sim trade closed",
		zap.String("trade_id", t.ID),
		zap.String("instrument", t.Instrument),
		zap.String("reason", reason),
		zap.Stringer("price", price),
		zap.Stringer("pl", pl))
	return nil
}

// revalueLocked recomputes NAV, margin and the open trade count.
func (e *Engine) revalueLocked(ctx context.Context) error {
	nav := e.acct.Balance
	used := decimal.Zero
	open := 0
	var errs error

	for _, tid := range e.order {
		t := e.trades[tid]
		if !t.IsOpen() {
			continue
		}
		open++
		p, ok := e.ticks.Get(t.Instrument)
		if !ok {
			continue
		}
		rate, err := market.QuoteToAccountRate(ctx, t.Instrument, e.acct.Currency, e.ticks)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		t.UnrealizedPL = UnrealizedPL(*t, exitSide(t, p), rate)
		nav = nav.Add(t.UnrealizedPL)
		used = used.Add(TradeMargin(t.Units, p.Mid(), t.Instrument, rate))
	}

	e.acct.NAV = nav
	e.acct.MarginUsed = used
	e.acct.OpenTrades = open
	return errs
}

func (e *Engine) GetAccount(ctx context.Context) (broker.Account, error) {
	if err := e.fault(OpGetAccount); err != nil {
		return broker.Account{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct, nil
}

func (e *Engine) GetOpenTrades(ctx context.Context) ([]broker.Trade, error) {
	if err := e.fault(OpGetOpenTrades); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []broker.Trade
	for _, tid := range e.order {
		if t := e.trades[tid]; t.IsOpen() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (e *Engine) GetTrade(ctx context.Context, tradeID string) (broker.Trade, error) {
	if err := e.fault(OpGetTrade); err != nil {
		return broker.Trade{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.trades[tradeID]
	if !ok {
		return broker.Trade{}, core.WrapError(core.ErrNotFound, fmt.Errorf("%w: %q", ErrTradeNotFound, tradeID))
	}
	return *t, nil
}

// Trades returns every trade, open and closed, in open order.
func (e *Engine) Trades() []broker.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]broker.Trade, 0, len(e.order))
	for _, tid := range e.order {
		out = append(out, *e.trades[tid])
	}
	return out
}

// SubmitOrder fills at the current ask for buys and bid for sells.
func (e *Engine) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderFill, error) {
	if err := e.fault(OpSubmitOrder); err != nil {
		return broker.OrderFill{}, err
	}
	if req.Units == 0 {
		return broker.OrderFill{}, core.WrapError(core.ErrOrderFailed, errors.New("units must be non-zero"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.ticks.Get(req.Instrument)
	if !ok {
		return broker.OrderFill{}, core.WrapError(core.ErrOrderFailed, fmt.Errorf("no price for %s", req.Instrument))
	}
	fillPrice := p.Ask
	if req.Units < 0 {
		fillPrice = p.Bid
	}

	tid := id.NewAt(p.Time)
	t := &broker.Trade{
		ID:         tid,
		Instrument: req.Instrument,
		Units:      decimal.NewFromInt(req.Units),
		Price:      fillPrice,
		OpenTime:   p.Time,
		State:      broker.TradeOpen,
	}
	if req.StopLoss != nil {
		t.StopLoss = *req.StopLoss
	}
	if req.TakeProfit != nil {
		t.TakeProfit = *req.TakeProfit
	}
	e.trades[tid] = t
	e.order = append(e.order, tid)
	_ = e.revalueLocked(ctx)

	e.log.Info("sim order filled",
		zap.String("trade_id", tid),
		zap.String("instrument", req.Instrument),
		zap.Int64("units", req.Units),
		zap.Stringer("price", fillPrice))

	return broker.OrderFill{
		OrderID:    tid,
		TradeID:    tid,
		Instrument: req.Instrument,
		Units:      req.Units,
		Price:      fillPrice,
		Time:       p.Time,
	}, nil
}

func (e *Engine) UpdateStopLoss(ctx context.Context, tradeID string, level decimal.Decimal) error {
	if err := e.fault(OpUpdateStopLoss); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.trades[tradeID]
	if !ok {
		return core.WrapError(core.ErrNotFound, fmt.Errorf("%w: %q", ErrTradeNotFound, tradeID))
	}
	if !t.IsOpen() {
		return core.WrapError(core.ErrOrderFailed, fmt.Errorf("%w: %q", ErrTradeAlreadyClosed, tradeID))
	}
	t.StopLoss = level
	return nil
}

// CloseTrade closes an open trade at the current exit-side price.
func (e *Engine) CloseTrade(ctx context.Context, tradeID string, reason string) error {
	if reason == "" {
		reason = "ManualClose"
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.trades[tradeID]
	if !ok {
		return fmt.Errorf("close trade: %w: %q", ErrTradeNotFound, tradeID)
	}
	if !t.IsOpen() {
		return fmt.Errorf("close trade: %w: %q", ErrTradeAlreadyClosed, tradeID)
	}
	p, ok := e.ticks.Get(t.Instrument)
	if !ok {
		return fmt.Errorf("close trade: no price for %q", t.Instrument)
	}
	if err := e.closeTradeLocked(ctx, t, exitSide(t, p), reason); err != nil {
		return err
	}
	return e.revalueLocked(ctx)
}

// CloseAll closes every open trade, worst performer first.
func (e *Engine) CloseAll(ctx context.Context, reason string) error {
	open, err := e.GetOpenTrades(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].UnrealizedPL.LessThan(open[j].UnrealizedPL)
	})
	for _, t := range open {
		if err := e.CloseTrade(ctx, t.ID, reason); err != nil {
			return err
		}
	}
	return nil
}
