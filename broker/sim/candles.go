package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
)

type bookKey struct {
	instrument  string
	granularity market.Granularity
}

// book is one instrument's candles at one granularity, oldest first. Only
// the last candle may be incomplete.
type book struct {
	candles []market.Candle
}

func extend(o market.OHLC, p decimal.Decimal) market.OHLC {
	if p.GreaterThan(o.H) {
		o.H = p
	}
	if p.LessThan(o.L) {
		o.L = p
	}
	o.C = p
	return o
}

func flat(p decimal.Decimal) market.OHLC {
	return market.OHLC{O: p, H: p, L: p, C: p}
}

// add folds a tick into the book. A tick in a later bucket completes the
// forming candle; ticks older than it are ignored.
func (b *book) add(tk market.Tick, g market.Granularity) {
	start := g.Truncate(tk.Time)
	mid := tk.Mid()

	if n := len(b.candles); n > 0 {
		last := &b.candles[n-1]
		switch {
		case start.Equal(last.Time) && !last.Complete:
			last.Bid = extend(last.Bid, tk.Bid)
			last.Ask = extend(last.Ask, tk.Ask)
			last.Mid = extend(last.Mid, mid)
			last.Volume++
			return
		case !start.After(last.Time):
			return
		}
		last.Complete = true
	}

	b.candles = append(b.candles, market.Candle{
		Instrument:  tk.Instrument,
		Granularity: g,
		Time:        start,
		Volume:      1,
		Bid:         flat(tk.Bid),
		Mid:         flat(mid),
		Ask:         flat(tk.Ask),
	})
}

func (b *book) lastComplete() (time.Time, bool) {
	for i := len(b.candles) - 1; i >= 0; i-- {
		if b.candles[i].Complete {
			return b.candles[i].Time, true
		}
	}
	return time.Time{}, false
}

func (b *book) query(req broker.CandleRequest) []market.Candle {
	var out []market.Candle
	for _, c := range b.candles {
		if !req.From.IsZero() && c.Time.Before(req.From) {
			continue
		}
		if !req.To.IsZero() && !c.Time.Before(req.To) {
			continue
		}
		out = append(out, c)
	}
	if req.Count > 0 {
		if req.From.IsZero() && len(out) > req.Count {
			out = out[len(out)-req.Count:]
		} else if len(out) > req.Count {
			out = out[:req.Count]
		}
	}
	res := make([]market.Candle, len(out))
	copy(res, out)
	return res
}

// FetchCandles serves aggregated and preloaded candles.
func (e *Engine) FetchCandles(ctx context.Context, req broker.CandleRequest) ([]market.Candle, error) {
	if err := e.fault(OpFetchCandles); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.books[bookKey{req.Instrument, req.Granularity}]
	if !ok {
		return nil, nil
	}
	return b.query(req), nil
}

func (e *Engine) FetchLastCandleTime(ctx context.Context, instrument string, g market.Granularity) (time.Time, error) {
	if err := e.fault(OpLastCandleTime); err != nil {
		return time.Time{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, ok := e.books[bookKey{instrument, g}]; ok {
		if t, ok := b.lastComplete(); ok {
			return t, nil
		}
	}
	return time.Time{}, core.WrapError(core.ErrNoData, fmt.Errorf("no complete %s candle for %s", g, instrument))
}
