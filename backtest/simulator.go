// Package backtest replays strategy signals against historical candles.
package backtest

import (
	"fmt"
	"time"

	"github.com/rustyeddy/fxsignal/market"
	"github.com/rustyeddy/fxsignal/strategies"
	"github.com/shopspring/decimal"
)

type Outcome int8

const (
	OutcomeWin     Outcome = 1
	OutcomeEven    Outcome = 0
	OutcomeLoss    Outcome = -1
	OutcomeUnknown Outcome = -2
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLoss:
		return "loss"
	case OutcomeEven:
		return "even"
	case OutcomeUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Outcome(%d)", int8(o))
	}
}

// TradeResult is one synthetic trade. It is mutated while Running and
// frozen once closed.
type TradeResult struct {
	Running bool

	EntryIndex int
	EntryTime  time.Time
	EntryPrice decimal.Decimal
	Signal     strategies.Signal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal

	// PL is the directional price distance from entry to the exit-side
	// close of the latest bar, or to ClosePrice once closed.
	PL decimal.Decimal

	CloseIndex int
	CloseTime  time.Time
	ClosePrice decimal.Decimal
	Outcome    Outcome

	// Score is the win magnitude in [0,1] for wins, -1 for losses and
	// 0 otherwise.
	Score float64

	// Trailed is set once the stop was moved to entry.
	Trailed bool
}

// stream is the Idle/Running state machine for one instrument and
// granularity.
type stream struct {
	trailing bool
	open     *TradeResult
	trades   []TradeResult
}

var two = decimal.NewFromInt(2)

// Simulate walks candles and their indicator results in order. At most
// one trade is open at any bar. Trades still open at the end are returned
// with Running set.
func Simulate(candles []market.Candle, results []strategies.IndicatorResult, trailing bool) ([]TradeResult, error) {
	if len(candles) != len(results) {
		return nil, fmt.Errorf("backtest: %d candles but %d indicator results", len(candles), len(results))
	}
	s := &stream{trailing: trailing}
	for i := range candles {
		s.step(i, candles[i], results[i])
	}
	if s.open != nil {
		s.trades = append(s.trades, *s.open)
	}
	return s.trades, nil
}

func (s *stream) step(i int, c market.Candle, r strategies.IndicatorResult) {
	if s.open != nil && i > s.open.EntryIndex {
		s.update(i, c)
	}
	if s.open == nil && r.Signal != strategies.None {
		s.enter(i, c, r)
	}
}

func (s *stream) enter(i int, c market.Candle, r strategies.IndicatorResult) {
	price := c.Ask.C
	if r.Signal == strategies.Sell {
		price = c.Bid.C
	}
	s.open = &TradeResult{
		Running:    true,
		EntryIndex: i,
		EntryTime:  c.Time,
		EntryPrice: price,
		Signal:     r.Signal,
		TakeProfit: r.TakeProfit,
		StopLoss:   r.StopLoss,
	}
}

// update checks exits on the side the position would close on: bid for a
// Buy, ask for a Sell.
func (s *stream) update(i int, c market.Candle) {
	t := s.open
	long := t.Signal == strategies.Buy
	side := c.Side(long)
	dir := t.Signal.Dir()

	t.PL = side.C.Sub(t.EntryPrice).Mul(dir)

	var hitTP, hitSL bool
	if long {
		hitTP = side.H.GreaterThanOrEqual(t.TakeProfit)
		hitSL = side.L.LessThanOrEqual(t.StopLoss)
	} else {
		hitTP = side.L.LessThanOrEqual(t.TakeProfit)
		hitSL = side.H.GreaterThanOrEqual(t.StopLoss)
	}

	switch {
	case hitTP && hitSL:
		// The path inside the bar is unknown.
		s.close(i, c, side.H.Add(side.L).Div(two), OutcomeUnknown, 0)
	case hitTP:
		s.close(i, c, t.TakeProfit, OutcomeWin, winScore(t, side.C))
	case hitSL:
		if t.StopLoss.Equal(t.EntryPrice) {
			s.close(i, c, t.StopLoss, OutcomeEven, 0)
		} else {
			s.close(i, c, t.StopLoss, OutcomeLoss, -1)
		}
	default:
		if s.trailing && !t.Trailed {
			s.ratchet(side, long)
		}
	}
}

// ratchet moves the stop to entry once price reaches halfway to target.
func (s *stream) ratchet(side market.OHLC, long bool) {
	t := s.open
	mid := t.EntryPrice.Add(t.TakeProfit.Sub(t.EntryPrice).Div(two))
	reached := side.H.GreaterThanOrEqual(mid)
	if !long {
		reached = side.L.LessThanOrEqual(mid)
	}
	if reached {
		t.StopLoss = t.EntryPrice
		t.Trailed = true
	}
}

func (s *stream) close(i int, c market.Candle, price decimal.Decimal, o Outcome, score float64) {
	t := s.open
	t.Running = false
	t.CloseIndex = i
	t.CloseTime = c.Time
	t.ClosePrice = price
	t.PL = price.Sub(t.EntryPrice).Mul(t.Signal.Dir())
	t.Outcome = o
	t.Score = score
	s.trades = append(s.trades, *t)
	s.open = nil
}

// winScore scales a win by where the bar closed relative to the target:
// 1 at or beyond it, proportionally less when price touched the target
// and fell back, never below 0.
func winScore(t *TradeResult, exitClose decimal.Decimal) float64 {
	target := t.TakeProfit.Sub(t.EntryPrice)
	if target.IsZero() {
		return 1
	}
	ratio := exitClose.Sub(t.EntryPrice).Div(target).InexactFloat64()
	switch {
	case ratio >= 1:
		return 1
	case ratio <= 0:
		return 0
	default:
		return ratio
	}
}
