package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one live quote.
type Tick struct {
	Instrument string
	Time       time.Time
	Bid        decimal.Decimal
	Ask        decimal.Decimal
}

func (t Tick) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}

func (t Tick) Spread() decimal.Decimal {
	return t.Ask.Sub(t.Bid)
}

// TickSource returns the latest known quote for an instrument.
type TickSource interface {
	GetTick(ctx context.Context, instrument string) (Tick, error)
}

// TickStore keeps the latest tick per instrument. The stream goroutine is
// the only writer for a key; any goroutine may read.
type TickStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string]Tick)}
}

// Set stores t unless a newer tick for the same instrument is already held.
func (ts *TickStore) Set(t Tick) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if cur, ok := ts.ticks[t.Instrument]; ok && t.Time.Before(cur.Time) {
		return
	}
	ts.ticks[t.Instrument] = t
}

func (ts *TickStore) Get(instrument string) (Tick, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.ticks[instrument]
	return t, ok
}

// GetTick implements TickSource.
func (ts *TickStore) GetTick(_ context.Context, instrument string) (Tick, error) {
	t, ok := ts.Get(instrument)
	if !ok {
		return Tick{}, fmt.Errorf("no price for %s", instrument)
	}
	return t, nil
}
