// Package live runs strategies against a streaming broker: it detects
// candle closes from ticks, places orders and trails their stops.
package live

import (
	"sync"
	"time"

	"github.com/rustyeddy/fxsignal/market"
)

// CandleEvent reports that the candle before Boundary has closed.
type CandleEvent struct {
	Instrument  string
	Granularity market.Granularity
	Boundary    time.Time
}

// Detector turns ticks into candle-close events. Per instrument it keeps
// the newest bucket start seen; the first tick only seeds it, and older or
// equal buckets are ignored so the boundary never moves back.
type Detector struct {
	g market.Granularity

	mu     sync.Mutex
	bounds map[string]time.Time
}

func NewDetector(g market.Granularity) *Detector {
	return &Detector{g: g, bounds: make(map[string]time.Time)}
}

// Observe returns an event when t opens a new bucket for its instrument.
func (d *Detector) Observe(t market.Tick) (CandleEvent, bool) {
	b := d.g.Truncate(t.Time)

	d.mu.Lock()
	defer d.mu.Unlock()

	cur, ok := d.bounds[t.Instrument]
	if !ok {
		d.bounds[t.Instrument] = b
		return CandleEvent{}, false
	}
	if !b.After(cur) {
		return CandleEvent{}, false
	}
	d.bounds[t.Instrument] = b
	return CandleEvent{Instrument: t.Instrument, Granularity: d.g, Boundary: b}, true
}

// Boundary returns the stored bucket start for instrument.
func (d *Detector) Boundary(instrument string) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.bounds[instrument]
	return b, ok
}
