package sim

import (
	"context"
	"io"

	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/market"
)

type subscriber struct {
	ctx         context.Context
	instruments map[string]bool
	ticks       chan market.Tick
	errs        chan error
	done        chan struct{}
}

// send blocks until the tick is taken or the subscriber goes away, so a
// replay delivers every tick in order.
func (s *subscriber) send(t market.Tick) {
	if !s.instruments[t.Instrument] {
		return
	}
	select {
	case s.ticks <- t:
	case <-s.ctx.Done():
	case <-s.done:
	}
}

// StreamTicks subscribes to ticks passed to UpdatePrice. The channel
// closes when ctx ends or Close is called; Close also reports
// core.ErrStreamClosed.
func (e *Engine) StreamTicks(ctx context.Context, instruments []string) (<-chan market.Tick, <-chan error, error) {
	s := &subscriber{
		ctx:         ctx,
		instruments: make(map[string]bool, len(instruments)),
		ticks:       make(chan market.Tick),
		errs:        make(chan error, 1),
		done:        make(chan struct{}),
	}
	for _, in := range instruments {
		s.instruments[in] = true
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, nil, core.WrapError(core.ErrStreamClosed, io.EOF)
	}
	e.subs = append(e.subs, s)
	e.mu.Unlock()

	out := make(chan market.Tick)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				e.unsubscribe(s)
				return
			case <-s.done:
				s.errs <- core.WrapError(core.ErrStreamClosed, io.EOF)
				return
			case t := <-s.ticks:
				select {
				case out <- t:
				case <-ctx.Done():
					e.unsubscribe(s)
					return
				}
			}
		}
	}()
	return out, s.errs, nil
}

func (e *Engine) unsubscribe(s *subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, have := range e.subs {
		if have == s {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

// Close ends every stream, as when a replay runs out of data.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	for _, s := range e.subs {
		close(s.done)
	}
	e.subs = nil
	return nil
}
