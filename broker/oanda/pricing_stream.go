package oanda

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type pricingStreamMsg struct {
	Type       string `json:"type"`
	Time       string `json:"time"`
	Instrument string `json:"instrument"`

	Bids []struct {
		Price string `json:"price"`
	} `json:"bids"`

	Asks []struct {
		Price string `json:"price"`
	} `json:"asks"`
}

func (m pricingStreamMsg) tick() (market.Tick, bool, error) {
	// HEARTBEAT messages exist; ignore them
	if strings.ToUpper(m.Type) != "PRICE" {
		return market.Tick{}, false, nil
	}
	if m.Instrument == "" || len(m.Bids) == 0 || len(m.Asks) == 0 {
		return market.Tick{}, false, nil
	}
	t, err := parseTime(m.Time)
	if err != nil {
		return market.Tick{}, false, err
	}
	bid, err := decimal.NewFromString(m.Bids[0].Price)
	if err != nil {
		return market.Tick{}, false, fmt.Errorf("bad bid %q: %w", m.Bids[0].Price, err)
	}
	ask, err := decimal.NewFromString(m.Asks[0].Price)
	if err != nil {
		return market.Tick{}, false, fmt.Errorf("bad ask %q: %w", m.Asks[0].Price, err)
	}
	return market.Tick{Instrument: m.Instrument, Time: t, Bid: bid, Ask: ask}, true, nil
}

// StreamTicks connects to the account pricing stream. Connection errors
// are returned directly. After that, the tick channel closes when ctx ends
// or the server hangs up; the latter also sends core.ErrStreamClosed.
func (c *Client) StreamTicks(ctx context.Context, instruments []string) (<-chan market.Tick, <-chan error, error) {
	if err := c.check(); err != nil {
		return nil, nil, err
	}
	if c.AccountID == "" {
		return nil, nil, fmt.Errorf("oanda: missing AccountID")
	}
	if len(instruments) == 0 {
		return nil, nil, fmt.Errorf("oanda: missing Instruments")
	}

	base := c.StreamURL
	if base == "" {
		base = c.BaseURL
	}
	q := url.Values{}
	q.Set("instruments", strings.Join(instruments, ","))
	req, err := c.newRequest(ctx, base, http.MethodGet, c.accountPath("/pricing/stream"), q, nil)
	if err != nil {
		return nil, nil, err
	}

	// The REST client's timeout would cut the stream.
	hc := &http.Client{Transport: c.httpClient().Transport}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, nil, core.WrapError(core.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, nil, core.WrapError(core.ErrTransport, &httpError{
			Method: http.MethodGet, Path: req.URL.Path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b)),
		})
	}

	ticks := make(chan market.Tick, 64)
	errs := make(chan error, 1)
	go c.readStream(ctx, resp.Body, ticks, errs)
	return ticks, errs, nil
}

func (c *Client) readStream(ctx context.Context, body io.ReadCloser, ticks chan<- market.Tick, errs chan<- error) {
	defer close(ticks)
	defer body.Close()

	log := c.log()
	sc := bufio.NewScanner(body)
	// OANDA stream messages can be long; bump max token
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var msg pricingStreamMsg
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			log.Warn("oanda: bad stream json", zap.Error(err), zap.String("line", trimForErr(line)))
			continue
		}
		tick, ok, err := msg.tick()
		if err != nil {
			log.Warn("oanda: bad price message", zap.Error(err), zap.String("line", trimForErr(line)))
			continue
		}
		if !ok {
			continue
		}

		select {
		case ticks <- tick:
		case <-ctx.Done():
			return
		}
	}

	// if ctx was cancelled, the stream ending is expected
	if ctx.Err() != nil {
		return
	}
	cause := sc.Err()
	if cause == nil {
		cause = io.EOF
	}
	errs <- core.WrapError(core.ErrStreamClosed, cause)
}
