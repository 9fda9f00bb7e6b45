package oanda

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

func (d *candleData) parse() (market.OHLC, error) {
	if d == nil {
		return market.OHLC{}, nil
	}
	var out market.OHLC
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&out.O, d.O}, {&out.H, d.H}, {&out.L, d.L}, {&out.C, d.C}} {
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			return market.OHLC{}, fmt.Errorf("bad price %q: %w", f.src, err)
		}
		*f.dst = v
	}
	return out, nil
}

type apiCandle struct {
	Complete bool        `json:"complete"`
	Volume   int         `json:"volume"`
	Time     string      `json:"time"`
	Mid      *candleData `json:"mid,omitempty"`
	Bid      *candleData `json:"bid,omitempty"`
	Ask      *candleData `json:"ask,omitempty"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

func (ac apiCandle) candle(instrument string, g market.Granularity) (market.Candle, error) {
	t, err := parseTime(ac.Time)
	if err != nil {
		return market.Candle{}, err
	}
	c := market.Candle{
		Instrument:  instrument,
		Granularity: g,
		Time:        t,
		Volume:      ac.Volume,
		Complete:    ac.Complete,
	}
	if c.Bid, err = ac.Bid.parse(); err != nil {
		return c, err
	}
	if c.Ask, err = ac.Ask.parse(); err != nil {
		return c, err
	}
	if c.Mid, err = ac.Mid.parse(); err != nil {
		return c, err
	}
	// Mid-only responses trade at mid.
	if c.Bid.IsZero() && c.Ask.IsZero() {
		c.Bid, c.Ask = c.Mid, c.Mid
	}
	return c.WithMid(), nil
}

func (c *Client) getCandles(ctx context.Context, req broker.CandleRequest, q url.Values) ([]market.Candle, error) {
	price := req.Price
	if price == "" {
		price = broker.PriceAll
	}
	q.Set("granularity", string(req.Granularity))
	q.Set("price", string(price))
	// D, W and M candles open at UTC midnight, weeks on Monday, matching
	// market.Granularity.Truncate.
	q.Set("alignmentTimezone", "UTC")
	q.Set("dailyAlignment", "0")
	q.Set("weeklyAlignment", "Monday")

	var cr candlesResponse
	path := fmt.Sprintf("/v3/instruments/%s/candles", url.PathEscape(req.Instrument))
	if err := c.do(ctx, "GET", path, q, nil, &cr); err != nil {
		return nil, err
	}

	out := make([]market.Candle, 0, len(cr.Candles))
	for _, ac := range cr.Candles {
		cd, err := ac.candle(req.Instrument, req.Granularity)
		if err != nil {
			return nil, fmt.Errorf("oanda candles %s: %w", req.Instrument, err)
		}
		out = append(out, cd)
	}
	return out, nil
}

// FetchCandles returns the last Count candles, or every candle in
// [From, To). Range requests page forward from the last timestamp seen
// until To is passed or a page makes no progress.
func (c *Client) FetchCandles(ctx context.Context, req broker.CandleRequest) ([]market.Candle, error) {
	if req.Instrument == "" {
		return nil, fmt.Errorf("oanda: missing instrument")
	}
	if req.Granularity == "" {
		return nil, fmt.Errorf("oanda: missing granularity")
	}

	if req.From.IsZero() {
		if req.Count <= 0 || req.Count > MaxCandles {
			return nil, core.WrapError(core.ErrInvalidParams,
				fmt.Errorf("count must be 1..%d without a start time, got %d", MaxCandles, req.Count))
		}
		q := url.Values{}
		q.Set("count", strconv.Itoa(req.Count))
		if !req.To.IsZero() {
			q.Set("to", req.To.UTC().Format(time.RFC3339Nano))
		}
		cs, err := c.getCandles(ctx, req, q)
		if err != nil {
			return nil, err
		}
		return market.Dedupe(cs), nil
	}
	return c.pageCandles(ctx, req)
}

func (c *Client) pageCandles(ctx context.Context, req broker.CandleRequest) ([]market.Candle, error) {
	page := c.PageSize
	if page <= 0 || page > MaxCandles {
		page = MaxCandles
	}

	var all []market.Candle
	cursor := req.From
	for pages := 1; ; pages++ {
		q := url.Values{}
		q.Set("from", cursor.UTC().Format(time.RFC3339Nano))
		q.Set("count", strconv.Itoa(page))

		cs, err := c.getCandles(ctx, req, q)
		if err != nil {
			return nil, err
		}
		c.log().Debug("candle page",
			zap.String("instrument", req.Instrument),
			zap.Stringer("granularity", req.Granularity),
			zap.Int("page", pages),
			zap.Int("candles", len(cs)))

		for i, cd := range cs {
			// from is inclusive, so a page repeats the previous page's last candle
			if i == 0 && pages > 1 && cd.Time.Equal(cursor) {
				continue
			}
			if !req.To.IsZero() && !cd.Time.Before(req.To) {
				break
			}
			all = append(all, cd)
		}

		if len(cs) == 0 {
			break
		}
		last := cs[len(cs)-1].Time
		done := len(cs) < page ||
			(pages > 1 && !last.After(cursor)) ||
			(!req.To.IsZero() && !last.Before(req.To)) ||
			(req.Count > 0 && len(all) >= req.Count)
		if done {
			break
		}
		cursor = last
	}

	all = market.Dedupe(all)
	if req.Count > 0 && len(all) > req.Count {
		all = all[:req.Count]
	}
	return all, nil
}

// FetchLastCandleTime returns the open time of the newest complete candle.
func (c *Client) FetchLastCandleTime(ctx context.Context, instrument string, g market.Granularity) (time.Time, error) {
	q := url.Values{}
	q.Set("count", "3")
	cs, err := c.getCandles(ctx, broker.CandleRequest{Instrument: instrument, Granularity: g, Price: broker.PriceMid}, q)
	if err != nil {
		return time.Time{}, err
	}
	for i := len(cs) - 1; i >= 0; i-- {
		if cs[i].Complete {
			return cs[i].Time, nil
		}
	}
	return time.Time{}, core.WrapError(core.ErrNoData, fmt.Errorf("no complete %s candle for %s", g, instrument))
}
