package oanda

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/shopspring/decimal"
)

type apiAccount struct {
	ID             string          `json:"id"`
	Currency       string          `json:"currency"`
	Balance        decimal.Decimal `json:"balance"`
	NAV            decimal.Decimal `json:"NAV"`
	MarginUsed     decimal.Decimal `json:"marginUsed"`
	OpenTradeCount int             `json:"openTradeCount"`
}

type apiPriceLevel struct {
	Price decimal.Decimal `json:"price"`
}

type apiTrade struct {
	ID              string          `json:"id"`
	Instrument      string          `json:"instrument"`
	Price           decimal.Decimal `json:"price"`
	OpenTime        string          `json:"openTime"`
	State           string          `json:"state"`
	CurrentUnits    decimal.Decimal `json:"currentUnits"`
	InitialUnits    decimal.Decimal `json:"initialUnits"`
	UnrealizedPL    decimal.Decimal `json:"unrealizedPL"`
	RealizedPL      decimal.Decimal `json:"realizedPL"`
	StopLossOrder   *apiPriceLevel  `json:"stopLossOrder,omitempty"`
	TakeProfitOrder *apiPriceLevel  `json:"takeProfitOrder,omitempty"`
}

func (at apiTrade) trade() (broker.Trade, error) {
	t := broker.Trade{
		ID:           at.ID,
		Instrument:   at.Instrument,
		Units:        at.CurrentUnits,
		Price:        at.Price,
		State:        broker.TradeState(at.State),
		UnrealizedPL: at.UnrealizedPL,
		RealizedPL:   at.RealizedPL,
	}
	// closed trades report zero current units
	if t.Units.IsZero() {
		t.Units = at.InitialUnits
	}
	if at.OpenTime != "" {
		ot, err := parseTime(at.OpenTime)
		if err != nil {
			return t, err
		}
		t.OpenTime = ot
	}
	if at.StopLossOrder != nil {
		t.StopLoss = at.StopLossOrder.Price
	}
	if at.TakeProfitOrder != nil {
		t.TakeProfit = at.TakeProfitOrder.Price
	}
	return t, nil
}

// GetAccount reads the account summary.
func (c *Client) GetAccount(ctx context.Context) (broker.Account, error) {
	var resp struct {
		Account apiAccount `json:"account"`
	}
	if err := c.do(ctx, "GET", c.accountPath("/summary"), url.Values{}, nil, &resp); err != nil {
		return broker.Account{}, err
	}
	a := resp.Account
	return broker.Account{
		ID:         a.ID,
		Currency:   a.Currency,
		Balance:    a.Balance,
		NAV:        a.NAV,
		MarginUsed: a.MarginUsed,
		OpenTrades: a.OpenTradeCount,
	}, nil
}

func (c *Client) GetOpenTrades(ctx context.Context) ([]broker.Trade, error) {
	var resp struct {
		Trades []apiTrade `json:"trades"`
	}
	if err := c.do(ctx, "GET", c.accountPath("/openTrades"), url.Values{}, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]broker.Trade, 0, len(resp.Trades))
	for _, at := range resp.Trades {
		t, err := at.trade()
		if err != nil {
			return nil, fmt.Errorf("oanda trade %s: %w", at.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) GetTrade(ctx context.Context, id string) (broker.Trade, error) {
	var resp struct {
		Trade apiTrade `json:"trade"`
	}
	if err := c.do(ctx, "GET", c.accountPath("/trades/%s", url.PathEscape(id)), url.Values{}, nil, &resp); err != nil {
		return broker.Trade{}, err
	}
	return resp.Trade.trade()
}
