package oanda

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type priceDetails struct {
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce,omitempty"`
}

type clientExtensions struct {
	ID  string `json:"id,omitempty"`
	Tag string `json:"tag,omitempty"`
}

type marketOrder struct {
	Type             string            `json:"type"`
	Instrument       string            `json:"instrument"`
	Units            string            `json:"units"`
	TimeInForce      string            `json:"timeInForce"`
	PositionFill     string            `json:"positionFill"`
	StopLossOnFill   *priceDetails     `json:"stopLossOnFill,omitempty"`
	TakeProfitOnFill *priceDetails     `json:"takeProfitOnFill,omitempty"`
	ClientExtensions *clientExtensions `json:"clientExtensions,omitempty"`
}

type orderResponse struct {
	OrderCreateTransaction *struct {
		ID string `json:"id"`
	} `json:"orderCreateTransaction"`
	OrderFillTransaction *struct {
		ID          string          `json:"id"`
		OrderID     string          `json:"orderID"`
		Instrument  string          `json:"instrument"`
		Units       decimal.Decimal `json:"units"`
		Price       decimal.Decimal `json:"price"`
		Time        string          `json:"time"`
		TradeOpened *struct {
			TradeID string `json:"tradeID"`
		} `json:"tradeOpened"`
	} `json:"orderFillTransaction"`
	OrderCancelTransaction *struct {
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction"`
}

// SubmitOrder places a fill-or-kill market order with the stop and target
// attached on fill.
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderFill, error) {
	if req.Instrument == "" || req.Units == 0 {
		return broker.OrderFill{}, core.WrapError(core.ErrOrderFailed, errors.New("instrument and non-zero units required"))
	}

	o := marketOrder{
		Type:             "MARKET",
		Instrument:       req.Instrument,
		Units:            strconv.FormatInt(req.Units, 10),
		TimeInForce:      "FOK",
		PositionFill:     "DEFAULT",
		ClientExtensions: &clientExtensions{ID: uuid.NewString(), Tag: req.ClientTag},
	}
	if req.StopLoss != nil {
		o.StopLossOnFill = &priceDetails{Price: req.StopLoss.String(), TimeInForce: "GTC"}
	}
	if req.TakeProfit != nil {
		o.TakeProfitOnFill = &priceDetails{Price: req.TakeProfit.String(), TimeInForce: "GTC"}
	}

	var resp orderResponse
	err := c.do(ctx, http.MethodPost, c.accountPath("/orders"), url.Values{}, map[string]any{"order": o}, &resp)
	if err != nil {
		var herr *httpError
		if errors.As(err, &herr) && herr.Status < 500 {
			return broker.OrderFill{}, core.WrapError(core.ErrOrderFailed, herr)
		}
		return broker.OrderFill{}, err
	}

	fill := resp.OrderFillTransaction
	if fill == nil {
		reason := "no fill"
		if resp.OrderCancelTransaction != nil {
			reason = resp.OrderCancelTransaction.Reason
		}
		return broker.OrderFill{}, core.WrapError(core.ErrOrderFailed,
			fmt.Errorf("%s %d cancelled: %s", req.Instrument, req.Units, reason))
	}

	out := broker.OrderFill{
		OrderID:    fill.OrderID,
		Instrument: fill.Instrument,
		Units:      fill.Units.IntPart(),
		Price:      fill.Price,
	}
	if fill.TradeOpened != nil {
		out.TradeID = fill.TradeOpened.TradeID
	}
	if fill.Time != "" {
		if out.Time, err = parseTime(fill.Time); err != nil {
			c.log().Warn("unreadable fill time", zap.String("trade_id", out.TradeID), zap.Error(err))
		}
	}
	c.log().Info("order filled",
		zap.String("instrument", out.Instrument),
		zap.Int64("units", out.Units),
		zap.Stringer("price", out.Price),
		zap.String("trade_id", out.TradeID))
	return out, nil
}

// UpdateStopLoss replaces the stop-loss order attached to a trade.
func (c *Client) UpdateStopLoss(ctx context.Context, tradeID string, level decimal.Decimal) error {
	body := map[string]any{
		"stopLoss": priceDetails{Price: level.String(), TimeInForce: "GTC"},
	}
	return c.do(ctx, http.MethodPut, c.accountPath("/trades/%s/orders", url.PathEscape(tradeID)), url.Values{}, body, nil)
}
