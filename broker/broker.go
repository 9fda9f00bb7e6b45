// Package broker defines the operations the trading core needs from a
// broker. Implementations live in broker/oanda and broker/sim.
package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
)

type Broker interface {
	CandleSource

	// FetchLastCandleTime returns the open time of the most recent
	// complete candle.
	FetchLastCandleTime(ctx context.Context, instrument string, g market.Granularity) (time.Time, error)

	// StreamTicks starts an infinite quote stream. The tick channel is
	// closed when the stream ends; a terminal error, if any, is sent on
	// the error channel first.
	StreamTicks(ctx context.Context, instruments []string) (<-chan market.Tick, <-chan error, error)

	GetAccount(ctx context.Context) (Account, error)
	GetOpenTrades(ctx context.Context) ([]Trade, error)
	GetTrade(ctx context.Context, id string) (Trade, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderFill, error)
	UpdateStopLoss(ctx context.Context, tradeID string, level decimal.Decimal) error
}

// CandleSource is the historical-data half of Broker.
type CandleSource interface {
	FetchCandles(ctx context.Context, req CandleRequest) ([]market.Candle, error)
}

// PriceComponent selects which candle sides to request.
type PriceComponent string

const (
	PriceMid    PriceComponent = "M"
	PriceBid    PriceComponent = "B"
	PriceAsk    PriceComponent = "A"
	PriceBidAsk PriceComponent = "BA"
	PriceAll    PriceComponent = "BAM"
)

// CandleRequest asks for either the last Count candles, or the range
// [From, To). A range may span several API pages.
type CandleRequest struct {
	Instrument  string
	Granularity market.Granularity
	Price       PriceComponent
	Count       int
	From        time.Time
	To          time.Time
}

type Account struct {
	ID         string
	Currency   string
	Balance    decimal.Decimal
	NAV        decimal.Decimal
	MarginUsed decimal.Decimal
	OpenTrades int
}

type TradeState string

const (
	TradeOpen   TradeState = "OPEN"
	TradeClosed TradeState = "CLOSED"
)

type Trade struct {
	ID           string
	Instrument   string
	Units        decimal.Decimal // negative for shorts
	Price        decimal.Decimal
	OpenTime     time.Time
	State        TradeState
	StopLoss     decimal.Decimal
	TakeProfit   decimal.Decimal
	UnrealizedPL decimal.Decimal
	RealizedPL   decimal.Decimal
}

func (t Trade) IsOpen() bool { return t.State == TradeOpen }

// Long reports whether the trade is a buy.
func (t Trade) Long() bool { return t.Units.IsPositive() }

// OrderRequest is a market order. Units are signed: positive buys,
// negative sells.
type OrderRequest struct {
	Instrument string
	Units      int64
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	ClientTag  string
}

type OrderFill struct {
	OrderID    string
	TradeID    string
	Instrument string
	Units      int64
	Price      decimal.Decimal
	Time       time.Time
}
