package strategies

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Signal int8

const (
	None Signal = 0
	Buy  Signal = 1
	Sell Signal = -1
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "None"
	}
}

// Dir is +1 for Buy, -1 for Sell, 0 for None.
func (s Signal) Dir() decimal.Decimal {
	return decimal.NewFromInt(int64(s))
}

func ParseSignal(s string) (Signal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return Buy, nil
	case "sell", "short":
		return Sell, nil
	case "", "none":
		return None, nil
	default:
		return None, fmt.Errorf("unknown signal %q", s)
	}
}

// IndicatorResult is the per-candle verdict of a strategy. Gain and Loss
// are distances in price units; TakeProfit and StopLoss are levels.
type IndicatorResult struct {
	Time       time.Time
	Signal     Signal
	Gain       decimal.Decimal
	Loss       decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
}

// Verdict is what a rule decides for one bar before filtering.
type Verdict struct {
	Signal Signal
	Gain   float64
}
