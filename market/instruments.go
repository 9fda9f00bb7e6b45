package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type InstrumentMeta struct {
	Name             string
	BaseCurrency     string
	QuoteCurrency    string
	PipLocation      int32
	DisplayPrecision int32
	MinimumTradeSize int64
	MarginRate       float64
}

// PipSize is 10^PipLocation, e.g. 0.0001 for EUR_USD.
func (m InstrumentMeta) PipSize() decimal.Decimal {
	return decimal.New(1, m.PipLocation)
}

// Round rounds a price to the instrument's display precision.
func (m InstrumentMeta) Round(p decimal.Decimal) decimal.Decimal {
	return p.Round(m.DisplayPrecision)
}

func major(name string, pip, prec int32) InstrumentMeta {
	parts := strings.SplitN(name, "_", 2)
	return InstrumentMeta{
		Name:             name,
		BaseCurrency:     parts[0],
		QuoteCurrency:    parts[1],
		PipLocation:      pip,
		DisplayPrecision: prec,
		MinimumTradeSize: 1,
		MarginRate:       0.0333,
	}
}

var Instruments = map[string]InstrumentMeta{
	"EUR_USD": major("EUR_USD", -4, 5),
	"GBP_USD": major("GBP_USD", -4, 5),
	"AUD_USD": major("AUD_USD", -4, 5),
	"NZD_USD": major("NZD_USD", -4, 5),
	"USD_CAD": major("USD_CAD", -4, 5),
	"USD_CHF": major("USD_CHF", -4, 5),
	"EUR_GBP": major("EUR_GBP", -4, 5),
	"EUR_CHF": major("EUR_CHF", -4, 5),
	"USD_JPY": major("USD_JPY", -2, 3),
	"EUR_JPY": major("EUR_JPY", -2, 3),
	"GBP_JPY": major("GBP_JPY", -2, 3),
	"AUD_JPY": major("AUD_JPY", -2, 3),
}

// Instrument looks up metadata by OANDA name.
func Instrument(name string) (InstrumentMeta, error) {
	m, ok := Instruments[name]
	if !ok {
		return InstrumentMeta{}, fmt.Errorf("unknown instrument %s", name)
	}
	return m, nil
}
