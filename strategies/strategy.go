// Package strategies turns candle sequences into per-bar trade signals.
package strategies

import (
	"sort"

	"github.com/rustyeddy/fxsignal/market"
)

// Strategy evaluates one rule family over a full candle sequence.
// Evaluate returns exactly one Verdict per candle and keeps no state
// between calls.
type Strategy interface {
	Kind() Kind
	Warmup() int
	Evaluate(candles []market.Candle) []Verdict
}

type factory func(p Params) Strategy

var registry = map[Kind]factory{
	KindBBands:    func(p Params) Strategy { return bbands{p} },
	KindRSI:       func(p Params) Strategy { return rsiCross{p} },
	KindMACD:      func(p Params) Strategy { return macdFlip{p} },
	KindKeltner:   func(p Params) Strategy { return keltner{p} },
	KindStochRSI:  func(p Params) Strategy { return stochRSI{p} },
	KindEngulfing: func(p Params) Strategy { return engulfing{p} },
	KindSwing:     func(p Params) Strategy { return swing{p} },
}

// New applies defaults, validates and returns the strategy for p.Kind.
func New(p Params) (Strategy, Params, error) {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, p, err
	}
	return registry[p.Kind](p), p, nil
}

// Kinds lists the registered strategy kinds.
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func kindNames() []string {
	ks := Kinds()
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = string(k)
	}
	return out
}

// Generate runs the strategy selected by p over candles and returns one
// IndicatorResult per candle. Bar 0 and warm-up bars never signal.
// Parameter errors are returned before any computation.
func Generate(candles []market.Candle, p Params) ([]IndicatorResult, error) {
	s, p, err := New(p)
	if err != nil {
		return nil, err
	}

	out := make([]IndicatorResult, len(candles))
	if len(candles) == 0 {
		return out, nil
	}

	f := newFilter(p, candles[0].Instrument)
	verdicts := s.Evaluate(candles)
	warm := s.Warmup()

	for i, c := range candles {
		out[i] = IndicatorResult{Time: c.Time}
		if i == 0 || i < warm {
			continue
		}
		out[i] = f.decide(c, verdicts[i])
	}
	return out, nil
}

func crossedAbove(prevX, x, prevLevel, level float64) bool {
	return prevX <= prevLevel && x > level
}

func crossedBelow(prevX, x, prevLevel, level float64) bool {
	return prevX >= prevLevel && x < level
}
