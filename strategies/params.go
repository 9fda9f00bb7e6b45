package strategies

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rustyeddy/fxsignal/internal/core"
)

type Kind string

const (
	KindBBands    Kind = "bbands"
	KindRSI       Kind = "rsi"
	KindMACD      Kind = "macd"
	KindKeltner   Kind = "keltner"
	KindStochRSI  Kind = "stochrsi"
	KindEngulfing Kind = "engulfing"
	KindSwing     Kind = "swing"
)

// Params selects a strategy kind and carries every tunable. Zero values are
// replaced by per-kind defaults in WithDefaults.
type Params struct {
	Kind    Kind  `json:"kind" yaml:"kind" mapstructure:"kind"`
	Windows []int `json:"windows,omitempty" yaml:"windows,omitempty" mapstructure:"windows"`

	StdDev     float64 `json:"std_dev,omitempty" yaml:"std_dev,omitempty" mapstructure:"std_dev"`
	RiskReward float64 `json:"risk_reward" yaml:"risk_reward" mapstructure:"risk_reward"`
	MaxSpread  float64 `json:"max_spread,omitempty" yaml:"max_spread,omitempty" mapstructure:"max_spread"`
	MinGain    float64 `json:"min_gain,omitempty" yaml:"min_gain,omitempty" mapstructure:"min_gain"`
	Overbought float64 `json:"overbought,omitempty" yaml:"overbought,omitempty" mapstructure:"overbought"`
	Oversold   float64 `json:"oversold,omitempty" yaml:"oversold,omitempty" mapstructure:"oversold"`
	ATRWindow  int     `json:"atr_window,omitempty" yaml:"atr_window,omitempty" mapstructure:"atr_window"`
	ATRMult    float64 `json:"atr_mult,omitempty" yaml:"atr_mult,omitempty" mapstructure:"atr_mult"`

	// Precision rounds TP/SL; 0 means the instrument's display precision.
	Precision int32 `json:"precision,omitempty" yaml:"precision,omitempty" mapstructure:"precision"`

	// Backtest only
	Trailing     bool    `json:"trailing,omitempty" yaml:"trailing,omitempty" mapstructure:"trailing"`
	RiskPerTrade float64 `json:"risk_per_trade,omitempty" yaml:"risk_per_trade,omitempty" mapstructure:"risk_per_trade"`
}

var defaultWindows = map[Kind][]int{
	KindBBands:    {20},
	KindRSI:       {14},
	KindMACD:      {12, 26, 9},
	KindKeltner:   {20, 10},
	KindStochRSI:  {14, 14, 3, 3},
	KindEngulfing: {3},
	KindSwing:     {3},
}

// WithDefaults returns a copy with zero fields filled for p.Kind.
func (p Params) WithDefaults() Params {
	p.Kind = Kind(strings.ToLower(strings.TrimSpace(string(p.Kind))))
	if len(p.Windows) == 0 {
		p.Windows = append([]int(nil), defaultWindows[p.Kind]...)
	}
	if p.StdDev == 0 {
		p.StdDev = 2
	}
	if p.RiskReward == 0 {
		p.RiskReward = 2
	}
	if p.ATRWindow == 0 {
		p.ATRWindow = 14
	}
	if p.ATRMult == 0 {
		p.ATRMult = 2
	}
	if p.RiskPerTrade == 0 {
		p.RiskPerTrade = 1
	}
	if p.Overbought == 0 && p.Oversold == 0 {
		if p.Kind == KindStochRSI {
			p.Overbought, p.Oversold = 80, 20
		} else {
			p.Overbought, p.Oversold = 70, 30
		}
	}
	return p
}

// Validate checks p after defaults have been applied.
func (p Params) Validate() error {
	want, ok := defaultWindows[p.Kind]
	if !ok {
		return invalid("unknown strategy kind %q (supported: %s)", p.Kind, strings.Join(kindNames(), ", "))
	}
	if len(p.Windows) != len(want) {
		return invalid("%s needs %d windows, got %d", p.Kind, len(want), len(p.Windows))
	}
	for _, w := range p.Windows {
		if w < 1 {
			return invalid("%s windows must be positive, got %v", p.Kind, p.Windows)
		}
	}
	if p.Kind == KindMACD && p.Windows[0] >= p.Windows[1] {
		return invalid("macd fast window %d must be below slow window %d", p.Windows[0], p.Windows[1])
	}
	if p.RiskReward <= 0 {
		return invalid("risk_reward must be positive")
	}
	if p.StdDev < 0 || p.MaxSpread < 0 || p.MinGain < 0 || p.ATRMult < 0 {
		return invalid("std_dev, max_spread, min_gain and atr_mult must not be negative")
	}
	if p.ATRWindow < 1 {
		return invalid("atr_window must be positive")
	}
	if p.Oversold >= p.Overbought {
		return invalid("oversold %.1f must be below overbought %.1f", p.Oversold, p.Overbought)
	}
	if p.Precision < 0 {
		return invalid("precision must not be negative")
	}
	return nil
}

func (p Params) String() string {
	ws := make([]string, len(p.Windows))
	for i, w := range p.Windows {
		ws[i] = strconv.Itoa(w)
	}
	return fmt.Sprintf("%s(%s)", p.Kind, strings.Join(ws, ","))
}

// ParseWindows parses "12,26,9". Empty input yields nil.
func ParseWindows(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("bad window list %q: %w", s, err))
		}
		if n < 1 {
			return nil, invalid("bad window list %q: windows must be positive", s)
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseSpec parses "kind" or "kind:w1,w2,..." into Params with defaults
// applied on top of base.
func ParseSpec(spec string, base Params) (Params, error) {
	kind, windows, _ := strings.Cut(strings.TrimSpace(spec), ":")
	p := base
	p.Kind = Kind(kind)
	p.Windows = nil

	ws, err := ParseWindows(windows)
	if err != nil {
		return Params{}, err
	}
	p.Windows = ws

	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func invalid(format string, args ...any) error {
	return core.WrapError(core.ErrInvalidParams, fmt.Errorf(format, args...))
}
