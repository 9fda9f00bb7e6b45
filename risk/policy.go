package risk

import (
	"fmt"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/shopspring/decimal"
)

// Policy holds hard account limits. Zero fields are not enforced.
type Policy struct {
	MaxRiskPct    float64 `yaml:"max_risk_pct" mapstructure:"max_risk_pct"`       // 0.02
	MinRR         float64 `yaml:"min_rr" mapstructure:"min_rr"`                   // 1.5
	MaxOpenTrades int     `yaml:"max_open_trades" mapstructure:"max_open_trades"` // 3
	MaxMarginPct  float64 `yaml:"max_margin_pct" mapstructure:"max_margin_pct"`   // 0.20
}

type Intent struct {
	Instrument     string
	Units          int64
	Entry          decimal.Decimal
	Stop           decimal.Decimal
	TakeProfit     decimal.Decimal
	QuoteToAccount decimal.Decimal
}

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    decimal.Decimal
	PlannedRiskPct float64
	PlannedRR      float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

func (d Decision) Error() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("risk: %s: %s", d.Violations[0].Code, d.Violations[0].Msg)
}

// PlannedRisk is the account-currency loss if the stop is hit.
func PlannedRisk(units int64, entry, stop, quoteToAccount decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(units).Abs().Mul(entry.Sub(stop).Abs()).Mul(quoteToAccount)
}

// RR is reward over risk, 0 when the stop is at entry.
func RR(entry, stop, takeProfit decimal.Decimal) float64 {
	risk := entry.Sub(stop).Abs()
	if risk.IsZero() {
		return 0
	}
	return takeProfit.Sub(entry).Abs().Div(risk).InexactFloat64()
}

// Evaluate checks a sized trade against p and the current account.
func Evaluate(p Policy, in Intent, acct broker.Account) Decision {
	d := Decision{Allowed: true}

	if in.Entry.IsZero() || in.Stop.IsZero() {
		d.add("NO_STOP_OR_ENTRY", "entry/stop must be set")
		return d
	}
	if in.Units == 0 {
		d.add("NO_UNITS", "units must be non-zero")
		return d
	}

	equity := acct.NAV
	if equity.IsZero() {
		equity = acct.Balance
	}

	d.PlannedRisk = PlannedRisk(in.Units, in.Entry, in.Stop, in.QuoteToAccount)
	d.PlannedRR = RR(in.Entry, in.Stop, in.TakeProfit)
	if equity.IsPositive() {
		d.PlannedRiskPct = d.PlannedRisk.Div(equity).InexactFloat64()
	}

	if !equity.IsPositive() {
		d.add("NO_EQUITY", "account equity must be positive")
	}
	if p.MaxRiskPct > 0 && d.PlannedRiskPct > p.MaxRiskPct {
		d.add("RISK_TOO_HIGH",
			fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%", 100*d.PlannedRiskPct, 100*p.MaxRiskPct))
	}
	if p.MinRR > 0 && d.PlannedRR < p.MinRR {
		d.add("RR_TOO_LOW", fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
	}
	if p.MaxOpenTrades > 0 && acct.OpenTrades >= p.MaxOpenTrades {
		d.add("TOO_MANY_OPEN_TRADES",
			fmt.Sprintf("open trades %d >= max %d", acct.OpenTrades, p.MaxOpenTrades))
	}
	if p.MaxMarginPct > 0 && equity.IsPositive() {
		used := acct.MarginUsed.Div(equity).InexactFloat64()
		if used > p.MaxMarginPct {
			d.add("MARGIN_TOO_HIGH",
				fmt.Sprintf("margin used %.2f%% exceeds max %.2f%%", 100*used, 100*p.MaxMarginPct))
		}
	}
	return d
}
