package journal

import (
	"io"
	"text/template"
	"time"
)

var orgFuncs = template.FuncMap{
	"pct": func(x float64) float64 { return x * 100.0 },
	"day": func(t time.Time) string {
		if t.IsZero() {
			return "(none)"
		}
		return t.Format("2006-01-02")
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			t = time.Now()
		}
		return t.Format("2006-01-02 Mon 15:04")
	},
}

var orgTemplate = template.Must(template.New("run").Funcs(orgFuncs).Parse(`* BACKTEST: {{.Run.Strategy}} {{.Run.Instrument}} {{.Run.Granularity}}
:PROPERTIES:
:RUN_ID:      {{.Run.RunID}}
:INSTRUMENT:  {{.Run.Instrument}}
:GRANULARITY: {{.Run.Granularity}}
:START_DATE:  {{day .Run.Start}}
:END_DATE:    {{day .Run.End}}
:CANDLES:     {{.Run.Candles}}
:TRADES:      {{.Run.Trades}}
:WINS:        {{.Run.Wins}}
:LOSSES:      {{.Run.Losses}}
:WIN_RATE:    {{printf "%.2f" (pct .Run.WinRate)}}
:BALANCE:     {{printf "%.4f" .Run.Balance}}
:CREATED:     [{{stamp .Run.Created}}]
:END:

** Parameters
#+begin_src json
{{printf "%s" .Run.Params}}
#+end_src

** Performance Summary
| Outcome | Count |
|---------+-------|
| Wins    | {{.Run.Wins}} |
| Losses  | {{.Run.Losses}} |
| Even    | {{.Run.Even}} |
| Unknown | {{.Run.Unknown}} |
| Running | {{.Run.Running}} |
| Total   | {{.Run.Trades}} |

- Win rate:      *{{printf "%.2f" (pct .Run.WinRate)}}%*
- Buy win rate:  *{{printf "%.2f" (pct .Run.BuyWinRate)}}%*
- Sell win rate: *{{printf "%.2f" (pct .Run.SellWinRate)}}%*
{{- if .Trades}}

** Trades
| # | Signal | Entry time | Entry | TP | SL | Outcome | Score |
|---+--------+------------+-------+----+----+---------+-------|
{{- range .Trades}}
| {{.Seq}} | {{.Signal}} | {{.EntryTime.Format "2006-01-02 15:04"}} | {{.EntryPrice}} | {{.TakeProfit}} | {{.StopLoss}} | {{.Outcome}} | {{printf "%.2f" .Score}} |
{{- end}}
{{- end}}
`))

// WriteOrg renders a run as an Org-mode section.
func WriteOrg(w io.Writer, run RunRecord, trades []TradeRecord) error {
	return orgTemplate.Execute(w, struct {
		Run    RunRecord
		Trades []TradeRecord
	}{run, trades})
}
