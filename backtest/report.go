package backtest

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// PrintReport writes a human-readable summary of one run.
func PrintReport(w io.Writer, r Report) {
	s := r.Summary
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Strategy:      %s\n", r.Params)
	fmt.Fprintf(w, "Instrument:    %s\n", r.Instrument)
	fmt.Fprintf(w, "Granularity:   %s\n", r.Granularity)
	fmt.Fprintf(w, "Candles:       %d\n", len(r.Candles))
	if !r.Start.IsZero() {
		fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
		fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", s.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", s.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", s.Losses)
	fmt.Fprintf(w, "Even:          %d\n", s.Even)
	fmt.Fprintf(w, "Unknown:       %d\n", s.Unknown)
	if s.Running > 0 {
		fmt.Fprintf(w, "Still open:    %d\n", s.Running)
	}
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", s.WinRate*100)
	fmt.Fprintf(w, "Buy Win Rate:  %.2f%% (%d trades)\n", s.BuyWinRate*100, s.BuyTrades)
	fmt.Fprintf(w, "Sell Win Rate: %.2f%% (%d trades)\n", s.SellWinRate*100, s.SellTrades)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Risk-Adjusted")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Risk/Trade:    %.2f\n", r.Params.RiskPerTrade)
	fmt.Fprintf(w, "Risk/Reward:   %.2f\n", r.Params.RiskReward)
	fmt.Fprintf(w, "Balance:       %.2f\n", s.Balance)
	fmt.Fprintln(w)
}

// PrintTable writes one row per batch result, failed jobs included.
func PrintTable(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tGRAN\tSTRATEGY\tTRADES\tWINS\tLOSSES\tEVEN\tUNKNOWN\tWIN%\tBUY%\tSELL%\tBALANCE")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\terror: %v\n", r.Job.Instrument, r.Job.Granularity, r.Job.Params, r.Err)
			continue
		}
		s := r.Report.Summary
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.1f\t%.1f\t%.1f\t%.2f\n",
			r.Job.Instrument, r.Job.Granularity, r.Report.Params,
			s.Trades, s.Wins, s.Losses, s.Even, s.Unknown,
			s.WinRate*100, s.BuyWinRate*100, s.SellWinRate*100, s.Balance)
	}
	return tw.Flush()
}
