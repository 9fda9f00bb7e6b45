package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/broker/sim"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReplayCmd(o *options) *cobra.Command {
	var (
		f        = &liveFlags{}
		ticks    string
		history  []string
		balance  float64
		currency string
		from, to string
		pace     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rehearse the live controller on a tick file",
		Long: `Feed a tick CSV (time,instrument,bid,ask) through the in-memory paper
broker and run the live controller against it. Candle CSV files given with
--candles preload history so the strategy has a full window from the
first candle close.

Example:
  fxsignal replay --ticks eurusd_ticks.csv --candles eurusd_h1.csv -g H1 -s bbands`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.setup(); err != nil {
				return err
			}
			defer o.sync()

			if ticks == "" {
				return fmt.Errorf("--ticks is required")
			}
			if balance <= 0 {
				return fmt.Errorf("--balance must be positive")
			}
			cfg, err := f.controllerConfig(o)
			if err != nil {
				return err
			}
			fromT, err := parseTime("from", from)
			if err != nil {
				return err
			}
			toT, err := parseTime("to", to)
			if err != nil {
				return err
			}

			var preload []market.Candle
			if len(history) > 0 {
				byKey, err := loadCandleFiles(history)
				if err != nil {
					return err
				}
				for _, cs := range byKey {
					preload = append(preload, cs...)
				}
			}

			fh, err := os.Open(ticks)
			if err != nil {
				return err
			}
			defer fh.Close()

			grans := sim.DefaultGranularities
			if !slices.Contains(grans, cfg.Granularity) {
				grans = append(slices.Clone(grans), cfg.Granularity)
			}
			engine := sim.NewEngine(
				broker.Account{Currency: currency, Balance: decimal.NewFromFloat(balance)},
				sim.WithLogger(o.log),
				sim.WithGranularities(grans...),
				sim.WithHistory(preload),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			feed := func(ctx context.Context) error {
				defer engine.Close()
				r := market.NewTickCSVReader(fh, fromT, toT)
				n := 0
				for {
					t, ok, err := r.Next()
					if err != nil {
						return err
					}
					if !ok {
						break
					}
					if err := engine.UpdatePrice(ctx, t); err != nil {
						return err
					}
					n++
					if pace > 0 {
						select {
						case <-ctx.Done():
							return nil
						case <-time.After(pace):
						}
					}
					if ctx.Err() != nil {
						return nil
					}
				}
				o.log.Info("replay finished", zap.Int("ticks", n))
				return nil
			}

			if err := runController(ctx, o, cfg, engine, o.startMetrics(ctx), feed); err != nil {
				return err
			}
			return printPaperAccount(cmd.Context(), cmd.OutOrStdout(), engine)
		},
	}

	f.register(cmd)
	fl := cmd.Flags()
	fl.StringVar(&ticks, "ticks", "", "Tick CSV file (required)")
	fl.StringSliceVar(&history, "candles", nil, "Candle CSV files to preload")
	fl.Float64Var(&balance, "balance", 10000, "Opening balance of the paper account")
	fl.StringVar(&currency, "currency", "USD", "Account currency")
	fl.StringVar(&from, "from", "", "Skip ticks before this time")
	fl.StringVar(&to, "to", "", "Stop at this time")
	fl.DurationVar(&pace, "pace", time.Millisecond, "Pause between ticks so evaluations keep up")
	return cmd
}

func printPaperAccount(ctx context.Context, w io.Writer, e *sim.Engine) error {
	acct, err := e.GetAccount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Balance: %s %s  NAV: %s  Open trades: %d\n",
		acct.Balance.StringFixed(2), acct.Currency, acct.NAV.StringFixed(2), acct.OpenTrades)

	trades := e.Trades()
	if len(trades) == 0 {
		fmt.Fprintln(w, "No trades.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tINSTRUMENT\tUNITS\tPRICE\tSTOP\tTARGET\tSTATE\tPL")
	for _, t := range trades {
		pl := t.RealizedPL
		if t.IsOpen() {
			pl = t.UnrealizedPL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Instrument, t.Units, t.Price, t.StopLoss, t.TakeProfit, t.State, pl.StringFixed(2))
	}
	return tw.Flush()
}
