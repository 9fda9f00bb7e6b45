package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newFetchCmd(o *options) *cobra.Command {
	var (
		instrument   string
		granularity  string
		price        string
		from, to     string
		count        int
		out          string
		completeOnly bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download OANDA candles to CSV",
		Long: `Download candles for one instrument and write them in the candle CSV
layout that backtest --csv and replay --candles read.

Ranges longer than one API page are fetched page by page.

Examples:
  fxsignal fetch -i EUR_USD -g H1 --from 2024-01-01 --to 2024-07-01 -o eurusd_h1.csv
  fxsignal fetch -i USD_JPY -g M15 --count 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.setup(); err != nil {
				return err
			}
			defer o.sync()

			g, err := market.ParseGranularity(granularity)
			if err != nil {
				return err
			}
			if _, err := market.Instrument(instrument); err != nil {
				return err
			}
			req := broker.CandleRequest{
				Instrument:  instrument,
				Granularity: g,
				Price:       broker.PriceComponent(strings.ToUpper(price)),
				Count:       count,
			}
			if req.From, err = parseTime("from", from); err != nil {
				return err
			}
			if req.To, err = parseTime("to", to); err != nil {
				return err
			}
			if !req.From.IsZero() && !req.To.IsZero() && !req.To.After(req.From) {
				return fmt.Errorf("--to must be after --from")
			}
			if !req.From.IsZero() && count == 5000 && !cmd.Flags().Changed("count") {
				req.Count = 0
			}

			client, err := o.oandaClient()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			candles, err := client.FetchCandles(ctx, req)
			if err != nil {
				return err
			}
			if completeOnly {
				candles = market.CompleteOnly(candles)
			}

			w, closeOut, err := openOut(out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			n, err := market.WriteCandlesCSV(w, candles)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			o.log.Info("candles written",
				zap.String("instrument", instrument),
				zap.Stringer("granularity", g),
				zap.Int("rows", n),
				zap.String("out", out))
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&instrument, "instrument", "i", "EUR_USD", "Instrument, e.g. EUR_USD")
	fl.StringVarP(&granularity, "granularity", "g", "H1", "Candle granularity, e.g. M15, H1, D")
	fl.StringVar(&price, "price", string(broker.PriceAll), "Price components: M, BA or BAM")
	fl.StringVar(&from, "from", "", "Start time, RFC3339 or YYYY-MM-DD")
	fl.StringVar(&to, "to", "", "End time, exclusive")
	fl.IntVar(&count, "count", 5000, "Candles to fetch; with --from, a cap on the total")
	fl.StringVarP(&out, "out", "o", "-", "Output CSV path, - for stdout")
	fl.BoolVar(&completeOnly, "complete-only", true, "Drop the still-forming last candle")
	return cmd
}
