package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/internal/metrics"
	"github.com/rustyeddy/fxsignal/live"
	"github.com/rustyeddy/fxsignal/strategies"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// liveFlags override the live section of the config.
type liveFlags struct {
	instruments []string
	granularity string
	strategy    string
	riskPct     float64
	noTrailing  bool
}

func (f *liveFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringSliceVarP(&f.instruments, "instrument", "i", nil, "Instruments (default from config)")
	fl.StringVarP(&f.granularity, "granularity", "g", "", "Granularity (default from config)")
	fl.StringVarP(&f.strategy, "strategy", "s", "", "Strategy spec, e.g. bbands:20 (default from config)")
	fl.Float64Var(&f.riskPct, "risk", 0, "Fraction of NAV risked per trade (default from config)")
	fl.BoolVar(&f.noTrailing, "no-trailing", false, "Do not trail stops")
}

func (f *liveFlags) controllerConfig(o *options) (live.Config, error) {
	lc := &o.cfg.Live
	if len(f.instruments) > 0 {
		lc.Instruments = f.instruments
	}
	if f.granularity != "" {
		lc.Granularity = f.granularity
	}
	if f.strategy != "" {
		p, err := strategies.ParseSpec(f.strategy, strategies.Params{RiskReward: lc.Strategy.RiskReward})
		if err != nil {
			return live.Config{}, err
		}
		lc.Strategy = p
	}
	if f.riskPct > 0 {
		lc.RiskPct = f.riskPct
	}
	if f.noTrailing {
		lc.Trailing = false
	}
	if err := o.cfg.Validate(); err != nil {
		return live.Config{}, err
	}
	return o.cfg.LiveController()
}

func newLiveCmd(o *options) *cobra.Command {
	f := &liveFlags{}

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Trade signals on an OANDA account",
		Long: `Stream prices from OANDA, evaluate the strategy at every candle close and
place at most one trade per instrument, sized by risk. Stops of open trades
are trailed until they close.

Runs until interrupted or the price stream fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.setup(); err != nil {
				return err
			}
			defer o.sync()

			cfg, err := f.controllerConfig(o)
			if err != nil {
				return err
			}
			client, err := o.oandaClient()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			acct, err := client.GetAccount(ctx)
			if err != nil {
				return err
			}
			o.log.Info("account",
				zap.String("account_id", acct.ID),
				zap.String("currency", acct.Currency),
				zap.Stringer("balance", acct.Balance),
				zap.Stringer("nav", acct.NAV),
				zap.Int("open_trades", acct.OpenTrades))

			return runController(ctx, o, cfg, client, o.startMetrics(ctx), nil)
		},
	}
	f.register(cmd)
	return cmd
}

// runController starts the controller and blocks until ctx ends or the
// stream does. feed, when set, drives the broker and its return ends the
// run.
func runController(ctx context.Context, o *options, cfg live.Config, b broker.Broker, m *metrics.Registry, feed func(ctx context.Context) error) error {
	c, err := live.NewController(cfg, b, live.WithLogger(o.log), live.WithMetrics(m))
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}

	var feedErr error
	if feed != nil {
		feedErr = feed(ctx)
	}

	select {
	case <-ctx.Done():
		o.log.Info("shutting down")
	case <-c.Done():
	}
	err = c.Stop()
	if feed != nil {
		return feedErr
	}
	return err
}
