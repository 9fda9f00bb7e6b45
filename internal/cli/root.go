// Package cli wires the fxsignal commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rustyeddy/fxsignal/broker/oanda"
	"github.com/rustyeddy/fxsignal/config"
	"github.com/rustyeddy/fxsignal/internal/logging"
	"github.com/rustyeddy/fxsignal/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options are shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
	dev        bool

	cfg *config.Config
	log *zap.Logger
}

func NewRootCmd(version string) *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "fxsignal",
		Short: "fxsignal: FX signal backtesting and OANDA execution",
		Long: `fxsignal turns candles into trade signals.

It provides tools for:
  - Backtesting strategies over OANDA or CSV candles
  - Downloading candles from OANDA to CSV
  - Running the live controller against an OANDA account
  - Replaying tick files through a paper broker`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	cmd.PersistentFlags().BoolVar(&o.dev, "dev", false, "Human-readable console logs")

	cmd.AddCommand(
		newBacktestCmd(o),
		newFetchCmd(o),
		newLiveCmd(o),
		newReplayCmd(o),
		newConfigCmd(),
		newVersionCmd(version),
	)
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(version string) int {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// setup loads the config and builds the logger. Flags win over the file.
func (o *options) setup() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.dev {
		cfg.Log.Development = true
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	o.cfg, o.log = cfg, log
	return nil
}

func (o *options) sync() {
	if o.log != nil {
		_ = o.log.Sync()
	}
}

// startMetrics serves the registry when metrics are enabled. The server
// stops with ctx.
func (o *options) startMetrics(ctx context.Context) *metrics.Registry {
	if !o.cfg.Metrics.Enabled {
		return nil
	}
	reg := metrics.NewRegistry()
	go func() {
		o.log.Info("metrics listening", zap.String("addr", o.cfg.Metrics.Listen))
		if err := reg.Serve(ctx, o.cfg.Metrics.Listen); err != nil {
			o.log.Error("metrics server", zap.Error(err))
		}
	}()
	return reg
}

func (o *options) oandaClient() (*oanda.Client, error) {
	if err := o.cfg.ValidateBroker(); err != nil {
		return nil, err
	}
	c, err := oanda.New(o.cfg.Broker.Env, o.cfg.Broker.Token, o.cfg.Broker.AccountID, o.log)
	if err != nil {
		return nil, err
	}
	if o.cfg.Broker.Timeout > 0 {
		c.HTTP.Timeout = o.cfg.Broker.Timeout
	}
	if o.cfg.Broker.PageSize > 0 {
		c.PageSize = o.cfg.Broker.PageSize
	}
	return c, nil
}

// parseTime accepts RFC3339 or a plain date. Empty means zero.
func parseTime(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad --%s %q: want RFC3339 or YYYY-MM-DD", flag, s)
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fxsignal version %s\n", version)
		},
	}
}

func openOut(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
