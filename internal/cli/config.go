package cli

import (
	"fmt"
	"os"

	"github.com/rustyeddy/fxsignal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage fxsignal configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  fxsignal config init -o fxsignal.yaml
  fxsignal config validate -f fxsignal.yaml --broker`,
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", output)
			}
			if err := config.Default().Save(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created default configuration: %s\n", output)
			fmt.Fprintln(out, "Set OANDA_TOKEN and OANDA_ACCOUNT_ID, then run:")
			fmt.Fprintf(out, "  fxsignal live -c %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "fxsignal.yaml", "Output config file path")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var (
		path        string
		checkBroker bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			if checkBroker {
				if err := cfg.ValidateBroker(); err != nil {
					return fmt.Errorf("validation failed: %w", err)
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration valid: %s\n", path)
			fmt.Fprintf(out, "  Broker:   %s (account %q)\n", cfg.Broker.Env, cfg.Broker.AccountID)
			fmt.Fprintf(out, "  Live:     %v %s %s (risk %.2f%%, trailing %t)\n",
				cfg.Live.Instruments, cfg.Live.Granularity, cfg.Live.Strategy, cfg.Live.RiskPct*100, cfg.Live.Trailing)
			fmt.Fprintf(out, "  Backtest: %v %s %v\n", cfg.Backtest.Instruments, cfg.Backtest.Granularity, cfg.Backtest.Strategies)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "Path to config file (required)")
	cmd.Flags().BoolVar(&checkBroker, "broker", false, "Also require OANDA credentials")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
