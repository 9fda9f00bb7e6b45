// Package config loads the fxsignal configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/internal/logging"
	"github.com/rustyeddy/fxsignal/internal/retry"
	"github.com/rustyeddy/fxsignal/live"
	"github.com/rustyeddy/fxsignal/market"
	"github.com/rustyeddy/fxsignal/risk"
	"github.com/rustyeddy/fxsignal/strategies"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// FXSIGNAL_BROKER_ENV.
const EnvPrefix = "FXSIGNAL"

type Config struct {
	Broker   BrokerConfig   `mapstructure:"broker" yaml:"broker"`
	Live     LiveConfig     `mapstructure:"live" yaml:"live"`
	Backtest BacktestConfig `mapstructure:"backtest" yaml:"backtest"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
}

// BrokerConfig selects the OANDA environment and credentials.
type BrokerConfig struct {
	Env       string        `mapstructure:"env" yaml:"env"` // "practice" or "live"
	Token     string        `mapstructure:"token" yaml:"token"`
	AccountID string        `mapstructure:"account_id" yaml:"account_id"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PageSize  int           `mapstructure:"page_size" yaml:"page_size"`
}

type LiveConfig struct {
	Instruments []string          `mapstructure:"instruments" yaml:"instruments"`
	Granularity string            `mapstructure:"granularity" yaml:"granularity"`
	Strategy    strategies.Params `mapstructure:"strategy" yaml:"strategy"`
	Window      int               `mapstructure:"window" yaml:"window"`
	RiskPct     float64           `mapstructure:"risk_pct" yaml:"risk_pct"`
	Policy      risk.Policy       `mapstructure:"policy" yaml:"policy"`

	ConfirmAttempts int           `mapstructure:"confirm_attempts" yaml:"confirm_attempts"`
	ConfirmDelay    time.Duration `mapstructure:"confirm_delay" yaml:"confirm_delay"`

	Trailing       bool                     `mapstructure:"trailing" yaml:"trailing"`
	TrailInterval  time.Duration            `mapstructure:"trail_interval" yaml:"trail_interval"`
	TrailIntervals map[string]time.Duration `mapstructure:"trail_intervals" yaml:"trail_intervals,omitempty"`
	TrailAttempts  int                      `mapstructure:"trail_attempts" yaml:"trail_attempts"`
	TrailDelay     time.Duration            `mapstructure:"trail_delay" yaml:"trail_delay"`

	CallTimeout time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	ClientTag   string        `mapstructure:"client_tag" yaml:"client_tag"`
}

type BacktestConfig struct {
	Instruments []string `mapstructure:"instruments" yaml:"instruments"`
	Granularity string   `mapstructure:"granularity" yaml:"granularity"`
	// Strategies are "kind" or "kind:w1,w2" specs; every one runs on
	// every instrument.
	Strategies []string `mapstructure:"strategies" yaml:"strategies"`
	RiskReward float64  `mapstructure:"risk_reward" yaml:"risk_reward"`
	Trailing   bool     `mapstructure:"trailing" yaml:"trailing"`
	Count      int      `mapstructure:"count" yaml:"count"`
	Workers    int      `mapstructure:"workers" yaml:"workers"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// JournalConfig names optional result exports. Empty paths disable them.
type JournalConfig struct {
	DB     string `mapstructure:"db" yaml:"db,omitempty"`
	CSVDir string `mapstructure:"csv_dir" yaml:"csv_dir,omitempty"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Env:      "practice",
			Timeout:  30 * time.Second,
			PageSize: 5000,
		},
		Live: LiveConfig{
			Instruments:     []string{"EUR_USD"},
			Granularity:     "H1",
			Strategy:        strategies.Params{Kind: strategies.KindBBands, RiskReward: 2},
			Window:          200,
			RiskPct:         0.01,
			ConfirmAttempts: 5,
			ConfirmDelay:    2 * time.Second,
			Trailing:        true,
			TrailInterval:   5 * time.Second,
			TrailAttempts:   3,
			TrailDelay:      time.Second,
			CallTimeout:     10 * time.Second,
			ClientTag:       "fxsignal",
		},
		Backtest: BacktestConfig{
			Instruments: []string{"EUR_USD"},
			Granularity: "H1",
			Strategies:  []string{"bbands"},
			RiskReward:  2,
			Count:       5000,
			Workers:     4,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Listen: ":9464",
		},
	}
}

// Load reads path, applies FXSIGNAL_* overrides and ${VAR} expansion on
// top of Default, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			v.Set(key, os.Getenv(strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.applyFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override
// keys that are absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("broker.env", d.Broker.Env)
	v.SetDefault("broker.token", d.Broker.Token)
	v.SetDefault("broker.account_id", d.Broker.AccountID)
	v.SetDefault("broker.timeout", d.Broker.Timeout)
	v.SetDefault("broker.page_size", d.Broker.PageSize)

	v.SetDefault("live.instruments", d.Live.Instruments)
	v.SetDefault("live.granularity", d.Live.Granularity)
	v.SetDefault("live.strategy.kind", string(d.Live.Strategy.Kind))
	v.SetDefault("live.strategy.risk_reward", d.Live.Strategy.RiskReward)
	v.SetDefault("live.window", d.Live.Window)
	v.SetDefault("live.risk_pct", d.Live.RiskPct)
	v.SetDefault("live.policy.max_risk_pct", d.Live.Policy.MaxRiskPct)
	v.SetDefault("live.policy.min_rr", d.Live.Policy.MinRR)
	v.SetDefault("live.policy.max_open_trades", d.Live.Policy.MaxOpenTrades)
	v.SetDefault("live.policy.max_margin_pct", d.Live.Policy.MaxMarginPct)
	v.SetDefault("live.confirm_attempts", d.Live.ConfirmAttempts)
	v.SetDefault("live.confirm_delay", d.Live.ConfirmDelay)
	v.SetDefault("live.trailing", d.Live.Trailing)
	v.SetDefault("live.trail_interval", d.Live.TrailInterval)
	v.SetDefault("live.trail_attempts", d.Live.TrailAttempts)
	v.SetDefault("live.trail_delay", d.Live.TrailDelay)
	v.SetDefault("live.call_timeout", d.Live.CallTimeout)
	v.SetDefault("live.client_tag", d.Live.ClientTag)

	v.SetDefault("backtest.instruments", d.Backtest.Instruments)
	v.SetDefault("backtest.granularity", d.Backtest.Granularity)
	v.SetDefault("backtest.strategies", d.Backtest.Strategies)
	v.SetDefault("backtest.risk_reward", d.Backtest.RiskReward)
	v.SetDefault("backtest.trailing", d.Backtest.Trailing)
	v.SetDefault("backtest.count", d.Backtest.Count)
	v.SetDefault("backtest.workers", d.Backtest.Workers)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("journal.db", d.Journal.DB)
	v.SetDefault("journal.csv_dir", d.Journal.CSVDir)
}

// applyFallbacks fills credentials from the variables the OANDA tooling
// uses.
func (c *Config) applyFallbacks() {
	if c.Broker.Token == "" {
		c.Broker.Token = os.Getenv("OANDA_TOKEN")
	}
	if c.Broker.AccountID == "" {
		c.Broker.AccountID = os.Getenv("OANDA_ACCOUNT_ID")
	}
	// viper lowercases map keys
	if len(c.Live.TrailIntervals) > 0 {
		m := make(map[string]time.Duration, len(c.Live.TrailIntervals))
		for k, d := range c.Live.TrailIntervals {
			m[strings.ToUpper(k)] = d
		}
		c.Live.TrailIntervals = m
	}
}

// Save writes c as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return core.WrapError(core.ErrConfigInvalid, fmt.Errorf(format, args...))
}

// Validate checks every section. Credentials are only checked by
// ValidateBroker since offline commands never need them.
func (c *Config) Validate() error {
	switch c.Broker.Env {
	case "practice", "live":
	default:
		return invalid("broker.env must be 'practice' or 'live', got %q", c.Broker.Env)
	}
	if c.Broker.Timeout < 0 {
		return invalid("broker.timeout cannot be negative")
	}
	if c.Broker.PageSize < 0 || c.Broker.PageSize > 5000 {
		return invalid("broker.page_size must be at most 5000, got %d", c.Broker.PageSize)
	}

	if err := c.validateLive(); err != nil {
		return err
	}
	if err := c.validateBacktest(); err != nil {
		return err
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return invalid("metrics.listen is required when metrics are enabled")
	}
	return nil
}

// ValidateBroker checks the credentials needed to talk to OANDA.
func (c *Config) ValidateBroker() error {
	if c.Broker.Token == "" {
		return invalid("broker.token is required (or set OANDA_TOKEN)")
	}
	if c.Broker.AccountID == "" {
		return invalid("broker.account_id is required (or set OANDA_ACCOUNT_ID)")
	}
	return nil
}

func checkInstruments(section string, ins []string) error {
	if len(ins) == 0 {
		return invalid("%s.instruments is required", section)
	}
	for _, in := range ins {
		if _, ok := market.Instruments[in]; !ok {
			return invalid("%s.instruments: unknown instrument: %s", section, in)
		}
	}
	return nil
}

func (c *Config) validateLive() error {
	l := c.Live
	if err := checkInstruments("live", l.Instruments); err != nil {
		return err
	}
	if _, err := market.ParseGranularity(l.Granularity); err != nil {
		return invalid("live.granularity: %v", err)
	}
	if _, _, err := strategies.New(l.Strategy); err != nil {
		return invalid("live.strategy: %v", err)
	}
	if l.RiskPct <= 0 || l.RiskPct > 1 {
		return invalid("live.risk_pct must be between 0 and 1")
	}
	if l.Window < 2 || l.Window > 5000 {
		return invalid("live.window must be between 2 and 5000, got %d", l.Window)
	}
	if l.ConfirmAttempts < 1 {
		return invalid("live.confirm_attempts must be positive")
	}
	if l.Trailing && l.TrailInterval <= 0 {
		return invalid("live.trail_interval must be positive when trailing is enabled")
	}
	return nil
}

func (c *Config) validateBacktest() error {
	b := c.Backtest
	if err := checkInstruments("backtest", b.Instruments); err != nil {
		return err
	}
	if _, err := market.ParseGranularity(b.Granularity); err != nil {
		return invalid("backtest.granularity: %v", err)
	}
	if _, err := c.BacktestParams(); err != nil {
		return err
	}
	if b.Workers < 1 {
		return invalid("backtest.workers must be positive")
	}
	if b.Count < 1 || b.Count > 5000 {
		return invalid("backtest.count must be between 1 and 5000, got %d", b.Count)
	}
	return nil
}

// BacktestParams parses the strategy specs of the backtest section.
func (c *Config) BacktestParams() ([]strategies.Params, error) {
	if len(c.Backtest.Strategies) == 0 {
		return nil, invalid("backtest.strategies is required")
	}
	base := strategies.Params{RiskReward: c.Backtest.RiskReward, Trailing: c.Backtest.Trailing}
	out := make([]strategies.Params, 0, len(c.Backtest.Strategies))
	for _, spec := range c.Backtest.Strategies {
		p, err := strategies.ParseSpec(spec, base)
		if err != nil {
			return nil, invalid("backtest.strategies %q: %v", spec, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// LiveController maps the live section onto the controller settings.
func (c *Config) LiveController() (live.Config, error) {
	g, err := market.ParseGranularity(c.Live.Granularity)
	if err != nil {
		return live.Config{}, invalid("live.granularity: %v", err)
	}
	return live.Config{
		Instruments:    c.Live.Instruments,
		Granularity:    g,
		Strategy:       c.Live.Strategy,
		Window:         c.Live.Window,
		RiskPct:        c.Live.RiskPct,
		Policy:         c.Live.Policy,
		Confirm:        retry.Policy{Attempts: c.Live.ConfirmAttempts, Delay: c.Live.ConfirmDelay},
		Trailing:       c.Live.Trailing,
		TrailInterval:  c.Live.TrailInterval,
		TrailIntervals: c.Live.TrailIntervals,
		TrailRetry:     retry.Policy{Attempts: c.Live.TrailAttempts, Delay: c.Live.TrailDelay},
		CallTimeout:    c.Live.CallTimeout,
		ClientTag:      c.Live.ClientTag,
	}, nil
}
