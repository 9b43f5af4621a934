// Package config handles configuration management with validation.
//
// Every empirically tuned constant of the orchestration (sizing tiers, sell
// trigger distribution shape, delays, fee reserve) lives here as a named
// field rather than inline in the policies.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App         AppConfig         `yaml:"app"`
	Pool        PoolConfig        `yaml:"pool"`
	Wallets     WalletsConfig     `yaml:"wallets"`
	Sizing      SizingConfig      `yaml:"sizing"`
	SellTrigger SellTriggerConfig `yaml:"sell_trigger"`
	Paper       PaperConfig       `yaml:"paper"`
	Timing      TimingConfig      `yaml:"timing"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Server      ServerConfig      `yaml:"server"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	System      SystemConfig      `yaml:"system"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	// GatewayType selects the execution gateway implementation. "paper" runs
	// against the in-process simulator; real gateways are wired externally.
	GatewayType string `yaml:"gateway_type"`
	// SizingMode selects the buy sizing policy variant.
	SizingMode     string `yaml:"sizing_mode"`
	WalletFile     string `yaml:"wallet_file"`
	AllocationFile string `yaml:"allocation_file"`
	RPCEndpoint    string `yaml:"rpc_endpoint"`
	RPCAuthToken   Secret `yaml:"rpc_auth_token"`
}

// PoolConfig identifies the traded pool and its unit scales
type PoolConfig struct {
	PoolAddress   string `yaml:"pool_address"`
	TokenMint     string `yaml:"token_mint"`
	BaseDecimals  int    `yaml:"base_decimals"`
	QuoteDecimals int    `yaml:"quote_decimals"`
}

// WalletsConfig contains wallet pool lifecycle settings
type WalletsConfig struct {
	// RebuyCeiling is the number of rebuy cycles a wallet may claim before
	// it is blacklisted for the session.
	RebuyCeiling int `yaml:"rebuy_ceiling"`
	// MinScanBalance (quote units, human) is the funding floor below which
	// the startup scan leaves a wallet out of the pool.
	MinScanBalance decimal.Decimal `yaml:"min_scan_balance"`
}

// SizingTier maps a spendable-balance band to a buy percentage band.
// Larger balances use smaller percentages so whale and minnow wallets
// converge toward comparable absolute risk.
type SizingTier struct {
	// MaxBalance (quote units, human) is the exclusive upper bound of the
	// tier; zero means unbounded and must be the last tier.
	MaxBalance decimal.Decimal `yaml:"max_balance"`
	MinPercent int             `yaml:"min_percent"`
	MaxPercent int             `yaml:"max_percent"`
}

// SizingConfig contains buy sizing parameters. Human-unit amounts are
// converted to atomic units at the policy boundary.
type SizingConfig struct {
	// FeeReserve (quote units, human) is held back from every spendable
	// balance to cover transaction fees.
	FeeReserve decimal.Decimal `yaml:"fee_reserve"`
	// MinTradeAmount (quote units, human) is the floor below which a
	// computed buy is not worth submitting.
	MinTradeAmount decimal.Decimal `yaml:"min_trade_amount"`
	// MaxSupplyExposure (base tokens, human) caps the expected base output
	// of any single buy, per the quote engine.
	MaxSupplyExposure decimal.Decimal `yaml:"max_supply_exposure"`
	Tiers             []SizingTier    `yaml:"tiers"`
}

// Distribution describes an empirical integer draw: a [Min, Max] bound and a
// target Mean the long-run aggregate should converge to.
type Distribution struct {
	Min  int `yaml:"min"`
	Max  int `yaml:"max"`
	Mean int `yaml:"mean"`
}

// SellTriggerConfig contains the sell scheduling distributions
type SellTriggerConfig struct {
	Threshold Distribution `yaml:"threshold"`
	RunLength Distribution `yaml:"run_length"`
	// Inter-sell delay is drawn uniformly from this millisecond band.
	InterSellDelayMinMs int `yaml:"inter_sell_delay_min_ms"`
	InterSellDelayMaxMs int `yaml:"inter_sell_delay_max_ms"`
	// RetryAfterBuys reschedules a fully failed sell sequence after this
	// many additional buys instead of a full threshold draw.
	RetryAfterBuys int `yaml:"retry_after_buys"`
}

// PaperConfig seeds the in-process paper gateway. Reserve fields are atomic
// units as read off the pool; funding and fee are human quote units.
type PaperConfig struct {
	VirtualBase  uint64 `yaml:"virtual_base"`
	VirtualQuote uint64 `yaml:"virtual_quote"`
	RealBase     uint64 `yaml:"real_base"`
	RealQuote    uint64 `yaml:"real_quote"`
	// WalletFunding is the quote balance every wallet starts with.
	WalletFunding decimal.Decimal `yaml:"wallet_funding"`
	// Fee is charged per submitted trade.
	Fee decimal.Decimal `yaml:"fee"`
}

// TimingConfig contains timing-related settings
type TimingConfig struct {
	BuyDelayMinMs   int     `yaml:"buy_delay_min_ms"`
	BuyDelayMaxMs   int     `yaml:"buy_delay_max_ms"`
	PausePollMs     int     `yaml:"pause_poll_ms"`
	SubmitTimeoutMs int     `yaml:"submit_timeout_ms"`
	SubmitRateLimit float64 `yaml:"submit_rate_limit"`
	SubmitBurst     int     `yaml:"submit_burst"`
}

// ConcurrencyConfig contains worker pool settings for the startup balance scan
type ConcurrencyConfig struct {
	ScanPoolSize   int `yaml:"scan_pool_size"`
	ScanPoolBuffer int `yaml:"scan_pool_buffer"`
}

// ServerConfig contains the live status WebSocket server settings
type ServerConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AlertsConfig contains session notification settings. All channels are
// optional; unset channels are simply not wired.
type AlertsConfig struct {
	SlackWebhookURL  Secret `yaml:"slack_webhook_url"`
	TelegramBotToken Secret `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
	// SellRemainderOnDrain runs a final sell pass over holding wallets once
	// the buy cycle can no longer be replenished.
	SellRemainderOnDrain bool `yaml:"sell_remainder_on_drain"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errs []string

	for _, check := range []func() error{
		c.validateAppConfig,
		c.validatePoolConfig,
		c.validateWalletsConfig,
		c.validateSizingConfig,
		c.validateSellTriggerConfig,
		c.validateTimingConfig,
	} {
		if err := check(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (c *Config) validateAppConfig() error {
	validGateways := []string{"paper"}
	if !contains(validGateways, c.App.GatewayType) {
		return ValidationError{
			Field:   "app.gateway_type",
			Value:   c.App.GatewayType,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validGateways, ", ")),
		}
	}

	validModes := []string{"dynamic", "deterministic"}
	if !contains(validModes, c.App.SizingMode) {
		return ValidationError{
			Field:   "app.sizing_mode",
			Value:   c.App.SizingMode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validModes, ", ")),
		}
	}

	if c.App.SizingMode == "deterministic" && c.App.AllocationFile == "" {
		return ValidationError{
			Field:   "app.allocation_file",
			Message: "allocation file is required for deterministic sizing",
		}
	}

	if c.App.WalletFile == "" {
		return ValidationError{
			Field:   "app.wallet_file",
			Message: "wallet file is required",
		}
	}

	return nil
}

func (c *Config) validatePoolConfig() error {
	if c.Pool.PoolAddress == "" {
		return ValidationError{
			Field:   "pool.pool_address",
			Message: "pool address is required",
		}
	}
	if c.Pool.BaseDecimals < 0 || c.Pool.BaseDecimals > 18 {
		return ValidationError{
			Field:   "pool.base_decimals",
			Value:   c.Pool.BaseDecimals,
			Message: "must be between 0 and 18",
		}
	}
	if c.Pool.QuoteDecimals < 0 || c.Pool.QuoteDecimals > 18 {
		return ValidationError{
			Field:   "pool.quote_decimals",
			Value:   c.Pool.QuoteDecimals,
			Message: "must be between 0 and 18",
		}
	}
	return nil
}

func (c *Config) validateWalletsConfig() error {
	if c.Wallets.RebuyCeiling < 0 {
		return ValidationError{
			Field:   "wallets.rebuy_ceiling",
			Value:   c.Wallets.RebuyCeiling,
			Message: "must be non-negative",
		}
	}
	return nil
}

func (c *Config) validateSizingConfig() error {
	if c.Sizing.FeeReserve.IsNegative() {
		return ValidationError{
			Field:   "sizing.fee_reserve",
			Value:   c.Sizing.FeeReserve,
			Message: "must be non-negative",
		}
	}
	if c.Sizing.MinTradeAmount.IsNegative() {
		return ValidationError{
			Field:   "sizing.min_trade_amount",
			Value:   c.Sizing.MinTradeAmount,
			Message: "must be non-negative",
		}
	}

	if c.App.SizingMode == "dynamic" && len(c.Sizing.Tiers) == 0 {
		return ValidationError{
			Field:   "sizing.tiers",
			Message: "at least one tier is required for dynamic sizing",
		}
	}

	for i, tier := range c.Sizing.Tiers {
		if tier.MinPercent < 1 || tier.MaxPercent > 100 || tier.MinPercent > tier.MaxPercent {
			return ValidationError{
				Field:   fmt.Sprintf("sizing.tiers[%d]", i),
				Value:   fmt.Sprintf("%d-%d", tier.MinPercent, tier.MaxPercent),
				Message: "percent band must satisfy 1 <= min <= max <= 100",
			}
		}
		if tier.MaxBalance.IsZero() && i != len(c.Sizing.Tiers)-1 {
			return ValidationError{
				Field:   fmt.Sprintf("sizing.tiers[%d].max_balance", i),
				Message: "unbounded tier must be last",
			}
		}
	}
	return nil
}

func (c *Config) validateSellTriggerConfig() error {
	for _, d := range []struct {
		name string
		dist Distribution
	}{
		{"sell_trigger.threshold", c.SellTrigger.Threshold},
		{"sell_trigger.run_length", c.SellTrigger.RunLength},
	} {
		if d.dist.Min < 1 || d.dist.Max < d.dist.Min {
			return ValidationError{
				Field:   d.name,
				Value:   fmt.Sprintf("min=%d max=%d", d.dist.Min, d.dist.Max),
				Message: "must satisfy 1 <= min <= max",
			}
		}
		if d.dist.Mean < d.dist.Min || d.dist.Mean > d.dist.Max {
			return ValidationError{
				Field:   d.name + ".mean",
				Value:   d.dist.Mean,
				Message: "mean must lie within [min, max]",
			}
		}
	}

	if c.SellTrigger.InterSellDelayMinMs < 0 || c.SellTrigger.InterSellDelayMaxMs < c.SellTrigger.InterSellDelayMinMs {
		return ValidationError{
			Field:   "sell_trigger.inter_sell_delay",
			Message: "delay band must satisfy 0 <= min <= max",
		}
	}

	if c.SellTrigger.RetryAfterBuys < 1 {
		return ValidationError{
			Field:   "sell_trigger.retry_after_buys",
			Value:   c.SellTrigger.RetryAfterBuys,
			Message: "must be at least 1",
		}
	}
	return nil
}

func (c *Config) validateTimingConfig() error {
	if c.Timing.BuyDelayMinMs < 0 || c.Timing.BuyDelayMaxMs < c.Timing.BuyDelayMinMs {
		return ValidationError{
			Field:   "timing.buy_delay",
			Message: "delay band must satisfy 0 <= min <= max",
		}
	}
	if c.Timing.SubmitTimeoutMs < 1 {
		return ValidationError{
			Field:   "timing.submit_timeout_ms",
			Value:   c.Timing.SubmitTimeoutMs,
			Message: "must be positive",
		}
	}
	if c.Timing.PausePollMs < 1 {
		return ValidationError{
			Field:   "timing.pause_poll_ms",
			Value:   c.Timing.PausePollMs,
			Message: "must be positive",
		}
	}
	return nil
}

// ToAtomic converts a human-unit decimal amount into atomic units, truncating
// any fraction smaller than one atomic unit.
func ToAtomic(amount decimal.Decimal, decimals int) uint64 {
	if amount.IsNegative() {
		return 0
	}
	shifted := amount.Shift(int32(decimals)).Truncate(0)
	return shifted.BigInt().Uint64()
}

// String returns a string representation of the configuration with secrets redacted
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			GatewayType: "paper",
			SizingMode:  "dynamic",
			WalletFile:  "configs/wallets.txt",
			RPCEndpoint: "https://api.mainnet-beta.solana.com",
		},
		Pool: PoolConfig{
			PoolAddress:   "test_pool_address",
			TokenMint:     "test_token_mint",
			BaseDecimals:  6,
			QuoteDecimals: 9,
		},
		Wallets: WalletsConfig{
			RebuyCeiling:   3,
			MinScanBalance: decimal.NewFromFloat(0.01),
		},
		Sizing: SizingConfig{
			FeeReserve:        decimal.NewFromFloat(0.01),
			MinTradeAmount:    decimal.NewFromFloat(0.005),
			MaxSupplyExposure: decimal.NewFromInt(20_000_000),
			Tiers: []SizingTier{
				{MaxBalance: decimal.NewFromInt(1), MinPercent: 60, MaxPercent: 80},
				{MaxBalance: decimal.NewFromInt(5), MinPercent: 50, MaxPercent: 70},
				{MaxBalance: decimal.Zero, MinPercent: 40, MaxPercent: 60},
			},
		},
		SellTrigger: SellTriggerConfig{
			Threshold:           Distribution{Min: 3, Max: 11, Mean: 7},
			RunLength:           Distribution{Min: 1, Max: 5, Mean: 2},
			InterSellDelayMinMs: 300,
			InterSellDelayMaxMs: 1500,
			RetryAfterBuys:      2,
		},
		Paper: PaperConfig{
			VirtualBase:   1_073_000_000_000_000,
			VirtualQuote:  30_000_000_000,
			RealBase:      793_100_000_000_000,
			RealQuote:     0,
			WalletFunding: decimal.NewFromInt(2),
			Fee:           decimal.NewFromFloat(0.000005),
		},
		Timing: TimingConfig{
			BuyDelayMinMs:   800,
			BuyDelayMaxMs:   4000,
			PausePollMs:     200,
			SubmitTimeoutMs: 30_000,
			SubmitRateLimit: 5,
			SubmitBurst:     5,
		},
		Concurrency: ConcurrencyConfig{
			ScanPoolSize:   8,
			ScanPoolBuffer: 256,
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    ":8090",
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9091,
			EnableMetrics: false,
		},
		System: SystemConfig{
			LogLevel:             "INFO",
			SellRemainderOnDrain: true,
		},
	}
}
