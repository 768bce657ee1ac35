// Package config loads the static settings of the tipping service.
package config

import (
	"time"

	tips "github.com/attentionrush/tips"
	"github.com/attentionrush/tips/mechanisms/evm"
	"github.com/attentionrush/tips/pkg/logging"
)

// Config holds everything that is fixed for the lifetime of the process.
// Keys use the mapstructure names below in config files and the
// ATTENTIONRUSH_ prefix with underscores in the environment
// (e.g. ATTENTIONRUSH_NEYNAR_API_KEY).
type Config struct {
	// Chain and asset
	Network      string `mapstructure:"network"`
	Token        string `mapstructure:"token"`
	Decimals     int    `mapstructure:"decimals"`
	PaymasterURL string `mapstructure:"paymaster-url"`

	// Tip amounts and pacing
	ViewportTipAmount   string        `mapstructure:"viewport-tip-amount"`
	EngagementTipAmount string        `mapstructure:"engagement-tip-amount"`
	BatchSize           int           `mapstructure:"batch-size"`
	BatchTimeout        time.Duration `mapstructure:"batch-timeout"`
	EngagementInterval  time.Duration `mapstructure:"engagement-interval"`
	MaxRetries          int           `mapstructure:"max-retries"`
	RetryDelay          time.Duration `mapstructure:"retry-delay"`

	// Submission backends; at most one of WalletRPCURL and PrivateKey
	WalletRPCURL string `mapstructure:"wallet-rpc-url"`
	WalletDomain string `mapstructure:"wallet-domain"`
	RPCURL       string `mapstructure:"rpc-url"`
	PrivateKey   string `mapstructure:"private-key"`

	// Feed
	NeynarURL    string `mapstructure:"neynar-url"`
	NeynarAPIKey string `mapstructure:"neynar-api-key"`
	FeedFID      int64  `mapstructure:"feed-fid"`
	FeedLimit    int    `mapstructure:"feed-limit"`

	// Service
	Listen      string  `mapstructure:"listen"`
	Environment string  `mapstructure:"environment"`
	LogFile     string  `mapstructure:"log-file"`
	LogLevel    string  `mapstructure:"log-level"`
	RateLimit   float64 `mapstructure:"rate-limit"`
	RateBurst   int     `mapstructure:"rate-burst"`
}

const (
	DefaultNeynarURL   = "https://api.neynar.com"
	DefaultFeedFID     = 3
	DefaultFeedLimit   = 50
	DefaultListen      = ":8080"
	DefaultRateLimit   = 20
	DefaultRateBurst   = 40
	DefaultDomain      = "http://localhost:8080"
	DefaultEnvironment = "development"
	DefaultLogLevel    = "info"
)

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		Network:             evm.DefaultNetwork,
		Token:               evm.USDCBaseSepolia,
		Decimals:            evm.DefaultDecimals,
		ViewportTipAmount:   tips.DefaultTipAmount,
		EngagementTipAmount: tips.DefaultTipAmount,
		BatchSize:           tips.DefaultBatchSize,
		BatchTimeout:        tips.DefaultFlushTimeout,
		EngagementInterval:  tips.DefaultEngagementInterval,
		MaxRetries:          tips.DefaultMaxRetries,
		RetryDelay:          tips.DefaultRetryDelay,
		WalletDomain:        DefaultDomain,
		NeynarURL:           DefaultNeynarURL,
		FeedFID:             DefaultFeedFID,
		FeedLimit:           DefaultFeedLimit,
		Listen:              DefaultListen,
		Environment:         DefaultEnvironment,
		LogLevel:            DefaultLogLevel,
		RateLimit:           DefaultRateLimit,
		RateBurst:           DefaultRateBurst,
	}
}

// Validate checks the config and returns the first problem found
func (c *Config) Validate() error {
	if c.Network == "" {
		return ErrMissingNetwork
	}
	if !evm.IsValidNetwork(c.Network) {
		return ErrUnsupportedNetwork
	}
	if !evm.IsValidAddress(c.Token) {
		return ErrInvalidToken
	}
	if c.Decimals <= 0 {
		return ErrInvalidDecimals
	}
	for _, amount := range []string{c.ViewportTipAmount, c.EngagementTipAmount} {
		parsed, err := evm.ParseAmount(amount, c.Decimals)
		if err != nil || parsed.Sign() <= 0 {
			return ErrInvalidTipAmount
		}
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.BatchTimeout <= 0 {
		return ErrInvalidFlushTimeout
	}
	if c.EngagementInterval <= 0 {
		return ErrInvalidInterval
	}
	if c.MaxRetries < 0 || c.RetryDelay < 0 {
		return ErrInvalidRetries
	}
	if c.WalletRPCURL != "" && c.PrivateKey != "" {
		return ErrConflictingSubmitters
	}
	if c.PrivateKey != "" && c.RPCURL == "" {
		return ErrMissingRPCURL
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return ErrInvalidLogLevel
	}
	return nil
}

// Session returns the per-session payment settings
func (c *Config) Session() tips.SessionConfig {
	return tips.SessionConfig{
		BatchSize:           c.BatchSize,
		FlushTimeout:        c.BatchTimeout,
		EngagementInterval:  c.EngagementInterval,
		ViewportTipAmount:   c.ViewportTipAmount,
		EngagementTipAmount: c.EngagementTipAmount,
	}
}

// Transfer returns the executor settings
func (c *Config) Transfer() tips.TransferConfig {
	return tips.TransferConfig{
		Network:      c.Network,
		Token:        c.Token,
		Decimals:     c.Decimals,
		PaymasterURL: c.PaymasterURL,
	}
}
