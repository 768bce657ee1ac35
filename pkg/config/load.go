package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ATTENTIONRUSH"

// Load reads configuration from defaults, an optional file and the
// environment, in increasing precedence. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("network", cfg.Network)
	v.SetDefault("token", cfg.Token)
	v.SetDefault("decimals", cfg.Decimals)
	v.SetDefault("paymaster-url", "")
	v.SetDefault("viewport-tip-amount", cfg.ViewportTipAmount)
	v.SetDefault("engagement-tip-amount", cfg.EngagementTipAmount)
	v.SetDefault("batch-size", cfg.BatchSize)
	v.SetDefault("batch-timeout", cfg.BatchTimeout)
	v.SetDefault("engagement-interval", cfg.EngagementInterval)
	v.SetDefault("max-retries", cfg.MaxRetries)
	v.SetDefault("retry-delay", cfg.RetryDelay)
	v.SetDefault("wallet-rpc-url", "")
	v.SetDefault("wallet-domain", cfg.WalletDomain)
	v.SetDefault("rpc-url", "")
	v.SetDefault("private-key", "")
	v.SetDefault("neynar-url", cfg.NeynarURL)
	v.SetDefault("neynar-api-key", "")
	v.SetDefault("feed-fid", cfg.FeedFID)
	v.SetDefault("feed-limit", cfg.FeedLimit)
	v.SetDefault("listen", cfg.Listen)
	v.SetDefault("environment", cfg.Environment)
	v.SetDefault("log-file", "")
	v.SetDefault("log-level", cfg.LogLevel)
	v.SetDefault("rate-limit", cfg.RateLimit)
	v.SetDefault("rate-burst", cfg.RateBurst)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}
