package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123456:TEST"},
		Wallet:   WalletConfig{Address: "So1anaWa11etAddr1111111111111111111111111"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, "https://api.dexscreener.com", cfg.Market.BaseURL)
	assert.Equal(t, 5, cfg.Market.TimeoutSeconds)
}

func TestNormalizeRequiresToken(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = "   "
	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_TOKEN")
}

func TestNormalizeRequiresWallet(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.Address = ""
	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAIN_WALLET_ADDRESS")
}

func TestNormalizeRunModeAliases(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "Polling"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)

	cfg = validConfig()
	cfg.Telegram.RunMode = "carrier-pigeon"
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeWebhookRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	assert.Error(t, Normalize(cfg), "missing url")

	cfg.Webhook.URL = "https://bot.example.com/hook"
	assert.Error(t, Normalize(cfg), "missing listen")

	cfg.Webhook.Listen = "0.0.0.0"
	assert.Error(t, Normalize(cfg), "missing port")

	cfg.Webhook.Port = 8443
	assert.NoError(t, Normalize(cfg))
}

func TestNormalizeMarketOverrides(t *testing.T) {
	cfg := validConfig()
	cfg.Market.BaseURL = "https://mirror.example.com/"
	cfg.Market.TimeoutSeconds = 10
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, "https://mirror.example.com", cfg.Market.BaseURL)
	assert.Equal(t, 10, cfg.Market.TimeoutSeconds)

	cfg.Market.TimeoutSeconds = -1
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeRateLimitExclusions(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", "MESSAGE"}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, []string{"callback", "message"}, cfg.RateLimit.ExcludeUpdates)

	cfg = validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"inline_query"}
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeRateLimitDefaultsExcludeCallbacks(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.IntervalMS = 500
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)

	// Disabled limiter gets no implicit exclusions.
	cfg = validConfig()
	require.NoError(t, Normalize(cfg))
	assert.Empty(t, cfg.RateLimit.ExcludeUpdates)

	cfg = validConfig()
	cfg.RateLimit.IntervalMS = -1
	assert.Error(t, Normalize(cfg))
}
