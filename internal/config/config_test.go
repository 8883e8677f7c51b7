package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-trading-bot/internal/strategy"
)

const sampleYAML = `
trading:
  symbols: [btcusdt, " ethusdt "]
  interval_seconds: 30
  initial_capital: 5000
signals:
  min_confidence: 0.7
  max_trades_per_hour: 4
edge_filter:
  mode: simple
risk:
  max_daily_loss: 0.03
strategies:
  enabled: [momentum]
`

// TestParse_YAMLKeepsDefaults tests that unspecified fields keep their defaults
func TestParse_YAMLKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML), ".yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, 30, cfg.Trading.IntervalSeconds)
	assert.Equal(t, 30, cfg.Trading.ErrorBackoffSeconds)
	assert.Equal(t, 0.001, cfg.Trading.FeeRate)

	assert.Equal(t, 0.7, cfg.Signals.MinConfidence)
	assert.Equal(t, 1.35, cfg.Signals.ConflictRatio)
	assert.Equal(t, 4, cfg.Signals.MaxTradesPerHour)
	assert.False(t, cfg.EdgeFilter.Adaptive())
	assert.Equal(t, 0.004, cfg.EdgeFilter.MinEdge)

	assert.Equal(t, 0.03, cfg.Risk.MaxDailyLossPct)
	assert.Equal(t, 0.15, cfg.Risk.MaxDrawdownPct)
	assert.Equal(t, []string{strategy.MomentumName}, cfg.Strategies.Enabled)
	assert.Equal(t, 14, cfg.Strategies.Momentum.LookbackPeriod)
	require.NoError(t, cfg.Validate())
}

// TestParse_JSON tests JSON decoding and unsupported extensions
func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"account":{"stop_loss_pct":0.02,"take_profit_pct":0.04}}`), ".json")
	require.NoError(t, err)
	assert.Equal(t, 0.02, cfg.Account.StopLossPct)
	assert.InDelta(t, 2.0, cfg.Account.RewardRiskRatio(), 1e-9)

	_, err = Parse([]byte(`x`), ".toml")
	assert.Error(t, err)
}

// TestLoad_EnvOverrides tests file loading with environment overrides
func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))

	t.Setenv("BYBIT_API_KEY", "key")
	t.Setenv("BYBIT_TESTNET", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("TRADING_BOT_DEBUG", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.Exchange.APIKey)
	assert.False(t, cfg.Exchange.Testnet)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Notifications.KafkaBrokers)
	assert.True(t, cfg.Debug)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

// TestValidate_Rejects tests representative invalid configurations
func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Trading.Symbols = nil }},
		{"malformed symbol", func(c *Config) { c.Trading.Symbols = []string{"BTC/USDT"} }},
		{"bad kline interval", func(c *Config) { c.Trading.KlineInterval = "15m" }},
		{"no capital", func(c *Config) { c.Trading.InitialCapital = 0 }},
		{"conflict ratio below one", func(c *Config) { c.Signals.ConflictRatio = 0.9 }},
		{"bad edge mode", func(c *Config) { c.EdgeFilter.Mode = "fancy" }},
		{"bad stop loss", func(c *Config) { c.Account.StopLossPct = 0 }},
		{"bad risk", func(c *Config) { c.Risk.MaxDrawdownPct = 2 }},
		{"unknown strategy", func(c *Config) { c.Strategies.Enabled = []string{"grid"} }},
		{"unknown exchange", func(c *Config) { c.Exchange.Name = "kraken" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

// TestRuntime_PartialUpdate tests merging, rejection and protection levels
func TestRuntime_PartialUpdate(t *testing.T) {
	rt := NewRuntime(Default().RuntimeSettings())

	minConf := 0.75
	sl := 0.03
	require.NoError(t, rt.Update(RuntimeUpdate{MinConfidence: &minConf, StopLossPct: &sl}))

	snap := rt.Snapshot()
	assert.Equal(t, 0.75, snap.Signals.MinConfidence)
	assert.Equal(t, 1.35, snap.Signals.ConflictRatio)
	slPct, tpPct := rt.ProtectionLevels()
	assert.Equal(t, 0.03, slPct)
	assert.Equal(t, 0.15, tpPct)

	bad := -1
	assert.Error(t, rt.Update(RuntimeUpdate{MaxSignalsPerCycle: &bad}))
	assert.Equal(t, 3, rt.Snapshot().Signals.MaxSignalsPerCycle)

	replacement := Default().RuntimeSettings()
	replacement.Signals.CooldownSeconds = 60
	require.NoError(t, rt.Replace(replacement))
	assert.Equal(t, 0.6, rt.Snapshot().Signals.MinConfidence)
	assert.Equal(t, 60, rt.Snapshot().Signals.CooldownSeconds)
}
