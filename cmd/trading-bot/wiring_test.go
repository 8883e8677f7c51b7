package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-trading-bot/internal/config"
	"github.com/ducminhle1904/crypto-trading-bot/internal/logger"
	"github.com/ducminhle1904/crypto-trading-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-trading-bot/internal/strategy"
)

// TestBuildStrategies tests ordering, de-duplication and unknown names
func TestBuildStrategies(t *testing.T) {
	cfg := config.Default().Strategies
	cfg.Enabled = []string{strategy.TechnicalAnalysisName, strategy.MomentumName, strategy.MomentumName}
	levels := strategy.FixedProtection(0.05, 0.15)

	strategies, err := buildStrategies(cfg, levels)
	require.NoError(t, err)
	require.Len(t, strategies, 2)
	assert.Equal(t, strategy.TechnicalAnalysisName, strategies[0].GetName())
	assert.Equal(t, strategy.MomentumName, strategies[1].GetName())

	cfg.Enabled = []string{"grid"}
	_, err = buildStrategies(cfg, levels)
	assert.Error(t, err)

	cfg.Enabled = nil
	_, err = buildStrategies(cfg, levels)
	assert.Error(t, err)
}

// TestBuildNotifier tests sink selection
func TestBuildNotifier(t *testing.T) {
	n, closeFn, err := buildNotifier(config.NotificationConfig{}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, notifications.Nop{}, n)
	closeFn()

	n, closeFn, err = buildNotifier(config.NotificationConfig{Enabled: true}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, notifications.Nop{}, n)
	closeFn()

	n, closeFn, err = buildNotifier(config.NotificationConfig{Enabled: true, TelegramToken: "t", TelegramChat: "1"}, logger.Nop())
	require.NoError(t, err)
	multi, ok := n.(*notifications.Multi)
	require.True(t, ok)
	assert.Equal(t, 1, multi.Len())
	closeFn()
}
