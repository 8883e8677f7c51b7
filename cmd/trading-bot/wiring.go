package main

import (
	"fmt"
	"runtime"

	"github.com/ducminhle1904/crypto-trading-bot/internal/config"
	"github.com/ducminhle1904/crypto-trading-bot/internal/logger"
	"github.com/ducminhle1904/crypto-trading-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-trading-bot/internal/strategy"
)

const (
	projectName    = "Crypto Trading Bot"
	projectVersion = "3.0.0"
	eventSource    = "trading-bot"
)

// Build information, overridden via -ldflags
var (
	buildDate   = "unknown"
	buildCommit = "dev"
)

func printVersion() {
	fmt.Printf("%s v%s\n", projectName, projectVersion)
	fmt.Printf("Build: %s (%s)\n", buildCommit, buildDate)
	fmt.Printf("Go: %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// buildStrategies instantiates the enabled strategies in configured order
func buildStrategies(cfg config.StrategiesConfig, levels strategy.ProtectionSource) ([]strategy.Strategy, error) {
	var out []strategy.Strategy
	seen := make(map[string]bool, len(cfg.Enabled))

	for _, name := range cfg.Enabled {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case strategy.MomentumName:
			out = append(out, strategy.NewMomentum(cfg.Momentum, levels))
		case strategy.MeanReversionName:
			out = append(out, strategy.NewMeanReversion(cfg.MeanReversion, levels))
		case strategy.TechnicalAnalysisName:
			out = append(out, strategy.NewTechnicalAnalysis(cfg.TechnicalAnalysis, levels))
		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no strategies enabled")
	}
	return out, nil
}

// buildNotifier assembles the configured sinks. The returned close func
// releases sink resources and is always safe to call.
func buildNotifier(cfg config.NotificationConfig, log *logger.Logger) (notifications.Notifier, func(), error) {
	noop := func() {}
	if !cfg.Enabled {
		return notifications.Nop{}, noop, nil
	}

	multi := notifications.NewMulti(log)
	closeFn := noop

	if cfg.TelegramToken != "" && cfg.TelegramChat != "" {
		multi.Add("telegram", notifications.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChat))
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := notifications.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, eventSource)
		if err != nil {
			return nil, noop, fmt.Errorf("kafka publisher: %w", err)
		}
		multi.Add("kafka", publisher)
		closeFn = func() {
			if err := publisher.Close(); err != nil {
				log.LogError("Kafka publisher close failed", err)
			}
		}
	}

	if multi.Len() == 0 {
		log.Warning("Notifications enabled but no sink is configured")
		return notifications.Nop{}, closeFn, nil
	}
	return multi, closeFn, nil
}
