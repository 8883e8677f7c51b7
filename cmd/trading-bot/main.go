package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ducminhle1904/crypto-trading-bot/internal/config"
	"github.com/ducminhle1904/crypto-trading-bot/internal/engine"
	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange/paper"
	"github.com/ducminhle1904/crypto-trading-bot/internal/logger"
	"github.com/ducminhle1904/crypto-trading-bot/internal/monitoring"
	"github.com/ducminhle1904/crypto-trading-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-trading-bot/internal/risk"
	"github.com/ducminhle1904/crypto-trading-bot/pkg/reporting"
)

const shutdownTimeout = 30 * time.Second

func main() {
	var (
		configFile  = flag.String("config", "trading-bot.yaml", "Configuration file (bare names resolve under configs/)")
		envFile     = flag.String("env", ".env", "Environment file path")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("Warning: could not load .env file (%v), using process environment", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := run(*configFile, cfg); err != nil {
		log.Fatalf("Trading bot failed: %v", err)
	}
}

func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err != nil {
		return fmt.Errorf("env file %s not found", envFile)
	}
	return godotenv.Load(envFile)
}

func run(configFile string, cfg *config.Config) error {
	botLogger, err := logger.NewLogger(cfg.Reporting.LogDir, "trading-bot", cfg.Debug)
	if err != nil {
		return err
	}
	defer botLogger.Close()

	botLogger.Info("%s v%s starting (exchange %s, %s)", projectName, projectVersion, cfg.Exchange.Name, environment(cfg))

	settings := config.NewRuntime(cfg.RuntimeSettings())

	gateway := paper.NewGateway(paper.Config{
		InitialCapital: cfg.Trading.InitialCapital,
		FeeRate:        cfg.Trading.FeeRate,
		MaxHistory:     cfg.Trading.ValueHistory,
	})
	riskManager := risk.NewManager(cfg.Risk, gateway, botLogger)

	strategies, err := buildStrategies(cfg.Strategies, settings)
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := buildNotifier(cfg.Notifications, botLogger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	client := bybit.NewClient(bybit.Config{
		APIKey:            cfg.Exchange.APIKey,
		APISecret:         cfg.Exchange.APISecret,
		Testnet:           cfg.Exchange.Testnet,
		Category:          cfg.Exchange.Category,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
	})
	provider := bybit.NewMarketDataProvider(client, bybit.ProviderConfig{
		KlineInterval:  bybit.KlineInterval(cfg.Trading.KlineInterval),
		KlineLimit:     cfg.Trading.KlineLimit,
		RequestTimeout: time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	}, botLogger)

	eng := engine.New(engine.Config{
		Symbols:      cfg.Trading.Symbols,
		Interval:     cfg.Trading.Interval(),
		ErrorBackoff: cfg.Trading.ErrorBackoff(),
	}, engine.Dependencies{
		Settings:   settings,
		Provider:   provider,
		Gateway:    gateway,
		Risk:       riskManager,
		Strategies: strategies,
		Notifier:   notifier,
		Logger:     botLogger,
	})

	server := &http.Server{
		Addr: cfg.Monitoring.ListenAddr,
		Handler: monitoring.NewServeMux(
			monitoring.NewHealthChecker(eng, 3*cfg.Trading.Interval()),
			monitoring.StatusHandler(func() interface{} { return eng.Status() }),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		botLogger.Info("Status server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			botLogger.LogError("Status server failed", err)
		}
	}()

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	statusTicker := time.NewTicker(cfg.Reporting.StatusInterval())
	defer statusTicker.Stop()

	for running := true; running; {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				reload(configFile, settings, riskManager, notifier, botLogger)
				continue
			}
			botLogger.Info("Shutdown signal received: %s", sig)
			running = false
		case <-statusTicker.C:
			status := eng.Status()
			botLogger.Status("state=%s cycles=%d value=%.2f drawdown=%.2f%% trades(1h)=%d",
				status.State, status.Cycles, status.Risk.PortfolioValue, status.Risk.CurrentDrawdown*100, status.TradesLastHour)
			reporting.PrintStatus(os.Stdout, status)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := eng.Stop(shutdownCtx); err != nil {
		botLogger.LogError("Engine stop failed", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		botLogger.LogError("Status server shutdown failed", err)
	}

	status := eng.Status()
	reporting.PrintStatus(os.Stdout, status)

	path := reporting.JournalPath(cfg.Reporting.OutputDir, time.Now())
	if err := reporting.ExportTradeJournal(path, reporting.Journal{
		Trades: eng.Trades(),
		Events: status.RecentEvents,
		Risk:   status.Risk,
	}); err != nil {
		botLogger.LogError("Trade journal export failed", err)
	} else {
		botLogger.Info("Trade journal written to %s", path)
	}

	botLogger.Info("Trading bot stopped")
	return nil
}

// reload re-reads the config file and applies the hot-reloadable settings
func reload(configFile string, settings *config.Runtime, riskManager *risk.Manager, notifier notifications.Notifier, botLogger *logger.Logger) {
	cfg, err := config.Load(configFile)
	if err != nil {
		botLogger.LogError("Config reload failed, keeping current settings", err)
		return
	}
	if err := settings.Replace(cfg.RuntimeSettings()); err != nil {
		botLogger.LogError("Runtime settings rejected", err)
		return
	}
	if err := riskManager.UpdateRiskLimits(risk.FullUpdate(cfg.Risk)); err != nil {
		botLogger.LogError("Risk limits rejected", err)
		return
	}
	if multi, ok := notifier.(*notifications.Multi); ok {
		multi.ResetBreakers()
	}
	botLogger.SetDebug(cfg.Debug)
	botLogger.Info("Configuration reloaded from %s", configFile)
}

func environment(cfg *config.Config) string {
	if cfg.Exchange.Testnet {
		return "testnet market data, paper execution"
	}
	return "mainnet market data, paper execution"
}
