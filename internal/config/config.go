// Package config loads the bot configuration and holds the hot-reloadable settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/crypto-trading-bot/internal/risk"
	"github.com/ducminhle1904/crypto-trading-bot/internal/safety"
	"github.com/ducminhle1904/crypto-trading-bot/internal/strategy"
)

// Config is the complete configuration of the trading bot
type Config struct {
	Trading       TradingConfig      `json:"trading" yaml:"trading"`
	Signals       SignalSettings     `json:"signals" yaml:"signals"`
	EdgeFilter    EdgeSettings       `json:"edge_filter" yaml:"edge_filter"`
	Account       AccountSettings    `json:"account" yaml:"account"`
	Risk          risk.Limits        `json:"risk" yaml:"risk"`
	Strategies    StrategiesConfig   `json:"strategies" yaml:"strategies"`
	Exchange      ExchangeConfig     `json:"exchange" yaml:"exchange"`
	Notifications NotificationConfig `json:"notifications" yaml:"notifications"`
	Monitoring    MonitoringConfig   `json:"monitoring" yaml:"monitoring"`
	Reporting     ReportingConfig    `json:"reporting" yaml:"reporting"`
	Debug         bool               `json:"debug" yaml:"debug"`
}

// TradingConfig holds the control loop and paper account settings
type TradingConfig struct {
	Symbols             []string `json:"symbols" yaml:"symbols"`
	IntervalSeconds     int      `json:"interval_seconds" yaml:"interval_seconds"`
	ErrorBackoffSeconds int      `json:"error_backoff_seconds" yaml:"error_backoff_seconds"`
	InitialCapital      float64  `json:"initial_capital" yaml:"initial_capital"`
	FeeRate             float64  `json:"fee_rate" yaml:"fee_rate"`
	KlineInterval       string   `json:"kline_interval" yaml:"kline_interval"` // Bybit interval code: 1, 5, 15, 60, D
	KlineLimit          int      `json:"kline_limit" yaml:"kline_limit"`
	ValueHistory        int      `json:"value_history" yaml:"value_history"`
}

// Interval returns the cycle interval
func (t TradingConfig) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// ErrorBackoff returns the sleep after a failed cycle
func (t TradingConfig) ErrorBackoff() time.Duration {
	return time.Duration(t.ErrorBackoffSeconds) * time.Second
}

// StrategiesConfig selects and parameterises the built-in strategies
type StrategiesConfig struct {
	Enabled           []string                         `json:"enabled" yaml:"enabled"`
	Momentum          strategy.MomentumConfig          `json:"momentum" yaml:"momentum"`
	MeanReversion     strategy.MeanReversionConfig     `json:"mean_reversion" yaml:"mean_reversion"`
	TechnicalAnalysis strategy.TechnicalAnalysisConfig `json:"technical_analysis" yaml:"technical_analysis"`
}

// ExchangeConfig holds the market data venue settings
type ExchangeConfig struct {
	Name              string  `json:"name" yaml:"name"`
	APIKey            string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APISecret         string  `json:"api_secret,omitempty" yaml:"api_secret,omitempty"`
	Testnet           bool    `json:"testnet" yaml:"testnet"`
	Category          string  `json:"category" yaml:"category"` // spot, linear
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	TimeoutSeconds    int     `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// NotificationConfig holds notification settings
type NotificationConfig struct {
	Enabled       bool     `json:"enabled" yaml:"enabled"`
	TelegramToken string   `json:"telegram_token,omitempty" yaml:"telegram_token,omitempty"`
	TelegramChat  string   `json:"telegram_chat,omitempty" yaml:"telegram_chat,omitempty"`
	KafkaBrokers  []string `json:"kafka_brokers,omitempty" yaml:"kafka_brokers,omitempty"`
	KafkaTopic    string   `json:"kafka_topic,omitempty" yaml:"kafka_topic,omitempty"`
}

// MonitoringConfig holds the HTTP status surface settings
type MonitoringConfig struct {
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
}

// ReportingConfig holds console and export report settings
type ReportingConfig struct {
	OutputDir             string `json:"output_dir" yaml:"output_dir"`
	LogDir                string `json:"log_dir" yaml:"log_dir"`
	StatusIntervalSeconds int    `json:"status_interval_seconds" yaml:"status_interval_seconds"`
}

// StatusInterval returns the period of the console status report
func (r ReportingConfig) StatusInterval() time.Duration {
	return time.Duration(r.StatusIntervalSeconds) * time.Second
}

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		Trading: TradingConfig{
			Symbols:             []string{"BTCUSDT", "ETHUSDT"},
			IntervalSeconds:     60,
			ErrorBackoffSeconds: 30,
			InitialCapital:      10000,
			FeeRate:             0.001,
			KlineInterval:       "15",
			KlineLimit:          100,
			ValueHistory:        1000,
		},
		Signals:    DefaultSignalSettings(),
		EdgeFilter: DefaultEdgeSettings(),
		Account:    DefaultAccountSettings(),
		Risk:       risk.DefaultLimits(),
		Strategies: StrategiesConfig{
			Enabled:           []string{strategy.MomentumName, strategy.MeanReversionName, strategy.TechnicalAnalysisName},
			Momentum:          strategy.DefaultMomentumConfig(),
			MeanReversion:     strategy.DefaultMeanReversionConfig(),
			TechnicalAnalysis: strategy.DefaultTechnicalAnalysisConfig(),
		},
		Exchange: ExchangeConfig{
			Name:              "bybit",
			Testnet:           true,
			Category:          "spot",
			RequestsPerSecond: 5,
			TimeoutSeconds:    10,
		},
		Notifications: NotificationConfig{
			KafkaTopic: "trading-bot-events",
		},
		Monitoring: MonitoringConfig{ListenAddr: ":8080"},
		Reporting: ReportingConfig{
			OutputDir:             "reports",
			LogDir:                "logs",
			StatusIntervalSeconds: 300,
		},
	}
}

// Load reads the config file, applies defaults, environment overrides and validation.
// Bare file names are looked up in the configs/ directory.
func Load(configFile string) (*Config, error) {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	cfg, err := Parse(data, filepath.Ext(configFile))
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML or JSON by extension on top of the defaults
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse json config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}

	cfg.setDefaults()
	return cfg, nil
}

// setDefaults fills fields explicitly zeroed in the file
func (c *Config) setDefaults() {
	def := Default()

	if c.Trading.IntervalSeconds <= 0 {
		c.Trading.IntervalSeconds = def.Trading.IntervalSeconds
	}
	if c.Trading.ErrorBackoffSeconds <= 0 {
		c.Trading.ErrorBackoffSeconds = def.Trading.ErrorBackoffSeconds
	}
	if c.Trading.FeeRate == 0 {
		c.Trading.FeeRate = def.Trading.FeeRate
	}
	if c.Trading.KlineInterval == "" {
		c.Trading.KlineInterval = def.Trading.KlineInterval
	}
	if c.Trading.KlineLimit <= 0 {
		c.Trading.KlineLimit = def.Trading.KlineLimit
	}
	if c.Trading.ValueHistory <= 0 {
		c.Trading.ValueHistory = def.Trading.ValueHistory
	}
	for i, s := range c.Trading.Symbols {
		c.Trading.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	if c.EdgeFilter.Mode == "" {
		c.EdgeFilter.Mode = EdgeModeAdaptive
	}
	if c.Exchange.Name == "" {
		c.Exchange.Name = def.Exchange.Name
	}
	if c.Exchange.Category == "" {
		c.Exchange.Category = def.Exchange.Category
	}
	if c.Exchange.RequestsPerSecond <= 0 {
		c.Exchange.RequestsPerSecond = def.Exchange.RequestsPerSecond
	}
	if c.Exchange.TimeoutSeconds <= 0 {
		c.Exchange.TimeoutSeconds = def.Exchange.TimeoutSeconds
	}
	if c.Monitoring.ListenAddr == "" {
		c.Monitoring.ListenAddr = def.Monitoring.ListenAddr
	}
	if c.Reporting.OutputDir == "" {
		c.Reporting.OutputDir = def.Reporting.OutputDir
	}
	if c.Reporting.LogDir == "" {
		c.Reporting.LogDir = def.Reporting.LogDir
	}
	if c.Reporting.StatusIntervalSeconds <= 0 {
		c.Reporting.StatusIntervalSeconds = def.Reporting.StatusIntervalSeconds
	}
}

// applyEnv overrides secrets and endpoints from the environment
func (c *Config) applyEnv() {
	c.Exchange.APIKey = getEnv("BYBIT_API_KEY", c.Exchange.APIKey)
	c.Exchange.APISecret = getEnv("BYBIT_API_SECRET", c.Exchange.APISecret)
	c.Exchange.Testnet = getEnvBool("BYBIT_TESTNET", c.Exchange.Testnet)

	c.Notifications.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.Notifications.TelegramToken)
	c.Notifications.TelegramChat = getEnv("TELEGRAM_CHAT_ID", c.Notifications.TelegramChat)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Notifications.KafkaBrokers = splitList(brokers)
	}
	c.Notifications.KafkaTopic = getEnv("KAFKA_TOPIC", c.Notifications.KafkaTopic)

	c.Debug = getEnvBool("TRADING_BOT_DEBUG", c.Debug)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("at least one trading symbol is required")
	}
	validator := safety.NewValidator()
	for _, symbol := range c.Trading.Symbols {
		if err := validator.ValidateSymbol(symbol).Err(); err != nil {
			return err
		}
	}
	if err := validator.ValidateKlineInterval(c.Trading.KlineInterval).Err(); err != nil {
		return err
	}
	if c.Trading.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be greater than 0")
	}
	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 0.1 {
		return fmt.Errorf("fee rate must be in [0, 0.1)")
	}
	if err := c.Signals.Validate(); err != nil {
		return fmt.Errorf("signals: %w", err)
	}
	if err := c.EdgeFilter.Validate(); err != nil {
		return fmt.Errorf("edge_filter: %w", err)
	}
	if err := c.Account.Validate(); err != nil {
		return fmt.Errorf("account: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if len(c.Strategies.Enabled) == 0 {
		return fmt.Errorf("at least one strategy must be enabled")
	}
	for _, name := range c.Strategies.Enabled {
		switch name {
		case strategy.MomentumName, strategy.MeanReversionName, strategy.TechnicalAnalysisName:
		default:
			return fmt.Errorf("unknown strategy %q", name)
		}
	}
	if !strings.EqualFold(c.Exchange.Name, "bybit") {
		return fmt.Errorf("unsupported exchange %q", c.Exchange.Name)
	}
	if c.Notifications.Enabled && c.Notifications.TelegramToken != "" && c.Notifications.TelegramChat == "" {
		return fmt.Errorf("telegram chat id is required when a telegram token is set")
	}
	return nil
}

// RuntimeSettings extracts the hot-reloadable part of the configuration
func (c *Config) RuntimeSettings() Settings {
	return Settings{Signals: c.Signals, Edge: c.EdgeFilter, Account: c.Account}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
