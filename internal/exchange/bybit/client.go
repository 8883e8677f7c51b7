package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"golang.org/x/time/rate"

	"github.com/ducminhle1904/crypto-trading-bot/pkg/types"
)

// KlineInterval represents the time interval for kline data
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval30m KlineInterval = "30"
	Interval1h  KlineInterval = "60"
	Interval4h  KlineInterval = "240"
	Interval1d  KlineInterval = "D"
)

const (
	defaultCategory          = "spot"
	defaultRequestsPerSecond = 5
	maxKlineLimit            = 1000
)

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	// BaseURL overrides the mainnet/testnet endpoint when set
	BaseURL           string
	Category          string
	RequestsPerSecond float64
}

// Client wraps the Bybit v5 API client with request throttling and retries
type Client struct {
	httpClient *bybit_api.Client
	limiter    *rate.Limiter
	category   string
	testnet    bool
	retry      RetryConfig
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		if config.Testnet {
			baseURL = bybit_api.TESTNET
		} else {
			baseURL = bybit_api.MAINNET
		}
	}
	if config.Category == "" {
		config.Category = defaultCategory
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaultRequestsPerSecond
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		category:   config.Category,
		testnet:    config.Testnet,
		retry:      DefaultRetryConfig(),
	}
}

// GetEnvironment returns a string describing the current environment
func (c *Client) GetEnvironment() string {
	if c.testnet {
		return "testnet"
	}
	return "mainnet"
}

// GetKlines fetches up to limit candles for symbol, oldest first
func (c *Client) GetKlines(ctx context.Context, symbol string, interval KlineInterval, limit int) ([]types.OHLCV, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"interval": string(interval),
		"limit":    limit,
	}

	var klines []types.OHLCV
	err := c.withRetry(ctx, "GetKlines", func() error {
		if err := c.wait(ctx); err != nil {
			return err
		}
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
		if err != nil {
			return fmt.Errorf("failed to get klines: %w", err)
		}
		klines, err = parseKlineResponse(result)
		return err
	})
	return klines, err
}

// GetTicker fetches the 24h ticker for symbol
func (c *Client) GetTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	var ticker types.Ticker
	err := c.withRetry(ctx, "GetTicker", func() error {
		if err := c.wait(ctx); err != nil {
			return err
		}
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		if err != nil {
			return fmt.Errorf("failed to get ticker: %w", err)
		}
		ticker, err = parseTickerResponse(result)
		return err
	})
	return ticker, err
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("request throttle: %w", err)
	}
	return nil
}

// decodeResult unwraps a ServerResponse and decodes its result into out
func decodeResult(response interface{}, out interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok || serverResp == nil {
		return fmt.Errorf("invalid response type %T", response)
	}
	if err := ParseAPIError(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, out); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

// parseKlineResponse converts the newest-first kline list into oldest-first candles
func parseKlineResponse(response interface{}) ([]types.OHLCV, error) {
	var klineResult struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	}
	if err := decodeResult(response, &klineResult); err != nil {
		return nil, err
	}

	klines := make([]types.OHLCV, 0, len(klineResult.List))
	for i := len(klineResult.List) - 1; i >= 0; i-- {
		item := klineResult.List[i]
		// [startTime, open, high, low, close, volume, turnover]
		if len(item) < 6 {
			continue
		}
		klines = append(klines, types.OHLCV{
			Timestamp: time.UnixMilli(parseInt64(item[0])).UTC(),
			Open:      parseFloat64(item[1]),
			High:      parseFloat64(item[2]),
			Low:       parseFloat64(item[3]),
			Close:     parseFloat64(item[4]),
			Volume:    parseFloat64(item[5]),
		})
	}
	return klines, nil
}

func parseTickerResponse(response interface{}) (types.Ticker, error) {
	var tickerResult struct {
		List []struct {
			Symbol       string `json:"symbol"`
			LastPrice    string `json:"lastPrice"`
			PrevPrice24h string `json:"prevPrice24h"`
			Price24hPcnt string `json:"price24hPcnt"`
			HighPrice24h string `json:"highPrice24h"`
			LowPrice24h  string `json:"lowPrice24h"`
			Volume24h    string `json:"volume24h"`
			Turnover24h  string `json:"turnover24h"`
		} `json:"list"`
	}
	if err := decodeResult(response, &tickerResult); err != nil {
		return types.Ticker{}, err
	}
	if len(tickerResult.List) == 0 {
		return types.Ticker{}, fmt.Errorf("no ticker data found")
	}

	t := tickerResult.List[0]
	return types.Ticker{
		Symbol:        t.Symbol,
		Price:         parseFloat64(t.LastPrice),
		Open:          parseFloat64(t.PrevPrice24h),
		High:          parseFloat64(t.HighPrice24h),
		Low:           parseFloat64(t.LowPrice24h),
		Volume:        parseFloat64(t.Turnover24h),
		BaseVolume:    parseFloat64(t.Volume24h),
		ChangePercent: parseFloat64(t.Price24hPcnt) * 100,
	}, nil
}
