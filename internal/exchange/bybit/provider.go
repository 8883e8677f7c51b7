package bybit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ducminhle1904/crypto-trading-bot/internal/logger"
	"github.com/ducminhle1904/crypto-trading-bot/pkg/types"
)

// MarketAPI is the part of the Bybit client the provider reads from
type MarketAPI interface {
	GetTicker(ctx context.Context, symbol string) (types.Ticker, error)
	GetKlines(ctx context.Context, symbol string, interval KlineInterval, limit int) ([]types.OHLCV, error)
}

// ProviderConfig selects the candle history attached to each snapshot
type ProviderConfig struct {
	KlineInterval KlineInterval
	KlineLimit    int
	// RequestTimeout bounds the fetches for one symbol; zero means no bound
	RequestTimeout time.Duration
}

// MarketDataProvider builds per-symbol snapshots from Bybit tickers and klines
type MarketDataProvider struct {
	api    MarketAPI
	cfg    ProviderConfig
	logger *logger.Logger
}

// NewMarketDataProvider creates a provider over api
func NewMarketDataProvider(api MarketAPI, cfg ProviderConfig, log *logger.Logger) *MarketDataProvider {
	if cfg.KlineInterval == "" {
		cfg.KlineInterval = Interval15m
	}
	if cfg.KlineLimit <= 0 {
		cfg.KlineLimit = 100
	}
	if log == nil {
		log = logger.Nop()
	}
	return &MarketDataProvider{api: api, cfg: cfg, logger: log}
}

// GetLatestData fetches a snapshot per symbol. Symbols whose ticker cannot be
// read are omitted; an error is returned only when no symbol could be read.
// A failed history fetch leaves the snapshot without history.
func (p *MarketDataProvider) GetLatestData(ctx context.Context, symbols []string, includeHistory bool) (map[string]types.Snapshot, error) {
	out := make(map[string]types.Snapshot, len(symbols))
	var errs []error

	for _, symbol := range symbols {
		snap, err := p.fetch(ctx, symbol, includeHistory)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			if IsAuthenticationError(err) {
				// every remaining symbol would be refused the same way
				p.logger.Error("Bybit rejected the API credentials: %v", err)
				break
			}
			p.logger.Warning("Ticker for %s unavailable: %v", symbol, err)
			continue
		}
		out[symbol] = snap
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("no market data: %w", errors.Join(errs...))
	}
	return out, nil
}

func (p *MarketDataProvider) fetch(ctx context.Context, symbol string, includeHistory bool) (types.Snapshot, error) {
	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}

	ticker, err := p.api.GetTicker(ctx, symbol)
	if err != nil {
		return types.Snapshot{}, err
	}
	if ticker.Symbol == "" {
		ticker.Symbol = symbol
	}

	snap := types.Snapshot{Ticker: ticker}
	if !includeHistory {
		return snap, nil
	}

	history, err := p.api.GetKlines(ctx, symbol, p.cfg.KlineInterval, p.cfg.KlineLimit)
	if err != nil {
		p.logger.Warning("Kline history for %s unavailable: %v", symbol, err)
		return snap, nil
	}
	snap.History = history
	if n := len(history); n > 0 && snap.Timestamp.IsZero() {
		snap.Timestamp = history[n-1].Timestamp
	}
	return snap, nil
}
