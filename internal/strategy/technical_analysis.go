package strategy

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ducminhle1904/crypto-trading-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-trading-bot/pkg/types"
)

const TechnicalAnalysisName = "technical_analysis"

type TechnicalAnalysisConfig struct {
	SMAShort      int     `json:"sma_short" yaml:"sma_short"`
	SMALong       int     `json:"sma_long" yaml:"sma_long"`
	RSIPeriod     int     `json:"rsi_period" yaml:"rsi_period"`
	RSIOversold   float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
	MACDFast      int     `json:"macd_fast" yaml:"macd_fast"`
	MACDSlow      int     `json:"macd_slow" yaml:"macd_slow"`
	MACDSignal    int     `json:"macd_signal" yaml:"macd_signal"`
	BBPeriod      int     `json:"bb_period" yaml:"bb_period"`
	BBStd         float64 `json:"bb_std" yaml:"bb_std"`
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
	MinVolume     float64 `json:"min_volume" yaml:"min_volume"` // 24h quote-currency turnover
}

func DefaultTechnicalAnalysisConfig() TechnicalAnalysisConfig {
	return TechnicalAnalysisConfig{
		SMAShort:      10,
		SMALong:       30,
		RSIPeriod:     14,
		RSIOversold:   30,
		RSIOverbought: 70,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		BBPeriod:      20,
		BBStd:         2,
		MinConfidence: 0.7,
		MinVolume:     100000,
	}
}

// TechnicalAnalysis sums weighted votes from SMA trend, RSI, MACD and Bollinger position
type TechnicalAnalysis struct {
	Base
	cfg TechnicalAnalysisConfig
}

func NewTechnicalAnalysis(cfg TechnicalAnalysisConfig, levels ProtectionSource) *TechnicalAnalysis {
	s := &TechnicalAnalysis{cfg: cfg}
	s.init(TechnicalAnalysisName, levels)
	return s
}

type vote struct {
	action TradeAction
	weight float64
	reason string
}

// GenerateSignal implements Strategy
func (s *TechnicalAnalysis) GenerateSignal(ctx context.Context, symbol string, snapshot types.Snapshot) (*Signal, error) {
	price := lastPrice(snapshot)
	if price <= 0 || snapshot.Volume < s.cfg.MinVolume {
		return nil, nil
	}

	closes := snapshot.Closes()
	if len(closes) < s.cfg.SMALong || len(closes) < s.cfg.BBPeriod {
		return nil, nil
	}

	smaShort, err := indicators.NewSMA(s.cfg.SMAShort).Calculate(closes)
	if err != nil {
		return nil, fmt.Errorf("sma short: %w", err)
	}
	smaLong, err := indicators.NewSMA(s.cfg.SMALong).Calculate(closes)
	if err != nil {
		return nil, fmt.Errorf("sma long: %w", err)
	}

	var votes []vote
	priceVsShort := (price - smaShort) / smaShort
	if smaShort > smaLong && priceVsShort > 0.01 {
		votes = append(votes, vote{ActionBuy, 0.3, "SMA bullish"})
	}
	if smaShort < smaLong && priceVsShort < -0.01 {
		votes = append(votes, vote{ActionSell, 0.3, "SMA bearish"})
	}

	rsi := indicators.NewRSI(s.cfg.RSIPeriod).WithLevels(s.cfg.RSIOversold, s.cfg.RSIOverbought)
	if v, err := rsi.Calculate(closes); err == nil {
		if rsi.IsOversold(v) {
			votes = append(votes, vote{ActionBuy, 0.4, "RSI oversold"})
		} else if rsi.IsOverbought(v) {
			votes = append(votes, vote{ActionSell, 0.4, "RSI overbought"})
		}
	}

	if line, signal, hist, err := indicators.NewMACD(s.cfg.MACDFast, s.cfg.MACDSlow, s.cfg.MACDSignal).Calculate(closes); err == nil {
		if line > signal && hist > 0 {
			votes = append(votes, vote{ActionBuy, 0.3, "MACD bullish"})
		} else if line < signal && hist < 0 {
			votes = append(votes, vote{ActionSell, 0.3, "MACD bearish"})
		}
	}

	upper, _, lower, _ := indicators.NewBollingerBands(s.cfg.BBPeriod, s.cfg.BBStd).Calculate(closes)
	if upper > lower {
		position := (price - lower) / (upper - lower)
		if position < 0.1 {
			votes = append(votes, vote{ActionBuy, 0.2, "BB lower band"})
		} else if position > 0.9 {
			votes = append(votes, vote{ActionSell, 0.2, "BB upper band"})
		}
	}

	if volumeRatio(snapshot.History) > 1.5 {
		for i := range votes {
			votes[i].weight *= 1.2
			votes[i].reason += " + volume"
		}
	}

	var buy, sell float64
	var buyReasons, sellReasons []string
	for _, v := range votes {
		if v.action == ActionBuy {
			buy += v.weight
			buyReasons = append(buyReasons, v.reason)
		} else {
			sell += v.weight
			sellReasons = append(sellReasons, v.reason)
		}
	}

	snapshot.Price = price
	var sig *Signal
	switch {
	case buy > sell && buy > s.cfg.MinConfidence:
		sig = s.newSignal(symbol, snapshot, ActionBuy, math.Min(buy, 1.0), strings.Join(buyReasons, ", "))
	case sell > buy && sell > s.cfg.MinConfidence:
		sig = s.newSignal(symbol, snapshot, ActionSell, math.Min(sell, 1.0), strings.Join(sellReasons, ", "))
	default:
		return nil, nil
	}
	sig.Extras.Indicators["sma_short"] = smaShort
	sig.Extras.Indicators["sma_long"] = smaLong
	return sig, nil
}
