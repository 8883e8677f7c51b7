package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/ducminhle1904/crypto-trading-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-trading-bot/pkg/types"
)

const MeanReversionName = "mean_reversion"

type MeanReversionConfig struct {
	LookbackPeriod int     `json:"lookback_period" yaml:"lookback_period"`
	StdThreshold   float64 `json:"std_threshold" yaml:"std_threshold"`
	MinVolumeRatio float64 `json:"min_volume_ratio" yaml:"min_volume_ratio"`
	BollingerStd   float64 `json:"bollinger_std" yaml:"bollinger_std"`
	RSIPeriod      int     `json:"rsi_period" yaml:"rsi_period"`
	MinConfidence  float64 `json:"min_confidence" yaml:"min_confidence"`
}

func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		LookbackPeriod: 20,
		StdThreshold:   1.0,
		MinVolumeRatio: 0.8,
		BollingerStd:   2,
		RSIPeriod:      13,
		MinConfidence:  0.5,
	}
}

// MeanReversion fades moves that stretch more than StdThreshold deviations from the mean
type MeanReversion struct {
	Base
	cfg MeanReversionConfig
}

func NewMeanReversion(cfg MeanReversionConfig, levels ProtectionSource) *MeanReversion {
	s := &MeanReversion{cfg: cfg}
	s.init(MeanReversionName, levels)
	return s
}

// GenerateSignal implements Strategy
func (s *MeanReversion) GenerateSignal(ctx context.Context, symbol string, snapshot types.Snapshot) (*Signal, error) {
	history := snapshot.History
	if len(history) < s.cfg.LookbackPeriod+1 {
		return nil, nil
	}

	closes := snapshot.Closes()
	price := closes[len(closes)-1]
	volume := history[len(history)-1].Volume
	if price <= 0 || volume <= 0 {
		return nil, nil
	}

	recent := closes[len(closes)-s.cfg.LookbackPeriod:]
	mean, std := indicators.MeanStdDev(recent)
	if std == 0 {
		return nil, nil
	}
	z := (price - mean) / std

	_, _, _, bbPercent := indicators.NewBollingerBands(s.cfg.LookbackPeriod, s.cfg.BollingerStd).Calculate(recent)
	bbPosition := math.Max(0, math.Min(1, bbPercent/100))

	rsiValue, err := indicators.NewRSI(s.cfg.RSIPeriod).Calculate(recent)
	if err != nil {
		rsiValue = 50
	}

	score := math.Min(math.Abs(z)/3.0, 1.0)*0.4 +
		math.Abs(bbPosition-0.5)*2*0.3 +
		math.Abs(rsiValue/100-0.5)*2*0.3
	score = math.Min(score, 1.0)
	if score < s.cfg.MinConfidence {
		return nil, nil
	}

	var volSum float64
	for _, c := range history[len(history)-s.cfg.LookbackPeriod:] {
		volSum += c.Volume
	}
	if avg := volSum / float64(s.cfg.LookbackPeriod); avg <= 0 || volume/avg < s.cfg.MinVolumeRatio {
		return nil, nil
	}

	var action TradeAction
	switch {
	case z > s.cfg.StdThreshold:
		action = ActionSell
	case z < -s.cfg.StdThreshold:
		action = ActionBuy
	default:
		return nil, nil
	}

	snapshot.Price = lastPrice(snapshot)
	sig := s.newSignal(symbol, snapshot, action, score, fmt.Sprintf("z-score %.2f from mean %.4f", z, mean))
	sig.Extras.Indicators["z_score"] = z
	sig.Extras.Indicators["bb_position"] = bbPosition
	sig.Extras.Indicators["rsi"] = rsiValue
	return sig, nil
}
