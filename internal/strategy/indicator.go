package strategy

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/alejandrodnm/fxbot/internal/features"
)

// IndicatorConfig tunes the RSI + moving-average agent.
type IndicatorConfig struct {
	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64
	FastMA        int
	SlowMA        int
	ATRPeriod     int
}

// DefaultIndicatorConfig returns the agent parameters used in production.
func DefaultIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		RSIPeriod:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
		FastMA:        9,
		SlowMA:        21,
		ATRPeriod:     14,
	}
}

const (
	indicatorBaseConf  = 0.6
	indicatorRSIWeight = 0.02
	indicatorTrendConf = 0.15
	indicatorMaxConf   = 0.95
	indicatorHoldConf  = 0.1
)

// Indicator trades RSI reversals and fast/slow moving-average crosses.
type Indicator struct {
	cfg IndicatorConfig
}

// NewIndicator creates the strategy with the given parameters. Zero or
// negative fields take the default value.
func NewIndicator(cfg IndicatorConfig) Indicator {
	return Indicator{cfg: cfg.withDefaults()}
}

func (c IndicatorConfig) withDefaults() IndicatorConfig {
	d := DefaultIndicatorConfig()
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = d.RSIPeriod
	}
	if c.RSIOverbought <= 0 {
		c.RSIOverbought = d.RSIOverbought
	}
	if c.RSIOversold <= 0 {
		c.RSIOversold = d.RSIOversold
	}
	if c.FastMA <= 0 {
		c.FastMA = d.FastMA
	}
	if c.SlowMA <= 0 {
		c.SlowMA = d.SlowMA
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = d.ATRPeriod
	}
	return c
}

func (Indicator) Name() Name { return NameIndicator }

func (i Indicator) MinSamples() int {
	cfg := i.cfg.withDefaults()
	return max(cfg.SlowMA, cfg.RSIPeriod) + 1
}

func (i Indicator) Predict(prices []float64) domain.Prediction {
	if len(prices) < i.MinSamples() {
		return insufficient(i.Name())
	}
	i.cfg = i.cfg.withDefaults()

	rsi := features.RSI(prices, i.cfg.RSIPeriod)
	fast := features.SMASeries(prices, i.cfg.FastMA)
	slow := features.SMASeries(prices, i.cfg.SlowMA)
	atr := features.ATR(prices, i.cfg.ATRPeriod)

	n := len(prices)
	lastRSI, prevRSI := rsi[n-1], rsi[n-2]
	lastFast, prevFast := fast[n-1], fast[n-2]
	lastSlow, prevSlow := slow[n-1], slow[n-2]

	buy := (lastRSI < i.cfg.RSIOversold && prevRSI < lastRSI) ||
		(lastFast > lastSlow && prevFast <= prevSlow)
	sell := (lastRSI > i.cfg.RSIOverbought && prevRSI > lastRSI) ||
		(lastFast < lastSlow && prevFast >= prevSlow)

	reason := fmt.Sprintf("rsi=%.1f fast=%.5f slow=%.5f atr=%.5f", lastRSI, lastFast, lastSlow, atr)
	p := domain.Prediction{Reason: reason, Source: string(i.Name())}

	switch {
	case buy:
		conf := indicatorBaseConf + (i.cfg.RSIOversold-lastRSI)*indicatorRSIWeight
		if lastFast > lastSlow {
			conf += indicatorTrendConf
		}
		p.Signal = domain.SignalBuy
		p.Confidence = features.Clamp01(math.Min(indicatorMaxConf, conf))
	case sell:
		conf := indicatorBaseConf + (lastRSI-i.cfg.RSIOverbought)*indicatorRSIWeight
		if lastFast < lastSlow {
			conf += indicatorTrendConf
		}
		p.Signal = domain.SignalSell
		p.Confidence = features.Clamp01(math.Min(indicatorMaxConf, conf))
	default:
		p.Signal = domain.SignalHold
		p.Confidence = indicatorHoldConf
	}
	return p
}
