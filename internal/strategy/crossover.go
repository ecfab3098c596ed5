package strategy

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/alejandrodnm/fxbot/internal/features"
)

const (
	crossoverShort     = 3
	crossoverLong      = 10
	crossoverBand      = 0.005
	crossoverFullAfter = 50 // samples at which confidence is no longer scaled down
)

// Crossover compares a 3-sample SMA against a 10-sample SMA.
type Crossover struct{}

func (Crossover) Name() Name { return NameCrossover }
func (Crossover) MinSamples() int { return crossoverShort }

func (c Crossover) Predict(prices []float64) domain.Prediction {
	n := len(prices)
	if n < crossoverShort {
		return insufficient(c.Name())
	}

	short, _ := features.SMA(prices, crossoverShort)
	long, _ := features.SMA(prices, min(crossoverLong, n))
	diff := features.SafeDiv(short-long, long)

	base := math.Min(1, math.Abs(diff)*5)
	sampleFactor := math.Min(1, float64(n)/crossoverFullAfter)
	confidence := features.Clamp01(base * (0.4 + 0.6*sampleFactor))

	p := domain.Prediction{Confidence: confidence, Source: string(c.Name())}
	switch {
	case diff > crossoverBand:
		p.Signal = domain.SignalBuy
		p.Reason = fmt.Sprintf("short(%.4f)>long(%.4f)", short, long)
	case diff < -crossoverBand:
		p.Signal = domain.SignalSell
		p.Reason = fmt.Sprintf("short(%.4f)<long(%.4f)", short, long)
	default:
		p.Signal = domain.SignalHold
		p.Reason = "no clear crossover"
	}
	return p
}
