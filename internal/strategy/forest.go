package strategy

import (
	"math"
	"strings"

	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/alejandrodnm/fxbot/internal/features"
)

const (
	forestMinSamples = 5
	momentumLookback = 5 // momentum across a 6-sample window
	volWindow        = 20
)

// Forest is a small ensemble of decision stumps whose ballots are fused by
// Tally.
type Forest struct{}

func (Forest) Name() Name { return NameForest }
func (Forest) MinSamples() int { return forestMinSamples }

func (f Forest) Predict(prices []float64) domain.Prediction {
	if len(prices) < forestMinSamples {
		return insufficient(f.Name())
	}

	short, _ := features.SMA(prices, 3)
	medium, _ := features.SMA(prices, 8)
	long, _ := features.SMA(prices, 20)
	momentum := features.Momentum(prices, momentumLookback)
	vol := features.StdDev(prices, volWindow)

	ballots := []domain.Signal{
		band(short, medium, 0.001),
		threshold(momentum, 0.002),
		band(short, long, 0.002),
		volatilityFilter(vol, momentum),
	}
	winner, votes := Tally(ballots)

	strength := features.SafeDiv(math.Abs(short-long), long) + math.Abs(momentum)*5
	confidence := math.Min(1, float64(votes.Margin())/float64(votes.Total())+math.Min(1, strength))

	names := make([]string, len(ballots))
	for i, b := range ballots {
		names[i] = string(b)
	}
	return domain.Prediction{
		Signal:     winner,
		Confidence: features.Clamp01(confidence),
		Reason:     "rf votes:" + strings.Join(names, ","),
		Source:     string(f.Name()),
	}
}

// band votes BUY when a is more than pct above b, SELL when more than pct below.
func band(a, b, pct float64) domain.Signal {
	switch {
	case a > b*(1+pct):
		return domain.SignalBuy
	case a < b*(1-pct):
		return domain.SignalSell
	}
	return domain.SignalHold
}

func threshold(v, limit float64) domain.Signal {
	switch {
	case v > limit:
		return domain.SignalBuy
	case v < -limit:
		return domain.SignalSell
	}
	return domain.SignalHold
}

// volatilityFilter holds in a volatile market unless momentum is strong.
func volatilityFilter(vol, momentum float64) domain.Signal {
	if vol > 0.001 && math.Abs(momentum) < 0.0005 {
		return domain.SignalHold
	}
	if momentum > 0 {
		return domain.SignalBuy
	}
	return domain.SignalSell
}
