package strategy

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/alejandrodnm/fxbot/internal/features"
)

const (
	svmMinSamples = 5
	svmBias       = -0.02
	svmBand       = 0.01
)

// svmWeights apply to [SMA(3), SMA(10), momentum, stddev(20)].
var svmWeights = [4]float64{1.2, -1.0, 8.0, -3.0}

// SVM is a fixed-weight linear classifier with a logistic confidence.
type SVM struct{}

func (SVM) Name() Name { return NameSVM }
func (SVM) MinSamples() int { return svmMinSamples }

func (s SVM) Predict(prices []float64) domain.Prediction {
	if len(prices) < svmMinSamples {
		return insufficient(s.Name())
	}

	score := s.Score(prices)
	conf := sigmoid(math.Max(-10, math.Min(10, score*50)))

	p := domain.Prediction{Source: string(s.Name())}
	switch {
	case score > svmBand:
		p.Signal, p.Confidence = domain.SignalBuy, conf
		p.Reason = fmt.Sprintf("svm score=%.4f", score)
	case score < -svmBand:
		p.Signal, p.Confidence = domain.SignalSell, 1-conf
		p.Reason = fmt.Sprintf("svm score=%.4f", score)
	default:
		p.Signal, p.Confidence = domain.SignalHold, conf*0.5
		p.Reason = "svm neutral"
	}
	return p
}

// Score returns the raw linear score. prices must not be empty.
func (SVM) Score(prices []float64) float64 {
	f1, _ := features.SMA(prices, 3)
	f2, _ := features.SMA(prices, 10)
	f3 := features.Momentum(prices, momentumLookback)
	f4 := features.StdDev(prices, volWindow)

	score := svmBias
	for i, f := range [4]float64{f1, f2, f3, f4} {
		score += f * svmWeights[i]
	}
	return score
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
