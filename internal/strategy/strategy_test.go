package strategy_test

import (
	"math"
	"testing"

	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/alejandrodnm/fxbot/internal/features"
	"github.com/alejandrodnm/fxbot/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func TestRegistry_Default(t *testing.T) {
	r := strategy.Default()
	assert.Equal(t, []strategy.Name{"crossover", "forest", "indicator", "svm"}, r.Names())

	s, err := r.Lookup("rf")
	require.NoError(t, err)
	assert.Equal(t, strategy.NameForest, s.Name())

	s, err = r.Lookup("sma")
	require.NoError(t, err)
	assert.Equal(t, strategy.NameCrossover, s.Name())

	_, err = r.Lookup("lstm")
	assert.Error(t, err)
}

func TestStrategies_ShortSeriesHoldsWithZeroConfidence(t *testing.T) {
	for _, s := range strategy.Default() {
		for n := 0; n < s.MinSamples(); n++ {
			p := s.Predict(flat(1.1, n))
			assert.Equal(t, domain.SignalHold, p.Signal, "%s n=%d", s.Name(), n)
			assert.Zero(t, p.Confidence, "%s n=%d", s.Name(), n)
		}
	}
}

// ─── Crossover ──────────────────────────────────────────────────────────────

func TestCrossover_SmallDivergenceHolds(t *testing.T) {
	prices := []float64{1.000, 1.001, 1.002, 1.003, 1.010}

	short, _ := features.SMA(prices, 3)
	long, _ := features.SMA(prices, 10)
	assert.InDelta(t, 1.005, short, 1e-9)
	assert.InDelta(t, 1.0032, long, 1e-9)

	// diff ≈ 0.0018 queda dentro de la banda de 0.5%
	p := strategy.Crossover{}.Predict(prices)
	assert.Equal(t, domain.SignalHold, p.Signal)
	assert.Greater(t, p.Confidence, 0.0)
	diff := (short - long) / long
	assert.InDelta(t, math.Abs(diff)*5*(0.4+0.6*5.0/50), p.Confidence, 1e-9)
}

func TestCrossover_Breakout(t *testing.T) {
	prices := []float64{1, 1, 1, 1, 1, 1, 1, 1.05, 1.06, 1.07}

	p := strategy.Crossover{}.Predict(prices)
	require.Equal(t, domain.SignalBuy, p.Signal)

	diff := (1.06 - 1.018) / 1.018
	assert.InDelta(t, diff*5*(0.4+0.6*10.0/50), p.Confidence, 1e-9)
	assert.Contains(t, p.Reason, "short(")
	assert.Equal(t, "crossover", p.Source)
}

func TestCrossover_Breakdown(t *testing.T) {
	prices := []float64{1, 1, 1, 1, 1, 1, 1, 0.95, 0.94, 0.93}
	p := strategy.Crossover{}.Predict(prices)
	assert.Equal(t, domain.SignalSell, p.Signal)
	assert.Greater(t, p.Confidence, 0.0)
}

// ─── Forest ─────────────────────────────────────────────────────────────────

func TestTally_TieGoesToLaterEntry(t *testing.T) {
	B, S, H := domain.SignalBuy, domain.SignalSell, domain.SignalHold
	tests := []struct {
		name    string
		ballots []domain.Signal
		want    domain.Signal
	}{
		{"buy majority", []domain.Signal{B, B, S}, B},
		{"buy sell tie", []domain.Signal{B, B, S, S}, S},
		{"buy hold tie", []domain.Signal{B, H}, H},
		{"three way tie", []domain.Signal{B, S, H}, H},
		{"hold majority", []domain.Signal{S, H, H}, H},
		{"sell majority", []domain.Signal{S, S, B, H}, S},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, votes := strategy.Tally(tt.ballots)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.ballots), votes.Total())
		})
	}
}

func TestForest_StrongUptrend(t *testing.T) {
	prices := make([]float64, 10)
	for i := range prices {
		prices[i] = 1 + float64(i)*0.01
	}

	p := strategy.Forest{}.Predict(prices)
	assert.Equal(t, domain.SignalBuy, p.Signal)
	assert.Equal(t, 1.0, p.Confidence)
	assert.Equal(t, "rf votes:BUY,BUY,BUY,BUY", p.Reason)
}

func TestForest_FlatMarketHolds(t *testing.T) {
	p := strategy.Forest{}.Predict(flat(1.0, 10))
	assert.Equal(t, domain.SignalHold, p.Signal)
	// 3 HOLD + 1 SELL → margen negativo, confianza recortada a 0
	assert.Equal(t, "rf votes:HOLD,HOLD,HOLD,SELL", p.Reason)
	assert.Zero(t, p.Confidence)
}

// ─── SVM ────────────────────────────────────────────────────────────────────

func TestSVM_Buy(t *testing.T) {
	prices := flat(1.0, 20)
	s := strategy.SVM{}
	assert.InDelta(t, 0.18, s.Score(prices), 1e-9)

	p := s.Predict(prices)
	assert.Equal(t, domain.SignalBuy, p.Signal)
	assert.InDelta(t, sigmoid(9), p.Confidence, 1e-9)
}

func TestSVM_Sell(t *testing.T) {
	p := strategy.SVM{}.Predict(flat(0.01, 20))
	assert.Equal(t, domain.SignalSell, p.Signal)
	assert.InDelta(t, 1-sigmoid(-0.9), p.Confidence, 1e-9)
}

func TestSVM_Neutral(t *testing.T) {
	p := strategy.SVM{}.Predict(flat(0.1, 20))
	assert.Equal(t, domain.SignalHold, p.Signal)
	assert.InDelta(t, 0.25, p.Confidence, 1e-9)
	assert.Equal(t, "svm neutral", p.Reason)
}

// ─── Indicator ──────────────────────────────────────────────────────────────

func TestIndicator_MinSamples(t *testing.T) {
	s := strategy.NewIndicator(strategy.DefaultIndicatorConfig())
	assert.Equal(t, 22, s.MinSamples())
}

func TestIndicator_ZeroConfigUsesDefaults(t *testing.T) {
	for _, s := range []strategy.Indicator{strategy.NewIndicator(strategy.IndicatorConfig{}), {}} {
		assert.Equal(t, 22, s.MinSamples())
		assert.NotPanics(t, func() { s.Predict([]float64{1.0}) })
		assert.Equal(t, domain.SignalHold, s.Predict(flat(1.0, 30)).Signal)
	}
}

func TestIndicator_OversoldBounce(t *testing.T) {
	prices := make([]float64, 0, 31)
	for i := 0; i < 30; i++ {
		prices = append(prices, 2.0-0.01*float64(i))
	}
	prices = append(prices, prices[29]+0.001)

	p := strategy.NewIndicator(strategy.DefaultIndicatorConfig()).Predict(prices)
	assert.Equal(t, domain.SignalBuy, p.Signal)
	assert.InDelta(t, 0.95, p.Confidence, 1e-9)
	assert.Contains(t, p.Reason, "atr=")
}

func TestIndicator_GoldenCross(t *testing.T) {
	prices := append(flat(1.0, 30), 1.01)

	p := strategy.NewIndicator(strategy.DefaultIndicatorConfig()).Predict(prices)
	assert.Equal(t, domain.SignalBuy, p.Signal)
	// RSI sobrecomprado tras el salto: la confianza queda recortada a [0,1]
	assert.GreaterOrEqual(t, p.Confidence, 0.0)
	assert.LessOrEqual(t, p.Confidence, 1.0)
}

func TestIndicator_FlatHolds(t *testing.T) {
	p := strategy.NewIndicator(strategy.DefaultIndicatorConfig()).Predict(flat(1.0, 30))
	assert.Equal(t, domain.SignalHold, p.Signal)
	assert.InDelta(t, 0.1, p.Confidence, 1e-12)
}
