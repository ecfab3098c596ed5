// Package features computes technical indicators over a price series.
// All functions are pure; prices are ordered oldest first.
package features

import (
	"errors"
	"math"
)

// Epsilon replaces a zero denominator. Downstream signals depend on this
// exact value, so it must not be tuned.
const Epsilon = 1e-4

var (
	ErrInsufficientData = errors.New("features: insufficient data")
	ErrInvalidPrice     = errors.New("features: price must be positive and finite")
)

// Validate returns ErrInvalidPrice if any price is not a positive finite number.
func Validate(prices []float64) error {
	for _, p := range prices {
		if !validPrice(p) {
			return ErrInvalidPrice
		}
	}
	return nil
}

// SMA returns the mean of the last min(window, n) values. A window <= 0
// covers the whole series.
func SMA(prices []float64, window int) (float64, error) {
	if len(prices) == 0 {
		return 0, ErrInsufficientData
	}
	return mean(tail(prices, window)), nil
}

// SMASeries returns the rolling SMA aligned with prices. Entries with fewer
// than period samples behind them are 0.
func SMASeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// StdDev returns the population standard deviation of the last
// min(window, n) values, or 0 for an empty series.
func StdDev(prices []float64, window int) float64 {
	w := tail(prices, window)
	if len(w) == 0 {
		return 0
	}
	m := mean(w)
	v := 0.0
	for _, x := range w {
		v += (x - m) * (x - m)
	}
	return math.Sqrt(v / float64(len(w)))
}

// Momentum returns the relative change between the last value and the value
// lookback steps before it. lookback is clamped to [0, n-1].
func Momentum(prices []float64, lookback int) float64 {
	n := len(prices)
	if n < 2 {
		return 0
	}
	k := min(max(lookback, 0), n-1)
	base := prices[n-1-k]
	if base == 0 {
		return 0
	}
	return (prices[n-1] - base) / base
}

// RSI returns the Wilder RSI aligned with prices. The first period entries
// are neutral (50); a series shorter than period+1 is entirely neutral.
func RSI(prices []float64, period int) []float64 {
	n := len(prices)
	out := make([]float64, n)
	for i := range out {
		out[i] = 50
	}
	if period <= 0 || n < period+1 {
		return out
	}

	gains := make([]float64, n-1)
	losses := make([]float64, n-1)
	for i := 1; i < n; i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			gains[i-1] = d
		} else {
			losses[i-1] = -d
		}
	}

	avgGain := mean(gains[:period])
	avgLoss := mean(losses[:period])
	p := float64(period)
	for i := period; i < n; i++ {
		avgGain = (avgGain*(p-1) + gains[i-1]) / p
		avgLoss = (avgLoss*(p-1) + losses[i-1]) / p
		rs := avgGain / nonZero(avgLoss)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// ATR returns the true range of the last period steps divided by period.
// With a single price series the true range of a step is |P[i] - P[i-1]|.
// A series shorter than period is still divided by period, so ATR is damped
// until the window fills.
func ATR(prices []float64, period int) float64 {
	n := len(prices)
	if n < 2 {
		return 0
	}
	if period <= 0 {
		period = n - 1
	}
	sum := 0.0
	for i := max(1, n-period); i < n; i++ {
		sum += math.Max(prices[i], prices[i-1]) - math.Min(prices[i], prices[i-1])
	}
	return sum / float64(period)
}

// SafeDiv divides by den, substituting Epsilon for a zero denominator.
func SafeDiv(num, den float64) float64 {
	return num / nonZero(den)
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func tail(xs []float64, window int) []float64 {
	if window <= 0 || window > len(xs) {
		return xs
	}
	return xs[len(xs)-window:]
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func nonZero(v float64) float64 {
	if v == 0 {
		return Epsilon
	}
	return v
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
