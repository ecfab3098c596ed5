package domain

import "fmt"

// Signal is the action a strategy recommends.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// ParseSignal validates a signal coming from outside the process.
func ParseSignal(s string) (Signal, error) {
	switch Signal(s) {
	case SignalBuy, SignalSell, SignalHold:
		return Signal(s), nil
	}
	return "", fmt.Errorf("domain.ParseSignal: unknown signal %q", s)
}

// Side converts an actionable signal into a trade side.
// HOLD has no side.
func (s Signal) Side() (Side, bool) {
	switch s {
	case SignalBuy:
		return SideBuy, true
	case SignalSell:
		return SideSell, true
	}
	return "", false
}

// Prediction is the output of a strategy or of the external predictor.
type Prediction struct {
	Signal     Signal  `json:"signal"`
	Confidence float64 `json:"confidence"` // 0..1
	Reason     string  `json:"reason,omitempty"`
	Source     string  `json:"source,omitempty"` // strategy name or "agent"
}

// Hold builds the degenerate prediction used when there is not enough data.
func Hold(reason string) Prediction {
	return Prediction{Signal: SignalHold, Confidence: 0, Reason: reason}
}

// Actionable reports whether the prediction clears the confidence threshold
// with a BUY or SELL.
func (p Prediction) Actionable(threshold float64) bool {
	return p.Signal != SignalHold && p.Confidence > threshold
}
