package ports

import (
	"context"

	"github.com/alejandrodnm/fxbot/internal/domain"
)

// Predictor is an external prediction service. Its answers are untrusted:
// any failure must surface as domain.ErrCollaboratorUnavailable so the caller
// can fall back to a local strategy.
type Predictor interface {
	Predict(ctx context.Context, prices []float64, model string) (domain.Prediction, error)
}
