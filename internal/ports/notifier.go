package ports

import (
	"context"

	"github.com/alejandrodnm/fxbot/internal/domain"
)

// Notifier presenta al usuario el resultado de cada tick.
type Notifier interface {
	// NotifyTick muestra la señal y la ejecución (o el rechazo) del tick.
	NotifyTick(ctx context.Context, result domain.TickResult) error
}
