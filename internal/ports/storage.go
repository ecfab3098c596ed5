package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/fxbot/internal/domain"
)

// AccountStore persiste el estado completo de cada cuenta.
type AccountStore interface {
	// SaveAccount hace upsert del portfolio, el estado de riesgo y los trades.
	SaveAccount(ctx context.Context, state domain.AccountState) error

	// LoadAccount devuelve el estado guardado; ok=false si la cuenta no existe.
	LoadAccount(ctx context.Context, accountID string) (state domain.AccountState, ok bool, err error)

	// GetDailies devuelve los resúmenes diarios de la cuenta en el rango dado.
	GetDailies(ctx context.Context, accountID string, from, to time.Time) ([]domain.DailySummary, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
