package ports

import "context"

// PriceSource exposes the bounded trailing window of a pair, oldest first.
type PriceSource interface {
	Prices(ctx context.Context, pair string) ([]float64, error)
}
