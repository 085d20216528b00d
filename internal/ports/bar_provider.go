package ports

import (
	"context"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// BarProvider entrega barras OHLCV normalizadas con volumen comprador/vendedor,
// en orden cronológico.
type BarProvider interface {
	LoadBars(ctx context.Context, symbol string) ([]domain.Bar, error)
}
