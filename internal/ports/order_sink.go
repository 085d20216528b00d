package ports

import (
	"context"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// OrderSink envía órdenes bracket a un broker (paper o real).
type OrderSink interface {
	// PlaceBracket envía entrada + stop + targets y devuelve el ID de posición.
	PlaceBracket(ctx context.Context, order domain.BracketOrder) (string, error)

	// Close cierra la posición. Devuelve false si ya estaba cerrada.
	Close(ctx context.Context, positionID string) (bool, error)
}
