package ports

import (
	"context"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// TradeFeed entrega trades ejecutados en vivo, uno por llamada.
type TradeFeed interface {
	// Next bloquea hasta el próximo trade o hasta que ctx se cancele.
	Next(ctx context.Context) (domain.TickMessage, error)

	// Close libera la conexión con el broker del feed.
	Close() error
}
