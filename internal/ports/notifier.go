package ports

import (
	"context"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// Notifier presenta señales al usuario.
type Notifier interface {
	// NotifySignal muestra una señal evaluada.
	// En la implementación de consola, imprime una línea formateada.
	NotifySignal(ctx context.Context, sig domain.SignalRecord) error
}
