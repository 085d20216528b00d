package ports

import (
	"context"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// RunStorage persiste backtests y señales evaluadas.
type RunStorage interface {
	// SaveRun persiste el resumen y el ledger de un backtest.
	SaveRun(ctx context.Context, run domain.RunRecord) error

	// GetRuns devuelve los últimos runs, el más reciente primero (sin ledger).
	GetRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// SaveSignal registra una señal y el resultado de la admisión de riesgo.
	SaveSignal(ctx context.Context, sig domain.SignalRecord) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
