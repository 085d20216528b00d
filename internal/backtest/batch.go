package backtest

// batch.go: worker pool para correr muchos replays independientes.
//
// Cada run es single-threaded y no comparte estado con los demás; sólo se
// paraleliza a nivel de run completo.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// RunMany ejecuta un replay por config sobre las mismas barras y devuelve los
// resultados en el orden de cfgs. Si ctx se cancela, los runs pendientes se
// omiten y su resultado queda vacío.
//
// Si workers <= 0 usa runtime.NumCPU().
func RunMany(ctx context.Context, bars []domain.Bar, cfgs []Config, workers int) []domain.BacktestResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, max(1, len(cfgs)))

	type work struct {
		idx int
		cfg Config
	}

	workCh := make(chan work, len(cfgs))
	results := make([]domain.BacktestResult, len(cfgs))

	// Cada worker escribe sólo en su índice: no hace falta canal de resultados.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				if ctx.Err() != nil {
					continue
				}
				results[w.idx] = Run(bars, w.cfg)
			}
		}()
	}

	for i, cfg := range cfgs {
		workCh <- work{idx: i, cfg: cfg}
	}
	close(workCh)
	wg.Wait()

	slog.Debug("batch backtest complete",
		"runs", len(cfgs),
		"bars", len(bars),
		"workers", workers,
		"cancelled", ctx.Err() != nil,
	)
	return results
}
