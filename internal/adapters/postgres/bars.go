// Package postgres implementa ports.BarProvider sobre una tabla de barras en Postgres.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema esperado. Lo aplica EnsureSchema; en producción la tabla la llena
// el pipeline de ingesta.
const Schema = `
CREATE TABLE IF NOT EXISTS bars (
    symbol      TEXT             NOT NULL,
    ts          TIMESTAMPTZ      NOT NULL,
    open        DOUBLE PRECISION NOT NULL,
    high        DOUBLE PRECISION NOT NULL,
    low         DOUBLE PRECISION NOT NULL,
    close       DOUBLE PRECISION NOT NULL,
    buy_volume  DOUBLE PRECISION NOT NULL DEFAULT 0,
    sell_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (symbol, ts)
);`

const selectBars = `
SELECT ts, open, high, low, close, buy_volume, sell_volume
FROM bars
WHERE symbol = $1
ORDER BY ts`

const selectBarsRange = `
SELECT ts, open, high, low, close, buy_volume, sell_volume
FROM bars
WHERE symbol = $1 AND ts >= $2 AND ts < $3
ORDER BY ts`

// BarStore lee barras con un pool pgx.
type BarStore struct {
	pool *pgxpool.Pool
}

// NewBarStore crea el pool. pgxpool conecta en diferido: los errores de red
// aparecen en la primera consulta.
func NewBarStore(ctx context.Context, url string, maxConns int32) (*BarStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewBarStore: parse url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewBarStore: create pool: %w", err)
	}
	return &BarStore{pool: pool}, nil
}

// EnsureSchema crea la tabla bars si no existe.
func (s *BarStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres.EnsureSchema: %w", err)
	}
	return nil
}

// LoadBars devuelve todas las barras de symbol en orden cronológico.
func (s *BarStore) LoadBars(ctx context.Context, symbol string) ([]domain.Bar, error) {
	rows, err := s.pool.Query(ctx, selectBars, symbol)
	if err != nil {
		return nil, fmt.Errorf("postgres.LoadBars: query %s: %w", symbol, err)
	}
	bars, err := collectBars(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres.LoadBars: %s: %w", symbol, err)
	}
	slog.Debug("bars loaded from postgres", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

// LoadRange devuelve las barras de symbol con from <= ts < to.
func (s *BarStore) LoadRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	rows, err := s.pool.Query(ctx, selectBarsRange, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres.LoadRange: query %s: %w", symbol, err)
	}
	bars, err := collectBars(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres.LoadRange: %s: %w", symbol, err)
	}
	return bars, nil
}

// InsertBars hace upsert de barras en un batch.
func (s *BarStore) InsertBars(ctx context.Context, symbol string, bars []domain.Bar) error {
	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(`
			INSERT INTO bars (symbol, ts, open, high, low, close, buy_volume, sell_volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, ts) DO UPDATE SET
				open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
				close = EXCLUDED.close, buy_volume = EXCLUDED.buy_volume,
				sell_volume = EXCLUDED.sell_volume`,
			symbol, b.Time, b.Open, b.High, b.Low, b.Close, b.BuyVolume, b.SellVolume)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres.InsertBars: %s: %w", symbol, err)
	}
	return nil
}

// Close cierra el pool.
func (s *BarStore) Close() {
	s.pool.Close()
}

func collectBars(rows pgx.Rows) ([]domain.Bar, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Bar, error) {
		var b domain.Bar
		err := row.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.BuyVolume, &b.SellVolume)
		b.Time = b.Time.UTC()
		return b, err
	})
}
