package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/flowscalp/config"
	"github.com/alejandrodnm/flowscalp/internal/adapters/csvbars"
	"github.com/alejandrodnm/flowscalp/internal/adapters/notify"
	"github.com/alejandrodnm/flowscalp/internal/adapters/postgres"
	"github.com/alejandrodnm/flowscalp/internal/adapters/storage"
	"github.com/alejandrodnm/flowscalp/internal/backtest"
	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// loadBars lee las barras del origen configurado (csv | postgres).
func loadBars(ctx context.Context, cfg *config.Config) ([]domain.Bar, error) {
	symbol := cfg.Instrument.Symbol
	switch cfg.Backtest.Source {
	case "postgres":
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("loadBars: postgres source needs postgres.url")
		}
		pg, err := postgres.NewBarStore(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		return pg.LoadBars(ctx, symbol)
	case "csv", "":
		if cfg.Backtest.DataPath == "" {
			return nil, fmt.Errorf("loadBars: csv source needs -data or backtest.data_path")
		}
		return csvbars.New(cfg.Backtest.DataPath, cfg.ScaleBacktestVolume()).LoadBars(ctx, symbol)
	default:
		return nil, fmt.Errorf("loadBars: unknown source %q", cfg.Backtest.Source)
	}
}

func runBacktest(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage, notifier *notify.Console) error {
	slog.Info("=== BACKTEST MODE: order flow replay ===",
		"symbol", cfg.Instrument.Symbol,
		"source", cfg.Backtest.Source,
		"data", cfg.Backtest.DataPath,
	)

	bars, err := loadBars(ctx, cfg)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		slog.Warn("no bars loaded, nothing to backtest")
		return nil
	}

	start := time.Now()
	res := backtest.Run(bars, cfg.BacktestRun())
	res.RunID = uuid.NewString()
	slog.Info("backtest complete",
		"bars", len(bars),
		"trades", res.TotalTrades,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	notifier.PrintBacktest(res, cfg.Backtest.TradesShown)

	if store != nil {
		run := domain.RunRecord{
			ID:        res.RunID,
			Symbol:    cfg.Instrument.Symbol,
			Bars:      len(bars),
			Result:    res,
			CreatedAt: time.Now(),
		}
		if err := store.SaveRun(ctx, run); err != nil {
			slog.Warn("failed to save run", "run", res.RunID, "err", err)
		}
	}
	return nil
}

// runSweep corre un backtest por cada min_delta de la lista en paralelo.
func runSweep(ctx context.Context, cfg *config.Config, list string, notifier *notify.Console) error {
	deltas, err := parseFloats(list)
	if err != nil {
		return fmt.Errorf("runSweep: %w", err)
	}

	bars, err := loadBars(ctx, cfg)
	if err != nil {
		return err
	}

	base := cfg.BacktestRun()
	cfgs := make([]backtest.Config, len(deltas))
	for i, d := range deltas {
		cfgs[i] = base
		cfgs[i].Generator.MinDelta = d
	}

	results := backtest.RunMany(ctx, bars, cfgs, 0)
	for i, res := range results {
		fmt.Printf("min_delta=%-8.0f ", deltas[i])
		notifier.PrintBacktest(res, 0)
	}
	return ctx.Err()
}

// runImport vuelca el CSV de -data en la tabla bars de Postgres.
func runImport(ctx context.Context, cfg *config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("runImport: postgres.url is empty")
	}
	bars, err := csvbars.New(cfg.Backtest.DataPath, false).LoadBars(ctx, cfg.Instrument.Symbol)
	if err != nil {
		return err
	}

	pg, err := postgres.NewBarStore(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := pg.InsertBars(ctx, cfg.Instrument.Symbol, bars); err != nil {
		return err
	}
	slog.Info("bars imported", "symbol", cfg.Instrument.Symbol, "bars", len(bars))
	return nil
}

func parseFloats(list string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", part, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	return out, nil
}
