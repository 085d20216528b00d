package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/flowscalp/config"
	"github.com/alejandrodnm/flowscalp/internal/adapters/notify"
	"github.com/alejandrodnm/flowscalp/internal/adapters/storage"
	"github.com/alejandrodnm/flowscalp/internal/backtest"
	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// runSignal recorre el histórico y muestra la señal de la última barra.
func runSignal(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage, notifier *notify.Console) error {
	bars, err := loadBars(ctx, cfg)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("runSignal: no bars for %s", cfg.Instrument.Symbol)
	}

	side, strength, price, feats := backtest.LatestSignal(bars, cfg.BacktestRun())
	notifier.PrintFeatures(cfg.Instrument.Symbol, side, strength, price, feats)

	if side == domain.SideNone || store == nil {
		return nil
	}
	rec := domain.SignalRecord{
		Symbol:    cfg.Instrument.Symbol,
		Side:      side,
		Strength:  strength,
		Reason:    feats.Reason(),
		Price:     price,
		StopPrice: feats.Float(domain.FeatSLPrice),
		Target1:   feats.Float(domain.FeatTP1Price),
		Target2:   feats.Float(domain.FeatTP2Price),
		CreatedAt: time.Now(),
	}
	if err := store.SaveSignal(ctx, rec); err != nil {
		slog.Warn("failed to save signal", "err", err)
	}
	return nil
}
