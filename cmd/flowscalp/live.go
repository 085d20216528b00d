package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/flowscalp/config"
	"github.com/alejandrodnm/flowscalp/internal/adapters/broker"
	"github.com/alejandrodnm/flowscalp/internal/adapters/kafka"
	"github.com/alejandrodnm/flowscalp/internal/adapters/notify"
	"github.com/alejandrodnm/flowscalp/internal/adapters/storage"
	"github.com/alejandrodnm/flowscalp/internal/application/live"
	"github.com/alejandrodnm/flowscalp/internal/ports"
)

const paperMarkInterval = time.Second

func runLive(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage, notifier *notify.Console) error {
	slog.Info("=== LIVE MODE ===",
		"sink", cfg.Live.Sink,
		"topic", cfg.Kafka.Topic,
		"brokers", cfg.Kafka.Brokers,
		"bar_interval", cfg.BarInterval(),
		"equity", cfg.Live.Equity,
	)

	feed, err := kafka.NewFeed(cfg.KafkaFeed())
	if err != nil {
		return err
	}
	defer feed.Close()

	var (
		sink  ports.OrderSink
		paper *broker.PaperSink
	)
	switch cfg.Live.Sink {
	case "bridge":
		b, err := broker.NewBridgeSink(cfg.BridgeSink())
		if err != nil {
			return err
		}
		sink = b
	case "paper":
		paper = broker.NewPaperSink(cfg.Instrument.TickSize)
		sink = paper
	default:
		return fmt.Errorf("runLive: unknown sink %q", cfg.Live.Sink)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []live.Option{live.WithNotifier(notifier), live.WithMetrics(live.NewMetrics(reg))}
	if store != nil {
		opts = append(opts, live.WithStorage(store))
	}
	engine := live.New(cfg.LiveEngine(), sink, opts...)
	for _, symbol := range cfg.Live.Symbols {
		engine.Subscribe(symbol, cfg.Instrument.TickSize, cfg.Instrument.SizeMultiplier)
	}

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if paper != nil {
		go markPaper(ctx, engine, paper, cfg.Instrument.TickSize, cfg.Instrument.TickValue)
	}

	slog.Info("live engine started, press Ctrl+C to exit")
	err = engine.Run(ctx, feed)

	for _, symbol := range engine.Symbols() {
		if closed, ferr := engine.Flatten(context.Background(), symbol); ferr != nil {
			slog.Warn("flatten failed", "symbol", symbol, "err", ferr)
		} else if closed {
			slog.Info("position flattened on shutdown", "symbol", symbol)
		}
	}
	slog.Info("live engine stopped", "skipped_messages", feed.Skipped())
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "err", err)
		}
	}()
	return srv
}

// markPaper simula los fills del sink paper con el último precio de cada
// instrumento y devuelve el P&L al motor.
func markPaper(ctx context.Context, engine *live.Engine, paper *broker.PaperSink, tickSize, tickValue float64) {
	ticker := time.NewTicker(paperMarkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, symbol := range engine.Symbols() {
			st, ok := engine.Snapshot(symbol)
			if !ok || !st.InPosition || st.LastPrice <= 0 {
				continue
			}
			for _, fill := range paper.Mark(symbol, st.LastPrice) {
				pnl := fill.Points / tickSize * tickValue * float64(fill.Order.Size)
				engine.RecordFill(symbol, pnl)
				engine.OnPositionUpdate(symbol, 0)
			}
		}
	}
}
