package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/flowscalp/config"
	"github.com/alejandrodnm/flowscalp/internal/adapters/notify"
	"github.com/alejandrodnm/flowscalp/internal/adapters/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	backtestMode := flag.Bool("backtest", false, "replay historical bars and print metrics (default mode)")
	signalMode := flag.Bool("signal", false, "evaluate the latest bar and print its feature map")
	liveMode := flag.Bool("live", false, "consume ticks from Kafka and trade through the configured sink")
	runsMode := flag.Bool("runs", false, "list stored backtest runs")
	importMode := flag.Bool("import", false, "load the CSV at -data into the Postgres bars table")
	dataPath := flag.String("data", "", "CSV bars path (overrides backtest.data_path)")
	symbol := flag.String("symbol", "", "instrument symbol (overrides instrument.symbol)")
	source := flag.String("source", "", "bar source: csv|postgres (overrides backtest.source)")
	sweep := flag.String("sweep", "", "comma-separated min_delta values to backtest in parallel")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full tables (default: compact 1-line)")
	save := flag.Bool("save", true, "persist backtest runs and signals to SQLite")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *dataPath != "" {
		cfg.Backtest.DataPath = *dataPath
	}
	if *symbol != "" {
		cfg.Instrument.Symbol = *symbol
	}
	if *source != "" {
		cfg.Backtest.Source = *source
	}
	setupLogger(cfg.Log)

	slog.Info("flowscalp starting",
		"config", *configPath,
		"mode", cfg.Mode,
		"symbol", cfg.Instrument.Symbol,
		"live", *liveMode,
		"signal", *signalMode,
		"backtest", *backtestMode,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier := notify.NewConsole(*table)

	if *importMode {
		if err := runImport(ctx, cfg); err != nil {
			slog.Error("import failed", "err", err)
			os.Exit(1)
		}
		return
	}

	var store *storage.SQLiteStorage
	if *save || *runsMode {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
	}

	switch {
	case *runsMode:
		runs, err := store.GetRuns(ctx, 20)
		if err != nil {
			slog.Error("failed to list runs", "err", err)
			os.Exit(1)
		}
		notifier.PrintRuns(runs)
	case *liveMode:
		if err := runLive(ctx, cfg, store, notifier); err != nil {
			slog.Error("live engine exited with error", "err", err)
			os.Exit(1)
		}
	case *signalMode:
		if err := runSignal(ctx, cfg, store, notifier); err != nil {
			slog.Error("signal evaluation failed", "err", err)
			os.Exit(1)
		}
	case *sweep != "":
		if err := runSweep(ctx, cfg, *sweep, notifier); err != nil {
			slog.Error("sweep failed", "err", err)
			os.Exit(1)
		}
	default:
		if err := runBacktest(ctx, cfg, store, notifier); err != nil {
			slog.Error("backtest failed", "err", err)
			os.Exit(1)
		}
	}

	slog.Info("flowscalp stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
