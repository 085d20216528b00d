package storage

// sqlite.go: histórico de backtests y señales.
//
// Estrategia:
//   - `runs`: una fila por backtest con las métricas resumen.
//   - `run_trades`: el ledger completo de cada run (la curva de equity no se
//     persiste, se reconstruye del ledger si hace falta).
//   - `signals`: una fila por señal accionable evaluada en vivo o con -signal,
//     incluida la razón de bloqueo del gestor de riesgo.
//   - Tiempos en unix millis para no depender del formato de fecha del driver.
//   - Prune automático al arrancar: runs > 90d, señales > 30d.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    symbol           TEXT    NOT NULL,
    bars             INTEGER NOT NULL DEFAULT 0,
    created_at       INTEGER NOT NULL,
    initial_balance  REAL    NOT NULL DEFAULT 0,
    final_balance    REAL    NOT NULL DEFAULT 0,
    total_trades     INTEGER NOT NULL DEFAULT 0,
    win_rate         REAL    NOT NULL DEFAULT 0,
    profit_factor    REAL    NOT NULL DEFAULT 0,
    max_drawdown     REAL    NOT NULL DEFAULT 0,
    max_drawdown_pct REAL    NOT NULL DEFAULT 0,
    sharpe           REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS run_trades (
    run_id      TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq         INTEGER NOT NULL,
    entry_bar   INTEGER NOT NULL,
    exit_bar    INTEGER NOT NULL,
    entry_time  INTEGER NOT NULL DEFAULT 0,
    exit_time   INTEGER NOT NULL DEFAULT 0,
    side        TEXT    NOT NULL,
    entry_price REAL    NOT NULL,
    exit_price  REAL    NOT NULL,
    size        INTEGER NOT NULL,
    pnl         REAL    NOT NULL,
    pnl_ticks   REAL    NOT NULL,
    exit_reason TEXT    NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS signals (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol      TEXT    NOT NULL,
    side        TEXT    NOT NULL,
    strength    REAL    NOT NULL DEFAULT 0,
    reason      TEXT    NOT NULL,
    price       REAL    NOT NULL DEFAULT 0,
    stop_price  REAL    NOT NULL DEFAULT 0,
    target1     REAL    NOT NULL DEFAULT 0,
    target2     REAL    NOT NULL DEFAULT 0,
    size        INTEGER NOT NULL DEFAULT 0,
    allowed     INTEGER NOT NULL DEFAULT 0,
    risk_reason TEXT    NOT NULL DEFAULT '',
    position_id TEXT    NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created   ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol, created_at DESC);
`

const (
	retentionRuns    = 90 * 24 * time.Hour
	retentionSignals = 30 * 24 * time.Hour
)

// SQLiteStorage implementa ports.RunStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveRun persiste el resumen del run y su ledger en una transacción.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run domain.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("storage.SaveRun: empty run id")
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	r := run.Result

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(id, symbol, bars, created_at, initial_balance, final_balance,
			 total_trades, win_rate, profit_factor, max_drawdown, max_drawdown_pct, sharpe)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.Bars, created.UnixMilli(), r.InitialBalance, r.FinalBalance,
		r.TotalTrades, r.WinRate, r.ProfitFactor, r.MaxDrawdown, r.MaxDrawdownPct, r.SharpeRatio,
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run %s: %w", run.ID, err)
	}

	if len(r.Trades) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_trades
				(run_id, seq, entry_bar, exit_bar, entry_time, exit_time, side,
				 entry_price, exit_price, size, pnl, pnl_ticks, exit_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("storage.SaveRun: prepare: %w", err)
		}
		defer stmt.Close()

		for i, t := range r.Trades {
			if _, err := stmt.ExecContext(ctx,
				run.ID, i, t.EntryBar, t.ExitBar, unixMillis(t.EntryTime), unixMillis(t.ExitTime),
				t.Side.String(), t.EntryPrice, t.ExitPrice, t.Size, t.PnL, t.PnLTicks, string(t.ExitReason),
			); err != nil {
				return fmt.Errorf("storage.SaveRun: insert trade %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// GetRuns devuelve los últimos limit runs, el más reciente primero. No carga el ledger.
func (s *SQLiteStorage) GetRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, bars, created_at, initial_balance, final_balance,
		       total_trades, win_rate, profit_factor, max_drawdown, max_drawdown_pct, sharpe
		FROM runs
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var run domain.RunRecord
		var created int64
		r := &run.Result
		if err := rows.Scan(
			&run.ID, &run.Symbol, &run.Bars, &created, &r.InitialBalance, &r.FinalBalance,
			&r.TotalTrades, &r.WinRate, &r.ProfitFactor, &r.MaxDrawdown, &r.MaxDrawdownPct, &r.SharpeRatio,
		); err != nil {
			return nil, fmt.Errorf("storage.GetRuns: scan row: %w", err)
		}
		run.CreatedAt = time.UnixMilli(created).UTC()
		r.RunID = run.ID
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRunTrades devuelve el ledger de un run en orden de ejecución.
func (s *SQLiteStorage) GetRunTrades(ctx context.Context, runID string) ([]domain.BacktestTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_bar, exit_bar, entry_time, exit_time, side, entry_price, exit_price,
		       size, pnl, pnl_ticks, exit_reason
		FROM run_trades
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRunTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.BacktestTrade
	for rows.Next() {
		var t domain.BacktestTrade
		var entryMs, exitMs int64
		var side, reason string
		if err := rows.Scan(
			&t.EntryBar, &t.ExitBar, &entryMs, &exitMs, &side, &t.EntryPrice, &t.ExitPrice,
			&t.Size, &t.PnL, &t.PnLTicks, &reason,
		); err != nil {
			return nil, fmt.Errorf("storage.GetRunTrades: scan row: %w", err)
		}
		t.EntryTime = fromMillis(entryMs)
		t.ExitTime = fromMillis(exitMs)
		t.Side = domain.ParseSide(side)
		t.ExitReason = domain.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoffRuns := time.Now().Add(-retentionRuns).UnixMilli()
	cutoffSignals := time.Now().Add(-retentionSignals).UnixMilli()
	s.db.ExecContext(ctx, `DELETE FROM run_trades WHERE run_id IN (SELECT id FROM runs WHERE created_at < ?)`, cutoffRuns)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoffRuns)
	s.db.ExecContext(ctx, `DELETE FROM signals WHERE created_at < ?`, cutoffSignals)
}

func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
