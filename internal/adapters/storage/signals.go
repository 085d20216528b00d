package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// SaveSignal registra una señal evaluada y el veredicto de riesgo.
func (s *SQLiteStorage) SaveSignal(ctx context.Context, sig domain.SignalRecord) error {
	created := sig.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	allowed := 0
	if sig.Allowed {
		allowed = 1
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO signals
			(symbol, side, strength, reason, price, stop_price, target1, target2,
			 size, allowed, risk_reason, position_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.Symbol, sig.Side.String(), sig.Strength, sig.Reason, sig.Price,
		sig.StopPrice, sig.Target1, sig.Target2, sig.Size, allowed,
		sig.RiskReason, sig.PositionID, created.UnixMilli(),
	); err != nil {
		return fmt.Errorf("storage.SaveSignal: insert %s: %w", sig.Symbol, err)
	}
	return nil
}

// GetSignals devuelve las últimas señales de symbol ("" = todos), la más reciente primero.
func (s *SQLiteStorage) GetSignals(ctx context.Context, symbol string, limit int) ([]domain.SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, strength, reason, price, stop_price, target1, target2,
		       size, allowed, risk_reason, position_id, created_at
		FROM signals
		WHERE ? = '' OR symbol = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetSignals: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SignalRecord
	for rows.Next() {
		var sig domain.SignalRecord
		var side string
		var allowed int
		var created int64
		if err := rows.Scan(
			&sig.ID, &sig.Symbol, &side, &sig.Strength, &sig.Reason, &sig.Price,
			&sig.StopPrice, &sig.Target1, &sig.Target2, &sig.Size, &allowed,
			&sig.RiskReason, &sig.PositionID, &created,
		); err != nil {
			return nil, fmt.Errorf("storage.GetSignals: scan row: %w", err)
		}
		sig.Side = domain.ParseSide(side)
		sig.Allowed = allowed == 1
		sig.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, sig)
	}
	return out, rows.Err()
}
