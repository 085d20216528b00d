package domain

import "time"

// BracketOrder es una orden de entrada con stop y dos targets (scale-out).
type BracketOrder struct {
	ClientID   string
	Symbol     string
	Side       Side
	Size       int
	EntryPrice float64
	StopPrice  float64
	Target1    float64
	Target2    float64
	ScaleOut   float64 // fracción que se cierra en Target1
	Reason     string
	CreatedAt  time.Time
}

// SignalRecord es una señal evaluada en vivo (o en modo -signal), con
// el resultado de la admisión de riesgo.
type SignalRecord struct {
	ID         int64
	Symbol     string
	Side       Side
	Strength   float64
	Reason     string
	Price      float64
	StopPrice  float64
	Target1    float64
	Target2    float64
	Size       int
	Allowed    bool
	RiskReason string
	PositionID string
	CreatedAt  time.Time
}

// RunRecord es un backtest persistido con su ledger.
type RunRecord struct {
	ID        string
	Symbol    string
	Bars      int
	Result    BacktestResult
	CreatedAt time.Time
}
