package domain

// RiskState son los contadores diarios del gestor de riesgo de un instrumento.
type RiskState struct {
	DailyPnL           float64
	DailyTrades        int
	ConsecutiveLosses  int
	SessionStartEquity float64
	PeakEquity         float64
	Paused             bool // drawdown diario alcanzado, hasta ResetDaily
	Halted             bool // pérdidas consecutivas, hasta ResetDaily
}

// Reason codes de admisión (CanTrade).
const (
	RiskOK                = "ok"
	RiskHalted            = "halted_consecutive_losses"
	RiskPaused            = "paused_daily_drawdown"
	RiskMaxDailyTrades    = "max_daily_trades"
	RiskOutsideSession    = "outside_session"
	RiskDrawdownLimit     = "daily_drawdown_limit"
	RiskConsecutiveLosses = "consecutive_losses"
)
