package domain

import (
	"math"
	"time"
)

// ExitReason indica por qué se cerró una posición simulada.
type ExitReason string

const (
	ExitTarget1 ExitReason = "target1"
	ExitTarget2 ExitReason = "target2"
	ExitStop    ExitReason = "stop"
	ExitTimeout ExitReason = "timeout"
)

// BacktestTrade es una fila del ledger del replay.
type BacktestTrade struct {
	EntryBar   int
	ExitBar    int
	EntryTime  time.Time
	ExitTime   time.Time
	Side       Side
	EntryPrice float64
	ExitPrice  float64
	Size       int
	PnL        float64
	PnLTicks   float64
	ExitReason ExitReason
}

// BacktestResult es el resultado completo de un replay.
type BacktestResult struct {
	RunID          string
	Trades         []BacktestTrade
	EquityCurve    []float64 // balance inicial + un punto por barra
	InitialBalance float64
	FinalBalance   float64
	TotalTrades    int
	WinRate        float64
	ProfitFactor   float64
	MaxDrawdown    float64
	MaxDrawdownPct float64
	SharpeRatio    float64
}

// TotalPnL devuelve FinalBalance - InitialBalance.
func (r BacktestResult) TotalPnL() float64 {
	return r.FinalBalance - r.InitialBalance
}

// Metrics devuelve las estadísticas resumen como mapa plano.
func (r BacktestResult) Metrics() map[string]float64 {
	return map[string]float64{
		"total_trades":     float64(r.TotalTrades),
		"win_rate":         r.WinRate,
		"profit_factor":    r.ProfitFactor,
		"max_drawdown":     r.MaxDrawdown,
		"max_drawdown_pct": r.MaxDrawdownPct,
		"sharpe_ratio":     r.SharpeRatio,
		"total_pnl":        r.TotalPnL(),
		"final_balance":    r.FinalBalance,
	}
}

// ProfitFactorCap es el valor reportado cuando hay ganancias y ninguna pérdida.
const ProfitFactorCap = 99.0

// WinRate es el porcentaje (0-100) de trades con PnL > 0.
func WinRate(trades []BacktestTrade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)) * 100
}

// ProfitFactor = ganancias brutas / |pérdidas brutas|.
// 99 si hay ganancias sin pérdidas, 0 si no hay ganancias.
func ProfitFactor(trades []BacktestTrade) float64 {
	var gross, loss float64
	for _, t := range trades {
		if t.PnL > 0 {
			gross += t.PnL
		} else if t.PnL < 0 {
			loss += -t.PnL
		}
	}
	if gross <= 0 {
		return 0
	}
	if loss <= 0 {
		return ProfitFactorCap
	}
	return gross / loss
}

// MaxDrawdown devuelve la mayor caída pico-valle de la curva, en absoluto y en %
// del pico desde el que se produjo.
func MaxDrawdown(curve []float64) (abs, pct float64) {
	if len(curve) == 0 {
		return 0, 0
	}
	peak := curve[0]
	for _, eq := range curve {
		if eq > peak {
			peak = eq
		}
		dd := peak - eq
		if dd > abs {
			abs = dd
			if peak > 0 {
				pct = dd / peak * 100
			}
		}
	}
	return abs, pct
}

// SharpeRatio calcula media/desviación (poblacional) de los incrementos
// barra a barra de la curva, anualizado por sqrt(annualization).
func SharpeRatio(curve []float64, annualization float64) float64 {
	if len(curve) < 3 {
		return 0
	}
	n := float64(len(curve) - 1)
	var sum float64
	for i := 1; i < len(curve); i++ {
		sum += curve[i] - curve[i-1]
	}
	mean := sum / n
	var ss float64
	for i := 1; i < len(curve); i++ {
		d := curve[i] - curve[i-1] - mean
		ss += d * d
	}
	std := math.Sqrt(ss / n)
	if std <= 0 {
		return 0
	}
	return mean / std * math.Sqrt(annualization)
}

// Summarize rellena las estadísticas de r a partir de Trades y EquityCurve.
func (r *BacktestResult) Summarize(annualization float64) {
	r.TotalTrades = len(r.Trades)
	r.WinRate = WinRate(r.Trades)
	r.ProfitFactor = ProfitFactor(r.Trades)
	r.MaxDrawdown, r.MaxDrawdownPct = MaxDrawdown(r.EquityCurve)
	r.SharpeRatio = SharpeRatio(r.EquityCurve, annualization)
}

// ATR es una media exponencial (alpha 0.5) del rango de las barras.
// Las barras de rango cero conservan el valor anterior.
type ATR struct {
	value float64
}

// NewATR crea el suavizador con un valor inicial.
func NewATR(initial float64) *ATR {
	return &ATR{value: initial}
}

// Update incorpora el rango high-low y devuelve el ATR resultante.
func (a *ATR) Update(high, low float64) float64 {
	if r := high - low; r > 0 {
		a.value = 0.5*r + 0.5*a.value
	}
	return a.value
}

// Value devuelve el ATR actual.
func (a *ATR) Value() float64 {
	return a.value
}
