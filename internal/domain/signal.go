package domain

// Side es la dirección de una señal o posición.
type Side int

const (
	SideNone  Side = 0
	SideLong  Side = 1
	SideShort Side = -1
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	default:
		return "none"
	}
}

// ParseSide es la inversa de String. Cualquier otro valor es SideNone.
func ParseSide(s string) Side {
	switch s {
	case "long":
		return SideLong
	case "short":
		return SideShort
	default:
		return SideNone
	}
}

// MarketState clasifica la sesión en rango (balanced) o en tendencia.
type MarketState int

const (
	MarketBalanced MarketState = iota
	MarketUnbalanced
)

func (m MarketState) String() string {
	if m == MarketUnbalanced {
		return "unbalanced"
	}
	return "balanced"
}

// Reason codes de la señal.
const (
	ReasonNoBars         = "no_bars"
	ReasonNoSetup        = "no_setup"
	ReasonStrengthFilter = "strength_filter"
	ReasonLongSetup      = "cvd_big_buys_absorption_lvn"
	ReasonShortSetup     = "cvd_big_sells_absorption_hvn"
	ReasonMeanRevert     = "mean_revert_poc_exhaustion"
)

// SignalResult es la salida del generador de señales.
// Strength está en [0, 1]; los ticks son enteros >= 0.
type SignalResult struct {
	Signal       Side
	Reason       string
	Strength     float64
	StopTicks    int
	Target1Ticks int
	Target2Ticks int
}

// IsActionable indica si la señal pide abrir posición.
func (r SignalResult) IsActionable() bool {
	return r.Signal != SideNone
}

// BracketPrices calcula stop y targets absolutos para una entrada en entry.
// Con SideNone los tres precios son entry.
func BracketPrices(side Side, entry float64, stopTicks, t1Ticks, t2Ticks int, tickSize float64) (sl, tp1, tp2 float64) {
	dir := float64(side)
	if side == SideNone {
		return entry, entry, entry
	}
	sl = entry - dir*float64(stopTicks)*tickSize
	tp1 = entry + dir*float64(t1Ticks)*tickSize
	tp2 = entry + dir*float64(t2Ticks)*tickSize
	return sl, tp1, tp2
}
