// Package signal deriva señales direccionales del order flow y el perfil de volumen.
package signal

import (
	"math"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

const (
	minStopTicks        = 10
	stateLookbackBars   = 20
	stateMinBars        = 10
	stateInsideFraction = 0.6
	signalLookbackBars  = 10
	meanRevertStrength  = 0.72
	meanRevertVolumeX   = 1.3
	meanRevertDeltaX    = 0.6
)

// Config parametriza el generador.
type Config struct {
	MinDelta           float64
	DeltaSensitivity   float64
	BigTradeConfirmMin int
	BigTradeEdge       int
	BigTradeLookback   int
	RequireAbsorption  bool
	RequireAtStructure bool
	MinDeltaMultiplier float64
	MinSignalStrength  float64
	LVNTicks           int
	HVNTicks           int
	POCTicks           int
	ATRStopMultiplier  float64
	RRFirst            float64
	RRSecond           float64
}

// DefaultConfig devuelve los parámetros por defecto.
func DefaultConfig() Config {
	return Config{
		MinDelta:           500,
		DeltaSensitivity:   1.0,
		BigTradeConfirmMin: 2,
		BigTradeEdge:       2,
		BigTradeLookback:   30,
		RequireAbsorption:  true,
		RequireAtStructure: true,
		MinDeltaMultiplier: 1.3,
		LVNTicks:           10,
		HVNTicks:           10,
		POCTicks:           15,
		ATRStopMultiplier:  1.5,
		RRFirst:            1.0,
		RRSecond:           2.0,
	}
}

// FlowSource es lo que el generador necesita del analizador.
type FlowSource interface {
	CVD() float64
	RecentBars(n int) []domain.BarSnapshot
	BigTradeCluster(lookback int) (buys, sells int)
	Absorption() domain.AbsorptionState
}

// Generator evalúa las reglas de entrada. Es puro: no guarda estado entre llamadas.
type Generator struct {
	cfg Config
}

// New crea un Generator.
func New(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Config devuelve la configuración activa.
func (g *Generator) Config() Config { return g.cfg }

// ClassifyMarketState devuelve Balanced si al menos el 60% de las últimas
// 20 barras cerró dentro de la value area.
func (g *Generator) ClassifyMarketState(src FlowSource, profile domain.VolumeProfileResult) domain.MarketState {
	if len(profile.ByPrice) == 0 || profile.IsEmpty() {
		return domain.MarketBalanced
	}
	bars := src.RecentBars(stateLookbackBars)
	if len(bars) < stateMinBars {
		return domain.MarketBalanced
	}
	inside := 0
	for _, b := range bars {
		if b.Close >= profile.VAL && b.Close <= profile.VAH {
			inside++
		}
	}
	if float64(inside) >= float64(len(bars))*stateInsideFraction {
		return domain.MarketBalanced
	}
	return domain.MarketUnbalanced
}

// Generate evalúa el setup long, luego el short y por último la reversión a POC.
func (g *Generator) Generate(src FlowSource, profile domain.VolumeProfileResult, lastPrice, atr, tickSize float64) domain.SignalResult {
	bars := src.RecentBars(signalLookbackBars)
	if len(bars) == 0 {
		return domain.SignalResult{Signal: domain.SideNone, Reason: domain.ReasonNoBars}
	}
	c := g.cfg

	bar := bars[len(bars)-1]
	cvd := src.CVD()
	bigBuys, bigSells := src.BigTradeCluster(c.BigTradeLookback)
	abs := src.Absorption()

	minD := c.MinDelta * c.DeltaSensitivity
	minDStrong := minD * c.MinDeltaMultiplier

	stop := minStopTicks
	if tickSize > 0 {
		stop = max(minStopTicks, int(math.Round(atr/tickSize*c.ATRStopMultiplier)))
	}
	t1 := int(math.Round(float64(stop) * c.RRFirst))
	t2 := int(math.Round(float64(stop) * c.RRSecond))

	result := func(side domain.Side, reason string, strength float64) domain.SignalResult {
		if strength < c.MinSignalStrength {
			side, reason, strength = domain.SideNone, domain.ReasonStrengthFilter, 0
		}
		return domain.SignalResult{
			Signal: side, Reason: reason, Strength: strength,
			StopTicks: stop, Target1Ticks: t1, Target2Ticks: t2,
		}
	}

	state := g.ClassifyMarketState(src, profile)
	balanced := state == domain.MarketBalanced
	tol := float64(c.POCTicks) * tickSize

	// long
	if cvd >= minDStrong && bar.Delta > 0 &&
		bigBuys >= c.BigTradeConfirmMin && bigBuys >= bigSells+c.BigTradeEdge &&
		(!c.RequireAbsorption || abs.Bullish) {
		atSupport := profile.NearLVN(lastPrice, c.LVNTicks, tickSize) ||
			(balanced && profile.VAL != 0 && lastPrice <= profile.VAL+tol)
		if !c.RequireAtStructure || atSupport {
			s := strength(cvd, minDStrong, bigBuys-bigSells, abs.Bullish, atSupport)
			return result(domain.SideLong, domain.ReasonLongSetup, s)
		}
	}

	// short
	if cvd <= -minDStrong && bar.Delta < 0 &&
		bigSells >= c.BigTradeConfirmMin && bigSells >= bigBuys+c.BigTradeEdge &&
		(!c.RequireAbsorption || abs.Bearish) {
		atResistance := profile.NearHVN(lastPrice, c.HVNTicks, tickSize) ||
			(balanced && profile.VAH != 0 && lastPrice >= profile.VAH-tol)
		if !c.RequireAtStructure || atResistance {
			s := strength(-cvd, minDStrong, bigSells-bigBuys, abs.Bearish, atResistance)
			return result(domain.SideShort, domain.ReasonShortSetup, s)
		}
	}

	// reversión a POC con agotamiento de volumen
	if balanced && !profile.IsEmpty() && profile.NearPOC(lastPrice, c.POCTicks, tickSize) {
		var prior float64
		for _, b := range bars[:len(bars)-1] {
			prior += b.TotalVolume
		}
		avg := prior / float64(max(1, len(bars)-1))
		if bar.TotalVolume > avg*meanRevertVolumeX {
			if bar.Delta < -minD*meanRevertDeltaX && lastPrice >= profile.POC {
				return result(domain.SideShort, domain.ReasonMeanRevert, meanRevertStrength)
			}
			if bar.Delta > minD*meanRevertDeltaX && lastPrice <= profile.POC {
				return result(domain.SideLong, domain.ReasonMeanRevert, meanRevertStrength)
			}
		}
	}

	return domain.SignalResult{
		Signal: domain.SideNone, Reason: domain.ReasonNoSetup,
		StopTicks: stop, Target1Ticks: t1, Target2Ticks: t2,
	}
}

// strength combina CVD, ventaja de big trades, absorción y estructura. Rango [0, 1].
func strength(cvd, minDStrong float64, bigEdge int, absorbed, atStructure bool) float64 {
	cvdScore := 1.0
	if minDStrong > 0 {
		cvdScore = math.Min(1, cvd/(minDStrong*2))
	}
	s := 0.35*cvdScore + 0.35*math.Min(1, float64(bigEdge)/5)
	if absorbed {
		s += 0.30
	}
	if atStructure {
		s += 0.15
	}
	return math.Max(0, math.Min(1, s))
}
