// Package orderflow mantiene las estadísticas de order flow de un instrumento:
// CVD, barras, big trades, absorción y el histograma de volumen por precio.
package orderflow

import (
	"math"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// Config parametriza el analizador.
type Config struct {
	TickSize           float64
	SizeMultiplier     float64 // divisor de tamaño para OnTradeLevels
	BigTradeThreshold  float64 // tamaño mínimo de un big trade
	AbsorptionTicks    int     // banda de precio y umbral de ticks sin cambio
	ValueAreaPct       float64
	ProfileRollingBars int // capacidad del ring de barras
	BigTradeHistory    int // capacidad del ring de big trades
}

// DefaultConfig devuelve los valores por defecto para NQ.
func DefaultConfig() Config {
	return Config{
		TickSize:           0.25,
		SizeMultiplier:     1,
		BigTradeThreshold:  30,
		AbsorptionTicks:    3,
		ValueAreaPct:       0.70,
		ProfileRollingBars: 120,
		BigTradeHistory:    200,
	}
}

type bigTrade struct {
	price float64
	size  float64
	isBuy bool
}

// barAccumulator es la barra en curso.
type barAccumulator struct {
	open, high, low, close float64
	buyVol, sellVol        float64
	trades                 int
	bigBuys, bigSells      int
	seeded                 bool // OHLC ya inicializado
}

// Analyzer acumula el order flow de un instrumento. No es seguro para
// uso concurrente: el llamador serializa el acceso.
type Analyzer struct {
	cfg Config

	buyVolume  float64
	sellVolume float64
	cvd        float64

	bar     barAccumulator
	current domain.BarSnapshot
	hasBar  bool

	bars          *domain.Ring[domain.BarSnapshot]
	bigTrades     *domain.Ring[bigTrade]
	volumeAtPrice map[float64]float64
	absorption    absorptionTracker
}

// New crea un Analyzer. Valores no positivos caen a DefaultConfig.
func New(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.TickSize <= 0 {
		cfg.TickSize = def.TickSize
	}
	if cfg.SizeMultiplier <= 0 {
		cfg.SizeMultiplier = def.SizeMultiplier
	}
	if cfg.ValueAreaPct <= 0 || cfg.ValueAreaPct > 1 {
		cfg.ValueAreaPct = def.ValueAreaPct
	}
	if cfg.ProfileRollingBars <= 0 {
		cfg.ProfileRollingBars = def.ProfileRollingBars
	}
	if cfg.BigTradeHistory <= 0 {
		cfg.BigTradeHistory = def.BigTradeHistory
	}
	return &Analyzer{
		cfg:           cfg,
		bars:          domain.NewRing[domain.BarSnapshot](cfg.ProfileRollingBars),
		bigTrades:     domain.NewRing[bigTrade](cfg.BigTradeHistory),
		volumeAtPrice: make(map[float64]float64),
	}
}

// OnTrade procesa un trade ejecutado. size ya está desescalado.
func (a *Analyzer) OnTrade(price, size float64, isBuy bool) {
	if isBuy {
		a.buyVolume += size
		a.cvd += size
	} else {
		a.sellVolume += size
		a.cvd -= size
	}

	b := &a.bar
	if !b.seeded {
		b.open, b.high, b.low = price, price, price
		b.seeded = true
	}
	b.high = math.Max(b.high, price)
	b.low = math.Min(b.low, price)
	b.close = price
	b.trades++
	if isBuy {
		b.buyVol += size
	} else {
		b.sellVol += size
	}

	if size >= a.cfg.BigTradeThreshold {
		a.bigTrades.Push(bigTrade{price: price, size: size, isBuy: isBuy})
		if isBuy {
			b.bigBuys++
		} else {
			b.bigSells++
		}
	}

	a.absorption.update(price, size, isBuy, float64(a.cfg.AbsorptionTicks)*a.cfg.TickSize, a.cfg.AbsorptionTicks)

	a.volumeAtPrice[a.bucket(price)] += size
}

// OnTradeLevels recibe precio y tamaño como niveles enteros del feed
// (precio en ticks, tamaño multiplicado por SizeMultiplier).
func (a *Analyzer) OnTradeLevels(priceLevel, sizeLevel int64, isBuy bool) {
	price := float64(priceLevel) * a.cfg.TickSize
	size := float64(sizeLevel) / a.cfg.SizeMultiplier
	a.OnTrade(price, size, isBuy)
}

// StartNewBar cierra la barra en curso y abre una nueva. Devuelve false si
// no hubo trades desde el último cierre.
func (a *Analyzer) StartNewBar() (domain.BarSnapshot, bool) {
	b := a.bar
	if b.trades == 0 {
		return domain.BarSnapshot{}, false
	}
	snap := domain.BarSnapshot{
		Open:        b.open,
		High:        b.high,
		Low:         b.low,
		Close:       b.close,
		BuyVolume:   b.buyVol,
		SellVolume:  b.sellVol,
		Delta:       b.buyVol - b.sellVol,
		TotalVolume: b.buyVol + b.sellVol,
		TradeCount:  b.trades,
		BigBuys:     b.bigBuys,
		BigSells:    b.bigSells,
	}
	a.bars.Push(snap)
	a.current = snap
	a.hasBar = true

	// la barra siguiente arranca en el último close
	a.bar = barAccumulator{
		open: b.close, high: b.close, low: b.close, close: b.close,
		seeded: true,
	}
	return snap, true
}

// BigTradeCluster cuenta big trades comprador/vendedor en los últimos lookback.
func (a *Analyzer) BigTradeCluster(lookback int) (buys, sells int) {
	for _, t := range a.bigTrades.Last(lookback) {
		if t.isBuy {
			buys++
		} else {
			sells++
		}
	}
	return buys, sells
}

// ResetSession limpia todo el estado acumulado de la sesión.
func (a *Analyzer) ResetSession() {
	a.buyVolume, a.sellVolume, a.cvd = 0, 0, 0
	a.bar = barAccumulator{}
	a.current = domain.BarSnapshot{}
	a.hasBar = false
	a.bars.Reset()
	a.bigTrades.Reset()
	clear(a.volumeAtPrice)
	a.absorption = absorptionTracker{}
}

// CVD devuelve el delta de volumen acumulado de la sesión.
func (a *Analyzer) CVD() float64 { return a.cvd }

// BarDelta devuelve buy - sell de la barra en curso.
func (a *Analyzer) BarDelta() float64 { return a.bar.buyVol - a.bar.sellVol }

// SessionVolume devuelve volumen comprador y vendedor de la sesión.
func (a *Analyzer) SessionVolume() (buy, sell float64) { return a.buyVolume, a.sellVolume }

// CurrentBar devuelve la última barra cerrada.
func (a *Analyzer) CurrentBar() (domain.BarSnapshot, bool) { return a.current, a.hasBar }

// RecentBars devuelve hasta n barras cerradas, la más antigua primero.
func (a *Analyzer) RecentBars(n int) []domain.BarSnapshot { return a.bars.Last(n) }

// Absorption devuelve el estado actual de absorción.
func (a *Analyzer) Absorption() domain.AbsorptionState { return a.absorption.state }

// TickSize devuelve el tamaño de tick configurado.
func (a *Analyzer) TickSize() float64 { return a.cfg.TickSize }

func (a *Analyzer) bucket(price float64) float64 {
	return math.Round(price/a.cfg.TickSize) * a.cfg.TickSize
}
