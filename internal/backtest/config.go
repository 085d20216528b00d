// Package backtest reproduce el pipeline de order flow barra a barra sobre
// datos históricos y simula posiciones con bracket fijo.
package backtest

import (
	"github.com/alejandrodnm/flowscalp/internal/orderflow"
	"github.com/alejandrodnm/flowscalp/internal/risk"
	"github.com/alejandrodnm/flowscalp/internal/signal"
)

// Config agrupa todo lo necesario para un replay.
type Config struct {
	InitialBalance float64
	TickSize       float64
	TickValue      float64
	SizeMultiplier float64
	MaxContracts   int

	Analyzer  orderflow.Config
	Generator signal.Config
	Risk      risk.Config

	InitialATRTicks   float64
	ResetIntervalBars int // reset diario cuando las barras no traen fecha

	// Ventana intradía por índice de barra; desactivada si SessionEndBar <= SessionStartBar.
	SessionBarsPerDay int
	SessionStartBar   int
	SessionEndBar     int

	TrendMABars     int // > 0: long sólo sobre la media, short sólo debajo
	MinTarget1Ticks int
	MinTarget2Ticks int
	MaxHoldBars     int // > 0: cierra a mercado tras N barras

	SharpeAnnualization float64
	Ticks               TickGenerator // nil = DefaultLotSynthesizer
	Filters             signal.Chain
}

// DefaultConfig devuelve la configuración de replay para NQ.
// El riesgo es más permisivo que en vivo para recorrer todo el dataset.
func DefaultConfig() Config {
	gen := signal.DefaultConfig()
	gen.RequireAbsorption = false
	gen.RequireAtStructure = false
	gen.MinDeltaMultiplier = 1.2
	gen.RRFirst = 0.8
	gen.RRSecond = 1.8

	rk := risk.DefaultConfig()
	rk.MaxConsecutiveLosses = 12
	rk.MaxDailyTrades = 500
	rk.SessionStart = "00:00"
	rk.SessionEnd = "23:59"
	rk.UseGlobex = true

	return Config{
		InitialBalance:      100000,
		TickSize:            0.25,
		TickValue:           5,
		SizeMultiplier:      1,
		MaxContracts:        10,
		Analyzer:            orderflow.DefaultConfig(),
		Generator:           gen,
		Risk:                rk,
		InitialATRTicks:     15,
		ResetIntervalBars:   400,
		MinTarget1Ticks:     8,
		MinTarget2Ticks:     16,
		SharpeAnnualization: 252 * 24 * 4,
		Ticks:               DefaultLotSynthesizer(),
	}
}

// normalize propaga tick/size/valor a las sub-configs y rellena ceros.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.TickSize <= 0 {
		c.TickSize = def.TickSize
	}
	if c.TickValue <= 0 {
		c.TickValue = def.TickValue
	}
	if c.SizeMultiplier <= 0 {
		c.SizeMultiplier = def.SizeMultiplier
	}
	if c.InitialATRTicks <= 0 {
		c.InitialATRTicks = def.InitialATRTicks
	}
	if c.ResetIntervalBars <= 0 {
		c.ResetIntervalBars = def.ResetIntervalBars
	}
	if c.SharpeAnnualization <= 0 {
		c.SharpeAnnualization = def.SharpeAnnualization
	}
	if c.Ticks == nil {
		c.Ticks = def.Ticks
	}
	c.Analyzer.TickSize = c.TickSize
	c.Analyzer.SizeMultiplier = c.SizeMultiplier
	c.Risk.TickValue = c.TickValue
	return c
}
