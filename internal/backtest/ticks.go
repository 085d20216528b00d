package backtest

import (
	"iter"
	"math"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// TickGenerator convierte una barra en trades sintéticos para alimentar el analizador.
type TickGenerator interface {
	Ticks(bar domain.Bar, tickSize float64) iter.Seq[domain.TradeEvent]
}

// LotSynthesizer reparte el volumen de cada lado en lotes fijos al nivel del close.
// Cuando un lado tiene volumen >= DensityTrigger, el primer lote es un big lot
// para que el detector de big trades tenga material.
type LotSynthesizer struct {
	LotSize        float64
	BigLotSize     float64
	DensityTrigger float64
}

// DefaultLotSynthesizer: lotes de 5, big lot de 35 a partir de 45 contratos.
func DefaultLotSynthesizer() LotSynthesizer {
	return LotSynthesizer{LotSize: 5, BigLotSize: 35, DensityTrigger: 45}
}

// Ticks genera primero los trades compradores y luego los vendedores, sin
// materializar la barra.
func (s LotSynthesizer) Ticks(bar domain.Bar, tickSize float64) iter.Seq[domain.TradeEvent] {
	price := math.Floor(bar.Close/tickSize) * tickSize
	return func(yield func(domain.TradeEvent) bool) {
		if s.side(price, bar.BuyVolume, true, yield) {
			s.side(price, bar.SellVolume, false, yield)
		}
	}
}

// side emite los lotes de un lado. Devuelve false si el consumidor cortó.
func (s LotSynthesizer) side(price, vol float64, isBuy bool, yield func(domain.TradeEvent) bool) bool {
	n := max(1, int(vol/s.LotSize))
	if vol >= s.DensityTrigger && n >= 2 {
		if !yield(domain.TradeEvent{Price: price, Size: s.BigLotSize, IsBuy: isBuy}) {
			return false
		}
		n -= 2
	}
	for i := 0; i < n; i++ {
		if !yield(domain.TradeEvent{Price: price, Size: s.LotSize, IsBuy: isBuy}) {
			return false
		}
	}
	return true
}
