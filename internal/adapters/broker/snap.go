// Package broker contiene los order sinks: paper (en memoria) y bridge (HTTP).
package broker

import (
	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/shopspring/decimal"
)

// SnapToTick redondea price al múltiplo de tick más cercano.
// Usa aritmética decimal para que 20000.25 no acabe como 20000.249999.
func SnapToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	t := decimal.NewFromFloat(tick)
	return decimal.NewFromFloat(price).Div(t).Round(0).Mul(t).InexactFloat64()
}

// snapOrder ajusta todos los precios de la orden a la rejilla de ticks.
func snapOrder(o domain.BracketOrder, tick float64) domain.BracketOrder {
	o.EntryPrice = SnapToTick(o.EntryPrice, tick)
	o.StopPrice = SnapToTick(o.StopPrice, tick)
	o.Target1 = SnapToTick(o.Target1, tick)
	o.Target2 = SnapToTick(o.Target2, tick)
	return o
}

func validate(o domain.BracketOrder) error {
	switch {
	case o.Side == domain.SideNone:
		return errNoSide
	case o.Size <= 0:
		return errNoSize
	case o.EntryPrice <= 0:
		return errNoPrice
	}
	return nil
}
