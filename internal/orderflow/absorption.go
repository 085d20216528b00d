package orderflow

import (
	"math"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// absorptionDominance: un lado debe superar al otro por este factor.
const absorptionDominance = 1.5

type absorptionTracker struct {
	state    domain.AbsorptionState
	anchored bool
}

// update incorpora un trade. Dentro de la banda alrededor del ancla se
// acumula volumen; fuera de ella se reinicia con el trade actual como semilla.
func (t *absorptionTracker) update(price, size float64, isBuy bool, band float64, threshold int) {
	s := &t.state
	if !t.anchored {
		s.LastPrice = price
		t.anchored = true
	}

	if math.Abs(price-s.LastPrice) <= band {
		s.UnchangedTicks++
		if isBuy {
			s.BuyVolume += size
		} else {
			s.SellVolume += size
		}
	} else {
		s.UnchangedTicks = 0
		s.BuyVolume, s.SellVolume = 0, 0
		if isBuy {
			s.BuyVolume = size
		} else {
			s.SellVolume = size
		}
		s.LastPrice = price
	}

	held := s.UnchangedTicks >= threshold
	s.Bullish = held && s.SellVolume > s.BuyVolume*absorptionDominance
	s.Bearish = held && s.BuyVolume > s.SellVolume*absorptionDominance
}
