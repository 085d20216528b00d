package domain

import "math"

// VolumeProfileResult es el perfil de volumen por precio de la sesión.
// Invariante: VAL <= POC <= VAH cuando hay volumen.
type VolumeProfileResult struct {
	POC          float64
	VAH          float64
	VAL          float64
	TotalVolume  float64
	ValueAreaPct float64
	ByPrice      map[float64]float64
	HVNPrices    []float64 // top-5 por volumen, mayor primero
	LVNPrices    []float64 // bottom-5 con volumen > 0, menor primero
}

// IsEmpty indica si el perfil no tiene volumen.
func (p VolumeProfileResult) IsEmpty() bool {
	return p.TotalVolume <= 0
}

// NearPOC indica si price está a ticks o menos del POC.
func (p VolumeProfileResult) NearPOC(price float64, ticks int, tickSize float64) bool {
	if p.IsEmpty() {
		return false
	}
	return math.Abs(price-p.POC) <= float64(ticks)*tickSize
}

// NearHVN indica si price está cerca de algún HVN o del POC.
func (p VolumeProfileResult) NearHVN(price float64, ticks int, tickSize float64) bool {
	if len(p.HVNPrices) == 0 {
		return false
	}
	tol := float64(ticks) * tickSize
	for _, h := range p.HVNPrices {
		if math.Abs(price-h) <= tol {
			return true
		}
	}
	return math.Abs(price-p.POC) <= tol
}

// NearLVN indica si price está cerca de algún LVN.
func (p VolumeProfileResult) NearLVN(price float64, ticks int, tickSize float64) bool {
	tol := float64(ticks) * tickSize
	for _, l := range p.LVNPrices {
		if math.Abs(price-l) <= tol {
			return true
		}
	}
	return false
}

// InValueArea indica si price está dentro de [VAL, VAH].
func (p VolumeProfileResult) InValueArea(price float64) bool {
	return !p.IsEmpty() && price >= p.VAL && price <= p.VAH
}
