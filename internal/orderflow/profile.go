package orderflow

import (
	"maps"
	"slices"
	"sort"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

const nodeCount = 5

// BuildVolumeProfile calcula POC, value area, HVN y LVN del histograma de la
// sesión. Sin volumen devuelve un perfil vacío.
func (a *Analyzer) BuildVolumeProfile() domain.VolumeProfileResult {
	return buildProfile(a.volumeAtPrice, a.cfg.ValueAreaPct)
}

func buildProfile(hist map[float64]float64, vaPct float64) domain.VolumeProfileResult {
	res := domain.VolumeProfileResult{ValueAreaPct: vaPct}
	if len(hist) == 0 {
		return res
	}

	prices := slices.Sorted(maps.Keys(hist))
	vols := make([]float64, len(prices))
	var total float64
	for i, p := range prices {
		vols[i] = hist[p]
		total += vols[i]
	}
	res.ByPrice = maps.Clone(hist)
	if total <= 0 {
		return res
	}
	res.TotalVolume = total

	// POC: máximo volumen; empates al precio más bajo
	poc := 0
	for i := range vols {
		if vols[i] > vols[poc] {
			poc = i
		}
	}
	res.POC = prices[poc]

	// value area: expandir hacia el vecino más grande, empates hacia abajo
	lo, hi := poc, poc
	acc := vols[poc]
	target := total * vaPct
	for acc < target && (lo > 0 || hi < len(prices)-1) {
		var down, up float64
		if lo > 0 {
			down = vols[lo-1]
		}
		if hi < len(prices)-1 {
			up = vols[hi+1]
		}
		switch {
		case lo > 0 && down >= up:
			lo--
			acc += down
		case hi < len(prices)-1:
			hi++
			acc += up
		default:
			lo--
			acc += down
		}
	}
	res.VAL = prices[lo]
	res.VAH = prices[hi]

	byVol := make([]int, len(prices))
	for i := range byVol {
		byVol[i] = i
	}
	sort.SliceStable(byVol, func(i, j int) bool { return vols[byVol[i]] > vols[byVol[j]] })

	for _, i := range byVol[:min(nodeCount, len(byVol))] {
		res.HVNPrices = append(res.HVNPrices, prices[i])
	}
	for k := len(byVol) - 1; k >= 0 && len(res.LVNPrices) < nodeCount; k-- {
		if i := byVol[k]; vols[i] > 0 {
			res.LVNPrices = append(res.LVNPrices, prices[i])
		}
	}
	return res
}
