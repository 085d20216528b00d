package signal

import (
	"log/slog"
	"math"
	"slices"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// Candidate es una señal accionable a punto de ejecutarse, con su contexto.
type Candidate struct {
	Result   domain.SignalResult
	Features domain.FeatureMap
	Closes   []float64 // closes hasta la barra actual inclusive
}

// Filter decide si una señal accionable se ejecuta.
// Los filtros se aplican después del generador y nunca cambian la señal.
type Filter interface {
	Name() string
	Allow(c Candidate) bool
}

// Chain aplica filtros en orden; todos deben aceptar.
type Chain []Filter

// Allow devuelve true y "" si todos aceptan, o false y el nombre del primero que rechaza.
func (ch Chain) Allow(c Candidate) (bool, string) {
	for _, f := range ch {
		if !f.Allow(c) {
			return false, f.Name()
		}
	}
	return true, ""
}

// --- ThresholdFilter ---

// Predictor estima P(win) a partir del vector de features.
type Predictor interface {
	PredictWin(features []float64) (float64, error)
}

const (
	DefaultWinThreshold = 0.52
	fallbackWinProb     = 0.55
)

// ThresholdFilter acepta señales con P(win) >= Threshold.
// Sin predictor, o si el predictor falla, usa una probabilidad neutra de 0.55.
type ThresholdFilter struct {
	Predictor Predictor
	Threshold float64
}

func (f ThresholdFilter) Name() string { return "ml_threshold" }

func (f ThresholdFilter) Allow(c Candidate) bool {
	return f.Probability(c.Features) >= f.Threshold
}

// Probability devuelve P(win) para las features dadas.
func (f ThresholdFilter) Probability(features domain.FeatureMap) float64 {
	if f.Predictor == nil {
		return fallbackWinProb
	}
	p, err := f.Predictor.PredictWin(features.Vector())
	if err != nil {
		slog.Debug("predictor failed, using fallback", "err", err)
		return fallbackWinProb
	}
	return p
}

// LogisticPredictor es un modelo lineal con salida sigmoide.
// Weights sigue el orden de domain.NumericFeatureKeys.
type LogisticPredictor struct {
	Weights []float64
	Bias    float64
}

func (p LogisticPredictor) PredictWin(features []float64) (float64, error) {
	z := p.Bias
	for i, w := range p.Weights {
		if i < len(features) {
			z += w * features[i]
		}
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// --- RegimeFilter ---

// Regímenes de volatilidad.
const (
	RegimeLow  = 0
	RegimeMid  = 1
	RegimeHigh = 2
)

// RegimeFilter clasifica la volatilidad de los retornos recientes contra la
// mediana de la volatilidad rodante y sólo acepta los regímenes permitidos.
type RegimeFilter struct {
	Window  int
	Allowed []int
}

// NewRegimeFilter crea el filtro con ventana 20 y regímenes low/mid.
func NewRegimeFilter() RegimeFilter {
	return RegimeFilter{Window: 20, Allowed: []int{RegimeLow, RegimeMid}}
}

func (f RegimeFilter) Name() string { return "regime" }

func (f RegimeFilter) Allow(c Candidate) bool {
	return slices.Contains(f.Allowed, f.Regime(c.Closes))
}

// Regime devuelve el régimen de la última barra de closes.
func (f RegimeFilter) Regime(closes []float64) int {
	w := f.Window
	if w < 2 {
		w = 20
	}
	idx := len(closes) - 1
	if idx < w {
		return RegimeMid
	}
	recent := pctChange(closes[idx-w : idx])
	if len(recent) < 2 {
		return RegimeMid
	}
	vol := sampleStd(recent)
	if vol <= 0 {
		return RegimeLow
	}

	all := pctChange(closes)
	var vols []float64
	for i := w; i <= len(all); i++ {
		vols = append(vols, sampleStd(all[i-w:i]))
	}
	if len(vols) < 10 {
		return RegimeMid
	}
	med := median(vols)
	switch {
	case med <= 0:
		return RegimeMid
	case vol < med*0.7:
		return RegimeLow
	case vol > med*1.4:
		return RegimeHigh
	}
	return RegimeMid
}

func pctChange(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		if xs[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, xs[i]/xs[i-1]-1)
	}
	return out
}

func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func median(xs []float64) float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
