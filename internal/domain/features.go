package domain

import "math"

// FeatureMap es el snapshot plano de features de la última barra,
// consumido por filtros post-señal y por el modo -signal del CLI.
type FeatureMap map[string]any

// Claves fijas de FeatureMap.
const (
	FeatStrength     = "strength"
	FeatCVD          = "cvd"
	FeatClose        = "close"
	FeatPOC          = "poc"
	FeatATR          = "atr"
	FeatBigBuy       = "big_buy"
	FeatBigSell      = "big_sell"
	FeatDistPOC      = "dist_poc"
	FeatDistVAL      = "dist_val"
	FeatDistVAH      = "dist_vah"
	FeatBarDelta     = "bar_delta"
	FeatSideLong     = "side_long"
	FeatReason       = "reason"
	FeatStopTicks    = "stop_ticks"
	FeatTarget1Ticks = "target1_ticks"
	FeatTarget2Ticks = "target2_ticks"
	FeatSLPrice      = "sl_price"
	FeatTP1Price     = "tp1_price"
	FeatTP2Price     = "tp2_price"
)

// NumericFeatureKeys es el orden estable del vector numérico que ven los predictores.
var NumericFeatureKeys = []string{
	FeatStrength, FeatCVD, FeatClose, FeatPOC, FeatATR,
	FeatBigBuy, FeatBigSell, FeatDistPOC, FeatDistVAL, FeatDistVAH,
	FeatBarDelta, FeatSideLong,
}

// Float devuelve la feature key como float64 (0 si falta o no es numérica).
func (f FeatureMap) Float(key string) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Reason devuelve el reason code guardado en el mapa.
func (f FeatureMap) Reason() string {
	s, _ := f[FeatReason].(string)
	return s
}

// Vector devuelve las features numéricas en el orden de NumericFeatureKeys.
func (f FeatureMap) Vector() []float64 {
	out := make([]float64, len(NumericFeatureKeys))
	for i, k := range NumericFeatureKeys {
		out[i] = f.Float(k)
	}
	return out
}

// FeatureInput reúne lo que hace falta para construir el FeatureMap de una barra.
type FeatureInput struct {
	Signal   SignalResult
	Profile  VolumeProfileResult
	Close    float64
	BarDelta float64
	CVD      float64
	ATR      float64
	TickSize float64
	BigBuys  int
	BigSells int
}

// BuildFeatures construye el FeatureMap con el conjunto fijo de claves.
// Las distancias a un nivel ausente (0) valen 0.
func BuildFeatures(in FeatureInput) FeatureMap {
	sig := in.Signal
	sl, tp1, tp2 := BracketPrices(sig.Signal, in.Close,
		sig.StopTicks, sig.Target1Ticks, sig.Target2Ticks, in.TickSize)

	dist := func(level float64) float64 {
		if level == 0 {
			return 0
		}
		return math.Abs(in.Close - level)
	}
	sideLong := 0.0
	if sig.Signal == SideLong {
		sideLong = 1
	}

	return FeatureMap{
		FeatStrength:     sig.Strength,
		FeatCVD:          in.CVD,
		FeatClose:        in.Close,
		FeatPOC:          in.Profile.POC,
		FeatATR:          in.ATR,
		FeatBigBuy:       float64(in.BigBuys),
		FeatBigSell:      float64(in.BigSells),
		FeatDistPOC:      dist(in.Profile.POC),
		FeatDistVAL:      dist(in.Profile.VAL),
		FeatDistVAH:      dist(in.Profile.VAH),
		FeatBarDelta:     in.BarDelta,
		FeatSideLong:     sideLong,
		FeatReason:       sig.Reason,
		FeatStopTicks:    sig.StopTicks,
		FeatTarget1Ticks: sig.Target1Ticks,
		FeatTarget2Ticks: sig.Target2Ticks,
		FeatSLPrice:      sl,
		FeatTP1Price:     tp1,
		FeatTP2Price:     tp2,
	}
}
