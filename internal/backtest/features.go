package backtest

import (
	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// features construye el FeatureMap de la barra recién evaluada.
// Debe llamarse después de step (usa el ATR ya actualizado).
func (p *pipeline) features(bar domain.Bar, ev barEval) domain.FeatureMap {
	bigBuy, bigSell := p.analyzer.BigTradeCluster(p.cfg.Generator.BigTradeLookback)
	return domain.BuildFeatures(domain.FeatureInput{
		Signal:   ev.signal,
		Profile:  ev.profile,
		Close:    bar.Close,
		BarDelta: bar.Delta(),
		CVD:      p.analyzer.CVD(),
		ATR:      p.atr.Value(),
		TickSize: p.cfg.TickSize,
		BigBuys:  bigBuy,
		BigSells: bigSell,
	})
}

// LatestSignal recorre las barras sin operar y devuelve la señal de la última
// barra, su fuerza, el último precio y el FeatureMap correspondiente.
func LatestSignal(bars []domain.Bar, cfg Config) (domain.Side, float64, float64, domain.FeatureMap) {
	cfg = cfg.normalize()
	p := newPipeline(cfg, len(bars))

	side := domain.SideNone
	var strength, lastPrice float64
	feats := domain.FeatureMap{}
	sessions := sessionClock{interval: cfg.ResetIntervalBars}
	for i, bar := range bars {
		if sessions.boundary(bars, i) {
			p.resetSession(nil, 0)
		}
		ev, ok := p.step(bar)
		if !ok {
			continue
		}
		side = ev.signal.Signal
		strength = ev.signal.Strength
		lastPrice = bar.Close
		feats = p.features(bar, ev)
	}
	return side, strength, lastPrice, feats
}
