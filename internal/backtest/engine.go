package backtest

import (
	"log/slog"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/alejandrodnm/flowscalp/internal/orderflow"
	"github.com/alejandrodnm/flowscalp/internal/risk"
	"github.com/alejandrodnm/flowscalp/internal/signal"
)

// pipeline es el estado por-run compartido por Run y LatestSignal.
type pipeline struct {
	cfg      Config
	analyzer *orderflow.Analyzer
	gen      *signal.Generator
	atr      *domain.ATR
	closes   []float64
}

// barEval es el resultado de pasar una barra por el pipeline.
type barEval struct {
	signal  domain.SignalResult
	profile domain.VolumeProfileResult
}

func newPipeline(cfg Config, nbars int) *pipeline {
	return &pipeline{
		cfg:      cfg,
		analyzer: orderflow.New(cfg.Analyzer),
		gen:      signal.New(cfg.Generator),
		atr:      domain.NewATR(cfg.InitialATRTicks * cfg.TickSize),
		closes:   make([]float64, 0, nbars),
	}
}

// step sintetiza los ticks de la barra, la cierra y evalúa la señal con el
// ATR previo. Después actualiza el ATR con el rango de la barra.
func (p *pipeline) step(bar domain.Bar) (barEval, bool) {
	p.closes = append(p.closes, bar.Close)
	for ev := range p.cfg.Ticks.Ticks(bar, p.cfg.TickSize) {
		p.analyzer.OnTrade(ev.Price, ev.Size, ev.IsBuy)
	}
	if _, ok := p.analyzer.StartNewBar(); !ok {
		return barEval{}, false
	}
	profile := p.analyzer.BuildVolumeProfile()
	sig := p.gen.Generate(p.analyzer, profile, bar.Close, p.atr.Value(), p.cfg.TickSize)
	p.atr.Update(bar.High, bar.Low)
	return barEval{signal: sig, profile: profile}, true
}

// resetSession abre una sesión nueva: el analizador vuelve a cero (CVD,
// perfil, barras, absorción, big trades), el riesgo limpia sus contadores
// diarios y la equity de inicio pasa a balance. ATR y closes se conservan.
// rm es nil en LatestSignal.
func (p *pipeline) resetSession(rm *risk.Manager, balance float64) {
	p.analyzer.ResetSession()
	if rm != nil {
		rm.ResetDaily()
		rm.SetSessionEquity(balance)
	}
}

// sessionClock decide en qué barras empieza una sesión. Entre dos barras con
// fecha manda el cambio de día; si a alguna de las dos le falta la fecha, se
// reinicia cada interval barras desde el último reinicio.
type sessionClock struct {
	interval int
	last     int
}

func (c *sessionClock) boundary(bars []domain.Bar, i int) bool {
	if i == 0 {
		return false
	}
	cur, prev := bars[i].Time, bars[i-1].Time
	var next bool
	if !cur.IsZero() && !prev.IsZero() {
		next = !sameDay(cur, prev)
	} else {
		next = i-c.last >= c.interval
	}
	if next {
		c.last = i
	}
	return next
}

// trendMA es la media simple de los últimos n closes (incluye la barra actual).
func (p *pipeline) trendMA(n int) float64 {
	window := p.closes[max(0, len(p.closes)-n):]
	var sum float64
	for _, c := range window {
		sum += c
	}
	return sum / float64(len(window))
}

// position es una posición simulada abierta.
type position struct {
	side      domain.Side
	entry     float64
	entryBar  int
	entryTime time.Time
	size      int
	stop      int
	t1        int
	t2        int
}

// exit evalúa el cierre en la barra barIdx con prioridad stop → target2 →
// target1 usando los extremos de la barra, y luego el timeout.
func (p position) exit(bar domain.Bar, barIdx int, tickSize float64, maxHold int) (reason domain.ExitReason, price, pnlTicks float64, ok bool) {
	dir := float64(p.side)
	level := func(ticks int) float64 { return p.entry + dir*float64(ticks)*tickSize }

	adverse, favorable := bar.Low, bar.High
	if p.side == domain.SideShort {
		adverse, favorable = bar.High, bar.Low
	}

	if stopPx := level(-p.stop); dir*(stopPx-adverse) >= 0 {
		return domain.ExitStop, stopPx, -float64(p.stop), true
	}
	if t2Px := level(p.t2); dir*(favorable-t2Px) >= 0 {
		return domain.ExitTarget2, t2Px, float64(p.t2), true
	}
	if t1Px := level(p.t1); dir*(favorable-t1Px) >= 0 {
		return domain.ExitTarget1, t1Px, float64(p.t1), true
	}
	if maxHold > 0 && barIdx-p.entryBar >= maxHold {
		return domain.ExitTimeout, bar.Close, dir * (bar.Close - p.entry) / tickSize, true
	}
	return "", 0, 0, false
}

// Run ejecuta el replay completo. Es determinista: mismas barras y config
// producen el mismo ledger y la misma curva.
func Run(bars []domain.Bar, cfg Config) domain.BacktestResult {
	cfg = cfg.normalize()
	p := newPipeline(cfg, len(bars))
	rm := risk.New(cfg.Risk)
	rm.SetSessionEquity(cfg.InitialBalance)

	balance := cfg.InitialBalance
	res := domain.BacktestResult{
		InitialBalance: cfg.InitialBalance,
		EquityCurve:    make([]float64, 0, len(bars)+1),
	}
	res.EquityCurve = append(res.EquityCurve, balance)

	useSession := cfg.SessionBarsPerDay > 0 && cfg.SessionEndBar > cfg.SessionStartBar
	sessions := sessionClock{interval: cfg.ResetIntervalBars}
	var pos *position

	for i, bar := range bars {
		if sessions.boundary(bars, i) {
			p.resetSession(rm, balance)
			slog.Debug("backtest: session reset", "bar", i, "balance", balance)
		}

		ev, ok := p.step(bar)
		if !ok {
			res.EquityCurve = append(res.EquityCurve, balance)
			continue
		}

		if pos != nil {
			if reason, px, ticks, hit := pos.exit(bar, i, cfg.TickSize, cfg.MaxHoldBars); hit {
				pnl := float64(pos.size) * ticks * cfg.TickSize * cfg.TickValue
				balance += pnl
				rm.RecordTrade(pnl)
				res.Trades = append(res.Trades, domain.BacktestTrade{
					EntryBar:   pos.entryBar,
					ExitBar:    i,
					EntryTime:  pos.entryTime,
					ExitTime:   bar.Time,
					Side:       pos.side,
					EntryPrice: pos.entry,
					ExitPrice:  px,
					Size:       pos.size,
					PnL:        pnl,
					PnLTicks:   ticks,
					ExitReason: reason,
				})
				slog.Debug("backtest: position closed",
					"bar", i, "side", pos.side, "reason", reason, "pnl", pnl)
				pos = nil
			}
			res.EquityCurve = append(res.EquityCurve, balance)
			continue
		}

		if pos = p.open(i, bar, ev, rm, balance, useSession); pos != nil {
			slog.Debug("backtest: position opened",
				"bar", i, "side", pos.side, "size", pos.size, "entry", pos.entry,
				"stop", pos.stop, "t1", pos.t1, "t2", pos.t2)
		}
		res.EquityCurve = append(res.EquityCurve, balance)
	}

	res.FinalBalance = balance
	res.Summarize(cfg.SharpeAnnualization)
	return res
}

// open aplica los filtros de entrada y devuelve la posición abierta, o nil.
func (p *pipeline) open(i int, bar domain.Bar, ev barEval, rm *risk.Manager, balance float64, useSession bool) *position {
	cfg := p.cfg
	sig := ev.signal

	if useSession {
		inDay := i % cfg.SessionBarsPerDay
		if inDay < cfg.SessionStartBar || inDay > cfg.SessionEndBar {
			return nil
		}
	}
	if cfg.TrendMABars > 0 && sig.IsActionable() {
		ma := p.trendMA(cfg.TrendMABars)
		if (sig.Signal == domain.SideLong && bar.Close <= ma) ||
			(sig.Signal == domain.SideShort && bar.Close >= ma) {
			return nil
		}
	}
	if sig.IsActionable() && len(cfg.Filters) > 0 {
		c := signal.Candidate{
			Result:   sig,
			Features: p.features(bar, ev),
			Closes:   p.closes,
		}
		if ok, by := cfg.Filters.Allow(c); !ok {
			slog.Debug("backtest: signal filtered", "bar", i, "filter", by)
			return nil
		}
	}

	allowed, _ := rm.CanTrade(balance)
	if !allowed || !sig.IsActionable() || sig.Strength < cfg.Generator.MinSignalStrength {
		return nil
	}
	size := rm.PositionSize(balance, sig.StopTicks, cfg.TickSize, cfg.MaxContracts)
	if size <= 0 {
		return nil
	}
	return &position{
		side:      sig.Signal,
		entry:     bar.Close,
		entryBar:  i,
		entryTime: bar.Time,
		size:      size,
		stop:      sig.StopTicks,
		t1:        max(cfg.MinTarget1Ticks, sig.Target1Ticks),
		t2:        max(cfg.MinTarget2Ticks, sig.Target2Ticks),
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
