package live

import (
	"sync"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/alejandrodnm/flowscalp/internal/orderflow"
	"github.com/alejandrodnm/flowscalp/internal/risk"
	"github.com/alejandrodnm/flowscalp/internal/signal"
)

// instrument es el contexto de un símbolo. mu protege todos los campos.
type instrument struct {
	mu sync.Mutex

	symbol   string
	tickSize float64
	analyzer *orderflow.Analyzer
	gen      *signal.Generator
	risk     *risk.Manager
	atr      *domain.ATR

	equity    float64
	lastPrice float64
	closes    []float64
	bars      int
	day       int // yyyymmdd del último tick, en la zona de la sesión

	positionID string
	inPosition bool
	placing    bool
}

// InstrumentState es una copia de sólo lectura del contexto.
type InstrumentState struct {
	Symbol     string
	LastPrice  float64
	CVD        float64
	ATR        float64
	Equity     float64
	Bars       int
	InPosition bool
	PositionID string
	Risk       domain.RiskState
}

type evaluation struct {
	signal  domain.SignalResult
	profile domain.VolumeProfileResult
	bar     domain.BarSnapshot
}

func newInstrument(symbol string, acfg orderflow.Config, cfg Config, now func() time.Time) *instrument {
	a := orderflow.New(acfg)
	rm := risk.New(cfg.Risk, risk.WithClock(now))
	rm.SetSessionEquity(cfg.Equity)
	return &instrument{
		symbol:   symbol,
		tickSize: a.TickSize(),
		analyzer: a,
		gen:      signal.New(cfg.Generator),
		risk:     rm,
		atr:      domain.NewATR(cfg.InitialATRTicks * a.TickSize()),
		equity:   cfg.Equity,
	}
}

// ingest pasa un mensaje del feed al analizador. Los niveles enteros tienen
// prioridad sobre precio/tamaño float.
func (in *instrument) ingest(msg domain.TickMessage) {
	if msg.HasLevels() {
		in.analyzer.OnTradeLevels(msg.PriceLevel, msg.SizeLevel, msg.IsBuy)
		in.lastPrice = float64(msg.PriceLevel) * in.tickSize
		return
	}
	in.analyzer.OnTrade(msg.Price, msg.Size, msg.IsBuy)
	in.lastPrice = msg.Price
}

// commit cierra la barra en curso y evalúa la señal con el ATR previo; luego
// incorpora el rango de la barra al ATR.
func (in *instrument) commit() (evaluation, bool) {
	snap, ok := in.analyzer.StartNewBar()
	if !ok || in.lastPrice <= 0 {
		return evaluation{}, false
	}
	in.bars++
	in.closes = append(in.closes, snap.Close)
	if len(in.closes) > closesWindow {
		in.closes = in.closes[len(in.closes)-closesWindow:]
	}

	profile := in.analyzer.BuildVolumeProfile()
	sig := in.gen.Generate(in.analyzer, profile, in.lastPrice, in.atr.Value(), in.tickSize)
	in.atr.Update(snap.High, snap.Low)
	return evaluation{signal: sig, profile: profile, bar: snap}, true
}

// busy indica si hay una entrada abierta o en envío.
func (in *instrument) busy() bool {
	return in.inPosition || in.placing
}

func (in *instrument) record(sig domain.SignalResult, now time.Time) domain.SignalRecord {
	sl, tp1, tp2 := domain.BracketPrices(sig.Signal, in.lastPrice,
		sig.StopTicks, sig.Target1Ticks, sig.Target2Ticks, in.tickSize)
	return domain.SignalRecord{
		Symbol:    in.symbol,
		Side:      sig.Signal,
		Strength:  sig.Strength,
		Reason:    sig.Reason,
		Price:     in.lastPrice,
		StopPrice: sl,
		Target1:   tp1,
		Target2:   tp2,
		CreatedAt: now,
	}
}

func (in *instrument) features(ev evaluation) domain.FeatureMap {
	bigBuys, bigSells := in.analyzer.BigTradeCluster(in.gen.Config().BigTradeLookback)
	return domain.BuildFeatures(domain.FeatureInput{
		Signal:   ev.signal,
		Profile:  ev.profile,
		Close:    in.lastPrice,
		BarDelta: ev.bar.Delta,
		CVD:      in.analyzer.CVD(),
		ATR:      in.atr.Value(),
		TickSize: in.tickSize,
		BigBuys:  bigBuys,
		BigSells: bigSells,
	})
}

func (in *instrument) snapshot() InstrumentState {
	return InstrumentState{
		Symbol:     in.symbol,
		LastPrice:  in.lastPrice,
		CVD:        in.analyzer.CVD(),
		ATR:        in.atr.Value(),
		Equity:     in.equity,
		Bars:       in.bars,
		InPosition: in.inPosition,
		PositionID: in.positionID,
		Risk:       in.risk.State(),
	}
}
