// Package live conduce el pipeline de order flow desde un feed de trades en
// tiempo real: un contexto por instrumento, cierre de barra a intervalo fijo y
// señal → filtros → riesgo → order sink.
package live

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/alejandrodnm/flowscalp/internal/orderflow"
	"github.com/alejandrodnm/flowscalp/internal/ports"
	"github.com/alejandrodnm/flowscalp/internal/risk"
	"github.com/alejandrodnm/flowscalp/internal/signal"
	"github.com/google/uuid"
)

const (
	defaultBarInterval  = 15 * time.Second
	defaultEquity       = 100000
	defaultMaxContracts = 10
	defaultScaleOut     = 0.5
	defaultATRTicks     = 15
	closesWindow        = 500
	tickBuffer          = 4096
	feedRetryWait       = time.Second
)

// Razones de bloqueo de una señal accionable que no llega al sink.
// Las denegaciones del gestor de riesgo usan los códigos domain.Risk*.
const (
	BlockedFilter      = "filter:"
	BlockedZeroSize    = "zero_size"
	BlockedOrderFailed = "order_failed"
)

// Config agrupa la configuración del motor en vivo.
type Config struct {
	Analyzer        orderflow.Config
	Generator       signal.Config
	Risk            risk.Config
	Filters         signal.Chain
	BarInterval     time.Duration
	Equity          float64 // equity que ve el gestor de riesgo
	MaxContracts    int
	ScaleOutPct     float64
	InitialATRTicks float64
	AutoSubscribe   bool // suscribe símbolos desconocidos en su primer tick
}

// DefaultConfig devuelve los valores en vivo (generador estricto, sesión RTH).
func DefaultConfig() Config {
	return Config{
		Analyzer:        orderflow.DefaultConfig(),
		Generator:       signal.DefaultConfig(),
		Risk:            risk.DefaultConfig(),
		BarInterval:     defaultBarInterval,
		Equity:          defaultEquity,
		MaxContracts:    defaultMaxContracts,
		ScaleOutPct:     defaultScaleOut,
		InitialATRTicks: defaultATRTicks,
		AutoSubscribe:   true,
	}
}

// Option configura colaboradores opcionales.
type Option func(*Engine)

// WithStorage persiste cada señal accionable.
func WithStorage(s ports.RunStorage) Option { return func(e *Engine) { e.store = s } }

// WithNotifier notifica cada señal accionable.
func WithNotifier(n ports.Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithMetrics activa las métricas Prometheus.
func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithClock sustituye time.Now en el riesgo y en el cambio de día.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// Engine mantiene un contexto por símbolo suscrito.
type Engine struct {
	cfg      Config
	sink     ports.OrderSink
	store    ports.RunStorage
	notifier ports.Notifier
	metrics  *Metrics
	now      func() time.Time
	loc      *time.Location

	mu          sync.RWMutex
	instruments map[string]*instrument
}

// New crea el motor. sink es obligatorio.
func New(cfg Config, sink ports.OrderSink, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.BarInterval <= 0 {
		cfg.BarInterval = def.BarInterval
	}
	if cfg.Equity <= 0 {
		cfg.Equity = def.Equity
	}
	if cfg.MaxContracts <= 0 {
		cfg.MaxContracts = def.MaxContracts
	}
	if cfg.ScaleOutPct <= 0 || cfg.ScaleOutPct > 1 {
		cfg.ScaleOutPct = def.ScaleOutPct
	}
	if cfg.InitialATRTicks <= 0 {
		cfg.InitialATRTicks = def.InitialATRTicks
	}

	e := &Engine{
		cfg:         cfg,
		sink:        sink,
		now:         time.Now,
		loc:         risk.LoadLocation(cfg.Risk.Location),
		instruments: make(map[string]*instrument),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe crea el contexto de symbol. tickSize o sizeMultiplier no positivos
// caen a la config del analizador. Re-suscribir un símbolo existente sólo
// limpia sus contadores diarios de riesgo. Devuelve true si lo creó.
func (e *Engine) Subscribe(symbol string, tickSize, sizeMultiplier float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if inst, ok := e.instruments[symbol]; ok {
		inst.mu.Lock()
		inst.risk.ResetDaily()
		inst.mu.Unlock()
		return false
	}

	acfg := e.cfg.Analyzer
	if tickSize > 0 {
		acfg.TickSize = tickSize
	}
	if sizeMultiplier > 0 {
		acfg.SizeMultiplier = sizeMultiplier
	}
	inst := newInstrument(symbol, acfg, e.cfg, e.now)
	inst.day = e.dayKey()
	e.instruments[symbol] = inst

	slog.Info("instrument subscribed",
		"symbol", symbol,
		"tick_size", inst.analyzer.TickSize(),
		"size_multiplier", acfg.SizeMultiplier,
	)
	return true
}

// Unsubscribe elimina el contexto. Devuelve false si no existía.
func (e *Engine) Unsubscribe(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.instruments[symbol]; !ok {
		return false
	}
	delete(e.instruments, symbol)
	slog.Info("instrument unsubscribed", "symbol", symbol)
	return true
}

// Symbols devuelve los símbolos suscritos, ordenados.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.instruments))
	for s := range e.instruments {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Snapshot devuelve una copia del estado del símbolo.
func (e *Engine) Snapshot(symbol string) (InstrumentState, bool) {
	inst := e.lookup(symbol)
	if inst == nil {
		return InstrumentState{}, false
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.snapshot(), true
}

// OnTick ingiere un trade. Los símbolos desconocidos se suscriben con
// AutoSubscribe y se descartan si no. El primer tick de un día nuevo reinicia
// la sesión antes de ingerirse. Devuelve false si el tick se descartó.
func (e *Engine) OnTick(msg domain.TickMessage) bool {
	inst := e.lookup(msg.Symbol)
	if inst == nil {
		if !e.cfg.AutoSubscribe || msg.Symbol == "" {
			return false
		}
		e.Subscribe(msg.Symbol, 0, 0)
		if inst = e.lookup(msg.Symbol); inst == nil {
			return false
		}
	}

	inst.mu.Lock()
	e.rollDay(inst)
	inst.ingest(msg)
	inst.mu.Unlock()

	e.metrics.tick(msg.Symbol)
	return true
}

// OnBarClose cierra la barra en curso de symbol y la evalúa. Devuelve el
// registro de una señal accionable, haya llegado al sink o no, y false cuando
// no hay nada que hacer: símbolo desconocido, sin trades desde el último
// cierre, posición abierta o sin setup.
func (e *Engine) OnBarClose(ctx context.Context, symbol string) (domain.SignalRecord, bool) {
	inst := e.lookup(symbol)
	if inst == nil {
		return domain.SignalRecord{}, false
	}

	inst.mu.Lock()
	ev, ok := inst.commit()
	if ok {
		e.metrics.bar(symbol, inst.analyzer.CVD(), inst.equity)
		e.metrics.signal(symbol, ev.signal.Signal)
	}
	if !ok || !ev.signal.IsActionable() || inst.busy() {
		inst.mu.Unlock()
		return domain.SignalRecord{}, false
	}

	sig := ev.signal
	rec := inst.record(sig, e.now())

	if len(e.cfg.Filters) > 0 {
		c := signal.Candidate{
			Result:   sig,
			Features: inst.features(ev),
			Closes:   append([]float64(nil), inst.closes...),
		}
		if allowed, by := e.cfg.Filters.Allow(c); !allowed {
			inst.mu.Unlock()
			rec.RiskReason = BlockedFilter + by
			e.report(ctx, rec)
			return rec, true
		}
	}

	if allowed, reason := inst.risk.CanTrade(inst.equity); !allowed {
		inst.mu.Unlock()
		rec.RiskReason = reason
		e.report(ctx, rec)
		return rec, true
	}

	size := inst.risk.PositionSize(inst.equity, sig.StopTicks, inst.tickSize, e.cfg.MaxContracts)
	if size <= 0 {
		inst.mu.Unlock()
		rec.RiskReason = BlockedZeroSize
		e.report(ctx, rec)
		return rec, true
	}
	rec.Size = size
	order := domain.BracketOrder{
		ClientID:   uuid.NewString(),
		Symbol:     symbol,
		Side:       sig.Signal,
		Size:       size,
		EntryPrice: rec.Price,
		StopPrice:  rec.StopPrice,
		Target1:    rec.Target1,
		Target2:    rec.Target2,
		ScaleOut:   e.cfg.ScaleOutPct,
		Reason:     sig.Reason,
		CreatedAt:  rec.CreatedAt,
	}
	// El sink se llama sin el lock del instrumento: Snapshot, OnPositionUpdate
	// y los otros símbolos no esperan al broker. Los ticks del feed quedan en
	// el buffer de Run. placing impide una segunda entrada mientras tanto.
	inst.placing = true
	inst.mu.Unlock()

	positionID, err := e.sink.PlaceBracket(ctx, order)

	inst.mu.Lock()
	inst.placing = false
	if err == nil {
		inst.inPosition = true
		inst.positionID = positionID
	}
	inst.mu.Unlock()

	if err != nil {
		slog.Warn("order sink failed", "symbol", symbol, "side", sig.Signal.String(), "err", err)
		e.metrics.orderError(symbol)
		rec.RiskReason = BlockedOrderFailed
	} else {
		e.metrics.order(symbol, sig.Signal)
		rec.Allowed = true
		rec.PositionID = positionID
	}
	e.report(ctx, rec)
	return rec, true
}

// CloseBars ejecuta OnBarClose en todos los símbolos y devuelve los registros
// accionables.
func (e *Engine) CloseBars(ctx context.Context) []domain.SignalRecord {
	var out []domain.SignalRecord
	for _, symbol := range e.Symbols() {
		if rec, ok := e.OnBarClose(ctx, symbol); ok {
			out = append(out, rec)
		}
	}
	return out
}

// OnPositionUpdate aplica un reporte de posición del broker. Posición 0
// vuelve a habilitar entradas.
func (e *Engine) OnPositionUpdate(symbol string, position int) {
	inst := e.lookup(symbol)
	if inst == nil {
		return
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.inPosition = position != 0
	if !inst.inPosition {
		inst.positionID = ""
	}
	slog.Debug("position update", "symbol", symbol, "position", position)
}

// RecordFill registra el P&L realizado de un trade cerrado en el gestor de riesgo.
func (e *Engine) RecordFill(symbol string, pnl float64) {
	inst := e.lookup(symbol)
	if inst == nil {
		return
	}
	inst.mu.Lock()
	inst.risk.RecordTrade(pnl)
	inst.equity += pnl
	inst.risk.UpdateEquity(inst.equity)
	state := inst.risk.State()
	equity := inst.equity
	inst.mu.Unlock()

	e.metrics.equity(symbol, equity)
	slog.Info("trade recorded",
		"symbol", symbol,
		"pnl", pnl,
		"equity", equity,
		"daily_pnl", state.DailyPnL,
		"consecutive_losses", state.ConsecutiveLosses,
	)
}

// Flatten cierra la posición abierta del símbolo a través del sink.
func (e *Engine) Flatten(ctx context.Context, symbol string) (bool, error) {
	inst := e.lookup(symbol)
	if inst == nil {
		return false, nil
	}
	inst.mu.Lock()
	id := inst.positionID
	inst.mu.Unlock()
	if id == "" {
		return false, nil
	}

	closed, err := e.sink.Close(ctx, id)
	if err != nil {
		return false, err
	}
	if closed {
		inst.mu.Lock()
		if inst.positionID == id {
			inst.positionID = ""
			inst.inPosition = false
		}
		inst.mu.Unlock()
	}
	return closed, nil
}

// Run consume feed hasta que ctx se cancela, cerrando barras cada
// BarInterval. Los errores del feed se loguean y se reintenta. Devuelve nil al
// cancelar.
func (e *Engine) Run(ctx context.Context, feed ports.TradeFeed) error {
	ticks := make(chan domain.TickMessage, tickBuffer)
	go e.pump(ctx, feed, ticks)

	ticker := time.NewTicker(e.cfg.BarInterval)
	defer ticker.Stop()

	slog.Info("live engine started",
		"bar_interval", e.cfg.BarInterval.String(),
		"symbols", e.Symbols(),
		"auto_subscribe", e.cfg.AutoSubscribe,
	)
	for {
		select {
		case <-ctx.Done():
			slog.Info("live engine stopped")
			return nil
		case msg, ok := <-ticks:
			if !ok {
				return nil
			}
			e.OnTick(msg)
		case <-ticker.C:
			e.CloseBars(ctx)
		}
	}
}

// pump lee el feed hacia out hasta que ctx termina.
func (e *Engine) pump(ctx context.Context, feed ports.TradeFeed, out chan<- domain.TickMessage) {
	defer close(out)
	for {
		msg, err := feed.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.metrics.feedError()
			slog.Warn("trade feed read failed", "err", err)
			select {
			case <-time.After(feedRetryWait):
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) lookup(symbol string) *instrument {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.instruments[symbol]
}

// rollDay reinicia la sesión del instrumento en el primer tick de un día
// nuevo (zona de la sesión de riesgo): CVD, perfil, barras, absorción y big
// trades del analizador, contadores diarios y equity de inicio. El llamador
// tiene inst.mu.
func (e *Engine) rollDay(inst *instrument) {
	day := e.dayKey()
	if inst.day != 0 && inst.day != day {
		inst.analyzer.ResetSession()
		inst.risk.ResetDaily()
		inst.risk.SetSessionEquity(inst.equity)
		slog.Info("session reset", "symbol", inst.symbol, "day", day, "equity", inst.equity)
	}
	inst.day = day
}

// dayKey devuelve la fecha actual como yyyymmdd en la zona de la sesión.
func (e *Engine) dayKey() int {
	y, m, d := e.now().In(e.loc).Date()
	return y*10000 + int(m)*100 + d
}

// report loguea, persiste y notifica una señal accionable.
func (e *Engine) report(ctx context.Context, rec domain.SignalRecord) {
	if rec.Allowed {
		slog.Info("signal sent",
			"symbol", rec.Symbol,
			"side", rec.Side.String(),
			"strength", rec.Strength,
			"size", rec.Size,
			"position", rec.PositionID,
		)
	} else {
		e.metrics.blocked(rec.Symbol, rec.RiskReason)
		slog.Info("signal blocked",
			"symbol", rec.Symbol,
			"side", rec.Side.String(),
			"strength", rec.Strength,
			"reason", rec.RiskReason,
		)
	}

	if e.store != nil {
		if err := e.store.SaveSignal(ctx, rec); err != nil {
			slog.Warn("save signal failed", "symbol", rec.Symbol, "err", err)
		}
	}
	if e.notifier != nil {
		if err := e.notifier.NotifySignal(ctx, rec); err != nil {
			slog.Warn("notify signal failed", "symbol", rec.Symbol, "err", err)
		}
	}
}
