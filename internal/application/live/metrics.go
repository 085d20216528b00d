package live

import (
	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics son los collectors Prometheus del motor en vivo:
//
//	flowscalp_ticks_total{symbol}                trades ingeridos
//	flowscalp_bars_total{symbol}                 barras cerradas
//	flowscalp_signals_total{symbol,side}         señales evaluadas al cierre
//	flowscalp_blocked_total{symbol,reason}       señales accionables no enviadas
//	flowscalp_orders_total{symbol,side}          brackets aceptados por el sink
//	flowscalp_order_errors_total{symbol}         fallos del sink
//	flowscalp_feed_errors_total                  fallos de lectura del feed
//	flowscalp_cvd{symbol}                        CVD de sesión tras la última barra
//	flowscalp_equity_usd{symbol}                 equity que ve el gestor de riesgo
type Metrics struct {
	Ticks       *prometheus.CounterVec
	Bars        *prometheus.CounterVec
	Signals     *prometheus.CounterVec
	Blocked     *prometheus.CounterVec
	Orders      *prometheus.CounterVec
	OrderErrors *prometheus.CounterVec
	FeedErrors  prometheus.Counter
	CVD         *prometheus.GaugeVec
	Equity      *prometheus.GaugeVec
}

// NewMetrics crea los collectors y los registra en reg.
// En tests, pasar un prometheus.NewRegistry() nuevo.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowscalp_ticks_total",
			Help: "Trades ingested from the feed",
		}, []string{"symbol"}),
		Bars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowscalp_bars_total",
			Help: "Bars committed",
		}, []string{"symbol"}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowscalp_signals_total",
			Help: "Signals evaluated at bar close",
		}, []string{"symbol", "side"}),
		Blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowscalp_blocked_total",
			Help: "Actionable signals not sent, by reason",
		}, []string{"symbol", "reason"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowscalp_orders_total",
			Help: "Bracket orders accepted by the order sink",
		}, []string{"symbol", "side"}),
		OrderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowscalp_order_errors_total",
			Help: "Order sink failures",
		}, []string{"symbol"}),
		FeedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowscalp_feed_errors_total",
			Help: "Trade feed read failures",
		}),
		CVD: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flowscalp_cvd",
			Help: "Session cumulative volume delta",
		}, []string{"symbol"}),
		Equity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flowscalp_equity_usd",
			Help: "Equity seen by the risk gate",
		}, []string{"symbol"}),
	}
	reg.MustRegister(m.Ticks, m.Bars, m.Signals, m.Blocked, m.Orders,
		m.OrderErrors, m.FeedErrors, m.CVD, m.Equity)
	return m
}

// Los helpers aceptan receptor nil: el motor funciona sin métricas.

func (m *Metrics) tick(symbol string) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(symbol).Inc()
}

func (m *Metrics) bar(symbol string, cvd, equity float64) {
	if m == nil {
		return
	}
	m.Bars.WithLabelValues(symbol).Inc()
	m.CVD.WithLabelValues(symbol).Set(cvd)
	m.Equity.WithLabelValues(symbol).Set(equity)
}

func (m *Metrics) signal(symbol string, side domain.Side) {
	if m == nil {
		return
	}
	m.Signals.WithLabelValues(symbol, side.String()).Inc()
}

func (m *Metrics) blocked(symbol, reason string) {
	if m == nil {
		return
	}
	m.Blocked.WithLabelValues(symbol, reason).Inc()
}

func (m *Metrics) order(symbol string, side domain.Side) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(symbol, side.String()).Inc()
}

func (m *Metrics) orderError(symbol string) {
	if m == nil {
		return
	}
	m.OrderErrors.WithLabelValues(symbol).Inc()
}

func (m *Metrics) feedError() {
	if m == nil {
		return
	}
	m.FeedErrors.Inc()
}

func (m *Metrics) equity(symbol string, equity float64) {
	if m == nil {
		return
	}
	m.Equity.WithLabelValues(symbol).Set(equity)
}
