// Package risk implementa el sizing por riesgo fijo y la admisión de trades:
// drawdown diario, pérdidas consecutivas, tope de trades y ventana de sesión.
package risk

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/alejandrodnm/flowscalp/internal/domain"
)

// Config parametriza el gestor de riesgo.
type Config struct {
	RiskPct              float64 // fracción del balance arriesgada por trade
	MaxDailyDrawdownPct  float64 // fracción desde el pico que pausa el día
	MaxConsecutiveLosses int
	MaxDailyTrades       int
	SessionStart         string // "HH:MM" en Location
	SessionEnd           string
	TickValue            float64 // USD por tick y contrato
	UseGlobex            bool    // 24h: ignora la ventana de sesión
	Location             string  // zona IANA, vacío = America/New_York
}

// DefaultConfig devuelve la configuración de sesión RTH de NQ.
func DefaultConfig() Config {
	return Config{
		RiskPct:              0.01,
		MaxDailyDrawdownPct:  0.03,
		MaxConsecutiveLosses: 3,
		MaxDailyTrades:       20,
		SessionStart:         "09:30",
		SessionEnd:           "16:00",
		TickValue:            5,
		Location:             DefaultLocation,
	}
}

// Option modifica un Manager en la construcción.
type Option func(*Manager)

// WithClock inyecta el reloj usado por CanTrade.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager lleva el estado de riesgo de un instrumento. No es seguro para uso concurrente.
type Manager struct {
	cfg          Config
	state        domain.RiskState
	loc          *time.Location
	sessionStart int // minutos desde medianoche
	sessionEnd   int
	now          func() time.Time
}

// New crea un Manager. Horas de sesión inválidas caen a 09:30-16:00 y una
// zona desconocida a UTC, ambas con un warning.
func New(cfg Config, opts ...Option) *Manager {
	m := &Manager{cfg: cfg, now: time.Now}

	var err error
	if m.sessionStart, err = parseClock(cfg.SessionStart); err != nil {
		slog.Warn("risk: invalid session start, using 09:30", "value", cfg.SessionStart, "err", err)
		m.sessionStart = 9*60 + 30
	}
	if m.sessionEnd, err = parseClock(cfg.SessionEnd); err != nil {
		slog.Warn("risk: invalid session end, using 16:00", "value", cfg.SessionEnd, "err", err)
		m.sessionEnd = 16 * 60
	}

	m.loc = LoadLocation(cfg.Location)

	for _, o := range opts {
		o(m)
	}
	return m
}

// DefaultLocation es la zona de la sesión cuando Config.Location está vacío.
const DefaultLocation = "America/New_York"

// LoadLocation resuelve la zona de la sesión: vacío = DefaultLocation,
// desconocida = UTC con un warning. El motor en vivo la usa para el cambio de
// día, así sesión y reset diario comparten zona.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultLocation
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("risk: unknown location, using UTC", "location", name, "err", err)
		return time.UTC
	}
	return loc
}

// parseClock convierte "HH:MM" (o "HH") en minutos desde medianoche.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("risk.parseClock: hour %q: %w", s, err)
	}
	mm := 0
	if len(parts) == 2 {
		if mm, err = strconv.Atoi(parts[1]); err != nil {
			return 0, fmt.Errorf("risk.parseClock: minute %q: %w", s, err)
		}
	}
	if h < 0 || h > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("risk.parseClock: out of range %q", s)
	}
	return h*60 + mm, nil
}

// PositionSize devuelve los contratos tales que la pérdida en el stop no
// supere RiskPct del balance, acotado a [0, maxContracts].
func (m *Manager) PositionSize(balance float64, stopTicks int, tickSize float64, maxContracts int) int {
	if balance <= 0 || stopTicks <= 0 || tickSize <= 0 || m.cfg.TickValue <= 0 {
		return 0
	}
	perContract := float64(stopTicks) * tickSize * m.cfg.TickValue
	size := int(math.Floor(balance * m.cfg.RiskPct / perContract))
	return max(0, min(size, maxContracts))
}

// InSession indica si t cae dentro de la ventana de sesión. Las ventanas con
// start > end cruzan la medianoche.
func (m *Manager) InSession(t time.Time) bool {
	if m.cfg.UseGlobex {
		return true
	}
	lt := t.In(m.loc)
	cur := lt.Hour()*60 + lt.Minute()
	if m.sessionStart <= m.sessionEnd {
		return cur >= m.sessionStart && cur <= m.sessionEnd
	}
	return cur >= m.sessionStart || cur <= m.sessionEnd
}

// CanTrade evalúa las reglas de admisión en orden; la primera que falla gana.
// Puede activar Paused o Halted como efecto.
func (m *Manager) CanTrade(equity float64) (bool, string) {
	s := &m.state
	m.UpdateEquity(equity)

	if s.Halted {
		return false, domain.RiskHalted
	}
	if s.Paused {
		return false, domain.RiskPaused
	}
	if s.DailyTrades >= m.cfg.MaxDailyTrades {
		return false, domain.RiskMaxDailyTrades
	}
	if !m.InSession(m.now()) {
		return false, domain.RiskOutsideSession
	}
	if s.PeakEquity > 0 && (s.PeakEquity-equity)/s.PeakEquity >= m.cfg.MaxDailyDrawdownPct {
		s.Paused = true
		slog.Info("risk: daily drawdown limit reached, pausing",
			"peak", s.PeakEquity, "equity", equity)
		return false, domain.RiskDrawdownLimit
	}
	if s.ConsecutiveLosses >= m.cfg.MaxConsecutiveLosses {
		s.Halted = true
		slog.Info("risk: consecutive loss limit reached, halting", "losses", s.ConsecutiveLosses)
		return false, domain.RiskConsecutiveLosses
	}
	return true, domain.RiskOK
}

// RecordTrade registra un trade cerrado. pnl <= 0 cuenta como pérdida.
func (m *Manager) RecordTrade(pnl float64) {
	s := &m.state
	s.DailyPnL += pnl
	s.DailyTrades++
	if pnl <= 0 {
		s.ConsecutiveLosses++
	} else {
		s.ConsecutiveLosses = 0
	}
}

// ResetDaily limpia los contadores diarios y los flags. No toca el pico de equity.
func (m *Manager) ResetDaily() {
	s := &m.state
	s.DailyPnL = 0
	s.DailyTrades = 0
	s.ConsecutiveLosses = 0
	s.Paused = false
	s.Halted = false
}

// SetSessionEquity ancla el equity de inicio de sesión y el pico.
func (m *Manager) SetSessionEquity(equity float64) {
	m.state.SessionStartEquity = equity
	m.state.PeakEquity = equity
}

// UpdateEquity sube el pico si equity lo supera.
func (m *Manager) UpdateEquity(equity float64) {
	m.state.PeakEquity = math.Max(m.state.PeakEquity, equity)
}

// State devuelve una copia del estado actual.
func (m *Manager) State() domain.RiskState {
	return m.state
}

// Config devuelve la configuración activa.
func (m *Manager) Config() Config {
	return m.cfg
}
