package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/google/uuid"
)

var (
	errNoSide  = errors.New("order has no side")
	errNoSize  = errors.New("order size must be positive")
	errNoPrice = errors.New("order entry price must be positive")
)

// PaperSink implementa ports.OrderSink en memoria. Registra el bracket y lo
// mantiene abierto hasta Close o hasta que Mark toque stop o target.
type PaperSink struct {
	mu       sync.Mutex
	tickSize float64
	open     map[string]domain.BracketOrder
	placed   int
	now      func() time.Time
}

// NewPaperSink crea un sink paper que ajusta precios a tickSize.
func NewPaperSink(tickSize float64) *PaperSink {
	return &PaperSink{
		tickSize: tickSize,
		open:     make(map[string]domain.BracketOrder),
		now:      time.Now,
	}
}

// PlaceBracket registra la orden y devuelve un position ID "paper-<uuid>".
func (s *PaperSink) PlaceBracket(_ context.Context, order domain.BracketOrder) (string, error) {
	if err := validate(order); err != nil {
		return "", fmt.Errorf("broker.PaperSink.PlaceBracket: %w", err)
	}
	order = snapOrder(order, s.tickSize)
	if order.ClientID == "" {
		order.ClientID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	id := "paper-" + uuid.NewString()

	s.mu.Lock()
	s.open[id] = order
	s.placed++
	s.mu.Unlock()

	slog.Info("paper bracket placed",
		"position", id,
		"symbol", order.Symbol,
		"side", order.Side.String(),
		"size", order.Size,
		"entry", order.EntryPrice,
		"stop", order.StopPrice,
		"tp1", order.Target1,
		"tp2", order.Target2,
	)
	return id, nil
}

// Close cierra la posición. Devuelve false si no existía o ya estaba cerrada.
func (s *PaperSink) Close(_ context.Context, positionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.open[positionID]; !ok {
		return false, nil
	}
	delete(s.open, positionID)
	slog.Info("paper position closed", "position", positionID)
	return true, nil
}

// Position devuelve la orden de una posición abierta.
func (s *PaperSink) Position(positionID string) (domain.BracketOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.open[positionID]
	return o, ok
}

// OpenPositions devuelve cuántas posiciones siguen abiertas.
func (s *PaperSink) OpenPositions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// Placed devuelve el total de brackets aceptados desde el arranque.
func (s *PaperSink) Placed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placed
}

// PaperFill es una salida simulada por Mark.
type PaperFill struct {
	PositionID string
	Order      domain.BracketOrder
	ExitPrice  float64
	Reason     domain.ExitReason
	Points     float64 // puntos a favor (negativo = pérdida), por contrato
}

// Mark evalúa el último precio de symbol contra los brackets abiertos y cierra
// los que toquen un nivel. Prioridad: stop, target2, target1 (salida completa).
func (s *PaperSink) Mark(symbol string, price float64) []PaperFill {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fills []PaperFill
	for id, o := range s.open {
		if o.Symbol != symbol {
			continue
		}
		reason, exit, ok := touched(o, price)
		if !ok {
			continue
		}
		points := exit - o.EntryPrice
		if o.Side == domain.SideShort {
			points = -points
		}
		delete(s.open, id)
		fills = append(fills, PaperFill{PositionID: id, Order: o, ExitPrice: exit, Reason: reason, Points: points})
		slog.Info("paper position filled",
			"position", id,
			"symbol", symbol,
			"reason", string(reason),
			"exit", exit,
			"points", points,
		)
	}
	return fills
}

func touched(o domain.BracketOrder, price float64) (domain.ExitReason, float64, bool) {
	long := o.Side == domain.SideLong
	switch {
	case long && price <= o.StopPrice, !long && price >= o.StopPrice:
		return domain.ExitStop, o.StopPrice, true
	case long && price >= o.Target2, !long && price <= o.Target2:
		return domain.ExitTarget2, o.Target2, true
	case long && price >= o.Target1, !long && price <= o.Target1:
		return domain.ExitTarget1, o.Target1, true
	}
	return "", 0, false
}
