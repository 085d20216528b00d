// Package kafka implementa ports.TradeFeed leyendo ticks JSON de un topic Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/domain"
	kafka "github.com/segmentio/kafka-go"
)

// Config del consumer.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// reader es el subconjunto de *kafka.Reader que usa Feed.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Feed consume ticks de un topic. Cada mensaje es un domain.TickMessage en
// JSON; si no trae symbol se toma la key del mensaje.
type Feed struct {
	r       reader
	skipped int
}

// NewFeed crea el consumer con commit manual.
func NewFeed(cfg Config) (*Feed, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka.NewFeed: no brokers")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka.NewFeed: empty topic")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		StartOffset:    kafka.LastOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	return &Feed{r: r}, nil
}

func newFeed(r reader) *Feed {
	return &Feed{r: r}
}

// Next bloquea hasta el siguiente tick válido. Los mensajes que no se pueden
// decodificar se registran, se confirman y se saltan.
func (f *Feed) Next(ctx context.Context) (domain.TickMessage, error) {
	for {
		msg, err := f.r.FetchMessage(ctx)
		if err != nil {
			return domain.TickMessage{}, fmt.Errorf("kafka.Next: fetch: %w", err)
		}

		tick, derr := decode(msg)
		if err := f.commit(msg); err != nil {
			slog.Warn("kafka commit failed", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		}
		if derr != nil {
			f.skipped++
			slog.Warn("kafka tick skipped",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"err", derr,
			)
			continue
		}
		return tick, nil
	}
}

// Skipped devuelve cuántos mensajes inválidos se han saltado.
func (f *Feed) Skipped() int { return f.skipped }

// Close cierra el reader.
func (f *Feed) Close() error {
	if err := f.r.Close(); err != nil {
		return fmt.Errorf("kafka.Close: %w", err)
	}
	return nil
}

func (f *Feed) commit(msg kafka.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.r.CommitMessages(ctx, msg)
}

func decode(msg kafka.Message) (domain.TickMessage, error) {
	var t domain.TickMessage
	if err := json.Unmarshal(msg.Value, &t); err != nil {
		return t, fmt.Errorf("decode: %w", err)
	}
	if t.Symbol == "" {
		t.Symbol = strings.TrimSpace(string(msg.Key))
	}
	switch {
	case t.Symbol == "":
		return t, errors.New("missing symbol")
	case !t.HasLevels() && (t.Price <= 0 || t.Size <= 0):
		return t, errors.New("non-positive price or size")
	}
	if t.TS == 0 && !msg.Time.IsZero() {
		t.TS = msg.Time.UnixMilli()
	}
	return t, nil
}
