package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultRatePerSec = 5
	defaultBurst      = 2

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// BridgeConfig parametriza el cliente del bridge HTTP hacia el broker.
type BridgeConfig struct {
	BaseURL    string
	APIKey     string
	TickSize   float64
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
}

// BridgeSink implementa ports.OrderSink contra un bridge HTTP que traduce
// brackets a la API del broker.
//
//	POST /orders                  → {"position_id": "..."}
//	POST /positions/{id}/close    → {"closed": true}
type BridgeSink struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	tickSize float64
	limiter  *rate.Limiter
}

// NewBridgeSink crea el sink. Devuelve error si no hay BaseURL.
func NewBridgeSink(cfg BridgeConfig) (*BridgeSink, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("broker.NewBridgeSink: empty base url")
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &BridgeSink{
		http:     &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		tickSize: cfg.TickSize,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
	}, nil
}

type bracketRequest struct {
	ClientID string  `json:"client_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity int     `json:"quantity"`
	Entry    float64 `json:"entry"`
	Stop     float64 `json:"stop"`
	Target1  float64 `json:"target1"`
	Target2  float64 `json:"target2"`
	ScaleOut float64 `json:"scale_out,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

type bracketResponse struct {
	PositionID string `json:"position_id"`
}

type closeResponse struct {
	Closed bool `json:"closed"`
}

// PlaceBracket envía el bracket al bridge y devuelve el position ID del broker.
// El client_id es estable entre reintentos para que el bridge pueda deduplicar.
func (b *BridgeSink) PlaceBracket(ctx context.Context, order domain.BracketOrder) (string, error) {
	if err := validate(order); err != nil {
		return "", fmt.Errorf("broker.BridgeSink.PlaceBracket: %w", err)
	}
	order = snapOrder(order, b.tickSize)
	if order.ClientID == "" {
		order.ClientID = uuid.NewString()
	}

	req := bracketRequest{
		ClientID: order.ClientID,
		Symbol:   order.Symbol,
		Side:     order.Side.String(),
		Quantity: order.Size,
		Entry:    order.EntryPrice,
		Stop:     order.StopPrice,
		Target1:  order.Target1,
		Target2:  order.Target2,
		ScaleOut: order.ScaleOut,
		Reason:   order.Reason,
	}
	var resp bracketResponse
	if err := b.post(ctx, b.baseURL+"/orders", req, &resp); err != nil {
		return "", fmt.Errorf("broker.BridgeSink.PlaceBracket: %s: %w", order.Symbol, err)
	}
	if resp.PositionID == "" {
		return "", fmt.Errorf("broker.BridgeSink.PlaceBracket: %s: empty position id", order.Symbol)
	}
	return resp.PositionID, nil
}

// Close pide al bridge aplanar la posición.
func (b *BridgeSink) Close(ctx context.Context, positionID string) (bool, error) {
	var resp closeResponse
	u := b.baseURL + "/positions/" + url.PathEscape(positionID) + "/close"
	if err := b.post(ctx, u, struct{}{}, &resp); err != nil {
		return false, fmt.Errorf("broker.BridgeSink.Close: %s: %w", positionID, err)
	}
	return resp.Closed, nil
}

// post hace un POST JSON con rate limiting y retries.
func (b *BridgeSink) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return b.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if b.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+b.apiKey)
		}
		return b.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
// 429 y 5xx se reintentan; el resto de 4xx se devuelve tal cual.
func (b *BridgeSink) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			b.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by bridge", "attempt", attempt+1)
			b.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			b.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (b *BridgeSink) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
