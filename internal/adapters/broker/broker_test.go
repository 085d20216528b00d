package broker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alejandrodnm/flowscalp/internal/adapters/broker"
	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longOrder() domain.BracketOrder {
	return domain.BracketOrder{
		Symbol:     "NQ",
		Side:       domain.SideLong,
		Size:       2,
		EntryPrice: 20000.1,
		StopPrice:  19994.27,
		Target1:    20005.8,
		Target2:    20011.6,
		ScaleOut:   0.5,
		Reason:     domain.ReasonLongSetup,
	}
}

func TestSnapToTick(t *testing.T) {
	assert.Equal(t, 20000.25, broker.SnapToTick(20000.3, 0.25))
	assert.Equal(t, 20000.0, broker.SnapToTick(20000.1, 0.25))
	assert.Equal(t, 4500.5, broker.SnapToTick(4500.49, 0.1))
	assert.Equal(t, 123.456, broker.SnapToTick(123.456, 0), "tick 0 no modifica el precio")
}

// --- PaperSink ---

func TestPaperSink_PlaceAndClose(t *testing.T) {
	s := broker.NewPaperSink(0.25)
	ctx := context.Background()

	id, err := s.PlaceBracket(ctx, longOrder())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "paper-"))
	assert.Equal(t, 1, s.OpenPositions())

	o, ok := s.Position(id)
	require.True(t, ok)
	assert.Equal(t, 20000.0, o.EntryPrice)
	assert.Equal(t, 19994.25, o.StopPrice)
	assert.Equal(t, 20005.75, o.Target1)
	assert.Equal(t, 20011.5, o.Target2)
	assert.NotEmpty(t, o.ClientID)
	assert.False(t, o.CreatedAt.IsZero())

	closed, err := s.Close(ctx, id)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = s.Close(ctx, id)
	require.NoError(t, err)
	assert.False(t, closed, "segunda vez ya estaba cerrada")
	assert.Zero(t, s.OpenPositions())
	assert.Equal(t, 1, s.Placed())
}

func TestPaperSink_RejectsInvalid(t *testing.T) {
	s := broker.NewPaperSink(0.25)
	ctx := context.Background()

	o := longOrder()
	o.Side = domain.SideNone
	_, err := s.PlaceBracket(ctx, o)
	assert.Error(t, err)

	o = longOrder()
	o.Size = 0
	_, err = s.PlaceBracket(ctx, o)
	assert.Error(t, err)

	assert.Zero(t, s.Placed())
}

func TestPaperSink_UniqueIDs(t *testing.T) {
	s := broker.NewPaperSink(0.25)
	a, err := s.PlaceBracket(context.Background(), longOrder())
	require.NoError(t, err)
	b, err := s.PlaceBracket(context.Background(), longOrder())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, s.OpenPositions())
}

func TestPaperSink_Mark(t *testing.T) {
	s := broker.NewPaperSink(0.25)
	ctx := context.Background()
	id, err := s.PlaceBracket(ctx, longOrder())
	require.NoError(t, err)

	assert.Empty(t, s.Mark("NQ", 20002), "dentro del bracket")
	assert.Empty(t, s.Mark("ES", 19000), "otro símbolo")

	fills := s.Mark("NQ", 20006)
	require.Len(t, fills, 1)
	assert.Equal(t, id, fills[0].PositionID)
	assert.Equal(t, domain.ExitTarget1, fills[0].Reason)
	assert.Equal(t, 20005.75, fills[0].ExitPrice)
	assert.Equal(t, 5.75, fills[0].Points)
	assert.Zero(t, s.OpenPositions())
}

func TestPaperSink_MarkShortStop(t *testing.T) {
	s := broker.NewPaperSink(0.25)
	o := longOrder()
	o.Side = domain.SideShort
	o.StopPrice, o.Target1, o.Target2 = 20005.75, 19994.25, 19988.5
	_, err := s.PlaceBracket(context.Background(), o)
	require.NoError(t, err)

	fills := s.Mark("NQ", 20010)
	require.Len(t, fills, 1)
	assert.Equal(t, domain.ExitStop, fills[0].Reason)
	assert.Equal(t, -5.75, fills[0].Points)
}

// --- BridgeSink ---

func newBridge(t *testing.T, srv *httptest.Server) *broker.BridgeSink {
	t.Helper()
	b, err := broker.NewBridgeSink(broker.BridgeConfig{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		TickSize:   0.25,
		RatePerSec: 1000,
		Burst:      10,
	})
	require.NoError(t, err)
	return b
}

func TestNewBridgeSink_RequiresURL(t *testing.T) {
	_, err := broker.NewBridgeSink(broker.BridgeConfig{})
	assert.Error(t, err)
}

func TestBridgeSink_PlaceBracket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "NQ", body["symbol"])
		assert.Equal(t, "long", body["side"])
		assert.Equal(t, 2.0, body["quantity"])
		assert.Equal(t, 20000.0, body["entry"])
		assert.Equal(t, 19994.25, body["stop"])
		assert.NotEmpty(t, body["client_id"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"position_id":"pos-42"}`))
	}))
	defer srv.Close()

	id, err := newBridge(t, srv).PlaceBracket(context.Background(), longOrder())
	require.NoError(t, err)
	assert.Equal(t, "pos-42", id)
}

func TestBridgeSink_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"position_id":"pos-1"}`))
	}))
	defer srv.Close()

	id, err := newBridge(t, srv).PlaceBracket(context.Background(), longOrder())
	require.NoError(t, err)
	assert.Equal(t, "pos-1", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBridgeSink_ClientErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "market closed", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newBridge(t, srv).PlaceBracket(context.Background(), longOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market closed")
	assert.Equal(t, int32(1), calls.Load())
}

func TestBridgeSink_EmptyPositionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newBridge(t, srv).PlaceBracket(context.Background(), longOrder())
	assert.Error(t, err)
}

func TestBridgeSink_Close(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions/pos-42/close", r.URL.Path)
		w.Write([]byte(`{"closed":true}`))
	}))
	defer srv.Close()

	closed, err := newBridge(t, srv).Close(context.Background(), "pos-42")
	require.NoError(t, err)
	assert.True(t, closed)
}
