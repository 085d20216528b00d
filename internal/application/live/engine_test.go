package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/alejandrodnm/flowscalp/internal/signal"
)

// --- test doubles ---

type mockSink struct {
	mock.Mock
}

func (m *mockSink) PlaceBracket(ctx context.Context, order domain.BracketOrder) (string, error) {
	args := m.Called(ctx, order)
	return args.String(0), args.Error(1)
}

func (m *mockSink) Close(ctx context.Context, positionID string) (bool, error) {
	args := m.Called(ctx, positionID)
	return args.Bool(0), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifySignal(ctx context.Context, sig domain.SignalRecord) error {
	return m.Called(ctx, sig).Error(0)
}

type memStore struct {
	mu      sync.Mutex
	signals []domain.SignalRecord
}

func (s *memStore) SaveRun(context.Context, domain.RunRecord) error { return nil }

func (s *memStore) GetRuns(context.Context, int) ([]domain.RunRecord, error) { return nil, nil }

func (s *memStore) SaveSignal(_ context.Context, sig domain.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	return nil
}

func (s *memStore) Close() error { return nil }

type sliceFeed struct {
	mu   sync.Mutex
	msgs []domain.TickMessage
}

func (f *sliceFeed) Next(ctx context.Context) (domain.TickMessage, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return domain.TickMessage{}, ctx.Err()
}

func (f *sliceFeed) Close() error { return nil }

// --- helpers ---

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Generator.RequireAbsorption = false
	cfg.Generator.RequireAtStructure = false
	cfg.Generator.MinDeltaMultiplier = 1.2
	cfg.Risk.UseGlobex = true
	cfg.AutoSubscribe = false
	return cfg
}

// barTicks es una barra de presión compradora: delta +105 y un big trade
// comprador. Las ventas van primero para que cualquier sufijo tenga delta > 0.
func barTicks(symbol string) []domain.TickMessage {
	var out []domain.TickMessage
	for i := 0; i < 4; i++ {
		out = append(out, domain.TickMessage{Symbol: symbol, Price: 20000, Size: 5})
	}
	out = append(out, domain.TickMessage{Symbol: symbol, Price: 20000, Size: 35, IsBuy: true})
	for i := 0; i < 18; i++ {
		out = append(out, domain.TickMessage{Symbol: symbol, Price: 20000, Size: 5, IsBuy: true})
	}
	return out
}

func feedBar(t *testing.T, e *Engine, symbol string) {
	t.Helper()
	for _, m := range barTicks(symbol) {
		require.True(t, e.OnTick(m))
	}
}

// warmUp alimenta 5 barras sin señal; la sexta (CVD 630) da el long.
func warmUp(t *testing.T, e *Engine, symbol string) {
	t.Helper()
	for i := 0; i < 5; i++ {
		feedBar(t, e, symbol)
		_, ok := e.OnBarClose(context.Background(), symbol)
		require.False(t, ok, "bar %d", i)
	}
	feedBar(t, e, symbol)
}

// --- tests ---

func TestSubscribeUnsubscribe(t *testing.T) {
	e := New(testConfig(), &mockSink{})

	assert.True(t, e.Subscribe("NQ", 0.25, 1))
	assert.True(t, e.Subscribe("ES", 0.25, 1))
	assert.False(t, e.Subscribe("NQ", 0.25, 1), "ya existía")
	assert.Equal(t, []string{"ES", "NQ"}, e.Symbols())

	assert.True(t, e.Unsubscribe("ES"))
	assert.False(t, e.Unsubscribe("ES"))
	assert.Equal(t, []string{"NQ"}, e.Symbols())

	_, ok := e.Snapshot("ES")
	assert.False(t, ok)
}

func TestOnTick_UnknownSymbol(t *testing.T) {
	cfg := testConfig()
	e := New(cfg, &mockSink{})
	assert.False(t, e.OnTick(domain.TickMessage{Symbol: "NQ", Price: 20000, Size: 1}))
	assert.Empty(t, e.Symbols())

	cfg.AutoSubscribe = true
	e = New(cfg, &mockSink{})
	assert.True(t, e.OnTick(domain.TickMessage{Symbol: "NQ", Price: 20000, Size: 1, IsBuy: true}))
	assert.Equal(t, []string{"NQ"}, e.Symbols())
	assert.False(t, e.OnTick(domain.TickMessage{Price: 1, Size: 1}), "sin símbolo")
}

func TestOnTick_Levels(t *testing.T) {
	e := New(testConfig(), &mockSink{})
	e.Subscribe("NQ", 0.25, 2)

	e.OnTick(domain.TickMessage{Symbol: "NQ", PriceLevel: 80000, SizeLevel: 6, IsBuy: true})
	e.OnTick(domain.TickMessage{Symbol: "NQ", PriceLevel: 80001, SizeLevel: 2})

	s, ok := e.Snapshot("NQ")
	require.True(t, ok)
	assert.Equal(t, 20000.25, s.LastPrice)
	assert.Equal(t, 2.0, s.CVD, "6/2 - 2/2")
}

func TestOnBarClose_NoTradesNoBar(t *testing.T) {
	e := New(testConfig(), &mockSink{})
	e.Subscribe("NQ", 0.25, 1)

	_, ok := e.OnBarClose(context.Background(), "NQ")
	assert.False(t, ok)
	_, ok = e.OnBarClose(context.Background(), "UNKNOWN")
	assert.False(t, ok)

	s, _ := e.Snapshot("NQ")
	assert.Zero(t, s.Bars)
}

func TestOnBarClose_SendsBracket(t *testing.T) {
	sink := &mockSink{}
	sink.On("PlaceBracket", mock.Anything, mock.MatchedBy(func(o domain.BracketOrder) bool {
		return o.Symbol == "NQ" && o.Side == domain.SideLong && o.ClientID != ""
	})).Return("pos-1", nil).Once()
	notifier := &mockNotifier{}
	notifier.On("NotifySignal", mock.Anything, mock.Anything).Return(nil).Once()
	store := &memStore{}
	metrics := NewMetrics(prometheus.NewRegistry())
	clk := newClock()

	e := New(testConfig(), sink,
		WithStorage(store), WithNotifier(notifier), WithMetrics(metrics), WithClock(clk.now))
	e.Subscribe("NQ", 0.25, 1)
	warmUp(t, e, "NQ")

	rec, ok := e.OnBarClose(context.Background(), "NQ")
	require.True(t, ok)
	assert.True(t, rec.Allowed)
	assert.Equal(t, "pos-1", rec.PositionID)
	assert.Equal(t, domain.SideLong, rec.Side)
	assert.Equal(t, domain.ReasonLongSetup, rec.Reason)
	assert.Equal(t, 10, rec.Size, "1000 / (23 × 0.25 × 5) = 34, tope 10")
	assert.Equal(t, 20000.0, rec.Price)
	assert.Equal(t, 19994.25, rec.StopPrice)
	assert.Equal(t, 20005.75, rec.Target1)
	assert.Equal(t, 20011.5, rec.Target2)
	assert.Equal(t, clk.now(), rec.CreatedAt)

	order := sink.Calls[0].Arguments.Get(1).(domain.BracketOrder)
	assert.Equal(t, 0.5, order.ScaleOut)
	assert.Equal(t, rec.StopPrice, order.StopPrice)

	// En posición: la siguiente barra no evalúa entradas.
	feedBar(t, e, "NQ")
	_, ok = e.OnBarClose(context.Background(), "NQ")
	assert.False(t, ok)

	s, _ := e.Snapshot("NQ")
	assert.True(t, s.InPosition)
	assert.Equal(t, "pos-1", s.PositionID)
	assert.Equal(t, 7, s.Bars)

	require.Len(t, store.signals, 1)
	assert.Equal(t, rec, store.signals[0])
	sink.AssertExpectations(t)
	notifier.AssertExpectations(t)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Orders.WithLabelValues("NQ", "long")))
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.Bars.WithLabelValues("NQ")))
	assert.Equal(t, float64(23*7), testutil.ToFloat64(metrics.Ticks.WithLabelValues("NQ")))
	assert.Equal(t, 105.0*7, testutil.ToFloat64(metrics.CVD.WithLabelValues("NQ")))
}

func TestOnBarClose_PositionUpdateReenables(t *testing.T) {
	sink := &mockSink{}
	sink.On("PlaceBracket", mock.Anything, mock.Anything).Return("pos-1", nil).Once()
	sink.On("PlaceBracket", mock.Anything, mock.Anything).Return("pos-2", nil).Once()

	e := New(testConfig(), sink)
	e.Subscribe("NQ", 0.25, 1)
	warmUp(t, e, "NQ")
	_, ok := e.OnBarClose(context.Background(), "NQ")
	require.True(t, ok)

	e.OnPositionUpdate("NQ", 0)
	e.RecordFill("NQ", 250)

	feedBar(t, e, "NQ")
	rec, ok := e.OnBarClose(context.Background(), "NQ")
	require.True(t, ok)
	assert.Equal(t, "pos-2", rec.PositionID)

	s, _ := e.Snapshot("NQ")
	assert.Equal(t, 100250.0, s.Equity)
	assert.Equal(t, 1, s.Risk.DailyTrades)
	sink.AssertExpectations(t)
}

func TestOnBarClose_RiskBlockAndDayRollover(t *testing.T) {
	sink := &mockSink{}
	sink.On("PlaceBracket", mock.Anything, mock.Anything).Return("pos-1", nil).Once()
	metrics := NewMetrics(prometheus.NewRegistry())
	clk := newClock()

	e := New(testConfig(), sink, WithMetrics(metrics), WithClock(clk.now))
	e.Subscribe("NQ", 0.25, 1)
	for i := 0; i < 3; i++ {
		e.RecordFill("NQ", -10)
	}
	warmUp(t, e, "NQ")

	rec, ok := e.OnBarClose(context.Background(), "NQ")
	require.True(t, ok)
	assert.False(t, rec.Allowed)
	assert.Equal(t, domain.RiskConsecutiveLosses, rec.RiskReason)
	assert.Empty(t, rec.PositionID)
	sink.AssertNotCalled(t, "PlaceBracket", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		metrics.Blocked.WithLabelValues("NQ", domain.RiskConsecutiveLosses)))

	// Día siguiente: contadores y sesión del analizador a cero. La señal
	// necesita otra vez seis barras.
	clk.advance(24 * time.Hour)
	warmUp(t, e, "NQ")
	rec, ok = e.OnBarClose(context.Background(), "NQ")
	require.True(t, ok)
	assert.True(t, rec.Allowed)
	s := e.mustSnapshot(t, "NQ")
	assert.Equal(t, 630.0, s.CVD)
	assert.Equal(t, 99970.0, s.Risk.SessionStartEquity)
	assert.Zero(t, s.Risk.ConsecutiveLosses)
	sink.AssertExpectations(t)
}

func TestOnTick_DayRolloverResetsSession(t *testing.T) {
	clk := newClock()
	e := New(testConfig(), &mockSink{}, WithClock(clk.now))
	e.Subscribe("NQ", 0.25, 1)

	for i := 0; i < 2; i++ {
		feedBar(t, e, "NQ")
		e.OnBarClose(context.Background(), "NQ")
	}
	s := e.mustSnapshot(t, "NQ")
	require.Equal(t, 210.0, s.CVD)

	clk.advance(24 * time.Hour)
	feedBar(t, e, "NQ")
	s = e.mustSnapshot(t, "NQ")
	assert.Equal(t, 105.0, s.CVD, "CVD de un solo día")
	assert.Equal(t, 2, s.Bars)
}

func TestOnTick_DayRolloverUsesSessionZone(t *testing.T) {
	// 2026-03-02 23:00 UTC = 18:00 en Nueva York.
	clk := &clock{t: time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)}
	e := New(testConfig(), &mockSink{}, WithClock(clk.now))
	e.Subscribe("NQ", 0.25, 1)

	feedBar(t, e, "NQ")
	e.OnBarClose(context.Background(), "NQ")

	// Medianoche UTC, todavía 2 de marzo en Nueva York.
	clk.advance(2 * time.Hour)
	feedBar(t, e, "NQ")
	assert.Equal(t, 210.0, e.mustSnapshot(t, "NQ").CVD)
	e.OnBarClose(context.Background(), "NQ")

	// 05:00 UTC = medianoche en Nueva York.
	clk.advance(4 * time.Hour)
	feedBar(t, e, "NQ")
	assert.Equal(t, 105.0, e.mustSnapshot(t, "NQ").CVD)
}

func TestOnBarClose_SinkFailureRetriesNextBar(t *testing.T) {
	sink := &mockSink{}
	sink.On("PlaceBracket", mock.Anything, mock.Anything).Return("", errors.New("bridge down")).Once()
	sink.On("PlaceBracket", mock.Anything, mock.Anything).Return("pos-7", nil).Once()
	metrics := NewMetrics(prometheus.NewRegistry())

	e := New(testConfig(), sink, WithMetrics(metrics))
	e.Subscribe("NQ", 0.25, 1)
	warmUp(t, e, "NQ")

	rec, ok := e.OnBarClose(context.Background(), "NQ")
	require.True(t, ok)
	assert.False(t, rec.Allowed)
	assert.Equal(t, BlockedOrderFailed, rec.RiskReason)
	assert.False(t, e.mustSnapshot(t, "NQ").InPosition)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OrderErrors.WithLabelValues("NQ")))

	feedBar(t, e, "NQ")
	rec, ok = e.OnBarClose(context.Background(), "NQ")
	require.True(t, ok)
	assert.True(t, rec.Allowed)
	assert.Equal(t, "pos-7", rec.PositionID)
	sink.AssertExpectations(t)
}

type denyFilter struct{}

func (denyFilter) Name() string                 { return "deny" }
func (denyFilter) Allow(signal.Candidate) bool { return false }

type captureFilter struct {
	got signal.Candidate
}

func (f *captureFilter) Name() string { return "capture" }
func (f *captureFilter) Allow(c signal.Candidate) bool {
	f.got = c
	return true
}

func TestOnBarClose_FiltersSeeFeatures(t *testing.T) {
	capture := &captureFilter{}
	cfg := testConfig()
	cfg.Filters = signal.Chain{capture, denyFilter{}}
	sink := &mockSink{}

	e := New(cfg, sink)
	e.Subscribe("NQ", 0.25, 1)
	warmUp(t, e, "NQ")

	rec, ok := e.OnBarClose(context.Background(), "NQ")
	require.True(t, ok)
	assert.Equal(t, BlockedFilter+"deny", rec.RiskReason)
	sink.AssertNotCalled(t, "PlaceBracket", mock.Anything, mock.Anything)

	f := capture.got.Features
	assert.Len(t, f, len(domain.NumericFeatureKeys)+7)
	assert.Equal(t, 630.0, f.Float(domain.FeatCVD))
	assert.Equal(t, 105.0, f.Float(domain.FeatBarDelta))
	assert.Equal(t, 1.0, f.Float(domain.FeatSideLong))
	assert.Len(t, capture.got.Closes, 6)
}

func TestFlatten(t *testing.T) {
	sink := &mockSink{}
	sink.On("PlaceBracket", mock.Anything, mock.Anything).Return("pos-1", nil).Once()
	sink.On("Close", mock.Anything, "pos-1").Return(true, nil).Once()

	e := New(testConfig(), sink)
	e.Subscribe("NQ", 0.25, 1)

	closed, err := e.Flatten(context.Background(), "NQ")
	require.NoError(t, err)
	assert.False(t, closed, "sin posición")

	warmUp(t, e, "NQ")
	_, ok := e.OnBarClose(context.Background(), "NQ")
	require.True(t, ok)

	closed, err = e.Flatten(context.Background(), "NQ")
	require.NoError(t, err)
	assert.True(t, closed)
	assert.False(t, e.mustSnapshot(t, "NQ").InPosition)
	sink.AssertExpectations(t)
}

func TestRun_IngestsFeedAndCommitsBars(t *testing.T) {
	var msgs []domain.TickMessage
	for i := 0; i < 6; i++ {
		msgs = append(msgs, barTicks("NQ")...)
	}
	feed := &sliceFeed{msgs: msgs}
	sink := &mockSink{}
	sink.On("PlaceBracket", mock.Anything, mock.Anything).Return("pos-9", nil)

	cfg := testConfig()
	cfg.BarInterval = 5 * time.Millisecond
	cfg.AutoSubscribe = true
	e := New(cfg, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, feed) }()

	assert.Eventually(t, func() bool {
		s, ok := e.Snapshot("NQ")
		return ok && s.InPosition
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	sink.AssertNumberOfCalls(t, "PlaceBracket", 1)
}

func (e *Engine) mustSnapshot(t *testing.T, symbol string) InstrumentState {
	t.Helper()
	s, ok := e.Snapshot(symbol)
	require.True(t, ok)
	return s
}
