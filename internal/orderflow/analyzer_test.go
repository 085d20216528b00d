package orderflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer() *Analyzer {
	return New(DefaultConfig())
}

func TestOnTrade_CVDAndBarDelta(t *testing.T) {
	a := newTestAnalyzer()
	for i := 0; i < 10; i++ {
		a.OnTrade(20000, 5, true)
	}
	for i := 0; i < 5; i++ {
		a.OnTrade(20000, 5, false)
	}
	assert.Equal(t, 25.0, a.CVD())
	assert.Equal(t, 25.0, a.BarDelta())

	buy, sell := a.SessionVolume()
	assert.Equal(t, 50.0, buy)
	assert.Equal(t, 25.0, sell)
}

func TestStartNewBar_Snapshot(t *testing.T) {
	a := newTestAnalyzer()
	a.OnTrade(20000, 20, true)
	a.OnTrade(20001, 10, false)

	snap, ok := a.StartNewBar()
	require.True(t, ok)
	assert.Equal(t, 20.0, snap.BuyVolume)
	assert.Equal(t, 10.0, snap.SellVolume)
	assert.Equal(t, 10.0, snap.Delta)
	assert.Equal(t, 30.0, snap.TotalVolume)
	assert.Equal(t, 20000.0, snap.Open)
	assert.Equal(t, 20001.0, snap.High)
	assert.Equal(t, 20000.0, snap.Low)
	assert.Equal(t, 20001.0, snap.Close)
	assert.Equal(t, 2, snap.TradeCount)

	cur, ok := a.CurrentBar()
	require.True(t, ok)
	assert.Equal(t, snap, cur)
	assert.Zero(t, a.BarDelta(), "el acumulador se reinicia")
}

func TestStartNewBar_NoPhantomBar(t *testing.T) {
	a := newTestAnalyzer()
	_, ok := a.StartNewBar()
	assert.False(t, ok)

	a.OnTrade(20000, 1, true)
	_, ok = a.StartNewBar()
	require.True(t, ok)

	_, ok = a.StartNewBar()
	assert.False(t, ok, "sin trades no se crea barra")
	assert.Len(t, a.RecentBars(10), 1)
}

func TestStartNewBar_NextBarOpensAtLastClose(t *testing.T) {
	a := newTestAnalyzer()
	a.OnTrade(20000, 1, true)
	a.StartNewBar()
	a.OnTrade(20002, 1, true)

	snap, ok := a.StartNewBar()
	require.True(t, ok)
	assert.Equal(t, 20000.0, snap.Open)
	assert.Equal(t, 20000.0, snap.Low)
	assert.Equal(t, 20002.0, snap.High)
}

func TestRecentBars_CapacityBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProfileRollingBars = 3
	a := New(cfg)
	for i := 0; i < 5; i++ {
		a.OnTrade(20000+float64(i), 1, true)
		a.StartNewBar()
	}
	bars := a.RecentBars(10)
	require.Len(t, bars, 3)
	assert.Equal(t, 20002.0, bars[0].Close)
	assert.Equal(t, 20004.0, bars[2].Close)
}

func TestBigTradeCluster(t *testing.T) {
	a := newTestAnalyzer()
	a.OnTrade(20000, 30, true)
	a.OnTrade(20000, 5, true) // no es big trade
	a.OnTrade(20000, 35, true)
	a.OnTrade(20000, 40, false)

	buys, sells := a.BigTradeCluster(30)
	assert.Equal(t, 2, buys)
	assert.Equal(t, 1, sells)

	buys, sells = a.BigTradeCluster(1)
	assert.Equal(t, 0, buys)
	assert.Equal(t, 1, sells)

	snap, _ := a.StartNewBar()
	assert.Equal(t, 2, snap.BigBuys)
	assert.Equal(t, 1, snap.BigSells)
}

func TestAbsorption_BullishThenBreak(t *testing.T) {
	a := newTestAnalyzer()
	for i := 0; i < 3; i++ {
		a.OnTrade(20000, 10, false)
	}
	abs := a.Absorption()
	assert.Equal(t, 3, abs.UnchangedTicks)
	assert.Equal(t, 30.0, abs.SellVolume)
	assert.True(t, abs.Bullish)
	assert.False(t, abs.Bearish)

	// precio fuera de la banda de 3 ticks: reinicio con semilla
	a.OnTrade(20001, 5, true)
	abs = a.Absorption()
	assert.Equal(t, 0, abs.UnchangedTicks)
	assert.Equal(t, 5.0, abs.BuyVolume)
	assert.Zero(t, abs.SellVolume)
	assert.Equal(t, 20001.0, abs.LastPrice)
	assert.False(t, abs.Bullish)
}

func TestAbsorption_Bearish(t *testing.T) {
	a := newTestAnalyzer()
	for i := 0; i < 4; i++ {
		a.OnTrade(20000.25, 10, true)
	}
	a.OnTrade(20000, 5, false)
	abs := a.Absorption()
	assert.True(t, abs.Bearish)
	assert.False(t, abs.Bullish)
}

func TestOnTradeLevels_Descales(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SizeMultiplier = 10
	a := New(cfg)
	a.OnTradeLevels(80000, 50, true)

	assert.Equal(t, 5.0, a.CVD())
	p := a.BuildVolumeProfile()
	assert.Equal(t, 20000.0, p.POC)
}

func TestResetSession(t *testing.T) {
	a := newTestAnalyzer()
	a.OnTrade(20000, 40, true)
	a.StartNewBar()
	a.OnTrade(20001, 3, false)
	a.ResetSession()

	assert.Zero(t, a.CVD())
	assert.Zero(t, a.BarDelta())
	assert.Empty(t, a.RecentBars(10))
	buys, sells := a.BigTradeCluster(30)
	assert.Zero(t, buys+sells)
	assert.True(t, a.BuildVolumeProfile().IsEmpty())
	_, ok := a.CurrentBar()
	assert.False(t, ok)
	_, ok = a.StartNewBar()
	assert.False(t, ok)
}
