package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Ring ---

func TestRing_OverwritesOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Equal(t, []int{3, 4, 5}, r.Last(10))
	assert.Equal(t, []int{4, 5}, r.Last(2))
	assert.Equal(t, 3, r.At(0))
}

func TestRing_EmptyAndReset(t *testing.T) {
	r := NewRing[string](0)
	assert.Equal(t, 1, r.Cap())
	assert.Nil(t, r.Last(5))

	r.Push("a")
	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Last(1))
}

// --- Profile ---

func testProfile() VolumeProfileResult {
	return VolumeProfileResult{
		POC: 20000, VAH: 20001, VAL: 19999, TotalVolume: 130,
		HVNPrices: []float64{20000, 20001},
		LVNPrices: []float64{19990},
	}
}

func TestProfile_NearPredicates(t *testing.T) {
	p := testProfile()
	assert.True(t, p.NearPOC(20002, 10, 0.25))
	assert.False(t, p.NearPOC(20003, 10, 0.25))
	assert.True(t, p.NearLVN(19991, 10, 0.25))
	assert.False(t, p.NearLVN(20000, 10, 0.25))
	assert.True(t, p.NearHVN(20003, 10, 0.25))
	assert.True(t, p.InValueArea(20000.5))
	assert.False(t, p.InValueArea(20002))
}

func TestProfile_EmptyIsNeverNear(t *testing.T) {
	var p VolumeProfileResult
	assert.True(t, p.IsEmpty())
	assert.False(t, p.NearPOC(0, 10, 0.25))
	assert.False(t, p.NearHVN(0, 10, 0.25))
	assert.False(t, p.NearLVN(0, 10, 0.25))
}

// --- Bracket geometry ---

func TestBracketPrices(t *testing.T) {
	sl, tp1, tp2 := BracketPrices(SideLong, 20000, 20, 20, 40, 0.25)
	assert.Equal(t, 19995.0, sl)
	assert.Equal(t, 20005.0, tp1)
	assert.Equal(t, 20010.0, tp2)

	sl, tp1, tp2 = BracketPrices(SideShort, 20000, 20, 20, 40, 0.25)
	assert.Equal(t, 20005.0, sl)
	assert.Equal(t, 19995.0, tp1)
	assert.Equal(t, 19990.0, tp2)

	sl, tp1, tp2 = BracketPrices(SideNone, 20000, 20, 20, 40, 0.25)
	assert.Equal(t, []float64{20000, 20000, 20000}, []float64{sl, tp1, tp2})
}

func TestSide_RoundTrip(t *testing.T) {
	for _, s := range []Side{SideLong, SideShort, SideNone} {
		assert.Equal(t, s, ParseSide(s.String()))
	}
}

// --- Métricas ---

func TestProfitFactor(t *testing.T) {
	assert.Equal(t, 0.0, ProfitFactor(nil))
	assert.Equal(t, 0.0, ProfitFactor([]BacktestTrade{{PnL: -10}}))
	assert.Equal(t, ProfitFactorCap, ProfitFactor([]BacktestTrade{{PnL: 10}}))
	assert.InDelta(t, 2.0, ProfitFactor([]BacktestTrade{{PnL: 20}, {PnL: -10}}), 1e-9)
}

func TestWinRate(t *testing.T) {
	assert.Equal(t, 0.0, WinRate(nil))
	trades := []BacktestTrade{{PnL: 10}, {PnL: 0}, {PnL: -5}, {PnL: 1}}
	assert.InDelta(t, 50.0, WinRate(trades), 1e-9)
}

func TestMaxDrawdown(t *testing.T) {
	abs, pct := MaxDrawdown([]float64{100, 120, 90, 130, 125})
	assert.InDelta(t, 30.0, abs, 1e-9)
	assert.InDelta(t, 25.0, pct, 1e-9)

	abs, pct = MaxDrawdown(nil)
	assert.Zero(t, abs)
	assert.Zero(t, pct)
}

func TestSharpeRatio(t *testing.T) {
	assert.Zero(t, SharpeRatio([]float64{100, 101}, 252))
	assert.Zero(t, SharpeRatio([]float64{100, 101, 102, 103}, 252), "std 0")

	// deltas 2, 0 → media 1, std poblacional 1
	s := SharpeRatio([]float64{100, 102, 102}, 4)
	assert.InDelta(t, 2.0, s, 1e-9)
}

func TestSummarize(t *testing.T) {
	r := BacktestResult{
		InitialBalance: 1000, FinalBalance: 1010,
		Trades:      []BacktestTrade{{PnL: 20}, {PnL: -10}},
		EquityCurve: []float64{1000, 1020, 1010},
	}
	r.Summarize(1)
	require.Equal(t, 2, r.TotalTrades)
	assert.InDelta(t, 50.0, r.WinRate, 1e-9)
	assert.InDelta(t, 2.0, r.ProfitFactor, 1e-9)
	assert.InDelta(t, 10.0, r.MaxDrawdown, 1e-9)
	assert.InDelta(t, 10.0, r.TotalPnL(), 1e-9)
	assert.InDelta(t, 10.0, r.Metrics()["total_pnl"], 1e-9)
}

// --- ATR ---

func TestATR_Smoothing(t *testing.T) {
	a := NewATR(3.75)
	assert.InDelta(t, 2.875, a.Update(20002, 20000), 1e-9)
	// rango cero mantiene el valor previo
	assert.InDelta(t, 2.875, a.Update(20000, 20000), 1e-9)
	assert.False(t, math.IsNaN(a.Value()))
}

// --- Features ---

func TestFeatureMap_Vector(t *testing.T) {
	f := FeatureMap{FeatStrength: 0.8, FeatBigBuy: 3, FeatSideLong: true, FeatReason: "x"}
	v := f.Vector()
	require.Len(t, v, len(NumericFeatureKeys))
	assert.Equal(t, 0.8, v[0])
	assert.Equal(t, 3.0, v[5])
	assert.Equal(t, 1.0, v[len(v)-1])
	assert.Equal(t, "x", f.Reason())
}
