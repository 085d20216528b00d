package csvbars_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/adapters/csvbars"
	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullColumns(t *testing.T) {
	in := `Timestamp,Open,High,Low,Close,Buy_Volume,Sell_Volume
2026-01-02T14:30:00Z,20000,20002,19999,20001,80,40
1767364215,20001,20003,20000,20002.5,60,70
`
	bars, err := csvbars.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2026, 1, 2, 14, 30, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 20000.0, bars[0].Open)
	assert.Equal(t, 40.0, bars[0].Delta())
	assert.Equal(t, 20002.5, bars[1].Close)
	assert.Equal(t, time.Unix(1767364215, 0).UTC(), bars[1].Time)
}

func TestParse_DefaultsSideVolume(t *testing.T) {
	in := "open,high,low,close\n100,101,99,100.5\n"
	bars, err := csvbars.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 50.0, bars[0].BuyVolume)
	assert.Equal(t, 50.0, bars[0].SellVolume)
	assert.True(t, bars[0].Time.IsZero())
}

func TestParse_MissingColumn(t *testing.T) {
	_, err := csvbars.Parse(strings.NewReader("open,high,close\n1,2,3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"low"`)
}

func TestParse_SkipsBadRows(t *testing.T) {
	in := "open,high,low,close\n100,101,99,100\nx,1,1,1\n101,102,100,101\n"
	bars, err := csvbars.Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestParse_Empty(t *testing.T) {
	_, err := csvbars.Parse(strings.NewReader(""))
	assert.Error(t, err)
}

func TestScaleVolume(t *testing.T) {
	bars := []domain.Bar{
		{BuyVolume: 900, SellVolume: 300},
		{BuyVolume: 600, SellVolume: 600},
	}
	require.True(t, csvbars.ScaleVolume(bars, csvbars.ScaleTrigger, csvbars.ScaleTarget))
	assert.InDelta(t, 90.0, bars[0].BuyVolume, 1e-9)
	assert.InDelta(t, 30.0, bars[0].SellVolume, 1e-9)
	assert.InDelta(t, 60.0, bars[1].BuyVolume, 1e-9)

	small := []domain.Bar{{BuyVolume: 50, SellVolume: 50}}
	assert.False(t, csvbars.ScaleVolume(small, csvbars.ScaleTrigger, csvbars.ScaleTarget))
	assert.Equal(t, 50.0, small[0].BuyVolume)
}

func TestScaleVolume_FloorOfOne(t *testing.T) {
	bars := []domain.Bar{{BuyVolume: 11999, SellVolume: 1}}
	require.True(t, csvbars.ScaleVolume(bars, csvbars.ScaleTrigger, csvbars.ScaleTarget))
	assert.Equal(t, 1.0, bars[0].SellVolume)
}

func TestLoader_FiltersSymbolAndScales(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	content := "symbol,open,high,low,close,buy_volume,sell_volume\n" +
		"NQ,20000,20001,19999,20000,1000,200\n" +
		"ES,5000,5001,4999,5000,1000,200\n" +
		"nq,20001,20002,20000,20001,600,600\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	bars, err := csvbars.New(path, true).LoadBars(context.Background(), "NQ")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.InDelta(t, 100.0, bars[0].BuyVolume, 1e-9)
	assert.InDelta(t, 20.0, bars[0].SellVolume, 1e-9)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := csvbars.New(filepath.Join(t.TempDir(), "nope.csv"), false).LoadBars(context.Background(), "")
	assert.Error(t, err)
}
