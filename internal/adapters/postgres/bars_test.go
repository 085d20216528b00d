package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alejandrodnm/flowscalp/internal/adapters/postgres"
	"github.com/alejandrodnm/flowscalp/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBarStore_BadURL(t *testing.T) {
	_, err := postgres.NewBarStore(context.Background(), "postgres://u:p@localhost:notaport/db", 2)
	assert.Error(t, err)
}

// Integración: necesita FLOWSCALP_TEST_POSTGRES_URL apuntando a una DB desechable.
func TestBarStore_RoundTrip(t *testing.T) {
	url := os.Getenv("FLOWSCALP_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("FLOWSCALP_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	store, err := postgres.NewBarStore(ctx, url, 2)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	symbol := "TEST" + time.Now().Format("150405.000")
	t0 := time.Date(2026, 1, 2, 14, 30, 0, 0, time.UTC)
	in := []domain.Bar{
		{Time: t0.Add(15 * time.Second), Open: 2, High: 3, Low: 1, Close: 2.5, BuyVolume: 10, SellVolume: 5},
		{Time: t0, Open: 1, High: 2, Low: 0.5, Close: 1.5, BuyVolume: 7, SellVolume: 9},
	}
	require.NoError(t, store.InsertBars(ctx, symbol, in))

	bars, err := store.LoadBars(ctx, symbol)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, t0, bars[0].Time, "ordenadas por ts")
	assert.Equal(t, -2.0, bars[0].Delta())

	ranged, err := store.LoadRange(ctx, symbol, t0.Add(time.Second), t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, 2.5, ranged[0].Close)
}
