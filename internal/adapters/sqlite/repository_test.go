package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotbot/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: nopLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleTrade(asset string) *domain.Trade {
	return &domain.Trade{
		Asset:        asset,
		Direction:    domain.Long,
		EntryPrice:   100,
		Quantity:     0.5,
		NotionalUSDT: 50,
		BestPrice:    100,
		StopLoss:     98,
		EntryTime:    time.Now().Truncate(time.Second),
		Status:       domain.StatusOpen,
	}
}

func TestTradeRepo_SaveRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	trades := repo.Trades()
	ctx := context.Background()

	trade := sampleTrade("ETHUSDT")
	id, err := trades.Save(ctx, trade)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, trade.ID)

	loaded, err := trades.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "ETHUSDT", loaded.Asset)
	assert.Equal(t, domain.Long, loaded.Direction)
	assert.Equal(t, domain.StatusOpen, loaded.Status)
	assert.InDelta(t, 98.0, loaded.StopLoss, 1e-9)
	assert.True(t, loaded.ExitTime.IsZero(), "open trade must have a zero exit time")
	assert.Empty(t, loaded.CloseReason)
}

func TestTradeRepo_UpdateOnSecondSave(t *testing.T) {
	repo := newTestRepo(t)
	trades := repo.Trades()
	ctx := context.Background()

	trade := sampleTrade("ETHUSDT")
	id, err := trades.Save(ctx, trade)
	require.NoError(t, err)

	trade.Status = domain.StatusClosed
	trade.CloseReason = domain.CloseReasonHardTP
	trade.ExitPrice = 103
	trade.ExitTime = time.Now().Truncate(time.Second)
	trade.ProfitUSDT = 1.4

	id2, err := trades.Save(ctx, trade)
	require.NoError(t, err)
	assert.Equal(t, id, id2, "second save must update, not insert")

	loaded, err := trades.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, domain.StatusClosed, loaded.Status)
	assert.Equal(t, domain.CloseReasonHardTP, loaded.CloseReason)
	assert.InDelta(t, 103.0, loaded.ExitPrice, 1e-9)
	assert.False(t, loaded.ExitTime.IsZero())

	all, err := trades.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTradeRepo_FindOpenAndDeleteClosed(t *testing.T) {
	repo := newTestRepo(t)
	trades := repo.Trades()
	ctx := context.Background()

	open := sampleTrade("ETHUSDT")
	_, err := trades.Save(ctx, open)
	require.NoError(t, err)

	closed := sampleTrade("BTCUSDT")
	closed.Status = domain.StatusClosed
	closed.CloseReason = domain.CloseReasonManual
	closed.ExitTime = time.Now()
	_, err = trades.Save(ctx, closed)
	require.NoError(t, err)

	openTrades, err := trades.FindOpen(ctx)
	require.NoError(t, err)
	require.Len(t, openTrades, 1)
	assert.Equal(t, "ETHUSDT", openTrades[0].Asset)

	deleted, err := trades.DeleteClosed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	all, err := trades.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTradeRepo_FindByIDMissing(t *testing.T) {
	repo := newTestRepo(t)
	loaded, err := repo.Trades().FindByID(context.Background(), 12345)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSettingsRepo_DefaultsWhenEmpty(t *testing.T) {
	repo := newTestRepo(t)
	settings, err := repo.Settings().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SettingsID, settings.ID)
	assert.Equal(t, domain.StateOnline, settings.State)
	assert.NotEmpty(t, settings.WatchedAssets())
}

func TestSettingsRepo_SaveRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	store := repo.Settings()
	ctx := context.Background()

	settings := domain.DefaultSettings()
	settings.State = domain.StateOffline
	settings.Assets = "BTCUSDT"
	settings.RiskPercent = 7.5
	settings.BaselineEquity = 1234.5
	require.NoError(t, store.Save(ctx, settings))

	loaded, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOffline, loaded.State)
	assert.Equal(t, []string{"BTCUSDT"}, loaded.WatchedAssets())
	assert.InDelta(t, 7.5, loaded.RiskPercent, 1e-9)
	assert.InDelta(t, 1234.5, loaded.BaselineEquity, 1e-9)

	// Upsert: a second save overwrites the singleton.
	loaded.RiskPercent = 5
	require.NoError(t, store.Save(ctx, loaded))
	again, err := store.Get(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, again.RiskPercent, 1e-9)
}

func TestSnapshotRepo_FindSince(t *testing.T) {
	repo := newTestRepo(t)
	store := repo.Snapshots()
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	for i, offset := range []time.Duration{-48 * time.Hour, -2 * time.Hour, -time.Minute} {
		snap := &domain.BalanceSnapshot{Balance: float64(100 + i), Timestamp: now.Add(offset)}
		require.NoError(t, store.Save(ctx, snap))
		assert.Positive(t, snap.ID)
	}

	recent, err := store.FindSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.InDelta(t, 101.0, recent[0].Balance, 1e-9)
	assert.InDelta(t, 102.0, recent[1].Balance, 1e-9)
}
