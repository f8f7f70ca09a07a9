package backtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrabt/internal/engine"
	"intrabt/internal/market"
)

func newTestStore(t *testing.T) *ResultStore {
	t.Helper()
	store, err := NewResultStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun() Run {
	now := time.Now().Truncate(time.Second)
	return Run{
		ID:        uuid.NewString(),
		Status:    RunStatusRunning,
		StartDate: "2025-06-02",
		EndDate:   "2025-06-06",
		Config: RunConfig{
			Dates:        []string{"2025-06-02", "2025-06-03"},
			Strategies:   []string{"MOMENTUM"},
			Intervals:    []string{"5m"},
			DailyCapital: 50000,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStoreRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, store.CreateRun(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, got.Status)
	assert.Equal(t, run.Config.Dates, got.Config.Dates)
	assert.InDelta(t, 50000, got.Config.DailyCapital, 1e-9)

	run.Status = RunStatusDone
	run.TotalTrades = 7
	run.NetPnL = 1234.5
	run.CompletedAt = time.Now()
	require.NoError(t, store.UpdateRun(ctx, run))

	got, err = store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusDone, got.Status)
	assert.Equal(t, 7, got.TotalTrades)
	assert.InDelta(t, 1234.5, got.NetPnL, 1e-9)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestStoreGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStoreListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := sampleRun()
	older.CreatedAt = time.Now().Add(-time.Hour)
	older.UpdatedAt = older.CreatedAt
	require.NoError(t, store.CreateRun(ctx, older))

	newer := sampleRun()
	require.NoError(t, store.CreateRun(ctx, newer))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
}

func TestStoreTradesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, store.CreateRun(ctx, run))

	trades := []engine.Trade{
		{
			Date:            "2025-06-03",
			Symbol:          "INFY.NS",
			Bias:            market.BiasBearish,
			EntryTime:       market.MustTimeOfDay("09:35"),
			EntryPrice:      1500,
			ExitTime:        market.MustTimeOfDay("11:00"),
			ExitPrice:       1470,
			ExitReason:      engine.ExitTarget,
			Quantity:        6,
			InvestedAmount:  9000,
			GrossPnL:        180,
			TransactionCost: 18,
			NetPnL:          162,
			Outcome:         engine.OutcomeProfit,
			Strategy:        "MOMENTUM",
			Interval:        "5m",
			Confidence:      78,
			Weight:          0.6,
		},
		{
			Date:       "2025-06-02",
			Symbol:     "TCS.NS",
			Bias:       market.BiasBullish,
			EntryTime:  market.MustTimeOfDay("09:30"),
			EntryPrice: 100,
			ExitTime:   market.MustTimeOfDay("15:15"),
			ExitPrice:  99,
			ExitReason: engine.ExitForceEOD,
			Quantity:   100,
			NetPnL:     -120,
			Outcome:    engine.OutcomeLoss,
			Strategy:   "MOMENTUM",
			Interval:   "5m",
		},
	}
	require.NoError(t, store.SaveTrades(ctx, run.ID, trades))

	got, err := store.TradesByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// 按日期升序返回
	assert.Equal(t, "2025-06-02", got[0].Date)
	assert.Equal(t, "TCS.NS", got[0].Symbol)
	assert.Equal(t, "2025-06-03", got[1].Date)
	assert.Equal(t, market.BiasBearish, got[1].Bias)
	assert.Equal(t, market.MustTimeOfDay("09:35"), got[1].EntryTime)
	assert.InDelta(t, 162, got[1].NetPnL, 1e-9)
	assert.InDelta(t, 0.6, got[1].Weight, 1e-9)

	perf, err := store.PerformanceByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, perf.Overall.TotalTrades)
	assert.InDelta(t, 42, perf.Overall.NetPnL, 1e-9)
}

func TestStoreSaveTradesEmpty(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.SaveTrades(context.Background(), "any", nil))
}
