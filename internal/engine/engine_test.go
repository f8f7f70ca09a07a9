package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrabt/internal/market"
)

func testConfig() Config {
	return Config{
		CapitalPerTrade:        10000,
		StopLossPercent:        2,
		TargetPercent:          4,
		SlippagePercent:        0,
		TransactionCostPercent: 0.1,
		EntryStart:             market.MustTimeOfDay("09:30"),
		ForceExit:              market.MustTimeOfDay("15:15"),
	}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func candle(at string, o, h, l, c float64) market.Candle {
	return market.Candle{Time: market.MustTimeOfDay(at), Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

func series(t *testing.T, candles ...market.Candle) market.Series {
	t.Helper()
	s, err := market.NewSeries("TEST.NS", "2025-07-01", "5m", candles)
	require.NoError(t, err)
	return s
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.CapitalPerTrade = 0
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.ForceExit = cfg.EntryStart
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.SlippagePercent = -1
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestCalculateEntry(t *testing.T) {
	e := newTestEngine(t, testConfig())
	s := series(t,
		candle("09:15", 99, 100, 98, 99.5),
		candle("09:30", 100, 101, 99, 100.5),
		candle("09:35", 100.5, 102, 100, 101),
	)

	entry, ok := e.CalculateEntry(s, market.BiasBullish)
	require.True(t, ok)
	assert.Equal(t, market.MustTimeOfDay("09:30"), entry.Time)
	assert.InDelta(t, 100, entry.Price, 1e-9)
	assert.Equal(t, int64(100), entry.Quantity)
	// 止损 2%、目标 4%
	assert.InDelta(t, 98, entry.StopLoss, 1e-9)
	assert.InDelta(t, 104, entry.Target, 1e-9)
	assert.InDelta(t, 10000, entry.InvestedAmount, 1e-9)
}

func TestCalculateEntrySlippageAdverse(t *testing.T) {
	cfg := testConfig()
	cfg.SlippagePercent = 0.1
	e := newTestEngine(t, cfg)
	s := series(t, candle("09:30", 100, 101, 99, 100.5))

	long, ok := e.CalculateEntry(s, market.BiasBullish)
	require.True(t, ok)
	assert.InDelta(t, 100.1, long.Price, 1e-9)
	assert.Equal(t, int64(99), long.Quantity)

	short, ok := e.CalculateEntry(s, market.BiasBearish)
	require.True(t, ok)
	assert.InDelta(t, 99.9, short.Price, 1e-9)
}

func TestCalculateEntryNoCandleAfterStart(t *testing.T) {
	e := newTestEngine(t, testConfig())
	s := series(t, candle("09:15", 100, 101, 99, 100))

	_, ok := e.CalculateEntry(s, market.BiasBullish)
	assert.False(t, ok)
}

func TestCalculateEntryZeroQuantity(t *testing.T) {
	e := newTestEngine(t, testConfig())
	s := series(t, candle("09:30", 20000, 20100, 19900, 20000))

	_, ok := e.CalculateEntry(s, market.BiasBullish)
	assert.False(t, ok)
}

func TestSimulateTradeStopLoss(t *testing.T) {
	e := newTestEngine(t, testConfig())
	s := series(t,
		candle("09:30", 100, 101, 99, 100),
		candle("09:35", 99, 99.5, 97, 97.5),
	)
	entry, ok := e.CalculateEntry(s, market.BiasBullish)
	require.True(t, ok)

	trade, err := e.SimulateTrade(entry, s, "2025-07-01")
	require.NoError(t, err)

	assert.Equal(t, ExitStopLoss, trade.ExitReason)
	assert.InDelta(t, 98, trade.ExitPrice, 1e-9)
	assert.Equal(t, market.MustTimeOfDay("09:35"), trade.ExitTime)
	// (98−100)×100 = −200，成本 10000×2×0.1% = 20
	assert.InDelta(t, -200, trade.GrossPnL, 1e-9)
	assert.InDelta(t, 20, trade.TransactionCost, 1e-9)
	assert.InDelta(t, -220, trade.NetPnL, 1e-9)
	assert.Equal(t, OutcomeLoss, trade.Outcome)
}

func TestSimulateTradeTarget(t *testing.T) {
	e := newTestEngine(t, testConfig())
	s := series(t,
		candle("09:30", 100, 101, 99, 100),
		candle("09:35", 101, 105, 100, 104.5),
	)
	entry, ok := e.CalculateEntry(s, market.BiasBullish)
	require.True(t, ok)

	trade, err := e.SimulateTrade(entry, s, "2025-07-01")
	require.NoError(t, err)

	assert.Equal(t, ExitTarget, trade.ExitReason)
	assert.InDelta(t, 104, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 400, trade.GrossPnL, 1e-9)
	assert.InDelta(t, 380, trade.NetPnL, 1e-9)
	assert.Equal(t, OutcomeProfit, trade.Outcome)
}

func TestSimulateTradeStopBeforeTargetSameCandle(t *testing.T) {
	// 同一根 K 线内两者都可触发 → 保守判止损。
	e := newTestEngine(t, testConfig())
	s := series(t,
		candle("09:30", 100, 101, 99, 100),
		candle("09:35", 100, 105, 97, 103),
	)
	entry, ok := e.CalculateEntry(s, market.BiasBullish)
	require.True(t, ok)

	trade, err := e.SimulateTrade(entry, s, "2025-07-01")
	require.NoError(t, err)
	assert.Equal(t, ExitStopLoss, trade.ExitReason)
}

func TestSimulateTradeBearish(t *testing.T) {
	e := newTestEngine(t, testConfig())
	s := series(t,
		candle("09:30", 100, 101, 99, 100),
		candle("09:35", 101, 103, 100, 102.5),
	)
	entry, ok := e.CalculateEntry(s, market.BiasBearish)
	require.True(t, ok)
	assert.InDelta(t, 102, entry.StopLoss, 1e-9)
	assert.InDelta(t, 96, entry.Target, 1e-9)

	trade, err := e.SimulateTrade(entry, s, "2025-07-01")
	require.NoError(t, err)
	// high 103 ≥ 止损 102 → 做空止损
	assert.Equal(t, ExitStopLoss, trade.ExitReason)
	assert.InDelta(t, 102, trade.ExitPrice, 1e-9)
	assert.InDelta(t, -200, trade.GrossPnL, 1e-9)
	assert.Equal(t, OutcomeLoss, trade.Outcome)
}

func TestSimulateTradeForceExitAtCutoff(t *testing.T) {
	e := newTestEngine(t, testConfig())
	s := series(t,
		candle("09:30", 100, 101, 99, 100),
		candle("12:00", 100, 101, 99, 100.5),
		candle("15:15", 100.5, 101, 100, 100.8),
		candle("15:20", 100.8, 101, 100, 100.2),
	)
	entry, ok := e.CalculateEntry(s, market.BiasBullish)
	require.True(t, ok)

	trade, err := e.SimulateTrade(entry, s, "2025-07-01")
	require.NoError(t, err)

	assert.Equal(t, ExitForceEOD, trade.ExitReason)
	assert.Equal(t, market.MustTimeOfDay("15:15"), trade.ExitTime)
	assert.InDelta(t, 100.8, trade.ExitPrice, 1e-9)
}

func TestSimulateTradeSeriesEndsEarly(t *testing.T) {
	// 没有任何 K 线触发止损/目标，也没到强制离场时间 → 用最后一根收盘价。
	e := newTestEngine(t, testConfig())
	s := series(t,
		candle("09:30", 100, 101, 99, 100),
		candle("09:35", 100, 101, 99, 100.5),
		candle("09:40", 100.5, 101.5, 99.5, 101),
	)
	entry, ok := e.CalculateEntry(s, market.BiasBullish)
	require.True(t, ok)

	trade, err := e.SimulateTrade(entry, s, "2025-07-01")
	require.NoError(t, err)

	assert.Equal(t, ExitForceEOD, trade.ExitReason)
	assert.Equal(t, market.MustTimeOfDay("09:40"), trade.ExitTime)
	assert.InDelta(t, 101, trade.ExitPrice, 1e-9)
}

func TestSimulateTradeExitSlippage(t *testing.T) {
	cfg := testConfig()
	cfg.SlippagePercent = 0.1
	cfg.TransactionCostPercent = 0
	e := newTestEngine(t, cfg)
	s := series(t,
		candle("09:30", 100, 101, 99, 100),
		candle("09:35", 100, 110, 100, 108),
	)
	entry, ok := e.CalculateEntry(s, market.BiasBullish)
	require.True(t, ok)

	trade, err := e.SimulateTrade(entry, s, "2025-07-01")
	require.NoError(t, err)
	assert.Equal(t, ExitTarget, trade.ExitReason)
	// 离场滑点与入场相反方向：目标价再往下走 0.1%
	assert.Less(t, trade.ExitPrice, entry.Target)
}

func TestSimulateTradeEntryCandleMissing(t *testing.T) {
	e := newTestEngine(t, testConfig())
	s := series(t, candle("09:30", 100, 101, 99, 100))

	entry, ok := e.CalculateEntry(s, market.BiasBullish)
	require.True(t, ok)
	entry.Time = market.MustTimeOfDay("09:31")

	_, err := e.SimulateTrade(entry, s, "2025-07-01")
	assert.Error(t, err)
}

func TestOutcomeSignConsistency(t *testing.T) {
	e := newTestEngine(t, testConfig())
	scenarios := [][]market.Candle{
		{candle("09:30", 100, 101, 99, 100), candle("09:35", 99, 99.5, 97, 97.5)},
		{candle("09:30", 100, 101, 99, 100), candle("09:35", 101, 105, 100, 104.5)},
		{candle("09:30", 100, 101, 99, 100), candle("09:35", 100, 101, 99.5, 100.2)},
	}
	for i, candles := range scenarios {
		s := series(t, candles...)
		entry, ok := e.CalculateEntry(s, market.BiasBullish)
		require.True(t, ok, "scenario %d", i)
		trade, err := e.SimulateTrade(entry, s, "2025-07-01")
		require.NoError(t, err, "scenario %d", i)

		switch {
		case trade.NetPnL > 0:
			assert.Equal(t, OutcomeProfit, trade.Outcome)
		case trade.NetPnL < 0:
			assert.Equal(t, OutcomeLoss, trade.Outcome)
		default:
			assert.Equal(t, OutcomeBreakeven, trade.Outcome)
		}
	}
}
