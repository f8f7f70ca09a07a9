package backtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrabt/internal/allocate"
	"intrabt/internal/engine"
	"intrabt/internal/feed"
	"intrabt/internal/market"
	"intrabt/internal/strategy"
)

// fakeSuggestSource 返回固定建议，模拟选股模型。
type fakeSuggestSource struct {
	suggestions []market.Suggestion
	err         error
}

func (f *fakeSuggestSource) Suggest(ctx context.Context, date, marketContext, newsContext string) ([]market.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.suggestions, f.err
}

// fakeCandleSource 按票返回预置 K 线，未知票报错（Service 会吞掉转成空序列）。
type fakeCandleSource struct {
	bySymbol map[string][]market.Candle
}

func (f *fakeCandleSource) Name() string { return "fake" }

func (f *fakeCandleSource) Fetch(ctx context.Context, symbol, date, interval string) ([]market.Candle, error) {
	candles, ok := f.bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for %s", symbol)
	}
	return candles, nil
}

func dayCandle(at string, o, h, l, c float64) market.Candle {
	return market.Candle{Time: market.MustTimeOfDay(at), Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

// 一整天的多头行情：09:30 开 100，盘中触及 104 的目标价。
func bullishDay() []market.Candle {
	return []market.Candle{
		dayCandle("09:30", 100, 101, 99.5, 100.5),
		dayCandle("09:35", 100.5, 102, 100, 101.5),
		dayCandle("09:40", 101.5, 105, 101, 104.5),
		dayCandle("15:15", 104.5, 104.8, 104, 104.2),
	}
}

func newTestOrchestrator(t *testing.T, candles *fakeCandleSource, maxStocks int) *Orchestrator {
	t.Helper()
	svc, err := feed.NewService(feed.ServiceConfig{Source: candles, RateLimitPerMin: 6000})
	require.NoError(t, err)

	alloc, err := allocate.New(allocate.Config{
		TotalCapital:        50000,
		BasketLossPercent:   2,
		BasketProfitPercent: 4,
		RiskRewardRatio:     2,
		StopLossPercent:     2,
		CapitalCapPercent:   30,
	})
	require.NoError(t, err)

	eng, err := engine.New(engine.Config{
		CapitalPerTrade:        10000,
		StopLossPercent:        2,
		TargetPercent:          4,
		SlippagePercent:        0,
		TransactionCostPercent: 0.1,
		EntryStart:             market.MustTimeOfDay("09:30"),
		ForceExit:              market.MustTimeOfDay("15:15"),
	})
	require.NoError(t, err)

	return NewOrchestrator(svc, alloc, eng, maxStocks)
}

func testDayInput(src *fakeSuggestSource) dayInput {
	return dayInput{
		Date:     "2025-06-02",
		Interval: "5m",
		Strategy: strategy.Strategy{ID: "MOMENTUM", SystemPrompt: "pick"},
		Source:   src,
	}
}

func TestRunDayNoSuggestions(t *testing.T) {
	o := newTestOrchestrator(t, &fakeCandleSource{}, 5)
	trades, err := o.RunDay(context.Background(), testDayInput(&fakeSuggestSource{}))
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestRunDaySuggestFailureIsSkipped(t *testing.T) {
	o := newTestOrchestrator(t, &fakeCandleSource{}, 5)
	src := &fakeSuggestSource{err: fmt.Errorf("model unavailable")}
	trades, err := o.RunDay(context.Background(), testDayInput(src))
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestRunDayCancelledContext(t *testing.T) {
	o := newTestOrchestrator(t, &fakeCandleSource{}, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSuggestSource{suggestions: []market.Suggestion{
		{Symbol: "TCS.NS", Confidence: 80, Bias: market.BiasBullish},
	}}
	_, err := o.RunDay(ctx, testDayInput(src))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDayProducesTrades(t *testing.T) {
	candles := &fakeCandleSource{bySymbol: map[string][]market.Candle{
		"TCS.NS": bullishDay(),
	}}
	o := newTestOrchestrator(t, candles, 5)
	src := &fakeSuggestSource{suggestions: []market.Suggestion{
		{Symbol: "TCS.NS", Confidence: 85, Bias: market.BiasBullish, Reason: "momentum"},
	}}

	trades, err := o.RunDay(context.Background(), testDayInput(src))
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, "TCS.NS", tr.Symbol)
	assert.Equal(t, "MOMENTUM", tr.Strategy)
	assert.Equal(t, "5m", tr.Interval)
	assert.InDelta(t, 85, tr.Confidence, 1e-9)
	assert.Equal(t, "momentum", tr.Reason)
	assert.InDelta(t, 1.0, tr.Weight, 1e-9)
	assert.InDelta(t, 100, tr.EntryPrice, 1e-9)
	assert.Positive(t, tr.Quantity)

	// 分配器给出的止损/目标覆盖了入场默认值
	assert.InDelta(t, 98, tr.StopLoss, 0.01)
	assert.InDelta(t, 104, tr.Target, 0.01)
	assert.Equal(t, engine.ExitTarget, tr.ExitReason)
	assert.Equal(t, engine.OutcomeProfit, tr.Outcome)
}

func TestRunDaySkipsSymbolsWithoutData(t *testing.T) {
	candles := &fakeCandleSource{bySymbol: map[string][]market.Candle{
		"TCS.NS": bullishDay(),
	}}
	o := newTestOrchestrator(t, candles, 5)
	src := &fakeSuggestSource{suggestions: []market.Suggestion{
		{Symbol: "NODATA.NS", Confidence: 95, Bias: market.BiasBullish},
		{Symbol: "TCS.NS", Confidence: 85, Bias: market.BiasBullish},
	}}

	trades, err := o.RunDay(context.Background(), testDayInput(src))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "TCS.NS", trades[0].Symbol)
}

func TestRunDayFeedFaultSkipsSymbolOnly(t *testing.T) {
	// 把缓存根目录下该票对应的位置换成普通文件，逼出缓存 IO 错误。
	cacheRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cacheRoot, "BAD.NS"), []byte("x"), 0o644))
	cache, err := feed.NewCache(cacheRoot)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	candles := &fakeCandleSource{bySymbol: map[string][]market.Candle{
		"BAD.NS": bullishDay(),
		"TCS.NS": bullishDay(),
	}}
	svc, err := feed.NewService(feed.ServiceConfig{Source: candles, Cache: cache, RateLimitPerMin: 6000})
	require.NoError(t, err)

	alloc, err := allocate.New(allocate.Config{
		TotalCapital:        50000,
		BasketLossPercent:   2,
		BasketProfitPercent: 4,
		RiskRewardRatio:     2,
		StopLossPercent:     2,
		CapitalCapPercent:   30,
	})
	require.NoError(t, err)
	eng, err := engine.New(engine.Config{
		CapitalPerTrade:        10000,
		StopLossPercent:        2,
		TargetPercent:          4,
		TransactionCostPercent: 0.1,
		EntryStart:             market.MustTimeOfDay("09:30"),
		ForceExit:              market.MustTimeOfDay("15:15"),
	})
	require.NoError(t, err)

	o := NewOrchestrator(svc, alloc, eng, 5)
	src := &fakeSuggestSource{suggestions: []market.Suggestion{
		{Symbol: "BAD.NS", Confidence: 90, Bias: market.BiasBullish},
		{Symbol: "TCS.NS", Confidence: 85, Bias: market.BiasBullish},
	}}

	// 单票的缓存故障不是整天的错误，健康的票照常成交。
	trades, err := o.RunDay(context.Background(), testDayInput(src))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "TCS.NS", trades[0].Symbol)
}

func TestRunDayTruncatesToMaxStocks(t *testing.T) {
	candles := &fakeCandleSource{bySymbol: map[string][]market.Candle{
		"A.NS": bullishDay(),
		"B.NS": bullishDay(),
	}}
	o := newTestOrchestrator(t, candles, 1)
	src := &fakeSuggestSource{suggestions: []market.Suggestion{
		{Symbol: "A.NS", Confidence: 90, Bias: market.BiasBullish},
		{Symbol: "B.NS", Confidence: 80, Bias: market.BiasBullish},
	}}

	trades, err := o.RunDay(context.Background(), testDayInput(src))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "A.NS", trades[0].Symbol)
}
