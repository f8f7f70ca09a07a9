package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"intrabt/internal/allocate"
	"intrabt/internal/analysis"
	"intrabt/internal/engine"
	"intrabt/internal/feed"
	"intrabt/internal/logger"
	"intrabt/internal/news"
	"intrabt/internal/strategy"
	"intrabt/internal/suggest"
)

// Sink 接收一次完整回测的产出并导出（CSV、HTML 报表等）。
// 核心不关心导出格式，失败也不影响回测结果。
type Sink interface {
	Write(run Run, trades []engine.Trade, perf Performance) error
}

// RunnerConfig 配置 Runner。Store/News/Sinks 均可为空。
type RunnerConfig struct {
	Registry  *strategy.Registry
	Factory   suggest.Factory
	Feed      *feed.Service
	Allocator *allocate.Allocator
	Engine    *engine.Engine
	Store     *ResultStore
	News      *news.Client
	Sinks     []Sink

	// 生成 {market_context} 兜底指标快照用的基准票，如 ^NSEI。
	BenchmarkSymbol string
	MaxStocksPerDay int
	DefaultInterval string

	// 参数快照，落库后用于重放对账。
	Snapshot RunConfig
}

// RunRequest 一次回测请求。Strategies/Intervals 为空时取注册表全部与默认周期。
type RunRequest struct {
	Dates      []string `json:"dates"`
	Strategies []string `json:"strategies"`
	Intervals  []string `json:"intervals"`
	Notes      string   `json:"notes"`
}

// RunResult 一次回测的完整产出。
type RunResult struct {
	Run         Run            `json:"run"`
	Trades      []engine.Trade `json:"trades"`
	Performance Performance    `json:"performance"`
}

// Runner 串行推进 天 × 策略 × 周期 的组合。
// 中断时保留已收集的成交并照常落库。
type Runner struct {
	cfg  RunnerConfig
	orch *Orchestrator
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Registry == nil || cfg.Factory == nil {
		return nil, fmt.Errorf("registry/factory 不能为空")
	}
	if cfg.Feed == nil || cfg.Allocator == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("feed/allocator/engine 不能为空")
	}
	if cfg.DefaultInterval == "" {
		cfg.DefaultInterval = "5m"
	}
	return &Runner{
		cfg:  cfg,
		orch: NewOrchestrator(cfg.Feed, cfg.Allocator, cfg.Engine, cfg.MaxStocksPerDay),
	}, nil
}

// Execute 跑完整个请求。只有「一笔交易都没来得及跑就失败」才返回错误；
// 中途被打断按部分结果收尾。
func (r *Runner) Execute(ctx context.Context, req RunRequest) (RunResult, error) {
	if len(req.Dates) == 0 {
		return RunResult{}, fmt.Errorf("至少需要一个回测日期")
	}
	dates := append([]string(nil), req.Dates...)
	sort.Strings(dates)

	strategies, err := r.resolveStrategies(req.Strategies)
	if err != nil {
		return RunResult{}, err
	}
	intervals := req.Intervals
	if len(intervals) == 0 {
		intervals = []string{r.cfg.DefaultInterval}
	}

	run := r.newRun(dates, strategies, intervals, req.Notes)
	if r.cfg.Store != nil {
		if err := r.cfg.Store.CreateRun(ctx, run); err != nil {
			return RunResult{}, fmt.Errorf("落库失败: %w", err)
		}
	}

	sources := make(map[string]suggest.Source, len(strategies))
	for _, strat := range strategies {
		src, err := r.cfg.Factory.New(strat)
		if err != nil {
			logger.Warnf("[runner] 策略 %s 构建建议源失败，跳过: %v", strat.ID, err)
			continue
		}
		sources[strat.ID] = src
	}

	var trades []engine.Trade
	daysDone := 0
	interrupted := false

loop:
	for _, date := range dates {
		marketCtx := r.marketContext(ctx, date, intervals[0])
		newsCtx := r.newsContext(ctx, date)
		for _, strat := range strategies {
			src, ok := sources[strat.ID]
			if !ok {
				continue
			}
			for _, interval := range intervals {
				if ctx.Err() != nil {
					interrupted = true
					break loop
				}
				dayTrades, err := r.orch.RunDay(ctx, dayInput{
					Date:          date,
					Interval:      interval,
					Strategy:      strat,
					Source:        src,
					MarketContext: marketCtx,
					NewsContext:   newsCtx,
				})
				if err != nil {
					// RunDay 只在 ctx 取消时报错。
					interrupted = true
					break loop
				}
				trades = append(trades, dayTrades...)
				logger.Infof("[runner] %s %s %s 完成，%d 笔成交", date, strat.ID, interval, len(dayTrades))
			}
		}
		daysDone++
	}

	perf := Aggregate(trades)
	r.finalizeRun(&run, perf, len(dates), daysDone, interrupted)

	if r.cfg.Store != nil {
		if err := r.cfg.Store.SaveTrades(ctx, run.ID, trades); err != nil {
			logger.Errorf("[runner] 保存成交失败: %v", err)
		}
		if err := r.cfg.Store.UpdateRun(ctx, run); err != nil {
			logger.Errorf("[runner] 更新任务状态失败: %v", err)
		}
	}
	for _, sink := range r.cfg.Sinks {
		if err := sink.Write(run, trades, perf); err != nil {
			logger.Errorf("[runner] 导出报表失败: %v", err)
		}
	}

	return RunResult{Run: run, Trades: trades, Performance: perf}, nil
}

func (r *Runner) resolveStrategies(ids []string) ([]strategy.Strategy, error) {
	if len(ids) == 0 {
		all := r.cfg.Registry.All()
		if len(all) == 0 {
			return nil, fmt.Errorf("策略注册表为空")
		}
		return all, nil
	}
	var out []strategy.Strategy
	for _, id := range ids {
		strat, ok := r.cfg.Registry.Get(id)
		if !ok {
			return nil, fmt.Errorf("未知策略: %s", id)
		}
		out = append(out, strat)
	}
	return out, nil
}

func (r *Runner) newRun(dates []string, strategies []strategy.Strategy, intervals []string, notes string) Run {
	cfg := r.cfg.Snapshot
	cfg.Dates = dates
	cfg.Intervals = intervals
	cfg.Notes = notes
	cfg.Strategies = make([]string, 0, len(strategies))
	for _, s := range strategies {
		cfg.Strategies = append(cfg.Strategies, s.ID)
	}
	now := time.Now()
	return Run{
		ID:        uuid.NewString(),
		Status:    RunStatusRunning,
		StartDate: dates[0],
		EndDate:   dates[len(dates)-1],
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *Runner) finalizeRun(run *Run, perf Performance, planned, done int, interrupted bool) {
	overall := perf.Overall
	run.Stats = RunStats{
		TotalTrades:    overall.TotalTrades,
		Wins:           overall.Wins,
		Losses:         overall.Losses,
		WinRate:        overall.WinRate,
		TotalInvested:  overall.TotalInvested,
		NetPnL:         overall.NetPnL,
		Expectancy:     overall.Expectancy,
		SignalStrength: overall.SignalStrength,
		DaysPlanned:    planned,
		DaysCompleted:  done,
		FinishedAt:     time.Now(),
	}
	run.TotalTrades = overall.TotalTrades
	run.NetPnL = overall.NetPnL
	run.WinRate = overall.WinRate
	run.Status = RunStatusDone
	if interrupted {
		run.Message = fmt.Sprintf("interrupted after %d/%d days", done, planned)
	}
	run.UpdatedAt = time.Now()
	run.CompletedAt = run.UpdatedAt
}

// marketContext 用基准票的指标快照描述当日盘面（技术面）。
func (r *Runner) marketContext(ctx context.Context, date, interval string) string {
	if r.cfg.BenchmarkSymbol == "" {
		return ""
	}
	series, err := r.cfg.Feed.Intraday(ctx, r.cfg.BenchmarkSymbol, date, interval)
	if err != nil || series.Empty() {
		return ""
	}
	return analysis.Snapshot(series)
}

// newsContext 用 Finnhub 当日大盘新闻补充消息面，没有新闻源时为空。
func (r *Runner) newsContext(ctx context.Context, date string) string {
	if r.cfg.News == nil {
		return ""
	}
	return r.cfg.News.MarketContext(ctx, date)
}
