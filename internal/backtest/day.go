package backtest

import (
	"context"

	"intrabt/internal/allocate"
	"intrabt/internal/engine"
	"intrabt/internal/feed"
	"intrabt/internal/logger"
	"intrabt/internal/market"
	"intrabt/internal/strategy"
	"intrabt/internal/suggest"
)

// dayInput 单个 (日期, 策略, 周期) 组合的编排入参。
type dayInput struct {
	Date          string
	Interval      string
	Strategy      strategy.Strategy
	Source        suggest.Source
	MarketContext string
	NewsContext   string
}

// candidateSeries 把候选、入场与其 K 线绑在一起走完分配到模拟的流程。
type candidateSeries struct {
	entry  engine.Entry
	series market.Series
	sug    market.Suggestion
}

// Orchestrator 单日编排：拿建议、算入场、分配资金、逐票模拟。
// 无建议、无数据、无可分配仓位都只产生零笔交易，不算错误。
type Orchestrator struct {
	feed      *feed.Service
	allocator *allocate.Allocator
	engine    *engine.Engine
	maxStocks int
}

func NewOrchestrator(f *feed.Service, alloc *allocate.Allocator, eng *engine.Engine, maxStocks int) *Orchestrator {
	if maxStocks <= 0 {
		maxStocks = 5
	}
	return &Orchestrator{feed: f, allocator: alloc, engine: eng, maxStocks: maxStocks}
}

// RunDay 返回当日全部成交记录。只有 ctx 取消才会返回错误，
// 其余失败统统按跳过处理并记日志。
func (o *Orchestrator) RunDay(ctx context.Context, in dayInput) ([]engine.Trade, error) {
	suggestions, err := in.Source.Suggest(ctx, in.Date, in.MarketContext, in.NewsContext)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warnf("[day] %s %s 获取建议失败，跳过: %v", in.Date, in.Strategy.ID, err)
		return nil, nil
	}
	if len(suggestions) > o.maxStocks {
		suggestions = suggestions[:o.maxStocks]
	}
	if len(suggestions) == 0 {
		logger.Infof("[day] %s %s 没有建议", in.Date, in.Strategy.ID)
		return nil, nil
	}

	// 先为每只票确定入场，只有能入场的才进分配篮子。
	var picks []candidateSeries
	var candidates []allocate.Candidate
	for _, sug := range suggestions {
		series, err := o.feed.Intraday(ctx, sug.Symbol, in.Date, in.Interval)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// 缓存/IO 故障只影响这一只票，不拖垮整天。
			logger.Warnf("[day] %s %s 行情读取失败，跳过: %v", in.Date, sug.Symbol, err)
			continue
		}
		if series.Empty() {
			logger.Infof("[day] %s %s 无 K 线，跳过", in.Date, sug.Symbol)
			continue
		}
		entry, ok := o.engine.CalculateEntry(series, sug.Bias)
		if !ok {
			logger.Infof("[day] %s %s 找不到入场 K 线或股数为 0，跳过", in.Date, sug.Symbol)
			continue
		}
		picks = append(picks, candidateSeries{entry: entry, series: series, sug: sug})
		candidates = append(candidates, allocate.Candidate{
			Symbol:     sug.Symbol,
			EntryPrice: entry.Price,
			Confidence: sug.Confidence,
			Bias:       sug.Bias,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	positions := o.allocator.Allocate(candidates)
	if len(positions) == 0 {
		logger.Infof("[day] %s %s 篮子无法满足资金约束，零成交", in.Date, in.Strategy.ID)
		return nil, nil
	}

	bySymbol := make(map[string]candidateSeries, len(picks))
	for _, p := range picks {
		bySymbol[p.sug.Symbol] = p
	}

	var trades []engine.Trade
	for _, pos := range positions {
		pick, ok := bySymbol[pos.Symbol]
		if !ok {
			// 分配器只会返回入参里的票，走到这里说明上游出了契约问题。
			logger.Errorf("[day] %s 分配结果出现未知票 %s", in.Date, pos.Symbol)
			continue
		}
		// 用分配器给出的止损/目标/股数覆盖入场默认值后再模拟。
		entry := pick.entry
		entry.Quantity = pos.Quantity
		entry.StopLoss = pos.StopLoss
		entry.Target = pos.Target
		entry.InvestedAmount = pos.CapitalAllocated

		trade, err := o.engine.SimulateTrade(entry, pick.series, in.Date)
		if err != nil {
			logger.Errorf("[day] %s %s 模拟失败: %v", in.Date, pos.Symbol, err)
			continue
		}
		trade.Strategy = in.Strategy.ID
		trade.Interval = in.Interval
		trade.Confidence = pick.sug.Confidence
		trade.Reason = pick.sug.Reason
		trade.Weight = pos.Weight
		trades = append(trades, trade)
	}
	return trades, nil
}
