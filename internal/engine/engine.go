package engine

import (
	"fmt"
	"math"

	"intrabt/internal/market"
)

// ExitReason 平仓原因。
type ExitReason string

const (
	ExitStopLoss ExitReason = "STOP_LOSS"
	ExitTarget   ExitReason = "TARGET"
	ExitForceEOD ExitReason = "FORCE_EXIT_EOD"
)

// Outcome 按净盈亏符号标注的结果。
type Outcome string

const (
	OutcomeProfit    Outcome = "PROFIT"
	OutcomeLoss      Outcome = "LOSS"
	OutcomeBreakeven Outcome = "BREAKEVEN"
)

// Config 固定交易规则参数。百分比为百分数（0.1 即 0.1%）。
type Config struct {
	CapitalPerTrade        float64
	StopLossPercent        float64
	TargetPercent          float64
	SlippagePercent        float64
	TransactionCostPercent float64
	EntryStart             market.TimeOfDay // 此时间后的首根 K 线入场
	ForceExit              market.TimeOfDay // 到点无条件离场
}

// Entry 入场明细。Stop/Target 默认按 Config 百分比推导，
// 走资金分配流程时由调用方用分配器给出的值覆盖后再模拟。
type Entry struct {
	Symbol         string
	Bias           market.Bias
	Time           market.TimeOfDay
	Price          float64
	Quantity       int64
	StopLoss       float64
	Target         float64
	InvestedAmount float64
}

// Trade 一笔完整交易的终态记录，生成后不再修改。
type Trade struct {
	Date            string
	Symbol          string
	Bias            market.Bias
	EntryTime       market.TimeOfDay
	EntryPrice      float64
	ExitTime        market.TimeOfDay
	ExitPrice       float64
	ExitReason      ExitReason
	Quantity        int64
	InvestedAmount  float64
	StopLoss        float64
	Target          float64
	GrossPnL        float64
	TransactionCost float64
	NetPnL          float64
	Outcome         Outcome

	// 由编排层补充的策略元数据。
	Strategy   string
	Interval   string
	Confidence float64
	Reason     string
	Weight     float64
}

// Engine 对单只股票执行固定规则：入场、逐根 K 线推演止损/目标/强制离场。
type Engine struct {
	cfg Config
}

func New(cfg Config) (*Engine, error) {
	if cfg.CapitalPerTrade <= 0 {
		return nil, fmt.Errorf("capital per trade 必须 > 0")
	}
	if cfg.StopLossPercent <= 0 || cfg.TargetPercent <= 0 {
		return nil, fmt.Errorf("stop loss/target percent 必须 > 0")
	}
	if cfg.SlippagePercent < 0 || cfg.TransactionCostPercent < 0 {
		return nil, fmt.Errorf("slippage/transaction cost 不能为负")
	}
	if cfg.ForceExit <= cfg.EntryStart {
		return nil, fmt.Errorf("force exit 必须晚于 entry start")
	}
	return &Engine{cfg: cfg}, nil
}

// CalculateEntry 取 entry start 之后首根 K 线的开盘价入场，滑点朝不利方向调整。
// 找不到入场 K 线或买不起一股时返回 ok=false。
func (e *Engine) CalculateEntry(series market.Series, bias market.Bias) (Entry, bool) {
	idx := series.FirstAtOrAfter(e.cfg.EntryStart)
	if idx < 0 {
		return Entry{}, false
	}
	candle := series.Candles[idx]

	base := candle.Open
	var price float64
	if bias == market.BiasBullish {
		price = base * (1 + e.cfg.SlippagePercent/100)
	} else {
		price = base * (1 - e.cfg.SlippagePercent/100)
	}
	price = round2(price)
	if price <= 0 {
		return Entry{}, false
	}

	qty := int64(math.Floor(e.cfg.CapitalPerTrade / price))
	if qty == 0 {
		return Entry{}, false
	}

	var stop, target float64
	if bias == market.BiasBullish {
		stop = price * (1 - e.cfg.StopLossPercent/100)
		target = price * (1 + e.cfg.TargetPercent/100)
	} else {
		stop = price * (1 + e.cfg.StopLossPercent/100)
		target = price * (1 - e.cfg.TargetPercent/100)
	}

	return Entry{
		Symbol:         series.Symbol,
		Bias:           bias,
		Time:           candle.Time,
		Price:          price,
		Quantity:       qty,
		StopLoss:       round2(stop),
		Target:         round2(target),
		InvestedAmount: round2(price * float64(qty)),
	}, true
}

// SimulateTrade 从入场 K 线的下一根开始推演。
// 同一根 K 线内止损与目标同时可触发时先判止损（保守处理）。
// 入场 K 线按精确时间必须能在序列里找到，找不到属于上游契约被破坏。
func (e *Engine) SimulateTrade(entry Entry, series market.Series, date string) (Trade, error) {
	entryIdx := series.IndexAt(entry.Time)
	if entryIdx < 0 {
		return Trade{}, fmt.Errorf("%s %s: 入场 K 线 %s 不在序列中", entry.Symbol, date, entry.Time)
	}

	var (
		exitPrice  float64
		exitTime   market.TimeOfDay
		exitReason ExitReason
		found      bool
	)
	for i := entryIdx + 1; i < len(series.Candles); i++ {
		c := series.Candles[i]

		if c.Time >= e.cfg.ForceExit {
			exitPrice, exitTime, exitReason, found = c.Close, c.Time, ExitForceEOD, true
			break
		}

		if entry.Bias == market.BiasBullish {
			if c.Low <= entry.StopLoss {
				exitPrice, exitTime, exitReason, found = entry.StopLoss, c.Time, ExitStopLoss, true
				break
			}
			if c.High >= entry.Target {
				exitPrice, exitTime, exitReason, found = entry.Target, c.Time, ExitTarget, true
				break
			}
		} else {
			if c.High >= entry.StopLoss {
				exitPrice, exitTime, exitReason, found = entry.StopLoss, c.Time, ExitStopLoss, true
				break
			}
			if c.Low <= entry.Target {
				exitPrice, exitTime, exitReason, found = entry.Target, c.Time, ExitTarget, true
				break
			}
		}
	}
	if !found {
		// 序列提前结束：按最后一根收盘价强制离场。
		last := series.Candles[len(series.Candles)-1]
		exitPrice, exitTime, exitReason = last.Close, last.Time, ExitForceEOD
	}

	// 离场滑点与入场方向相反。
	if entry.Bias == market.BiasBullish {
		exitPrice *= 1 - e.cfg.SlippagePercent/100
	} else {
		exitPrice *= 1 + e.cfg.SlippagePercent/100
	}
	exitPrice = round2(exitPrice)

	var gross float64
	if entry.Bias == market.BiasBullish {
		gross = (exitPrice - entry.Price) * float64(entry.Quantity)
	} else {
		gross = (entry.Price - exitPrice) * float64(entry.Quantity)
	}
	gross = round2(gross)
	cost := round2(entry.InvestedAmount * 2 * e.cfg.TransactionCostPercent / 100)
	net := round2(gross - cost)

	outcome := OutcomeBreakeven
	switch {
	case net > 0:
		outcome = OutcomeProfit
	case net < 0:
		outcome = OutcomeLoss
	}

	return Trade{
		Date:            date,
		Symbol:          entry.Symbol,
		Bias:            entry.Bias,
		EntryTime:       entry.Time,
		EntryPrice:      entry.Price,
		ExitTime:        exitTime,
		ExitPrice:       exitPrice,
		ExitReason:      exitReason,
		Quantity:        entry.Quantity,
		InvestedAmount:  entry.InvestedAmount,
		StopLoss:        entry.StopLoss,
		Target:          entry.Target,
		GrossPnL:        gross,
		TransactionCost: cost,
		NetPnL:          net,
		Outcome:         outcome,
		Interval:        series.Interval,
	}, nil
}
