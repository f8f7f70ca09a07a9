package allocate

import (
	"fmt"
	"math"

	"intrabt/internal/market"
)

// Config 资金分配参数。百分比字段均以“百分数”表示（2 即 2%）。
type Config struct {
	TotalCapital        float64 // 当日总资金
	BasketLossPercent   float64 // 全部止损同时触发时允许损失的资金占比
	BasketProfitPercent float64 // 篮子目标收益占比（仅用于校验报告）
	RiskRewardRatio     float64 // 目标距离 = R × 止损距离
	StopLossPercent     float64 // 单票止损距离（入场价百分比）
	CapitalCapPercent   float64 // 单票资金上限占比
	RiskTolerance       float64 // 校验时篮子风险的容忍带，默认 0.10
}

const defaultRiskTolerance = 0.10

// Candidate 待分配的仓位候选。
type Candidate struct {
	Symbol     string
	EntryPrice float64
	Confidence float64 // 0~100
	Bias       market.Bias
}

// Position 分配产出的仓位，仅在当日篮子内有效。
type Position struct {
	Candidate

	Weight           float64
	Quantity         int64
	StopLoss         float64
	Target           float64
	CapitalAllocated float64
	MaxLoss          float64
	TargetProfit     float64
}

// Allocator 按置信度权重在多只股票间分配固定日资金，
// 同时满足篮子损失上限与单票资金上限。
type Allocator struct {
	cfg Config
}

// New 构造分配器。配置非法直接报错（启动期 fail-fast，不留到运行中）。
func New(cfg Config) (*Allocator, error) {
	if cfg.TotalCapital <= 0 {
		return nil, fmt.Errorf("total capital 必须 > 0")
	}
	if cfg.StopLossPercent <= 0 {
		return nil, fmt.Errorf("stop loss percent 必须 > 0")
	}
	if cfg.BasketLossPercent <= 0 {
		return nil, fmt.Errorf("basket loss percent 必须 > 0")
	}
	if cfg.CapitalCapPercent <= 0 {
		return nil, fmt.Errorf("capital cap percent 必须 > 0")
	}
	if cfg.RiskRewardRatio <= 0 {
		return nil, fmt.Errorf("risk reward ratio 必须 > 0")
	}
	if cfg.RiskTolerance <= 0 {
		cfg.RiskTolerance = defaultRiskTolerance
	}
	return &Allocator{cfg: cfg}, nil
}

// Allocate 七步分配算法。候选无法成仓时直接从结果中消失，
// 调用方应把空结果当作“今日不交易”。
func (a *Allocator) Allocate(candidates []Candidate) []Position {
	if len(candidates) == 0 {
		return nil
	}

	positions := make([]Position, len(candidates))
	for i, c := range candidates {
		positions[i] = Position{Candidate: c}
	}

	// 1. 置信度归一化为权重；总置信度为 0 时等权。
	totalConfidence := 0.0
	for _, p := range positions {
		totalConfidence += p.Confidence
	}
	for i := range positions {
		if totalConfidence > 0 {
			positions[i].Weight = positions[i].Confidence / totalConfidence
		} else {
			positions[i].Weight = 1.0 / float64(len(positions))
		}
	}

	// 2. 单票损失上限 = 篮子损失上限 × 权重。
	maxBasketLoss := a.cfg.TotalCapital * a.cfg.BasketLossPercent / 100
	lossCaps := make([]float64, len(positions))
	for i := range positions {
		lossCaps[i] = maxBasketLoss * positions[i].Weight
	}

	// 3. 止损/目标价：目标距离 = R × 止损距离。
	for i := range positions {
		entry := positions[i].EntryPrice
		if positions[i].Bias == market.BiasBullish {
			positions[i].StopLoss = entry * (1 - a.cfg.StopLossPercent/100)
			positions[i].Target = entry + (entry-positions[i].StopLoss)*a.cfg.RiskRewardRatio
		} else {
			positions[i].StopLoss = entry * (1 + a.cfg.StopLossPercent/100)
			positions[i].Target = entry - (positions[i].StopLoss-entry)*a.cfg.RiskRewardRatio
		}
	}

	// 4+5. 风险反推数量，再套单票资金上限并取整。
	// 取整后为 0 但买一股仍在上限内时，强制买 1 股（沿用原始算法的下限行为）。
	maxCapitalPerStock := a.cfg.TotalCapital * a.cfg.CapitalCapPercent / 100
	for i := range positions {
		entry := positions[i].EntryPrice
		riskPerShare := math.Abs(entry - positions[i].StopLoss)
		rawQty := 0.0
		if riskPerShare > 0 {
			rawQty = lossCaps[i] / riskPerShare
		}
		if entry > 0 {
			rawQty = math.Min(rawQty, maxCapitalPerStock/entry)
		} else {
			rawQty = 0
		}
		qty := int64(math.Floor(rawQty))
		if qty == 0 && entry > 0 && entry <= maxCapitalPerStock {
			qty = 1
		}
		positions[i].Quantity = qty
	}

	// 6. 篮子总资金校验：超出时统一缩放并重新取整。
	// 缩放后的实际敞口可能低于名义上限，按保守处理接受。
	capitalUsed := 0.0
	for _, p := range positions {
		capitalUsed += float64(p.Quantity) * p.EntryPrice
	}
	if capitalUsed > a.cfg.TotalCapital {
		scale := a.cfg.TotalCapital / capitalUsed
		for i := range positions {
			positions[i].Quantity = int64(math.Floor(float64(positions[i].Quantity) * scale))
		}
	}

	// 7. 最终数值，并剔除数量为 0 的票。
	out := make([]Position, 0, len(positions))
	for _, p := range positions {
		if p.Quantity <= 0 {
			continue
		}
		p.CapitalAllocated = float64(p.Quantity) * p.EntryPrice
		p.MaxLoss = float64(p.Quantity) * math.Abs(p.EntryPrice-p.StopLoss)
		p.TargetProfit = float64(p.Quantity) * math.Abs(p.Target-p.EntryPrice)
		out = append(out, p)
	}
	return out
}

// Report 诊断性校验结果，不回写分配。
type Report struct {
	Valid              bool
	CapitalUsed        float64
	CapitalRemaining   float64
	TotalRisk          float64
	TotalTarget        float64
	ActualRiskReward   float64
	UtilizationPercent float64
	Errors             []string
}

// Validate 复核分配结果是否落在配置的篮子约束内。
// 篮子风险允许 RiskTolerance 的容忍带（产品语义未定，见配置项说明）。
func (a *Allocator) Validate(positions []Position) Report {
	if len(positions) == 0 {
		return Report{Errors: []string{"没有任何已分配仓位"}}
	}
	var rep Report
	for _, p := range positions {
		rep.CapitalUsed += p.CapitalAllocated
		rep.TotalRisk += p.MaxLoss
		rep.TotalTarget += p.TargetProfit
	}
	rep.CapitalRemaining = a.cfg.TotalCapital - rep.CapitalUsed
	if rep.TotalRisk > 0 {
		rep.ActualRiskReward = rep.TotalTarget / rep.TotalRisk
	}
	rep.UtilizationPercent = rep.CapitalUsed / a.cfg.TotalCapital * 100

	expectedMaxLoss := a.cfg.TotalCapital * a.cfg.BasketLossPercent / 100
	if rep.CapitalUsed > a.cfg.TotalCapital {
		rep.Errors = append(rep.Errors,
			fmt.Sprintf("占用资金 %.2f 超过总资金 %.2f", rep.CapitalUsed, a.cfg.TotalCapital))
	}
	if rep.TotalRisk > expectedMaxLoss*(1+a.cfg.RiskTolerance) {
		rep.Errors = append(rep.Errors,
			fmt.Sprintf("篮子风险 %.2f 超过损失上限 %.2f", rep.TotalRisk, expectedMaxLoss))
	}
	rep.Valid = len(rep.Errors) == 0
	return rep
}
