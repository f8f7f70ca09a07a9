package suggest

import (
	"context"
	"encoding/json"
	"fmt"

	"intrabt/internal/logger"
	"intrabt/internal/market"
	"intrabt/internal/strategy"
)

// Source 给定交易日与上下文，返回模型的选股建议。
// 可以返回 0~N 条；调用方必须容忍空结果并按配置截断数量。
type Source interface {
	Suggest(ctx context.Context, date, marketContext, newsContext string) ([]market.Suggestion, error)
}

// Factory 按策略实例化建议来源（每个策略一个实例，携带各自提示词）。
type Factory interface {
	New(strat strategy.Strategy) (Source, error)
}

type rawSuggestion struct {
	Symbol     string  `json:"symbol"`
	Confidence float64 `json:"confidence"`
	Bias       string  `json:"bias"`
	Reason     string  `json:"reason"`
}

// ParseSuggestions 从模型原始输出中提取建议列表。
// 任何解析/校验失败都按“无建议”处理并返回错误信息供日志使用，绝不中断回测。
func ParseSuggestions(raw string, maxCount int) ([]market.Suggestion, error) {
	arr, ok := extractJSONArray(raw)
	if !ok {
		return nil, fmt.Errorf("输出中未找到 JSON 数组")
	}
	if err := validateSchema(arr); err != nil {
		return nil, err
	}
	var items []rawSuggestion
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		return nil, fmt.Errorf("解析建议失败: %w", err)
	}
	out := make([]market.Suggestion, 0, len(items))
	for _, it := range items {
		bias, err := market.ParseBias(it.Bias)
		if err != nil {
			logger.Warnf("[suggest] 跳过 %s: %v", it.Symbol, err)
			continue
		}
		s := market.Suggestion{
			Symbol:     it.Symbol,
			Confidence: it.Confidence,
			Bias:       bias,
			Reason:     it.Reason,
		}
		if err := s.Validate(); err != nil {
			logger.Warnf("[suggest] 跳过无效建议: %v", err)
			continue
		}
		out = append(out, s)
	}
	if maxCount > 0 && len(out) > maxCount {
		out = out[:maxCount]
	}
	return out, nil
}
