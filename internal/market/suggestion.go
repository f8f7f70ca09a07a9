package market

import (
	"fmt"
	"strings"
)

// Bias AI 给出的方向判断。
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
)

// ParseBias 归一化方向字段（容忍大小写与 long/short 写法）。
func ParseBias(s string) (Bias, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BULLISH", "LONG", "BUY":
		return BiasBullish, nil
	case "BEARISH", "SHORT", "SELL":
		return BiasBearish, nil
	default:
		return "", fmt.Errorf("未知 bias: %q", s)
	}
}

// Suggestion 模型对某一交易日的单只股票建议，构造后不可变。
type Suggestion struct {
	Symbol     string  `json:"symbol"`
	Confidence float64 `json:"confidence"` // 0~100
	Bias       Bias    `json:"bias"`
	Reason     string  `json:"reason,omitempty"`
}

// Validate 建议在进入核心流程前校验一次。
func (s Suggestion) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("symbol 不能为空")
	}
	if s.Confidence < 0 || s.Confidence > 100 {
		return fmt.Errorf("%s confidence %.1f 超出 0~100", s.Symbol, s.Confidence)
	}
	if s.Bias != BiasBullish && s.Bias != BiasBearish {
		return fmt.Errorf("%s bias 无效: %q", s.Symbol, s.Bias)
	}
	return nil
}
