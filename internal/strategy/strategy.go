package strategy

import (
	"fmt"
	"strings"
)

// Strategy 一组提示词定义的选股策略。构造后不可变，
// 以值的方式在调用链中传递，不存在共享可变配置。
type Strategy struct {
	ID           string
	Name         string
	Description  string
	SystemPrompt string
}

// Render 将模板中的 {date} / {market_context} / {news_context} 占位符替换为实际内容。
func (s Strategy) Render(date, marketContext, newsContext string) string {
	if marketContext == "" {
		marketContext = "No specific market context available."
	}
	if newsContext == "" {
		newsContext = "No specific news available."
	}
	out := strings.ReplaceAll(s.SystemPrompt, "{date}", date)
	out = strings.ReplaceAll(out, "{market_context}", marketContext)
	out = strings.ReplaceAll(out, "{news_context}", newsContext)
	return out
}

func (s Strategy) validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("strategy id 不能为空")
	}
	if strings.TrimSpace(s.SystemPrompt) == "" {
		return fmt.Errorf("strategy %s 缺少 system_prompt", s.ID)
	}
	return nil
}
