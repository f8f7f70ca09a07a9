package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"intrabt/internal/logger"
	"intrabt/internal/market"
	"intrabt/internal/strategy"
)

// ChatClient 兼容 OpenAI / Mistral / DeepSeek 的 /v1/chat/completions 接口。
type ChatClient struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	// 429/5xx 的简易重试次数，0 表示默认 2 次。
	MaxRetries int

	client *http.Client
}

func (c *ChatClient) httpClient() *http.Client {
	if c.client == nil {
		timeout := c.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		c.client = &http.Client{Timeout: timeout}
	}
	return c.client
}

func (c *ChatClient) endpoint() string {
	url := strings.TrimSpace(c.BaseURL)
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	// 容忍配置里写了完整路径的情况，统一只追加一次。
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete 发送单条 user 消息并返回模型文本输出。
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	temperature := c.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	body := map[string]any{
		"model":       c.Model,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": temperature,
	}
	payload, _ := json.Marshal(body)

	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 2 * time.Second
			logger.Debugf("[suggest] 第 %d 次重试，等待 %s", attempt, backoff)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}
		resp, err := c.httpClient().Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("模型接口返回状态码 %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("模型接口返回状态码 %d: %s", resp.StatusCode, truncate(string(data), 200))
		}
		var parsed chatResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return "", fmt.Errorf("解析模型响应失败: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("模型接口错误: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("模型响应缺少 choices")
		}
		return parsed.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("模型调用重试耗尽: %w", lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// Engine 将一条策略绑定到聊天客户端，实现 Source。
type Engine struct {
	client   *ChatClient
	strat    strategy.Strategy
	maxCount int
}

// EngineFactory 按策略实例化 Engine。
type EngineFactory struct {
	Client   *ChatClient
	MaxCount int
}

func (f *EngineFactory) New(strat strategy.Strategy) (Source, error) {
	if f.Client == nil {
		return nil, fmt.Errorf("chat client 不能为空")
	}
	return &Engine{client: f.Client, strat: strat, maxCount: f.MaxCount}, nil
}

// Suggest 渲染策略提示词并解析模型输出。
// 模型失败或输出不可解析时返回空列表：对上层而言就是“今日无建议”。
func (e *Engine) Suggest(ctx context.Context, date, marketContext, newsContext string) ([]market.Suggestion, error) {
	prompt := e.strat.Render(date, marketContext, newsContext)
	logger.Debugf("[suggest] %s 调用模型，date=%s", e.strat.ID, date)
	raw, err := e.client.Complete(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warnf("[suggest] %s %s 模型调用失败: %v", e.strat.ID, date, err)
		return nil, nil
	}
	suggestions, err := ParseSuggestions(raw, e.maxCount)
	if err != nil {
		logger.Warnf("[suggest] %s %s 输出不可解析: %v", e.strat.ID, date, err)
		return nil, nil
	}
	return suggestions, nil
}
