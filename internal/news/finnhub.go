package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"intrabt/internal/logger"
)

// Client 从 Finnhub 拉取新闻，生成给模型的行情/新闻上下文。
// 拉取失败只降级为空文本，不会中断回测。
type Client struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	client  *http.Client
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]string
}

func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: "https://finnhub.io/api/v1",
		// 免费档大约 60 req/min，留一点余量。
		limiter: rate.NewLimiter(rate.Every(1200*time.Millisecond), 1),
		cache:   make(map[string]string),
	}
}

func (c *Client) httpClient() *http.Client {
	if c.client == nil {
		timeout := c.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		c.client = &http.Client{Timeout: timeout}
	}
	return c.client
}

type article struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Source   string `json:"source"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]article, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("finnhub api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params.Set("token", c.APIKey)

	base := strings.TrimRight(c.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("finnhub %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var articles []article
	if err := json.Unmarshal(body, &articles); err != nil {
		return nil, fmt.Errorf("finnhub %s: decode: %w", path, err)
	}
	return articles, nil
}

// MarketContext 返回当日的大盘新闻摘要，喂给选股 prompt 的 {news_context}。
// 失败时返回空串，由调用方决定兜底文案。
func (c *Client) MarketContext(ctx context.Context, date string) string {
	key := "market_" + date

	c.mu.Lock()
	if text, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return text
	}
	c.mu.Unlock()

	articles, err := c.get(ctx, "/news", url.Values{"category": {"general"}})
	if err != nil {
		logger.Warnf("finnhub market news %s: %v", date, err)
		return ""
	}
	if len(articles) == 0 {
		return ""
	}

	lines := []string{"Market News:"}
	for i, a := range articles {
		if i >= 5 {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, a.Headline))
	}
	text := strings.Join(lines, "\n")

	c.mu.Lock()
	c.cache[key] = text
	c.mu.Unlock()
	return text
}
