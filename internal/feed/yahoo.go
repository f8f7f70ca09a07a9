package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"intrabt/internal/market"
)

// YahooSource 基于 Yahoo Finance v8 chart 接口拉取股票日内 K 线。
type YahooSource struct {
	baseURL string
	suffix  string // 交易所后缀，如 NSE 为 ".NS"
	client  *http.Client
}

func NewYahooSource(base, suffix string) *YahooSource {
	if base == "" {
		base = "https://query1.finance.yahoo.com"
	}
	return &YahooSource{
		baseURL: base,
		suffix:  suffix,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (y *YahooSource) Name() string { return "yahoo" }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *YahooSource) Fetch(ctx context.Context, symbol, date, interval string) ([]market.Candle, error) {
	if symbol == "" || date == "" || interval == "" {
		return nil, fmt.Errorf("symbol/date/interval 不能为空")
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("date 格式无效: %w", err)
	}
	ticker := symbol
	if y.suffix != "" && !strings.HasSuffix(ticker, y.suffix) {
		ticker += y.suffix
	}

	u, _ := url.Parse(y.baseURL)
	u.Path = "/v8/finance/chart/" + url.PathEscape(ticker)
	q := u.Query()
	q.Set("interval", interval)
	q.Set("period1", strconv.FormatInt(day.Unix(), 10))
	q.Set("period2", strconv.FormatInt(day.Add(24*time.Hour).Unix(), 10))
	q.Set("includePrePost", "false")
	u.RawQuery = q.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; intrabt)")
	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("yahoo 返回状态码 %d", resp.StatusCode)
	}
	var raw yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if raw.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo: %s", raw.Chart.Error.Description)
	}
	if len(raw.Chart.Result) == 0 || len(raw.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}
	result := raw.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	offset := time.Duration(result.Meta.GMTOffset) * time.Second

	out := make([]market.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || quote.Open[i] == nil || quote.High[i] == nil ||
			quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		local := time.Unix(ts, 0).UTC().Add(offset)
		if local.Format("2006-01-02") != date {
			continue
		}
		var vol int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			vol = *quote.Volume[i]
		}
		out = append(out, market.Candle{
			Time:   market.TimeOfDay(local.Hour()*3600 + local.Minute()*60 + local.Second()),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: vol,
		})
	}
	return out, nil
}
