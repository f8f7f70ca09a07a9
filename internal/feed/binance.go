package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"intrabt/internal/market"

	"github.com/adshao/go-binance/v2/futures"
)

// BinanceSource 基于 go-binance SDK 拉取 USDT 合约 K 线，
// 用于在 24 小时市场上跑同一套规则（date 按 UTC 切日）。
type BinanceSource struct {
	client *futures.Client
}

func NewBinanceSource(baseURL string) *BinanceSource {
	client := futures.NewClient("", "")
	if strings.TrimSpace(baseURL) != "" {
		client.BaseURL = strings.TrimSpace(baseURL)
	}
	return &BinanceSource{client: client}
}

func (b *BinanceSource) Name() string { return "binance" }

func (b *BinanceSource) Fetch(ctx context.Context, symbol, date, interval string) ([]market.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("date 格式无效: %w", err)
	}
	start := day.UnixMilli()
	end := day.Add(24*time.Hour).UnixMilli() - 1

	kls, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(strings.ToLower(interval)).
		StartTime(start).
		EndTime(end).
		Limit(1500).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		t := time.UnixMilli(kl.OpenTime).UTC()
		out = append(out, market.Candle{
			Time:   market.TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second()),
			Open:   parseFloat(kl.Open),
			High:   parseFloat(kl.High),
			Low:    parseFloat(kl.Low),
			Close:  parseFloat(kl.Close),
			Volume: int64(parseFloat(kl.Volume)),
		})
	}
	return out, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
