package market

import (
	"fmt"
)

// Candle 单根日内 K 线。Time 为当日钟表时间，价格字段均为正数。
type Candle struct {
	Time   TimeOfDay `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

func (c Candle) valid() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("OHLC 必须为正数")
	}
	if c.Low > c.High {
		return fmt.Errorf("low(%.4f) > high(%.4f)", c.Low, c.High)
	}
	if c.Open < c.Low || c.Open > c.High || c.Close < c.Low || c.Close > c.High {
		return fmt.Errorf("open/close 超出 low~high 区间")
	}
	if c.Volume < 0 {
		return fmt.Errorf("volume 不能为负")
	}
	return nil
}

// Series 某个标的在单个交易日内按时间严格递增的 K 线序列。
type Series struct {
	Symbol   string
	Date     string // YYYY-MM-DD
	Interval string // 1m/5m/15m/30m/1h
	Candles  []Candle
}

// NewSeries 构造并校验序列：时间严格递增，每根 K 线满足 low ≤ open,close ≤ high。
func NewSeries(symbol, date, interval string, candles []Candle) (Series, error) {
	if symbol == "" || date == "" || interval == "" {
		return Series{}, fmt.Errorf("symbol/date/interval 不能为空")
	}
	for i, c := range candles {
		if err := c.valid(); err != nil {
			return Series{}, fmt.Errorf("%s %s 第 %d 根 K 线无效: %w", symbol, date, i, err)
		}
		if i > 0 && candles[i-1].Time >= c.Time {
			return Series{}, fmt.Errorf("%s %s 第 %d 根 K 线时间未递增", symbol, date, i)
		}
	}
	return Series{Symbol: symbol, Date: date, Interval: interval, Candles: candles}, nil
}

func (s Series) Empty() bool { return len(s.Candles) == 0 }

// Last 返回最后一根 K 线；序列为空时 ok=false。
func (s Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// FirstAtOrAfter 返回首根时间 ≥ t 的 K 线下标，找不到时返回 -1。
func (s Series) FirstAtOrAfter(t TimeOfDay) int {
	for i, c := range s.Candles {
		if c.Time >= t {
			return i
		}
	}
	return -1
}

// IndexAt 按精确时间定位 K 线，找不到时返回 -1。
func (s Series) IndexAt(t TimeOfDay) int {
	for i, c := range s.Candles {
		if c.Time == t {
			return i
		}
	}
	return -1
}
