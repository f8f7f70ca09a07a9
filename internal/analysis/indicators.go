package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/markcheno/go-talib"

	"intrabt/internal/market"
)

// 指标快照的默认周期，日内尺度下 9/21 EMA 比 50/200 更有意义。
const (
	emaFastPeriod = 9
	emaSlowPeriod = 21
	rsiPeriod     = 14
	atrPeriod     = 14
)

// Snapshot 把一段 K 线压缩成几行给模型看的指标文本，
// 作为没有新闻源时 {market_context} 的兜底。
// 样本太短时返回空串。
func Snapshot(series market.Series) string {
	candles := series.Candles
	if len(candles) <= emaSlowPeriod {
		return ""
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}
	price := closes[len(closes)-1]

	var lines []string
	lines = append(lines, fmt.Sprintf("%s %s: last %.2f, session range %.2f-%.2f",
		series.Symbol, series.Interval, price, minOf(lows), maxOf(highs)))

	fast := lastValid(talib.Ema(closes, emaFastPeriod))
	slow := lastValid(talib.Ema(closes, emaSlowPeriod))
	if fast > 0 && slow > 0 {
		trend := "flat"
		switch {
		case fast > slow && price > fast:
			trend = "up"
		case fast < slow && price < fast:
			trend = "down"
		}
		lines = append(lines, fmt.Sprintf("EMA%d %.2f / EMA%d %.2f, trend %s",
			emaFastPeriod, fast, emaSlowPeriod, slow, trend))
	}

	if rsi := lastValid(talib.Rsi(closes, rsiPeriod)); rsi > 0 {
		zone := "neutral"
		switch {
		case rsi >= 70:
			zone = "overbought"
		case rsi <= 30:
			zone = "oversold"
		}
		lines = append(lines, fmt.Sprintf("RSI%d %.1f (%s)", rsiPeriod, rsi, zone))
	}

	if atr := lastValid(talib.Atr(highs, lows, closes, atrPeriod)); atr > 0 && price > 0 {
		lines = append(lines, fmt.Sprintf("ATR%d %.2f (%.2f%% of price)",
			atrPeriod, atr, atr/price*100))
	}

	return strings.Join(lines, "\n")
}

// lastValid 取序列最后一个非零、非 NaN 的值，talib 的前导区间是 0。
func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return 0
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
