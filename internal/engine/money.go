package engine

import "github.com/shopspring/decimal"

// round2 价格与金额统一保留两位小数，避免浮点尾数进入报表。
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
