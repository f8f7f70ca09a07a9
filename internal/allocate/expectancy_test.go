package allocate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectancyEmpty(t *testing.T) {
	s := Expectancy(nil)
	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.AvgWin)
	assert.Zero(t, s.AvgLoss)
	assert.Zero(t, s.Expectancy)
	assert.Zero(t, s.SignalStrength)
}

func TestExpectancyKnownValues(t *testing.T) {
	// 2 胜 2 负：胜率 0.5，平均盈利 300，平均亏损 100
	s := Expectancy([]float64{200, 400, -100, -100})

	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.InDelta(t, 0.5, s.WinRate, 1e-9)
	assert.InDelta(t, 300, s.AvgWin, 1e-9)
	assert.InDelta(t, 100, s.AvgLoss, 1e-9)
	// 0.5×300 − 0.5×100 = 100
	assert.InDelta(t, 100, s.Expectancy, 1e-9)
	assert.InDelta(t, 100, s.SignalStrength, 1e-9)
}

func TestExpectancyNegativeClampsSignalStrength(t *testing.T) {
	s := Expectancy([]float64{50, -200, -200})

	assert.InDelta(t, 1.0/3.0, s.WinRate, 1e-9)
	assert.Negative(t, s.Expectancy)
	assert.Zero(t, s.SignalStrength)
}

func TestExpectancyBreakevenTrades(t *testing.T) {
	// 平局不计胜也不计负，但分母包含它们。
	s := Expectancy([]float64{100, 0, -100, 0})

	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 0.25, s.WinRate, 1e-9)
	// 0.25×100 − 0.25×100 = 0
	assert.InDelta(t, 0, s.Expectancy, 1e-9)
	assert.Zero(t, s.SignalStrength)
}

func TestExpectancyAllWins(t *testing.T) {
	s := Expectancy([]float64{10, 20, 30})

	assert.InDelta(t, 1.0, s.WinRate, 1e-9)
	assert.InDelta(t, 20, s.AvgWin, 1e-9)
	assert.Zero(t, s.AvgLoss)
	assert.InDelta(t, 20, s.Expectancy, 1e-9)
	assert.InDelta(t, 20, s.SignalStrength, 1e-9)
}
