package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrabt/internal/market"
)

func trendingSeries(t *testing.T, n int) market.Series {
	t.Helper()
	candles := make([]market.Candle, 0, n)
	price := 100.0
	for i := 0; i < n; i++ {
		at := fmt.Sprintf("%02d:%02d", 9+(30+i*5)/60, (30+i*5)%60)
		candles = append(candles, market.Candle{
			Time:   market.MustTimeOfDay(at),
			Open:   price,
			High:   price + 0.8,
			Low:    price - 0.3,
			Close:  price + 0.5,
			Volume: 1000,
		})
		price += 0.5
	}
	s, err := market.NewSeries("TCS.NS", "2025-06-02", "5m", candles)
	require.NoError(t, err)
	return s
}

func TestSnapshotShortSeriesIsEmpty(t *testing.T) {
	assert.Empty(t, Snapshot(market.Series{}))
	assert.Empty(t, Snapshot(trendingSeries(t, emaSlowPeriod)))
}

func TestSnapshotDescribesUptrend(t *testing.T) {
	out := Snapshot(trendingSeries(t, 40))
	require.NotEmpty(t, out)

	assert.Contains(t, out, "TCS.NS 5m: last")
	assert.Contains(t, out, "session range")
	assert.Contains(t, out, "EMA9")
	assert.Contains(t, out, "EMA21")
	assert.Contains(t, out, "trend up")
	assert.Contains(t, out, "RSI14")
	// 一路上涨的序列 RSI 应在超买区
	assert.Contains(t, out, "overbought")
	assert.Contains(t, out, "ATR14")

	lines := strings.Split(out, "\n")
	assert.GreaterOrEqual(t, len(lines), 3)
}
