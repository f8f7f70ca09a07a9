package backtest

import (
	"sort"

	"intrabt/internal/allocate"
	"intrabt/internal/engine"
)

// PerfRow 一个策略（或全体）的绩效汇总。
type PerfRow struct {
	Strategy       string  `json:"strategy"`
	TotalTrades    int     `json:"total_trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate"`
	TradingDays    int     `json:"trading_days"`
	ProfitableDays int     `json:"profitable_days"`
	LosingDays     int     `json:"losing_days"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	Expectancy     float64 `json:"expectancy"`
	SignalStrength float64 `json:"signal_strength"`
	TotalInvested  float64 `json:"total_invested"`
	TotalProfit    float64 `json:"total_profit"`
	TotalLoss      float64 `json:"total_loss"`
	NetPnL         float64 `json:"net_pnl"`
}

// Performance 分组绩效：按策略一行，外加一行整体汇总。
type Performance struct {
	Strategies []PerfRow `json:"strategies"` // 按 signal_strength 降序
	Overall    PerfRow   `json:"overall"`
}

// Aggregate 对一批成交记录重新计算绩效，每次全量推导，不做增量更新。
func Aggregate(trades []engine.Trade) Performance {
	byStrategy := make(map[string][]engine.Trade)
	for _, t := range trades {
		byStrategy[t.Strategy] = append(byStrategy[t.Strategy], t)
	}

	var rows []PerfRow
	for name, group := range byStrategy {
		rows = append(rows, buildRow(name, group))
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SignalStrength != rows[j].SignalStrength {
			return rows[i].SignalStrength > rows[j].SignalStrength
		}
		return rows[i].Strategy < rows[j].Strategy
	})

	return Performance{
		Strategies: rows,
		Overall:    buildRow("OVERALL", trades),
	}
}

func buildRow(name string, trades []engine.Trade) PerfRow {
	row := PerfRow{Strategy: name}

	pnls := make([]float64, 0, len(trades))
	dayPnL := make(map[string]float64)
	for _, t := range trades {
		pnls = append(pnls, t.NetPnL)
		dayPnL[t.Date] += t.NetPnL
		row.TotalInvested += t.InvestedAmount
		if t.NetPnL > 0 {
			row.TotalProfit += t.NetPnL
		} else if t.NetPnL < 0 {
			row.TotalLoss += -t.NetPnL
		}
		row.NetPnL += t.NetPnL
	}

	stats := allocate.Expectancy(pnls)
	row.TotalTrades = stats.TotalTrades
	row.Wins = stats.Wins
	row.Losses = stats.Losses
	row.WinRate = stats.WinRate
	row.AvgWin = stats.AvgWin
	row.AvgLoss = stats.AvgLoss
	row.Expectancy = stats.Expectancy
	row.SignalStrength = stats.SignalStrength

	row.TradingDays = len(dayPnL)
	for _, pnl := range dayPnL {
		if pnl > 0 {
			row.ProfitableDays++
		} else if pnl < 0 {
			row.LosingDays++
		}
	}
	return row
}
