package allocate

// Stats 由历史成交净盈亏推导的期望值指标。
// WinRate 为 0~1 的比例；SignalStrength 为截断到非负的期望值，
// 供报表排序与后续权重参考。
type Stats struct {
	WinRate        float64
	AvgWin         float64
	AvgLoss        float64
	Expectancy     float64
	SignalStrength float64
	TotalTrades    int
	Wins           int
	Losses         int
}

// Expectancy 按净盈亏序列计算期望值。空输入返回全零，不报错。
func Expectancy(netPnLs []float64) Stats {
	if len(netPnLs) == 0 {
		return Stats{}
	}
	var winSum, lossSum float64
	var wins, losses int
	for _, pnl := range netPnLs {
		switch {
		case pnl > 0:
			wins++
			winSum += pnl
		case pnl < 0:
			losses++
			lossSum += pnl
		}
	}
	total := len(netPnLs)
	s := Stats{
		TotalTrades: total,
		Wins:        wins,
		Losses:      losses,
		WinRate:     float64(wins) / float64(total),
	}
	if wins > 0 {
		s.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = -lossSum / float64(losses)
	}
	lossRate := float64(losses) / float64(total)
	s.Expectancy = s.WinRate*s.AvgWin - lossRate*s.AvgLoss
	if s.Expectancy > 0 {
		s.SignalStrength = s.Expectancy
	}
	return s
}
