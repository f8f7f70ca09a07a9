package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"intrabt/internal/backtest"
	"intrabt/internal/engine"
	"intrabt/internal/logger"
)

const (
	chartWidthPx  = 1200
	chartHeightPx = 420
)

// HTMLSink 用 go-echarts 生成一页式回测报告：
// 逐日累计盈亏曲线 + 各策略绩效对比。
type HTMLSink struct {
	Dir string
}

func NewHTMLSink(dir string) (*HTMLSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("html 输出目录不能为空")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &HTMLSink{Dir: dir}, nil
}

func (s *HTMLSink) Write(run backtest.Run, trades []engine.Trade, perf backtest.Performance) error {
	if len(trades) == 0 {
		logger.Infof("[report] 回测 %s 零成交，跳过 HTML 报告", run.ID)
		return nil
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = fmt.Sprintf("Backtest %s (%s ~ %s)", run.ID, run.StartDate, run.EndDate)
	page.AddCharts(
		buildEquityChart(run, trades),
		buildStrategyChart(perf),
	)

	path := filepath.Join(s.Dir, fmt.Sprintf("report_%s.html", run.ID))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return err
	}
	logger.Infof("[report] HTML 报告已写入 %s", path)
	return nil
}

func buildEquityChart(run backtest.Run, trades []engine.Trade) *charts.Line {
	dayPnL := make(map[string]float64)
	for _, t := range trades {
		dayPnL[t.Date] += t.NetPnL
	}
	dates := make([]string, 0, len(dayPnL))
	for d := range dayPnL {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	cumulative := make([]opts.LineData, 0, len(dates))
	sum := 0.0
	for _, d := range dates {
		sum += dayPnL[d]
		cumulative = append(cumulative, opts.LineData{Value: sum})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", chartHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Cumulative Net P&L",
			Subtitle: fmt.Sprintf("%d trades, win rate %.1f%%", run.TotalTrades, run.WinRate*100),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetXAxis(dates)
	line.AddSeries("Net P&L", cumulative,
		charts.WithLineStyleOpts(opts.LineStyle{Width: 2}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.15)}),
	)
	return line
}

func buildStrategyChart(perf backtest.Performance) *charts.Bar {
	names := make([]string, 0, len(perf.Strategies))
	netPnL := make([]opts.BarData, 0, len(perf.Strategies))
	strength := make([]opts.BarData, 0, len(perf.Strategies))
	for _, row := range perf.Strategies {
		names = append(names, row.Strategy)
		netPnL = append(netPnL, opts.BarData{Value: row.NetPnL})
		strength = append(strength, opts.BarData{Value: row.SignalStrength})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", chartHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Strategy Comparison",
			Subtitle: "sorted by signal strength",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names)
	bar.AddSeries("Net P&L", netPnL)
	bar.AddSeries("Signal Strength", strength)
	return bar
}
