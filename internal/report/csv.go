package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"intrabt/internal/backtest"
	"intrabt/internal/engine"
	"intrabt/internal/logger"
)

// CSVSink 把成交明细落成一份平铺 CSV，方便丢进表格软件二次分析。
type CSVSink struct {
	Dir string
}

func NewCSVSink(dir string) (*CSVSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("csv 输出目录不能为空")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CSVSink{Dir: dir}, nil
}

func (s *CSVSink) Write(run backtest.Run, trades []engine.Trade, _ backtest.Performance) error {
	path := filepath.Join(s.Dir, fmt.Sprintf("trades_%s.csv", run.ID))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"date", "strategy", "interval", "symbol", "bias",
		"entry_time", "entry_price", "exit_time", "exit_price", "exit_reason",
		"quantity", "invested_amount", "stop_loss", "target",
		"gross_pnl", "transaction_cost", "net_pnl", "outcome",
		"confidence", "weight", "reason",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			t.Date, t.Strategy, t.Interval, t.Symbol, string(t.Bias),
			t.EntryTime.String(), fmtMoney(t.EntryPrice),
			t.ExitTime.String(), fmtMoney(t.ExitPrice), string(t.ExitReason),
			strconv.FormatInt(t.Quantity, 10), fmtMoney(t.InvestedAmount),
			fmtMoney(t.StopLoss), fmtMoney(t.Target),
			fmtMoney(t.GrossPnL), fmtMoney(t.TransactionCost), fmtMoney(t.NetPnL), string(t.Outcome),
			strconv.FormatFloat(t.Confidence, 'f', 1, 64),
			strconv.FormatFloat(t.Weight, 'f', 4, 64),
			t.Reason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	logger.Infof("[report] 成交明细已写入 %s", path)
	return nil
}

func fmtMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
