package backtest

import (
	"encoding/json"
	"time"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// RunConfig 记录本次回测的参数快照，便于重放与对账。
type RunConfig struct {
	Dates           []string `json:"dates"`
	Strategies      []string `json:"strategies"`
	Intervals       []string `json:"intervals"`
	DailyCapital    float64  `json:"daily_capital"`
	CapitalPerTrade float64  `json:"capital_per_trade"`
	MaxStocksPerDay int      `json:"max_stocks_per_day"`
	StopLossPct     float64  `json:"stop_loss_pct"`
	TargetPct       float64  `json:"target_pct"`
	RiskReward      float64  `json:"risk_reward"`
	SlippagePct     float64  `json:"slippage_pct"`
	TxnCostPct      float64  `json:"txn_cost_pct"`
	BasketLossPct   float64  `json:"basket_loss_pct"`
	CapitalCapPct   float64  `json:"capital_cap_pct"`
	EntryStart      string   `json:"entry_start"`
	ForceExit       string   `json:"force_exit"`
	Notes           string   `json:"notes,omitempty"`
}

// RunStats 全局汇总，供接口与报表展示。
type RunStats struct {
	TotalTrades    int       `json:"total_trades"`
	Wins           int       `json:"wins"`
	Losses         int       `json:"losses"`
	WinRate        float64   `json:"win_rate"`
	TotalInvested  float64   `json:"total_invested"`
	NetPnL         float64   `json:"net_pnl"`
	Expectancy     float64   `json:"expectancy"`
	SignalStrength float64   `json:"signal_strength"`
	DaysPlanned    int       `json:"days_planned"`
	DaysCompleted  int       `json:"days_completed"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Run 表示一次回测任务。
type Run struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	TotalTrades int       `json:"total_trades"`
	NetPnL      float64   `json:"net_pnl"`
	WinRate     float64   `json:"win_rate"`
	Message     string    `json:"message"`
	Config      RunConfig `json:"config"`
	Stats       RunStats  `json:"stats"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// MarshalConfig 返回 config JSON。
func (r Run) MarshalConfig() ([]byte, error) {
	return json.Marshal(r.Config)
}

// MarshalStats 返回 stats JSON。
func (r Run) MarshalStats() ([]byte, error) {
	return json.Marshal(r.Stats)
}
