package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"intrabt/internal/engine"
	"intrabt/internal/market"
)

var ErrRunNotFound = errors.New("run not found")

type runModel struct {
	ID            string         `gorm:"column:id;primaryKey"`
	Status        string         `gorm:"column:status;index"`
	StartDate     string         `gorm:"column:start_date"`
	EndDate       string         `gorm:"column:end_date"`
	TotalTrades   int            `gorm:"column:total_trades"`
	NetPnL        float64        `gorm:"column:net_pnl"`
	WinRate       float64        `gorm:"column:win_rate"`
	Message       string         `gorm:"column:message"`
	ConfigJSON    datatypes.JSON `gorm:"column:config_json;type:TEXT"`
	StatsJSON     datatypes.JSON `gorm:"column:stats_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
	CompletedAt   int64          `gorm:"column:completed_at"`
}

func (runModel) TableName() string { return "backtest_runs" }

type tradeModel struct {
	ID              int64   `gorm:"column:id;primaryKey;autoIncrement"`
	RunID           string  `gorm:"column:run_id;index"`
	Date            string  `gorm:"column:date;index"`
	Symbol          string  `gorm:"column:symbol;index"`
	Strategy        string  `gorm:"column:strategy;index"`
	Interval        string  `gorm:"column:interval"`
	Bias            string  `gorm:"column:bias"`
	EntryTime       string  `gorm:"column:entry_time"`
	EntryPrice      float64 `gorm:"column:entry_price"`
	ExitTime        string  `gorm:"column:exit_time"`
	ExitPrice       float64 `gorm:"column:exit_price"`
	ExitReason      string  `gorm:"column:exit_reason"`
	Quantity        int64   `gorm:"column:quantity"`
	InvestedAmount  float64 `gorm:"column:invested_amount"`
	StopLoss        float64 `gorm:"column:stop_loss"`
	Target          float64 `gorm:"column:target"`
	GrossPnL        float64 `gorm:"column:gross_pnl"`
	TransactionCost float64 `gorm:"column:transaction_cost"`
	NetPnL          float64 `gorm:"column:net_pnl"`
	Outcome         string  `gorm:"column:outcome"`
	Confidence      float64 `gorm:"column:confidence"`
	Reason          string  `gorm:"column:reason"`
	Weight          float64 `gorm:"column:weight"`
}

func (tradeModel) TableName() string { return "backtest_trades" }

// ResultStore 用 Gorm + SQLite 落库回测任务与成交明细。
type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(path string) (*ResultStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("result store 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// CGO_ENABLED=0 构建：走 modernc.org/sqlite 纯 Go 驱动（DSN 的 _pragma 语法即其格式）。
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &tradeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: 留一点并发给 HTTP 读请求。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &ResultStore{db: db}, nil
}

func (s *ResultStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRunModel(run Run) (runModel, error) {
	cfgJSON, err := run.MarshalConfig()
	if err != nil {
		return runModel{}, err
	}
	statsJSON, err := run.MarshalStats()
	if err != nil {
		return runModel{}, err
	}
	m := runModel{
		ID:            run.ID,
		Status:        run.Status,
		StartDate:     run.StartDate,
		EndDate:       run.EndDate,
		TotalTrades:   run.TotalTrades,
		NetPnL:        run.NetPnL,
		WinRate:       run.WinRate,
		Message:       run.Message,
		ConfigJSON:    datatypes.JSON(cfgJSON),
		StatsJSON:     datatypes.JSON(statsJSON),
		CreatedAtUnix: run.CreatedAt.Unix(),
		UpdatedAtUnix: run.UpdatedAt.Unix(),
	}
	if !run.CompletedAt.IsZero() {
		m.CompletedAt = run.CompletedAt.Unix()
	}
	return m, nil
}

func fromRunModel(m runModel) Run {
	run := Run{
		ID:          m.ID,
		Status:      m.Status,
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
		TotalTrades: m.TotalTrades,
		NetPnL:      m.NetPnL,
		WinRate:     m.WinRate,
		Message:     m.Message,
		CreatedAt:   time.Unix(m.CreatedAtUnix, 0),
		UpdatedAt:   time.Unix(m.UpdatedAtUnix, 0),
	}
	if m.CompletedAt > 0 {
		run.CompletedAt = time.Unix(m.CompletedAt, 0)
	}
	if len(m.ConfigJSON) > 0 {
		_ = json.Unmarshal(m.ConfigJSON, &run.Config)
	}
	if len(m.StatsJSON) > 0 {
		_ = json.Unmarshal(m.StatsJSON, &run.Stats)
	}
	return run
}

func (s *ResultStore) CreateRun(ctx context.Context, run Run) error {
	m, err := toRunModel(run)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *ResultStore) UpdateRun(ctx context.Context, run Run) error {
	m, err := toRunModel(run)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&m).Error
}

func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	var m runModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	return fromRunModel(m), nil
}

// ListRuns 按创建时间倒序返回最近的任务。
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []runModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(models))
	for _, m := range models {
		runs = append(runs, fromRunModel(m))
	}
	return runs, nil
}

func (s *ResultStore) SaveTrades(ctx context.Context, runID string, trades []engine.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	models := make([]tradeModel, 0, len(trades))
	for _, t := range trades {
		models = append(models, tradeModel{
			RunID:           runID,
			Date:            t.Date,
			Symbol:          t.Symbol,
			Strategy:        t.Strategy,
			Interval:        t.Interval,
			Bias:            string(t.Bias),
			EntryTime:       t.EntryTime.String(),
			EntryPrice:      t.EntryPrice,
			ExitTime:        t.ExitTime.String(),
			ExitPrice:       t.ExitPrice,
			ExitReason:      string(t.ExitReason),
			Quantity:        t.Quantity,
			InvestedAmount:  t.InvestedAmount,
			StopLoss:        t.StopLoss,
			Target:          t.Target,
			GrossPnL:        t.GrossPnL,
			TransactionCost: t.TransactionCost,
			NetPnL:          t.NetPnL,
			Outcome:         string(t.Outcome),
			Confidence:      t.Confidence,
			Reason:          t.Reason,
			Weight:          t.Weight,
		})
	}
	return s.db.WithContext(ctx).CreateInBatches(models, 200).Error
}

// TradesByRun 按日期、入场时间顺序返回一次任务的全部成交。
func (s *ResultStore) TradesByRun(ctx context.Context, runID string) ([]engine.Trade, error) {
	var models []tradeModel
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("date ASC, entry_time ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	trades := make([]engine.Trade, 0, len(models))
	for _, m := range models {
		trades = append(trades, fromTradeModel(m))
	}
	return trades, nil
}

func fromTradeModel(m tradeModel) engine.Trade {
	entryTime, _ := market.ParseTimeOfDay(m.EntryTime)
	exitTime, _ := market.ParseTimeOfDay(m.ExitTime)
	return engine.Trade{
		Date:            m.Date,
		Symbol:          m.Symbol,
		Bias:            market.Bias(m.Bias),
		EntryTime:       entryTime,
		EntryPrice:      m.EntryPrice,
		ExitTime:        exitTime,
		ExitPrice:       m.ExitPrice,
		ExitReason:      engine.ExitReason(m.ExitReason),
		Quantity:        m.Quantity,
		InvestedAmount:  m.InvestedAmount,
		StopLoss:        m.StopLoss,
		Target:          m.Target,
		GrossPnL:        m.GrossPnL,
		TransactionCost: m.TransactionCost,
		NetPnL:          m.NetPnL,
		Outcome:         engine.Outcome(m.Outcome),
		Strategy:        m.Strategy,
		Interval:        m.Interval,
		Confidence:      m.Confidence,
		Reason:          m.Reason,
		Weight:          m.Weight,
	}
}

// PerformanceByRun 重新聚合一次任务的绩效。
func (s *ResultStore) PerformanceByRun(ctx context.Context, runID string) (Performance, error) {
	trades, err := s.TradesByRun(ctx, runID)
	if err != nil {
		return Performance{}, err
	}
	return Aggregate(trades), nil
}
