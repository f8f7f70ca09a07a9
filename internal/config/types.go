package config

import (
	"strings"

	"intrabt/internal/market"
)

// Config 是 intrabt 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Data     DataConfig     `toml:"data"`
	AI       AIConfig       `toml:"ai"`
	News     NewsConfig     `toml:"news"`
	Trading  TradingConfig  `toml:"trading"`
	Backtest BacktestConfig `toml:"backtest"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// DataConfig 行情数据源与本地缓存。
type DataConfig struct {
	Source          string `toml:"source"`        // "yahoo" | "binance"
	SymbolSuffix    string `toml:"symbol_suffix"` // yahoo 的交易所后缀，如 ".NS"
	CacheDir        string `toml:"cache_dir"`
	RateLimitPerMin int    `toml:"rate_limit_per_min"`
	Benchmark       string `toml:"benchmark"` // 指标快照兜底用的基准票
}

// AIConfig 选股模型接入参数。
type AIConfig struct {
	APIURL         string  `toml:"api_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxRetries     int     `toml:"max_retries"`
}

type NewsConfig struct {
	Enabled       bool   `toml:"enabled"`
	FinnhubAPIKey string `toml:"finnhub_api_key"`
}

// TradingConfig 执行与风控规则。百分比字段为百分数（2 即 2%）。
type TradingConfig struct {
	DailyCapital        float64  `toml:"daily_capital"`
	CapitalPerTrade     float64  `toml:"capital_per_trade"`
	MaxStocksPerDay     int      `toml:"max_stocks_per_day"`
	StopLossPercent     float64  `toml:"stop_loss_percent"`
	TargetPercent       float64  `toml:"target_percent"`
	RiskRewardRatio     float64  `toml:"risk_reward_ratio"`
	SlippagePercent     float64  `toml:"slippage_percent"`
	TxnCostPercent      float64  `toml:"transaction_cost_percent"`
	BasketLossPercent   float64  `toml:"basket_loss_percent"`
	BasketProfitPercent float64  `toml:"basket_profit_percent"`
	CapitalCapPercent   float64  `toml:"capital_cap_percent"`
	RiskTolerance       float64  `toml:"risk_tolerance"`
	EntryStart          string   `toml:"entry_start"` // "HH:MM"
	ForceExit           string   `toml:"force_exit"`
	Intervals           []string `toml:"intervals"`

	// validate 解析后的时间值，解析一次后全程用值比较。
	entryStart market.TimeOfDay
	forceExit  market.TimeOfDay
}

// EntryStartTime 返回解析后的入场起始时间，仅在 Load 成功后有效。
func (t TradingConfig) EntryStartTime() market.TimeOfDay { return t.entryStart }

// ForceExitTime 返回解析后的强制离场时间，仅在 Load 成功后有效。
func (t TradingConfig) ForceExitTime() market.TimeOfDay { return t.forceExit }

// DefaultInterval 取 intervals 的第一个作为默认周期。
func (t TradingConfig) DefaultInterval() string {
	if len(t.Intervals) > 0 {
		return t.Intervals[0]
	}
	return "5m"
}

type BacktestConfig struct {
	ResultsDB      string `toml:"results_db"`
	ReportDir      string `toml:"report_dir"`
	StrategiesFile string `toml:"strategies_file"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
