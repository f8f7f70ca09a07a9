package config

import "strings"

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9980"
	defaultAppLogPath  = "data/logs/intrabt.log"

	defaultDataSource   = "yahoo"
	defaultDataCacheDir = "data/candles"
	defaultDataRate     = 30

	defaultAIAPIURL  = "https://api.openai.com/v1"
	defaultAIModel   = "gpt-4o-mini"
	defaultAITimeout = 60
	defaultAIRetries = 2

	defaultDailyCapital    = 50000
	defaultCapitalPerTrade = 10000
	defaultMaxStocks       = 5
	defaultStopLossPct     = 2
	defaultTargetPct       = 4
	defaultRiskReward      = 2
	defaultSlippagePct     = 0.1
	defaultTxnCostPct      = 0.1
	defaultBasketLossPct   = 2
	defaultBasketProfitPct = 4
	defaultCapitalCapPct   = 30
	defaultRiskTolerance   = 0.10
	defaultEntryStart      = "09:30"
	defaultForceExit       = "15:15"

	defaultResultsDB      = "data/db/backtests.db"
	defaultReportDir      = "data/reports"
	defaultStrategiesFile = "configs/strategies.yaml"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.AI.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.source", &d.Source, defaultDataSource),
		stringFieldDefault("data.cache_dir", &d.CacheDir, defaultDataCacheDir),
		fieldDefault{
			key:   "data.rate_limit_per_min",
			need:  func() bool { return d.RateLimitPerMin <= 0 },
			apply: func() { d.RateLimitPerMin = defaultDataRate },
		},
	)
}

func (a *AIConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ai.api_url", &a.APIURL, defaultAIAPIURL),
		stringFieldDefault("ai.model", &a.Model, defaultAIModel),
		fieldDefault{
			key:   "ai.timeout_seconds",
			need:  func() bool { return a.TimeoutSeconds <= 0 },
			apply: func() { a.TimeoutSeconds = defaultAITimeout },
		},
		fieldDefault{
			key:   "ai.max_retries",
			need:  func() bool { return a.MaxRetries <= 0 },
			apply: func() { a.MaxRetries = defaultAIRetries },
		},
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("trading.daily_capital", &t.DailyCapital, defaultDailyCapital),
		floatFieldDefault("trading.capital_per_trade", &t.CapitalPerTrade, defaultCapitalPerTrade),
		fieldDefault{
			key:   "trading.max_stocks_per_day",
			need:  func() bool { return t.MaxStocksPerDay <= 0 },
			apply: func() { t.MaxStocksPerDay = defaultMaxStocks },
		},
		floatFieldDefault("trading.stop_loss_percent", &t.StopLossPercent, defaultStopLossPct),
		floatFieldDefault("trading.target_percent", &t.TargetPercent, defaultTargetPct),
		floatFieldDefault("trading.risk_reward_ratio", &t.RiskRewardRatio, defaultRiskReward),
		floatFieldDefault("trading.slippage_percent", &t.SlippagePercent, defaultSlippagePct),
		floatFieldDefault("trading.transaction_cost_percent", &t.TxnCostPercent, defaultTxnCostPct),
		floatFieldDefault("trading.basket_loss_percent", &t.BasketLossPercent, defaultBasketLossPct),
		floatFieldDefault("trading.basket_profit_percent", &t.BasketProfitPercent, defaultBasketProfitPct),
		floatFieldDefault("trading.capital_cap_percent", &t.CapitalCapPercent, defaultCapitalCapPct),
		floatFieldDefault("trading.risk_tolerance", &t.RiskTolerance, defaultRiskTolerance),
		stringFieldDefault("trading.entry_start", &t.EntryStart, defaultEntryStart),
		stringFieldDefault("trading.force_exit", &t.ForceExit, defaultForceExit),
		fieldDefault{
			key:   "trading.intervals",
			need:  func() bool { return len(t.Intervals) == 0 },
			apply: func() { t.Intervals = []string{"5m"} },
		},
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("backtest.results_db", &b.ResultsDB, defaultResultsDB),
		stringFieldDefault("backtest.report_dir", &b.ReportDir, defaultReportDir),
		stringFieldDefault("backtest.strategies_file", &b.StrategiesFile, defaultStrategiesFile),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
