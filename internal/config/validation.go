package config

import (
	"fmt"
	"strings"

	"intrabt/internal/market"
)

// validate 对配置进行启动期校验，时间字段在这里解析成值类型。
func validate(c *Config) error {
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.AI.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	return nil
}

func (d *DataConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(d.Source)) {
	case "yahoo", "binance":
	default:
		return fmt.Errorf("data.source must be yahoo or binance, got %q", d.Source)
	}
	return nil
}

func (a *AIConfig) validate() error {
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("ai.model cannot be empty")
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be in [0, 2]")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if t.DailyCapital <= 0 {
		return fmt.Errorf("trading.daily_capital must be > 0")
	}
	if t.CapitalPerTrade <= 0 {
		return fmt.Errorf("trading.capital_per_trade must be > 0")
	}
	if t.StopLossPercent <= 0 || t.TargetPercent <= 0 {
		return fmt.Errorf("trading.stop_loss_percent and target_percent must be > 0")
	}
	if t.RiskRewardRatio <= 0 {
		return fmt.Errorf("trading.risk_reward_ratio must be > 0")
	}
	if t.SlippagePercent < 0 || t.TxnCostPercent < 0 {
		return fmt.Errorf("trading slippage/transaction cost cannot be negative")
	}
	if t.BasketLossPercent <= 0 || t.CapitalCapPercent <= 0 {
		return fmt.Errorf("trading.basket_loss_percent and capital_cap_percent must be > 0")
	}

	entry, err := market.ParseTimeOfDay(t.EntryStart)
	if err != nil {
		return fmt.Errorf("trading.entry_start: %w", err)
	}
	exit, err := market.ParseTimeOfDay(t.ForceExit)
	if err != nil {
		return fmt.Errorf("trading.force_exit: %w", err)
	}
	if exit <= entry {
		return fmt.Errorf("trading.force_exit must be after entry_start")
	}
	t.entryStart = entry
	t.forceExit = exit
	return nil
}
