package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
ai:
  model: mistral-small-latest
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "config.yaml", minimalConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, "yahoo", cfg.Data.Source)
	assert.InDelta(t, 50000, cfg.Trading.DailyCapital, 1e-9)
	assert.InDelta(t, 10000, cfg.Trading.CapitalPerTrade, 1e-9)
	assert.Equal(t, 5, cfg.Trading.MaxStocksPerDay)
	assert.InDelta(t, 2, cfg.Trading.StopLossPercent, 1e-9)
	assert.InDelta(t, 4, cfg.Trading.TargetPercent, 1e-9)
	assert.InDelta(t, 0.10, cfg.Trading.RiskTolerance, 1e-9)
	assert.Equal(t, "09:30", cfg.Trading.EntryStart)
	assert.Equal(t, "15:15", cfg.Trading.ForceExit)
	assert.Equal(t, "5m", cfg.Trading.DefaultInterval())
}

func TestLoadParsesSessionTimes(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "config.yaml", `
ai:
  model: mistral-small-latest
trading:
  entry_start: "10:00"
  force_exit: "14:30"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10:00:00", cfg.Trading.EntryStartTime().String())
	assert.Equal(t, "14:30:00", cfg.Trading.ForceExitTime().String())
	assert.True(t, cfg.Trading.EntryStartTime().Before(cfg.Trading.ForceExitTime()))
}

func TestLoadKeepsExplicitZeroValues(t *testing.T) {
	// 显式设置的 0 不应被默认值覆盖
	path := writeConfigFile(t, t.TempDir(), "config.yaml", `
ai:
  model: mistral-small-latest
trading:
  slippage_percent: 0
  transaction_cost_percent: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Trading.SlippagePercent)
	assert.Zero(t, cfg.Trading.TxnCostPercent)
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "base.yaml", `
ai:
  model: mistral-small-latest
trading:
  daily_capital: 80000
  capital_per_trade: 9000
`)
	main := writeConfigFile(t, dir, "config.yaml", `
include:
  - base.yaml
trading:
  capital_per_trade: 16000
`)
	cfg, err := Load(main)
	require.NoError(t, err)
	assert.InDelta(t, 80000, cfg.Trading.DailyCapital, 1e-9)
	// 主文件覆盖片段
	assert.InDelta(t, 16000, cfg.Trading.CapitalPerTrade, 1e-9)
}

func TestLoadRejectsNestedInclude(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "base.yaml", `
include:
  - deeper.yaml
ai:
  model: m
`)
	main := writeConfigFile(t, dir, "config.yaml", `
include:
  - base.yaml
`)
	_, err := Load(main)
	assert.ErrorContains(t, err, "nested include")
}

func TestLoadMissingInclude(t *testing.T) {
	dir := t.TempDir()
	main := writeConfigFile(t, dir, "config.yaml", `
include:
  - nope.yaml
ai:
  model: m
`)
	_, err := Load(main)
	assert.Error(t, err)
}

func TestLoadValidationFailures(t *testing.T) {
	cases := map[string]string{
		"bad source": `
data:
  source: kraken
ai:
  model: m
`,
		"empty model": `
ai:
  model: ""
`,
		"temperature out of range": `
ai:
  model: m
  temperature: 3
`,
		"exit before entry": `
ai:
  model: m
trading:
  entry_start: "15:15"
  force_exit: "09:30"
`,
		"bad time": `
ai:
  model: m
trading:
  entry_start: "25:00"
`,
		"negative capital": `
ai:
  model: m
trading:
  daily_capital: -1
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfigFile(t, t.TempDir(), "config.yaml", content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}
