package app

import (
	"fmt"
	"strings"
	"time"

	"intrabt/internal/allocate"
	"intrabt/internal/backtest"
	"intrabt/internal/config"
	"intrabt/internal/engine"
	"intrabt/internal/feed"
	"intrabt/internal/news"
	"intrabt/internal/report"
	"intrabt/internal/strategy"
	"intrabt/internal/suggest"
)

// AppBuilder 把配置翻译成可运行的依赖图。
// 各 build 函数可被测试替换。
type AppBuilder struct {
	cfg *config.Config

	sourceFn   func(*config.Config) (feed.Source, error)
	cacheFn    func(*config.Config) (*feed.Cache, error)
	registryFn func(*config.Config) (*strategy.Registry, error)
	factoryFn  func(*config.Config) (suggest.Factory, error)
	storeFn    func(*config.Config) (*backtest.ResultStore, error)
	sinksFn    func(*config.Config) ([]backtest.Sink, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		sourceFn:   buildCandleSource,
		cacheFn:    buildCandleCache,
		registryFn: buildStrategyRegistry,
		factoryFn:  buildSuggestFactory,
		storeFn:    buildResultStore,
		sinksFn:    buildSinks,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	src, err := b.sourceFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化行情源失败: %w", err)
	}
	cache, err := b.cacheFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化行情缓存失败: %w", err)
	}
	feedSvc, err := feed.NewService(feed.ServiceConfig{
		Source:          src,
		Cache:           cache,
		RateLimitPerMin: cfg.Data.RateLimitPerMin,
	})
	if err != nil {
		return nil, err
	}

	registry, err := b.registryFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("加载策略注册表失败: %w", err)
	}
	factory, err := b.factoryFn(cfg)
	if err != nil {
		return nil, err
	}

	allocator, err := allocate.New(allocate.Config{
		TotalCapital:        cfg.Trading.DailyCapital,
		BasketLossPercent:   cfg.Trading.BasketLossPercent,
		BasketProfitPercent: cfg.Trading.BasketProfitPercent,
		RiskRewardRatio:     cfg.Trading.RiskRewardRatio,
		StopLossPercent:     cfg.Trading.StopLossPercent,
		CapitalCapPercent:   cfg.Trading.CapitalCapPercent,
		RiskTolerance:       cfg.Trading.RiskTolerance,
	})
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(engine.Config{
		CapitalPerTrade:        cfg.Trading.CapitalPerTrade,
		StopLossPercent:        cfg.Trading.StopLossPercent,
		TargetPercent:          cfg.Trading.TargetPercent,
		SlippagePercent:        cfg.Trading.SlippagePercent,
		TransactionCostPercent: cfg.Trading.TxnCostPercent,
		EntryStart:             cfg.Trading.EntryStartTime(),
		ForceExit:              cfg.Trading.ForceExitTime(),
	})
	if err != nil {
		return nil, err
	}

	store, err := b.storeFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化结果库失败: %w", err)
	}
	sinks, err := b.sinksFn(cfg)
	if err != nil {
		return nil, err
	}

	var newsClient *news.Client
	if cfg.News.Enabled && strings.TrimSpace(cfg.News.FinnhubAPIKey) != "" {
		newsClient = news.NewClient(cfg.News.FinnhubAPIKey)
	}

	runner, err := backtest.NewRunner(backtest.RunnerConfig{
		Registry:        registry,
		Factory:         factory,
		Feed:            feedSvc,
		Allocator:       allocator,
		Engine:          eng,
		Store:           store,
		News:            newsClient,
		Sinks:           sinks,
		BenchmarkSymbol: cfg.Data.Benchmark,
		MaxStocksPerDay: cfg.Trading.MaxStocksPerDay,
		DefaultInterval: cfg.Trading.DefaultInterval(),
		Snapshot:        snapshotConfig(cfg),
	})
	if err != nil {
		return nil, err
	}

	httpSrv, err := backtest.NewHTTPServer(backtest.HTTPConfig{
		Addr:     cfg.App.HTTPAddr,
		Runner:   runner,
		Results:  store,
		Registry: registry,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		runner:  runner,
		httpSrv: httpSrv,
		cache:   cache,
		store:   store,
	}, nil
}

func buildCandleSource(cfg *config.Config) (feed.Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Data.Source)) {
	case "yahoo":
		return feed.NewYahooSource("", cfg.Data.SymbolSuffix), nil
	case "binance":
		return feed.NewBinanceSource(""), nil
	default:
		return nil, fmt.Errorf("未知行情源: %s", cfg.Data.Source)
	}
}

func buildCandleCache(cfg *config.Config) (*feed.Cache, error) {
	return feed.NewCache(cfg.Data.CacheDir)
}

func buildStrategyRegistry(cfg *config.Config) (*strategy.Registry, error) {
	return strategy.NewRegistry(cfg.Backtest.StrategiesFile)
}

func buildSuggestFactory(cfg *config.Config) (suggest.Factory, error) {
	client := &suggest.ChatClient{
		BaseURL:     cfg.AI.APIURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		MaxRetries:  cfg.AI.MaxRetries,
	}
	return &suggest.EngineFactory{Client: client, MaxCount: cfg.Trading.MaxStocksPerDay}, nil
}

func buildResultStore(cfg *config.Config) (*backtest.ResultStore, error) {
	return backtest.NewResultStore(cfg.Backtest.ResultsDB)
}

func buildSinks(cfg *config.Config) ([]backtest.Sink, error) {
	csvSink, err := report.NewCSVSink(cfg.Backtest.ReportDir)
	if err != nil {
		return nil, err
	}
	htmlSink, err := report.NewHTMLSink(cfg.Backtest.ReportDir)
	if err != nil {
		return nil, err
	}
	return []backtest.Sink{csvSink, htmlSink}, nil
}

func snapshotConfig(cfg *config.Config) backtest.RunConfig {
	return backtest.RunConfig{
		DailyCapital:    cfg.Trading.DailyCapital,
		CapitalPerTrade: cfg.Trading.CapitalPerTrade,
		MaxStocksPerDay: cfg.Trading.MaxStocksPerDay,
		StopLossPct:     cfg.Trading.StopLossPercent,
		TargetPct:       cfg.Trading.TargetPercent,
		RiskReward:      cfg.Trading.RiskRewardRatio,
		SlippagePct:     cfg.Trading.SlippagePercent,
		TxnCostPct:      cfg.Trading.TxnCostPercent,
		BasketLossPct:   cfg.Trading.BasketLossPercent,
		CapitalCapPct:   cfg.Trading.CapitalCapPercent,
		EntryStart:      cfg.Trading.EntryStart,
		ForceExit:       cfg.Trading.ForceExit,
	}
}
