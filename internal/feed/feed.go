package feed

import (
	"context"
	"fmt"

	"intrabt/internal/logger"
	"intrabt/internal/market"

	"golang.org/x/time/rate"
)

// Source 统一不同行情提供方的日内 K 线拉取行为。
// 返回的 K 线无需有序，Service 构造 Series 时统一校验。
type Source interface {
	Fetch(ctx context.Context, symbol, date, interval string) ([]market.Candle, error)
	Name() string
}

// ServiceConfig 配置候选见 NewService。
type ServiceConfig struct {
	Source          Source
	Cache           *Cache // 可选；nil 表示不缓存
	RateLimitPerMin int    // 对外部 API 的调用频率限制
}

// Service 在 Source 之上叠加缓存与限流。
// 缓存对象由构造方注入，生命周期跟随一次回测，不做进程级单例。
type Service struct {
	src     Source
	cache   *Cache
	limiter *rate.Limiter
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("candle source 不能为空")
	}
	perSec := rate.Limit(float64(cfg.RateLimitPerMin) / 60.0)
	if cfg.RateLimitPerMin <= 0 {
		perSec = 2
	}
	return &Service{
		src:     cfg.Source,
		cache:   cfg.Cache,
		limiter: rate.NewLimiter(perSec, 1),
	}, nil
}

// Intraday 返回 symbol 在 date 当日的 K 线序列。
// 数据源失败或数据不可用时返回空序列而非错误：调用方按“当日该票跳过”处理。
func (s *Service) Intraday(ctx context.Context, symbol, date, interval string) (market.Series, error) {
	if s.cache != nil {
		series, ok, err := s.cache.Get(ctx, symbol, date, interval)
		if err != nil {
			return market.Series{}, err
		}
		if ok {
			return series, nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return market.Series{}, err
	}
	candles, err := s.src.Fetch(ctx, symbol, date, interval)
	if err != nil {
		logger.Warnf("[feed] %s 拉取 %s %s 失败: %v", s.src.Name(), symbol, date, err)
		return market.Series{Symbol: symbol, Date: date, Interval: interval}, nil
	}
	series, err := market.NewSeries(symbol, date, interval, candles)
	if err != nil {
		logger.Warnf("[feed] %s 返回的 %s %s 数据无效: %v", s.src.Name(), symbol, date, err)
		series = market.Series{Symbol: symbol, Date: date, Interval: interval}
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, series); err != nil {
			logger.Warnf("[feed] 写缓存失败 %s %s: %v", symbol, date, err)
		}
	}
	return series, nil
}
