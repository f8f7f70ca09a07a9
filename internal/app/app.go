package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"intrabt/internal/backtest"
	"intrabt/internal/config"
	"intrabt/internal/feed"
	"intrabt/internal/logger"
)

// App 负责应用级编排：加载配置→初始化依赖→跑回测或常驻服务。
type App struct {
	cfg     *config.Config
	runner  *backtest.Runner
	httpSrv *backtest.HTTPServer
	cache   *feed.Cache
	store   *backtest.ResultStore
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(cfg)
}

// Serve 启动 HTTP 服务，阻塞直到 ctx 取消。
func (a *App) Serve(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	a.httpSrv.SetContext(ctx)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// RunOnce 单次回测（CLI 模式），跑完即退出。
func (a *App) RunOnce(ctx context.Context, req backtest.RunRequest) (backtest.RunResult, error) {
	if a == nil || a.cfg == nil {
		return backtest.RunResult{}, fmt.Errorf("app not initialized")
	}
	defer a.Close()
	return a.runner.Execute(ctx, req)
}

// Close 收尾释放底层存储句柄。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warnf("关闭行情缓存失败: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("关闭结果库失败: %v", err)
		}
	}
}
