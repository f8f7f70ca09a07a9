package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"intrabt/internal/app"
	"intrabt/internal/backtest"
	"intrabt/internal/config"
	"intrabt/internal/logger"
)

func main() {
	var (
		cfgPath    = flag.String("config", "", "配置文件路径（默认 configs/config.yaml，可用 INTRABT_CONFIG 覆盖）")
		dates      = flag.String("dates", "", "逗号分隔的回测日期，如 2025-07-01,2025-07-02；为空则启动 HTTP 服务")
		strategies = flag.String("strategies", "", "逗号分隔的策略 ID，为空取注册表全部")
		intervals  = flag.String("intervals", "", "逗号分隔的 K 线周期，为空取配置默认")
	)
	flag.Parse()

	path := *cfgPath
	if path == "" {
		path = os.Getenv("INTRABT_CONFIG")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，数据源=%s）", cfg.App.Env, cfg.Data.Source)

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}

	// Ctrl-C 只中断剩余日期，已跑完的成交照常落库。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *dates == "" {
		if err := application.Serve(ctx); err != nil {
			log.Fatalf("运行失败: %v", err)
		}
		return
	}

	req := backtest.RunRequest{
		Dates:      splitList(*dates),
		Strategies: splitList(*strategies),
		Intervals:  splitList(*intervals),
	}
	result, err := application.RunOnce(ctx, req)
	if err != nil {
		log.Fatalf("回测失败: %v", err)
	}
	logger.Infof("回测 %s 完成：%d 笔成交，净盈亏 %.2f，胜率 %.1f%%",
		result.Run.ID, result.Run.TotalTrades, result.Run.NetPnL, result.Run.WinRate*100)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
