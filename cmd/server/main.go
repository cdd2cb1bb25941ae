// Package main 是 HTTP 服务的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"ideasystemx-go/internal/app"
	"ideasystemx-go/internal/config"
	"ideasystemx-go/pkg/log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 组装数据库、向量索引与服务
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("应用初始化失败: %v", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Errorf("释放资源失败: %v", err)
		}
	}()

	// 4. 启动到期提醒轮询
	application.StartWatcher(ctx)

	// 5. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: application.Router(),
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("HTTP 服务监听失败: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("接收到停机信号，正在关闭服务...")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
		return
	}
	log.Info("服务已优雅关闭")
}
