package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"exec-engine-go/clock"
	"exec-engine-go/config"
	"exec-engine-go/gateway"
	"exec-engine-go/identity"
	"exec-engine-go/infrastructure/logger"
	"exec-engine-go/internal/engine"
	"exec-engine-go/internal/portfolio"
	"exec-engine-go/internal/store"
	"exec-engine-go/metrics"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer zlog.Close()

	if cfg.MetricsAddr != "" {
		metrics.StartMetricsServer(cfg.MetricsAddr)
		zlog.Info("metrics server started", zap.String("addr", cfg.MetricsAddr))
	}

	clk := clock.NewLiveClock()
	db := store.New(zlog)
	analyzer := portfolio.NewAnalyzer(zlog)

	eng, err := engine.New(engine.Config{
		TraderID: identity.TraderID(cfg.Trader.ID),
	}, engine.Components{
		Logger:    zlog,
		Database:  db,
		Portfolio: analyzer,
		Clock:     clk,
	})
	if err != nil {
		zlog.Fatal("init engine failed", zap.Error(err))
	}

	client := gateway.NewLiveClient(gateway.LiveConfig{
		Endpoint:  cfg.Gateway.Endpoint,
		SendDepth: cfg.Gateway.SendDepth,
	}, zlog, eng)
	eng.RegisterClient(client)

	if err := client.Connect(); err != nil {
		zlog.Fatal("connect gateway failed", zap.Error(err))
	}

	// 配置热更新：只对日志级别这类安全字段生效
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		w := config.Watcher{Path: *cfgPath}
		_ = w.Start(ctx, func(next config.AppConfig) {
			if next.Logger.Level != "" {
				if err := zlog.SetLevel(next.Logger.Level); err == nil {
					zlog.Info("log level updated", zap.String("level", next.Logger.Level))
				}
			}
		})
	}()

	// systemd 就绪通知与看门狗
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	go watchdogLoop(ctx)

	zlog.Info("execution runner started",
		zap.String("env", cfg.Env),
		zap.String("trader_id", cfg.Trader.ID),
		zap.String("account_id", cfg.Account.ID))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zlog.Info("shutting down")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()

	eng.CheckResiduals()
	if err := client.Disconnect(); err != nil {
		zlog.Error("disconnect gateway failed", zap.Error(err))
	}
	client.Dispose()

	zlog.Info("execution runner stopped",
		zap.Int64("commands", eng.CommandCount()),
		zap.Int64("events", eng.EventCount()))
}

// watchdogLoop 按 systemd 约定的半周期喂狗。
func watchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
