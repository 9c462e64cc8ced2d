// Package main is the entry point for the target application.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chaos-target/internal/config"
	"chaos-target/internal/events"
	"chaos-target/internal/metrics"
	"chaos-target/internal/observability"
	"chaos-target/internal/state"
	"chaos-target/internal/supervisor"
	"chaos-target/internal/target"
)

var (
	version = "dev"
)

func main() {
	// フラグ定義
	var (
		configFile     = flag.String("config", "", "設定ファイルパス (YAML/JSON)")
		supervised     = flag.Bool("supervised", false, "Supervisor配下で子プロセスとして起動")
		supervisorAddr = flag.String("supervisor-addr", ":8090", "Supervisorステータスエンドポイントのアドレス")
		recoveryDelay  = flag.Duration("recovery-delay", 2*time.Second, "クラッシュ後の再起動待機時間")
		showVersion    = flag.Bool("version", false, "バージョンを表示")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `target-app - Fault-Aware Demo Service

Usage:
  target-app [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # 直接起動
  target-app

  # 設定ファイルから起動
  target-app --config chaos.yaml

  # Supervisor配下で起動（クラッシュ時に自動再起動）
  target-app --supervised
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("target-app version %s\n", version)
		return
	}

	var err error
	if *supervised {
		err = runSupervised(*configFile, *supervisorAddr, *recoveryDelay)
	} else {
		err = runTarget(*configFile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "target-app: %v\n", err)
		os.Exit(1)
	}
}

func buildConfig(configFile string) (config.Config, error) {
	cfg := config.Default()

	if configFile != "" {
		fileConfig, err := config.LoadFile(configFile)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		cfg, err = fileConfig.Apply(cfg)
		if err != nil {
			return cfg, fmt.Errorf("apply config file: %w", err)
		}
	}

	cfg, err := config.FromEnv(cfg)
	if err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func newStore(cfg config.Config, logger *zap.Logger) state.Store {
	if cfg.RedisAddr != "" {
		logger.Info("using redis state store", zap.String("addr", cfg.RedisAddr))
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return state.NewRedisStore(client, "")
	}
	logger.Info("using file state store", zap.String("path", cfg.StateFile))
	return state.NewFileStore(cfg.StateFile)
}

// runTarget はTargetサーバー本体を起動する
func runTarget(configFile string) error {
	cfg, err := buildConfig(configFile)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.EnableTracing {
		shutdown, err := observability.InitTracer(target.ServiceName)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	store := newStore(cfg, logger)
	collector := metrics.NewCollector("target")

	server := target.NewServer(target.Config{
		Addr:          cfg.ListenAddr,
		EnableTracing: cfg.EnableTracing,
	}, store, logger)
	server.SetCollector(collector)

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	return server.Start(ctx)
}

// runSupervised は自分自身を子プロセスとして起動し、クラッシュ時に再起動する
func runSupervised(configFile, supervisorAddr string, recoveryDelay time.Duration) error {
	cfg, err := buildConfig(configFile)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	var childArgs []string
	if configFile != "" {
		childArgs = append(childArgs, "--config", configFile)
	}

	runner := supervisor.NewCommandRunner(self, childArgs, os.Environ())
	manager := supervisor.New(runner, supervisor.Config{
		RecoveryDelay: recoveryDelay,
	}, logger)

	bus := events.NewBus()
	defer bus.Close()
	manager.SetEventBus(bus)
	manager.SetCollector(metrics.NewCollector("supervisor"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	manager.Start(ctx)
	defer manager.Stop()

	// 修復エージェント向けのステータスエンドポイント
	mux := http.NewServeMux()
	mux.Handle("/supervisor/status", manager.StatusHandler())
	mux.Handle("/supervisor/restart", manager.RestartHandler())

	statusServer := &http.Server{
		Addr:    supervisorAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = statusServer.Shutdown(shutdownCtx)
	}()

	logger.Info("supervisor status server starting", zap.String("addr", supervisorAddr))
	if err := statusServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
