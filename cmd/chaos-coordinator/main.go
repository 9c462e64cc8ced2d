// Package main is the entry point for the chaos coordinator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chaos-target/internal/api"
	"chaos-target/internal/config"
	"chaos-target/internal/coordinator"
	"chaos-target/internal/events"
	"chaos-target/internal/metrics"
	"chaos-target/internal/scenario"
	"chaos-target/internal/state"
)

var (
	version = "dev"
)

func main() {
	// フラグ定義
	var (
		configFile  = flag.String("config", "", "設定ファイルパス (YAML/JSON)")
		presetName  = flag.String("preset", "", "シナリオプリセット名 (default, aggressive, latency, gentle)")
		listPresets = flag.Bool("list-presets", false, "利用可能なプリセットを表示")
		showVersion = flag.Bool("version", false, "バージョンを表示")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `chaos-coordinator - Fault Injection Coordinator

Usage:
  chaos-coordinator [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # デフォルト設定で起動
  chaos-coordinator

  # 設定ファイルから起動
  chaos-coordinator --config chaos.yaml

  # プリセットを指定して起動
  chaos-coordinator --preset latency

  # プリセット一覧を表示
  chaos-coordinator --list-presets
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("chaos-coordinator version %s\n", version)
		return
	}

	if *listPresets {
		printPresets()
		return
	}

	if err := run(*configFile, *presetName); err != nil {
		fmt.Fprintf(os.Stderr, "chaos-coordinator: %v\n", err)
		os.Exit(1)
	}
}

// buildConfig は設定を構築する。優先順位はデフォルト < 設定ファイル < 環境変数 < フラグ
func buildConfig(configFile, presetName string) (config.Config, error) {
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

	if presetName != "" {
		cfg.Preset = presetName
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

func run(configFile, presetName string) error {
	cfg, err := buildConfig(configFile, presetName)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	table, err := cfg.Table()
	if err != nil {
		return fmt.Errorf("build scenario table: %w", err)
	}

	store := newStore(cfg, logger)
	bus := events.NewBus()
	defer bus.Close()
	collector := metrics.NewCollector("chaos")

	coord := coordinator.New(store, table, coordinator.Config{
		Interval:       cfg.Interval,
		RecoveryWindow: cfg.RecoveryWindow,
		StartupGrace:   cfg.StartupGrace,
		Enabled:        cfg.Enabled,
		InjectedBy:     "coordinator",
	}, logger)
	coord.SetEventBus(bus)
	coord.SetCollector(collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 設定ファイルのホットリロード
	if configFile != "" {
		watcher, err := config.NewWatcher(configFile, cfg, logger)
		if err != nil {
			return fmt.Errorf("watch config file: %w", err)
		}
		watcher.OnReload(func(next config.Config) {
			if table, err := next.Table(); err == nil {
				coord.SetTable(table)
			} else {
				logger.Warn("reloaded config has invalid scenario table", zap.Error(err))
			}
			if next.Enabled {
				coord.Enable()
			} else {
				coord.Disable()
			}
		})
		watcher.Start()
		defer watcher.Stop()
	}

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	coord.Start(ctx)
	defer coord.Stop()

	server := api.NewServer(cfg.AdminAddr, coord, store, logger)
	server.SetEventBus(bus)
	server.SetCollector(collector)

	return server.Start(ctx)
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なシナリオプリセット:")
	fmt.Println()

	for _, name := range scenario.ListPresets() {
		table, _ := scenario.GetPreset(name)
		fmt.Printf("  %-12s", name)
		for _, s := range table.Scenarios() {
			fmt.Printf(" %s=%.2f", s.Name, s.Weight)
		}
		fmt.Println()
	}

	fmt.Println()
	fmt.Println("使用例: chaos-coordinator --preset latency")
}
