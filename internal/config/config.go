package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"chaos-target/internal/scenario"
)

// Config は全コンポーネント共通の設定
type Config struct {
	// Coordinator
	Interval       time.Duration // 注入サイクルの間隔
	RecoveryWindow time.Duration // 障害を維持する時間
	StartupGrace   time.Duration // 初回注入までの猶予
	Enabled        bool          // キルスイッチ
	Preset         string        // シナリオテーブルのプリセット名
	Weights        map[string]float64

	// 共有状態
	StateFile string // 状態ファイルのパス
	RedisAddr string // 空でなければRedisバックエンドを使用

	// サーバー
	ListenAddr    string // Targetのリッスンアドレス
	AdminAddr     string // Coordinator管理APIのアドレス
	EnableTracing bool

	LogLevel string
}

// Default はデフォルト設定を返す
func Default() Config {
	return Config{
		Interval:       180 * time.Second,
		RecoveryWindow: 30 * time.Second,
		StartupGrace:   60 * time.Second,
		Enabled:        true,
		Preset:         "default",
		StateFile:      "/tmp/failure_state.json",
		ListenAddr:     ":8000",
		AdminAddr:      ":8080",
		LogLevel:       "info",
	}
}

// 環境変数キー
const (
	EnvInterval       = "CHAOS_INTERVAL"
	EnvEnabled        = "CHAOS_ENABLED"
	EnvStateFile      = "FAILURE_STATE_FILE"
	EnvRecoveryWindow = "RECOVERY_WINDOW"
	EnvStartupGrace   = "STARTUP_GRACE"
	EnvPreset         = "CHAOS_PRESET"
	EnvRedisAddr      = "REDIS_ADDR"
	EnvListenAddr     = "LISTEN_ADDR"
	EnvAdminAddr      = "ADMIN_ADDR"
	EnvEnableTracing  = "ENABLE_TRACING"
	EnvLogLevel       = "LOG_LEVEL"
)

// FromEnv は環境変数でConfigを上書きする。
// 時間系のキーは秒数（例: "180"）またはGoのduration表記（例: "3m"）を受け付ける
func FromEnv(c Config) (Config, error) {
	var err error

	if c.Interval, err = envDuration(EnvInterval, c.Interval); err != nil {
		return c, err
	}
	if c.RecoveryWindow, err = envDuration(EnvRecoveryWindow, c.RecoveryWindow); err != nil {
		return c, err
	}
	if c.StartupGrace, err = envDuration(EnvStartupGrace, c.StartupGrace); err != nil {
		return c, err
	}
	if c.Enabled, err = envBool(EnvEnabled, c.Enabled); err != nil {
		return c, err
	}
	if c.EnableTracing, err = envBool(EnvEnableTracing, c.EnableTracing); err != nil {
		return c, err
	}

	c.StateFile = envString(EnvStateFile, c.StateFile)
	c.Preset = envString(EnvPreset, c.Preset)
	c.RedisAddr = envString(EnvRedisAddr, c.RedisAddr)
	c.ListenAddr = envString(EnvListenAddr, c.ListenAddr)
	c.AdminAddr = envString(EnvAdminAddr, c.AdminAddr)
	c.LogLevel = envString(EnvLogLevel, c.LogLevel)

	return c, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %q", key, v)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return parseSeconds(key, v)
}

// parseSeconds は秒数またはduration表記をパースする
func parseSeconds(key, v string) (time.Duration, error) {
	if sec, err := strconv.Atoi(v); err == nil {
		if sec < 0 {
			return 0, fmt.Errorf("invalid %s: must be non-negative, got %d", key, sec)
		}
		return time.Duration(sec) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must be non-negative, got %v", key, d)
	}
	return d, nil
}

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Chaos struct {
		Interval       string             `yaml:"interval" json:"interval"`
		RecoveryWindow string             `yaml:"recovery_window" json:"recovery_window"`
		StartupGrace   string             `yaml:"startup_grace" json:"startup_grace"`
		Enabled        *bool              `yaml:"enabled" json:"enabled"`
		Preset         string             `yaml:"preset" json:"preset"`
		Weights        map[string]float64 `yaml:"weights" json:"weights"`
	} `yaml:"chaos" json:"chaos"`

	State struct {
		File      string `yaml:"file" json:"file"`
		RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
	} `yaml:"state" json:"state"`

	Server struct {
		ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
		AdminAddr  string `yaml:"admin_addr" json:"admin_addr"`
		Tracing    *bool  `yaml:"tracing" json:"tracing"`
	} `yaml:"server" json:"server"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &fc, nil
}

// Apply はFileConfigの設定でConfigを上書きする
func (f *FileConfig) Apply(c Config) (Config, error) {
	var err error

	if f.Chaos.Interval != "" {
		if c.Interval, err = parseSeconds("chaos.interval", f.Chaos.Interval); err != nil {
			return c, err
		}
	}
	if f.Chaos.RecoveryWindow != "" {
		if c.RecoveryWindow, err = parseSeconds("chaos.recovery_window", f.Chaos.RecoveryWindow); err != nil {
			return c, err
		}
	}
	if f.Chaos.StartupGrace != "" {
		if c.StartupGrace, err = parseSeconds("chaos.startup_grace", f.Chaos.StartupGrace); err != nil {
			return c, err
		}
	}
	if f.Chaos.Enabled != nil {
		c.Enabled = *f.Chaos.Enabled
	}
	if f.Chaos.Preset != "" {
		c.Preset = f.Chaos.Preset
	}
	if len(f.Chaos.Weights) > 0 {
		c.Weights = f.Chaos.Weights
	}

	if f.State.File != "" {
		c.StateFile = f.State.File
	}
	if f.State.RedisAddr != "" {
		c.RedisAddr = f.State.RedisAddr
	}

	if f.Server.ListenAddr != "" {
		c.ListenAddr = f.Server.ListenAddr
	}
	if f.Server.AdminAddr != "" {
		c.AdminAddr = f.Server.AdminAddr
	}
	if f.Server.Tracing != nil {
		c.EnableTracing = *f.Server.Tracing
	}

	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}

	return c, nil
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.RecoveryWindow <= 0 {
		return fmt.Errorf("recovery_window must be positive")
	}
	if c.StartupGrace < 0 {
		return fmt.Errorf("startup_grace must be non-negative")
	}
	if c.StateFile == "" && c.RedisAddr == "" {
		return fmt.Errorf("state file or redis address is required")
	}
	if _, ok := scenario.GetPreset(c.Preset); !ok {
		return fmt.Errorf("unknown preset: %s (available: %v)", c.Preset, scenario.ListPresets())
	}
	return nil
}

// Table は設定からシナリオテーブルを構築する。
// Weightsが指定されていればプリセットより優先される
func (c Config) Table() (*scenario.Table, error) {
	if len(c.Weights) > 0 {
		return scenario.FromWeights(c.Weights)
	}

	table, ok := scenario.GetPreset(c.Preset)
	if !ok {
		return nil, fmt.Errorf("unknown preset: %s", c.Preset)
	}
	return table, nil
}

// NewLogger はLogLevelに従ったzapロガーを作成する
func NewLogger(level string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid log level: %q", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
