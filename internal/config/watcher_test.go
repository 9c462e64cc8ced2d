package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("chaos:\n  preset: default\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, Default(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	reloaded := make(chan Config, 1)
	w.OnReload(func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	w.Start()

	// 監視が始まるまで少し待つ
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte("chaos:\n  preset: latency\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Preset != "latency" {
			t.Errorf("expected reloaded preset latency, got %s", cfg.Preset)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherKeepsPreviousOnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("chaos:\n  preset: default\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, Default(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	reloaded := make(chan Config, 1)
	w.OnReload(func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	w.Start()

	time.Sleep(50 * time.Millisecond)

	// 不正なプリセットはValidateで弾かれ、コールバックは呼ばれない
	if err := os.WriteFile(path, []byte("chaos:\n  preset: explode\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		t.Errorf("expected no reload for invalid config, got %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}
}
