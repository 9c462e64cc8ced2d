package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher は設定ファイルを監視し、変更時に再読み込みして通知する。
// シナリオの重みを再起動なしで調整するために使う
type Watcher struct {
	path    string
	base    Config
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	callbacks []func(Config)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWatcher は新しいWatcherを作成する。
// baseはファイル読み込み失敗時に維持される現在の設定
func NewWatcher(path string, base Config, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// renameによる置き換えも拾えるようディレクトリを監視する
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		path:    path,
		base:    base,
		logger:  logger,
		watcher: fsWatcher,
		stopCh:  make(chan struct{}),
	}, nil
}

// OnReload は再読み込み成功時に呼ばれるコールバックを登録する
func (w *Watcher) OnReload(fn func(Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start は監視ループを開始する
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.watchLoop()

	w.logger.Info("config hot reload enabled", zap.String("path", w.path))
}

// Stop は監視を停止する
func (w *Watcher) Stop() {
	close(w.stopCh)
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	// 連続する書き込みイベントをまとめる
	var debounce *time.Timer
	reloadCh := make(chan struct{}, 1)

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case reloadCh <- struct{}{}:
				default:
				}
			})

		case <-reloadCh:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	fc, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("failed to reload config, keeping previous", zap.Error(err))
		return
	}

	cfg, err := fc.Apply(w.base)
	if err != nil {
		w.logger.Error("failed to apply reloaded config, keeping previous", zap.Error(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Error("reloaded config is invalid, keeping previous", zap.Error(err))
		return
	}

	w.logger.Info("config reloaded", zap.String("path", w.path))

	w.mu.Lock()
	callbacks := make([]func(Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
}
