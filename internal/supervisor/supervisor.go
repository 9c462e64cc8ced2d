package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"chaos-target/internal/events"
	"chaos-target/internal/metrics"
	"chaos-target/internal/target"
)

// Runner は監視対象プロセスの1回の実行を表す。
// Runはプロセスの終了まで待ち、終了コードを返す
type Runner interface {
	Run(ctx context.Context) (int, error)
}

// CommandRunner はos/execで子プロセスを実行するRunner
type CommandRunner struct {
	name string
	args []string
	env  []string
}

// NewCommandRunner は新しいCommandRunnerを作成する。
// envは親の環境に追記される
func NewCommandRunner(name string, args []string, env []string) *CommandRunner {
	return &CommandRunner{name: name, args: args, env: env}
}

// Run は子プロセスを起動して終了を待つ
func (r *CommandRunner) Run(ctx context.Context) (int, error) {
	cmd := exec.CommandContext(ctx, r.name, r.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), r.env...)

	if err := cmd.Start(); err != nil {
		return -1, err
	}

	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Config はSupervisorの設定
type Config struct {
	RecoveryDelay time.Duration // 再起動までの待機時間
	MaxRetries    int           // 最大再起動回数（0で無制限）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		RecoveryDelay: 2 * time.Second,
		MaxRetries:    0,
	}
}

// Status は外部の修復エージェントに公開するプロセス状態
type Status struct {
	Alive        bool      `json:"alive"`
	Restarts     int       `json:"restarts"`
	CrashExits   int       `json:"crash_exits"`
	LastExitCode int       `json:"last_exit_code"`
	StartedAt    time.Time `json:"started_at,omitempty"`
}

// Manager はTargetプロセスを監視して再起動する。
// Targetが終了コード1（シミュレートされたクラッシュ）で落ちたことを
// 他の異常終了と区別して記録する。障害状態のクリアは行わない。
// 状態の是正はCoordinatorまたは外部の修復エージェントの責務
type Manager struct {
	config    Config
	runner    Runner
	logger    *zap.Logger
	eventBus  *events.Bus
	collector *metrics.Collector

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.RWMutex
	runCancel    context.CancelFunc
	alive        bool
	restarts     int
	crashExits   int
	lastExitCode int
	startedAt    time.Time
}

// New は新しいManagerを作成する
func New(runner Runner, config Config, logger *zap.Logger) *Manager {
	return &Manager{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// SetEventBus はイベントバスを設定する
func (m *Manager) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// SetCollector はメトリクスコレクタを設定する
func (m *Manager) SetCollector(collector *metrics.Collector) {
	m.collector = collector
}

func (m *Manager) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Start は監視ループを開始する
func (m *Manager) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.superviseLoop()

	m.logger.Info("supervisor started",
		zap.Duration("recovery_delay", m.config.RecoveryDelay),
		zap.Int("max_retries", m.config.MaxRetries),
	)
}

// Stop は監視ループを停止する。実行中の子プロセスも終了する
func (m *Manager) Stop() {
	if !m.running.Swap(false) {
		return
	}

	m.cancel()
	m.wg.Wait()

	m.mu.RLock()
	restarts := m.restarts
	m.mu.RUnlock()

	m.logger.Info("supervisor stopped", zap.Int("restarts", restarts))
}

// IsRunning は監視中かどうかを返す
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

// Status は現在のプロセス状態を返す
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Status{
		Alive:        m.alive,
		Restarts:     m.restarts,
		CrashExits:   m.crashExits,
		LastExitCode: m.lastExitCode,
		StartedAt:    m.startedAt,
	}
}

// Restart は実行中の子プロセスを終了させる。監視ループが通常の
// 再起動手順（recovery delay込み）で新しいプロセスを起動する。
// 実行中の子がいない場合は何もしない
func (m *Manager) Restart() {
	m.mu.RLock()
	cancel := m.runCancel
	m.mu.RUnlock()

	if cancel != nil {
		m.logger.Info("restart requested")
		cancel()
	}
}

// StatusHandler は修復エージェント向けの状態エンドポイントを返す
func (m *Manager) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Status())
	})
}

// RestartHandler は修復エージェント向けの再起動エンドポイントを返す
func (m *Manager) RestartHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		m.Restart()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "restarting"})
	})
}

func (m *Manager) superviseLoop() {
	defer m.wg.Done()

	for attempt := 0; ; attempt++ {
		runCtx, runCancel := context.WithCancel(m.ctx)

		m.mu.Lock()
		m.runCancel = runCancel
		m.alive = true
		m.startedAt = time.Now()
		m.mu.Unlock()

		m.logger.Info("starting target process", zap.Int("attempt", attempt))

		code, err := m.runner.Run(runCtx)
		runCancel()

		m.mu.Lock()
		m.runCancel = nil
		m.alive = false
		m.lastExitCode = code
		if code == target.CrashExitCode {
			m.crashExits++
		}
		m.mu.Unlock()

		if m.ctx.Err() != nil {
			return
		}

		if err != nil {
			m.logger.Error("target process failed to run", zap.Error(err))
		} else if code == target.CrashExitCode {
			// シミュレートされたクラッシュ。Crashモードが残っていれば
			// 再起動後すぐまた落ちる（クラッシュループ）のが想定挙動
			m.logger.Warn("target exited with simulated crash code",
				zap.Int("exit_code", code))
			if m.collector != nil {
				m.collector.CrashExitsTotal.Inc()
			}
		} else {
			m.logger.Warn("target exited", zap.Int("exit_code", code))
		}
		m.publishEvent(events.NewTargetExitedEvent(code))

		if m.config.MaxRetries > 0 && attempt+1 >= m.config.MaxRetries {
			m.logger.Error("max retries reached, giving up",
				zap.Int("max_retries", m.config.MaxRetries))
			return
		}

		if !m.sleep(m.config.RecoveryDelay) {
			return
		}

		m.mu.Lock()
		m.restarts++
		restarts := m.restarts
		m.mu.Unlock()

		if m.collector != nil {
			m.collector.RestartsTotal.Inc()
		}
		m.publishEvent(events.NewTargetRestartedEvent(restarts))
	}
}

func (m *Manager) sleep(d time.Duration) bool {
	if d <= 0 {
		return m.ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-m.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
