package coordinator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"chaos-target/internal/events"
	"chaos-target/internal/metrics"
	"chaos-target/internal/scenario"
	"chaos-target/internal/state"
)

// Phase はCoordinatorのサイクル内の現在位置を表す
type Phase string

const (
	PhaseIdle        Phase = "idle"        // 起動猶予の待機中
	PhaseScheduling  Phase = "scheduling"  // 次の注入までの待機中
	PhaseInjecting   Phase = "injecting"   // シナリオ選択と書き込み
	PhaseManifesting Phase = "manifesting" // 障害を維持して観測させる
	PhaseClearing    Phase = "clearing"    // 健全状態へ復帰
	PhaseStopped     Phase = "stopped"
)

// Config はCoordinatorの設定
type Config struct {
	Interval       time.Duration // 注入サイクルの間隔
	RecoveryWindow time.Duration // 障害を有効なままにする時間
	StartupGrace   time.Duration // 初回注入までの起動猶予
	Enabled        bool          // キルスイッチ
	InjectedBy     string        // 書き込むレコードのinjected_byタグ
	Seed           int64         // 乱数シード（0で時刻ベース）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Interval:       180 * time.Second,
		RecoveryWindow: 30 * time.Second,
		StartupGrace:   60 * time.Second,
		Enabled:        true,
		InjectedBy:     "coordinator",
	}
}

// Stats は注入統計
type Stats struct {
	TotalInjections uint64            `json:"total_injections"`
	ByScenario      map[string]uint64 `json:"injections_by_scenario"`
	WriteFailures   uint64            `json:"write_failures"`
	LastScenario    string            `json:"last_scenario,omitempty"`
	LastInjection   time.Time         `json:"last_injection,omitempty"`
}

// Coordinator は障害注入サイクルを駆動する。
// Idle → Scheduling → Injecting → Manifesting → Clearing のループを回し、
// 共有障害状態の唯一の書き込み役を務める。
type Coordinator struct {
	config    Config
	store     state.Store
	logger    *zap.Logger
	eventBus  *events.Bus
	collector *metrics.Collector

	running atomic.Bool
	enabled atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu             sync.RWMutex
	table          *scenario.Table
	rng            *rand.Rand
	phase          Phase
	injectionCount uint64
	byScenario     map[string]uint64
	writeFailures  uint64
	lastScenario   string
	lastInjection  time.Time
}

// New は新しいCoordinatorを作成する
func New(store state.Store, table *scenario.Table, config Config, logger *zap.Logger) *Coordinator {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	c := &Coordinator{
		config:     config,
		store:      store,
		logger:     logger,
		table:      table,
		rng:        rand.New(rand.NewSource(seed)),
		phase:      PhaseStopped,
		byScenario: make(map[string]uint64),
	}
	c.enabled.Store(config.Enabled)
	return c
}

// SetEventBus はイベントバスを設定する
func (c *Coordinator) SetEventBus(bus *events.Bus) {
	c.eventBus = bus
}

// SetCollector はメトリクスコレクタを設定する
func (c *Coordinator) SetCollector(collector *metrics.Collector) {
	c.collector = collector
}

// SetTable はシナリオテーブルを置き換える。
// 設定ファイルのホットリロードから呼ばれる。
func (c *Coordinator) SetTable(table *scenario.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = table
}

func (c *Coordinator) publishEvent(event events.Event) {
	if c.eventBus != nil {
		c.eventBus.Publish(event)
	}
}

// Start は注入ループを開始する
func (c *Coordinator) Start(ctx context.Context) {
	if c.running.Swap(true) {
		return
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()

	c.logger.Info("coordinator started",
		zap.Duration("interval", c.config.Interval),
		zap.Duration("recovery_window", c.config.RecoveryWindow),
		zap.Duration("startup_grace", c.config.StartupGrace),
		zap.Bool("enabled", c.enabled.Load()),
	)
}

// Stop は注入ループを停止する。
// 進行中の待機は中断され、終了前に障害状態が健全へ戻される。
func (c *Coordinator) Stop() {
	if !c.running.Swap(false) {
		return
	}

	c.cancel()
	c.wg.Wait()

	c.mu.RLock()
	total := c.injectionCount
	c.mu.RUnlock()

	c.logger.Info("coordinator stopped", zap.Uint64("total_injections", total))
}

// IsRunning は実行中かどうかを返す
func (c *Coordinator) IsRunning() bool {
	return c.running.Load()
}

// Enable はキルスイッチを解除する
func (c *Coordinator) Enable() {
	c.enabled.Store(true)
}

// Disable はキルスイッチを有効にする。ループは注入せずに待機し続ける
func (c *Coordinator) Disable() {
	c.enabled.Store(false)
}

// Enabled は注入が有効かどうかを返す
func (c *Coordinator) Enabled() bool {
	return c.enabled.Load()
}

// Phase は現在のフェーズを返す
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Stats は注入統計を返す
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byScenario := make(map[string]uint64, len(c.byScenario))
	for name, count := range c.byScenario {
		byScenario[name] = count
	}

	return Stats{
		TotalInjections: c.injectionCount,
		ByScenario:      byScenario,
		WriteFailures:   c.writeFailures,
		LastScenario:    c.lastScenario,
		LastInjection:   c.lastInjection,
	}
}

// run は注入サイクルの本体
func (c *Coordinator) run() {
	defer c.wg.Done()
	defer c.shutdownClear()

	// 起動猶予。Targetの安定を待つ
	c.setPhase(PhaseIdle)
	if !c.sleep(c.config.StartupGrace) {
		return
	}

	// 前回の実行が残した障害があれば取り除く
	if err := c.clear(c.ctx); err != nil {
		c.logger.Error("failed to clear stale failure state", zap.Error(err))
	}

	for {
		c.setPhase(PhaseScheduling)
		if !c.sleep(c.config.Interval) {
			return
		}

		if !c.enabled.Load() {
			c.logger.Debug("chaos disabled, skipping cycle")
			continue
		}

		c.setPhase(PhaseInjecting)
		if err := c.injectRandom(); err != nil {
			// 注入失敗でCoordinator自身を落とさない
			c.logger.Error("injection failed, skipping cycle", zap.Error(err))
			continue
		}

		c.setPhase(PhaseManifesting)
		if !c.sleep(c.config.RecoveryWindow) {
			return
		}

		c.setPhase(PhaseClearing)
		if err := c.clear(c.ctx); err != nil {
			c.logger.Error("failed to clear failure state", zap.Error(err))
		}
	}
}

// injectRandom はシナリオを重み付きで選択して書き込む
func (c *Coordinator) injectRandom() error {
	c.mu.Lock()
	s := c.table.Pick(c.rng)
	st := s.Build(c.rng, c.config.InjectedBy)
	c.mu.Unlock()

	return c.write(s.Name, st)
}

// Inject は名前で指定されたシナリオを手動で注入する
func (c *Coordinator) Inject(ctx context.Context, name string) (state.FailureState, error) {
	c.mu.Lock()
	s, ok := c.table.Lookup(name)
	if !ok {
		c.mu.Unlock()
		return state.FailureState{}, fmt.Errorf("unknown scenario: %s", name)
	}
	st := s.Build(c.rng, "manual")
	c.mu.Unlock()

	if err := c.writeCtx(ctx, s.Name, st); err != nil {
		return state.FailureState{}, err
	}
	return st, nil
}

// InjectState は明示的な障害状態を書き込む（手動オーバーライド用）
func (c *Coordinator) InjectState(ctx context.Context, st state.FailureState) error {
	if !st.Mode.Valid() {
		return fmt.Errorf("invalid failure mode: %q", st.Mode)
	}
	if st.Timestamp == 0 {
		st.Timestamp = time.Now().Unix()
	}
	if st.InjectedBy == "" {
		st.InjectedBy = "manual"
	}
	return c.writeCtx(ctx, string(st.Mode), st)
}

func (c *Coordinator) write(name string, st state.FailureState) error {
	return c.writeCtx(c.ctx, name, st)
}

func (c *Coordinator) writeCtx(ctx context.Context, name string, st state.FailureState) error {
	if err := c.store.Write(ctx, st); err != nil {
		c.recordWriteFailure()
		c.publishEvent(events.NewStateWriteFailedEvent(name, err))
		return fmt.Errorf("failed to write failure state: %w", err)
	}

	c.mu.Lock()
	c.injectionCount++
	c.byScenario[name]++
	c.lastScenario = name
	c.lastInjection = time.Now()
	c.mu.Unlock()

	if c.collector != nil {
		c.collector.InjectionsTotal.WithLabelValues(name).Inc()
	}

	c.logger.Warn("fault injected",
		zap.String("scenario", name),
		zap.String("mode", st.Mode.String()),
		zap.Float64("delay_sec", st.Delay),
		zap.String("injected_by", st.InjectedBy),
	)
	c.publishEvent(events.NewFaultInjectedEvent(name, st))
	return nil
}

// Clear は障害状態を健全へ戻す（手動オーバーライド用）
func (c *Coordinator) Clear(ctx context.Context) error {
	return c.clear(ctx)
}

// clear は障害状態を健全へ上書きする。
// すでに健全な場合も書き込みは行うが、ログとイベントは発生させない。
func (c *Coordinator) clear(ctx context.Context) error {
	prior, readErr := c.store.Read(ctx)
	if readErr != nil {
		c.logger.Warn("could not read state before clearing", zap.Error(readErr))
	}

	if err := c.store.Write(ctx, state.Healthy(c.config.InjectedBy)); err != nil {
		c.recordWriteFailure()
		c.publishEvent(events.NewStateWriteFailedEvent("clear", err))
		return fmt.Errorf("failed to clear failure state: %w", err)
	}

	if readErr == nil && prior.IsHealthy() {
		return nil
	}

	if c.collector != nil {
		c.collector.FaultsClearedTotal.Inc()
	}

	c.logger.Info("failure state cleared", zap.String("previous_mode", prior.Mode.String()))
	c.publishEvent(events.NewFaultClearedEvent(prior.Mode, c.config.InjectedBy))
	return nil
}

// shutdownClear は終了時に障害状態を確実に健全へ戻す
func (c *Coordinator) shutdownClear() {
	c.setPhase(PhaseStopped)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.clear(ctx); err != nil {
		c.logger.Error("failed to clear failure state on shutdown", zap.Error(err))
	}
}

func (c *Coordinator) recordWriteFailure() {
	c.mu.Lock()
	c.writeFailures++
	c.mu.Unlock()

	if c.collector != nil {
		c.collector.WriteFailuresTotal.Inc()
	}
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// sleep はキャンセル可能な待機。中断された場合はfalseを返す
func (c *Coordinator) sleep(d time.Duration) bool {
	if d <= 0 {
		return c.ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
