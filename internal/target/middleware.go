package target

import (
	"net/http"
	"os"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chaos-target/internal/metrics"
	"chaos-target/internal/state"
)

// CrashExitCode はCrashモードで終了するときの終了コード。
// 監視側がシミュレートされたクラッシュを他の異常終了と区別できるようにする
const CrashExitCode = 1

const configErrorBody = `{"error":"configuration error: DATABASE_URL is not properly configured. Please check environment variables and restart the service."}`

// Middleware は共有障害状態を解釈するリクエストミドルウェア。
// 全てのリクエストで通常処理の前に障害状態を読み取り、モードに従って
// 振る舞いを変える。読み取りは副作用を持たない。
type Middleware struct {
	store     state.Store
	logger    *zap.Logger
	collector *metrics.Collector

	// テストから差し替えるためのフック
	exit  func(code int)
	sleep func(d time.Duration)
}

// NewMiddleware は新しいMiddlewareを作成する
func NewMiddleware(store state.Store, logger *zap.Logger) *Middleware {
	return &Middleware{
		store:  store,
		logger: logger,
		exit:   os.Exit,
		sleep:  time.Sleep,
	}
}

// SetCollector はメトリクスコレクタを設定する
func (m *Middleware) SetCollector(collector *metrics.Collector) {
	m.collector = collector
}

// SetExit はプロセス終了処理を差し替える（テスト用）
func (m *Middleware) SetExit(fn func(code int)) {
	m.exit = fn
}

// SetSleep は遅延処理を差し替える（テスト用）
func (m *Middleware) SetSleep(fn func(d time.Duration)) {
	m.sleep = fn
}

// Handler は障害解釈ミドルウェアを返す
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, err := m.store.Read(r.Context())
		if err != nil {
			// 状態が読めない場合は健全として扱う
			m.logger.Warn("failed to read failure state", zap.Error(err))
			st = state.FailureState{Mode: state.ModeHealthy}
		}

		switch st.Mode {
		case state.ModeCrash:
			// 意図的な非グレースフル終了。障害状態はクリアしない。
			// 再起動後もCrashのままならクラッシュループになるのが正しい挙動
			m.logger.Error("crash mode active, exiting",
				zap.Int("exit_code", CrashExitCode),
				zap.String("path", r.URL.Path),
			)
			m.exit(CrashExitCode)
			return

		case state.ModeSlow:
			delay := st.DelayDuration()
			// 障害ではなく遅延注入なのでエラーログにはしない
			m.logger.Info("slow mode active, delaying request",
				zap.Duration("delay", delay),
				zap.String("path", r.URL.Path),
			)
			if m.collector != nil {
				m.collector.InjectedDelay.Observe(delay.Seconds())
			}
			m.sleep(delay)

		case state.ModeConfigError:
			m.logger.Error("config error mode active, rejecting request",
				zap.String("path", r.URL.Path),
			)
			m.writeConfigError(w, st)
			return
		}

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		m.record(st.Mode, ww.Status())
	})
}

func (m *Middleware) writeConfigError(w http.ResponseWriter, st state.FailureState) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(configErrorBody))
	m.record(st.Mode, http.StatusInternalServerError)
}

func (m *Middleware) record(mode state.Mode, status int) {
	if m.collector == nil {
		return
	}
	if status == 0 {
		status = http.StatusOK
	}
	m.collector.RequestsTotal.WithLabelValues(mode.String(), strconv.Itoa(status)).Inc()
}
