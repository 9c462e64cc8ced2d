package target

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"chaos-target/internal/metrics"
	"chaos-target/internal/observability"
	"chaos-target/internal/state"
)

// ServiceName は計装やログに使うサービス名
const ServiceName = "target-app"

// Config はTargetサーバーの設定
type Config struct {
	Addr          string // リッスンアドレス
	EnableTracing bool   // OpenTelemetryトレーシングを有効化
}

// Server は障害状態に応じて振る舞いを変えるデモ用HTTPサーバー
type Server struct {
	config     Config
	store      state.Store
	logger     *zap.Logger
	collector  *metrics.Collector
	middleware *Middleware
	catalog    *catalog

	server *http.Server
}

// NewServer は新しいTargetサーバーを作成する
func NewServer(config Config, store state.Store, logger *zap.Logger) *Server {
	return &Server{
		config:     config,
		store:      store,
		logger:     logger,
		middleware: NewMiddleware(store, logger),
		catalog:    newCatalog(),
	}
}

// SetCollector はメトリクスコレクタを設定する
func (s *Server) SetCollector(collector *metrics.Collector) {
	s.collector = collector
	s.middleware.SetCollector(collector)
}

// Middleware は障害解釈ミドルウェアを返す（テスト用）
func (s *Server) Middleware() *Middleware {
	return s.middleware
}

// Router はルーティングを構築する
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(s.requestLogger)
	if s.config.EnableTracing {
		r.Use(observability.Tracing(ServiceName))
	}

	// 診断系は障害解釈の対象外。障害発生中でもトリアージできる必要がある
	r.Get("/debug/state", s.handleDebugState)
	if s.collector != nil {
		r.Method(http.MethodGet, "/metrics", s.collector.Handler())
	}

	// それ以外は/healthを含めて全て障害の影響を受ける
	r.Group(func(r chi.Router) {
		r.Use(s.middleware.Handler)

		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)
		r.Get("/orders", s.handleListOrders)
		r.Post("/orders", s.handleCreateOrder)
		r.Get("/orders/{id}", s.handleGetOrder)
		r.Get("/products", s.handleListProducts)
	})

	return r
}

// Start はサーバーを起動し、ctxのキャンセルでシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("target server starting", zap.String("addr", s.config.Addr))

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// requestLogger はリクエストログを出力するミドルウェア
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		elapsed := time.Since(start)
		s.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", elapsed),
		)
		if s.collector != nil {
			s.collector.RequestDuration.WithLabelValues(r.URL.Path).Observe(elapsed.Seconds())
		}
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": ServiceName,
		"status":  "running",
		"endpoints": map[string]string{
			"health":   "/health",
			"state":    "/debug/state",
			"orders":   "/orders",
			"products": "/products",
		},
	})
}

// HealthResponse は/healthのレスポンス
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: ServiceName,
	})
}

// handleDebugState は現在の障害状態をそのまま返す
func (s *Server) handleDebugState(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Read(r.Context())
	if err != nil {
		s.logger.Warn("failed to read failure state for debug endpoint", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
