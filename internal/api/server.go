package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"chaos-target/internal/coordinator"
	"chaos-target/internal/events"
	"chaos-target/internal/metrics"
	"chaos-target/internal/scenario"
	"chaos-target/internal/state"
)

// Server はコーディネーターの管理APIサーバー
type Server struct {
	addr   string
	coord  *coordinator.Coordinator
	store  state.Store
	logger *zap.Logger

	bus       *events.Bus
	collector *metrics.Collector

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しい管理APIサーバーを作成する
func NewServer(addr string, coord *coordinator.Coordinator, store state.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:      addr,
		coord:     coord,
		store:     store,
		logger:    logger,
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// SetEventBus はイベントバスを設定する
func (s *Server) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// SetCollector はメトリクスコレクターを設定する
func (s *Server) SetCollector(collector *metrics.Collector) {
	s.collector = collector
}

// Handler はルーティング済みのHTTPハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/inject", s.handleInject)
	mux.HandleFunc("/api/clear", s.handleClear)
	mux.HandleFunc("/api/enable", s.handleEnable)
	mux.HandleFunc("/api/disable", s.handleDisable)
	mux.HandleFunc("/api/presets", s.handlePresets)

	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	if s.collector != nil {
		mux.Handle("/metrics", s.collector.Handler())
	}

	return mux
}

// Start はサーバーを開始する。ctxのキャンセルで停止する。
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	// バックグラウンドでステータスとイベントを配信
	go s.broadcastLoop(ctx)
	if s.bus != nil {
		go s.forwardEvents(ctx)
	}

	s.logger.Info("admin API server starting", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running bool              `json:"running"`
	Enabled bool              `json:"enabled"`
	Phase   string            `json:"phase"`
	Stats   coordinator.Stats `json:"stats"`
}

func (s *Server) status() StatusResponse {
	return StatusResponse{
		Running: s.coord.IsRunning(),
		Enabled: s.coord.Enabled(),
		Phase:   string(s.coord.Phase()),
		Stats:   s.coord.Stats(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.status())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st, err := s.store.Read(r.Context())
	if err != nil {
		s.logger.Warn("state read failed", zap.Error(err))
		http.Error(w, "Failed to read state", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, st)
}

// InjectRequest は障害注入リクエスト。
// Scenarioを指定するとテーブルから該当シナリオを組み立て、
// Modeを指定すると任意の障害状態を直接書き込む。
type InjectRequest struct {
	Scenario string  `json:"scenario,omitempty"`
	Mode     string  `json:"mode,omitempty"`
	Delay    float64 `json:"delay,omitempty"`
}

func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req InjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch {
	case req.Scenario != "":
		st, err := s.coord.Inject(r.Context(), req.Scenario)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeJSON(w, st)

	case req.Mode != "":
		mode, err := state.ParseMode(req.Mode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		st := state.FailureState{
			Mode:       mode,
			Delay:      req.Delay,
			InjectedBy: "api",
		}
		if err := s.coord.InjectState(r.Context(), st); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeJSON(w, st)

	default:
		http.Error(w, "scenario or mode is required", http.StatusBadRequest)
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.coord.Clear(r.Context()); err != nil {
		http.Error(w, "Failed to clear state", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]string{"status": "cleared"})
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.coord.Enable()
	s.writeJSON(w, map[string]bool{"enabled": true})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.coord.Disable()
	s.writeJSON(w, map[string]bool{"enabled": false})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, scenario.ListPresets())
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) broadcast(data interface{}) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			n := len(s.wsClients)
			s.mu.RUnlock()
			if n == 0 {
				continue
			}

			s.broadcast(map[string]interface{}{
				"type":   "status",
				"status": s.status(),
			})
		}
	}
}

func (s *Server) forwardEvents(ctx context.Context) {
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]interface{}{
				"type":  "event",
				"event": ev,
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}
