package target

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Product はデモ用の商品
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Order はデモ用の注文
type Order struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// catalog は負荷生成用のインメモリCRUDデータ。
// 業務ロジックは持たず、テレメトリを発生させるためだけに存在する
type catalog struct {
	mu       sync.RWMutex
	products []Product
	orders   map[string]Order
}

func newCatalog() *catalog {
	return &catalog{
		products: []Product{
			{ID: "prod-1", Name: "Widget", Price: 9.99},
			{ID: "prod-2", Name: "Gadget", Price: 24.50},
			{ID: "prod-3", Name: "Doohickey", Price: 4.25},
		},
		orders: make(map[string]Order),
	}
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	s.catalog.mu.RLock()
	products := make([]Product, len(s.catalog.products))
	copy(products, s.catalog.products)
	s.catalog.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	s.catalog.mu.RLock()
	orders := make([]Order, 0, len(s.catalog.orders))
	for _, o := range s.catalog.orders {
		orders = append(orders, o)
	}
	s.catalog.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// CreateOrderRequest は注文作成リクエスト
type CreateOrderRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id and positive quantity are required"})
		return
	}

	order := Order{
		ID:        uuid.NewString(),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		CreatedAt: time.Now(),
	}

	s.catalog.mu.Lock()
	s.catalog.orders[order.ID] = order
	s.catalog.mu.Unlock()

	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.catalog.mu.RLock()
	order, ok := s.catalog.orders[id]
	s.catalog.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, order)
}
