package target

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"chaos-target/internal/metrics"
	"chaos-target/internal/state"
)

func newTestServer(t *testing.T, st state.FailureState) (*Server, *state.MemStore) {
	t.Helper()

	store := state.NewMemStore()
	if err := store.Write(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	s := NewServer(Config{Addr: ":0"}, store, zap.NewNop())
	return s, store
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthWhenHealthy(t *testing.T) {
	s, _ := newTestServer(t, state.FailureState{Mode: state.ModeHealthy})

	rec := doRequest(t, s, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status healthy, got %q", resp.Status)
	}
	if resp.Service != ServiceName {
		t.Errorf("expected service %s, got %q", ServiceName, resp.Service)
	}
}

func TestHealthReflectsConfigError(t *testing.T) {
	s, _ := newTestServer(t, state.FailureState{Mode: state.ModeConfigError})

	rec := doRequest(t, s, "GET", "/health", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 under config error, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "configuration error") {
		t.Errorf("expected configuration error body, got %s", rec.Body.String())
	}
}

func TestDebugStateBypassesFaults(t *testing.T) {
	want := state.FailureState{
		Mode:       state.ModeConfigError,
		Timestamp:  42,
		InjectedBy: "coordinator",
	}
	s, _ := newTestServer(t, want)

	rec := doRequest(t, s, "GET", "/debug/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from debug endpoint under fault, got %d", rec.Code)
	}

	var got state.FailureState
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if got != want {
		t.Errorf("debug state = %+v, want %+v", got, want)
	}
}

func TestMetricsBypassesFaults(t *testing.T) {
	s, _ := newTestServer(t, state.FailureState{Mode: state.ModeConfigError})
	s.SetCollector(metrics.NewCollector("chaos"))

	rec := doRequest(t, s, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from metrics endpoint under fault, got %d", rec.Code)
	}
}

func TestCrashDoesNotClearState(t *testing.T) {
	s, store := newTestServer(t, state.FailureState{Mode: state.ModeCrash, Timestamp: 7})

	exitCode := -1
	s.Middleware().SetExit(func(code int) { exitCode = code })

	doRequest(t, s, "GET", "/health", nil)

	if exitCode != CrashExitCode {
		t.Fatalf("expected exit code %d, got %d", CrashExitCode, exitCode)
	}

	// Targetは自分では障害状態をクリアしない。再起動後もCrashのまま
	st, _ := store.Read(context.Background())
	if st.Mode != state.ModeCrash {
		t.Errorf("expected crash mode to persist, got %v", st.Mode)
	}
}

func TestOrdersCRUD(t *testing.T) {
	s, _ := newTestServer(t, state.FailureState{Mode: state.ModeHealthy})

	rec := doRequest(t, s, "POST", "/orders", []byte(`{"product_id":"prod-1","quantity":2}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created Order
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if created.ID == "" {
		t.Error("expected order ID to be assigned")
	}
	if created.ProductID != "prod-1" || created.Quantity != 2 {
		t.Errorf("unexpected order: %+v", created)
	}

	rec = doRequest(t, s, "GET", "/orders/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 fetching order, got %d", rec.Code)
	}

	rec = doRequest(t, s, "GET", "/orders/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown order, got %d", rec.Code)
	}

	rec = doRequest(t, s, "GET", "/orders", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 listing orders, got %d", rec.Code)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	s, _ := newTestServer(t, state.FailureState{Mode: state.ModeHealthy})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing product", `{"quantity":1}`},
		{"zero quantity", `{"product_id":"prod-1","quantity":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, "POST", "/orders", []byte(tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestListProducts(t *testing.T) {
	s, _ := newTestServer(t, state.FailureState{Mode: state.ModeHealthy})

	rec := doRequest(t, s, "GET", "/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Products []Product `json:"products"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(resp.Products) == 0 {
		t.Error("expected seeded products")
	}
}
