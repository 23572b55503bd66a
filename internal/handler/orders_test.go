package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cuckooeats/backoffice/internal/database"
	"github.com/cuckooeats/backoffice/internal/handler"
	"github.com/cuckooeats/backoffice/internal/order"
	"github.com/cuckooeats/backoffice/internal/service"
	"github.com/cuckooeats/backoffice/internal/store"
)

// --- Mock OrderBoard ---

type mockBoard struct {
	orders   []order.Order
	updateFn func(ctx context.Context, id int64, status order.Status) error
	fetchFn  func(ctx context.Context) error

	updates int
	fetches int
}

func (m *mockBoard) Snapshot() store.Snapshot {
	return store.Snapshot{Orders: order.CloneAll(m.orders)}
}

func (m *mockBoard) Order(id int64) (order.Order, bool) {
	for _, o := range m.orders {
		if o.ID == id {
			return o.Clone(), true
		}
	}
	return order.Order{}, false
}

func (m *mockBoard) FetchOrders(ctx context.Context) error {
	m.fetches++
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}
	return nil
}

func (m *mockBoard) UpdateOrderStatus(ctx context.Context, id int64, status order.Status) error {
	m.updates++
	if m.updateFn != nil {
		return m.updateFn(ctx, id, status)
	}
	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders[i].Status = status
		}
	}
	return nil
}

// --- Mock OrderPurger / TestOrderGenerator ---

type mockPurger struct {
	deleteFn func(ctx context.Context) (int64, error)
}

func (m *mockPurger) DeleteAll(ctx context.Context) (int64, error) {
	return m.deleteFn(ctx)
}

type mockGenerator struct {
	generateFn func(ctx context.Context, count int) ([]database.Order, error)
}

func (m *mockGenerator) GenerateTestOrders(ctx context.Context, count int) ([]database.Order, error) {
	return m.generateFn(ctx, count)
}

// --- Test helpers ---

func sampleOrders() []order.Order {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	delivered := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []order.Order{
		{ID: 103, Status: order.Recibido, CreatedAt: created.Add(2 * time.Hour)},
		{ID: 102, Status: order.Entregado, CreatedAt: created, DeliveredAt: &delivered},
		{ID: 101, Status: order.EnPreparacion, CreatedAt: created.Add(-time.Hour)},
	}
}

func setupRouter(board *mockBoard, purger *mockPurger, gen *mockGenerator) *chi.Mux {
	h := handler.NewOrderHandler(board, purger, gen, time.UTC, nil)
	r := chi.NewRouter()
	r.Route("/orders", func(r chi.Router) {
		h.RegisterRoutes(r)
		h.RegisterAdminRoutes(r)
	})
	return r
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- Reads ---

func TestList(t *testing.T) {
	router := setupRouter(&mockBoard{orders: sampleOrders()}, nil, nil)

	rr := do(t, router, "GET", "/orders", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp struct {
		Orders []order.Order `json:"orders"`
	}
	decode(t, rr, &resp)
	if len(resp.Orders) != 3 || resp.Orders[0].ID != 103 {
		t.Errorf("orders: %+v", resp.Orders)
	}
}

func TestBoard(t *testing.T) {
	router := setupRouter(&mockBoard{orders: sampleOrders()}, nil, nil)

	rr := do(t, router, "GET", "/orders/board", nil)
	var resp struct {
		Columns []struct {
			Status string `json:"status"`
			Title  string `json:"title"`
			Count  int    `json:"count"`
		} `json:"columns"`
	}
	decode(t, rr, &resp)
	want := []int{1, 1, 0, 1}
	if len(resp.Columns) != 4 {
		t.Fatalf("columns: %+v", resp.Columns)
	}
	for i, c := range resp.Columns {
		if c.Count != want[i] {
			t.Errorf("column %s: count %d, want %d", c.Status, c.Count, want[i])
		}
	}
}

func TestHistory(t *testing.T) {
	router := setupRouter(&mockBoard{orders: sampleOrders()}, nil, nil)

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantCount int
		wantEmpty string
	}{
		{"no filter", "/orders/history", http.StatusOK, 1, ""},
		{"matching date", "/orders/history?date=2024-03-01", http.StatusOK, 1, ""},
		{"other date", "/orders/history?date=2024-03-02", http.StatusOK, 0, "no_match"},
		{"bad date", "/orders/history?date=yesterday", http.StatusBadRequest, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, router, "GET", tt.path, nil)
			if rr.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp struct {
				Orders  []order.Order `json:"orders"`
				Empty   string        `json:"empty"`
				Message string        `json:"message"`
			}
			decode(t, rr, &resp)
			if len(resp.Orders) != tt.wantCount || resp.Empty != tt.wantEmpty {
				t.Errorf("got %d orders, empty=%q", len(resp.Orders), resp.Empty)
			}
			if tt.wantEmpty != "" && resp.Message == "" {
				t.Error("missing empty-state message")
			}
		})
	}
}

func TestGet(t *testing.T) {
	router := setupRouter(&mockBoard{orders: sampleOrders()}, nil, nil)

	if rr := do(t, router, "GET", "/orders/102", nil); rr.Code != http.StatusOK {
		t.Errorf("existing: got %d", rr.Code)
	}
	if rr := do(t, router, "GET", "/orders/999", nil); rr.Code != http.StatusNotFound {
		t.Errorf("missing: got %d", rr.Code)
	}
	if rr := do(t, router, "GET", "/orders/abc", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d", rr.Code)
	}
}

// --- Status updates ---

func TestUpdateStatus_Success(t *testing.T) {
	board := &mockBoard{orders: sampleOrders()}
	router := setupRouter(board, nil, nil)

	rr := do(t, router, "PATCH", "/orders/101/status", map[string]string{"status": "Listo"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Changed bool        `json:"changed"`
		Order   order.Order `json:"order"`
	}
	decode(t, rr, &resp)
	if !resp.Changed || resp.Order.Status != order.Listo {
		t.Errorf("response: %+v", resp)
	}
	if board.updates != 1 {
		t.Errorf("updates: got %d, want 1", board.updates)
	}
}

func TestUpdateStatus_SameStatusIsNoop(t *testing.T) {
	board := &mockBoard{orders: sampleOrders()}
	router := setupRouter(board, nil, nil)

	rr := do(t, router, "PATCH", "/orders/101/status", map[string]string{"status": "EnPreparacion"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if board.updates != 0 {
		t.Errorf("no-op reached the store %d times", board.updates)
	}
}

func TestUpdateStatus_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     any
		updateFn func(ctx context.Context, id int64, status order.Status) error
		want     int
	}{
		{
			name: "invalid status",
			path: "/orders/101/status",
			body: map[string]string{"status": "Cancelado"},
			want: http.StatusBadRequest,
		},
		{
			name: "missing status",
			path: "/orders/101/status",
			body: map[string]string{},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown order rejected by backend",
			path: "/orders/999/status",
			body: map[string]string{"status": "Listo"},
			updateFn: func(ctx context.Context, id int64, status order.Status) error {
				return &order.Error{Kind: order.KindTransitionRejected, Op: "update status", OrderID: id, Err: order.ErrNotFoundOrForbidden}
			},
			want: http.StatusConflict,
		},
		{
			name: "rejected",
			path: "/orders/101/status",
			body: map[string]string{"status": "Listo"},
			updateFn: func(ctx context.Context, id int64, status order.Status) error {
				return &order.Error{Kind: order.KindTransitionRejected, Op: "update status", OrderID: id, Err: order.ErrNotFoundOrForbidden}
			},
			want: http.StatusConflict,
		},
		{
			name: "transport",
			path: "/orders/101/status",
			body: map[string]string{"status": "Listo"},
			updateFn: func(ctx context.Context, id int64, status order.Status) error {
				return &order.Error{Kind: order.KindTransitionTransport, Op: "update status", OrderID: id, Err: errors.New("connection reset")}
			},
			want: http.StatusBadGateway,
		},
		{
			name: "refetch failed after write",
			path: "/orders/101/status",
			body: map[string]string{"status": "Listo"},
			updateFn: func(ctx context.Context, id int64, status order.Status) error {
				return &order.Error{Kind: order.KindFetch, Op: "fetch orders", Err: errors.New("timeout")}
			},
			want: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := &mockBoard{orders: sampleOrders(), updateFn: tt.updateFn}
			rr := do(t, setupRouter(board, nil, nil), "PATCH", tt.path, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestUpdateStatus_OrderNotYetCached(t *testing.T) {
	board := &mockBoard{orders: sampleOrders()}
	board.updateFn = func(ctx context.Context, id int64, status order.Status) error {
		// The backend has the order; the refetch brings it into the list.
		board.orders = append(board.orders, order.Order{ID: id, Status: status})
		return nil
	}

	rr := do(t, setupRouter(board, nil, nil), "PATCH", "/orders/200/status", map[string]string{"status": "EnPreparacion"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Changed bool        `json:"changed"`
		Order   order.Order `json:"order"`
	}
	decode(t, rr, &resp)
	if !resp.Changed || resp.Order.ID != 200 || resp.Order.Status != order.EnPreparacion {
		t.Errorf("response: %+v", resp)
	}
	if board.updates != 1 {
		t.Errorf("updates: got %d, want 1", board.updates)
	}
}

func TestUpdateStatus_RejectedMessage(t *testing.T) {
	board := &mockBoard{
		orders: sampleOrders(),
		updateFn: func(ctx context.Context, id int64, status order.Status) error {
			return &order.Error{Kind: order.KindTransitionRejected, Err: order.ErrNotFoundOrForbidden}
		},
	}
	rr := do(t, setupRouter(board, nil, nil), "PATCH", "/orders/103/status", map[string]string{"status": "Entregado"})

	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] != order.ErrNotFoundOrForbidden.Error() {
		t.Errorf("error: got %q", resp["error"])
	}
}

// --- Refresh / admin ---

func TestRefresh(t *testing.T) {
	board := &mockBoard{orders: sampleOrders()}
	if rr := do(t, setupRouter(board, nil, nil), "POST", "/orders/refresh", nil); rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if board.fetches != 1 {
		t.Errorf("fetches: got %d", board.fetches)
	}

	board.fetchFn = func(ctx context.Context) error {
		return &order.Error{Kind: order.KindFetch, Op: "fetch orders", Err: errors.New("down")}
	}
	if rr := do(t, setupRouter(board, nil, nil), "POST", "/orders/refresh", nil); rr.Code != http.StatusBadGateway {
		t.Errorf("failed fetch: got %d", rr.Code)
	}
}

func TestPurge(t *testing.T) {
	calls := 0
	purger := &mockPurger{deleteFn: func(ctx context.Context) (int64, error) {
		calls++
		return 3, nil
	}}
	board := &mockBoard{orders: sampleOrders()}
	router := setupRouter(board, purger, nil)

	if rr := do(t, router, "DELETE", "/orders", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("without confirm: got %d", rr.Code)
	}
	if calls != 0 {
		t.Fatal("purged without confirmation")
	}

	rr := do(t, router, "DELETE", "/orders?confirm=true", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("confirmed: got %d", rr.Code)
	}
	var resp map[string]int64
	decode(t, rr, &resp)
	if resp["deleted"] != 3 || board.fetches != 1 {
		t.Errorf("deleted=%d fetches=%d", resp["deleted"], board.fetches)
	}
}

func TestGenerateTest(t *testing.T) {
	var gotCount int
	gen := &mockGenerator{generateFn: func(ctx context.Context, count int) ([]database.Order, error) {
		gotCount = count
		if count > service.MaxTestOrders {
			return nil, service.ErrInvalidCount
		}
		out := make([]database.Order, count)
		for i := range out {
			out[i].ID = int64(200 + i)
		}
		return out, nil
	}}
	router := setupRouter(&mockBoard{}, nil, gen)

	rr := do(t, router, "POST", "/orders/test?count=3", nil)
	if rr.Code != http.StatusCreated || gotCount != 3 {
		t.Fatalf("status %d count %d", rr.Code, gotCount)
	}

	if rr := do(t, router, "POST", "/orders/test", nil); rr.Code != http.StatusCreated || gotCount != 1 {
		t.Errorf("default count: status %d count %d", rr.Code, gotCount)
	}
	if rr := do(t, router, "POST", "/orders/test?count=x", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad count: got %d", rr.Code)
	}
	if rr := do(t, router, "POST", "/orders/test?count=500", nil); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("too many: got %d", rr.Code)
	}
}
