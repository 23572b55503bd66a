package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/database"
	"github.com/cuckooeats/backoffice/internal/detail"
	"github.com/cuckooeats/backoffice/internal/history"
	"github.com/cuckooeats/backoffice/internal/kanban"
	"github.com/cuckooeats/backoffice/internal/order"
	"github.com/cuckooeats/backoffice/internal/store"
)

const defaultTestOrders = 1

// OrderBoard is the process-level order store.
// Satisfied by *store.Store; narrow interface for testability.
type OrderBoard interface {
	Snapshot() store.Snapshot
	Order(id int64) (order.Order, bool)
	FetchOrders(ctx context.Context) error
	UpdateOrderStatus(ctx context.Context, id int64, status order.Status) error
}

// OrderPurger deletes every order. Satisfied by *repository.Repository.
type OrderPurger interface {
	DeleteAll(ctx context.Context) (int64, error)
}

// TestOrderGenerator is satisfied by *service.OrderService.
type TestOrderGenerator interface {
	GenerateTestOrders(ctx context.Context, count int) ([]database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	board  OrderBoard
	purger OrderPurger
	gen    TestOrderGenerator
	loc    *time.Location
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler. History dates are read in loc.
func NewOrderHandler(board OrderBoard, purger OrderPurger, gen TestOrderGenerator, loc *time.Location, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &OrderHandler{board: board, purger: purger, gen: gen, loc: loc, logger: logger}
}

// RegisterRoutes registers the staff order endpoints.
// Expected to be mounted at /orders behind authentication.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/board", h.Board)
	r.Get("/history", h.History)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/refresh", h.Refresh)
}

// RegisterAdminRoutes registers the destructive endpoints.
// Expected to be mounted at /orders behind RequireRole(Administrador).
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/", h.Purge)
	r.Post("/test", h.GenerateTest)
}

// --- Request / Response types ---

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

type listResponse struct {
	Orders  []order.Order `json:"orders"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
}

type boardResponse struct {
	Columns []kanban.Column `json:"columns"`
	Error   string          `json:"error,omitempty"`
}

type historyResponse struct {
	Date    string        `json:"date,omitempty"`
	Orders  []order.Order `json:"orders"`
	Empty   string        `json:"empty,omitempty"`
	Message string        `json:"message,omitempty"`
}

type orderResponse struct {
	Order  order.Order `json:"order"`
	Detail detail.View `json:"detail"`
}

type statusResponse struct {
	Changed bool        `json:"changed"`
	Order   order.Order `json:"order"`
}

// --- Handlers ---

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.board.Snapshot()
	writeJSON(w, http.StatusOK, listResponse{Orders: snap.Orders, Loading: snap.Loading, Error: snap.Error})
}

// Board handles GET /orders/board.
func (h *OrderHandler) Board(w http.ResponseWriter, r *http.Request) {
	snap := h.board.Snapshot()
	writeJSON(w, http.StatusOK, boardResponse{Columns: kanban.Columns(snap.Orders, 0), Error: snap.Error})
}

// History handles GET /orders/history?date=YYYY-MM-DD.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	var filter *history.Date
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := history.ParseDate(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		filter = &d
	}

	res := history.Delivered(h.board.Snapshot().Orders, filter, h.loc)
	resp := historyResponse{Orders: res.Orders}
	if filter != nil {
		resp.Date = filter.String()
	}
	if res.Empty != history.EmptyNone {
		resp.Empty = res.Empty.String()
		resp.Message = res.Empty.Message()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	o, found := h.board.Order(id)
	if !found {
		writeOrderError(w, h.logger, order.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{Order: o, Detail: detail.Build(o)})
}

// UpdateStatus handles PATCH /orders/{id}/status. Setting the status an
// order already has is accepted and changes nothing. An id missing from the
// cached list still goes to the backend, which is the authority on whether
// the order exists.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	status := order.Status(req.Status)

	current, cached := h.board.Order(id)
	if cached && current.Status == status {
		writeJSON(w, http.StatusOK, statusResponse{Changed: false, Order: current})
		return
	}

	if err := h.board.UpdateOrderStatus(r.Context(), id, status); err != nil {
		if order.KindOf(err) != order.KindFetch {
			writeOrderError(w, h.logger, err)
			return
		}
		// The write went through; only the refetch behind it failed.
		h.logger.Warn("refetch after status update failed", zap.Int64("order_id", id), zap.Error(err))
	}

	updated, found := h.board.Order(id)
	if !found || updated.Status != status {
		if cached {
			updated = current
		} else {
			updated = order.Order{ID: id}
		}
		updated.Status = status
	}
	writeJSON(w, http.StatusOK, statusResponse{Changed: true, Order: updated})
}

// Refresh handles POST /orders/refresh.
func (h *OrderHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.board.FetchOrders(r.Context()); err != nil {
		writeOrderError(w, h.logger, err)
		return
	}
	snap := h.board.Snapshot()
	writeJSON(w, http.StatusOK, listResponse{Orders: snap.Orders})
}

// Purge handles DELETE /orders?confirm=true.
func (h *OrderHandler) Purge(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "confirm=true is required to delete all orders"})
		return
	}

	n, err := h.purger.DeleteAll(r.Context())
	if err != nil {
		writeOrderError(w, h.logger, err)
		return
	}
	h.logger.Warn("all orders deleted", zap.Int64("count", n))

	// Deletes are not announced on the change feed.
	if err := h.board.FetchOrders(r.Context()); err != nil {
		h.logger.Warn("refetch after purge failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// GenerateTest handles POST /orders/test?count=N.
func (h *OrderHandler) GenerateTest(w http.ResponseWriter, r *http.Request) {
	count := defaultTestOrders
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid count"})
			return
		}
		count = n
	}

	created, err := h.gen.GenerateTestOrders(r.Context(), count)
	if err != nil {
		if isGeneratorInputError(err) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("generate test orders", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	ids := make([]int64, len(created))
	for i, o := range created {
		ids[i] = o.ID
	}
	writeJSON(w, http.StatusCreated, map[string]any{"created": len(created), "ids": ids})
}

// --- Helpers ---

func parseOrderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return 0, false
	}
	return id, true
}
