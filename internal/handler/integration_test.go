//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/cuckooeats/backoffice/internal/auth"
	"github.com/cuckooeats/backoffice/internal/config"
	"github.com/cuckooeats/backoffice/internal/database"
	"github.com/cuckooeats/backoffice/internal/enum"
	"github.com/cuckooeats/backoffice/internal/handler"
	"github.com/cuckooeats/backoffice/internal/metrics"
	"github.com/cuckooeats/backoffice/internal/realtime"
	"github.com/cuckooeats/backoffice/internal/repository"
	"github.com/cuckooeats/backoffice/internal/router"
	"github.com/cuckooeats/backoffice/internal/seed"
	"github.com/cuckooeats/backoffice/internal/service"
	"github.com/cuckooeats/backoffice/internal/store"
	"github.com/cuckooeats/backoffice/internal/ws"
)

const integrationSecret = "integration-test-secret"

type orderJSON struct {
	ID          int64      `json:"id"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at"`
	ReadyAt     *time.Time `json:"ready_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
}

// TestIntegrationFlow drives the order lifecycle through the router against a
// real PostgreSQL database, including the trigger-backed change feed.
func TestIntegrationFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start PostgreSQL container
	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	if err := database.MigrateUp(connStr); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	logger := zaptest.NewLogger(t)
	m := metrics.New()

	// --- 1. Seed catalog and customers ---
	seeder := seed.New(pool, func(db database.DBTX) seed.Store { return database.New(db) }, logger)
	if _, err := seeder.Run(ctx, seed.Options{AdminEmail: "admin@test.local", Customers: 3}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// --- 2. Wire the feed, board and router the way the app does ---
	repo := repository.New(database.New(pool), pool, func(db database.DBTX) repository.Store {
		return database.New(db)
	}, m)
	hub := realtime.NewHub(logger)
	go hub.Run(ctx)
	src := realtime.NewPostgresSource(pool, "orders_changes", logger)
	go realtime.Pump(ctx, src, hub, logger, m, time.Second)

	board := store.New(repo, logger)
	board.SetSubscriber(realtime.NewListener(hub, board.FetchOrders, nil, nil, logger, m))
	if err := board.Start(ctx); err != nil {
		t.Fatalf("start board: %v", err)
	}
	defer board.Close()

	svc := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore { return database.New(db) })
	orders := handler.NewOrderHandler(board, repo, svc, time.UTC, logger)
	registry := ws.NewRegistry()
	defer registry.Shutdown()

	cfg := &config.Config{
		JWTSecret:      integrationSecret,
		AllowedOrigins: []string{"*"},
		Observability:  config.Observability{ServiceName: "backoffice-test", MetricsPath: "/metrics"},
	}
	r := router.New(router.Params{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Orders:   orders,
		WS:       ws.NewHandler(ws.Deps{Repo: repo, Feed: hub, Logger: logger, Metrics: m}, registry, nil),
		DB:       pool,
		Sessions: registry,
	})
	server := httptest.NewServer(r)
	defer server.Close()

	admin := issueToken(t, enum.UserRoleAdministrador)
	operator := issueToken(t, enum.UserRoleOperador)

	// --- 3. Operators cannot generate; admins can ---
	resp := doJSON(t, server, http.MethodPost, "/orders/test?count=3", nil, operator)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("operator generate: got %d, want 403", resp.StatusCode)
	}
	resp = doJSON(t, server, http.MethodPost, "/orders/test?count=3", nil, admin)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin generate: got %d, want 201", resp.StatusCode)
	}
	var created struct {
		Created int     `json:"created"`
		IDs     []int64 `json:"ids"`
	}
	decode(t, resp, &created)
	if created.Created != 3 {
		t.Fatalf("created: got %d, want 3", created.Created)
	}

	// --- 4. The inserts reach the board through the change feed ---
	waitFor(t, func() bool { return len(listOrders(t, server, operator)) == 3 })

	id := created.IDs[0]
	path := fmt.Sprintf("/orders/%d/status", id)

	// --- 5. Forward through the workflow stamps each stage ---
	for _, status := range []string{enum.OrderStatusEnPreparacion, enum.OrderStatusListo, enum.OrderStatusEntregado} {
		resp = doJSON(t, server, http.MethodPatch, path, map[string]string{"status": status}, operator)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("set %s: got %d", status, resp.StatusCode)
		}
		resp.Body.Close()
	}
	o := findOrder(t, listOrders(t, server, operator), id)
	if o.Status != enum.OrderStatusEntregado {
		t.Fatalf("status: got %s, want %s", o.Status, enum.OrderStatusEntregado)
	}
	if o.StartedAt == nil || o.ReadyAt == nil || o.DeliveredAt == nil {
		t.Fatalf("expected every stage timestamp, got %+v", o)
	}

	// --- 6. Moving backwards keeps the earlier stamps ---
	resp = doJSON(t, server, http.MethodPatch, path, map[string]string{"status": enum.OrderStatusRecibido}, operator)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move back: got %d", resp.StatusCode)
	}
	resp.Body.Close()
	back := findOrder(t, listOrders(t, server, operator), id)
	if back.Status != enum.OrderStatusRecibido || back.DeliveredAt == nil || !back.DeliveredAt.Equal(*o.DeliveredAt) {
		t.Fatalf("timestamps should survive a backwards move: %+v", back)
	}

	// --- 7. History lists only delivered orders ---
	other := fmt.Sprintf("/orders/%d/status", created.IDs[1])
	resp = doJSON(t, server, http.MethodPatch, other, map[string]string{"status": enum.OrderStatusEntregado}, operator)
	resp.Body.Close()
	resp = doJSON(t, server, http.MethodGet, "/orders/history", nil, operator)
	var hist struct {
		Orders []orderJSON `json:"orders"`
	}
	decode(t, resp, &hist)
	if len(hist.Orders) != 1 || hist.Orders[0].ID != created.IDs[1] {
		t.Fatalf("history: got %+v, want only order %d", hist.Orders, created.IDs[1])
	}

	// --- 8. Purge needs admin and confirmation ---
	resp = doJSON(t, server, http.MethodDelete, "/orders", nil, admin)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("purge without confirm: got %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
	resp = doJSON(t, server, http.MethodDelete, "/orders?confirm=true", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purge: got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if n := len(listOrders(t, server, operator)); n != 0 {
		t.Fatalf("after purge: got %d orders, want 0", n)
	}

	// --- 9. Health reports the database ---
	resp, err = http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("cafeteria_test"),
		tcpostgres.WithUsername("cafeteria"),
		tcpostgres.WithPassword("cafeteria"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
	return connStr, cleanup
}

func issueToken(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(integrationSecret, uuid.New(), role, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, server *httptest.Server, method, path string, body any, token string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func listOrders(t *testing.T, server *httptest.Server, token string) []orderJSON {
	t.Helper()
	var body struct {
		Orders []orderJSON `json:"orders"`
	}
	decode(t, doJSON(t, server, http.MethodGet, "/orders", nil, token), &body)
	return body.Orders
}

func findOrder(t *testing.T, orders []orderJSON, id int64) orderJSON {
	t.Helper()
	for _, o := range orders {
		if o.ID == id {
			return o
		}
	}
	t.Fatalf("order %d not found", id)
	return orderJSON{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
