//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kopibar/pos/internal/appstate"
	"github.com/kopibar/pos/internal/cache"
	"github.com/kopibar/pos/internal/config"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/router"
	"github.com/kopibar/pos/internal/ws"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

// TestIntegrationFlow exercises one business day against a real PostgreSQL
// database: open the store, sell a drink, walk it through the kitchen and
// drink station, settle it and close the day.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:              "8081",
		DatabaseURL:       connStr,
		JWTSecret:         "integration-test-secret",
		AnalyticsCacheTTL: time.Minute,
		ActiveOrderWindow: 24 * time.Hour,
		SessionRetention:  24 * time.Hour,
		CORSOrigins:       []string{"http://localhost:5173"},
	}
	queries := database.New(pool)

	state := appstate.New(queries)
	if err := state.Load(ctx); err != nil {
		t.Fatalf("load app state: %v", err)
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := ws.NewHub()
	go hub.Run(hubCtx)

	server := httptest.NewServer(router.New(cfg, queries, pool, state, cache.NewMemory(), hub))
	defer server.Close()

	// --- 1. Bootstrap admin and log in ---
	createAdmin(t, ctx, queries, "admin", "password123")
	token := login(t, server, "admin", "password123")

	// --- 2. Store is closed: orders are refused ---
	status := httpJSON(t, server, http.MethodGet, "/admin/status", nil, token, http.StatusOK)
	if status["status"] != enum.SessionStatusClosed {
		t.Fatalf("initial status: got %v", status["status"])
	}

	// --- 3. Menu and add-ons ---
	addons := []map[string]interface{}{{
		"name":          "Milk",
		"max":           1,
		"allowed_types": []string{enum.ItemTypeDrink},
		"options":       []interface{}{map[string]interface{}{"name": "Oat Milk", "price": "25"}},
	}}
	httpJSONRaw(t, server, http.MethodPut, "/settings/global-addons", addons, token, http.StatusOK)

	latte := httpJSON(t, server, http.MethodPost, "/menu", map[string]interface{}{
		"name":     "Latte",
		"price":    "120",
		"category": "Coffee",
		"type":     enum.ItemTypeDrink,
		"flavors": []map[string]interface{}{{
			"name":    "Size",
			"max":     1,
			"options": []interface{}{"Small", map[string]interface{}{"name": "Large", "price": "20"}},
		}},
	}, token, http.StatusCreated)
	latteID := latte["id"].(string)

	orderBody := map[string]interface{}{
		"customer_name":  "Ana",
		"table_number":   "4",
		"order_type":     enum.OrderTypeDineIn,
		"payment_method": enum.PaymentMethodPayLater,
		"items": []map[string]interface{}{{
			"menu_item_id":     latteID,
			"quantity":         2,
			"selected_flavors": []string{"Large", "Oat Milk"},
		}},
	}
	httpJSON(t, server, http.MethodPost, "/orders", orderBody, token, http.StatusForbidden)

	// --- 4. Open the day and sell ---
	httpJSON(t, server, http.MethodPost, "/admin/open-day", nil, token, http.StatusCreated)
	httpJSON(t, server, http.MethodPost, "/admin/open-day", nil, token, http.StatusConflict)

	order := httpJSON(t, server, http.MethodPost, "/orders", orderBody, token, http.StatusCreated)
	orderID := order["id"].(string)

	// (120 + 20 + 25) * 2
	if order["total"] != "330.00" {
		t.Fatalf("order total: got %v, want 330.00", order["total"])
	}
	if order["payment_status"] != enum.PaymentStatusPending {
		t.Fatalf("payment_status: got %v", order["payment_status"])
	}

	// --- 5. Kitchen flow ---
	setStatus := func(next string, want int) map[string]interface{} {
		return httpJSON(t, server, http.MethodPatch, fmt.Sprintf("/orders/%s/status", orderID),
			map[string]interface{}{"status": next}, token, want)
	}
	setStatus(enum.OrderStatusPreparing, http.StatusOK)
	setStatus(enum.OrderStatusReady, http.StatusOK)
	setStatus(enum.OrderStatusCompleted, http.StatusConflict) // unpaid

	var tickets []map[string]interface{}
	decodeInto(t, httpJSONRaw(t, server, http.MethodGet, "/drink-tickets", nil, token, http.StatusOK), &tickets)
	if len(tickets) != 1 || tickets[0]["order_id"] != orderID {
		t.Fatalf("drink tickets: got %v", tickets)
	}
	ticketID := tickets[0]["id"].(string)
	httpJSON(t, server, http.MethodPatch, fmt.Sprintf("/drink-tickets/%s/complete", ticketID), nil, token, http.StatusOK)

	// --- 6. Settle and complete ---
	paid := httpJSON(t, server, http.MethodPatch, fmt.Sprintf("/orders/%s/pay", orderID), map[string]interface{}{
		"payment_method":  enum.PaymentMethodCash,
		"amount_tendered": "400",
	}, token, http.StatusOK)
	if paid["payment_status"] != enum.PaymentStatusPaid || paid["change_amount"] != "70.00" {
		t.Fatalf("pay: got %v", paid)
	}
	done := setStatus(enum.OrderStatusCompleted, http.StatusOK)
	if done["status"] != enum.OrderStatusCompleted {
		t.Fatalf("complete: got %v", done["status"])
	}

	var active []map[string]interface{}
	decodeInto(t, httpJSONRaw(t, server, http.MethodGet, "/orders", nil, token, http.StatusOK), &active)
	if len(active) != 1 {
		t.Fatalf("active orders before close: got %d, want 1", len(active))
	}

	// --- 7. Close the day ---
	summary := httpJSON(t, server, http.MethodPost, "/admin/close-day", nil, token, http.StatusOK)
	if summary["total_orders"] != float64(1) || summary["total_sales"] != "330.00" {
		t.Fatalf("close summary: got %v", summary)
	}

	active = nil
	decodeInto(t, httpJSONRaw(t, server, http.MethodGet, "/orders", nil, token, http.StatusOK), &active)
	if len(active) != 0 {
		t.Fatalf("active orders after close: got %d, want 0", len(active))
	}

	history := httpJSON(t, server, http.MethodGet, "/admin/history", nil, token, http.StatusOK)
	sessions, _ := history["sessions"].([]interface{})
	if len(sessions) != 1 || history["total"] != float64(1) {
		t.Fatalf("history: got %v", history)
	}
	sessionID := sessions[0].(map[string]interface{})["id"].(string)

	detail := httpJSON(t, server, http.MethodGet, "/admin/history/"+sessionID, nil, token, http.StatusOK)
	orders, _ := detail["orders"].([]interface{})
	if len(orders) != 1 {
		t.Fatalf("session detail orders: got %d, want 1", len(orders))
	}

	analytics := httpJSON(t, server, http.MethodGet, "/admin/analytics?range=today", nil, token, http.StatusOK)
	if analytics["total_sales"] != "330.00" {
		t.Fatalf("analytics: got %v", analytics)
	}
}

// --- Helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pos_test"),
		tcpostgres.WithUsername("pos"),
		tcpostgres.WithPassword("pos"),
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
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Go test sets cwd to the package directory (internal/handler/).
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createAdmin(t *testing.T, ctx context.Context, q *database.Queries, username, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := q.CreateUser(ctx, database.CreateUserParams{
		Username:       username,
		HashedPassword: string(hash),
		FullName:       "Integration Admin",
		Role:           enum.UserRoleAdmin,
	}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
}

func login(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()
	resp := httpJSON(t, server, http.MethodPost, "/auth/login", map[string]interface{}{
		"username": username,
		"password": password,
	}, "", http.StatusOK)
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

func httpJSON(t *testing.T, server *httptest.Server, method, path string, body interface{}, token string, want int) map[string]interface{} {
	t.Helper()
	raw := httpJSONRaw(t, server, method, path, body, token, want)
	var out map[string]interface{}
	decodeInto(t, raw, &out)
	return out
}

func httpJSONRaw(t *testing.T, server *httptest.Server, method, path string, body interface{}, token string, want int) []byte {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d; body: %s", method, path, resp.StatusCode, want, out.String())
	}
	return out.Bytes()
}
