package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/auth"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/inventory"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/observability"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/rbac"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

type stubStock struct{}

func (stubStock) GetStock(ctx context.Context, id int64) (inventory.StockRecord, error) {
	if id != 1 {
		return inventory.StockRecord{}, inventory.ErrStockNotFound
	}
	return inventory.StockRecord{ID: 1, MedicationID: 10, BatchNumber: "B1", Quantity: 750, PricePerUnit: decimal.RequireFromString("12")}, nil
}

func (s stubStock) ListStock(ctx context.Context, filter inventory.StockFilter) ([]inventory.StockRecord, error) {
	rec, _ := s.GetStock(ctx, 1)
	return []inventory.StockRecord{rec}, nil
}

func (stubStock) ListMovements(ctx context.Context, stockID int64, limit int) ([]inventory.Movement, error) {
	return []inventory.Movement{}, nil
}

const testSecret = "router-test-secret-router-test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000}
	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		Tokens:           auth.NewTokenService(testSecret, "test"),
		InventoryHandler: inventory.NewHandler(logger, stubStock{}, rbac.Middleware{Logger: logger}),
		Metrics:          observability.NewMetrics(),
	})
}

func bearer(t *testing.T, perms ...string) string {
	t.Helper()
	raw, err := auth.NewTokenService(testSecret, "test").Issue(shared.Actor{ID: 5, Permissions: perms}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + raw
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRequiresBearerToken(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pharmacy/stock/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pharmacy/stock/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterEnforcesPermissions(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pharmacy/stock/", nil)
	req.Header.Set("Authorization", bearer(t, "other.permission"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/pharmacy/stock/", nil)
	req.Header.Set("Authorization", bearer(t, shared.PermStockView))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"batch_number":"B1"`)
}

func TestRouterNotFoundIsProblem(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "json")
}
