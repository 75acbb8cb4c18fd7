package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"sjsage522/flooringscraper/config"
	"sjsage522/flooringscraper/internal/catalog"
	"sjsage522/flooringscraper/services/store"
	"sjsage522/flooringscraper/services/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPIN = "5293"

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// MockRunner records triggered runs and blocks until released
type MockRunner struct {
	mu      sync.Mutex
	calls   [][]string
	release chan struct{}
	started chan struct{}
}

func NewMockRunner() *MockRunner {
	return &MockRunner{release: make(chan struct{}), started: make(chan struct{}, 4)}
}

func (m *MockRunner) Run(ctx context.Context, keys []string) (*worker.Report, error) {
	m.mu.Lock()
	m.calls = append(m.calls, keys)
	m.mu.Unlock()
	m.started <- struct{}{}
	<-m.release
	return &worker.Report{RunID: "run-1"}, nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *Handler, store.Store, *MockRunner) {
	t.Helper()
	st, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	runner := NewMockRunner()
	handler := NewHandler(context.Background(), st, runner, testPIN)
	router := SetupRouter(config.Config{Environment: "test"}, handler)
	return router, handler, st, runner
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheckEndpoint(t *testing.T) {
	router, _, _, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["scrape_running"])
}

func TestTriggerScrape(t *testing.T) {
	router, handler, _, runner := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/trigger-scrape", gin.H{"pin": "0000"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid PIN", decode(t, w)["error"])

	w = doJSON(router, http.MethodPost, "/api/trigger-scrape", gin.H{"pin": testPIN, "sources": []string{"homely"}})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}

	w = doJSON(router, http.MethodPost, "/api/trigger-scrape", gin.H{"pin": testPIN})
	assert.Equal(t, http.StatusConflict, w.Code)

	close(runner.release)
	handler.Wait()

	assert.Equal(t, [][]string{{"homely"}}, runner.calls)
	assert.False(t, handler.running.Load())

	w = doJSON(router, http.MethodPost, "/api/trigger-scrape", gin.H{"pin": testPIN})
	assert.Equal(t, http.StatusAccepted, w.Code)
	handler.Wait()
}

func TestTriggerScrapeMethodNotAllowed(t *testing.T) {
	router, _, _, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/trigger-scrape", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestManageSuppliersAdd(t *testing.T) {
	router, _, st, _ := setupTestRouter(t)

	add := func(data gin.H) *httptest.ResponseRecorder {
		return doJSON(router, http.MethodPost, "/api/manage-suppliers", gin.H{"pin": testPIN, "action": "add", "data": data})
	}

	w := add(gin.H{"key": "Tiles4Less", "name": "Tiles 4 Less", "url": "https://tiles4less.test/", "type": "shopify"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Tiles 4 Less added successfully!", decode(t, w)["message"])

	v, err := st.GetSupplier(context.Background(), "tiles4less")
	require.NoError(t, err)
	assert.Equal(t, "https://tiles4less.test", v.BaseURL)
	assert.Equal(t, store.DefaultColor, v.Color)
	assert.True(t, v.Enabled)
	assert.False(t, v.Protected)

	w = add(gin.H{"key": "tiles4less", "name": "Dup", "url": "https://dup.test", "type": "shopify"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = add(gin.H{"key": "x", "name": "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", decode(t, w)["error"])

	w = add(gin.H{"key": "x", "name": "X", "url": "https://x.test", "type": "magento"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = add(gin.H{"key": "x", "name": "X", "url": "x.test", "type": "woocommerce"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestManageSuppliersDelete(t *testing.T) {
	router, _, st, _ := setupTestRouter(t)
	ctx := context.Background()
	require.NoError(t, st.AddSupplier(ctx, catalog.Vendor{Key: "kevmor", DisplayName: "Kevmor", BaseURL: "https://kevmor.test", AdapterType: "custom", Protected: true, Enabled: true}))
	require.NoError(t, st.AddSupplier(ctx, catalog.Vendor{Key: "tiles", DisplayName: "Tiles", BaseURL: "https://tiles.test", AdapterType: "shopify", Enabled: true}))

	del := func(key string) *httptest.ResponseRecorder {
		return doJSON(router, http.MethodPost, "/api/manage-suppliers", gin.H{"pin": testPIN, "action": "delete", "data": gin.H{"key": key}})
	}

	w := del("kevmor")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Cannot delete protected supplier", decode(t, w)["error"])

	w = del("tiles")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Tiles removed successfully!", decode(t, w)["message"])
	_, err := st.GetSupplier(ctx, "tiles")
	assert.ErrorIs(t, err, store.ErrSupplierNotFound)

	assert.Equal(t, http.StatusNotFound, del("tiles").Code)
	assert.Equal(t, http.StatusBadRequest, del("").Code)
}

func TestManageSuppliersRejectsBadRequests(t *testing.T) {
	router, _, _, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/manage-suppliers", gin.H{"pin": "1", "action": "add"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodPost, "/api/manage-suppliers", gin.H{"pin": testPIN, "action": "rename"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid action", decode(t, w)["error"])

	req, _ := http.NewRequest(http.MethodPost, "/api/manage-suppliers", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadEndpoints(t *testing.T) {
	router, _, st, _ := setupTestRouter(t)
	ctx := context.Background()

	price := decimal.RequireFromString("45.50")
	require.NoError(t, st.ReplaceVendorCatalog(ctx, "homely", []catalog.Product{
		{Source: "homely", Name: "Oak", Price: &price, PriceDisplay: "$45.50 GST excl.", URL: "https://homely.test/oak"},
		{Source: "homely", Name: "Ash", PriceDisplay: "Contact for Price", URL: "https://homely.test/ash"},
	}))
	now := time.Now()
	require.NoError(t, st.RecordRunOutcome(ctx, catalog.RunOutcome{RunID: "r1", Source: "homely", StartedAt: now, FinishedAt: now, ProductCount: 2, ProductsWithPrice: 1, Status: catalog.StatusSuccess}))
	require.NoError(t, st.AddSupplier(ctx, catalog.Vendor{Key: "homely", DisplayName: "Homely", BaseURL: "https://homely.test", AdapterType: "woocommerce", Enabled: true}))

	w := doJSON(router, http.MethodGet, "/api/products?source=homely", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, float64(1), body["priced"])

	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodGet, "/api/products", nil).Code)

	w = doJSON(router, http.MethodGet, "/api/scrape-log?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	outcomes := decode(t, w)["outcomes"].([]interface{})
	require.Len(t, outcomes, 1)
	assert.Equal(t, "success", outcomes[0].(map[string]interface{})["status"])

	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodGet, "/api/scrape-log?limit=-1", nil).Code)

	w = doJSON(router, http.MethodGet, "/api/suppliers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["suppliers"].([]interface{}), 1)
}
