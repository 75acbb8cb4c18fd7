package server

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"sjsage522/flooringscraper/internal/catalog"
	"sjsage522/flooringscraper/logger"
	"sjsage522/flooringscraper/services/store"
	"sjsage522/flooringscraper/services/worker"

	"github.com/gin-gonic/gin"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// Runner starts a scrape batch
type Runner interface {
	Run(ctx context.Context, keys []string) (*worker.Report, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store  store.Store
	runner Runner
	pin    string

	// runCtx outlives individual requests so a triggered batch keeps going
	runCtx  context.Context
	running atomic.Bool
	wg      sync.WaitGroup
	log     *logger.Logger
}

// NewHandler creates a new HTTP handler. Triggered runs use ctx.
func NewHandler(ctx context.Context, st store.Store, runner Runner, pin string) *Handler {
	return &Handler{
		store:  st,
		runner: runner,
		pin:    pin,
		runCtx: ctx,
		log:    logger.ForServer(),
	}
}

// Wait blocks until a triggered batch has finished
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) pinOK(pin string) bool {
	return subtle.ConstantTimeCompare([]byte(pin), []byte(h.pin)) == 1
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "flooring-scraper",
		"scrape_running": h.running.Load(),
	})
}

type triggerRequest struct {
	PIN     string   `json:"pin"`
	Sources []string `json:"sources"`
}

// TriggerScrape starts a batch in the background. Only one batch runs at a time.
func (h *Handler) TriggerScrape(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.pinOK(req.PIN) {
		fail(c, http.StatusForbidden, "Invalid PIN")
		return
	}
	if !h.running.CompareAndSwap(false, true) {
		fail(c, http.StatusConflict, "A scrape is already running")
		return
	}

	h.wg.Add(1)
	go func(keys []string) {
		defer h.wg.Done()
		defer h.running.Store(false)

		report, err := h.runner.Run(h.runCtx, keys)
		if err != nil {
			h.log.Error().Err(err).Strs("sources", keys).Msg("Triggered scrape failed")
			return
		}
		h.log.Info().
			Str("run_id", report.RunID).
			Int("vendors", len(report.Outcomes)).
			Int("failed", report.Failed()).
			Msg("Triggered scrape finished")
	}(req.Sources)

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Scrape triggered! Data will update in a few minutes.",
	})
}

type supplierData struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Type      string `json:"type"`
	Color     string `json:"color"`
	Protected bool   `json:"protected"`
}

type manageRequest struct {
	PIN    string       `json:"pin"`
	Action string       `json:"action"`
	Data   supplierData `json:"data"`
}

// ManageSuppliers adds or removes registry rows
func (h *Handler) ManageSuppliers(c *gin.Context) {
	var req manageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.pinOK(req.PIN) {
		fail(c, http.StatusForbidden, "Invalid PIN")
		return
	}

	switch req.Action {
	case "add":
		h.addSupplier(c, req.Data)
	case "delete":
		h.deleteSupplier(c, req.Data.Key)
	default:
		fail(c, http.StatusBadRequest, "Invalid action")
	}
}

func (h *Handler) addSupplier(c *gin.Context, data supplierData) {
	data.Key = strings.ToLower(strings.TrimSpace(data.Key))
	data.Name = strings.TrimSpace(data.Name)
	data.URL = strings.TrimSpace(data.URL)
	if data.Key == "" || data.Name == "" || data.URL == "" || data.Type == "" {
		fail(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	if _, ok := catalog.AdapterType(data.Type).Normalize(); !ok {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Unknown supplier type %q", data.Type))
		return
	}
	if u, err := url.Parse(data.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fail(c, http.StatusBadRequest, "Supplier url must be an absolute http(s) URL")
		return
	}

	vendor := catalog.Vendor{
		Key:         data.Key,
		DisplayName: data.Name,
		BaseURL:     strings.TrimSuffix(data.URL, "/"),
		AdapterType: catalog.AdapterType(strings.ToLower(data.Type)),
		Color:       data.Color,
		Protected:   data.Protected,
		Enabled:     true,
	}
	err := h.store.AddSupplier(c.Request.Context(), vendor)
	switch {
	case stderrors.Is(err, store.ErrSupplierExists):
		fail(c, http.StatusConflict, "Supplier key already exists")
		return
	case err != nil:
		logger.LogError("server", err, "Failed to add supplier %s", data.Key)
		fail(c, http.StatusInternalServerError, "Failed to add supplier: "+err.Error())
		return
	}

	h.log.Info().Str("vendor", data.Key).Msg("Supplier added")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": data.Name + " added successfully!"})
}

func (h *Handler) deleteSupplier(c *gin.Context, key string) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		fail(c, http.StatusBadRequest, "Missing supplier key")
		return
	}

	ctx := c.Request.Context()
	supplier, err := h.store.GetSupplier(ctx, key)
	switch {
	case stderrors.Is(err, store.ErrSupplierNotFound):
		fail(c, http.StatusNotFound, "Supplier not found")
		return
	case err != nil:
		logger.LogError("server", err, "Failed to look up supplier %s", key)
		fail(c, http.StatusInternalServerError, "Failed to remove supplier: "+err.Error())
		return
	}
	if supplier.Protected {
		fail(c, http.StatusForbidden, "Cannot delete protected supplier")
		return
	}

	if err := h.store.DeleteSupplier(ctx, key); err != nil && !stderrors.Is(err, store.ErrSupplierNotFound) {
		logger.LogError("server", err, "Failed to delete supplier %s", key)
		fail(c, http.StatusInternalServerError, "Failed to remove supplier: "+err.Error())
		return
	}

	name := supplier.DisplayName
	if name == "" {
		name = key
	}
	h.log.Info().Str("vendor", key).Msg("Supplier removed")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": name + " removed successfully!"})
}

// ListSuppliers returns the registry
func (h *Handler) ListSuppliers(c *gin.Context) {
	suppliers, err := h.store.ListSuppliers(c.Request.Context())
	if err != nil {
		logger.LogError("server", err, "Failed to list suppliers")
		fail(c, http.StatusInternalServerError, "Failed to list suppliers")
		return
	}
	if suppliers == nil {
		suppliers = []catalog.Vendor{}
	}
	c.JSON(http.StatusOK, gin.H{"suppliers": suppliers})
}

// ListProducts returns the stored catalog for one source
func (h *Handler) ListProducts(c *gin.Context) {
	source := strings.ToLower(strings.TrimSpace(c.Query("source")))
	if source == "" {
		fail(c, http.StatusBadRequest, "source is required")
		return
	}
	products, err := h.store.ListProducts(c.Request.Context(), source)
	if err != nil {
		logger.LogError("server", err, "Failed to list products for %s", source)
		fail(c, http.StatusInternalServerError, "Failed to list products")
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	c.JSON(http.StatusOK, gin.H{
		"source":   source,
		"count":    len(products),
		"priced":   catalog.CountPriced(products),
		"products": products,
	})
}

// ScrapeLog returns the most recent run outcomes
func (h *Handler) ScrapeLog(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogLimit)
	}

	outcomes, err := h.store.ListRunOutcomes(c.Request.Context(), limit)
	if err != nil {
		logger.LogError("server", err, "Failed to read scrape log")
		fail(c, http.StatusInternalServerError, "Failed to read scrape log")
		return
	}
	if outcomes == nil {
		outcomes = []catalog.RunOutcome{}
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}
