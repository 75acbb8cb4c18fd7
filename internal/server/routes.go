// Package server exposes the admin HTTP API for the supplier registry,
// scrape triggering and the stored catalog.
package server

import (
	"sjsage522/flooringscraper/config"

	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg config.Config, handler *Handler) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())

	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/trigger-scrape", handler.TriggerScrape)
		api.POST("/manage-suppliers", handler.ManageSuppliers)
		api.GET("/suppliers", handler.ListSuppliers)
		api.GET("/products", handler.ListProducts)
		api.GET("/scrape-log", handler.ScrapeLog)
	}

	return router
}
