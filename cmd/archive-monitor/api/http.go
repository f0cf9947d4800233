// Package api exposes the collection control surface over REST.
package api

import (
	"context"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/collection"
	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

// StatusStore is the slice of the persistence layer the API reads directly.
type StatusStore interface {
	StatusHistory(ctx context.Context, hours int, limit int) ([]shared.CollectionStatus, error)
	IsAvailable() bool
}

// Handler bundles the services behind the REST surface. Statistics and
// status-history responses are cached for a few seconds since dashboards
// poll them aggressively.
type Handler struct {
	freq  *collection.Controller
	sched *collection.Scheduler
	store StatusStore
	cache *cache.Cache
}

const responseCacheTTL = 5 * time.Second

// NewRouter builds the gin engine with all collection routes mounted.
func NewRouter(freq *collection.Controller, sched *collection.Scheduler, store StatusStore) *gin.Engine {
	h := &Handler{
		freq:  freq,
		sched: sched,
		store: store,
		cache: cache.New(responseCacheTTL, 2*responseCacheTTL),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(zap.L(), true))

	router.GET("/", func(c *gin.Context) {
		if !h.store.IsAvailable() {
			c.String(http.StatusServiceUnavailable, "degraded")
			return
		}
		c.String(http.StatusOK, "online")
	})

	config := router.Group("/api/collection")
	{
		config.GET("/config", h.getConfig)
		config.POST("/config", h.updateConfig)
		config.POST("/control", h.controlCollection)
		config.POST("/config/validate", h.validateConfig)
		config.POST("/config/reset", h.resetConfig)
		config.GET("/config/history", h.getConfigHistory)
		config.GET("/config/export", h.exportConfig)
		config.POST("/config/import", h.importConfig)
	}

	status := router.Group("/api/collection-status")
	{
		status.GET("/status", h.getStatus)
		status.GET("/performance", h.getPerformance)
		status.GET("/status/history", h.getStatusHistory)
		status.POST("/scheduler/start", h.startScheduler)
		status.POST("/scheduler/stop", h.stopScheduler)
		status.PUT("/scheduler/intervals", h.updateIntervals)
		status.POST("/test/sensor", h.testSensor)
		status.POST("/test/rfid", h.testRFID)
		status.GET("/statistics", h.getStatistics)
	}

	return router
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      data,
		"timestamp": time.Now(),
	})
}

func respondError(c *gin.Context, code int, errorLabel string, message string) {
	c.JSON(code, gin.H{
		"success":   false,
		"error":     errorLabel,
		"message":   message,
		"timestamp": time.Now(),
	})
}
