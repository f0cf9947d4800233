package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) getStatus(c *gin.Context) {
	respondOK(c, h.sched.Status(c.Request.Context()))
}

func (h *Handler) getPerformance(c *gin.Context) {
	respondOK(c, h.freq.GetPerformanceMetrics(c.Request.Context()))
}

func clampInt(v int, lo int, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (h *Handler) getStatusHistory(c *gin.Context) {
	hours, err := queryInt(c, "hours", 24)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid hours", "hours must be an integer")
		return
	}
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid limit", "limit must be an integer")
		return
	}
	hours = clampInt(hours, 1, 168)
	limit = clampInt(limit, 1, 1000)

	cacheKey := fmt.Sprintf("status-history-%d-%d", hours, limit)
	if cached, found := h.cache.Get(cacheKey); found {
		respondHistory(c, cached, hours, limit)
		return
	}

	history, err := h.store.StatusHistory(c.Request.Context(), hours, limit)
	if err != nil {
		zap.S().Errorf("Failed to load status history: %s", err)
		respondError(c, http.StatusInternalServerError, "failed to load status history", "temporarily unavailable")
		return
	}
	h.cache.SetDefault(cacheKey, history)
	respondHistory(c, history, hours, limit)
}

func respondHistory(c *gin.Context, history any, hours int, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       history,
		"parameters": gin.H{"hours": hours, "limit": limit},
		"timestamp":  time.Now(),
	})
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) startScheduler(c *gin.Context) {
	result := h.sched.Start(c.Request.Context())
	code := http.StatusOK
	if !result.Success {
		code = http.StatusBadRequest
	}
	c.JSON(code, gin.H{
		"success":   result.Success,
		"message":   result.Message,
		"status":    result.Status,
		"config":    result.Config,
		"timestamp": time.Now(),
	})
}

func (h *Handler) stopScheduler(c *gin.Context) {
	result := h.sched.Stop(c.Request.Context())
	code := http.StatusOK
	if !result.Success {
		code = http.StatusInternalServerError
	}
	c.JSON(code, gin.H{
		"success":   result.Success,
		"message":   result.Message,
		"status":    result.Status,
		"timestamp": time.Now(),
	})
}

type intervalsRequest struct {
	SensorInterval *int `json:"sensorInterval"`
	RFIDInterval   *int `json:"rfidInterval"`
}

func (h *Handler) updateIntervals(c *gin.Context) {
	var req intervalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.SensorInterval == nil && req.RFIDInterval == nil {
		respondError(c, http.StatusBadRequest, "missing parameters", "provide sensorInterval or rfidInterval")
		return
	}

	result := h.sched.UpdateIntervals(c.Request.Context(), req.SensorInterval, req.RFIDInterval)
	code := http.StatusOK
	if !result.Success {
		code = http.StatusBadRequest
	}
	c.JSON(code, gin.H{
		"success":   result.Success,
		"message":   result.Message,
		"status":    result.Status,
		"config":    result.Config,
		"timestamp": time.Now(),
	})
}

func (h *Handler) testSensor(c *gin.Context) {
	result := h.sched.ForceCollectSensorData(c.Request.Context())
	code := http.StatusOK
	if !result.Success {
		code = http.StatusBadRequest
	}
	c.JSON(code, gin.H{
		"success":   result.Success,
		"message":   result.Message,
		"timestamp": result.Timestamp,
	})
}

func (h *Handler) testRFID(c *gin.Context) {
	result := h.sched.ForceScanRFIDDevices(c.Request.Context())
	code := http.StatusOK
	if !result.Success {
		code = http.StatusBadRequest
	}
	c.JSON(code, gin.H{
		"success":   result.Success,
		"message":   result.Message,
		"timestamp": result.Timestamp,
	})
}

func (h *Handler) getStatistics(c *gin.Context) {
	const cacheKey = "collection-statistics"
	if cached, found := h.cache.Get(cacheKey); found {
		respondOK(c, cached)
		return
	}

	statistics := h.sched.Status(c.Request.Context()).Statistics
	h.cache.SetDefault(cacheKey, statistics)
	respondOK(c, statistics)
}
