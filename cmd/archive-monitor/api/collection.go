package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/collection"
	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

type updateConfigRequest struct {
	SensorInterval *int   `json:"sensorInterval"`
	RFIDInterval   *int   `json:"rfidInterval"`
	IsPaused       *bool  `json:"isPaused"`
	UpdatedBy      string `json:"updatedBy"`
}

func (r updateConfigRequest) toUpdate() shared.ConfigUpdate {
	return shared.ConfigUpdate{
		SensorInterval: r.SensorInterval,
		RFIDInterval:   r.RFIDInterval,
		IsPaused:       r.IsPaused,
	}
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "api_user"
	}
	return actor
}

func (h *Handler) getConfig(c *gin.Context) {
	respondOK(c, h.freq.GetCurrentConfig(c.Request.Context()))
}

func (h *Handler) updateConfig(c *gin.Context) {
	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	validation := h.freq.ValidateConfig(req.toUpdate())
	if !validation.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "configuration validation failed",
			"errors":    validation.Errors,
			"warnings":  validation.Warnings,
			"timestamp": time.Now(),
		})
		return
	}

	result := h.freq.UpdateConfig(c.Request.Context(), req.toUpdate(), actorOrDefault(req.UpdatedBy))
	if !result.Success {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "configuration update failed",
			"message":   result.Message,
			"data":      result.Config,
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   result.Message,
		"data":      result.Config,
		"warnings":  validation.Warnings,
		"timestamp": time.Now(),
	})
}

type controlRequest struct {
	Action    string `json:"action"`
	UpdatedBy string `json:"updatedBy"`
}

func (h *Handler) controlCollection(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	actor := actorOrDefault(req.UpdatedBy)
	ctx := c.Request.Context()

	var result collection.ControlResult
	switch req.Action {
	case "pause":
		result = h.freq.PauseCollection(ctx, actor)
	case "resume":
		result = h.freq.ResumeCollection(ctx, actor)
	default:
		respondError(c, http.StatusBadRequest, "invalid action", "action must be pause or resume")
		return
	}

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

func (h *Handler) validateConfig(c *gin.Context) {
	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	respondOK(c, h.freq.ValidateConfig(req.toUpdate()))
}

type resetRequest struct {
	UpdatedBy string `json:"updatedBy"`
}

func (h *Handler) resetConfig(c *gin.Context) {
	var req resetRequest
	// Body is optional for reset.
	_ = c.ShouldBindJSON(&req)

	result := h.freq.ResetToDefault(c.Request.Context(), actorOrDefault(req.UpdatedBy))
	if !result.Success {
		respondError(c, http.StatusInternalServerError, "configuration reset failed", result.Message)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   result.Message,
		"data":      result.Config,
		"timestamp": time.Now(),
	})
}

func (h *Handler) getConfigHistory(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	history := h.freq.GetConfigHistory(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      history,
		"count":     len(history),
		"timestamp": time.Now(),
	})
}

func (h *Handler) exportConfig(c *gin.Context) {
	respondOK(c, h.freq.ExportConfig(c.Request.Context()))
}

type importRequest struct {
	Config    string `json:"config"`
	UpdatedBy string `json:"updatedBy"`
}

func (h *Handler) importConfig(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Config == "" {
		respondError(c, http.StatusBadRequest, "missing configuration", "provide the config parameter")
		return
	}

	result := h.freq.ImportConfig(c.Request.Context(), req.Config, actorOrDefault(req.UpdatedBy))
	code := http.StatusOK
	if !result.Success {
		code = http.StatusBadRequest
	}
	c.JSON(code, gin.H{
		"success":   result.Success,
		"message":   result.Message,
		"data":      result.Config,
		"timestamp": time.Now(),
	})
}
