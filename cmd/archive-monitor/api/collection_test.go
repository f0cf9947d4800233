package api

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootEndpoint(t *testing.T) {
	t.Run("online", func(t *testing.T) {
		s := newTestServer(t)
		w, _ := s.do(t, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "online", w.Body.String())
	})

	t.Run("degraded when the database is unreachable", func(t *testing.T) {
		s := newTestServer(t)
		s.store.mu.Lock()
		s.store.unavailable = true
		s.store.mu.Unlock()

		w, _ := s.do(t, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "degraded", w.Body.String())
	})
}

func TestGetConfig(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/api/collection/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.Equal(t, float64(30), data["sensorInterval"])
	assert.Equal(t, float64(10), data["rfidInterval"])
	assert.NotNil(t, data["performanceImpact"])
}

func TestUpdateConfig(t *testing.T) {
	t.Run("applies a valid update", func(t *testing.T) {
		s := newTestServer(t)

		w, body := s.do(t, http.MethodPost, "/api/collection/config", gin.H{
			"sensorInterval": 60,
			"updatedBy":      "archivist",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])

		data := body["data"].(map[string]any)
		assert.Equal(t, float64(60), data["sensorInterval"])
		assert.Equal(t, "archivist", data["updatedBy"])
	})

	t.Run("rejects invalid values with the violation list", func(t *testing.T) {
		s := newTestServer(t)

		w, body := s.do(t, http.MethodPost, "/api/collection/config", gin.H{
			"sensorInterval": 0,
			"rfidInterval":   999,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, false, body["success"])
		assert.Len(t, body["errors"], 2)
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		s := newTestServer(t)

		req := gin.H{"sensorInterval": "not a number"}
		w, _ := s.do(t, http.MethodPost, "/api/collection/config", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing actor defaults to api_user", func(t *testing.T) {
		s := newTestServer(t)

		w, body := s.do(t, http.MethodPost, "/api/collection/config", gin.H{"rfidInterval": 20})
		require.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]any)
		assert.Equal(t, "api_user", data["updatedBy"])
	})
}

func TestControlCollection(t *testing.T) {
	s := newTestServer(t)

	t.Run("pause", func(t *testing.T) {
		w, body := s.do(t, http.MethodPost, "/api/collection/control", gin.H{
			"action":    "pause",
			"updatedBy": "archivist",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "paused", body["status"])
	})

	t.Run("resume", func(t *testing.T) {
		w, body := s.do(t, http.MethodPost, "/api/collection/control", gin.H{
			"action":    "resume",
			"updatedBy": "archivist",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "running", body["status"])
	})

	t.Run("unknown action", func(t *testing.T) {
		w, body := s.do(t, http.MethodPost, "/api/collection/control", gin.H{"action": "reboot"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid action", body["error"])
	})
}

func TestValidateConfigEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodPost, "/api/collection/config/validate", gin.H{
		"sensorInterval": 5,
		"rfidInterval":   3,
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["valid"])
	assert.Len(t, data["warnings"], 3)
	assert.NotNil(t, data["performanceImpact"])
}

func TestResetConfig(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/collection/config", gin.H{"sensorInterval": 120})

	w, body := s.do(t, http.MethodPost, "/api/collection/config/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.Equal(t, float64(30), data["sensorInterval"])
	assert.Equal(t, float64(10), data["rfidInterval"])
}

func TestGetConfigHistory(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/collection/config", gin.H{"sensorInterval": 45})
	s.do(t, http.MethodPost, "/api/collection/config", gin.H{"sensorInterval": 90})

	t.Run("returns newest first with a count", func(t *testing.T) {
		w, body := s.do(t, http.MethodGet, "/api/collection/config/history?limit=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(2), body["count"])

		history := body["data"].([]any)
		first := history[0].(map[string]any)
		assert.Equal(t, float64(90), first["sensorInterval"])
	})

	t.Run("rejects a non-integer limit", func(t *testing.T) {
		w, _ := s.do(t, http.MethodGet, "/api/collection/config/history?limit=abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestExportImportConfigEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/collection/config", gin.H{"sensorInterval": 75, "rfidInterval": 25})

	w, body := s.do(t, http.MethodGet, "/api/collection/config/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	exported := body["data"].(string)
	assert.Contains(t, exported, `"sensorInterval": 75`)

	t.Run("import round trip", func(t *testing.T) {
		other := newTestServer(t)
		w, body := other.do(t, http.MethodPost, "/api/collection/config/import", gin.H{
			"config":    exported,
			"updatedBy": "importer",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])

		data := body["data"].(map[string]any)
		assert.Equal(t, float64(75), data["sensorInterval"])
		assert.Equal(t, float64(25), data["rfidInterval"])
	})

	t.Run("missing config parameter", func(t *testing.T) {
		w, body := s.do(t, http.MethodPost, "/api/collection/config/import", gin.H{"updatedBy": "importer"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "missing configuration", body["error"])
	})

	t.Run("malformed config payload", func(t *testing.T) {
		w, body := s.do(t, http.MethodPost, "/api/collection/config/import", gin.H{"config": "{broken"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, false, body["success"])
	})
}
