package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth(t *testing.T) {
	t.Helper()
	health = &healthState{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
}

func TestRegisterComponentRecordsState(t *testing.T) {
	resetHealth(t)

	RegisterComponent("store", true, "ready")

	h := GetHealth()
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "healthy", h.Components["store"])
}

func TestRegisterComponentAgainOverwrites(t *testing.T) {
	resetHealth(t)

	RegisterComponent("store", true, "ready")
	RegisterComponent("store", false, "lost backend")

	h := GetHealth()
	assert.Equal(t, "unhealthy", h.Status)
	assert.Equal(t, "unhealthy: lost backend", h.Components["store"])
}

func TestGetHealthUnhealthyWhenAnyComponentUnhealthy(t *testing.T) {
	resetHealth(t)

	RegisterComponent("api", true, "")
	RegisterComponent("reconciler", false, "stalled")

	h := GetHealth()
	assert.Equal(t, "unhealthy", h.Status)
	assert.Equal(t, "healthy", h.Components["api"])
}

func TestGetReadinessReadyOnceCriticalComponentsUp(t *testing.T) {
	resetHealth(t)

	RegisterComponent("store", true, "")
	RegisterComponent("api", true, "")

	rd := GetReadiness()
	assert.Equal(t, "ready", rd.Status)
}

func TestGetReadinessNotReadyWhileCriticalComponentMissing(t *testing.T) {
	resetHealth(t)

	RegisterComponent("api", true, "")
	// store never registered — still starting up.

	rd := GetReadiness()
	assert.Equal(t, "not_ready", rd.Status)
	assert.NotEmpty(t, rd.Message)
	assert.Equal(t, "not registered", rd.Components["store"])
}

func TestGetReadinessNotReadyWhileCriticalComponentUnhealthy(t *testing.T) {
	resetHealth(t)

	RegisterComponent("store", false, "backend unavailable")
	RegisterComponent("api", true, "")

	rd := GetReadiness()
	assert.Equal(t, "not_ready", rd.Status)
}

func TestHealthHandlerStatusCodes(t *testing.T) {
	resetHealth(t)
	SetVersion("test")
	RegisterComponent("store", true, "")

	w := httptest.NewRecorder()
	HealthHandler()(w, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var h HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&h))
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "test", h.Version)

	RegisterComponent("store", false, "broken")
	w = httptest.NewRecorder()
	HealthHandler()(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyHandlerStatusCodes(t *testing.T) {
	resetHealth(t)
	RegisterComponent("api", true, "")

	w := httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	RegisterComponent("store", true, "")
	w = httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	resetHealth(t)

	w := httptest.NewRecorder()
	LivenessHandler()(w, httptest.NewRequest("GET", "/live", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "alive", body["status"])
	assert.NotEmpty(t, body["uptime"])
}
