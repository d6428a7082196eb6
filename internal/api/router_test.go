package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/athletics-sim/internal/providers"
	"github.com/stitts-dev/athletics-sim/internal/services"
	"github.com/stitts-dev/athletics-sim/internal/websocket"
	"github.com/stitts-dev/athletics-sim/pkg/config"
	"github.com/stitts-dev/athletics-sim/pkg/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *utils.AppError `json:"error"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		CorsOrigins:         []string{"http://dashboard.local"},
		SimulationRateLimit: 0.001,
		SimulationRateBurst: 2,
	}

	client := providers.NewPubSubClient(providers.DefaultRealtimeConfig(), logger)
	policy := providers.NewReconnectPolicy(client, time.Second, 1, logger)
	cache := services.NewResultCache(time.Minute, logger)
	simCfg := services.DefaultSimulationConfig()
	simCfg.MockDelay = 0
	simCfg.LiveRaceTick = 10 * time.Millisecond
	simCfg.LiveRaceStartDelay = 200 * time.Millisecond
	sim := services.NewSimulationAPI(client, policy, cache, services.DefaultReferenceData(), simCfg, logger, services.WithSeed(7))
	t.Cleanup(sim.Close)

	return NewRouter(Dependencies{
		Simulation: sim,
		Janitor:    services.NewCacheJanitor(cache, "@every 1m", logger),
		Hub:        websocket.NewHub(cfg.CorsOrigins, logger),
		Config:     cfg,
		Logger:     logger,
	})
}

func perform(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "mock", body["mode"])
	assert.Equal(t, "closed", body["connection_state"])
	assert.EqualValues(t, 0, body["websocket_clients"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAthleteEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w, env := perform(t, router, http.MethodGet, "/api/v1/athletes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	var athletes []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &athletes))
	assert.Len(t, athletes, 8)

	w, env = perform(t, router, http.MethodGet, "/api/v1/athletes/1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	assert.Len(t, sessions, 3)

	w, env = perform(t, router, http.MethodGet, "/api/v1/sessions?athlete_id=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	assert.Len(t, sessions, 1)
}

func TestSimulationEndpoint(t *testing.T) {
	router := newTestRouter(t)
	settings := map[string]interface{}{
		"distance":    400,
		"basePace":    140,
		"variability": 0.05,
		"fatigueRate": 0.1,
		"weather":     "ideal",
		"terrain":     "track",
	}

	w, env := perform(t, router, http.MethodPost, "/api/v1/athletes/1/simulations", settings)
	require.Equal(t, http.StatusOK, w.Code)
	var session map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "1", session["athleteId"])
	assert.Equal(t, "simulation", session["type"])

	bad := map[string]interface{}{"distance": 0, "basePace": 140}
	w, env = perform(t, router, http.MethodPost, "/api/v1/athletes/1/simulations", bad)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ErrCodeValidation, env.Error.Code)

	// burst of two is spent
	w, env = perform(t, router, http.MethodPost, "/api/v1/athletes/404/simulations", settings)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, utils.ErrCodeRateLimited, env.Error.Code)
}

func TestSimulationUnknownAthlete(t *testing.T) {
	router := newTestRouter(t)
	settings := map[string]interface{}{"distance": 400, "basePace": 140}

	w, env := perform(t, router, http.MethodPost, "/api/v1/athletes/404/simulations", settings)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, utils.ErrCodeNotFound, env.Error.Code)
}

func TestProbabilityEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w, _ := perform(t, router, http.MethodGet, "/api/v1/athletes/1/probability?distance=100", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := perform(t, router, http.MethodGet, "/api/v1/athletes/1/probability?distance=100&target=10.2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var analysis map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &analysis))
	assert.Equal(t, 0.42, analysis["probability"])

	w, _ = perform(t, router, http.MethodGet, "/api/v1/athletes/404/probability?distance=100&target=10.2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = perform(t, router, http.MethodPost, "/api/v1/athletes/1/top-n", map[string]interface{}{
		"distance":  100,
		"positions": [][]int{{1}, {1, 2, 3}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var topN []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &topN))
	assert.Len(t, topN, 2)

	w, _ = perform(t, router, http.MethodPost, "/api/v1/athletes/1/top-n", map[string]interface{}{"distance": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRaceEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w, env := perform(t, router, http.MethodGet, "/api/v1/races/results?distance=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &results))
	assert.Len(t, results, 4)

	w, _ = perform(t, router, http.MethodGet, "/api/v1/races/results?distance=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = perform(t, router, http.MethodGet, "/api/v1/races/results?distance=100&athlete_id=404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLiveRaceEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w, env := perform(t, router, http.MethodPost, "/api/v1/live-races", map[string]interface{}{
		"distance":   100,
		"athleteIds": []string{"1", "2"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	var started map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &started))
	raceID := started["race_id"]
	assert.NotEmpty(t, raceID)

	_, env = perform(t, router, http.MethodGet, "/api/v1/live-races/current", nil)
	var current map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, true, current["active"])
	assert.Equal(t, raceID, current["race_id"])

	w, _ = perform(t, router, http.MethodDelete, "/api/v1/live-races/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = perform(t, router, http.MethodDelete, "/api/v1/live-races/current", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, env = perform(t, router, http.MethodGet, "/api/v1/live-races/current", nil)
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, false, current["active"])

	w, _ = perform(t, router, http.MethodPost, "/api/v1/live-races", map[string]interface{}{"distance": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectionEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w, env := perform(t, router, http.MethodGet, "/api/v1/connection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "mock", status["mode"])

	w, env = perform(t, router, http.MethodPost, "/api/v1/connection", map[string]string{"url": "http://not-a-socket"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ErrCodeValidation, env.Error.Code)

	w, _ = perform(t, router, http.MethodDelete, "/api/v1/connection", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/athletes", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://dashboard.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/athletes", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
