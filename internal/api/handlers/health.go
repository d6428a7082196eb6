package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/athletics-sim/internal/services"
)

// ConnectionCounter reports connected dashboard clients
type ConnectionCounter interface {
	GetConnectionCount() int
}

type HealthHandler struct {
	sim     *services.SimulationAPI
	janitor *services.CacheJanitor
	clients ConnectionCounter
}

func NewHealthHandler(sim *services.SimulationAPI, janitor *services.CacheJanitor, clients ConnectionCounter) *HealthHandler {
	return &HealthHandler{
		sim:     sim,
		janitor: janitor,
		clients: clients,
	}
}

// GetHealth always returns 200 while the server runs; degraded transport is
// reported in the body.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	body := gin.H{
		"status":           "ok",
		"time":             time.Now().UTC(),
		"service":          "athletics-sim",
		"mode":             h.sim.Mode(),
		"connection_state": h.sim.ConnectionState(),
	}
	if h.janitor != nil {
		body["cache"] = h.janitor.Status()
	}
	if h.clients != nil {
		body["websocket_clients"] = h.clients.GetConnectionCount()
	}
	if raceID, active := h.sim.LiveRaceActive(); active {
		body["live_race"] = raceID
	}
	c.JSON(http.StatusOK, body)
}
