package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/athletics-sim/internal/services"
	"github.com/stitts-dev/athletics-sim/pkg/utils"
)

type ConnectionHandler struct {
	sim *services.SimulationAPI
}

func NewConnectionHandler(sim *services.SimulationAPI) *ConnectionHandler {
	return &ConnectionHandler{sim: sim}
}

// GetStatus reports the façade mode and transport health
func (h *ConnectionHandler) GetStatus(c *gin.Context) {
	utils.SendSuccess(c, gin.H{
		"mode":   h.sim.Mode(),
		"status": h.sim.ConnectionStatus(),
	})
}

type connectRequest struct {
	URL string `json:"url"`
}

// Connect (re)initialises the façade. An empty url switches to mock mode.
func (h *ConnectionHandler) Connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if req.URL != "" && !strings.HasPrefix(req.URL, "ws://") && !strings.HasPrefix(req.URL, "wss://") {
		utils.SendValidationError(c, "Invalid realtime URL", "url must use the ws or wss scheme")
		return
	}

	if err := h.sim.Init(c.Request.Context(), req.URL); err != nil {
		utils.SendError(c, http.StatusBadGateway, utils.NewAppError(utils.ErrCodeNotConnected, "Failed to connect to realtime backend", err.Error()))
		return
	}
	h.GetStatus(c)
}

// Disconnect drops the realtime connection and returns to mock mode
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	if err := h.sim.Init(c.Request.Context(), ""); err != nil {
		respondError(c, "Failed to disconnect", err)
		return
	}
	h.GetStatus(c)
}
