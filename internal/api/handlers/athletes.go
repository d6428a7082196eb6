package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/athletics-sim/internal/models"
	"github.com/stitts-dev/athletics-sim/internal/services"
	"github.com/stitts-dev/athletics-sim/pkg/logger"
	"github.com/stitts-dev/athletics-sim/pkg/utils"
)

type AthleteHandler struct {
	sim *services.SimulationAPI
}

func NewAthleteHandler(sim *services.SimulationAPI) *AthleteHandler {
	return &AthleteHandler{sim: sim}
}

// GetAthletes returns the athlete roster
func (h *AthleteHandler) GetAthletes(c *gin.Context) {
	athletes, err := h.sim.GetAthletes(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to load athletes", err)
		return
	}
	utils.SendSuccess(c, athletes)
}

// GetAthleteSessions returns one athlete's sessions, newest first
func (h *AthleteHandler) GetAthleteSessions(c *gin.Context) {
	sessions, err := h.sim.GetSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to load sessions", err)
		return
	}
	utils.SendSuccess(c, sessions)
}

// ListSessions returns all sessions, optionally filtered by ?athlete_id=
func (h *AthleteHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sim.GetSessions(c.Request.Context(), c.Query("athlete_id"))
	if err != nil {
		respondError(c, "Failed to load sessions", err)
		return
	}
	utils.SendSuccess(c, sessions)
}

// RunSimulation simulates a run with the posted settings
func (h *AthleteHandler) RunSimulation(c *gin.Context) {
	athleteID := c.Param("id")

	var settings models.SimulationSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		utils.SendValidationError(c, "Invalid simulation settings", err.Error())
		return
	}

	log := logger.WithRequestContext(c.GetString("request_id"), string(models.MsgRequestSimulation)).
		WithField("athlete_id", athleteID)
	log.Debug("Simulation requested")

	session, err := h.sim.RequestSimulation(c.Request.Context(), athleteID, settings)
	if err != nil {
		log.WithError(err).Warn("Simulation request failed")
		respondError(c, "Simulation failed", err)
		return
	}
	utils.SendSuccess(c, session)
}

// GetProbability analyses ?distance= and ?target= for the athlete
func (h *AthleteHandler) GetProbability(c *gin.Context) {
	distance, err := strconv.Atoi(c.Query("distance"))
	if err != nil || distance <= 0 {
		utils.SendValidationError(c, "Invalid distance", "distance must be a positive integer")
		return
	}
	target, err := strconv.ParseFloat(c.Query("target"), 64)
	if err != nil || target <= 0 {
		utils.SendValidationError(c, "Invalid target time", "target must be a positive number of seconds")
		return
	}

	analysis, err := h.sim.GetProbabilityAnalysis(c.Request.Context(), c.Param("id"), distance, target)
	if err != nil {
		respondError(c, "Failed to analyse probability", err)
		return
	}
	utils.SendSuccess(c, analysis)
}

type topNRequest struct {
	Distance  int     `json:"distance" binding:"required,min=1"`
	Positions [][]int `json:"positions" binding:"required,min=1"`
}

// GetTopN returns the probability of finishing in each posted position set
func (h *AthleteHandler) GetTopN(c *gin.Context) {
	var req topNRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	athleteID := c.Param("id")
	logger.WithAthleteContext(athleteID, req.Distance).WithField("sets", len(req.Positions)).Debug("Top-N probabilities requested")

	results, err := h.sim.GetTopNProbabilities(c.Request.Context(), athleteID, req.Distance, req.Positions)
	if err != nil {
		respondError(c, "Failed to calculate top-N probabilities", err)
		return
	}
	utils.SendSuccess(c, results)
}
