package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/athletics-sim/internal/services"
	"github.com/stitts-dev/athletics-sim/pkg/logger"
	"github.com/stitts-dev/athletics-sim/pkg/utils"
)

type RaceHandler struct {
	sim *services.SimulationAPI
}

func NewRaceHandler(sim *services.SimulationAPI) *RaceHandler {
	return &RaceHandler{sim: sim}
}

// GetResults returns results for ?distance=, generated around ?athlete_id= when set
func (h *RaceHandler) GetResults(c *gin.Context) {
	distance, err := strconv.Atoi(c.Query("distance"))
	if err != nil || distance <= 0 {
		utils.SendValidationError(c, "Invalid distance", "distance must be a positive integer")
		return
	}

	results, err := h.sim.GetRaceResults(c.Request.Context(), distance, c.Query("athlete_id"))
	if err != nil {
		respondError(c, "Failed to load race results", err)
		return
	}
	utils.SendSuccess(c, results)
}

type liveRaceRequest struct {
	Distance   int      `json:"distance" binding:"required,min=1"`
	AthleteIDs []string `json:"athleteIds" binding:"required,min=1"`
}

// StartLiveRace starts a live race; updates stream over /ws
func (h *RaceHandler) StartLiveRace(c *gin.Context) {
	var req liveRaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	raceID, err := h.sim.StartLiveRaceSimulation(c.Request.Context(), req.Distance, req.AthleteIDs)
	if err != nil {
		respondError(c, "Failed to start live race", err)
		return
	}

	logger.WithRaceContext(raceID, req.Distance).WithField("athletes", len(req.AthleteIDs)).Info("Live race requested")
	utils.SendAccepted(c, gin.H{
		"race_id":  raceID,
		"distance": req.Distance,
	})
}

// GetLiveRace reports the running race, if any
func (h *RaceHandler) GetLiveRace(c *gin.Context) {
	raceID, active := h.sim.LiveRaceActive()
	utils.SendSuccess(c, gin.H{
		"race_id": raceID,
		"active":  active,
	})
}

// StopLiveRace cancels the running race. Stopping twice is fine.
func (h *RaceHandler) StopLiveRace(c *gin.Context) {
	h.sim.StopLiveRaceSimulation()
	utils.SendSuccess(c, gin.H{"active": false})
}
