package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/athletics-sim/internal/api/handlers"
	"github.com/stitts-dev/athletics-sim/internal/api/middleware"
	"github.com/stitts-dev/athletics-sim/internal/services"
	"github.com/stitts-dev/athletics-sim/internal/websocket"
	"github.com/stitts-dev/athletics-sim/pkg/config"
)

// Dependencies are the services the gateway serves
type Dependencies struct {
	Simulation *services.SimulationAPI
	Janitor    *services.CacheJanitor
	Hub        *websocket.Hub
	Config     *config.Config
	Logger     *logrus.Logger
}

// NewRouter builds the gateway: /health, /api/v1 and the /ws stream
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORS(deps.Config.CorsOrigins))

	var clients handlers.ConnectionCounter
	if deps.Hub != nil {
		clients = deps.Hub
	}
	healthHandler := handlers.NewHealthHandler(deps.Simulation, deps.Janitor, clients)
	router.GET("/health", healthHandler.GetHealth)

	SetupRoutes(router.Group("/api/v1"), deps)

	// WebSocket endpoint at root level, not under /api/v1
	if deps.Hub != nil {
		router.GET("/ws", deps.Hub.HandleWebSocket)
	}

	for _, route := range router.Routes() {
		deps.Logger.WithFields(logrus.Fields{
			"method": route.Method,
			"path":   route.Path,
		}).Debug("Registered route")
	}
	return router
}

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, deps Dependencies) {
	athleteHandler := handlers.NewAthleteHandler(deps.Simulation)
	raceHandler := handlers.NewRaceHandler(deps.Simulation)
	connectionHandler := handlers.NewConnectionHandler(deps.Simulation)

	simulationLimiter := middleware.NewClientRateLimiter(deps.Config.SimulationRateLimit, deps.Config.SimulationRateBurst)

	// Athlete endpoints
	group.GET("/athletes", athleteHandler.GetAthletes)
	group.GET("/athletes/:id/sessions", athleteHandler.GetAthleteSessions)
	group.POST("/athletes/:id/simulations", middleware.RateLimit(simulationLimiter), athleteHandler.RunSimulation)
	group.GET("/athletes/:id/probability", athleteHandler.GetProbability)
	group.POST("/athletes/:id/top-n", athleteHandler.GetTopN)
	group.GET("/sessions", athleteHandler.ListSessions)

	// Race endpoints
	group.GET("/races/results", raceHandler.GetResults)
	group.GET("/live-races/current", raceHandler.GetLiveRace)
	group.POST("/live-races", raceHandler.StartLiveRace)
	group.DELETE("/live-races/current", raceHandler.StopLiveRace)

	// Realtime connection
	group.GET("/connection", connectionHandler.GetStatus)
	group.POST("/connection", connectionHandler.Connect)
	group.DELETE("/connection", connectionHandler.Disconnect)
}
