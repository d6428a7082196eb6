package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/stitts-dev/athletics-sim/internal/api"
	"github.com/stitts-dev/athletics-sim/internal/providers"
	"github.com/stitts-dev/athletics-sim/internal/services"
	"github.com/stitts-dev/athletics-sim/internal/websocket"
	"github.com/stitts-dev/athletics-sim/pkg/config"
	"github.com/stitts-dev/athletics-sim/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Result cache, optionally shared through redis
	var cacheOpts []services.CacheOption
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, using in-memory cache only")
			redisClient.Close()
		} else {
			defer redisClient.Close()
			cacheOpts = append(cacheOpts, services.WithBackend(services.NewRedisCacheBackend(redisClient, "athletics:")))
		}
	}
	cache := services.NewResultCache(cfg.CacheTTL, log, cacheOpts...)

	janitor := services.NewCacheJanitor(cache, cfg.CacheSweepSchedule, log)
	if err := janitor.Start(); err != nil {
		log.WithError(err).Error("Failed to start cache janitor")
	}
	defer janitor.Stop()

	// Realtime transport
	client := providers.NewPubSubClient(&providers.RealtimeConfig{
		ClientName:     cfg.RealtimeClientName,
		Token:          cfg.RealtimeToken,
		TokenSecret:    cfg.RealtimeTokenSecret,
		TokenTTL:       cfg.RealtimeTokenTTL,
		ConnectTimeout: cfg.ConnectTimeout,
		CallTimeout:    cfg.ResponseTimeout,
	}, log)
	policy := providers.NewReconnectPolicy(client, cfg.ReconnectInterval, cfg.MaxReconnectAttempts, log,
		providers.WithConnectTimeout(cfg.ConnectTimeout))

	sim := services.NewSimulationAPI(client, policy, cache, services.DefaultReferenceData(), services.SimulationConfig{
		Channel:              cfg.RealtimeChannel,
		MockDelay:            cfg.MockDelay,
		ResponseTimeout:      cfg.ResponseTimeout,
		LiveRaceStartTimeout: cfg.LiveRaceStartTimeout,
		LiveRaceTick:         cfg.LiveRaceTick,
		LiveRaceStartDelay:   cfg.LiveRaceStartDelay,
	}, log)
	defer sim.Close()

	// Dashboard stream
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(cfg.CorsOrigins, log)
	go hub.Run(hubCtx)
	detach := hub.Attach(sim)
	defer detach()

	initCtx, cancelInit := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	if err := sim.Init(initCtx, cfg.RealtimeURL); err != nil {
		logger.WithComponent("realtime").WithError(err).Warn("Initial connection failed, serving mock data while reconnecting")
	}
	cancelInit()

	router := api.NewRouter(api.Dependencies{
		Simulation: sim,
		Janitor:    janitor,
		Hub:        hub,
		Config:     cfg,
		Logger:     log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ResponseTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
