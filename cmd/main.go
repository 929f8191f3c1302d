package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"botforge/internal/config"
	"botforge/internal/deploy"
	"botforge/internal/generation"
	"botforge/internal/handlers"
	"botforge/internal/logging"
	"botforge/internal/metrics"
	"botforge/internal/ollama"
	"botforge/internal/pipeline"
	"botforge/internal/store"
	"botforge/internal/ws"
)

func main() {
	// Load .env file before anything reads the environment; in production
	// the environment is already populated and both loads may fail.
	if godotenv.Load() != nil {
		_ = godotenv.Load("../.env")
	}

	logging.Init()
	defer logging.Sync()
	log := logging.L()

	cfg := config.Load()
	log.Info("starting botforge",
		zap.String("port", cfg.Port),
		zap.String("model", cfg.OllamaModel),
		zap.String("workspace", cfg.WorkspaceRoot))

	archive, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal("failed to open run archive", zap.Error(err))
	}

	client := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel)
	backendWorker := generation.NewWorker(client, generation.RoleBackend)
	uiWorker := generation.NewWorker(client, generation.RoleUI)

	reclaimer := deploy.NewReclaimer()
	supervisor := deploy.NewSupervisor(cfg.BackendPort, cfg.FrontendPort, reclaimer)
	gate := deploy.NewStabilityGate()

	coordinator := pipeline.NewCoordinator(backendWorker, uiWorker, supervisor, gate, pipeline.Options{
		WorkspaceRoot:      cfg.WorkspaceRoot,
		GenerationDeadline: cfg.GenerationDeadline,
		PollInterval:       cfg.ResultPollInterval,
	})
	service := pipeline.NewService(coordinator, archive)
	streamer := ws.NewStreamer(service)
	h := handlers.NewHandler(service, supervisor, archive, client)

	router := setupRouter(h, streamer)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("http server failed", zap.Error(err))
	case sig := <-quit:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}

	// Abort in-flight runs, then tear down any deployed project processes so
	// nothing keeps holding the service ports after we exit.
	service.CancelAll()
	supervisor.StopAll()

	log.Info("shutdown complete")
}

func setupRouter(h *handlers.Handler, streamer *ws.Streamer) *gin.Engine {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.PrometheusMiddleware())

	router.GET("/health", h.Health)
	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/api/v1")
	{
		runs := v1.Group("/runs")
		{
			runs.POST("", h.CreateRun)
			runs.GET("", h.ListRuns)
			runs.GET("/:id", h.GetRun)
			runs.DELETE("/:id", h.CancelRun)
			runs.GET("/:id/events", streamer.HandleRunEvents)
		}

		services := v1.Group("/services")
		{
			services.GET("", h.ServiceStatus)
			services.POST("/stop", h.StopServices)
		}
	}

	return router
}
