package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"receipt-verification-api/internal/api"
	"receipt-verification-api/internal/config"
	"receipt-verification-api/internal/database"
	"receipt-verification-api/internal/metrics"
	"receipt-verification-api/internal/middleware"
	"receipt-verification-api/internal/services"
	"receipt-verification-api/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatal("Failed to initialize config:", err)
	}
	cfg := config.AppConfig

	// Initialize logging
	logging.InitLogging(cfg.LogLevel)

	// Initialize database
	if err := database.InitDatabase(cfg); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer func() {
		if err := database.CloseDatabase(); err != nil {
			logging.Errorf("Failed to close database: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	receipts := services.NewReceiptService(
		services.NewVerifier(cfg, m),
		services.NewStatsService(database.GetRedis()),
		m,
		cfg.AppStoreSharedSecret,
		cfg.BatchConcurrency,
	)

	// Set Gin mode
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	api.SetupRoutes(r, &api.Handler{
		Receipts:     receipts,
		Projects:     services.NewProjectService(database.GetDB()),
		Gatherer:     reg,
		AdminAPIKey:  cfg.AdminAPIKey,
		BatchMaxSize: cfg.BatchMaxSize,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	// Requests in flight may be waiting on Apple, allow for a full read timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.AppStoreOpenTimeout+cfg.AppStoreReadTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Errorf("Graceful shutdown failed: %v", err)
	}
	logging.Infof("Server stopped")
}
