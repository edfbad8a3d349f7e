package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"imprint/adapters/models"
	"imprint/adapters/sqlstore"
	"imprint/app"
	"imprint/internal"
	"imprint/internal/api"
	"imprint/internal/config"
	"imprint/internal/driver"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.DefaultLogger.WithComponent("Server")
	gin.SetMode(appConfig.Server.GinMode)

	store, err := sqlstore.Open(context.Background(), appConfig.Database.Driver, appConfig.Database.URL, internal.DefaultLogger)
	if err != nil {
		log.Fatalf("Failed to initialize result store: %v", err)
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := driver.NewMetrics(registry)

	defaults := append(app.ConfigOptions(appConfig.Engine), app.WithMetrics(metrics))
	service := app.NewRunService(store, models.Get, internal.DefaultLogger, defaults...)
	server := api.NewServer(service, appConfig.Server, registry, internal.DefaultLogger)

	srv := &http.Server{
		Addr:         ":" + appConfig.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening on %s (store: %s, models: %v)", srv.Addr, appConfig.Database.Driver, models.Names())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
}
