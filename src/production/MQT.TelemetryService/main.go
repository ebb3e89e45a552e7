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

	container "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Container"
	mqtingestor "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Ingestor"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Realtime"
	implementation "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Repository/Implementation"
	startup "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Startup"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Startup/health"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.TelemetryService/controllers"
)

func main() {
	ctr, err := container.NewContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	log := ctr.GetLogger()
	cfg := ctr.GetConfig()
	log.Info("Starting Telemetry Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store connections
	db, err := ctr.GetDatabase()
	if err != nil {
		log.FatalWithError(err, "Failed to connect to PostgreSQL")
	}
	mongoClient, err := ctr.GetMongo()
	if err != nil {
		log.FatalWithError(err, "Failed to connect to MongoDB")
	}

	// One-shot schema and seed bootstrap; a degraded outcome is logged and
	// the pipeline starts anyway, failing loudly at the point of use.
	startup.NewBootstrap(db, mongoClient, cfg, log).Run(ctx)

	// Repositories
	registry := implementation.NewPostgresSensorRegistry(db)
	readings := implementation.NewPostgresReadingRepository(db)
	audit := implementation.NewPostgresAuditRepository(db)
	points := implementation.NewMongoTimeSeriesRepository(health.GetTimeSeriesCollection(mongoClient, cfg))

	// Realtime hub is constructed before anything that broadcasts, so the
	// fan-out handle is an explicit dependency rather than a global.
	hub := realtime.NewHub(log)
	hub.Start()
	defer hub.Stop()

	tokens := realtime.NewTokenService(cfg.Auth.JWTSecretKey, cfg.Auth.JWTIssuer)
	gateway := realtime.NewGateway(hub, registry, tokens, log)

	// Ingestion pipeline
	coordinator := mqtingestor.NewCoordinator(registry, readings, points, audit, hub, log)
	dispatcher := mqtingestor.NewDispatcher(cfg.Ingest.Workers, cfg.Ingest.QueueSize, coordinator, log)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	listener := mqtingestor.NewListener(cfg, dispatcher, log)
	if err := listener.Start(); err != nil {
		log.FatalWithError(err, "Failed to start MQTT listener")
	}
	defer listener.Stop()

	// HTTP surface
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	ctrls := controllers.NewControllers(db, hub, gateway, listener, readings, points)
	controllers.SetupRoutes(router, ctrls, &cfg.CORS)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening on port " + cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.FatalWithError(err, "HTTP server failed")
		}
	}()

	log.Info("Telemetry service running... press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithError(err, "HTTP server shutdown failed")
	}
}
