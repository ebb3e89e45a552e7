package controllers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	config "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Config"
	mqtingestor "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Ingestor"
	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Realtime"
	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Repository/Interfaces"
)

// Controllers holds the HTTP surface dependencies
type Controllers struct {
	db       *sql.DB
	hub      *realtime.Hub
	gateway  *realtime.Gateway
	listener *mqtingestor.Listener
	readings interfaces.ReadingRepository
	points   interfaces.TimeSeriesRepository
}

// NewControllers creates a new Controllers instance
func NewControllers(
	db *sql.DB,
	hub *realtime.Hub,
	gateway *realtime.Gateway,
	listener *mqtingestor.Listener,
	readings interfaces.ReadingRepository,
	points interfaces.TimeSeriesRepository,
) *Controllers {
	return &Controllers{
		db:       db,
		hub:      hub,
		gateway:  gateway,
		listener: listener,
		readings: readings,
		points:   points,
	}
}

// SetupRoutes wires the HTTP endpoints
func SetupRoutes(router *gin.Engine, controllers *Controllers, corsCfg *config.CORSConfig) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsCfg.AllowedOrigins,
		AllowMethods:     corsCfg.AllowedMethods,
		AllowHeaders:     corsCfg.AllowedHeaders,
		ExposeHeaders:    corsCfg.ExposedHeaders,
		AllowCredentials: corsCfg.AllowCredentials,
		MaxAge:           time.Duration(corsCfg.MaxAge) * time.Second,
	}))

	router.GET("/health/live", controllers.HealthLive)
	router.GET("/health/ready", controllers.HealthReady)

	router.GET("/ws", controllers.gateway.HandleWS)

	api := router.Group("/api")
	{
		api.POST("/notifications", controllers.SendNotification)
		api.GET("/sensors/:sensor_id/readings", controllers.GetSensorReadings)
		api.GET("/sensors/:sensor_id/aggregate", controllers.GetSensorAggregate)
	}
}

// Core endpoints

func (c *Controllers) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *Controllers) HealthReady(ctx *gin.Context) {
	dbOK := c.db.PingContext(ctx.Request.Context()) == nil
	mqttOK := c.listener.IsConnected()
	hubOK := c.hub.Running()

	status := http.StatusOK
	state := "ready"
	if !dbOK || !mqttOK || !hubOK {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	ctx.JSON(status, gin.H{
		"status":   state,
		"db":       dbOK,
		"mqtt":     mqttOK,
		"realtime": hubOK,
	})
}

// Notification endpoint

type SendNotificationRequest struct {
	TargetType       string `json:"targetType" binding:"required"`
	TargetID         string `json:"targetId"`
	NotificationType string `json:"notificationType" binding:"required"`
	Message          string `json:"message" binding:"required"`
}

// SendNotification is the operator-triggered path into the fan-out
// broadcaster. It mirrors the websocket send_notification frame.
func (c *Controllers) SendNotification(ctx *gin.Context) {
	var req SendNotificationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	delivered, err := c.hub.SendNotification(mqtmodels.SendNotificationRequest{
		TargetType:       req.TargetType,
		TargetID:         req.TargetID,
		NotificationType: req.NotificationType,
		Message:          req.Message,
	}, "operator")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !delivered {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime gateway not running"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"sent": true})
}

// Reading endpoints

func (c *Controllers) GetSensorReadings(ctx *gin.Context) {
	params := interfaces.ReadingQueryParams{
		SensorID: ctx.Param("sensor_id"),
	}

	if fromStr := ctx.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp, expected RFC3339"})
			return
		}
		params.From = &from
	}
	if toStr := ctx.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp, expected RFC3339"})
			return
		}
		params.To = &to
	}
	params.Limit, _ = strconv.Atoi(ctx.DefaultQuery("limit", "100"))

	records, err := c.readings.GetReadings(ctx.Request.Context(), params)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": records})
}

func (c *Controllers) GetSensorAggregate(ctx *gin.Context) {
	sensorID := ctx.Param("sensor_id")
	field := ctx.Query("field")
	if field == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "field is required"})
		return
	}

	window, err := time.ParseDuration(ctx.DefaultQuery("window", "1h"))
	if err != nil || window <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
		return
	}

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if fromStr := ctx.Query("from"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp, expected RFC3339"})
			return
		}
		from = parsed
	}
	if toStr := ctx.Query("to"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp, expected RFC3339"})
			return
		}
		to = parsed
	}

	stats, err := c.points.AggregateWindow(ctx.Request.Context(), sensorID, field, from, to, window)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": stats})
}
