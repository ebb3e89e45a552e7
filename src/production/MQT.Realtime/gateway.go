package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Repository/Interfaces"
)

// Gateway accepts viewer connections, validates the bearer credential
// before completing the handshake, and routes inbound frames.
type Gateway struct {
	hub      *Hub
	registry interfaces.SensorRegistry
	tokens   *TokenService
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

func NewGateway(hub *Hub, registry interfaces.SensorRegistry, tokens *TokenService, log *logger.Logger) *Gateway {
	return &Gateway{
		hub:      hub,
		registry: registry,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin policy is enforced by the CORS layer in front
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.WithComponent("realtime-gateway"),
	}
}

// HandleWS upgrades an HTTP request to a viewer connection. The credential
// must be presented as a `token` query parameter or an Authorization bearer
// header; the handshake is rejected before any room can be joined.
func (g *Gateway) HandleWS(c *gin.Context) {
	tokenString := g.extractToken(c)
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer credential"})
		return
	}

	claims, err := g.tokens.ValidateToken(tokenString)
	if err != nil {
		g.logger.Logger.Warn().Err(err).Msg("Handshake rejected: invalid credential")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer credential"})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.ErrorWithError(err, "Websocket upgrade failed")
		return
	}

	client := newClient(uuid.New().String(), claims.UserID, claims.Role, conn)
	g.hub.Register(client)

	g.logger.Logger.Info().Str("connection_id", client.ID).Str("user_id", client.UserID).Msg("Viewer connected")

	go client.writePump()
	g.readPump(c.Request.Context(), client)
}

func (g *Gateway) extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// readPump consumes inbound frames until the transport drops, then removes
// the connection from every room it joined. No explicit leave is required.
func (g *Gateway) readPump(ctx context.Context, client *Client) {
	defer g.hub.Unregister(client)

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Logger.Debug().Err(err).Str("connection_id", client.ID).Msg("Connection closed unexpectedly")
			}
			return
		}

		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			g.sendError(client, "malformed frame")
			continue
		}

		g.handleFrame(ctx, client, frame.Event, frame.Data)
	}
}

func (g *Gateway) handleFrame(ctx context.Context, client *Client, event string, data json.RawMessage) {
	switch event {
	case "join_company":
		var req mqtmodels.JoinCompanyRequest
		if err := json.Unmarshal(data, &req); err != nil || req.CompanyID == 0 {
			g.sendError(client, "join_company requires companyId")
			return
		}
		g.hub.Join(client, mqtmodels.CompanyRoom(req.CompanyID))

	case "join_sensor":
		var req mqtmodels.JoinSensorRequest
		if err := json.Unmarshal(data, &req); err != nil || req.SensorID == "" {
			g.sendError(client, "join_sensor requires sensorId")
			return
		}
		g.hub.Join(client, mqtmodels.SensorRoom(req.SensorID))

	case "publish_sensor_data":
		var req mqtmodels.PublishSensorDataRequest
		if err := json.Unmarshal(data, &req); err != nil || req.SensorID == "" || len(req.Readings) == 0 {
			g.sendError(client, "publish_sensor_data requires sensorId and readings")
			return
		}
		g.publishReading(ctx, req)

	case "send_notification":
		var req mqtmodels.SendNotificationRequest
		if err := json.Unmarshal(data, &req); err != nil || req.TargetType == "" || req.NotificationType == "" || req.Message == "" {
			g.sendError(client, "send_notification requires targetType, notificationType and message")
			return
		}
		if _, err := g.hub.SendNotification(req, client.UserID); err != nil {
			g.sendError(client, err.Error())
		}

	default:
		g.sendError(client, "unknown event: "+event)
	}
}

// publishReading routes a viewer-submitted reading through the fan-out
// path. The company scope comes from the explicit override when present,
// otherwise from the registry; a failed lookup only skips the activity
// event.
func (g *Gateway) publishReading(ctx context.Context, req mqtmodels.PublishSensorDataRequest) {
	reading := mqtmodels.NormalizedReading{
		SensorID:  req.SensorID,
		Timestamp: time.Now().Unix(),
		Readings:  req.Readings,
	}

	companyID := req.CompanyID
	if companyID == nil {
		if sensor, err := g.registry.LookupBySensorID(ctx, req.SensorID); err == nil && sensor != nil {
			companyID = &sensor.CompanyID
		}
	}

	g.hub.BroadcastReading(reading, companyID)
}

func (g *Gateway) sendError(client *Client, message string) {
	g.hub.deliver(client, mqtmodels.Event{
		Event: mqtmodels.EventError,
		Data:  mqtmodels.ErrorEvent{Message: message},
	})
}
