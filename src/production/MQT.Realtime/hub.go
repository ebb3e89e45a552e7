package realtime

import (
	"errors"
	"strconv"
	"sync"
	"time"

	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
)

// ErrUnknownTarget is returned for a notification with an unrecognized
// target type. This is a client error, never a silent drop.
var ErrUnknownTarget = errors.New("unknown notification target type")

// Hub is the arena-style room registry: one map from room name to the set
// of member connections, mutated only through Register/Unregister/Join and
// read only through the broadcast methods. Rooms exist while they have
// members; the last leave removes the room entry.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]bool
	clients map[*Client]bool
	started bool
	logger  *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]bool),
		clients: make(map[*Client]bool),
		logger:  log.WithComponent("realtime-hub"),
	}
}

// Start marks the hub ready. Broadcast methods report false until then, so
// callers can tell "not yet initialized" apart from "no interested viewer".
func (h *Hub) Start() {
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
}

// Stop disconnects every client and clears all rooms
func (h *Hub) Stop() {
	h.mu.Lock()
	h.started = false
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}

// Running reports whether the hub has been started and not stopped
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Register adds an authenticated connection to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.logger.Logger.Debug().Str("connection_id", c.ID).Str("user_id", c.UserID).Msg("Connection registered")
}

// Unregister removes a connection from the hub and from every room it
// joined, then closes its send channel and transport.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room, members := range h.rooms {
		if members[c] {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()

	c.close()
	h.logger.Logger.Debug().Str("connection_id", c.ID).Msg("Connection unregistered")
}

// Join idempotently adds a connection to the named room
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[c] = true
}

// RoomSize returns the current member count of a room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastReading emits a sensor_data_update to the sensor room and, when
// the owning company is known, a sensor_activity event to the company room.
// The returned bool means only that the hub is running, not that any viewer
// received the event.
func (h *Hub) BroadcastReading(reading mqtmodels.NormalizedReading, companyID *int) bool {
	if !h.Running() {
		return false
	}

	h.broadcastRoom(mqtmodels.SensorRoom(reading.SensorID), mqtmodels.Event{
		Event: mqtmodels.EventSensorData,
		Data: mqtmodels.SensorDataUpdate{
			SensorID:  reading.SensorID,
			Readings:  reading.Readings,
			Timestamp: reading.Timestamp,
		},
	})

	if companyID != nil {
		h.broadcastRoom(mqtmodels.CompanyRoom(*companyID), mqtmodels.Event{
			Event: mqtmodels.EventSensorActivity,
			Data: mqtmodels.SensorActivity{
				SensorID:  reading.SensorID,
				Type:      "data_update",
				Timestamp: reading.Timestamp,
			},
		})
	}

	return true
}

// BroadcastStatus emits a sensor_status event to the sensor room
func (h *Hub) BroadcastStatus(status mqtmodels.SensorStatus) bool {
	if !h.Running() {
		return false
	}

	h.broadcastRoom(mqtmodels.SensorRoom(status.SensorID), mqtmodels.Event{
		Event: mqtmodels.EventSensorStatus,
		Data:  status,
	})

	return true
}

// SendNotification delivers an operator notification to a company room, a
// sensor room, or every connected viewer, selected by target type.
func (h *Hub) SendNotification(req mqtmodels.SendNotificationRequest, senderID string) (bool, error) {
	event := mqtmodels.Event{
		Event: mqtmodels.EventNotification,
		Data: mqtmodels.Notification{
			Type:      req.NotificationType,
			Message:   req.Message,
			Timestamp: time.Now().Unix(),
			SenderID:  senderID,
		},
	}

	var room string
	switch req.TargetType {
	case mqtmodels.TargetCompany:
		companyID, err := strconv.Atoi(req.TargetID)
		if err != nil {
			return false, ErrUnknownTarget
		}
		room = mqtmodels.CompanyRoom(companyID)
	case mqtmodels.TargetSensor:
		room = mqtmodels.SensorRoom(req.TargetID)
	case mqtmodels.TargetAll:
		if !h.Running() {
			return false, nil
		}
		h.broadcastAll(event)
		return true, nil
	default:
		return false, ErrUnknownTarget
	}

	if !h.Running() {
		return false, nil
	}
	h.broadcastRoom(room, event)
	return true, nil
}

func (h *Hub) broadcastRoom(room string, event mqtmodels.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		h.deliverLocked(c, event)
	}
}

func (h *Hub) broadcastAll(event mqtmodels.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		h.deliverLocked(c, event)
	}
}

// deliver sends to a single connection. The membership check under the
// registry lock is what makes the send safe: Unregister closes the send
// channel only after removing the client under the write lock, so a
// registered client's channel cannot close mid-send.
func (h *Hub) deliver(c *Client, event mqtmodels.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	h.deliverLocked(c, event)
}

// deliverLocked is fire-and-forget: a client whose send buffer is full is
// disconnected rather than blocking the broadcast. The caller must hold
// h.mu with the client still registered.
func (h *Hub) deliverLocked(c *Client, event mqtmodels.Event) {
	select {
	case c.send <- event:
	default:
		h.logger.Logger.Warn().Str("connection_id", c.ID).Msg("Send buffer full, dropping slow connection")
		go h.Unregister(c)
	}
}
