package mqtmodels

import "fmt"

// Realtime event names emitted to connected viewers
const (
	EventSensorData     = "sensor_data_update"
	EventSensorActivity = "sensor_activity"
	EventSensorStatus   = "sensor_status"
	EventNotification   = "notification"
	EventError          = "error"
)

// Notification target types
const (
	TargetCompany = "company"
	TargetSensor  = "sensor"
	TargetAll     = "all"
)

// Event is the wire envelope for every realtime frame, in both directions
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// SensorDataUpdate is delivered to the sensor room on every reading
type SensorDataUpdate struct {
	SensorID  string             `json:"sensorId"`
	Readings  map[string]float64 `json:"readings"`
	Timestamp int64              `json:"timestamp"`
}

// SensorActivity is the lighter-weight event delivered to the company room
type SensorActivity struct {
	SensorID  string `json:"sensorId"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Notification is an operator-originated message
type Notification struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	SenderID  string `json:"senderId"`
}

// ErrorEvent is emitted to a single offending connection only
type ErrorEvent struct {
	Message string `json:"message"`
}

// Inbound request payloads

type JoinCompanyRequest struct {
	CompanyID int `json:"companyId"`
}

type JoinSensorRequest struct {
	SensorID string `json:"sensorId"`
}

type PublishSensorDataRequest struct {
	SensorID  string             `json:"sensorId"`
	Readings  map[string]float64 `json:"readings"`
	CompanyID *int               `json:"companyId,omitempty"`
}

type SendNotificationRequest struct {
	TargetType       string `json:"targetType"`
	TargetID         string `json:"targetId"`
	NotificationType string `json:"notificationType"`
	Message          string `json:"message"`
}

// SensorRoom returns the room name scoped to one device
func SensorRoom(sensorID string) string {
	return "sensor_" + sensorID
}

// CompanyRoom returns the room name scoped to one tenant
func CompanyRoom(companyID int) string {
	return fmt.Sprintf("company_%d", companyID)
}
