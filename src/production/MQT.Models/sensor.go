package mqtmodels

import "time"

// Sensor lifecycle states
const (
	SensorActive      = "active"
	SensorInactive    = "inactive"
	SensorMaintenance = "maintenance"
)

// Sensor is a registered device. The registry is owned by the management
// layer; this service only reads it to resolve tenancy.
type Sensor struct {
	SensorID  string    `json:"sensor_id" db:"sensor_id"`
	CompanyID int       `json:"company_id" db:"company_id"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
