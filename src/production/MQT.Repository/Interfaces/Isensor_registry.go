package interfaces

import (
	"context"

	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
)

// SensorRegistry resolves a device identifier to its owning company and
// lifecycle status. Read-only: registration CRUD lives in the management
// service.
type SensorRegistry interface {
	// LookupBySensorID returns (nil, nil) when the sensor is not registered
	LookupBySensorID(ctx context.Context, sensorID string) (*mqtmodels.Sensor, error)
}
