package interfaces

import (
	"context"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
)

// ReadingQueryParams represents parameters for reading queries
type ReadingQueryParams struct {
	SensorID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// ReadingRepository is the authoritative relational store for readings
type ReadingRepository interface {
	InsertReading(ctx context.Context, reading mqtmodels.NormalizedReading) error
	GetReadings(ctx context.Context, params ReadingQueryParams) ([]mqtmodels.ReadingRecord, error)
}
