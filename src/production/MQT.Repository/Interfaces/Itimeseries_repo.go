package interfaces

import (
	"context"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
)

// WindowStats is one aggregation bucket for a single measurement field
type WindowStats struct {
	WindowStart time.Time `json:"window_start"`
	Count       int64     `json:"count"`
	Mean        float64   `json:"mean"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
}

// TimeSeriesRepository is the append-optimized secondary store. Writes here
// are best-effort: a failure never blocks the relational write or fan-out.
type TimeSeriesRepository interface {
	InsertPoint(ctx context.Context, reading mqtmodels.NormalizedReading) error
	AggregateWindow(ctx context.Context, sensorID, field string, from, to time.Time, window time.Duration) ([]WindowStats, error)
}
