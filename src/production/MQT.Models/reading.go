package mqtmodels

import "time"

// NormalizedReading is a validated telemetry sample ready for persistence
// and broadcast. It is append-only: never mutated after the validator
// produces it.
type NormalizedReading struct {
	SensorID  string             `json:"sensor_id"`
	Timestamp int64              `json:"timestamp"` // seconds since epoch, producer-supplied
	Readings  map[string]float64 `json:"readings"`
	Topic     string             `json:"-"`
	Raw       []byte             `json:"-"`
}

// EventTime returns the producer-supplied event timestamp
func (r NormalizedReading) EventTime() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// ReadingRecord is the relational projection of a NormalizedReading
type ReadingRecord struct {
	ID        int64              `json:"id"`
	SensorID  string             `json:"sensor_id"`
	EventTS   time.Time          `json:"event_ts"`
	Readings  map[string]float64 `json:"readings"`
	Raw       []byte             `json:"raw_payload,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// SensorStatus is a parsed status/heartbeat payload. Status messages are
// fanned out but never persisted.
type SensorStatus struct {
	SensorID string                 `json:"sensor_id"`
	Topic    string                 `json:"-"`
	Fields   map[string]interface{} `json:"fields"`
}
