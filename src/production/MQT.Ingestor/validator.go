package mqtingestor

import (
	"encoding/json"
	"fmt"

	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
)

// Rejection describes why a payload may not proceed to persistence. Detail
// ends up in the audit entry's parse_error column.
type Rejection struct {
	Reason string
	Detail string
}

// ParseReading normalizes and type-checks a raw data payload. The contract:
// unparseable bytes reject with parse_error; a missing or ill-typed
// sensor_id or timestamp, or any non-numeric measurement field, rejects
// with invalid_format. On success exactly one NormalizedReading is
// produced, with the raw payload preserved verbatim.
func ParseReading(topic string, payload []byte) (*mqtmodels.NormalizedReading, *Rejection) {
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, &Rejection{Reason: mqtmodels.ReasonParseError, Detail: err.Error()}
	}

	sensorID, ok := fields["sensor_id"].(string)
	if !ok || sensorID == "" {
		return nil, &Rejection{Reason: mqtmodels.ReasonInvalidFormat, Detail: "sensor_id must be a non-empty string"}
	}

	timestamp, ok := fields["timestamp"].(float64)
	if !ok {
		return nil, &Rejection{Reason: mqtmodels.ReasonInvalidFormat, Detail: "timestamp must be numeric"}
	}

	readings := make(map[string]float64)
	for name, value := range fields {
		if name == "sensor_id" || name == "timestamp" {
			continue
		}
		number, ok := value.(float64)
		if !ok {
			return nil, &Rejection{Reason: mqtmodels.ReasonInvalidFormat, Detail: fmt.Sprintf("field %q must be numeric", name)}
		}
		readings[name] = number
	}

	return &mqtmodels.NormalizedReading{
		SensorID:  sensorID,
		Timestamp: int64(timestamp),
		Readings:  readings,
		Topic:     topic,
		Raw:       payload,
	}, nil
}

// ParseStatus applies the parse-or-reject discipline to a status payload
// but skips numeric-field validation. The sensor identifier falls back to
// the one extracted from the topic path.
func ParseStatus(topic, topicSensorID string, payload []byte) (*mqtmodels.SensorStatus, *Rejection) {
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, &Rejection{Reason: mqtmodels.ReasonParseError, Detail: err.Error()}
	}

	sensorID := topicSensorID
	if id, ok := fields["sensor_id"].(string); ok && id != "" {
		sensorID = id
	}

	return &mqtmodels.SensorStatus{
		SensorID: sensorID,
		Topic:    topic,
		Fields:   fields,
	}, nil
}
