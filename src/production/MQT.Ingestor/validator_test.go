package mqtingestor

import (
	"testing"

	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
)

func TestParseReading_Valid(t *testing.T) {
	payload := []byte(`{"sensor_id":"s1","timestamp":1700000000,"temperature":25.4,"humidity":55.2}`)

	reading, rejection := ParseReading("sensors/s1/data", payload)
	if rejection != nil {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}

	if reading.SensorID != "s1" {
		t.Errorf("SensorID = %q, want s1", reading.SensorID)
	}
	if reading.Timestamp != 1700000000 {
		t.Errorf("Timestamp = %d, want 1700000000", reading.Timestamp)
	}
	if len(reading.Readings) != 2 {
		t.Fatalf("Readings has %d fields, want 2", len(reading.Readings))
	}
	if reading.Readings["temperature"] != 25.4 {
		t.Errorf("temperature = %v, want 25.4", reading.Readings["temperature"])
	}
	if reading.Readings["humidity"] != 55.2 {
		t.Errorf("humidity = %v, want 55.2", reading.Readings["humidity"])
	}
	if string(reading.Raw) != string(payload) {
		t.Error("raw payload not preserved verbatim")
	}
}

func TestParseReading_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantReason string
	}{
		{
			name:       "unparseable payload",
			payload:    `not json`,
			wantReason: mqtmodels.ReasonParseError,
		},
		{
			name:       "missing sensor_id",
			payload:    `{"timestamp":1700000000,"temperature":21.0}`,
			wantReason: mqtmodels.ReasonInvalidFormat,
		},
		{
			name:       "empty sensor_id",
			payload:    `{"sensor_id":"","timestamp":1700000000}`,
			wantReason: mqtmodels.ReasonInvalidFormat,
		},
		{
			name:       "non-string sensor_id",
			payload:    `{"sensor_id":42,"timestamp":1700000000}`,
			wantReason: mqtmodels.ReasonInvalidFormat,
		},
		{
			name:       "missing timestamp",
			payload:    `{"sensor_id":"s1","temperature":21.0}`,
			wantReason: mqtmodels.ReasonInvalidFormat,
		},
		{
			name:       "non-numeric timestamp",
			payload:    `{"sensor_id":"s1","timestamp":"now"}`,
			wantReason: mqtmodels.ReasonInvalidFormat,
		},
		{
			name:       "non-numeric measurement",
			payload:    `{"sensor_id":"s1","timestamp":1700000000,"temperature":"hot"}`,
			wantReason: mqtmodels.ReasonInvalidFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading, rejection := ParseReading("sensors/s1/data", []byte(tt.payload))
			if reading != nil {
				t.Fatal("expected rejection, got a reading")
			}
			if rejection == nil {
				t.Fatal("expected rejection, got nil")
			}
			if rejection.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", rejection.Reason, tt.wantReason)
			}
		})
	}
}

func TestParseReading_NoMeasurements(t *testing.T) {
	reading, rejection := ParseReading("sensors/s1/data", []byte(`{"sensor_id":"s1","timestamp":1700000000}`))
	if rejection != nil {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}
	if len(reading.Readings) != 0 {
		t.Errorf("Readings has %d fields, want 0", len(reading.Readings))
	}
}

func TestParseStatus(t *testing.T) {
	status, rejection := ParseStatus("sensors/s2/status", "s2", []byte(`{"battery":"low","online":true}`))
	if rejection != nil {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}
	if status.SensorID != "s2" {
		t.Errorf("SensorID = %q, want s2 from topic", status.SensorID)
	}
	if status.Fields["battery"] != "low" {
		t.Errorf("battery = %v, want low", status.Fields["battery"])
	}
}

func TestParseStatus_PayloadSensorIDWins(t *testing.T) {
	status, rejection := ParseStatus("sensors/s2/status", "s2", []byte(`{"sensor_id":"s3"}`))
	if rejection != nil {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}
	if status.SensorID != "s3" {
		t.Errorf("SensorID = %q, want s3 from payload", status.SensorID)
	}
}

func TestParseStatus_ParseError(t *testing.T) {
	status, rejection := ParseStatus("sensors/s2/status", "s2", []byte(`{{`))
	if status != nil {
		t.Fatal("expected rejection, got a status")
	}
	if rejection == nil || rejection.Reason != mqtmodels.ReasonParseError {
		t.Fatalf("rejection = %+v, want parse_error", rejection)
	}
}

func TestSensorIDFromTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"sensors/s1/data", "s1"},
		{"sensors/pi_007/status", "pi_007"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		if got := sensorIDFromTopic(tt.topic); got != tt.want {
			t.Errorf("sensorIDFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}
