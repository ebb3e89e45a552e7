package mqtmodels

import "time"

// Rejection reasons recorded with invalid-data audit entries
const (
	ReasonParseError    = "parse_error"
	ReasonInvalidFormat = "invalid_format"
	ReasonUnknownDevice = "unknown_device"
)

// InvalidDataEntry is the durable record of a rejected payload
type InvalidDataEntry struct {
	ID         int64     `json:"id"`
	Topic      string    `json:"topic"`
	RawPayload []byte    `json:"raw_payload"`
	Reason     string    `json:"reason"`
	ParseError string    `json:"parse_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
