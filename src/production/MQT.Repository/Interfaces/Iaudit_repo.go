package interfaces

import "context"

// AuditRepository records rejected or malformed payloads durably
type AuditRepository interface {
	RecordInvalidPayload(ctx context.Context, topic string, rawPayload []byte, reason, parseError string) error
}
