package implementation

import (
	"context"
	"database/sql"
)

type PostgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

func (r *PostgresAuditRepository) RecordInvalidPayload(ctx context.Context, topic string, rawPayload []byte, reason, parseError string) error {
	query := `
		INSERT INTO invalid_sensor_data (topic, raw_payload, reason, parse_error)
		VALUES ($1, $2, $3, $4)
	`

	parseErr := sql.NullString{String: parseError, Valid: parseError != ""}
	_, err := r.db.ExecContext(ctx, query, topic, rawPayload, reason, parseErr)
	return err
}
