package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Repository/Interfaces"
	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
)

type PostgresReadingRepository struct {
	db *sql.DB
}

func NewPostgresReadingRepository(db *sql.DB) *PostgresReadingRepository {
	return &PostgresReadingRepository{db: db}
}

func (r *PostgresReadingRepository) InsertReading(ctx context.Context, reading mqtmodels.NormalizedReading) error {
	query := `
		INSERT INTO sensor_readings (sensor_id, event_ts, readings, raw_payload)
		VALUES ($1, $2, $3, $4)
	`

	readingsJSON, err := json.Marshal(reading.Readings)
	if err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, reading.SensorID, reading.EventTime(), readingsJSON, reading.Raw)
	return err
}

func (r *PostgresReadingRepository) GetReadings(ctx context.Context, params interfaces.ReadingQueryParams) ([]mqtmodels.ReadingRecord, error) {
	query := `
		SELECT id, sensor_id, event_ts, readings, created_at
		FROM sensor_readings
		WHERE sensor_id = $1
	`
	args := []interface{}{params.SensorID}

	if params.From != nil {
		args = append(args, *params.From)
		query += fmt.Sprintf(" AND event_ts >= $%d", len(args))
	}
	if params.To != nil {
		args = append(args, *params.To)
		query += fmt.Sprintf(" AND event_ts <= $%d", len(args))
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY event_ts DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []mqtmodels.ReadingRecord
	for rows.Next() {
		var record mqtmodels.ReadingRecord
		var readingsJSON []byte

		if err := rows.Scan(&record.ID, &record.SensorID, &record.EventTS, &readingsJSON, &record.CreatedAt); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(readingsJSON, &record.Readings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal readings: %w", err)
		}

		records = append(records, record)
	}

	return records, rows.Err()
}
