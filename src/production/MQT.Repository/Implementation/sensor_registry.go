package implementation

import (
	"context"
	"database/sql"

	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
)

type PostgresSensorRegistry struct {
	db *sql.DB
}

func NewPostgresSensorRegistry(db *sql.DB) *PostgresSensorRegistry {
	return &PostgresSensorRegistry{db: db}
}

func (r *PostgresSensorRegistry) LookupBySensorID(ctx context.Context, sensorID string) (*mqtmodels.Sensor, error) {
	query := `SELECT sensor_id, company_id, status, created_at FROM sensors WHERE sensor_id = $1`

	var sensor mqtmodels.Sensor
	err := r.db.QueryRowContext(ctx, query, sensorID).Scan(&sensor.SensorID, &sensor.CompanyID, &sensor.Status, &sensor.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &sensor, nil
}
