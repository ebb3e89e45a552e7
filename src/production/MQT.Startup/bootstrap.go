package startup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	config "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Logger"
)

// Bootstrap ensures schema objects and seed records exist before the
// pipeline starts accepting traffic. It runs once per process lifetime;
// exhausting its retries leaves the process in a degraded state where every
// store operation fails loudly at the point of use.
type Bootstrap struct {
	db     *sql.DB
	mongo  *mongo.Client
	cfg    *config.Config
	logger *logger.Logger
}

func NewBootstrap(db *sql.DB, mongoClient *mongo.Client, cfg *config.Config, log *logger.Logger) *Bootstrap {
	return &Bootstrap{
		db:     db,
		mongo:  mongoClient,
		cfg:    cfg,
		logger: log.WithComponent("startup"),
	}
}

// Run executes the schema loop, the time-series collection check, and the
// seed loop, each bounded by the configured attempt count and fixed delay.
func (b *Bootstrap) Run(ctx context.Context) {
	if err := b.retry(ctx, "ensure schema", b.ensureSchema); err != nil {
		b.logger.ErrorWithError(err, "Schema bootstrap exhausted all attempts, continuing degraded")
		return
	}

	if err := b.ensureTimeSeriesCollection(ctx); err != nil {
		b.logger.ErrorWithError(err, "Failed to ensure time-series collection, continuing degraded")
	}

	if err := b.retry(ctx, "seed records", b.ensureSeedRecords); err != nil {
		b.logger.ErrorWithError(err, "Seed bootstrap exhausted all attempts, continuing degraded")
		return
	}

	b.logger.Info("Startup bootstrap complete")
}

func (b *Bootstrap) retry(ctx context.Context, name string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= b.cfg.Startup.Attempts; attempt++ {
		if err := fn(ctx); err != nil {
			lastErr = err
			b.logger.Logger.Warn().Err(err).Str("step", name).Int("attempt", attempt).Int("max_attempts", b.cfg.Startup.Attempts).Msg("Bootstrap step failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.cfg.Startup.RetryDelay):
			}
			continue
		}
		return nil
	}
	return lastErr
}

// ensureSchema creates tables in dependency order: later tables foreign-key
// into earlier ones.
func (b *Bootstrap) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	createCompaniesTable := `
		CREATE TABLE IF NOT EXISTS companies (
			id          SERIAL PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	createUsersTable := `
		CREATE TABLE IF NOT EXISTS users (
			id             SERIAL PRIMARY KEY,
			username       TEXT NOT NULL UNIQUE,
			email          TEXT NOT NULL,
			password_hash  TEXT NOT NULL,
			role           TEXT NOT NULL,
			company_id     INTEGER NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
		);
	`

	createSensorsTable := `
		CREATE TABLE IF NOT EXISTS sensors (
			sensor_id   TEXT PRIMARY KEY,
			company_id  INTEGER NOT NULL,
			status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive', 'maintenance')),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
		);
	`

	createReadingsTable := `
		CREATE TABLE IF NOT EXISTS sensor_readings (
			id          BIGSERIAL PRIMARY KEY,
			sensor_id   TEXT NOT NULL,
			event_ts    TIMESTAMPTZ NOT NULL,
			readings    JSONB NOT NULL,
			raw_payload BYTEA,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			FOREIGN KEY (sensor_id) REFERENCES sensors(sensor_id) ON DELETE CASCADE
		);
	`

	createAuditTable := `
		CREATE TABLE IF NOT EXISTS invalid_sensor_data (
			id          BIGSERIAL PRIMARY KEY,
			topic       TEXT NOT NULL,
			raw_payload BYTEA,
			reason      TEXT NOT NULL,
			parse_error TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	createIndexes := `
		CREATE INDEX IF NOT EXISTS idx_sensor_readings_sensor_ts_desc ON sensor_readings (sensor_id, event_ts DESC);
		CREATE INDEX IF NOT EXISTS idx_sensor_readings_ts_desc ON sensor_readings (event_ts DESC);
		CREATE INDEX IF NOT EXISTS idx_invalid_sensor_data_created ON invalid_sensor_data (created_at DESC);
	`

	queries := []string{
		createCompaniesTable,
		createUsersTable,
		createSensorsTable,
		createReadingsTable,
		createAuditTable,
		createIndexes,
	}

	for _, query := range queries {
		if _, err := b.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// ensureTimeSeriesCollection creates the Mongo time-series collection,
// tolerating the case where it already exists.
func (b *Bootstrap) ensureTimeSeriesCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	opts := options.CreateCollection().SetTimeSeriesOptions(
		options.TimeSeries().
			SetTimeField("ts").
			SetMetaField("meta").
			SetGranularity("seconds"),
	)

	err := b.mongo.Database(b.cfg.Mongo.DBName).CreateCollection(ctx, b.cfg.Mongo.Collection, opts)
	if err != nil && !isNamespaceExists(err) {
		return err
	}
	return nil
}

func isNamespaceExists(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 48 { // NamespaceExists
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}

// ensureSeedRecords inserts the default company and the first admin user if
// they are absent.
func (b *Bootstrap) ensureSeedRecords(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	companyName := b.cfg.Auth.Admin.Company

	var companyID int
	err := b.db.QueryRowContext(ctx, `SELECT id FROM companies WHERE name = $1`, companyName).Scan(&companyID)
	if err == sql.ErrNoRows {
		b.logger.Logger.Info().Str("company", companyName).Msg("Default company not found, creating it")
		err = b.db.QueryRowContext(ctx, `INSERT INTO companies (name) VALUES ($1) RETURNING id`, companyName).Scan(&companyID)
	}
	if err != nil {
		return fmt.Errorf("failed to ensure default company: %w", err)
	}

	var adminCount int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = 'admin'`).Scan(&adminCount); err != nil {
		return fmt.Errorf("failed to count admin users: %w", err)
	}
	if adminCount > 0 {
		b.logger.Logger.Info().Int("count", adminCount).Msg("Admin users already exist, skipping admin user creation")
		return nil
	}

	b.logger.Info("No admin users found. Creating first admin user...")

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.cfg.Auth.Admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, role, company_id)
		VALUES ($1, $2, $3, 'admin', $4)
	`, b.cfg.Auth.Admin.Username, b.cfg.Auth.Admin.Email, string(hashedPassword), companyID)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	b.logger.Logger.Info().Str("username", b.cfg.Auth.Admin.Username).Msg("First admin user created")
	b.logger.Warn("IMPORTANT: Change the admin password after first login!")

	return nil
}
