package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS session_data_log (
		id            BIGSERIAL PRIMARY KEY,
		session_id    VARCHAR(64)  NOT NULL,
		patient_id    VARCHAR(64)  NOT NULL DEFAULT '',
		focus_level   INTEGER      NOT NULL,
		stress_level  INTEGER      NOT NULL,
		max_tremor    DOUBLE PRECISION NOT NULL,
		avg_stress    DOUBLE PRECISION NOT NULL,
		ai_command    VARCHAR(32)  NOT NULL,
		ai_severity   VARCHAR(16)  NOT NULL,
		recorded_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_data_log_session ON session_data_log (session_id, recorded_at)`,
	`CREATE TABLE IF NOT EXISTS anomaly_events (
		record_id     UUID PRIMARY KEY,
		session_id    VARCHAR(64)  NOT NULL,
		patient_id    VARCHAR(64)  NOT NULL DEFAULT '',
		sensor        VARCHAR(32)  NOT NULL,
		method        VARCHAR(32)  NOT NULL,
		severity      VARCHAR(16)  NOT NULL,
		score         DOUBLE PRECISION NOT NULL,
		confidence    DOUBLE PRECISION NOT NULL,
		description   TEXT         NOT NULL,
		trigger_data  JSONB,
		detected_at   TIMESTAMPTZ  NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_anomaly_events_session ON anomaly_events (session_id, detected_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS session_data_log (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id    TEXT     NOT NULL,
		patient_id    TEXT     NOT NULL DEFAULT '',
		focus_level   INTEGER  NOT NULL,
		stress_level  INTEGER  NOT NULL,
		max_tremor    REAL     NOT NULL,
		avg_stress    REAL     NOT NULL,
		ai_command    TEXT     NOT NULL,
		ai_severity   TEXT     NOT NULL,
		recorded_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_data_log_session ON session_data_log (session_id, recorded_at)`,
	`CREATE TABLE IF NOT EXISTS anomaly_events (
		record_id     TEXT PRIMARY KEY,
		session_id    TEXT     NOT NULL,
		patient_id    TEXT     NOT NULL DEFAULT '',
		sensor        TEXT     NOT NULL,
		method        TEXT     NOT NULL,
		severity      TEXT     NOT NULL,
		score         REAL     NOT NULL,
		confidence    REAL     NOT NULL,
		description   TEXT     NOT NULL,
		trigger_data  TEXT,
		detected_at   DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_anomaly_events_session ON anomaly_events (session_id, detected_at)`,
}

// Migrate 创建表和索引（幂等）
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case DriverPostgres:
		stmts = postgresSchema
	case DriverSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported database driver: %s", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}
