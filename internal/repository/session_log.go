package repository

import (
	"context"
	"database/sql"
	"fmt"

	"yourmove/internal/models"

	"go.uber.org/zap"
)

// SessionLogRepository session_data_log 表
type SessionLogRepository struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// NewSessionLogRepository 创建会话日志仓库
func NewSessionLogRepository(db *sql.DB, driver string, logger *zap.Logger) *SessionLogRepository {
	return &SessionLogRepository{
		db:     db,
		driver: driver,
		logger: logger,
	}
}

// Insert 写入一条会话日志
func (r *SessionLogRepository) Insert(ctx context.Context, log *models.SessionDataLog) error {
	if log == nil {
		return fmt.Errorf("log is required")
	}
	if log.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	query := `
		INSERT INTO session_data_log (
			session_id,
			patient_id,
			focus_level,
			stress_level,
			max_tremor,
			avg_stress,
			ai_command,
			ai_severity,
			recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.db.ExecContext(ctx, rebind(r.driver, query),
		log.SessionID,
		log.PatientID,
		log.FocusLevel,
		log.StressLevel,
		log.MaxTremor,
		log.AvgStress,
		log.AICommand,
		log.AISeverity,
		log.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session log: %w", err)
	}
	return nil
}

// ListBySession 按时间倒序返回某会话最近的日志
func (r *SessionLogRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SessionDataLog, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT
			session_id,
			patient_id,
			focus_level,
			stress_level,
			max_tremor,
			avg_stress,
			ai_command,
			ai_severity,
			recorded_at
		FROM session_data_log
		WHERE session_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, rebind(r.driver, query), sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session logs: %w", err)
	}
	defer rows.Close()

	var logs []models.SessionDataLog
	for rows.Next() {
		var l models.SessionDataLog
		if err := rows.Scan(
			&l.SessionID,
			&l.PatientID,
			&l.FocusLevel,
			&l.StressLevel,
			&l.MaxTremor,
			&l.AvgStress,
			&l.AICommand,
			&l.AISeverity,
			&l.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session logs: %w", err)
	}
	return logs, nil
}
