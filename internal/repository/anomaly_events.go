package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"yourmove/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnomalyEventsRepository anomaly_events 表
type AnomalyEventsRepository struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// NewAnomalyEventsRepository 创建异常事件仓库
func NewAnomalyEventsRepository(db *sql.DB, driver string, logger *zap.Logger) *AnomalyEventsRepository {
	return &AnomalyEventsRepository{
		db:     db,
		driver: driver,
		logger: logger,
	}
}

// NewAnomalyRecord 由检测事件生成待写入的记录，trigger_data 保存完整事件 JSON
func NewAnomalyRecord(sessionID, patientID string, ev models.AnomalyEvent) (*models.AnomalyRecord, error) {
	triggerData, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger data: %w", err)
	}
	rounded := ev.Rounded()
	return &models.AnomalyRecord{
		RecordID:    uuid.New().String(),
		SessionID:   sessionID,
		PatientID:   patientID,
		Sensor:      ev.Sensor,
		Method:      ev.Method,
		Severity:    ev.Severity.String(),
		Score:       rounded.Score,
		Confidence:  rounded.Confidence,
		Description: ev.Description,
		TriggerData: triggerData,
		DetectedAt:  ev.Timestamp,
	}, nil
}

// Insert 写入一条异常记录
func (r *AnomalyEventsRepository) Insert(ctx context.Context, rec *models.AnomalyRecord) error {
	if rec == nil {
		return fmt.Errorf("record is required")
	}
	if rec.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if rec.RecordID == "" {
		rec.RecordID = uuid.New().String()
	}

	query := `
		INSERT INTO anomaly_events (
			record_id,
			session_id,
			patient_id,
			sensor,
			method,
			severity,
			score,
			confidence,
			description,
			trigger_data,
			detected_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	// JSONB 列接收字符串
	_, err := r.db.ExecContext(ctx, rebind(r.driver, query),
		rec.RecordID,
		rec.SessionID,
		rec.PatientID,
		rec.Sensor,
		rec.Method,
		rec.Severity,
		rec.Score,
		rec.Confidence,
		rec.Description,
		string(rec.TriggerData),
		rec.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert anomaly event: %w", err)
	}
	return nil
}

// ListBySession 按时间倒序返回某会话最近的异常记录
func (r *AnomalyEventsRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.AnomalyRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT
			record_id,
			session_id,
			patient_id,
			sensor,
			method,
			severity,
			score,
			confidence,
			description,
			trigger_data,
			detected_at
		FROM anomaly_events
		WHERE session_id = $1
		ORDER BY detected_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, rebind(r.driver, query), sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomaly events: %w", err)
	}
	defer rows.Close()

	var records []models.AnomalyRecord
	for rows.Next() {
		var rec models.AnomalyRecord
		var triggerData sql.NullString
		if err := rows.Scan(
			&rec.RecordID,
			&rec.SessionID,
			&rec.PatientID,
			&rec.Sensor,
			&rec.Method,
			&rec.Severity,
			&rec.Score,
			&rec.Confidence,
			&rec.Description,
			&triggerData,
			&rec.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly event: %w", err)
		}
		if triggerData.Valid {
			rec.TriggerData = []byte(triggerData.String)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate anomaly events: %w", err)
	}
	return records, nil
}
