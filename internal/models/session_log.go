package models

import (
	"encoding/json"
	"time"
)

// SessionDataLog session_data_log 表的一行
type SessionDataLog struct {
	SessionID   string    `db:"session_id" json:"session_id"`
	PatientID   string    `db:"patient_id" json:"patient_id"`
	FocusLevel  int       `db:"focus_level" json:"focus_level"`   // 专注度 x100
	StressLevel int       `db:"stress_level" json:"stress_level"` // 当前帧最大压力（取整）
	MaxTremor   float64   `db:"max_tremor" json:"max_tremor"`
	AvgStress   float64   `db:"avg_stress" json:"avg_stress"`
	AICommand   string    `db:"ai_command" json:"ai_command"`
	AISeverity  string    `db:"ai_severity" json:"ai_severity"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}

// AnomalyRecord anomaly_events 表的一行
type AnomalyRecord struct {
	RecordID    string          `db:"record_id" json:"record_id"`
	SessionID   string          `db:"session_id" json:"session_id"`
	PatientID   string          `db:"patient_id" json:"patient_id"`
	Sensor      string          `db:"sensor" json:"sensor"`
	Method      string          `db:"method" json:"method"`
	Severity    string          `db:"severity" json:"severity"`
	Score       float64         `db:"score" json:"score"`
	Confidence  float64         `db:"confidence" json:"confidence"`
	Description string          `db:"description" json:"description"`
	TriggerData json.RawMessage `db:"trigger_data" json:"trigger_data,omitempty"` // 完整 AnomalyEvent
	DetectedAt  time.Time       `db:"detected_at" json:"detected_at"`
}
