package models

// 身体部位颜色等级
const (
	StatusCritical = "critical"
	StatusWarning  = "warning"
	StatusElevated = "elevated"
	StatusMild     = "mild"
	StatusNormal   = "normal"
)

// 风险等级
const (
	RiskCritical = "CRITICAL"
	RiskHigh     = "HIGH"
	RiskModerate = "MODERATE"
	RiskLow      = "LOW"
)

// BodyPartStatus 身体图上单个部位的状态
type BodyPartStatus struct {
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	StressTrend float64 `json:"stress_trend"` // EMA
	Tremor      float64 `json:"tremor"`       // EMA
	StressTimer float64 `json:"stress_timer"`
	Speed       float64 `json:"speed"`
	StressMean  float64 `json:"stress_mean"`
	StressStd   float64 `json:"stress_std"`
	StressZ     float64 `json:"stress_z"`
	Slope       float64 `json:"slope"`
	PeakStress  float64 `json:"peak_stress"`
	PeakTremor  float64 `json:"peak_tremor"`
	AlertFrames int     `json:"alert_frames"`
}

// GlobalStats 当前帧的全局统计
type GlobalStats struct {
	MaxStress  float64 `json:"max_stress"`
	AvgStress  float64 `json:"avg_stress"`
	MaxTremor  float64 `json:"max_tremor"`
	AvgTremor  float64 `json:"avg_tremor"`
	FocusLevel float64 `json:"focus_level"`
}

// RegionScore 受影响部位排名条目
type RegionScore struct {
	Name       string  `json:"name"`
	Key        string  `json:"key"`
	Score      float64 `json:"score"`
	EMAStress  float64 `json:"ema_stress"`
	EMATremor  float64 `json:"ema_tremor"`
	PeakStress float64 `json:"peak_stress"`
	Slope      float64 `json:"slope"` // x100
	Std        float64 `json:"std"`
}

// AdvancedAnalytics 看板使用的完整分析载荷
type AdvancedAnalytics struct {
	StabilityIndex     float64           `json:"stability_index"`
	RiskClassification string            `json:"risk_classification"`
	ConfidenceScore    float64           `json:"confidence_score"`
	TrendDirection     string            `json:"trend_direction"`
	TrendSlope         float64           `json:"trend_slope"`
	TrendR2            float64           `json:"trend_r2"`
	Anomalies          []AnomalyEvent    `json:"anomalies"`
	AnomalyCount       int               `json:"anomaly_count"`
	TopAffectedRegions []RegionScore     `json:"top_affected_regions"`
	Prediction120s     *GlobalPrediction `json:"prediction_120s"`
	Prediction60s      *GlobalPrediction `json:"prediction_60s"`
	Prediction30s      *GlobalPrediction `json:"prediction_30s"`
	SessionDurationS   float64           `json:"session_duration_s"`
	FrameCount         int               `json:"frame_count"`
	EscalationLevel    int               `json:"escalation_level"`
	SessionSummary     string            `json:"session_summary"`
	ClinicalAction     string            `json:"clinical_action"`
}

// SessionSnapshot 推送到看板的单帧快照
type SessionSnapshot struct {
	SessionID   string                    `json:"session_id"`
	PatientID   string                    `json:"patient_id"`
	Timestamp   string                    `json:"timestamp"` // RFC3339
	BodyStatus  map[string]BodyPartStatus `json:"body_status"`
	GlobalStats GlobalStats               `json:"global_stats"`
	AICommand   AICommand                 `json:"ai_command"`
	Focus       float64                   `json:"focus"`
}

// DashboardMessage 看板 WebSocket 消息
type DashboardMessage struct {
	Type string      `json:"type"` // "sensor_update" | "analytics" | "ping"
	Data interface{} `json:"data,omitempty"`
}
