package models

// 指令类型
const (
	CommandContinue        = "continue"
	CommandMonitor         = "monitor"
	CommandSlowDown        = "slow_down"
	CommandPauseAndBreathe = "pause_and_breathe"
	CommandCalmDown        = "calm_down"
	CommandDisengage       = "disengage"
	// CommandError 仅由传输层在帧无效时返回
	CommandError = "error"
)

// CommandSeverity 指令严重程度（与异常严重程度是两套枚举）
type CommandSeverity string

const (
	CommandSeverityLow      CommandSeverity = "low"
	CommandSeverityMedium   CommandSeverity = "medium"
	CommandSeverityHigh     CommandSeverity = "high"
	CommandSeverityCritical CommandSeverity = "critical"
)

// TargetHMD 专注度触发的指令目标
const TargetHMD = "hmd"

// AICommand 每帧下发给客户端的指令
type AICommand struct {
	Command      string          `json:"command"`
	TargetSensor string          `json:"target_sensor,omitempty"`
	Reason       string          `json:"reason"`
	Severity     CommandSeverity `json:"severity"`
}

// ClinicalActions 指令对应的临床处置建议
var ClinicalActions = map[string]string{
	CommandContinue:        "Continue current protocol. All metrics within normal range.",
	CommandMonitor:         "Increase observation frequency. Arousal trend rising.",
	CommandSlowDown:        "Reduce task complexity. Elevated arousal detected, prevent escalation.",
	CommandPauseAndBreathe: "Initiate structured breathing exercise. Significant tremor or arousal.",
	CommandCalmDown:        "Activate full calming protocol. Consider session pause.",
	CommandDisengage:       "STOP SESSION. Patient disengaged. Alert supervising clinician.",
}

// 决策触发原因
const (
	TriggerFocusCritical = "focus_critical"
	TriggerFocusLow      = "focus_low"
	TriggerAnomaly       = "anomaly"
	TriggerNone          = "none"
)

// DecisionRecord 每帧一条的审计记录
type DecisionRecord struct {
	Event      string          `json:"event"`
	Timestamp  float64         `json:"ts"`
	SessionID  string          `json:"session_id,omitempty"`
	Command    string          `json:"command"`
	Severity   CommandSeverity `json:"severity"`
	Trigger    string          `json:"trigger"`
	Anomalies  int             `json:"anomalies"`
	Escalation int             `json:"escalation"`
	Frame      int             `json:"frame"`
	Focus      float64         `json:"focus"`
}
