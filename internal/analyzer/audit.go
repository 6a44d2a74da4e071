package analyzer

import (
	"yourmove/internal/models"

	"go.uber.org/zap"
)

// AuditSink 接收每帧的决策记录
type AuditSink interface {
	Record(rec models.DecisionRecord)
}

// ZapAuditSink 以结构化日志输出决策记录
type ZapAuditSink struct {
	logger *zap.Logger
}

func NewZapAuditSink(logger *zap.Logger) *ZapAuditSink {
	return &ZapAuditSink{logger: logger.Named("ai")}
}

func (s *ZapAuditSink) Record(rec models.DecisionRecord) {
	s.logger.Info(rec.Event,
		zap.Float64("ts", rec.Timestamp),
		zap.String("session_id", rec.SessionID),
		zap.String("command", rec.Command),
		zap.String("severity", string(rec.Severity)),
		zap.String("trigger", rec.Trigger),
		zap.Int("anomalies", rec.Anomalies),
		zap.Int("escalation", rec.Escalation),
		zap.Int("frame", rec.Frame),
		zap.Float64("focus", rec.Focus),
	)
}
