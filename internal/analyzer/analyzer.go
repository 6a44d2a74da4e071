// Package analyzer 会话级分析编排：更新各部位处理器、专注度优先判定、
// 异常检测、生成指令并维护升级等级，同时组装看板分析数据。
//
// MovementAnalyzer 不加锁，同一会话的帧必须串行处理。
package analyzer

import (
	"fmt"
	"time"

	"yourmove/internal/anomaly"
	"yourmove/internal/models"
	"yourmove/internal/predictor"
	"yourmove/internal/processor"

	"go.uber.org/zap"
)

const (
	FocusCritical = 0.35
	FocusLow      = 0.6

	StressCritical = 15.0
	StressElevated = 10.0
	StressTimerMin = 3.0
	TremorSevere   = 5.0
	TremorMild     = 2.5

	// MaxEscalation 升级等级上限
	MaxEscalation = 3
)

// Option 可选配置
type Option func(*MovementAnalyzer)

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(a *MovementAnalyzer) { a.now = now }
}

// WithAuditSink 替换审计输出，默认写 zap 日志
func WithAuditSink(sink AuditSink) Option {
	return func(a *MovementAnalyzer) { a.audit = sink }
}

// MovementAnalyzer 单个会话的完整分析状态
type MovementAnalyzer struct {
	processors map[string]*processor.SensorProcessor
	engine     *anomaly.Engine
	predictor  *predictor.StressPredictor
	audit      AuditSink
	logger     *zap.Logger
	now        func() time.Time

	sessionStart time.Time
	frameCount   int
	escalation   int

	// 最近一次检测结果，供分析载荷复用（不重复运行有状态的检测器）
	lastAnomalies []models.AnomalyEvent
}

// New 为 13 个部位创建处理器。capacity < 2 返回 stats.ErrInvalidCapacity。
func New(capacity int, logger *zap.Logger, opts ...Option) (*MovementAnalyzer, error) {
	a := &MovementAnalyzer{
		processors: make(map[string]*processor.SensorProcessor, len(models.Regions)),
		engine:     anomaly.NewEngine(logger),
		predictor:  predictor.New(),
		logger:     logger,
		now:        time.Now,
	}
	for _, region := range models.Regions {
		proc, err := processor.New(capacity)
		if err != nil {
			return nil, fmt.Errorf("create processor %s: %w", region, err)
		}
		a.processors[region] = proc
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = NewZapAuditSink(logger)
	}
	a.predictor.WithClock(a.now)
	a.sessionStart = a.now()
	return a, nil
}

func (a *MovementAnalyzer) Escalation() int { return a.escalation }
func (a *MovementAnalyzer) FrameCount() int { return a.frameCount }

// Processor 返回某部位的处理器
func (a *MovementAnalyzer) Processor(region string) (*processor.SensorProcessor, bool) {
	p, ok := a.processors[region]
	return p, ok
}

// LastAnomalies 最近一帧的检测结果（已按严重程度排序）
func (a *MovementAnalyzer) LastAnomalies() []models.AnomalyEvent {
	return a.lastAnomalies
}

// Analyze 处理一帧并返回指令
func (a *MovementAnalyzer) Analyze(frame *models.FrameMessage) models.AICommand {
	a.frameCount++
	now := a.now()
	ts := frame.Time(now)
	focus := frame.Focus()

	for region, reading := range frame.Sensors {
		if proc, ok := a.processors[region]; ok {
			proc.Update(reading.StressTrend, reading.TremorIntensity, ts)
		}
	}

	// 专注度优先，跳过异常检测
	if focus < FocusCritical {
		a.escalation = min(MaxEscalation, a.escalation+1)
		a.lastAnomalies = nil
		cmd := models.AICommand{
			Command:      models.CommandDisengage,
			TargetSensor: models.TargetHMD,
			Reason: fmt.Sprintf("Eye-focus index %.3f below disengagement threshold (%v). %s",
				focus, FocusCritical, models.ClinicalActions[models.CommandDisengage]),
			Severity: models.CommandSeverityCritical,
		}
		a.record(frame, now, cmd, models.TriggerFocusCritical, 0)
		return cmd
	}
	if focus < FocusLow {
		a.lastAnomalies = nil
		cmd := models.AICommand{
			Command:      models.CommandPauseAndBreathe,
			TargetSensor: models.TargetHMD,
			Reason: fmt.Sprintf("Attention drift: focus %.3f (threshold %v). %s",
				focus, FocusLow, models.ClinicalActions[models.CommandPauseAndBreathe]),
			Severity: models.CommandSeverityMedium,
		}
		a.record(frame, now, cmd, models.TriggerFocusLow, 0)
		return cmd
	}

	anomalies := a.engine.Run(frame, a.processors, now)
	a.lastAnomalies = anomalies

	cmd, trigger := a.selectCommand(anomalies)
	a.record(frame, now, cmd, trigger, len(anomalies))
	return cmd
}

// selectCommand 根据最高严重程度的异常选择指令并更新升级等级
func (a *MovementAnalyzer) selectCommand(anomalies []models.AnomalyEvent) (models.AICommand, string) {
	if len(anomalies) == 0 {
		a.escalation = max(0, a.escalation-1)
		return models.AICommand{
			Command:  models.CommandContinue,
			Reason:   models.ClinicalActions[models.CommandContinue],
			Severity: models.CommandSeverityLow,
		}, models.TriggerNone
	}

	top := anomalies[0]
	cmd := models.AICommand{TargetSensor: top.Sensor}
	switch top.Severity {
	case models.SeverityCritical:
		a.escalation = min(MaxEscalation, a.escalation+1)
		// 单帧瞬时 critical 只给 high，连续出现后才升到 critical
		cmd.Severity = models.CommandSeverityHigh
		if a.escalation >= 2 {
			cmd.Severity = models.CommandSeverityCritical
		}
		cmd.Command = models.CommandCalmDown
		cmd.Reason = fmt.Sprintf("%s [z=%.2f, conf=%.0f%%]. %s",
			top.Description, top.Score, top.Confidence*100, models.ClinicalActions[models.CommandCalmDown])
	case models.SeverityHigh:
		cmd.Command = models.CommandPauseAndBreathe
		cmd.Severity = models.CommandSeverityHigh
		cmd.Reason = fmt.Sprintf("%s. %s", top.Description, models.ClinicalActions[models.CommandPauseAndBreathe])
	case models.SeverityModerate:
		a.escalation = max(0, a.escalation-1)
		cmd.Command = models.CommandSlowDown
		cmd.Severity = models.CommandSeverityMedium
		cmd.Reason = fmt.Sprintf("%s. %s", top.Description, models.ClinicalActions[models.CommandSlowDown])
	default:
		a.escalation = max(0, a.escalation-1)
		cmd.Command = models.CommandMonitor
		cmd.Severity = models.CommandSeverityLow
		cmd.Reason = fmt.Sprintf("%s. %s", top.Description, models.ClinicalActions[models.CommandMonitor])
	}
	return cmd, models.TriggerAnomaly
}

func (a *MovementAnalyzer) record(frame *models.FrameMessage, now time.Time, cmd models.AICommand, trigger string, anomalies int) {
	a.audit.Record(models.DecisionRecord{
		Event:      "ai_command",
		Timestamp:  float64(now.UnixMicro()) / 1e6,
		SessionID:  frame.SessionID,
		Command:    cmd.Command,
		Severity:   cmd.Severity,
		Trigger:    trigger,
		Anomalies:  anomalies,
		Escalation: a.escalation,
		Frame:      a.frameCount,
		Focus:      models.Round(frame.Focus(), 3),
	})
}

// SessionDuration 会话已持续时间（秒，保留 1 位小数）
func (a *MovementAnalyzer) SessionDuration() float64 {
	return models.Round(a.now().Sub(a.sessionStart).Seconds(), 1)
}

func (a *MovementAnalyzer) Snapshot(frame *models.FrameMessage, cmd models.AICommand) models.SessionSnapshot {
	return models.SessionSnapshot{
		SessionID:   frame.SessionID,
		PatientID:   frame.PatientID,
		Timestamp:   a.now().UTC().Format(time.RFC3339),
		BodyStatus:  a.BodyStatus(frame),
		GlobalStats: a.GlobalStats(frame),
		AICommand:   cmd,
		Focus:       models.Round(frame.Focus(), 3),
	}
}
