package anomaly

import (
	"sort"
	"time"

	"yourmove/internal/models"
	"yourmove/internal/processor"

	"go.uber.org/zap"
)

// Engine 运行全部检测器，按 (sensor, method) 去重并按严重程度降序排列。
// 持有 Spike/Sustained 的会话状态，每个会话一个实例。
type Engine struct {
	detectors []detector
	logger    *zap.Logger
}

// NewEngine 创建引擎
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		detectors: []detector{
			ZScoreDetector{},
			NewSpikeDetector(),
			NewSustainedDetector(),
			MultiSensorDetector{},
		},
		logger: logger,
	}
}

type dedupKey struct {
	sensor string
	method string
}

// Run 对当前帧执行检测。帧中未知或缺少处理器的部位被跳过。
// 同一 (sensor, method) 只保留严重程度最高的事件（相同则保留先出现的），
// 因此同一部位压力和震颤的 z-score 事件只会留下一个。
func (e *Engine) Run(frame *models.FrameMessage, processors map[string]*processor.SensorProcessor, now time.Time) []models.AnomalyEvent {
	fc := newFrameContext(frame, processors, now)

	seen := make(map[dedupKey]int)
	var merged []models.AnomalyEvent
	for _, d := range e.detectors {
		events := d.detect(fc)
		if len(events) > 0 {
			e.logger.Debug("Detector fired",
				zap.String("session_id", frame.SessionID),
				zap.String("detector", d.name()),
				zap.Int("events", len(events)),
			)
		}
		for _, ev := range events {
			key := dedupKey{sensor: ev.Sensor, method: ev.Method}
			idx, ok := seen[key]
			if !ok {
				seen[key] = len(merged)
				merged = append(merged, ev)
				continue
			}
			if ev.Severity > merged[idx].Severity {
				merged[idx] = ev
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Severity > merged[j].Severity
	})
	return merged
}
