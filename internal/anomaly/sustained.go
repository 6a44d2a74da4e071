package anomaly

import (
	"fmt"
	"math"

	"yourmove/internal/models"
)

const (
	sustainedStressThreshold = 10.0
	sustainedStressCritical  = 15.0
	sustainedTremorThreshold = 2.5
	sustainedTremorCritical  = 5.0

	// 持续帧数要求
	sustainedFramesHigh = 10
	// 触发 critical 的最短持续时间（秒）
	sustainedMinDuration = 3.0
	// 假定帧率 10Hz
	frameSeconds = 0.1
)

// SustainedDetector 超过绝对临床阈值的持续时长。
// 每个部位维护连续超阈值帧数，低于阈值即清零。
type SustainedDetector struct {
	stressFrames map[string]int
	tremorFrames map[string]int
}

func NewSustainedDetector() *SustainedDetector {
	return &SustainedDetector{
		stressFrames: make(map[string]int),
		tremorFrames: make(map[string]int),
	}
}

func (d *SustainedDetector) name() string { return models.MethodSustained }

func (d *SustainedDetector) detect(fc *frameContext) []models.AnomalyEvent {
	var events []models.AnomalyEvent
	for _, s := range fc.sensors {
		if ev, ok := d.detectSensor(s, fc); ok {
			events = append(events, ev)
		}
	}
	return events
}

// detectSensor 按优先级匹配，命中第一条即返回。
// 没有"中度震颤持续"这一档。
func (d *SustainedDetector) detectSensor(s sensorInput, fc *frameContext) (models.AnomalyEvent, bool) {
	stress := s.reading.StressTrend
	tremor := s.reading.TremorIntensity

	if stress >= sustainedStressThreshold {
		d.stressFrames[s.name]++
	} else {
		d.stressFrames[s.name] = 0
	}
	if tremor >= sustainedTremorThreshold {
		d.tremorFrames[s.name]++
	} else {
		d.tremorFrames[s.name] = 0
	}
	sf := d.stressFrames[s.name]
	tf := d.tremorFrames[s.name]

	// 客户端计时优先
	duration := math.Max(s.reading.StressTimer, float64(sf)*frameSeconds)
	title := models.TitleRegion(s.name)

	switch {
	case stress >= sustainedStressCritical && duration >= sustainedMinDuration:
		return models.AnomalyEvent{
			Sensor:      s.name,
			Method:      models.MethodSustained,
			Severity:    models.SeverityCritical,
			Score:       models.Round(stress/sustainedStressCritical*4, 2),
			Confidence:  0.92,
			Value:       stress,
			Baseline:    sustainedStressCritical,
			Description: fmt.Sprintf("Critical arousal sustained %.1fs in %s, immediate clinical intervention required", duration, title),
			Timestamp:   fc.now,
		}, true

	case tremor >= sustainedTremorCritical && tf >= sustainedFramesHigh:
		return models.AnomalyEvent{
			Sensor:      s.name,
			Method:      models.MethodSustained,
			Severity:    models.SeverityHigh,
			Score:       models.Round(tremor/sustainedTremorCritical*3, 2),
			Confidence:  0.85,
			Value:       tremor,
			Baseline:    sustainedTremorCritical,
			Description: fmt.Sprintf("Severe tremor sustained %d frames in %s", tf, title),
			Timestamp:   fc.now,
		}, true

	case stress >= sustainedStressThreshold && sf >= sustainedFramesHigh:
		return models.AnomalyEvent{
			Sensor:      s.name,
			Method:      models.MethodSustained,
			Severity:    models.SeverityModerate,
			Score:       models.Round(stress/sustainedStressThreshold*2, 2),
			Confidence:  0.75,
			Value:       stress,
			Baseline:    sustainedStressThreshold,
			Description: fmt.Sprintf("Elevated arousal sustained %d frames in %s", sf, title),
			Timestamp:   fc.now,
		}, true
	}
	return models.AnomalyEvent{}, false
}
