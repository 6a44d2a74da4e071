package anomaly

import (
	"fmt"
	"math"
	"strings"

	"yourmove/internal/models"
)

// z-score 分级阈值
const (
	zLow      = 2.0
	zModerate = 2.5
	zHigh     = 3.0
	zCritical = 4.0
)

const (
	signalStress = "stress"
	signalTremor = "tremor"
)

// ZScoreDetector 偏离滚动基线的程度，压力和震颤各检测一次
type ZScoreDetector struct{}

func (ZScoreDetector) name() string { return models.MethodZScore }

func (d ZScoreDetector) detect(fc *frameContext) []models.AnomalyEvent {
	var events []models.AnomalyEvent
	for _, s := range fc.sensors {
		if ev, ok := d.detectSignal(s, signalStress, fc); ok {
			events = append(events, ev)
		}
		if ev, ok := d.detectSignal(s, signalTremor, fc); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (ZScoreDetector) detectSignal(s sensorInput, signal string, fc *frameContext) (models.AnomalyEvent, bool) {
	var value, z, baseline float64
	if signal == signalStress {
		value = s.reading.StressTrend
		z = s.proc.StressZ(value)
		baseline = s.proc.StressMean()
	} else {
		value = s.reading.TremorIntensity
		z = s.proc.TremorZ(value)
		baseline = s.proc.TremorMean()
	}

	absZ := math.Abs(z)
	if absZ < zLow {
		return models.AnomalyEvent{}, false
	}

	var severity models.Severity
	switch {
	case absZ >= zCritical:
		severity = models.SeverityCritical
	case absZ >= zHigh:
		severity = models.SeverityHigh
	case absZ >= zModerate:
		severity = models.SeverityModerate
	default:
		severity = models.SeverityLow
	}

	// 置信度随窗口成熟度上升
	confidence := math.Min(1, s.proc.SignalQuality().DataMaturity()*0.85+0.15)

	return models.AnomalyEvent{
		Sensor:     s.name,
		Method:     models.MethodZScore,
		Severity:   severity,
		Score:      absZ,
		Confidence: confidence,
		Value:      value,
		Baseline:   baseline,
		Description: fmt.Sprintf("%s z-score %.2fσ above rolling baseline (%.2f) in %s",
			strings.ToUpper(signal[:1])+signal[1:], absZ, baseline, models.TitleRegion(s.name)),
		Timestamp: fc.now,
	}, true
}
