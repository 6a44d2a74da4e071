package anomaly

import (
	"fmt"
	"math"

	"yourmove/internal/models"
)

const (
	spikeMinDelta      = 3.0
	spikeRatioModerate = 2.0
	spikeRatioHigh     = 3.5
	spikeRatioCritical = 5.0
)

// SpikeDetector 相邻两帧压力突变。记录每个部位的上一帧压力值。
type SpikeDetector struct {
	prev map[string]float64
}

func NewSpikeDetector() *SpikeDetector {
	return &SpikeDetector{prev: make(map[string]float64)}
}

func (d *SpikeDetector) name() string { return models.MethodSpike }

func (d *SpikeDetector) detect(fc *frameContext) []models.AnomalyEvent {
	var events []models.AnomalyEvent
	for _, s := range fc.sensors {
		if ev, ok := d.detectSensor(s, fc); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (d *SpikeDetector) detectSensor(s sensorInput, fc *frameContext) (models.AnomalyEvent, bool) {
	value := s.reading.StressTrend
	prev, seen := d.prev[s.name]
	d.prev[s.name] = value
	if !seen {
		return models.AnomalyEvent{}, false
	}

	delta := math.Abs(value - prev)
	if delta < spikeMinDelta {
		return models.AnomalyEvent{}, false
	}
	std := s.proc.StressStd()
	if !(std >= 1e-6) {
		return models.AnomalyEvent{}, false
	}
	ratio := delta / std
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio < spikeRatioModerate {
		return models.AnomalyEvent{}, false
	}

	severity := models.SeverityModerate
	switch {
	case ratio >= spikeRatioCritical:
		severity = models.SeverityCritical
	case ratio >= spikeRatioHigh:
		severity = models.SeverityHigh
	}

	return models.AnomalyEvent{
		Sensor:     s.name,
		Method:     models.MethodSpike,
		Severity:   severity,
		Score:      models.Round(ratio, 2),
		Confidence: math.Min(0.9, ratio/8),
		Value:      value,
		Baseline:   prev,
		Description: fmt.Sprintf("Acute stress spike in %s: Δ%.1f (%.1f× rolling std) over 1 frame",
			models.TitleRegion(s.name), delta, ratio),
		Timestamp: fc.now,
	}, true
}
