package anomaly

import (
	"fmt"

	"yourmove/internal/models"
)

const (
	multiRatioModerate = 0.65
	multiRatioHigh     = 0.75
	multiRatioCritical = 0.85
)

// MultiSensorDetector 多个部位同时高于各自基线（mean+std），全局检测
type MultiSensorDetector struct{}

func (MultiSensorDetector) name() string { return models.MethodMultiSensor }

func (MultiSensorDetector) detect(fc *frameContext) []models.AnomalyEvent {
	n := len(fc.sensors)
	if n == 0 {
		return nil
	}

	elevated := 0
	for _, s := range fc.sensors {
		if s.reading.StressTrend > s.proc.StressMean()+s.proc.StressStd() {
			elevated++
		}
	}
	ratio := float64(elevated) / float64(n)
	if ratio < multiRatioModerate {
		return nil
	}

	severity := models.SeverityModerate
	switch {
	case ratio >= multiRatioCritical:
		severity = models.SeverityCritical
	case ratio >= multiRatioHigh:
		severity = models.SeverityHigh
	}

	return []models.AnomalyEvent{{
		Sensor:     models.GlobalSensor,
		Method:     models.MethodMultiSensor,
		Severity:   severity,
		Score:      models.Round(ratio*5, 2),
		Confidence: models.Round(ratio*0.9, 2),
		Value:      ratio,
		Baseline:   multiRatioModerate,
		Description: fmt.Sprintf("Global arousal: %d/%d sensors (%.0f%%) simultaneously elevated above individual baselines",
			elevated, n, ratio*100),
		Timestamp: fc.now,
	}}
}
