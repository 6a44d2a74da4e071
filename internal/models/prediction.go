package models

import (
	"encoding/json"
	"time"
)

// 趋势
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// 会话风险趋势
const (
	SessionTrendEscalating   = "escalating"
	SessionTrendDeescalating = "de-escalating"
	SessionTrendStable       = "stable"
)

// 预测方法
const (
	PredictionMethodEnsemble = "ensemble"
	PredictionMethodEWMA     = "ewma"
)

// StressPrediction 单个部位的短期压力预测
type StressPrediction struct {
	Sensor          string
	HorizonSeconds  int
	PredictedValue  float64
	LowerBound      float64 // 80% 预测区间下界
	UpperBound      float64 // 80% 预测区间上界
	Confidence      float64
	TrendDirection  string
	WillBreach      bool
	BreachThreshold float64
	CurrentValue    float64
	Method          string
	RSquared        float64
}

func (p StressPrediction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Sensor     string  `json:"sensor"`
		HorizonS   int     `json:"horizon_s"`
		Predicted  float64 `json:"predicted"`
		Lower80    float64 `json:"lower_80"`
		Upper80    float64 `json:"upper_80"`
		Confidence float64 `json:"confidence"`
		Trend      string  `json:"trend"`
		WillBreach bool    `json:"will_breach"`
		Threshold  float64 `json:"threshold"`
		Current    float64 `json:"current"`
		Method     string  `json:"method"`
		R2         float64 `json:"r2"`
	}{
		Sensor:     p.Sensor,
		HorizonS:   p.HorizonSeconds,
		Predicted:  Round(p.PredictedValue, 2),
		Lower80:    Round(p.LowerBound, 2),
		Upper80:    Round(p.UpperBound, 2),
		Confidence: Round(p.Confidence, 3),
		Trend:      p.TrendDirection,
		WillBreach: p.WillBreach,
		Threshold:  p.BreachThreshold,
		Current:    Round(p.CurrentValue, 2),
		Method:     p.Method,
		R2:         Round(p.RSquared, 3),
	})
}

// GlobalPrediction 会话级预测（聚合所有部位）
type GlobalPrediction struct {
	HorizonSeconds     int
	MaxPredictedStress float64
	AvgPredictedStress float64
	SensorsAtRisk      []string
	SessionRiskTrend   string
	Confidence         float64
	Timestamp          time.Time
}

func (g GlobalPrediction) MarshalJSON() ([]byte, error) {
	atRisk := g.SensorsAtRisk
	if atRisk == nil {
		atRisk = []string{}
	}
	return json.Marshal(struct {
		HorizonS           int      `json:"horizon_s"`
		MaxPredictedStress float64  `json:"max_predicted_stress"`
		AvgPredictedStress float64  `json:"avg_predicted_stress"`
		SensorsAtRisk      []string `json:"sensors_at_risk"`
		SessionRiskTrend   string   `json:"session_risk_trend"`
		Confidence         float64  `json:"confidence"`
		Timestamp          float64  `json:"timestamp"`
	}{
		HorizonS:           g.HorizonSeconds,
		MaxPredictedStress: Round(g.MaxPredictedStress, 2),
		AvgPredictedStress: Round(g.AvgPredictedStress, 2),
		SensorsAtRisk:      atRisk,
		SessionRiskTrend:   g.SessionRiskTrend,
		Confidence:         Round(g.Confidence, 3),
		Timestamp:          unixSeconds(g.Timestamp),
	})
}
