package models

import (
	"encoding/json"
	"math"
	"time"
)

// 检测方法
const (
	MethodZScore      = "z_score"
	MethodSpike       = "spike"
	MethodSustained   = "sustained"
	MethodMultiSensor = "multi_sensor"
)

// GlobalSensor 多传感器关联事件使用的 sensor 名
const GlobalSensor = "global"

// AnomalyEvent 一次检测到的异常
type AnomalyEvent struct {
	Sensor      string
	Method      string
	Severity    Severity
	Score       float64 // 无量纲分数 >= 0
	Confidence  float64 // [0,1]
	Value       float64 // 当前观测值
	Baseline    float64 // 检测时的基线
	Description string
	Timestamp   time.Time
}

// anomalyEventJSON 对外表示：浮点保留 3 位小数，时间为 unix 秒（微秒精度）
type anomalyEventJSON struct {
	Sensor      string   `json:"sensor"`
	Method      string   `json:"method"`
	Severity    Severity `json:"severity"`
	Score       float64  `json:"score"`
	Confidence  float64  `json:"confidence"`
	Value       float64  `json:"value"`
	Baseline    float64  `json:"baseline"`
	Description string   `json:"description"`
	Timestamp   float64  `json:"timestamp"`
}

func (e AnomalyEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(anomalyEventJSON{
		Sensor:      e.Sensor,
		Method:      e.Method,
		Severity:    e.Severity,
		Score:       Round(e.Score, 3),
		Confidence:  Round(e.Confidence, 3),
		Value:       Round(e.Value, 3),
		Baseline:    Round(e.Baseline, 3),
		Description: e.Description,
		Timestamp:   unixSeconds(e.Timestamp),
	})
}

func (e *AnomalyEvent) UnmarshalJSON(data []byte) error {
	var raw anomalyEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = AnomalyEvent{
		Sensor:      raw.Sensor,
		Method:      raw.Method,
		Severity:    raw.Severity,
		Score:       raw.Score,
		Confidence:  raw.Confidence,
		Value:       raw.Value,
		Baseline:    raw.Baseline,
		Description: raw.Description,
		Timestamp:   fromUnixSeconds(raw.Timestamp),
	}
	return nil
}

// Rounded 返回各浮点字段保留 3 位小数后的副本
func (e AnomalyEvent) Rounded() AnomalyEvent {
	e.Score = Round(e.Score, 3)
	e.Confidence = Round(e.Confidence, 3)
	e.Value = Round(e.Value, 3)
	e.Baseline = Round(e.Baseline, 3)
	e.Timestamp = time.UnixMicro(e.Timestamp.UnixMicro())
	return e
}

// Round 四舍五入到 places 位小数
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	scaled := v * p
	if math.IsInf(scaled, 0) || math.IsNaN(scaled) {
		return v
	}
	return math.Round(scaled) / p
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMicro()) / 1e6
}

func fromUnixSeconds(f float64) time.Time {
	if f == 0 {
		return time.Time{}
	}
	return time.UnixMicro(int64(math.Round(f * 1e6)))
}
