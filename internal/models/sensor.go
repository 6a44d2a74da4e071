package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidFrame 帧数据校验失败
var ErrInvalidFrame = errors.New("invalid sensor frame")

// MaxReadingValue 单项读数上限，超出视为无效帧
const MaxReadingValue = 1e6

// 身体部位键（固定 13 个，顺序即处理顺序）
const (
	RegionHead          = "head"
	RegionChest         = "chest"
	RegionHip           = "hip"
	RegionLeftHand      = "left_hand"
	RegionRightHand     = "right_hand"
	RegionLeftUpperArm  = "left_upper_arm"
	RegionRightUpperArm = "right_upper_arm"
	RegionLeftLowerArm  = "left_lower_arm"
	RegionRightLowerArm = "right_lower_arm"
	RegionLeftUpperLeg  = "left_upper_leg"
	RegionRightUpperLeg = "right_upper_leg"
	RegionLeftLowerLeg  = "left_lower_leg"
	RegionRightLowerLeg = "right_lower_leg"
)

// Regions 全部身体部位，按固定顺序
var Regions = []string{
	RegionHead,
	RegionChest,
	RegionHip,
	RegionLeftHand,
	RegionRightHand,
	RegionLeftUpperArm,
	RegionRightUpperArm,
	RegionLeftLowerArm,
	RegionRightLowerArm,
	RegionLeftUpperLeg,
	RegionRightUpperLeg,
	RegionLeftLowerLeg,
	RegionRightLowerLeg,
}

// BodyPartNames 临床显示名称
var BodyPartNames = map[string]string{
	RegionHead:          "Head / Cranium",
	RegionChest:         "Thorax / Chest",
	RegionHip:           "Pelvis / Hip",
	RegionLeftHand:      "Left Hand",
	RegionRightHand:     "Right Hand",
	RegionLeftUpperArm:  "L. Proximal Arm",
	RegionRightUpperArm: "R. Proximal Arm",
	RegionLeftLowerArm:  "L. Forearm",
	RegionRightLowerArm: "R. Forearm",
	RegionLeftUpperLeg:  "L. Proximal Leg",
	RegionRightUpperLeg: "R. Proximal Leg",
	RegionLeftLowerLeg:  "L. Distal Leg",
	RegionRightLowerLeg: "R. Distal Leg",
}

// IsKnownRegion 是否为已知身体部位
func IsKnownRegion(key string) bool {
	_, ok := BodyPartNames[key]
	return ok
}

// TitleRegion "right_hand" -> "Right Hand"
func TitleRegion(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Rotation 欧拉角（度）
type Rotation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// SensorReading 单个身体部位在某一时刻的读数
type SensorReading struct {
	TremorIntensity float64   `json:"tremor_intensity"`
	StressTrend     float64   `json:"stress_trend"`
	StressTimer     float64   `json:"stress_timer"` // 秒，由客户端计时，权威
	AverageSpeed    float64   `json:"average_speed"`
	Rotation        *Rotation `json:"rotation,omitempty"`
	DeltaRotation   *Rotation `json:"delta_rotation,omitempty"`
}

func (r SensorReading) validate(region string) error {
	fields := map[string]float64{
		"tremor_intensity": r.TremorIntensity,
		"stress_trend":     r.StressTrend,
		"stress_timer":     r.StressTimer,
		"average_speed":    r.AverageSpeed,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > MaxReadingValue {
			return fmt.Errorf("%w: %s.%s must be within [0, %g], got %v", ErrInvalidFrame, region, name, MaxReadingValue, v)
		}
	}
	return nil
}

// GlobalMetrics 全局指标
type GlobalMetrics struct {
	HMDEyeDotProduct float64 `json:"hmd_eye_dot_product"` // 注视专注度 [0,1]
}

// FrameMessage 客户端每帧上报的数据
type FrameMessage struct {
	SessionID     string                   `json:"session_id"`
	PatientID     string                   `json:"patient_id"`
	Timestamp     float64                  `json:"timestamp,omitempty"` // unix 秒，可选
	GlobalMetrics GlobalMetrics            `json:"global_metrics"`
	Sensors       map[string]SensorReading `json:"sensors"`
}

// Focus 返回专注度
func (f *FrameMessage) Focus() float64 {
	return f.GlobalMetrics.HMDEyeDotProduct
}

// Time 帧时间；未提供时返回 fallback
func (f *FrameMessage) Time(fallback time.Time) time.Time {
	if f.Timestamp <= 0 {
		return fallback
	}
	sec, frac := math.Modf(f.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// Validate 校验帧；未知身体部位不视为错误
func (f *FrameMessage) Validate() error {
	if f.SessionID == "" {
		return fmt.Errorf("%w: session_id is required", ErrInvalidFrame)
	}
	focus := f.Focus()
	if math.IsNaN(focus) || focus < 0 || focus > 1 {
		return fmt.Errorf("%w: hmd_eye_dot_product must be in [0,1], got %v", ErrInvalidFrame, focus)
	}
	for region, r := range f.Sensors {
		if !IsKnownRegion(region) {
			continue
		}
		if err := r.validate(region); err != nil {
			return err
		}
	}
	return nil
}
