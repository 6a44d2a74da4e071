package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameMessage_Decode(t *testing.T) {
	payload := `{
		"session_id": "s-1",
		"patient_id": "p-9",
		"timestamp": 1700000000.5,
		"global_metrics": {"hmd_eye_dot_product": 0.91},
		"sensors": {
			"head": {"tremor_intensity": 0.4, "stress_trend": 2.1, "stress_timer": 0, "average_speed": 1.2,
			         "rotation": {"pitch": 1, "yaw": 2, "roll": 3}},
			"tail": {"tremor_intensity": 1, "stress_trend": 1, "stress_timer": 0, "average_speed": 0}
		}
	}`

	var frame FrameMessage
	require.NoError(t, json.Unmarshal([]byte(payload), &frame))
	require.NoError(t, frame.Validate())

	assert.Equal(t, "s-1", frame.SessionID)
	assert.Equal(t, 0.91, frame.Focus())
	assert.Equal(t, 2.1, frame.Sensors[RegionHead].StressTrend)
	require.NotNil(t, frame.Sensors[RegionHead].Rotation)
	assert.Equal(t, 2.0, frame.Sensors[RegionHead].Rotation.Yaw)
	assert.Equal(t, int64(1700000000), frame.Time(time.Time{}).Unix())
}

func TestFrameMessage_Validate(t *testing.T) {
	tests := []struct {
		name  string
		frame FrameMessage
	}{
		{"missing session", FrameMessage{GlobalMetrics: GlobalMetrics{HMDEyeDotProduct: 0.5}}},
		{"focus above 1", FrameMessage{SessionID: "s", GlobalMetrics: GlobalMetrics{HMDEyeDotProduct: 1.2}}},
		{"focus NaN", FrameMessage{SessionID: "s", GlobalMetrics: GlobalMetrics{HMDEyeDotProduct: math.NaN()}}},
		{"negative stress", FrameMessage{
			SessionID:     "s",
			GlobalMetrics: GlobalMetrics{HMDEyeDotProduct: 0.5},
			Sensors:       map[string]SensorReading{RegionChest: {StressTrend: -1}},
		}},
		{"stress beyond range", FrameMessage{
			SessionID:     "s",
			GlobalMetrics: GlobalMetrics{HMDEyeDotProduct: 0.5},
			Sensors:       map[string]SensorReading{RegionRightHand: {StressTrend: 1.7e308}},
		}},
		{"timer beyond range", FrameMessage{
			SessionID:     "s",
			GlobalMetrics: GlobalMetrics{HMDEyeDotProduct: 0.5},
			Sensors:       map[string]SensorReading{RegionRightHand: {StressTimer: MaxReadingValue * 2}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFrame))
		})
	}
}

func TestFrameMessage_UnknownRegionIgnored(t *testing.T) {
	frame := FrameMessage{
		SessionID:     "s",
		GlobalMetrics: GlobalMetrics{HMDEyeDotProduct: 0.5},
		Sensors:       map[string]SensorReading{"antenna": {StressTrend: -5}},
	}
	assert.NoError(t, frame.Validate())
}

func TestTitleRegion(t *testing.T) {
	assert.Equal(t, "Right Hand", TitleRegion(RegionRightHand))
	assert.Equal(t, "Left Upper Arm", TitleRegion(RegionLeftUpperArm))
	assert.Equal(t, "Head", TitleRegion(RegionHead))
	assert.Len(t, Regions, 13)
	for _, r := range Regions {
		assert.True(t, IsKnownRegion(r))
	}
}
