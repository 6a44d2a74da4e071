// Package anomaly 实现四种异常检测器以及合并/排序引擎。
//
// 检测器集合是固定的：ZScore、Spike、Sustained、MultiSensor。
// 有状态的检测器（Spike、Sustained）按部位保存状态，每个会话一个实例，互不共享。
package anomaly

import (
	"time"

	"yourmove/internal/models"
	"yourmove/internal/processor"
)

// sensorInput 当前帧中一个有效部位的读数及其处理器
type sensorInput struct {
	name    string
	reading models.SensorReading
	proc    *processor.SensorProcessor
}

// frameContext 一次检测所需的输入，部位按固定顺序排列
type frameContext struct {
	sensors []sensorInput
	now     time.Time
}

// detector 所有检测器的统一接口
type detector interface {
	name() string
	detect(fc *frameContext) []models.AnomalyEvent
}

func newFrameContext(frame *models.FrameMessage, processors map[string]*processor.SensorProcessor, now time.Time) *frameContext {
	fc := &frameContext{now: now}
	for _, region := range models.Regions {
		reading, ok := frame.Sensors[region]
		if !ok {
			continue
		}
		proc, ok := processors[region]
		if !ok || proc == nil {
			continue
		}
		fc.sensors = append(fc.sensors, sensorInput{name: region, reading: reading, proc: proc})
	}
	return fc
}
