// Package processor 维护单个身体部位的滚动统计状态。
package processor

import (
	"math"
	"time"

	"yourmove/internal/stats"
)

const (
	// EMAAlpha 平滑系数，越小输出越稳定
	EMAAlpha = 0.15
	// SlopeWindow 压力趋势回归窗口
	SlopeWindow = 30

	// 绝对告警阈值，用于 alert_frames 计数
	AlertStressThreshold = 10.0
	AlertTremorThreshold = 2.5
)

// SensorProcessor 单个部位的聚合状态：压力/震颤两个滚动窗口 + EMA + 峰值
type SensorProcessor struct {
	stressBuf *stats.RollingBuffer
	tremorBuf *stats.RollingBuffer

	EMAStress   float64
	EMATremor   float64
	PeakStress  float64
	PeakTremor  float64
	AlertFrames int
}

// New 创建处理器；capacity < 2 返回 stats.ErrInvalidCapacity
func New(capacity int) (*SensorProcessor, error) {
	stressBuf, err := stats.NewRollingBuffer(capacity)
	if err != nil {
		return nil, err
	}
	tremorBuf, err := stats.NewRollingBuffer(capacity)
	if err != nil {
		return nil, err
	}
	return &SensorProcessor{
		stressBuf: stressBuf,
		tremorBuf: tremorBuf,
	}, nil
}

// Update 写入一帧观测
func (p *SensorProcessor) Update(stress, tremor float64, ts time.Time) {
	p.stressBuf.Push(stress, ts)
	p.tremorBuf.Push(tremor, ts)

	p.EMAStress = stats.EWMA(stress, p.EMAStress, EMAAlpha)
	p.EMATremor = stats.EWMA(tremor, p.EMATremor, EMAAlpha)

	p.PeakStress = math.Max(p.PeakStress, stress)
	p.PeakTremor = math.Max(p.PeakTremor, tremor)

	if stress >= AlertStressThreshold || tremor >= AlertTremorThreshold {
		p.AlertFrames++
	}
}

func (p *SensorProcessor) StressBuffer() *stats.RollingBuffer { return p.stressBuf }
func (p *SensorProcessor) TremorBuffer() *stats.RollingBuffer { return p.tremorBuf }

func (p *SensorProcessor) StressMean() float64 { return p.stressBuf.Mean() }
func (p *SensorProcessor) StressStd() float64  { return p.stressBuf.Std() }
func (p *SensorProcessor) TremorMean() float64 { return p.tremorBuf.Mean() }
func (p *SensorProcessor) TremorStd() float64  { return p.tremorBuf.Std() }

// StressZ value 相对压力窗口的 z-score，范围 [-6, 6]
func (p *SensorProcessor) StressZ(value float64) float64 {
	return stats.ZScore(value, p.StressMean(), p.StressStd())
}

// TremorZ value 相对震颤窗口的 z-score，范围 [-6, 6]
func (p *SensorProcessor) TremorZ(value float64) float64 {
	return stats.ZScore(value, p.TremorMean(), p.TremorStd())
}

// StressSlope 最近 30 个压力样本的 (slope, r²)
func (p *SensorProcessor) StressSlope() (float64, float64) {
	return stats.TrendSlope(p.stressBuf.Last(SlopeWindow))
}

// SignalQuality 基于压力窗口
func (p *SensorProcessor) SignalQuality() stats.SignalQuality {
	return stats.QualityFromBuffer(p.stressBuf, stats.DefaultRequiredSamples)
}
