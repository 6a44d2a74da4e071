package stats

import "math"

// DefaultRequiredSamples 信号成熟所需样本数
const DefaultRequiredSamples = 30

// SignalQuality 当前统计估计的可靠性
type SignalQuality struct {
	NSamples        int
	RequiredSamples int
	VariationRatio  float64 // 变异系数 std/mean
}

// QualityFromBuffer 由缓冲区快照计算；mean <= 1e-6 时变异系数记为 0
func QualityFromBuffer(b *RollingBuffer, required int) SignalQuality {
	mean := b.Mean()
	cv := 0.0
	if mean > 1e-6 {
		cv = b.Std() / mean
	}
	return SignalQuality{
		NSamples:        b.Count(),
		RequiredSamples: required,
		VariationRatio:  cv,
	}
}

// DataMaturity 样本充足度 [0,1]
func (q SignalQuality) DataMaturity() float64 {
	if q.RequiredSamples <= 0 {
		return 1
	}
	return math.Min(1, float64(q.NSamples)/float64(q.RequiredSamples))
}

// SignalClarity 1 表示非常平稳；CV >= 2 视为噪声
func (q SignalQuality) SignalClarity() float64 {
	return math.Max(0, 1-math.Min(1, q.VariationRatio/2))
}

// Overall 综合质量 [0,1]
func (q SignalQuality) Overall() float64 {
	return 0.6*q.DataMaturity() + 0.4*q.SignalClarity()
}
