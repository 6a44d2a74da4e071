package stats

import "math"

// zClamp z-score 截断范围
const zClamp = 6.0

// ZScore (value-mean)/std，截断到 [-6, 6]；std < 1e-9 或非有限值时为 0
func ZScore(value, mean, std float64) float64 {
	if !(std >= 1e-9) || math.IsInf(std, 0) {
		return 0
	}
	z := (value - mean) / std
	if math.IsNaN(z) {
		return 0
	}
	return math.Max(-zClamp, math.Min(zClamp, z))
}

// TrendSlope 以 0,1,2,... 为横轴的最小二乘回归，返回 (slope, r²)。
// n < 3、分母接近 0 或溢出时返回 (0, 0)；常数序列 r² = 1。
func TrendSlope(values []float64) (slope, r2 float64) {
	n := len(values)
	if n < 3 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	fn := float64(n)
	denom := fn*sumX2 - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return 0, 0
	}

	slope = (fn*sumXY - sumX*sumY) / denom
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0, 0
	}
	intercept := (sumY - slope*sumX) / fn

	yMean := sumY / fn
	var ssTot, ssRes float64
	for i, y := range values {
		ssTot += (y - yMean) * (y - yMean)
		res := y - (slope*float64(i) + intercept)
		ssRes += res * res
	}

	if ssTot < 1e-12 {
		return slope, 1
	}
	r2 = 1 - ssRes/ssTot
	if math.IsNaN(r2) {
		return slope, 0
	}
	return slope, math.Max(0, r2)
}

// EWMA 单步指数加权移动平均
func EWMA(value, prev, alpha float64) float64 {
	return alpha*value + (1-alpha)*prev
}

// EWMASeries 整个序列的 EWMA，首值为初始状态
func EWMASeries(values []float64, alpha float64) []float64 {
	if len(values) == 0 {
		return []float64{}
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = EWMA(values[i], out[i-1], alpha)
	}
	return out
}

// Percentile 对已排序切片线性插值，p ∈ [0,100]
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = math.Max(0, math.Min(100, p))
	k := float64(len(sorted)-1) * p / 100
	lo := int(k)
	hi := lo + 1
	if hi > len(sorted)-1 {
		hi = len(sorted) - 1
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(k-float64(lo))
}

// Clamp 限制到 [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
