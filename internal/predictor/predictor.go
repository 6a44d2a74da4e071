// Package predictor 短期压力预测（0~120 秒），用于提前干预。
//
// 线性外推（OLS）与 EWMA 动量预测按 R² 加权融合，
// 用 OLS 残差的 RMSD 给出 80% 预测区间。结果仅作临床辅助参考。
package predictor

import (
	"math"
	"time"

	"yourmove/internal/models"
	"yourmove/internal/processor"
	"yourmove/internal/stats"
)

const (
	ClinicalThreshold = 10.0
	CriticalThreshold = 15.0

	// MinSamples 少于该样本数不做预测
	MinSamples = 15

	DefaultHorizon  = 120
	DefaultTickRate = 10.0

	// 80% 预测区间 z 值
	piZ = 1.282

	// 每帧斜率阈值
	trendSlopeThreshold = 0.02
	// EWMA 外推阻尼
	ewmaDamping = 0.7
)

// Horizons 标准预测时长（秒）
var Horizons = []int{30, 60, 120}

// StressPredictor 会话级预测器，每个会话一个实例。
// ewma 是跨帧保留的唯一状态，每次 Predict 都会更新。
type StressPredictor struct {
	ewma map[string]float64
	now  func() time.Time
}

func New() *StressPredictor {
	return &StressPredictor{
		ewma: make(map[string]float64),
		now:  time.Now,
	}
}

// WithClock 替换时钟（测试用）
func (p *StressPredictor) WithClock(now func() time.Time) *StressPredictor {
	p.now = now
	return p
}

// Predict 单个部位在 horizonS 秒后的压力预测。样本不足时返回 (nil, false)。
func (p *StressPredictor) Predict(sensor string, proc *processor.SensorProcessor, horizonS int, tickRate float64) (*models.StressPrediction, bool) {
	buf := proc.StressBuffer()
	if buf.Count() < MinSamples {
		return nil, false
	}

	vals := buf.Values()
	n := len(vals)
	current := vals[n-1]
	mean := buf.Mean()
	h := float64(horizonS)

	// 1. 线性外推
	slope, r2 := stats.TrendSlope(vals)
	linear := math.Max(0, current+slope*h*tickRate)

	intercept := mean - slope*float64(n-1)/2
	var ssRes float64
	for i, v := range vals {
		r := v - (slope*float64(i) + intercept)
		ssRes += r * r
	}
	rmsd := math.Sqrt(ssRes / float64(n))
	// 预测时长越长区间越宽
	halfWidth := piZ * rmsd * math.Sqrt(1+h/60)

	// 2. EWMA，趋势明显时 alpha 更大
	alpha := stats.Clamp(math.Abs(slope)*0.5+0.1, 0.1, 0.4)
	prev, ok := p.ewma[sensor]
	if !ok {
		prev = current
	}
	ewma := stats.EWMA(current, prev, alpha)
	p.ewma[sensor] = ewma
	ewmaPred := math.Max(0, ewma+slope*tickRate*h*ewmaDamping)

	// 3. 融合
	wLin := 0.4
	if r2 > 0.3 {
		wLin = 0.6 + 0.4*r2
	}
	ensemble := math.Max(0, wLin*linear+(1-wLin)*ewmaPred)
	lower := math.Max(0, ensemble-halfWidth)
	upper := ensemble + halfWidth

	dataFactor := math.Min(1, float64(buf.Count())/60)
	r2Factor := math.Max(0.2, r2)
	noiseFactor := 1 - math.Min(1, rmsd/(mean+0.1)*2)
	confidence := models.Round(0.5*dataFactor+0.3*r2Factor+0.2*noiseFactor, 3)
	confidence = stats.Clamp(confidence, 0.05, 0.95)

	trend := models.TrendStable
	switch {
	case slope > trendSlopeThreshold:
		trend = models.TrendRising
	case slope < -trendSlopeThreshold:
		trend = models.TrendFalling
	}

	threshold := ClinicalThreshold
	if current > ClinicalThreshold {
		threshold = CriticalThreshold
	}

	method := models.PredictionMethodEWMA
	if r2 > 0.1 {
		method = models.PredictionMethodEnsemble
	}

	return &models.StressPrediction{
		Sensor:          sensor,
		HorizonSeconds:  horizonS,
		PredictedValue:  models.Round(ensemble, 3),
		LowerBound:      models.Round(lower, 3),
		UpperBound:      models.Round(upper, 3),
		Confidence:      confidence,
		TrendDirection:  trend,
		WillBreach:      ensemble >= threshold && upper >= threshold,
		BreachThreshold: threshold,
		CurrentValue:    models.Round(current, 3),
		Method:          method,
		RSquared:        models.Round(r2, 3),
	}, true
}

// PredictGlobal 汇总所有部位的预测。没有任何部位可预测时返回 (nil, false)。
// 部位按固定顺序遍历，sensors_at_risk 顺序稳定。
func (p *StressPredictor) PredictGlobal(processors map[string]*processor.SensorProcessor, horizonS int) (*models.GlobalPrediction, bool) {
	var preds []*models.StressPrediction
	for _, region := range models.Regions {
		proc, ok := processors[region]
		if !ok || proc == nil {
			continue
		}
		if pred, ok := p.Predict(region, proc, horizonS, DefaultTickRate); ok {
			preds = append(preds, pred)
		}
	}
	if len(preds) == 0 {
		return nil, false
	}

	var (
		maxPred, sumPred, sumConf float64
		atRisk                    []string
		rising, falling, stable   int
	)
	maxPred = math.Inf(-1)
	for _, pred := range preds {
		maxPred = math.Max(maxPred, pred.PredictedValue)
		sumPred += pred.PredictedValue
		sumConf += pred.Confidence
		if pred.WillBreach {
			atRisk = append(atRisk, pred.Sensor)
		}
		switch pred.TrendDirection {
		case models.TrendRising:
			rising++
		case models.TrendFalling:
			falling++
		default:
			stable++
		}
	}

	// 严格多数，平局为 stable
	sessionTrend := models.SessionTrendStable
	switch {
	case rising > falling && rising > stable:
		sessionTrend = models.SessionTrendEscalating
	case falling > rising && falling > stable:
		sessionTrend = models.SessionTrendDeescalating
	}

	count := float64(len(preds))
	return &models.GlobalPrediction{
		HorizonSeconds:     horizonS,
		MaxPredictedStress: models.Round(maxPred, 2),
		AvgPredictedStress: models.Round(sumPred/count, 2),
		SensorsAtRisk:      atRisk,
		SessionRiskTrend:   sessionTrend,
		Confidence:         models.Round(sumConf/count, 3),
		Timestamp:          p.now(),
	}, true
}

// PredictAllHorizons 30/60/120 秒的全局预测，缺失的时长不在结果中
func (p *StressPredictor) PredictAllHorizons(processors map[string]*processor.SensorProcessor) map[int]*models.GlobalPrediction {
	out := make(map[int]*models.GlobalPrediction, len(Horizons))
	for _, h := range Horizons {
		if g, ok := p.PredictGlobal(processors, h); ok {
			out[h] = g
		}
	}
	return out
}
