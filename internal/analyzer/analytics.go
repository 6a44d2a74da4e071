package analyzer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"yourmove/internal/models"
	"yourmove/internal/predictor"
	"yourmove/internal/stats"
)

const (
	// 分析载荷中最多返回的异常数量
	maxReportedAnomalies = 5
	// 受影响部位排名数量
	topRegionCount = 5

	// 会话趋势：每个部位取最近 10 个样本，合并后取最近 30 个
	trendPerRegion  = 10
	trendPoolSize   = 30
	trendMinSamples = 6
	trendThreshold  = 0.05

	// 摘要中展示预测的最低置信度
	summaryMinConfidence = 0.3
)

var clinicalActionByRisk = map[string]string{
	models.RiskCritical: "IMMEDIATE ACTION: Suspend session. Initiate calming protocol. Alert supervising clinician.",
	models.RiskHigh:     "Reduce stimulus load. Activate breathing guide. Monitor closely for escalation.",
	models.RiskModerate: "Decrease task difficulty. Increase reinforcement frequency. Observe for 30 seconds.",
	models.RiskLow:      "Session stable. Continue current therapeutic protocol.",
}

// ClinicalAction 风险等级对应的临床处置
func ClinicalAction(risk string) string {
	if action, ok := clinicalActionByRisk[risk]; ok {
		return action
	}
	return "Continue monitoring."
}

// BodyStatus 全部 13 个部位的状态，帧中缺失的部位按 0 读数计算
func (a *MovementAnalyzer) BodyStatus(frame *models.FrameMessage) map[string]models.BodyPartStatus {
	out := make(map[string]models.BodyPartStatus, len(models.Regions))
	for _, region := range models.Regions {
		proc := a.processors[region]
		reading := frame.Sensors[region]

		// 颜色用 EMA 值，避免闪烁
		es, et := proc.EMAStress, proc.EMATremor
		z := proc.StressZ(reading.StressTrend)
		absZ := math.Abs(z)

		var color string
		switch {
		case (es > StressCritical && reading.StressTimer > StressTimerMin) || absZ >= 4:
			color = models.StatusCritical
		case et > TremorSevere || absZ >= 3:
			color = models.StatusWarning
		case es > StressElevated || absZ >= 2:
			color = models.StatusElevated
		case et > TremorMild || es > 5:
			color = models.StatusMild
		default:
			color = models.StatusNormal
		}

		slope, _ := proc.StressSlope()
		out[region] = models.BodyPartStatus{
			Name:        models.BodyPartNames[region],
			Color:       color,
			StressTrend: models.Round(es, 2),
			Tremor:      models.Round(et, 2),
			StressTimer: models.Round(reading.StressTimer, 2),
			Speed:       models.Round(reading.AverageSpeed, 2),
			StressMean:  models.Round(proc.StressMean(), 2),
			StressStd:   models.Round(proc.StressStd(), 2),
			StressZ:     models.Round(z, 2),
			Slope:       models.Round(slope, 4),
			PeakStress:  models.Round(proc.PeakStress, 2),
			PeakTremor:  models.Round(proc.PeakTremor, 2),
			AlertFrames: proc.AlertFrames,
		}
	}
	return out
}

// GlobalStats 帧中已知部位的最大/平均压力与震颤
func (a *MovementAnalyzer) GlobalStats(frame *models.FrameMessage) models.GlobalStats {
	gs := models.GlobalStats{FocusLevel: models.Round(frame.Focus(), 3)}

	var n int
	var sumStress, sumTremor float64
	for _, region := range models.Regions {
		r, ok := frame.Sensors[region]
		if !ok {
			continue
		}
		if n == 0 || r.StressTrend > gs.MaxStress {
			gs.MaxStress = r.StressTrend
		}
		if n == 0 || r.TremorIntensity > gs.MaxTremor {
			gs.MaxTremor = r.TremorIntensity
		}
		sumStress += r.StressTrend
		sumTremor += r.TremorIntensity
		n++
	}
	if n > 0 {
		gs.AvgStress = sumStress / float64(n)
		gs.AvgTremor = sumTremor / float64(n)
	}

	gs.MaxStress = models.Round(gs.MaxStress, 2)
	gs.AvgStress = models.Round(gs.AvgStress, 2)
	gs.MaxTremor = models.Round(gs.MaxTremor, 2)
	gs.AvgTremor = models.Round(gs.AvgTremor, 2)
	return gs
}

// StabilityIndex 0~100：专注度 35% + 压力 40% + 震颤 25%
func StabilityIndex(focus, avgStress, maxTremor float64) float64 {
	focusScore := focus * 35
	stressScore := math.Max(0, 40*(1-avgStress/20))
	tremorScore := math.Max(0, 25*(1-maxTremor/10))
	return models.Round(stats.Clamp(focusScore+stressScore+tremorScore, 0, 100), 1)
}

// ClassifyRisk 按专注度与最大压力/震颤分级
func ClassifyRisk(focus, maxStress, maxTremor float64) string {
	switch {
	case focus < FocusCritical || maxStress > 18 || maxTremor > 8:
		return models.RiskCritical
	case focus < FocusLow || maxStress >= StressCritical || maxTremor >= TremorSevere:
		return models.RiskHigh
	case maxStress >= StressElevated || maxTremor >= TremorMild:
		return models.RiskModerate
	default:
		return models.RiskLow
	}
}

// AdvancedAnalytics 组装看板分析载荷。
// 异常列表复用最近一次 Analyze 的结果，不会再次推进检测器状态。
func (a *MovementAnalyzer) AdvancedAnalytics(frame *models.FrameMessage) models.AdvancedAnalytics {
	focus := frame.Focus()
	gs := a.GlobalStats(frame)

	stability := StabilityIndex(focus, gs.AvgStress, gs.MaxTremor)
	risk := ClassifyRisk(focus, gs.MaxStress, gs.MaxTremor)

	var qualitySum float64
	for _, region := range models.Regions {
		qualitySum += a.processors[region].SignalQuality().Overall()
	}
	avgQuality := qualitySum / float64(len(models.Regions))
	signalBoost := math.Min(0.3, (gs.MaxStress/20+gs.MaxTremor/10)*0.15)
	confidence := models.Round(math.Min(0.97, avgQuality*0.7+signalBoost), 3)

	anomalies := a.lastAnomalies
	reported := make([]models.AnomalyEvent, 0, maxReportedAnomalies)
	for i := 0; i < len(anomalies) && i < maxReportedAnomalies; i++ {
		reported = append(reported, anomalies[i].Rounded())
	}

	trendSlope, trendR2 := a.sessionTrend()
	trend := models.TrendStable
	switch {
	case trendSlope > trendThreshold:
		trend = models.TrendRising
	case trendSlope < -trendThreshold:
		trend = models.TrendFalling
	}

	pred120, _ := a.predictor.PredictGlobal(a.processors, predictor.DefaultHorizon)
	pred60, _ := a.predictor.PredictGlobal(a.processors, 60)
	pred30, _ := a.predictor.PredictGlobal(a.processors, 30)

	duration := a.SessionDuration()
	return models.AdvancedAnalytics{
		StabilityIndex:     stability,
		RiskClassification: risk,
		ConfidenceScore:    confidence,
		TrendDirection:     trend,
		TrendSlope:         models.Round(trendSlope, 4),
		TrendR2:            models.Round(trendR2, 3),
		Anomalies:          reported,
		AnomalyCount:       len(anomalies),
		TopAffectedRegions: a.topRegions(),
		Prediction120s:     pred120,
		Prediction60s:      pred60,
		Prediction30s:      pred30,
		SessionDurationS:   duration,
		FrameCount:         a.frameCount,
		EscalationLevel:    a.escalation,
		SessionSummary:     summary(risk, stability, trend, gs, focus, anomalies, pred120, duration),
		ClinicalAction:     ClinicalAction(risk),
	}
}

// sessionTrend 合并各部位最近样本做回归，样本不足时为 (0, 0)
func (a *MovementAnalyzer) sessionTrend() (float64, float64) {
	var pool []float64
	for _, region := range models.Regions {
		pool = append(pool, a.processors[region].StressBuffer().Last(trendPerRegion)...)
	}
	if len(pool) < trendMinSamples {
		return 0, 0
	}
	if len(pool) > trendPoolSize {
		pool = pool[len(pool)-trendPoolSize:]
	}
	return stats.TrendSlope(pool)
}

func (a *MovementAnalyzer) topRegions() []models.RegionScore {
	scores := make([]models.RegionScore, 0, len(models.Regions))
	for _, region := range models.Regions {
		proc := a.processors[region]
		slope, _ := proc.StressSlope()
		scores = append(scores, models.RegionScore{
			Name:       models.BodyPartNames[region],
			Key:        region,
			Score:      models.Round(proc.EMAStress/20*60+proc.EMATremor/10*40, 1),
			EMAStress:  models.Round(proc.EMAStress, 2),
			EMATremor:  models.Round(proc.EMATremor, 2),
			PeakStress: models.Round(proc.PeakStress, 2),
			Slope:      models.Round(slope*100, 2),
			Std:        models.Round(proc.StressStd(), 2),
		})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores[:topRegionCount]
}

func summary(risk string, stability float64, trend string, gs models.GlobalStats, focus float64,
	anomalies []models.AnomalyEvent, pred *models.GlobalPrediction, duration float64) string {
	minutes := int(duration / 60)
	seconds := int(math.Mod(duration, 60))

	var b strings.Builder
	fmt.Fprintf(&b, "Session duration: %dm %ds. ", minutes, seconds)
	fmt.Fprintf(&b, "Risk level: %s. ", risk)
	fmt.Fprintf(&b, "Stability Index: %s/100. ", strconv.FormatFloat(stability, 'f', 1, 64))
	fmt.Fprintf(&b, "Arousal trend %s; max stress %.1f, max tremor %.1f. ", trend, gs.MaxStress, gs.MaxTremor)
	fmt.Fprintf(&b, "Focus index %.2f. ", focus)

	n := len(anomalies)
	suffix := "ies"
	if n == 1 {
		suffix = "y"
	}
	fmt.Fprintf(&b, "%d statistical anomal%s detected.", n, suffix)

	var regions []string
	for _, ev := range anomalies {
		if ev.Severity >= models.SeverityHigh {
			regions = append(regions, strings.ReplaceAll(ev.Sensor, "_", " "))
		}
		if len(regions) == 2 {
			break
		}
	}
	if len(regions) > 0 {
		fmt.Fprintf(&b, " Highest activity in: %s.", strings.Join(regions, ", "))
	}

	if pred != nil && pred.Confidence > summaryMinConfidence {
		fmt.Fprintf(&b, " Model projects %s arousal over the next %ds (confidence %.0f%%).",
			pred.SessionRiskTrend, pred.HorizonSeconds, pred.Confidence*100)
	}
	return b.String()
}
