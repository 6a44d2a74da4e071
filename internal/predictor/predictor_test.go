package predictor

import (
	"math/rand"
	"testing"
	"time"

	"yourmove/internal/models"
	"yourmove/internal/processor"
	"yourmove/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1700000000, 0)

func feed(t *testing.T, values ...float64) *processor.SensorProcessor {
	t.Helper()
	p, err := processor.New(stats.DefaultCapacity)
	require.NoError(t, err)
	for _, v := range values {
		p.Update(v, 0, testNow)
	}
	return p
}

func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func constant(v float64, n int) []float64 {
	return ramp(v, 0, n)
}

func TestPredict_RequiresMinSamples(t *testing.T) {
	p := New()

	_, ok := p.Predict(models.RegionHead, feed(t, constant(2, MinSamples-1)...), 30, DefaultTickRate)
	assert.False(t, ok)
	assert.Empty(t, p.ewma, "absent prediction must not touch EWMA state")

	pred, ok := p.Predict(models.RegionHead, feed(t, constant(2, MinSamples)...), 30, DefaultTickRate)
	require.True(t, ok)
	assert.Equal(t, models.RegionHead, pred.Sensor)
}

func TestPredict_RisingRamp(t *testing.T) {
	p := New()
	proc := feed(t, ramp(0, 0.1, 60)...)

	pred, ok := p.Predict(models.RegionChest, proc, 120, DefaultTickRate)
	require.True(t, ok)

	assert.Equal(t, models.TrendRising, pred.TrendDirection)
	assert.Equal(t, models.PredictionMethodEnsemble, pred.Method)
	assert.InDelta(t, 1.0, pred.RSquared, 1e-9)
	assert.InDelta(t, 5.9, pred.CurrentValue, 1e-9)
	// r²=1 时完全使用线性外推：5.9 + 0.1·120·10
	assert.InDelta(t, 125.9, pred.PredictedValue, 1e-3)
	assert.InDelta(t, pred.PredictedValue, pred.LowerBound, 1e-3)
	assert.Equal(t, ClinicalThreshold, pred.BreachThreshold)
	assert.True(t, pred.WillBreach)
	assert.Equal(t, 0.95, pred.Confidence)

	short, ok := p.Predict(models.RegionChest, proc, 30, DefaultTickRate)
	require.True(t, ok)
	assert.InDelta(t, 35.9, short.PredictedValue, 1e-3)
}

func TestPredict_ConstantSignal(t *testing.T) {
	p := New()
	pred, ok := p.Predict(models.RegionHip, feed(t, constant(2, 20)...), 60, DefaultTickRate)
	require.True(t, ok)

	assert.Equal(t, models.TrendStable, pred.TrendDirection)
	assert.InDelta(t, 2.0, pred.PredictedValue, 1e-9)
	assert.InDelta(t, 2.0, pred.LowerBound, 1e-9)
	assert.InDelta(t, 2.0, pred.UpperBound, 1e-9)
	assert.False(t, pred.WillBreach)
	// 0.5·(20/60) + 0.3·1 + 0.2·1
	assert.InDelta(t, 0.667, pred.Confidence, 1e-9)
}

func TestPredict_FallingRampFloorsAtZero(t *testing.T) {
	p := New()
	pred, ok := p.Predict(models.RegionHead, feed(t, ramp(10, -0.1, 60)...), 120, DefaultTickRate)
	require.True(t, ok)
	assert.Equal(t, models.TrendFalling, pred.TrendDirection)
	assert.Equal(t, 0.0, pred.PredictedValue)
	assert.Equal(t, 0.0, pred.LowerBound)
	assert.False(t, pred.WillBreach)
}

func TestPredict_CriticalThresholdAboveClinical(t *testing.T) {
	p := New()
	pred, ok := p.Predict(models.RegionHead, feed(t, constant(12, 20)...), 30, DefaultTickRate)
	require.True(t, ok)
	assert.Equal(t, CriticalThreshold, pred.BreachThreshold)
	assert.False(t, pred.WillBreach)
}

func TestPredict_EWMAStateCarriesAcrossCalls(t *testing.T) {
	p := New()
	proc := feed(t, ramp(0, 0.1, 60)...)

	_, ok := p.Predict(models.RegionHead, proc, 30, DefaultTickRate)
	require.True(t, ok)
	assert.InDelta(t, 5.9, p.ewma[models.RegionHead], 1e-9)

	proc.Update(6.0, 0, testNow)
	_, ok = p.Predict(models.RegionHead, proc, 30, DefaultTickRate)
	require.True(t, ok)
	// alpha = 0.1·0.5 + 0.1
	assert.InDelta(t, 0.15*6.0+0.85*5.9, p.ewma[models.RegionHead], 1e-6)

	other := New()
	_, ok = other.Predict(models.RegionHead, proc, 30, DefaultTickRate)
	require.True(t, ok)
	assert.InDelta(t, 6.0, other.ewma[models.RegionHead], 1e-9)
}

func TestPredict_IntervalOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	p := New()
	for trial := 0; trial < 50; trial++ {
		vals := make([]float64, 15+rng.Intn(100))
		for i := range vals {
			vals[i] = rng.Float64() * 20
		}
		pred, ok := p.Predict(models.RegionHead, feed(t, vals...), Horizons[trial%3], DefaultTickRate)
		require.True(t, ok)
		assert.GreaterOrEqual(t, pred.LowerBound, 0.0)
		assert.LessOrEqual(t, pred.LowerBound, pred.PredictedValue)
		assert.LessOrEqual(t, pred.PredictedValue, pred.UpperBound)
		assert.GreaterOrEqual(t, pred.Confidence, 0.05)
		assert.LessOrEqual(t, pred.Confidence, 0.95)
	}
}

func processorsWith(t *testing.T, rising, falling int) map[string]*processor.SensorProcessor {
	t.Helper()
	procs := make(map[string]*processor.SensorProcessor)
	for i, r := range models.Regions {
		switch {
		case i < rising:
			procs[r] = feed(t, ramp(0, 0.1, 60)...)
		case i < rising+falling:
			procs[r] = feed(t, ramp(10, -0.1, 60)...)
		default:
			procs[r] = feed(t, constant(2, 60)...)
		}
	}
	return procs
}

func TestPredictGlobal_MajorityVote(t *testing.T) {
	tests := []struct {
		name    string
		rising  int
		falling int
		want    string
	}{
		{"rising majority", 7, 0, models.SessionTrendEscalating},
		{"stable majority", 6, 0, models.SessionTrendStable},
		{"falling majority", 0, 7, models.SessionTrendDeescalating},
		{"tie defaults to stable", 6, 6, models.SessionTrendStable},
		{"rising ties stable", 6, 1, models.SessionTrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New().WithClock(func() time.Time { return testNow })
			g, ok := p.PredictGlobal(processorsWith(t, tt.rising, tt.falling), 120)
			require.True(t, ok)
			assert.Equal(t, tt.want, g.SessionRiskTrend)
			if tt.rising == 0 {
				assert.Empty(t, g.SensorsAtRisk)
			} else {
				assert.Equal(t, models.Regions[:tt.rising], g.SensorsAtRisk)
			}
			assert.Equal(t, testNow, g.Timestamp)
			assert.Equal(t, 120, g.HorizonSeconds)
		})
	}
}

func TestPredictGlobal_Aggregates(t *testing.T) {
	p := New()
	procs := map[string]*processor.SensorProcessor{
		models.RegionHead:  feed(t, constant(2, 20)...),
		models.RegionChest: feed(t, constant(4, 20)...),
		models.RegionHip:   feed(t, constant(9, 10)...),
		"tail":             feed(t, constant(50, 20)...),
	}
	g, ok := p.PredictGlobal(procs, 60)
	require.True(t, ok)
	assert.Equal(t, 4.0, g.MaxPredictedStress)
	assert.Equal(t, 3.0, g.AvgPredictedStress)
	assert.Empty(t, g.SensorsAtRisk)
	assert.InDelta(t, 0.667, g.Confidence, 1e-9)

	_, ok = New().PredictGlobal(map[string]*processor.SensorProcessor{
		models.RegionHead: feed(t, constant(2, 5)...),
	}, 60)
	assert.False(t, ok)
}

func TestPredictAllHorizons(t *testing.T) {
	p := New()
	all := p.PredictAllHorizons(processorsWith(t, 13, 0))
	require.Len(t, all, 3)
	for _, h := range Horizons {
		require.Contains(t, all, h)
		assert.Equal(t, h, all[h].HorizonSeconds)
	}
	assert.Less(t, all[30].MaxPredictedStress, all[120].MaxPredictedStress)

	assert.Empty(t, New().PredictAllHorizons(map[string]*processor.SensorProcessor{}))
}
