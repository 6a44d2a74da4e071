package stats

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPass(values []float64) (mean, variance float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, variance / float64(len(values)-1)
}

func TestNewRollingBuffer_InvalidCapacity(t *testing.T) {
	for _, c := range []int{-1, 0, 1} {
		_, err := NewRollingBuffer(c)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidCapacity))
	}
	b, err := NewRollingBuffer(2)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Capacity())
}

func TestRollingBuffer_MatchesTwoPassOverLongSequence(t *testing.T) {
	for _, capacity := range []int{3, 7, DefaultCapacity} {
		b, err := NewRollingBuffer(capacity)
		require.NoError(t, err)

		rng := rand.New(rand.NewSource(42))
		var pushed []float64
		for i := 0; i < 10000; i++ {
			v := 0.5 + rng.Float64()*20
			b.Push(v, time.Time{})
			pushed = append(pushed, v)

			require.LessOrEqual(t, b.Count(), capacity)
			if i%500 != 0 && i != 9999 {
				continue
			}
			window := pushed
			if len(window) > capacity {
				window = window[len(window)-capacity:]
			}
			wantMean, wantVar := twoPass(window)
			assert.InEpsilon(t, wantMean, b.Mean(), 1e-9, "mean at push %d (cap %d)", i, capacity)
			if wantVar > 0 {
				assert.InEpsilon(t, wantVar, b.Variance(), 1e-9, "variance at push %d (cap %d)", i, capacity)
			}
		}
		assert.True(t, b.Full())
	}
}

func TestRollingBuffer_SmallCounts(t *testing.T) {
	b, err := NewRollingBuffer(5)
	require.NoError(t, err)

	assert.Equal(t, 0.0, b.Mean())
	assert.Equal(t, 0.0, b.Std())
	assert.Equal(t, 0.0, b.Percentile(50))
	assert.Equal(t, 0.0, b.Max())
	_, ok := b.Latest()
	assert.False(t, ok)

	b.Push(4, time.Time{})
	assert.Equal(t, 4.0, b.Mean())
	assert.Equal(t, 0.0, b.Variance())
	assert.Len(t, b.Timestamps(), 1)
}

func TestRollingBuffer_LastAndOrder(t *testing.T) {
	b, err := NewRollingBuffer(4)
	require.NoError(t, err)
	base := time.Unix(1700000000, 0)
	for i := 1; i <= 6; i++ {
		b.Push(float64(i), base.Add(time.Duration(i)*time.Second))
	}

	assert.Equal(t, []float64{3, 4, 5, 6}, b.Values())
	assert.Equal(t, []float64{5, 6}, b.Last(2))
	assert.Equal(t, []float64{3, 4, 5, 6}, b.Last(10))
	assert.Empty(t, b.Last(0))

	ts := b.Timestamps()
	require.Len(t, ts, 4)
	assert.Equal(t, base.Add(3*time.Second), ts[0])

	latest, ok := b.Latest()
	assert.True(t, ok)
	assert.Equal(t, 6.0, latest)
	assert.Equal(t, 3.0, b.Min())
	assert.Equal(t, 6.0, b.Max())
	assert.Equal(t, 4.5, b.Mean())
}

func TestRollingBuffer_Percentile(t *testing.T) {
	b, err := NewRollingBuffer(10)
	require.NoError(t, err)
	for _, v := range []float64{5, 1, 4, 2, 3} {
		b.Push(v, time.Time{})
	}
	assert.Equal(t, 1.0, b.Percentile(0))
	assert.Equal(t, 3.0, b.Percentile(50))
	assert.Equal(t, 5.0, b.Percentile(100))
	assert.InDelta(t, 1.4, b.Percentile(10), 1e-12)
}

func TestRollingBuffer_ConstantSignalHasZeroVariance(t *testing.T) {
	b, err := NewRollingBuffer(DefaultCapacity)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		b.Push(2.0, time.Time{})
	}
	assert.InDelta(t, 2.0, b.Mean(), 1e-12)
	assert.InDelta(t, 0.0, b.Variance(), 1e-12)
	assert.False(t, math.IsNaN(b.Std()))
}
