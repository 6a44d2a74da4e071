package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultCapacity 默认窗口长度（10Hz 下约 12 秒）
const DefaultCapacity = 120

// ErrInvalidCapacity 窗口容量小于 2
var ErrInvalidCapacity = errors.New("rolling buffer capacity must be >= 2")

// RollingBuffer 固定容量环形缓冲区，O(1) 维护均值/方差（Welford）。
// 满时先按 Welford 逆运算移除最旧值，再插入新值，无需全量重算。
// 非并发安全。
type RollingBuffer struct {
	capacity int
	values   []float64
	times    []time.Time
	head     int // 最旧元素下标
	n        int

	mean float64
	m2   float64 // 偏差平方和

	// m2 超出 float64 范围，窗口内仍有极端值时每次更新都重新计算
	saturated bool
}

// NewRollingBuffer 创建缓冲区；capacity < 2 返回 ErrInvalidCapacity
func NewRollingBuffer(capacity int) (*RollingBuffer, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &RollingBuffer{
		capacity: capacity,
		values:   make([]float64, capacity),
		times:    make([]time.Time, capacity),
	}, nil
}

// Push 追加观测值；ts 为零值时取当前时间
func (b *RollingBuffer) Push(value float64, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	if b.n == b.capacity {
		b.evictOldest()
	}

	idx := (b.head + b.n) % b.capacity
	b.values[idx] = value
	b.times[idx] = ts

	b.n++
	delta := value - b.mean
	b.mean += delta / float64(b.n)
	b.m2 += delta * (value - b.mean)
	if b.saturated || !finite(b.mean) || !finite(b.m2) {
		b.recompute()
	}
}

func (b *RollingBuffer) evictOldest() {
	if b.n == 0 {
		return
	}
	if b.saturated {
		b.n--
		b.head = (b.head + 1) % b.capacity
		return
	}
	old := b.values[b.head]
	n := float64(b.n)

	var oldMean float64
	if b.n > 1 {
		oldMean = (b.mean*n - old) / (n - 1)
	}
	b.m2 -= (old - b.mean) * (old - oldMean)
	b.mean = oldMean
	b.n--
	b.head = (b.head + 1) % b.capacity
	if !finite(b.mean) || !finite(b.m2) {
		b.recompute()
		return
	}
	if b.m2 < 0 {
		b.m2 = 0
	}
}

// recompute 增量结果溢出时按窗口内数据重新计算。
// 前向 Welford 的均值始终落在 [min, max] 内；m2 溢出时取 math.MaxFloat64。
func (b *RollingBuffer) recompute() {
	b.mean, b.m2 = 0, 0
	for i := 0; i < b.n; i++ {
		v := b.values[(b.head+i)%b.capacity]
		delta := v - b.mean
		b.mean += delta / float64(i+1)
		b.m2 += delta * (v - b.mean)
	}
	if !finite(b.mean) {
		b.mean = 0
	}
	b.saturated = !(b.m2 >= 0) || math.IsInf(b.m2, 1)
	if b.saturated {
		b.m2 = math.MaxFloat64
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (b *RollingBuffer) Capacity() int { return b.capacity }
func (b *RollingBuffer) Count() int    { return b.n }
func (b *RollingBuffer) Full() bool    { return b.n == b.capacity }

// Mean 均值；空时为 0
func (b *RollingBuffer) Mean() float64 {
	if b.n == 0 {
		return 0
	}
	return b.mean
}

// Variance 样本方差；n < 2 时为 0
func (b *RollingBuffer) Variance() float64 {
	if b.n < 2 {
		return 0
	}
	return b.m2 / float64(b.n-1)
}

func (b *RollingBuffer) Std() float64 {
	return math.Sqrt(b.Variance())
}

// Last 最近 k 个值，按时间先后排列
func (b *RollingBuffer) Last(k int) []float64 {
	if k <= 0 {
		return []float64{}
	}
	if k > b.n {
		k = b.n
	}
	out := make([]float64, k)
	start := b.n - k
	for i := 0; i < k; i++ {
		out[i] = b.values[(b.head+start+i)%b.capacity]
	}
	return out
}

// Values 全部值的副本，按时间先后排列
func (b *RollingBuffer) Values() []float64 {
	return b.Last(b.n)
}

// Timestamps 全部时间戳的副本
func (b *RollingBuffer) Timestamps() []time.Time {
	out := make([]time.Time, b.n)
	for i := 0; i < b.n; i++ {
		out[i] = b.times[(b.head+i)%b.capacity]
	}
	return out
}

// Latest 最新值；空时 ok=false
func (b *RollingBuffer) Latest() (float64, bool) {
	if b.n == 0 {
		return 0, false
	}
	return b.values[(b.head+b.n-1)%b.capacity], true
}

// Percentile p ∈ [0,100]，对排序副本线性插值
func (b *RollingBuffer) Percentile(p float64) float64 {
	if b.n == 0 {
		return 0
	}
	sorted := b.Values()
	sort.Float64s(sorted)
	return Percentile(sorted, p)
}

func (b *RollingBuffer) Min() float64 {
	if b.n == 0 {
		return 0
	}
	m := math.Inf(1)
	for _, v := range b.Values() {
		m = math.Min(m, v)
	}
	return m
}

func (b *RollingBuffer) Max() float64 {
	if b.n == 0 {
		return 0
	}
	m := math.Inf(-1)
	for _, v := range b.Values() {
		m = math.Max(m, v)
	}
	return m
}
