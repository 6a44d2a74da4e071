package consumer

import (
	"sync"
	"time"
)

// 错误分类
const (
	errorParse   = "parse"
	errorInvalid = "invalid"
	errorPublish = "publish"
)

// Metrics 监控指标
type Metrics struct {
	mu sync.RWMutex

	// 消息处理统计
	MessagesProcessed int64
	MessagesSucceeded int64
	MessagesFailed    int64

	// 错误分类统计
	ErrorsParse   int64 // JSON 解析错误
	ErrorsInvalid int64 // 帧校验失败
	ErrorsPublish int64 // 指令下发失败

	// 性能指标
	TotalProcessingTime time.Duration
	LastProcessTime     time.Time

	StartTime time.Time
}

// NewMetrics 创建指标
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		MessagesProcessed:   m.MessagesProcessed,
		MessagesSucceeded:   m.MessagesSucceeded,
		MessagesFailed:      m.MessagesFailed,
		ErrorsParse:         m.ErrorsParse,
		ErrorsInvalid:       m.ErrorsInvalid,
		ErrorsPublish:       m.ErrorsPublish,
		TotalProcessingTime: m.TotalProcessingTime,
		LastProcessTime:     m.LastProcessTime,
		StartTime:           m.StartTime,
	}
}

// IncrementProcessed 增加处理计数
func (m *Metrics) IncrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesProcessed++
}

// IncrementSucceeded 增加成功计数
func (m *Metrics) IncrementSucceeded(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSucceeded++
	m.TotalProcessingTime += duration
	m.LastProcessTime = time.Now()
}

// IncrementFailed 增加失败计数
func (m *Metrics) IncrementFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesFailed++
	switch errorType {
	case errorParse:
		m.ErrorsParse++
	case errorInvalid:
		m.ErrorsInvalid++
	case errorPublish:
		m.ErrorsPublish++
	}
}

// AvgProcessingTime 平均处理耗时
func (m Metrics) AvgProcessingTime() time.Duration {
	if m.MessagesSucceeded == 0 {
		return 0
	}
	return m.TotalProcessingTime / time.Duration(m.MessagesSucceeded)
}

// SuccessRate 成功率（百分比）
func (m Metrics) SuccessRate() float64 {
	if m.MessagesProcessed == 0 {
		return 0
	}
	return float64(m.MessagesSucceeded) / float64(m.MessagesProcessed) * 100
}
