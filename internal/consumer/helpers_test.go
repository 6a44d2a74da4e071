package consumer

import (
	"context"
	"sync"
	"time"

	"yourmove/internal/config"
	"yourmove/internal/models"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.MQTT.QoS = 1
	cfg.Analyzer.BufferCapacity = 120
	cfg.Analyzer.TickRate = 10
	cfg.Analyzer.AnalyticsEveryFrames = 10
	cfg.Analyzer.SessionIdleTimeout = 5 * time.Minute
	cfg.Stream.Frames = "yourmove:frames:stream"
	cfg.Stream.Commands = "yourmove:commands:stream"
	cfg.Stream.ConsumerGroup = "yourmove-analyzer-group"
	cfg.Stream.ConsumerName = "analyzer-test"
	cfg.Stream.BatchSize = 10
	cfg.Stream.MaxLen = 1000
	cfg.Cache.SessionKeyPrefix = "yourmove:session:"
	cfg.Cache.AnalyticsTTL = 30 * time.Second
	cfg.Cache.StatusTTL = 10 * time.Second
	cfg.Storage.LogEveryFrames = 10
	cfg.Storage.PersistMinSeverity = models.SeverityHigh
	cfg.Topics.Frames = "yourmove/+/frames"
	cfg.Topics.Commands = "yourmove/%s/command"
	return cfg
}

func baselineFrame(sessionID string) *models.FrameMessage {
	f := &models.FrameMessage{
		SessionID:     sessionID,
		PatientID:     "patient-1",
		GlobalMetrics: models.GlobalMetrics{HMDEyeDotProduct: 0.9},
		Sensors:       make(map[string]models.SensorReading, len(models.Regions)),
	}
	for _, r := range models.Regions {
		f.Sensors[r] = models.SensorReading{StressTrend: 2, TremorIntensity: 1, AverageSpeed: 1}
	}
	return f
}

// arousedFrame 右手持续高压（客户端计时 4 秒）
func arousedFrame(sessionID string) *models.FrameMessage {
	f := baselineFrame(sessionID)
	f.Sensors[models.RegionRightHand] = models.SensorReading{StressTrend: 18, TremorIntensity: 1, StressTimer: 4, AverageSpeed: 1}
	return f
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memorySessionLogs struct {
	mu   sync.Mutex
	rows []models.SessionDataLog
	err  error
}

func (m *memorySessionLogs) Insert(ctx context.Context, log *models.SessionDataLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, *log)
	return nil
}

type memoryAnomalies struct {
	mu   sync.Mutex
	recs []models.AnomalyRecord
}

func (m *memoryAnomalies) Insert(ctx context.Context, rec *models.AnomalyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, *rec)
	return nil
}

func (m *memoryAnomalies) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.recs {
		if r.Method == method {
			n++
		}
	}
	return n
}

type recordedCommand struct {
	sessionID string
	cmd       models.AICommand
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []recordedCommand
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, sessionID string, cmd models.AICommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, recordedCommand{sessionID: sessionID, cmd: cmd})
	return nil
}
