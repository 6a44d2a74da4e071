package consumer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"yourmove/internal/analyzer"
	"yourmove/internal/config"
	"yourmove/internal/models"
	"yourmove/internal/repository"

	"go.uber.org/zap"
)

// SessionLogStore session_data_log 写入（未启用持久化时为 nil）
type SessionLogStore interface {
	Insert(ctx context.Context, log *models.SessionDataLog) error
}

// AnomalyStore anomaly_events 写入（未启用持久化时为 nil）
type AnomalyStore interface {
	Insert(ctx context.Context, rec *models.AnomalyRecord) error
}

// SnapshotListener 每帧处理完成后回调（看板广播）
type SnapshotListener func(snapshot models.SessionSnapshot)

// InvalidFrameCommand 帧无效时返回给客户端的指令
func InvalidFrameCommand() models.AICommand {
	return models.AICommand{
		Command:  models.CommandError,
		Reason:   "Invalid data format",
		Severity: models.CommandSeverityLow,
	}
}

// session 单个会话的状态，同一会话的帧串行处理
type session struct {
	mu        sync.Mutex
	analyzer  *analyzer.MovementAnalyzer
	patientID string
	lastFrame *models.FrameMessage
	snapshot  *models.SessionSnapshot
	analytics *models.AdvancedAnalytics
	// analytics 对应的帧序号
	analyticsFrame int

	// 已写库的异常（sensor/method -> severity），仅在严重程度变化时再次写入
	persisted map[string]models.Severity

	lastSeen atomic.Int64 // unix nano
}

// SessionManager 管理所有会话的分析器
type SessionManager struct {
	config    *config.Config
	cache     *CacheManager
	logs      SessionLogStore
	anomalies AnomalyStore
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.RWMutex
	sessions  map[string]*session
	latestID  string
	listeners []SnapshotListener
}

// SessionManagerOption 可选配置
type SessionManagerOption func(*SessionManager)

// WithStores 启用持久化
func WithStores(logs SessionLogStore, anomalies AnomalyStore) SessionManagerOption {
	return func(m *SessionManager) {
		m.logs = logs
		m.anomalies = anomalies
	}
}

// WithSessionClock 替换时钟（测试用）
func WithSessionClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) { m.now = now }
}

// NewSessionManager 创建会话管理器；cache 可为 nil
func NewSessionManager(cfg *config.Config, cache *CacheManager, logger *zap.Logger, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		config:   cfg,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe 注册快照监听
func (m *SessionManager) Subscribe(l SnapshotListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *SessionManager) getOrCreate(frame *models.FrameMessage) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[frame.SessionID]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[frame.SessionID]; ok {
		return s, nil
	}
	a, err := analyzer.New(m.config.Analyzer.BufferCapacity, m.logger, analyzer.WithClock(m.now))
	if err != nil {
		return nil, fmt.Errorf("create analyzer for session %s: %w", frame.SessionID, err)
	}
	s = &session{
		analyzer:  a,
		patientID: frame.PatientID,
		persisted: make(map[string]models.Severity),
	}
	m.sessions[frame.SessionID] = s

	m.logger.Info("Session started",
		zap.String("session_id", frame.SessionID),
		zap.String("patient_id", frame.PatientID),
	)
	return s, nil
}

// Process 处理一帧，返回下发指令
// 缓存与持久化失败只记录日志，不影响指令返回
func (m *SessionManager) Process(ctx context.Context, frame *models.FrameMessage) (models.AICommand, error) {
	if err := frame.Validate(); err != nil {
		return InvalidFrameCommand(), err
	}

	s, err := m.getOrCreate(frame)
	if err != nil {
		return models.AICommand{}, err
	}
	s.lastSeen.Store(m.now().UnixNano())

	s.mu.Lock()
	cmd := s.analyzer.Analyze(frame)
	snapshot := s.analyzer.Snapshot(frame, cmd)
	frameCount := s.analyzer.FrameCount()
	s.lastFrame = frame
	s.snapshot = &snapshot

	var analytics *models.AdvancedAnalytics
	if every := m.config.Analyzer.AnalyticsEveryFrames; every > 0 && frameCount%every == 0 {
		a := s.analyzer.AdvancedAnalytics(frame)
		analytics = &a
		s.analytics = analytics
		s.analyticsFrame = frameCount
	}

	var logRow *models.SessionDataLog
	if every := m.config.Storage.LogEveryFrames; m.logs != nil && every > 0 && frameCount%every == 0 {
		logRow = &models.SessionDataLog{
			SessionID:   frame.SessionID,
			PatientID:   frame.PatientID,
			FocusLevel:  int(math.Round(frame.Focus() * 100)),
			StressLevel: int(math.Round(snapshot.GlobalStats.MaxStress)),
			MaxTremor:   snapshot.GlobalStats.MaxTremor,
			AvgStress:   snapshot.GlobalStats.AvgStress,
			AICommand:   cmd.Command,
			AISeverity:  string(cmd.Severity),
			RecordedAt:  m.now().UTC(),
		}
	}

	var toPersist []models.AnomalyEvent
	if m.anomalies != nil {
		toPersist = s.changedAnomalies(m.config.Storage.PersistMinSeverity)
	}
	s.mu.Unlock()

	m.mu.Lock()
	m.latestID = frame.SessionID
	listeners := m.listeners
	m.mu.Unlock()

	m.writeCache(ctx, &snapshot, analytics)
	m.persist(ctx, frame, logRow, toPersist)

	for _, l := range listeners {
		l(snapshot)
	}
	return cmd, nil
}

// changedAnomalies 返回新出现或严重程度变化的异常；调用方持有 s.mu
func (s *session) changedAnomalies(minSeverity models.Severity) []models.AnomalyEvent {
	var changed []models.AnomalyEvent
	seen := make(map[string]bool)
	for _, ev := range s.analyzer.LastAnomalies() {
		if ev.Severity < minSeverity {
			continue
		}
		key := ev.Sensor + "/" + ev.Method
		seen[key] = true
		if prev, ok := s.persisted[key]; ok && prev == ev.Severity {
			continue
		}
		s.persisted[key] = ev.Severity
		changed = append(changed, ev)
	}
	for key := range s.persisted {
		if !seen[key] {
			delete(s.persisted, key)
		}
	}
	return changed
}

func (m *SessionManager) writeCache(ctx context.Context, snapshot *models.SessionSnapshot, analytics *models.AdvancedAnalytics) {
	if m.cache == nil {
		return
	}
	if err := m.cache.UpdateStatus(ctx, snapshot); err != nil {
		m.logger.Warn("Failed to update status cache",
			zap.String("session_id", snapshot.SessionID),
			zap.Error(err),
		)
	}
	if analytics == nil {
		return
	}
	if err := m.cache.UpdateAnalytics(ctx, snapshot.SessionID, analytics); err != nil {
		m.logger.Warn("Failed to update analytics cache",
			zap.String("session_id", snapshot.SessionID),
			zap.Error(err),
		)
	}
}

func (m *SessionManager) persist(ctx context.Context, frame *models.FrameMessage, logRow *models.SessionDataLog, events []models.AnomalyEvent) {
	if logRow != nil {
		if err := m.logs.Insert(ctx, logRow); err != nil {
			m.logger.Error("Failed to insert session log",
				zap.String("session_id", frame.SessionID),
				zap.Error(err),
			)
		}
	}
	for _, ev := range events {
		rec, err := repository.NewAnomalyRecord(frame.SessionID, frame.PatientID, ev)
		if err != nil {
			m.logger.Error("Failed to build anomaly record", zap.Error(err))
			continue
		}
		if err := m.anomalies.Insert(ctx, rec); err != nil {
			m.logger.Error("Failed to insert anomaly event",
				zap.String("session_id", frame.SessionID),
				zap.String("sensor", ev.Sensor),
				zap.String("method", ev.Method),
				zap.Error(err),
			)
		}
	}
}

func (m *SessionManager) lookup(sessionID string) (*session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Analytics 返回会话最近的分析载荷。
// 缓存结果落后于最新帧时按最后一帧重新计算（不推进检测器状态）。
func (m *SessionManager) Analytics(sessionID string) (*models.AdvancedAnalytics, bool) {
	s, ok := m.lookup(sessionID)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	frameCount := s.analyzer.FrameCount()
	if s.analytics != nil && s.analyticsFrame == frameCount {
		return s.analytics, true
	}
	if s.lastFrame == nil {
		return nil, false
	}
	a := s.analyzer.AdvancedAnalytics(s.lastFrame)
	s.analytics = &a
	s.analyticsFrame = frameCount
	return s.analytics, true
}

// Snapshot 返回会话最近一帧快照
func (m *SessionManager) Snapshot(sessionID string) (*models.SessionSnapshot, bool) {
	s, ok := m.lookup(sessionID)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.snapshot != nil
}

// Current 最近一次收到帧的会话快照
func (m *SessionManager) Current() (*models.SessionSnapshot, bool) {
	m.mu.RLock()
	id := m.latestID
	m.mu.RUnlock()
	if id == "" {
		return nil, false
	}
	return m.Snapshot(id)
}

// ActiveSessions 当前活跃会话 ID（已排序）
func (m *SessionManager) ActiveSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count 活跃会话数
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// End 结束会话并清理缓存
func (m *SessionManager) End(ctx context.Context, sessionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	if m.latestID == sessionID {
		m.latestID = ""
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	if m.cache != nil {
		if err := m.cache.Evict(ctx, sessionID); err != nil {
			m.logger.Warn("Failed to evict session cache",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}
	m.logger.Info("Session ended",
		zap.String("session_id", sessionID),
		zap.String("patient_id", s.patientID),
	)
	return true
}

// SweepIdle 释放空闲超时的会话，返回释放数量
func (m *SessionManager) SweepIdle(ctx context.Context) int {
	timeout := m.config.Analyzer.SessionIdleTimeout
	if timeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-timeout).UnixNano()

	var idle []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if s.lastSeen.Load() < cutoff {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		m.End(ctx, id)
	}
	if len(idle) > 0 {
		m.logger.Info("Swept idle sessions",
			zap.Int("count", len(idle)),
			zap.Duration("idle_timeout", timeout),
		)
	}
	return len(idle)
}

// RunSweeper 定期清理空闲会话，直到 ctx 取消
func (m *SessionManager) RunSweeper(ctx context.Context) {
	interval := m.config.Analyzer.SessionIdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepIdle(ctx)
		}
	}
}
