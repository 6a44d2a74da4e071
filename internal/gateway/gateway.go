package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"yourmove/internal/consumer"
	"yourmove/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 100

// SessionLogReader session_data_log 查询
type SessionLogReader interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SessionDataLog, error)
}

// AnomalyReader anomaly_events 查询
type AnomalyReader interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.AnomalyRecord, error)
}

// Gateway 客户端与看板的 WebSocket / HTTP 入口
type Gateway struct {
	sessions  *consumer.SessionManager
	cache     *consumer.CacheManager
	logs      SessionLogReader
	anomalies AnomalyReader
	hub       *Hub
	auth      *Authenticator
	logger    *zap.Logger
	upgrader  websocket.Upgrader

	ue5Conns atomic.Int64
}

// Option 可选配置
type Option func(*Gateway)

// WithHistory 启用历史查询接口
func WithHistory(logs SessionLogReader, anomalies AnomalyReader) Option {
	return func(g *Gateway) {
		g.logs = logs
		g.anomalies = anomalies
	}
}

// New 创建网关并订阅会话快照；cache 可为 nil
func New(sessions *consumer.SessionManager, cache *consumer.CacheManager, auth *Authenticator, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		sessions: sessions,
		cache:    cache,
		hub:      NewHub(logger.Named("hub")),
		auth:     auth,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			// 看板与客户端不在同源下
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	sessions.Subscribe(g.onSnapshot)
	return g
}

// Hub 看板连接
func (g *Gateway) Hub() *Hub { return g.hub }

// UE5Connections 当前客户端连接数
func (g *Gateway) UE5Connections() int { return int(g.ue5Conns.Load()) }

func (g *Gateway) onSnapshot(snapshot models.SessionSnapshot) {
	if err := g.hub.Broadcast(models.DashboardMessage{Type: "sensor_update", Data: snapshot}); err != nil {
		g.logger.Error("Failed to broadcast snapshot", zap.Error(err))
	}
}

// Handler 注册全部路由
func (g *Gateway) Handler() http.Handler {
	r := NewRouter(g.logger)
	r.Handle("/health", g.handleHealth)
	r.Handle("/ws/ue5", g.handleUE5)
	r.Handle("/ws/dashboard", g.auth.Require(g.handleDashboard))
	r.Handle("/api/session/current", g.auth.Require(g.handleCurrent))
	r.Handle("/api/v1/sessions", g.auth.Require(g.handleSessions))
	r.Handle("/api/v1/sessions/", g.auth.Require(g.handleSession))
	return r
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active := g.sessions.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "healthy",
		"timestamp":             time.Now().UTC().Format(time.RFC3339Nano),
		"ue5_connections":       g.UE5Connections(),
		"dashboard_connections": g.hub.Count(),
		"active_session":        active,
		"active_sessions":       g.sessions.Count(),
	})
}

// handleUE5 客户端帧入口：每收到一帧回一条指令
func (g *Gateway) handleUE5(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("Failed to upgrade ue5 connection", zap.Error(err))
		return
	}
	g.ue5Conns.Add(1)
	g.logger.Info("UE5 client connected", zap.Int64("total", g.ue5Conns.Load()))
	defer func() {
		g.ue5Conns.Add(-1)
		conn.Close()
		g.logger.Info("UE5 client disconnected", zap.Int64("total", g.ue5Conns.Load()))
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Warn("UE5 read error", zap.Error(err))
			}
			return
		}
		cmd := g.processFrame(ctx, data)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(cmd); err != nil {
			g.logger.Warn("Failed to write command", zap.Error(err))
			return
		}
	}
}

func (g *Gateway) processFrame(ctx context.Context, data []byte) models.AICommand {
	var frame models.FrameMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		g.logger.Error("Data validation error", zap.Error(err))
		return consumer.InvalidFrameCommand()
	}
	cmd, err := g.sessions.Process(ctx, &frame)
	if err != nil {
		if errors.Is(err, models.ErrInvalidFrame) {
			g.logger.Error("Data validation error",
				zap.String("session_id", frame.SessionID),
				zap.Error(err),
			)
			return cmd
		}
		g.logger.Error("Error processing sensor data",
			zap.String("session_id", frame.SessionID),
			zap.Error(err),
		)
		return models.AICommand{
			Command:  models.CommandError,
			Reason:   err.Error(),
			Severity: models.CommandSeverityLow,
		}
	}
	return cmd
}

// handleDashboard 看板订阅；连接后立即推送当前会话
func (g *Gateway) handleDashboard(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("Failed to upgrade dashboard connection", zap.Error(err))
		return
	}

	client := &dashboardClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  g.hub,
	}
	if snap, ok := g.sessions.Current(); ok {
		data, err := json.Marshal(models.DashboardMessage{Type: "sensor_update", Data: snap})
		if err == nil {
			client.send <- data
		}
	}
	g.hub.add(client)

	go client.writePump()
	go client.readPump()
}

func (g *Gateway) handleCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap, ok := g.sessions.Current()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true, "data": snap})
}

func (g *Gateway) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ids := g.sessions.ActiveSessions()
	writeJSON(w, http.StatusOK, Ok(map[string]any{"sessions": ids, "count": len(ids)}))
}

// handleSession /api/v1/sessions/{id}[/analytics|/status|/logs|/anomalies]
func (g *Gateway) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" || len(parts) > 2 {
		writeJSON(w, http.StatusNotFound, Fail("not found"))
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !g.sessions.End(r.Context(), id) {
			writeJSON(w, http.StatusNotFound, Fail("session not found"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"session_id": id, "ended": true}))
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch parts[1] {
	case "analytics":
		g.getAnalytics(w, r, id)
	case "status":
		g.getStatus(w, r, id)
	case "logs":
		g.getLogs(w, r, id)
	case "anomalies":
		g.getAnomalies(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	}
}

// getAnalytics 优先读缓存（多实例共享），未命中时读本地会话
func (g *Gateway) getAnalytics(w http.ResponseWriter, r *http.Request, id string) {
	if g.cache != nil {
		raw, err := g.cache.GetAnalytics(r.Context(), id)
		if err == nil {
			writeJSON(w, http.StatusOK, Ok(raw))
			return
		}
		if !errors.Is(err, consumer.ErrCacheMiss) {
			g.logger.Warn("Failed to read analytics cache", zap.String("session_id", id), zap.Error(err))
		}
	}
	a, ok := g.sessions.Analytics(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("session not found"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(a))
}

func (g *Gateway) getStatus(w http.ResponseWriter, r *http.Request, id string) {
	if g.cache != nil {
		raw, err := g.cache.GetStatus(r.Context(), id)
		if err == nil {
			writeJSON(w, http.StatusOK, Ok(raw))
			return
		}
		if !errors.Is(err, consumer.ErrCacheMiss) {
			g.logger.Warn("Failed to read status cache", zap.String("session_id", id), zap.Error(err))
		}
	}
	snap, ok := g.sessions.Snapshot(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("session not found"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(snap))
}

func (g *Gateway) getLogs(w http.ResponseWriter, r *http.Request, id string) {
	if g.logs == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("storage disabled"))
		return
	}
	rows, err := g.logs.ListBySession(r.Context(), id, parseInt(r.URL.Query().Get("limit"), defaultHistoryLimit))
	if err != nil {
		g.logger.Error("Failed to list session logs", zap.String("session_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list session logs"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(rows))
}

func (g *Gateway) getAnomalies(w http.ResponseWriter, r *http.Request, id string) {
	if g.anomalies == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("storage disabled"))
		return
	}
	recs, err := g.anomalies.ListBySession(r.Context(), id, parseInt(r.URL.Query().Get("limit"), defaultHistoryLimit))
	if err != nil {
		g.logger.Error("Failed to list anomaly events", zap.String("session_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list anomaly events"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(recs))
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
