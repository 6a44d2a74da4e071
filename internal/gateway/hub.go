package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"yourmove/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 10 * time.Second
	// 看板无消息时的心跳间隔
	pingPeriod = 30 * time.Second
	pongWait   = 2 * pingPeriod
	sendBuffer = 256
)

var pingMessage = []byte(`{"type":"ping"}`)

// dashboardClient 单个看板连接
type dashboardClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub 看板连接管理与广播
type Hub struct {
	clients   map[*dashboardClient]bool
	broadcast chan []byte

	mu     sync.RWMutex
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:   make(map[*dashboardClient]bool),
		broadcast: make(chan []byte, 100),
		logger:    logger,
	}
}

// Run 分发广播消息，直到 ctx 取消
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Dashboard hub started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case message := <-h.broadcast:
			h.mu.RLock()
			var slow []*dashboardClient
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				h.logger.Warn("Dashboard send buffer full, disconnecting", zap.String("client_id", client.id))
				h.remove(client)
			}
		}
	}
}

func (h *Hub) add(client *dashboardClient) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("Dashboard connected",
		zap.String("client_id", client.id),
		zap.Int("total", total),
	)
}

// remove 与广播互斥，关闭 send 后不会再有写入
func (h *Hub) remove(client *dashboardClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Info("Dashboard disconnected",
		zap.String("client_id", client.id),
		zap.Int("remaining", len(h.clients)),
	)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// Count 当前看板连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast 向所有看板推送消息；队列满时丢弃
func (h *Hub) Broadcast(msg models.DashboardMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal dashboard message: %w", err)
	}
	select {
	case h.broadcast <- data:
		return nil
	default:
		h.logger.Warn("Dashboard broadcast queue full, dropping message", zap.String("type", msg.Type))
		return nil
	}
}

// readPump 读取看板消息（目前只记录），负责连接存活检测
func (c *dashboardClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("Dashboard read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.logger.Debug("Dashboard message",
			zap.String("client_id", c.id),
			zap.ByteString("message", message),
		)
	}
}

// writePump 发送广播消息与心跳
func (c *dashboardClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, pingMessage); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
