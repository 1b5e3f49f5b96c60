package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qs3c/vip_task_server/internal/metrics"
	"github.com/qs3c/vip_task_server/internal/pkg/pubsub"
)

const writeWait = 10 * time.Second

// Hub 按用户维护进度推送连接。一个用户可以同时打开多个连接，
// 每个连接可以只关注某一个权限实例。
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	online  func(delta float64)
}

// Client 一条推送连接。AccessID 为 0 表示接收该用户全部实例的进度。
type Client struct {
	UserID   int64
	AccessID int64
	Conn     *websocket.Conn
	mu       sync.Mutex
}

// Message 推送给前端的信封
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	gauge := metrics.Get().WSConnections
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		online:  gauge.Add,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	conns := h.clients[client.UserID]
	if conns == nil {
		conns = make(map[*Client]struct{})
		h.clients[client.UserID] = conns
	}
	conns[client] = struct{}{}
	n := len(conns)
	h.mu.Unlock()

	h.online(1)
	slog.Debug("进度连接建立", "user_id", client.UserID, "access_id", client.AccessID, "user_conns", n)
}

func (h *Hub) Unregister(client *Client) {
	if h.remove(client) {
		slog.Debug("进度连接断开", "user_id", client.UserID, "access_id", client.AccessID)
	}
}

func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[client.UserID]
	if !ok {
		return false
	}
	if _, ok := conns[client]; !ok {
		return false
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.UserID)
	}
	h.online(-1)
	return true
}

// Relay 把进度消息推给关注该实例的连接，AccessID 为 0 时推给用户全部连接
func (h *Hub) Relay(msg *pubsub.ProgressMessage) error {
	return h.send(msg.UserID, msg.AccessID, &Message{Type: msg.Type, Data: msg})
}

func (h *Hub) send(userID, accessID int64, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		if accessID == 0 || c.AccessID == 0 || c.AccessID == accessID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, data); err != nil {
			// 写失败的连接直接摘除，读协程随后会因连接关闭退出
			slog.Warn("进度推送失败，关闭连接", "user_id", userID, "error", err)
			h.remove(c)
			_ = c.Conn.Close()
		}
	}
	return nil
}

func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(messageType, data)
}

// IsOnline 用户是否有任意连接
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// ConnectionCount 当前连接总数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

// CloseAll 通知并关闭全部连接，服务退出时调用
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[int64]map[*Client]struct{})
	h.mu.Unlock()

	closing := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
	for _, conns := range all {
		for c := range conns {
			_ = c.write(websocket.CloseMessage, closing)
			_ = c.Conn.Close()
			h.online(-1)
		}
	}
}
