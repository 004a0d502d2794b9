// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Krosebrook/lovable-prompt-artist/internal/services"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// newUpgrader 来源检查与 CORS 配置一致
func newUpgrader(cors CORSOptions) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// 非浏览器客户端不带 Origin
			return origin == "" || cors.originAllowed(origin)
		},
	}
}

// wsClient 一个 WebSocket 连接
type wsClient struct {
	conn      *websocket.Conn
	projectID string
	userID    string
	send      chan []byte
	closed    int32
	createdAt time.Time
}

// Close 安全关闭客户端连接
func (client *wsClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		client.conn.Close()
	}
}

// IsClosed 检查连接是否已关闭
func (client *wsClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// enqueue 非阻塞发送，队列满时返回 false
func (client *wsClient) enqueue(msg []byte) bool {
	if client.IsClosed() {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

// writePump 串行写出消息并定期 ping，done 关闭后退出
func (client *wsClient) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case msg := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			client.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump 读取客户端消息直到连接断开，handle 可为 nil
func (client *wsClient) readPump(handle func(msg []byte)) {
	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, msg, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		if handle != nil {
			handle(msg)
		}
	}
}

// Hub 按项目分组的连接管理，实现 services.Notifier
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*wsClient]struct{}
	closed  bool
	logger  *utils.Logger
	metrics *utils.MetricsCollector
}

// NewHub 创建 hub
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*wsClient]struct{}),
		logger:  utils.GetLogger().With(map[string]interface{}{"component": "ws"}),
		metrics: utils.GetMetricsCollector(),
	}
}

func (h *Hub) register(client *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	room := h.rooms[client.projectID]
	if room == nil {
		room = make(map[*wsClient]struct{})
		h.rooms[client.projectID] = room
	}
	room[client] = struct{}{}
	h.metrics.IncGauge("ws_connections")

	h.logger.Debug("WebSocket 客户端已连接", map[string]interface{}{
		"project_id": client.projectID,
		"user_id":    client.userID,
	})
	return true
}

func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	if room, ok := h.rooms[client.projectID]; ok {
		if _, ok := room[client]; ok {
			delete(room, client)
			h.metrics.DecGauge("ws_connections")
		}
		if len(room) == 0 {
			delete(h.rooms, client.projectID)
		}
	}
	h.mu.Unlock()
	client.Close()
}

// Publish 向订阅项目的所有连接推送事件，慢连接会被断开
func (h *Hub) Publish(projectID string, event services.Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("序列化事件失败", map[string]interface{}{"type": event.Type, "err": err})
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.rooms[projectID]))
	for client := range h.rooms[projectID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.enqueue(msg) {
			h.logger.Warn("WebSocket 发送队列已满，断开连接", map[string]interface{}{
				"project_id": projectID,
				"user_id":    client.userID,
			})
			h.unregister(client)
		}
	}
}

// Serve 接管已升级的连接直到断开
func (h *Hub) Serve(conn *websocket.Conn, projectID, userID string) {
	client := &wsClient{
		conn:      conn,
		projectID: projectID,
		userID:    userID,
		send:      make(chan []byte, sendBufferSize),
		createdAt: time.Now(),
	}
	if !h.register(client) {
		client.Close()
		return
	}
	done := make(chan struct{})
	go client.writePump(done)

	client.readPump(nil)
	close(done)
	h.unregister(client)
}

// Connections 某个项目当前的连接数
func (h *Hub) Connections(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[projectID])
}

// GetStatus 获取管理器状态
func (h *Hub) GetStatus() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, room := range h.rooms {
		total += len(room)
	}
	return map[string]interface{}{
		"projects":    len(h.rooms),
		"connections": total,
	}
}

// Close 断开所有连接，之后不再接受新连接
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	rooms := h.rooms
	h.rooms = make(map[string]map[*wsClient]struct{})
	h.mu.Unlock()
	h.metrics.SetGauge("ws_connections", 0)

	for _, room := range rooms {
		for client := range room {
			client.Close()
		}
	}
	h.logger.Info("WebSocket hub 已关闭", nil)
}
