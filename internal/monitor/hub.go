package monitor

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// Hub 管理监控端的 WebSocket 订阅者，并把批量更新广播给所有连接。
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// NewHub 创建一个广播中心。
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// Add 登记一个新的订阅连接。
func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

// Remove 注销并关闭一个连接。
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		conn.Close()
		delete(h.conns, conn)
	}
}

// Count 返回当前的订阅连接数。
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast 把一批节点更新推送给所有订阅者，写失败的连接被移除。
func (h *Hub) Broadcast(updates map[string]interface{}) {
	if len(updates) == 0 {
		return
	}
	payload, err := json.Marshal(updates)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.New("monitor_service", "", "").Warn(
				fmt.Sprintf("dropping slow monitor subscriber: %v", err))
			conn.Close()
			delete(h.conns, conn)
		}
	}
}
