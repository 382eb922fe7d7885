package service

import (
	"sync"

	"github.com/gorilla/websocket"
)

// ConnectionManager manages WebSocket connections keyed by user.
type ConnectionManager struct {
	connections map[string]*websocket.Conn
	mu          sync.RWMutex
}

// NewConnectionManager creates a new ConnectionManager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
	}
}

// Add registers a new connection for a user.
func (m *ConnectionManager) Add(userID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[userID] = conn
}

// Remove removes a connection for a user.
func (m *ConnectionManager) Remove(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.connections[userID]; ok {
		conn.Close()
		delete(m.connections, userID)
	}
}

// SendMessage sends a message to a specific user. Returns false when the
// user has no live connection or the write fails.
func (m *ConnectionManager) SendMessage(userID string, message []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.connections[userID]
	if !ok {
		return false
	}
	return conn.WriteMessage(websocket.TextMessage, message) == nil
}
