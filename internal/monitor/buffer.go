package monitor

import (
	"sync"
	"time"
)

// NodeUpdate 是一条待广播的节点状态更新。
type NodeUpdate struct {
	NodeID string      `json:"node_id"`
	Data   interface{} `json:"data"`
}

// NodeUpdateBuffer 把高频的节点更新合并成批量推送：
// 容量满时丢弃最旧的更新，刷新间隔内的 Flush 返回空，
// 每次刷新对同一节点只保留最新一条。
type NodeUpdateBuffer struct {
	mu        sync.Mutex
	buffer    []NodeUpdate
	maxSize   int
	interval  time.Duration
	lastFlush time.Time
	now       func() time.Time // 测试中可替换
}

// NewNodeUpdateBuffer 创建更新缓冲。maxSize<=0 取 100，interval<=0 取 100ms。
func NewNodeUpdateBuffer(maxSize int, interval time.Duration) *NodeUpdateBuffer {
	if maxSize <= 0 {
		maxSize = 100
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &NodeUpdateBuffer{
		maxSize:  maxSize,
		interval: interval,
		now:      time.Now,
	}
}

// Add 追加一条更新，永不阻塞；容量满时挤掉最旧的一条。
func (b *NodeUpdateBuffer) Add(nodeID string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buffer) >= b.maxSize {
		b.buffer = b.buffer[1:]
	}
	b.buffer = append(b.buffer, NodeUpdate{NodeID: nodeID, Data: data})
}

// Len 返回当前缓冲的更新数。
func (b *NodeUpdateBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// Flush 取出并合并缓冲的更新。距上次刷新不足间隔时返回 nil，
// 同一节点的多条更新只保留最后一条。
func (b *NodeUpdateBuffer) Flush() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastFlush) < b.interval {
		return nil
	}
	b.lastFlush = now

	if len(b.buffer) == 0 {
		return nil
	}
	updates := make(map[string]interface{}, len(b.buffer))
	for _, u := range b.buffer {
		updates[u.NodeID] = u.Data
	}
	b.buffer = b.buffer[:0]
	return updates
}
