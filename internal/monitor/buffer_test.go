package monitor

import (
	"testing"
	"time"
)

func TestBufferCoalescesLatestPerNode(t *testing.T) {
	b := NewNodeUpdateBuffer(10, time.Millisecond)
	b.now = func() time.Time { return time.Unix(100, 0) }
	b.lastFlush = time.Unix(0, 0)

	b.Add("agent:a", 1)
	b.Add("agent:b", 2)
	b.Add("agent:a", 3)

	updates := b.Flush()
	if len(updates) != 2 {
		t.Fatalf("expected 2 coalesced updates, got %d", len(updates))
	}
	if updates["agent:a"] != 3 {
		t.Errorf("latest update per node should win, got %v", updates["agent:a"])
	}
	if b.Len() != 0 {
		t.Errorf("flush should drain the buffer, %d left", b.Len())
	}
}

func TestBufferDropsOldestAtCapacity(t *testing.T) {
	b := NewNodeUpdateBuffer(2, time.Millisecond)
	b.now = func() time.Time { return time.Unix(100, 0) }
	b.lastFlush = time.Unix(0, 0)

	b.Add("n1", 1)
	b.Add("n2", 2)
	b.Add("n3", 3) // 挤掉 n1

	updates := b.Flush()
	if _, ok := updates["n1"]; ok {
		t.Error("oldest update should have been dropped")
	}
	if updates["n2"] != 2 || updates["n3"] != 3 {
		t.Errorf("unexpected updates: %v", updates)
	}
}

func TestBufferFlushRespectsInterval(t *testing.T) {
	current := time.Unix(100, 0)
	b := NewNodeUpdateBuffer(10, time.Second)
	b.now = func() time.Time { return current }
	b.lastFlush = current

	b.Add("n1", 1)
	if updates := b.Flush(); updates != nil {
		t.Fatalf("flush before the interval should return nothing, got %v", updates)
	}

	current = current.Add(2 * time.Second)
	if updates := b.Flush(); len(updates) != 1 {
		t.Fatalf("flush after the interval should drain, got %v", updates)
	}
}

func TestBufferFlushEmpty(t *testing.T) {
	b := NewNodeUpdateBuffer(10, time.Millisecond)
	b.now = func() time.Time { return time.Unix(100, 0) }
	b.lastFlush = time.Unix(0, 0)

	if updates := b.Flush(); updates != nil {
		t.Errorf("empty buffer should flush to nil, got %v", updates)
	}
}
