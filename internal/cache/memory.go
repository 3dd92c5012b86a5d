package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Memory is an in-process snapshot cache bounded by total value bytes and a
// per-entry max lifetime. When the byte cap is exceeded the least recently
// used entries are evicted first.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	size     int
	maxBytes int
	ttl      time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	key        string
	value      []byte
	insertedAt time.Time
}

func NewMemory(maxBytes int, ttl time.Duration) *Memory {
	return &Memory{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		maxBytes: maxBytes,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *Memory) Get(_ context.Context, bareJID string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[bareJID]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if m.expired(entry) {
		m.drop(el)
		return nil, false
	}
	m.order.MoveToFront(el)
	return entry.value, true
}

func (m *Memory) Put(_ context.Context, bareJID string, snapshot []byte) {
	if len(snapshot) > m.maxBytes {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[bareJID]; ok {
		m.drop(el)
	}

	value := make([]byte, len(snapshot))
	copy(value, snapshot)
	el := m.order.PushFront(&memoryEntry{
		key:        bareJID,
		value:      value,
		insertedAt: m.now(),
	})
	m.entries[bareJID] = el
	m.size += len(value)

	for m.size > m.maxBytes {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.drop(oldest)
	}
}

func (m *Memory) Remove(_ context.Context, bareJID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[bareJID]; ok {
		m.drop(el)
	}
}

// SweepExpired drops all entries past their lifetime and reports how many
// were removed. Called periodically by the job scheduler.
func (m *Memory) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		if m.expired(el.Value.(*memoryEntry)) {
			m.drop(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Len reports the number of live entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) expired(e *memoryEntry) bool {
	return m.ttl > 0 && m.now().Sub(e.insertedAt) >= m.ttl
}

// drop removes the element; callers hold the lock.
func (m *Memory) drop(el *list.Element) {
	entry := el.Value.(*memoryEntry)
	m.order.Remove(el)
	delete(m.entries, entry.key)
	m.size -= len(entry.value)
}
