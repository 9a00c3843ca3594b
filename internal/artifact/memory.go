package artifact

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data        []byte
	contentType string
	storedAt    time.Time
}

// Memory keeps artifacts in process memory. With a zero TTL artifacts live
// until restart; with a positive TTL a janitor evicts expired entries.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemory constructs the in-memory backend.
func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	if ttl > 0 {
		go m.janitor()
	}
	return m
}

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.entries[key] = memoryEntry{data: cp, contentType: contentType, storedAt: time.Now()}
	m.mu.Unlock()
	return "mem:" + key, nil
}

func (m *Memory) Get(_ context.Context, ref string) ([]byte, string, error) {
	key := refKey(ref, "mem:")
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, "", ErrNotFound
	}
	if m.ttl > 0 && time.Since(entry.storedAt) > m.ttl {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, "", ErrNotFound
	}
	return entry.data, entry.contentType, nil
}

// Close stops the janitor goroutine.
func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Memory) janitor() {
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for key, entry := range m.entries {
				if now.Sub(entry.storedAt) > m.ttl {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		}
	}
}

func refKey(ref, prefix string) string {
	if len(ref) >= len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}
