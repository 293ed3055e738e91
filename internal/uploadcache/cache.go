package uploadcache

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"FinReportsSaas/internal/finparse"
)

// Entry is one parsed-but-unconfirmed upload held between the preview and
// confirm steps. The original bytes ride along so confirmation can archive
// the exact file the user saw.
type Entry struct {
	ID            string
	CompanyID     string
	UserID        string
	StatementType string
	Locale        string
	FileName      string
	FileBytes     []byte
	SHA256        string
	Result        *finparse.ParseResult
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Store is the preview cache contract. Handlers depend on this interface so
// tests can substitute their own implementation.
type Store interface {
	Put(entry *Entry) string
	Get(id string) (*Entry, bool)
	Delete(id string)
	CleanupExpired() int
}

// Memory is an in-process Store with a TTL and a hard capacity. When full,
// the oldest entry is evicted to make room.
type Memory struct {
	entries  map[string]*Entry
	ttl      time.Duration
	capacity int
	mu       sync.Mutex
}

func NewMemory(ttl time.Duration, capacity int) *Memory {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if capacity <= 0 {
		capacity = 256
	}
	return &Memory{
		entries:  make(map[string]*Entry),
		ttl:      ttl,
		capacity: capacity,
	}
}

func (m *Memory) Put(entry *Entry) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(m.ttl)

	if len(m.entries) >= m.capacity {
		m.evictOldestLocked()
	}
	m.entries[entry.ID] = entry
	return entry.ID
}

// Get returns a live entry. Expired entries read as missing even before the
// cleanup pass removes them.
func (m *Memory) Get(id string) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[id]
	if !exists {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		delete(m.entries, id)
		return nil, false
	}
	return entry, true
}

func (m *Memory) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
}

func (m *Memory) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, entry := range m.entries {
		if now.After(entry.ExpiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

func (m *Memory) evictOldestLocked() {
	oldestID := ""
	var oldestAt time.Time
	for id, entry := range m.entries {
		if oldestID == "" || entry.CreatedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = entry.CreatedAt
		}
	}
	if oldestID != "" {
		delete(m.entries, oldestID)
	}
}
