// internal/ratelimit/store.go
package ratelimit

import (
	"sync"
	"time"
)

// Entry 固定窗口计数
type Entry struct {
	Count     int
	ResetTime time.Time
}

// Expired 窗口是否已结束
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ResetTime)
}

// Store 计数存储，按 "identifier:endpoint" 索引
type Store interface {
	Get(key string) (Entry, bool)
	Set(key string, entry Entry)
	Len() int
	// DeleteExpired 删除所有已过期条目，返回删除数量
	DeleteExpired(now time.Time) int
}

// MemoryStore 进程内存储，重启即丢失
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

func (s *MemoryStore) Set(key string, entry Entry) {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) DeleteExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
