// internal/storage/file_cache.go
package storage

import (
	"sort"
	"sync"
	"time"
)

// readCache 文件内容的内存缓存，超出容量时按最后读取时间淘汰
type readCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	maxSize    int           // 最大缓存条目数
	expiration time.Duration // 缓存过期时间
	now        func() time.Time
}

// cacheEntry 缓存条目
type cacheEntry struct {
	data      []byte
	createdAt time.Time
	lastRead  time.Time
}

func newReadCache(maxSize int, expiration time.Duration) *readCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if expiration <= 0 {
		expiration = 5 * time.Minute
	}
	return &readCache{
		entries:    make(map[string]*cacheEntry),
		maxSize:    maxSize,
		expiration: expiration,
		now:        time.Now,
	}
}

func (c *readCache) get(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	now := c.now()
	if now.Sub(entry.createdAt) > c.expiration {
		delete(c.entries, path)
		return nil, false
	}
	entry.lastRead = now
	return entry.data, true
}

func (c *readCache) put(path string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[path] = &cacheEntry{data: data, createdAt: now, lastRead: now}

	// 超出容量时清理 20% 最少使用的条目
	if len(c.entries) > c.maxSize {
		c.evictLocked(c.maxSize/5 + 1)
	}
}

func (c *readCache) invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// cleanup 清理过期条目，返回清理数量
func (c *readCache) cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for path, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.expiration {
			delete(c.entries, path)
			removed++
		}
	}
	return removed
}

func (c *readCache) evictLocked(count int) {
	type keyed struct {
		path     string
		lastRead time.Time
	}
	all := make([]keyed, 0, len(c.entries))
	for path, entry := range c.entries {
		all = append(all, keyed{path, entry.lastRead})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].lastRead.Before(all[j].lastRead)
	})
	for i := 0; i < count && i < len(all); i++ {
		delete(c.entries, all[i].path)
	}
}

func (c *readCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
