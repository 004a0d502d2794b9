// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

const (
	maxIdleLocks = 200
	lockTimeout  = 30 * time.Minute
)

// LockManager 按项目 ID 分配的互斥锁，串行化同一项目的读改写
type LockManager struct {
	projectLocks map[string]*LockInfo
	globalLock   sync.Mutex
	stop         chan struct{}
	stopOnce     sync.Once
}

// LockInfo 锁及其使用状态
type LockInfo struct {
	Mutex    sync.Mutex
	LastUsed time.Time
	// 持有或等待中的调用数，大于 0 时不会被清理
	refs int
}

// NewLockManager interval > 0 时定期清理长时间未用的锁
func NewLockManager(interval time.Duration) *LockManager {
	lm := &LockManager{
		projectLocks: make(map[string]*LockInfo),
		stop:         make(chan struct{}),
	}
	if interval > 0 {
		go lm.cleanupLoop(interval)
	}
	return lm
}

func (lm *LockManager) acquire(projectID string) *LockInfo {
	lm.globalLock.Lock()
	info, ok := lm.projectLocks[projectID]
	if !ok {
		info = &LockInfo{}
		lm.projectLocks[projectID] = info
	}
	info.refs++
	info.LastUsed = time.Now()
	lm.globalLock.Unlock()

	info.Mutex.Lock()
	return info
}

func (lm *LockManager) release(info *LockInfo) {
	info.Mutex.Unlock()
	lm.globalLock.Lock()
	info.refs--
	info.LastUsed = time.Now()
	lm.globalLock.Unlock()
}

// WithProjectLock 在项目锁保护下执行 fn
func (lm *LockManager) WithProjectLock(projectID string, fn func() error) error {
	info := lm.acquire(projectID)
	defer lm.release(info)
	return fn()
}

// Size 当前持有的锁数量
func (lm *LockManager) Size() int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	return len(lm.projectLocks)
}

func (lm *LockManager) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lm.cleanup(time.Now(), maxIdleLocks)
		case <-lm.stop:
			return
		}
	}
}

// cleanup 锁数量超过阈值时删除空闲超时的锁
func (lm *LockManager) cleanup(now time.Time, threshold int) {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	if len(lm.projectLocks) <= threshold {
		return
	}
	for id, info := range lm.projectLocks {
		if info.refs == 0 && now.Sub(info.LastUsed) > lockTimeout {
			delete(lm.projectLocks, id)
		}
	}
}

// Close 停止清理协程
func (lm *LockManager) Close() {
	lm.stopOnce.Do(func() { close(lm.stop) })
}
