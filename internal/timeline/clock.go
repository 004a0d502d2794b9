// internal/timeline/clock.go
package timeline

import (
	"sync"
	"time"
)

// Clock 时间源
type Clock interface {
	Now() time.Time
}

// Cancel 取消一个已调度的帧回调，返回后回调保证不会再执行
type Cancel func()

// Scheduler 帧调度器，每次调度一个回调
type Scheduler interface {
	Schedule(fn func()) Cancel
}

// SystemClock 系统时钟
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock 测试用时钟，只有调用 Advance 才前进
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock 创建手动时钟
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 前进 d
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ManualScheduler 测试用调度器，RunFrame 执行当前排队的回调
type ManualScheduler struct {
	nextID  int
	pending []manualFrame
}

type manualFrame struct {
	id int
	fn func()
}

// NewManualScheduler 创建手动调度器
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) Schedule(fn func()) Cancel {
	s.nextID++
	id := s.nextID
	s.pending = append(s.pending, manualFrame{id: id, fn: fn})
	return func() {
		for i, f := range s.pending {
			if f.id == id {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				return
			}
		}
	}
}

// Pending 排队中的回调数量
func (s *ManualScheduler) Pending() int {
	return len(s.pending)
}

// RunFrame 执行一帧，返回执行的回调数
// 帧内新调度的回调留到下一帧
func (s *ManualScheduler) RunFrame() int {
	frames := s.pending
	s.pending = nil
	for _, f := range frames {
		f.fn()
	}
	return len(frames)
}
