// internal/timeline/loop.go
package timeline

import (
	"sync"
	"time"
)

// DefaultFrameInterval 约 60fps
const DefaultFrameInterval = 16 * time.Millisecond

// Loop 单 goroutine 帧循环
// 控制操作通过 Do 投递，帧回调也在同一个 goroutine 中执行，
// 因此挂在 Loop 上的 Engine 始终只有一个调用方。
type Loop struct {
	interval  time.Duration
	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewLoop 创建并启动帧循环
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	l := &Loop{
		interval: interval,
		ops:      make(chan func(), 64),
		done:     make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case fn := <-l.ops:
			fn()
		case <-l.done:
			return
		}
	}
}

// Do 投递一个操作到循环中，循环已关闭时返回 false
func (l *Loop) Do(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.ops <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call 投递操作并等待其执行完成，不能在循环 goroutine 内调用
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	if !l.Do(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Schedule 在一个帧间隔后执行 fn，必须在循环 goroutine 中调用
func (l *Loop) Schedule(fn func()) Cancel {
	cancelled := false
	timer := time.AfterFunc(l.interval, func() {
		l.Do(func() {
			if !cancelled {
				fn()
			}
		})
	})
	return func() {
		cancelled = true
		timer.Stop()
	}
}

// Close 停止循环，未执行的操作被丢弃
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// Done 循环关闭后关闭
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
