// internal/timeline/engine.go
package timeline

import (
	"time"

	"github.com/Krosebrook/lovable-prompt-artist/internal/duration"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

// State 播放状态
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Position 某一时刻在时间轴上的位置
type Position struct {
	Index    int           `json:"index"`
	Progress float64       `json:"progress"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Engine 场景时间轴播放引擎
//
// 不是并发安全的：所有方法必须在同一个 goroutine（或同一个 Loop）中调用。
// 所有控制操作都基于 "锚点 + 暂停偏移" 重新计算，因此 seek、变速、暂停互相一致。
type Engine struct {
	clock Clock
	sched Scheduler

	durations []time.Duration
	starts    []time.Duration
	total     time.Duration

	state     State
	anchor    time.Time
	offset    time.Duration
	speed     float64
	current   int
	signaled  int
	completed bool
	destroyed bool
	cancel    Cancel

	onSceneChange func(index int)
	onProgress    func(pos Position)
	onComplete    func()
}

// New 使用每个场景的时长创建引擎
func New(durations []time.Duration, clock Clock, sched Scheduler) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	e := &Engine{
		clock:     clock,
		sched:     sched,
		durations: make([]time.Duration, len(durations)),
		starts:    make([]time.Duration, len(durations)),
		speed:     1,
		signaled:  -1,
	}
	var cum time.Duration
	for i, d := range durations {
		if d < 0 {
			d = 0
		}
		e.durations[i] = d
		e.starts[i] = cum
		cum += d
	}
	e.total = cum
	return e
}

// NewForScenes 根据脚本场景创建引擎，时长由 duration 包解析
func NewForScenes(scenes []models.Scene, clock Clock, sched Scheduler) *Engine {
	return New(duration.SceneDurations(scenes), clock, sched)
}

// OnSceneChange 场景切换回调，同一场景只触发一次
func (e *Engine) OnSceneChange(fn func(index int)) { e.onSceneChange = fn }

// OnProgress 每帧进度回调
func (e *Engine) OnProgress(fn func(pos Position)) { e.onProgress = fn }

// OnComplete 播放完成回调
func (e *Engine) OnComplete(fn func()) { e.onComplete = fn }

func (e *Engine) State() State { return e.state }

func (e *Engine) Total() time.Duration { return e.total }

func (e *Engine) CurrentSceneIndex() int { return e.current }

func (e *Engine) PlaybackSpeed() float64 { return e.speed }

func (e *Engine) SceneCount() int { return len(e.durations) }

// SceneStart 场景窗口起点
func (e *Engine) SceneStart(i int) time.Duration {
	if i < 0 || i >= len(e.starts) {
		return 0
	}
	return e.starts[i]
}

// Elapsed 当前已播放时长
func (e *Engine) Elapsed() time.Duration {
	if e.state != Playing {
		return e.offset
	}
	return time.Duration(float64(e.clock.Now().Sub(e.anchor)) * e.speed)
}

// Play 开始或继续播放
func (e *Engine) Play() {
	if e.destroyed || e.state == Playing {
		return
	}
	if e.completed {
		e.offset = 0
		e.current = 0
		e.signaled = -1
		e.completed = false
	}
	e.state = Playing
	e.reanchor()
	e.scheduleTick()
}

// Pause 暂停，返回前取消已调度的帧
func (e *Engine) Pause() {
	if e.state != Playing {
		return
	}
	e.offset = e.Elapsed()
	e.state = Paused
	e.stopLoop()
}

// Restart 从第一个场景重新播放
func (e *Engine) Restart() {
	if e.destroyed {
		return
	}
	e.Pause()
	e.offset = 0
	e.current = 0
	e.signaled = -1
	e.completed = false
	e.Play()
}

// SeekToScene 跳转到场景起点，越界时忽略
func (e *Engine) SeekToScene(index int) {
	if e.destroyed || index < 0 || index >= len(e.durations) {
		return
	}
	e.offset = e.starts[index]
	e.current = index
	if e.completed {
		// 重新播放时需要再次通知当前场景
		e.signaled = -1
		e.completed = false
	}
	if e.state == Playing {
		e.reanchor()
	}
}

// SetPlaybackSpeed 改变播放速度并保持当前进度，非正数忽略
func (e *Engine) SetPlaybackSpeed(multiplier float64) {
	if multiplier <= 0 {
		return
	}
	current := e.Elapsed()
	e.speed = multiplier
	e.offset = current
	if e.state == Playing {
		e.reanchor()
	}
}

// Destroy 停止并释放所有回调，之后不会再触发任何信号
func (e *Engine) Destroy() {
	e.Pause()
	e.stopLoop()
	e.destroyed = true
	e.onSceneChange = nil
	e.onProgress = nil
	e.onComplete = nil
}

// Resolve 将已播放时长映射到场景和场景内进度
// 零时长场景的窗口宽度为 0，永远不会命中，直接跳过
func (e *Engine) Resolve(elapsed time.Duration) (Position, bool) {
	if elapsed < 0 {
		elapsed = 0
	}
	for i, d := range e.durations {
		end := e.starts[i] + d
		if elapsed < end {
			return Position{
				Index:    i,
				Progress: float64(elapsed-e.starts[i]) / float64(d),
				Elapsed:  elapsed,
			}, true
		}
	}
	return Position{Index: len(e.durations) - 1, Progress: 1, Elapsed: elapsed}, false
}

// reanchor 起点 = now - offset/speed
func (e *Engine) reanchor() {
	e.anchor = e.clock.Now().Add(-time.Duration(float64(e.offset) / e.speed))
}

func (e *Engine) scheduleTick() {
	if e.sched == nil {
		return
	}
	e.stopLoop()
	e.cancel = e.sched.Schedule(e.tick)
}

func (e *Engine) stopLoop() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) tick() {
	e.cancel = nil
	if e.destroyed || e.state != Playing {
		return
	}

	pos, ok := e.Resolve(e.Elapsed())
	if !ok {
		e.complete()
		return
	}

	e.current = pos.Index
	if pos.Index != e.signaled {
		e.signaled = pos.Index
		if e.onSceneChange != nil {
			e.onSceneChange(pos.Index)
		}
	}
	if e.onProgress != nil {
		e.onProgress(pos)
	}

	// 回调里可能已经暂停或销毁
	if e.state == Playing && !e.destroyed {
		e.scheduleTick()
	}
}

func (e *Engine) complete() {
	e.offset = e.total
	e.state = Stopped
	e.completed = true
	e.stopLoop()
	if e.onComplete != nil {
		e.onComplete()
	}
}
