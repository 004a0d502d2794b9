package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

type recorder struct {
	scenes    []int
	completes int
	progress  []Position
}

func newTestEngine(durations ...time.Duration) (*Engine, *ManualClock, *ManualScheduler, *recorder) {
	clock := NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sched := NewManualScheduler()
	e := New(durations, clock, sched)
	rec := &recorder{}
	e.OnSceneChange(func(i int) { rec.scenes = append(rec.scenes, i) })
	e.OnComplete(func() { rec.completes++ })
	e.OnProgress(func(p Position) { rec.progress = append(rec.progress, p) })
	return e, clock, sched, rec
}

func tenTenTen() []time.Duration {
	return []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second}
}

func TestSeekToSceneSetsElapsed(t *testing.T) {
	e, _, _, _ := newTestEngine(tenTenTen()...)

	e.SeekToScene(1)
	assert.Equal(t, 10000*time.Millisecond, e.Elapsed())
	assert.Equal(t, 1, e.CurrentSceneIndex())

	// 越界忽略
	e.SeekToScene(7)
	e.SeekToScene(-1)
	assert.Equal(t, 10*time.Second, e.Elapsed())
}

func TestPlayAdvancesAndSignalsOncePerScene(t *testing.T) {
	e, clock, sched, rec := newTestEngine(tenTenTen()...)

	e.Play()
	require.Equal(t, Playing, e.State())
	require.Equal(t, 1, sched.Pending())

	sched.RunFrame()
	clock.Advance(time.Second)
	sched.RunFrame()
	clock.Advance(10 * time.Second)
	sched.RunFrame()
	sched.RunFrame()

	assert.Equal(t, []int{0, 1}, rec.scenes)
	assert.Equal(t, 1, e.CurrentSceneIndex())
	last := rec.progress[len(rec.progress)-1]
	assert.InDelta(t, 0.1, last.Progress, 1e-9)
}

func TestCompletionFiresExactlyOnce(t *testing.T) {
	e, clock, sched, rec := newTestEngine(tenTenTen()...)

	e.Play()
	sched.RunFrame()
	clock.Advance(31 * time.Second)
	sched.RunFrame()

	assert.Equal(t, 1, rec.completes)
	assert.Equal(t, Stopped, e.State())
	assert.Equal(t, 0, sched.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, 0, sched.RunFrame())
	assert.Equal(t, 1, rec.completes)
	assert.Equal(t, 30*time.Second, e.Elapsed())
}

func TestNoSignalsAfterDestroy(t *testing.T) {
	e, clock, sched, rec := newTestEngine(tenTenTen()...)

	e.Play()
	sched.RunFrame()
	require.Equal(t, []int{0}, rec.scenes)

	e.Destroy()
	assert.Equal(t, 0, sched.Pending())

	clock.Advance(15 * time.Second)
	e.Play()
	e.SeekToScene(2)
	sched.RunFrame()
	clock.Advance(30 * time.Second)
	sched.RunFrame()

	assert.Equal(t, []int{0}, rec.scenes)
	assert.Equal(t, 0, rec.completes)
}

func TestPauseCapturesOffsetAndCancelsFrame(t *testing.T) {
	e, clock, sched, _ := newTestEngine(tenTenTen()...)

	e.Play()
	clock.Advance(4 * time.Second)
	e.Pause()

	assert.Equal(t, Paused, e.State())
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, 4*time.Second, e.Elapsed())

	// 暂停期间时间流逝不影响进度
	clock.Advance(time.Minute)
	assert.Equal(t, 4*time.Second, e.Elapsed())

	e.Play()
	clock.Advance(2 * time.Second)
	assert.Equal(t, 6*time.Second, e.Elapsed())

	// 重复 Pause 为空操作
	e.Pause()
	e.Pause()
	assert.Equal(t, 6*time.Second, e.Elapsed())
}

func TestPlayIsIdempotent(t *testing.T) {
	e, _, sched, _ := newTestEngine(tenTenTen()...)
	e.Play()
	e.Play()
	assert.Equal(t, 1, sched.Pending())
}

func TestSeekWhilePlayingReanchors(t *testing.T) {
	e, clock, sched, rec := newTestEngine(tenTenTen()...)

	e.Play()
	sched.RunFrame()
	clock.Advance(3 * time.Second)
	e.SeekToScene(2)
	assert.Equal(t, 20*time.Second, e.Elapsed())

	clock.Advance(time.Second)
	sched.RunFrame()
	assert.Equal(t, 21*time.Second, e.Elapsed())
	assert.Equal(t, []int{0, 2}, rec.scenes)
}

func TestPlaybackSpeedPreservesElapsed(t *testing.T) {
	e, clock, _, _ := newTestEngine(tenTenTen()...)

	e.Play()
	clock.Advance(4 * time.Second)
	e.SetPlaybackSpeed(2)
	assert.Equal(t, 4*time.Second, e.Elapsed())

	clock.Advance(time.Second)
	assert.Equal(t, 6*time.Second, e.Elapsed())

	e.SetPlaybackSpeed(0)
	e.SetPlaybackSpeed(-1)
	assert.Equal(t, 2.0, e.PlaybackSpeed())

	e.Pause()
	e.SetPlaybackSpeed(0.5)
	e.Play()
	clock.Advance(2 * time.Second)
	assert.Equal(t, 7*time.Second, e.Elapsed())
}

func TestRestartSignalsFirstSceneAgain(t *testing.T) {
	e, clock, sched, rec := newTestEngine(tenTenTen()...)

	e.Play()
	sched.RunFrame()
	clock.Advance(12 * time.Second)
	sched.RunFrame()

	e.Restart()
	assert.Equal(t, time.Duration(0), e.Elapsed())
	sched.RunFrame()

	assert.Equal(t, []int{0, 1, 0}, rec.scenes)
	assert.Equal(t, 0, e.CurrentSceneIndex())
}

func TestPlayAfterCompletionStartsOver(t *testing.T) {
	e, clock, sched, rec := newTestEngine(tenTenTen()...)

	e.Play()
	clock.Advance(40 * time.Second)
	sched.RunFrame()
	require.Equal(t, 1, rec.completes)

	e.Play()
	sched.RunFrame()
	assert.Equal(t, Playing, e.State())
	assert.Equal(t, []int{0}, rec.scenes)
}

func TestSeekAfterCompletionSignalsSceneAgain(t *testing.T) {
	e, clock, sched, rec := newTestEngine(tenTenTen()...)

	e.Play()
	sched.RunFrame()
	clock.Advance(25 * time.Second)
	sched.RunFrame()
	clock.Advance(10 * time.Second)
	sched.RunFrame()
	require.Equal(t, 1, rec.completes)
	require.Equal(t, []int{0, 2}, rec.scenes)

	e.SeekToScene(2)
	assert.Equal(t, 20*time.Second, e.Elapsed())
	e.Play()
	sched.RunFrame()

	assert.Equal(t, []int{0, 2, 2}, rec.scenes)
	assert.Equal(t, Playing, e.State())
}

func TestSeekWithinPlaybackKeepsSignalDedup(t *testing.T) {
	e, _, sched, rec := newTestEngine(tenTenTen()...)

	e.Play()
	sched.RunFrame()
	e.SeekToScene(0)
	sched.RunFrame()

	assert.Equal(t, []int{0}, rec.scenes)
}

func TestZeroWidthScenesAreSkipped(t *testing.T) {
	e, clock, sched, rec := newTestEngine(0, 5*time.Second, 0, 0, 5*time.Second)

	pos, ok := e.Resolve(0)
	require.True(t, ok)
	assert.Equal(t, 1, pos.Index)

	pos, ok = e.Resolve(5 * time.Second)
	require.True(t, ok)
	assert.Equal(t, 4, pos.Index)
	assert.Equal(t, 0.0, pos.Progress)

	e.Play()
	sched.RunFrame()
	clock.Advance(6 * time.Second)
	sched.RunFrame()
	clock.Advance(5 * time.Second)
	sched.RunFrame()

	assert.Equal(t, []int{1, 4}, rec.scenes)
	assert.Equal(t, 1, rec.completes)
}

func TestAllZeroDurationsCompleteImmediately(t *testing.T) {
	e, _, sched, rec := newTestEngine(0, 0)

	e.Play()
	sched.RunFrame()
	assert.Empty(t, rec.scenes)
	assert.Equal(t, 1, rec.completes)
	assert.Equal(t, Stopped, e.State())
}

func TestPauseFromCallbackStopsLoop(t *testing.T) {
	e, _, sched, _ := newTestEngine(tenTenTen()...)
	e.OnSceneChange(func(int) { e.Pause() })

	e.Play()
	sched.RunFrame()
	assert.Equal(t, Paused, e.State())
	assert.Equal(t, 0, sched.Pending())
}

func TestNewForScenes(t *testing.T) {
	e := NewForScenes([]models.Scene{
		{SceneNumber: 1, Duration: "10 seconds"},
		{SceneNumber: 2, Duration: "1:00"},
	}, nil, NewManualScheduler())

	assert.Equal(t, 70*time.Second, e.Total())
	assert.Equal(t, 10*time.Second, e.SceneStart(1))
	assert.Equal(t, 2, e.SceneCount())
}

func TestLoopRunsEngineToCompletion(t *testing.T) {
	loop := NewLoop(time.Millisecond)
	defer loop.Close()

	done := make(chan struct{})
	var e *Engine
	require.True(t, loop.Call(func() {
		e = New([]time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, SystemClock{}, loop)
		e.OnComplete(func() { close(done) })
		e.Play()
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeline did not complete")
	}

	var state State
	loop.Call(func() { state = e.State() })
	assert.Equal(t, Stopped, state)
}

func TestLoopDoAfterClose(t *testing.T) {
	loop := NewLoop(time.Millisecond)
	loop.Close()
	assert.False(t, loop.Do(func() {}))
	assert.False(t, loop.Call(func() {}))
}
