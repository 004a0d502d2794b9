package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	atom := zap.NewAtomicLevelAt(level)
	core, logs := observer.New(atom)
	return NewLoggerWithCore(core, atom), logs
}

func TestLoggerRespectsLevel(t *testing.T) {
	l, logs := newObservedLogger(zapcore.InfoLevel)

	l.Debug("hidden", nil)
	l.Info("shown", map[string]interface{}{"scene": 2})
	l.Errorf("failed %d times", 3)

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "shown", entries[0].Message)
	assert.Equal(t, int64(2), entries[0].ContextMap()["scene"])
	assert.Equal(t, "failed 3 times", entries[1].Message)

	l.SetLogLevel(DEBUG)
	l.Debug("now visible", nil)
	assert.Equal(t, 3, logs.Len())
}

func TestChildLoggerMergesContext(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)
	child := l.With(map[string]interface{}{"project_id": "p1", "component": "report"})

	child.Warn("image skipped", map[string]interface{}{"component": "images", "err": errors.New("timeout")})

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "p1", ctx["project_id"])
	assert.Equal(t, "images", ctx["component"])
	assert.Equal(t, "timeout", ctx["err"])
}

func TestRecentBufferIsBounded(t *testing.T) {
	l, _ := newObservedLogger(zapcore.DebugLevel)
	child := l.With(map[string]interface{}{"k": "v"})

	for i := 0; i < DefaultRecentLogs+20; i++ {
		l.Infof("entry %d", i)
	}
	child.Info("from child", nil)

	all := l.Recent(0)
	assert.Len(t, all, DefaultRecentLogs)
	last := l.Recent(2)
	require.Len(t, last, 2)
	assert.Equal(t, "from child", last[1].Message)
	assert.Equal(t, "INFO", last[1].Level)

	l.ClearRecent()
	assert.Empty(t, child.Recent(5))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("debug"))
	assert.Equal(t, WARNING, ParseLogLevel("WARN"))
	assert.Equal(t, ERROR, ParseLogLevel(" error "))
	assert.Equal(t, INFO, ParseLogLevel("verbose"))
}
