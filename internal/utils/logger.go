// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 日志级别
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

// ParseLogLevel 解析 debug/info/warn/error，未知值返回 INFO
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARNING
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARNING:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// LogEntry 最近日志缓冲中的一条记录
type LogEntry struct {
	Level     string                 `json:"level"`
	Timestamp time.Time              `json:"timestamp"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// recentBuffer 固定容量的最近日志环形缓冲，父子 logger 共享
type recentBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	limit   int
}

func (b *recentBuffer) add(e LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	if len(b.entries) > b.limit {
		b.entries = b.entries[len(b.entries)-b.limit:]
	}
}

func (b *recentBuffer) last(n int) []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]LogEntry, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

func (b *recentBuffer) clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

// DefaultRecentLogs 保留的最近日志条数
const DefaultRecentLogs = 100

// Logger 结构化日志，底层为 zap
type Logger struct {
	base     *zap.Logger
	level    zap.AtomicLevel
	defaults map[string]interface{}
	recent   *recentBuffer
}

// LoggerOptions 日志初始化参数
type LoggerOptions struct {
	Level       LogLevel
	Development bool
	File        string
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
	loggerMu     sync.RWMutex
)

// GetLogger 返回全局 logger，未初始化时使用开发模式输出到 stderr
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		if globalLogger == nil {
			l, err := NewLogger(LoggerOptions{Level: INFO, Development: true})
			if err != nil {
				l = NewLoggerWithCore(zapcore.NewNopCore(), zap.NewAtomicLevelAt(zapcore.InfoLevel))
			}
			loggerMu.Lock()
			globalLogger = l
			loggerMu.Unlock()
		}
	})
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}

// InitLogger 按配置创建全局 logger
func InitLogger(opts LoggerOptions) error {
	l, err := NewLogger(opts)
	if err != nil {
		return err
	}
	loggerOnce.Do(func() {})
	loggerMu.Lock()
	old := globalLogger
	globalLogger = l
	loggerMu.Unlock()
	if old != nil {
		_ = old.Sync()
	}
	return nil
}

// NewLogger 创建 logger；生产模式输出 JSON，开发模式输出彩色控制台格式
func NewLogger(opts LoggerOptions) (*Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	level := zap.NewAtomicLevelAt(opts.Level.zapLevel())
	cfg.Level = level

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	base, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{
		base:   base,
		level:  level,
		recent: &recentBuffer{limit: DefaultRecentLogs},
	}, nil
}

// NewLoggerWithCore 使用自定义 core 创建 logger，测试中配合 zaptest/observer 使用
func NewLoggerWithCore(core zapcore.Core, level zap.AtomicLevel) *Logger {
	return &Logger{
		base:   zap.New(core, zap.AddCallerSkip(2)),
		level:  level,
		recent: &recentBuffer{limit: DefaultRecentLogs},
	}
}

// SetLogLevel 动态调整最低级别
func (l *Logger) SetLogLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// With 创建带默认字段的子 logger
func (l *Logger) With(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.defaults)+len(fields))
	for k, v := range l.defaults {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{base: l.base, level: l.level, defaults: merged, recent: l.recent}
}

// Zap 返回底层 zap logger
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// Sync 刷新缓冲
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// Recent 最近 n 条日志，n<=0 返回全部
func (l *Logger) Recent(n int) []LogEntry {
	return l.recent.last(n)
}

// ClearRecent 清空最近日志缓冲
func (l *Logger) ClearRecent() {
	l.recent.clear()
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	zl := level.zapLevel()
	if !l.level.Enabled(zl) {
		return
	}

	merged := fields
	if len(l.defaults) > 0 {
		merged = make(map[string]interface{}, len(l.defaults)+len(fields))
		for k, v := range l.defaults {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
	}

	l.recent.add(LogEntry{
		Level:     level.String(),
		Timestamp: time.Now(),
		Message:   message,
		Fields:    merged,
	})

	if ce := l.base.Check(zl, message); ce != nil {
		ce.Write(toZapFields(merged)...)
	}
}

func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DEBUG, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(INFO, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WARNING, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ERROR, message, fields)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string, fields map[string]interface{}) {
	l.log(FATAL, message, fields)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DEBUG, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WARNING, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...), nil)
}
