// internal/ratelimit/limiter.go
package ratelimit

import (
	"math"
	"strconv"
	"sync"
	"time"
)

// DefaultHighWater 超过该条目数时顺带清理过期条目
const DefaultHighWater = 10000

// 各端点名称
const (
	EndpointGenerateScript     = "generateScript"
	EndpointGenerateStoryboard = "generateStoryboard"
	EndpointGenerateShareLink  = "generateShareLink"
	EndpointExportVideo        = "exportVideo"
	EndpointExportReport       = "exportReport"
	EndpointAuth               = "auth"
)

// Limit 单个端点的配额
type Limit struct {
	MaxRequests int           `json:"max_requests" yaml:"max_requests"`
	Window      time.Duration `json:"window" yaml:"window"`
}

// DefaultLimits 默认配额
func DefaultLimits() map[string]Limit {
	return map[string]Limit{
		EndpointGenerateScript:     {MaxRequests: 10, Window: time.Minute},
		EndpointGenerateStoryboard: {MaxRequests: 30, Window: time.Minute},
		EndpointGenerateShareLink:  {MaxRequests: 20, Window: time.Minute},
		EndpointExportVideo:        {MaxRequests: 5, Window: time.Minute},
		EndpointExportReport:       {MaxRequests: 10, Window: time.Minute},
		EndpointAuth:               {MaxRequests: 20, Window: time.Minute},
	}
}

// Config 一次检查的参数
type Config struct {
	MaxRequests int
	Window      time.Duration
	Identifier  string
	Endpoint    string
}

// Result 检查结果，RetryAfter 仅在拒绝时大于 0
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter int
}

// Clock 时间源
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Limiter 固定窗口限流器
// 单进程、非持久化：重启后计数清零，多实例之间不共享
type Limiter struct {
	mu        sync.Mutex
	store     Store
	clock     Clock
	highWater int
}

// Option 限流器选项
type Option func(*Limiter)

// WithClock 注入时钟
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithHighWater 设置清理阈值
func WithHighWater(n int) Option {
	return func(l *Limiter) { l.highWater = n }
}

// NewLimiter 创建限流器，store 为 nil 时使用内存存储
func NewLimiter(store Store, opts ...Option) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	l := &Limiter{store: store, clock: systemClock{}, highWater: DefaultHighWater}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key 计数键
func Key(identifier, endpoint string) string {
	return identifier + ":" + endpoint
}

// Check 检查并计数一次请求
func (l *Limiter) Check(cfg Config) Result {
	return l.CheckN(cfg, 1)
}

// CheckN 按成本计数，count+n 超过上限时整体拒绝且不计数
func (l *Limiter) CheckN(cfg Config, n int) Result {
	if n < 1 {
		n = 1
	}

	// HTTP 请求是并发处理的，读-改-写必须串行
	l.mu.Lock()
	defer l.mu.Unlock()

	key := Key(cfg.Identifier, cfg.Endpoint)
	now := l.clock.Now()

	if l.store.Len() > l.highWater {
		l.store.DeleteExpired(now)
	}

	entry, ok := l.store.Get(key)
	if !ok || entry.Expired(now) {
		entry = Entry{ResetTime: now.Add(cfg.Window)}
	}

	if entry.Count+n > cfg.MaxRequests {
		retry := int(math.Ceil(entry.ResetTime.Sub(now).Seconds()))
		if retry < 1 {
			retry = 1
		}
		return Result{
			Allowed:    false,
			Limit:      cfg.MaxRequests,
			Remaining:  maxInt(cfg.MaxRequests-entry.Count, 0),
			ResetTime:  entry.ResetTime,
			RetryAfter: retry,
		}
	}

	entry.Count += n
	l.store.Set(key, entry)
	return Result{
		Allowed:   true,
		Limit:     cfg.MaxRequests,
		Remaining: cfg.MaxRequests - entry.Count,
		ResetTime: entry.ResetTime,
	}
}

// Headers 限流响应头，X-RateLimit-Reset 为 Unix 秒
func Headers(r Result) map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(r.ResetTime.Unix(), 10),
	}
	if !r.Allowed {
		h["Retry-After"] = strconv.Itoa(r.RetryAfter)
	}
	return h
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
