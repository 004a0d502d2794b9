// internal/api/middleware.go
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Krosebrook/lovable-prompt-artist/internal/config"
	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/ratelimit"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

// RateLimiter 按端点限流的中间件工厂
type RateLimiter struct {
	limiter  *ratelimit.Limiter
	limits   func() map[string]ratelimit.Limit
	metrics  *utils.APIMetrics
	response *ResponseHelper
}

// NewRateLimiter limits 每次请求时调用，返回当前生效的配额
func NewRateLimiter(limiter *ratelimit.Limiter, limits func() map[string]ratelimit.Limit, metrics *utils.APIMetrics) *RateLimiter {
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	}
	if limits == nil {
		limits = ConfiguredLimits
	}
	if metrics == nil {
		metrics = utils.NewAPIMetrics()
	}
	return &RateLimiter{
		limiter:  limiter,
		limits:   limits,
		metrics:  metrics,
		response: NewResponseHelper(metrics),
	}
}

// ConfiguredLimits 默认配额叠加 config.json 中的覆盖项
func ConfiguredLimits() map[string]ratelimit.Limit {
	limits := ratelimit.DefaultLimits()
	for endpoint, override := range config.GetCurrentConfig().RateLimits {
		if override.MaxRequests <= 0 || override.WindowSeconds <= 0 {
			continue
		}
		limits[endpoint] = ratelimit.Limit{
			MaxRequests: override.MaxRequests,
			Window:      time.Duration(override.WindowSeconds) * time.Second,
		}
	}
	return limits
}

// Limit 按用户限流，未登录时退回客户端 IP
func (rl *RateLimiter) Limit(endpoint string) gin.HandlerFunc {
	return rl.middleware(endpoint, callerKey)
}

// LimitByIP 按客户端 IP 限流，用于登录注册
func (rl *RateLimiter) LimitByIP(endpoint string) gin.HandlerFunc {
	return rl.middleware(endpoint, func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	})
}

// Charge 按成本扣减调用方额度，拒绝时已写出 429，返回 false
func (rl *RateLimiter) Charge(c *gin.Context, endpoint string, cost int) bool {
	return rl.charge(c, endpoint, callerKey(c), cost)
}

func callerKey(c *gin.Context) string {
	if userID, ok := GetUserFromContext(c); ok {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) middleware(endpoint string, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.charge(c, endpoint, keyFunc(c), 1) {
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) charge(c *gin.Context, endpoint, identifier string, cost int) bool {
	limit, ok := rl.limits()[endpoint]
	if !ok {
		return true
	}

	result := rl.limiter.CheckN(ratelimit.Config{
		MaxRequests: limit.MaxRequests,
		Window:      limit.Window,
		Identifier:  identifier,
		Endpoint:    endpoint,
	}, cost)
	for k, v := range ratelimit.Headers(result) {
		c.Header(k, v)
	}
	if !result.Allowed {
		rl.metrics.RecordRateLimited(endpoint)
		rl.response.Error(c, apperrors.NewRateLimitedError(
			"Rate limit exceeded. Try again in "+strconv.Itoa(result.RetryAfter)+" seconds"))
		return false
	}
	return true
}

// RequestLogger 记录请求耗时与状态码
func RequestLogger(metrics *utils.APIMetrics) gin.HandlerFunc {
	if metrics == nil {
		metrics = utils.NewAPIMetrics()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordAPIRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// CORSOptions 跨域配置
type CORSOptions struct {
	AllowedOrigins []string
	// AllowAll 非生产环境允许任意来源
	AllowAll bool
}

// originAllowed 精确匹配配置的来源，或任意 https://*.lovable.app
func (o CORSOptions) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if o.AllowAll {
		return true
	}
	for _, allowed := range o.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, ".lovable.app")
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware(opts CORSOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if opts.originAllowed(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept, Origin, X-Requested-With")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Expose-Headers", "X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After, Content-Disposition")
			h.Set("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
