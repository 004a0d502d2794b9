// internal/services/health_service.go
package services

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

// MemoryStats 主机与进程内存
type MemoryStats struct {
	HostTotal       uint64  `json:"host_total"`
	HostUsed        uint64  `json:"host_used"`
	HostUsedPercent float64 `json:"host_used_percent"`
	HeapAlloc       uint64  `json:"heap_alloc"`
	Sys             uint64  `json:"sys"`
}

// HealthReport /health 响应
type HealthReport struct {
	Status        string                 `json:"status"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Goroutines    int                    `json:"goroutines"`
	Storage       string                 `json:"storage"`
	AIReady       bool                   `json:"ai_ready"`
	Memory        MemoryStats            `json:"memory"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
	Logs          []utils.LogEntry       `json:"logs,omitempty"`
}

// HealthService 运行状态
type HealthService struct {
	startedAt time.Time
	storage   string
	ai        *AIService
	metrics   *utils.MetricsCollector
	logger    *utils.Logger
}

func NewHealthService(storageDriver string, ai *AIService, metrics *utils.MetricsCollector) *HealthService {
	if metrics == nil {
		metrics = utils.GetMetricsCollector()
	}
	return &HealthService{
		startedAt: time.Now(),
		storage:   storageDriver,
		ai:        ai,
		metrics:   metrics,
		logger:    utils.GetLogger(),
	}
}

// Check 汇总运行状态；AI 未配置时为 degraded，服务仍可用
// recentLogs > 0 时附带最近的日志
func (s *HealthService) Check(ctx context.Context, recentLogs int) *HealthReport {
	report := &HealthReport{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		Storage:       s.storage,
		Metrics:       s.metrics.GetMetrics(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	report.Memory.HeapAlloc = ms.HeapAlloc
	report.Memory.Sys = ms.Sys

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		report.Memory.HostTotal = vm.Total
		report.Memory.HostUsed = vm.Used
		report.Memory.HostUsedPercent = vm.UsedPercent
	} else {
		s.logger.Debug("读取主机内存失败", map[string]interface{}{"err": err})
	}

	if s.ai != nil {
		report.AIReady = s.ai.IsReady()
		if !report.AIReady {
			report.Status = "degraded"
		}
	}
	if recentLogs > 0 {
		report.Logs = s.logger.Recent(recentLogs)
	}
	return report
}
