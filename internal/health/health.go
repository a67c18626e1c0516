package health

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger is anything with a cheap reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthChecker struct {
	storeA Pinger
	storeB Pinger
	redis  Pinger
}

type HealthStatus struct {
	Status string          `json:"status"`
	StoreA ComponentHealth `json:"storeA"`
	StoreB ComponentHealth `json:"storeB"`
	Redis  ComponentHealth `json:"redis"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
}

type DetailedStatus struct {
	HealthStatus
	Host HostStats `json:"host"`
}

type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	DiskPercent   float64 `json:"disk_percent"`
}

// NewHealthChecker takes the store A pool, the store B route and optionally Redis.
// A nil pinger reports "disabled".
func NewHealthChecker(storeA, storeB, redis Pinger) *HealthChecker {
	return &HealthChecker{storeA: storeA, storeB: storeB, redis: redis}
}

// CheckBasic is healthy while at least one store answers, since writes succeed
// with either.
func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	status := HealthStatus{
		StoreA: check(ctx, h.storeA),
		StoreB: check(ctx, h.storeB),
		Redis:  check(ctx, h.redis),
	}

	switch {
	case status.StoreA.Status == "healthy" && status.StoreB.Status == "healthy":
		status.Status = "healthy"
	case status.StoreA.Status == "healthy" || status.StoreB.Status == "healthy":
		status.Status = "degraded"
	default:
		status.Status = "unhealthy"
	}
	return status
}

func (h *HealthChecker) CheckDetailed(ctx context.Context) DetailedStatus {
	detailed := DetailedStatus{HealthStatus: h.CheckBasic(ctx)}

	if percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(percents) > 0 {
		detailed.Host.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		detailed.Host.MemoryPercent = vm.UsedPercent
		detailed.Host.MemoryUsedMB = vm.Used / 1024 / 1024
	}
	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		detailed.Host.DiskPercent = du.UsedPercent
	}
	return detailed
}

func check(ctx context.Context, p Pinger) ComponentHealth {
	if p == nil {
		return ComponentHealth{Status: "disabled"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{Status: "unhealthy", ResponseTime: responseTime, Error: err.Error()}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: responseTime}
}
