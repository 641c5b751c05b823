package health

import (
	"context"
	"sync"
	"time"
)

// Status 组件健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"  // 受损但仍可服务（如设备离线时编解码 API 照常）
	StatusUnhealthy Status = "unhealthy" // 无法服务
)

// CheckResult 单项检查结果
type CheckResult struct {
	Status  Status                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Latency time.Duration          `json:"latency"`
}

// Checker 健康检查器，按启用的子系统注册（数据库、Redis、设备）
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Report 整体健康报告
type Report struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Aggregator 并发执行全部检查器并汇总结果
type Aggregator struct {
	mu       sync.RWMutex
	checkers []Checker
}

func NewAggregator(checkers ...Checker) *Aggregator {
	return &Aggregator{checkers: checkers}
}

// AddChecker 注册检查器
func (a *Aggregator) AddChecker(c Checker) {
	a.mu.Lock()
	a.checkers = append(a.checkers, c)
	a.mu.Unlock()
}

// CheckAll 并发执行所有检查器，按名称返回结果
func (a *Aggregator) CheckAll(ctx context.Context) map[string]CheckResult {
	a.mu.RLock()
	checkers := make([]Checker, len(a.checkers))
	copy(checkers, a.checkers)
	a.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	var resMu sync.Mutex
	var wg sync.WaitGroup
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			r := c.Check(ctx)
			resMu.Lock()
			results[c.Name()] = r
			resMu.Unlock()
		}(c)
	}
	wg.Wait()
	return results
}

// Report 汇总整体状态：任一 Unhealthy 即 Unhealthy，否则任一 Degraded 即 Degraded
func (a *Aggregator) Report(ctx context.Context) *Report {
	checks := a.CheckAll(ctx)
	status := StatusHealthy
	for _, r := range checks {
		switch r.Status {
		case StatusUnhealthy:
			status = StatusUnhealthy
		case StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}
	return &Report{Status: status, Timestamp: time.Now(), Checks: checks}
}

// Ready 就绪判定：Degraded 仍就绪，仅 Unhealthy 不就绪
func (a *Aggregator) Ready(ctx context.Context) bool {
	for _, r := range a.CheckAll(ctx) {
		if r.Status == StatusUnhealthy {
			return false
		}
	}
	return true
}
