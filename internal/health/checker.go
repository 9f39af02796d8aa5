package health

import (
	"context"
	"fmt"
	"time"
)

// Status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the overall system health
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Message   string                   `json:"message"`
	Services  map[string]ServiceHealth `json:"services"`
	Uptime    string                   `json:"uptime"`
}

// ServiceHealth represents health of a service
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Latency string `json:"latency_ms"`
}

// Probe checks one dependency. A failing critical probe makes the service unhealthy,
// any other failing probe only degrades it.
type Probe struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// HealthChecker performs health checks on system components
type HealthChecker struct {
	probes    []Probe
	timeout   time.Duration
	startTime time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(probes ...Probe) *HealthChecker {
	return &HealthChecker{
		probes:    probes,
		timeout:   2 * time.Second,
		startTime: time.Now(),
	}
}

// Check performs a complete health check
func (hc *HealthChecker) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Services:  make(map[string]ServiceHealth),
		Uptime:    hc.calculateUptime(),
	}

	var failing []string
	for _, probe := range hc.probes {
		result := hc.run(ctx, probe)
		status.Services[probe.Name] = result
		if result.Status == StatusHealthy {
			continue
		}
		failing = append(failing, probe.Name)
		if probe.Critical {
			status.Status = StatusUnhealthy
		} else if status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	if len(failing) == 0 {
		status.Message = fmt.Sprintf("System operating normally with %d dependencies", len(hc.probes))
	} else {
		status.Message = fmt.Sprintf("Connectivity issue: %v", failing)
	}
	return status
}

func (hc *HealthChecker) run(ctx context.Context, probe Probe) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	err := probe.Check(ctx)
	latency := time.Since(start)

	if err != nil {
		return ServiceHealth{
			Status:  StatusUnhealthy,
			Message: probe.Name + " check failed: " + err.Error(),
			Latency: fmt.Sprintf("%d", latency.Milliseconds()),
		}
	}
	return ServiceHealth{
		Status:  StatusHealthy,
		Message: probe.Name + " reachable",
		Latency: fmt.Sprintf("%d", latency.Milliseconds()),
	}
}

// calculateUptime calculates system uptime as human-readable string
func (hc *HealthChecker) calculateUptime() string {
	elapsed := time.Since(hc.startTime)

	days := int(elapsed.Hours()) / 24
	hours := int(elapsed.Hours()) % 24
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	} else if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
