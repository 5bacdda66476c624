// Package health provides system health monitoring and status reporting.
package health

import (
	"time"

	"github.com/vietddude/stager/internal/core/staging"
	"github.com/vietddude/stager/internal/infra/rpc/provider"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ChainHealth contains health details for one registered network.
type ChainHealth struct {
	ChainID         uint64                           `json:"chain_id"`
	Name            string                           `json:"name"`
	Status          SystemStatus                     `json:"status"`
	ReportedChainID uint64                           `json:"reported_chain_id,omitempty"`
	Error           string                           `json:"error,omitempty"`
	Providers       map[string]provider.HealthStatus `json:"providers"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus           `json:"system_status"`
	Chains       map[string]ChainHealth `json:"chains"`
	Store        staging.Stats          `json:"store"`
	CheckedAt    time.Time              `json:"checked_at"`
}

// worst returns the more severe of two statuses.
func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
