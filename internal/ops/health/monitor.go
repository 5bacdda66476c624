package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/stager/internal/core/domain"
	"github.com/vietddude/stager/internal/core/staging"
	"github.com/vietddude/stager/internal/infra/rpc/provider"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheTTL bounds how often a report is rebuilt.
const DefaultCacheTTL = 10 * time.Second

// ChainProber checks one network's RPC connectivity.
type ChainProber interface {
	ChainID(ctx context.Context) (uint64, error)
	ProviderHealth() map[string]provider.HealthStatus
}

// StatsSource reports staging store contents.
type StatsSource interface {
	Stats() staging.Stats
}

// Monitor aggregates health status from chains and the store.
type Monitor struct {
	chains     map[domain.ChainID]ChainProber
	store      StatsSource
	ttl        time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(chains map[domain.ChainID]ChainProber, store StatsSource) *Monitor {
	return &Monitor{
		chains: chains,
		store:  store,
		ttl:    DefaultCacheTTL,
	}
}

// CheckHealth probes every chain, at most once per cache TTL.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid spamming RPC
	if m.lastReport != nil && time.Since(m.lastCheck) < m.ttl {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Chains:       make(map[string]ChainHealth, len(m.chains)),
		CheckedAt:    time.Now(),
	}
	if m.store != nil {
		report.Store = m.store.Stats()
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for id, prober := range m.chains {
		g.Go(func() error {
			h := probe(ctx, id, prober)
			mu.Lock()
			report.Chains[id.String()] = h
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, h := range report.Chains {
		report.SystemStatus = worst(report.SystemStatus, h.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

func probe(ctx context.Context, id domain.ChainID, prober ChainProber) ChainHealth {
	h := ChainHealth{
		ChainID: uint64(id),
		Name:    id.Name(),
		Status:  StatusHealthy,
	}

	reported, err := prober.ChainID(ctx)
	h.Providers = prober.ProviderHealth()

	switch {
	case err != nil:
		h.Status = StatusCritical
		h.Error = err.Error()
	case reported != uint64(id):
		h.Status = StatusCritical
		h.ReportedChainID = reported
		h.Error = fmt.Sprintf("node reports chain %d", reported)
	default:
		h.ReportedChainID = reported
	}

	for _, p := range h.Providers {
		if !p.Available {
			h.Status = worst(h.Status, StatusDegraded)
		}
	}
	return h
}
