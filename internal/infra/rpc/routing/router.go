// Package routing handles provider selection, rotation, and failover logic.
//
// This package contains:
//   - Router: interface for provider selection and health tracking
//   - DefaultRouter: round-robin implementation with circuit breaker
//   - Retry: retry logic with exponential backoff and failover
package routing

import (
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/stager/internal/infra/rpc/provider"
)

// Router handles provider selection and health tracking.
type Router interface {
	// AddProvider registers a provider for a specific chain
	AddProvider(chainID string, p provider.Provider)

	// GetProvider returns the next available provider for a chain
	GetProvider(chainID string) (provider.Provider, error)

	// GetAllProviders returns providers for a chain in preferred call order
	GetAllProviders(chainID string) []provider.Provider

	// RecordSuccess tracks successful calls
	RecordSuccess(providerName string, latency time.Duration)

	// RecordFailure tracks failed calls
	RecordFailure(providerName string, err error)
}

const (
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
)

type providerMetrics struct {
	successCount     int
	failureCount     int
	totalLatency     time.Duration
	lastSuccessAt    time.Time
	lastFailureAt    time.Time
	consecutiveFails int
	circuitOpen      bool
}

// DefaultRouter implements round-robin provider selection with a circuit
// breaker per provider.
type DefaultRouter struct {
	mu             sync.RWMutex
	chainProviders map[string][]provider.Provider
	providerHealth map[string]*providerMetrics
	lastUsedIndex  map[string]int
}

// NewRouter creates a new router.
func NewRouter() *DefaultRouter {
	return &DefaultRouter{
		chainProviders: make(map[string][]provider.Provider),
		providerHealth: make(map[string]*providerMetrics),
		lastUsedIndex:  make(map[string]int),
	}
}

// AddProvider registers a provider for a chain.
func (r *DefaultRouter) AddProvider(chainID string, p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chainProviders[chainID] = append(r.chainProviders[chainID], p)
	r.providerHealth[p.GetName()] = &providerMetrics{
		lastSuccessAt: time.Now(),
	}
}

// GetProvider returns the next usable provider for a chain.
func (r *DefaultRouter) GetProvider(chainID string) (provider.Provider, error) {
	providers := r.GetAllProviders(chainID)
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers for chain %s", chainID)
	}
	return providers[0], nil
}

// GetAllProviders returns the chain's providers starting from the next
// round-robin position. Usable providers come first; blocked providers and
// open circuits are moved to the end so they are only tried as a last resort.
func (r *DefaultRouter) GetAllProviders(chainID string) []provider.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers := r.chainProviders[chainID]
	if len(providers) == 0 {
		return nil
	}

	start := r.lastUsedIndex[chainID] % len(providers)
	r.lastUsedIndex[chainID] = (start + 1) % len(providers)

	usable := make([]provider.Provider, 0, len(providers))
	var fallback []provider.Provider
	for i := range providers {
		p := providers[(start+i)%len(providers)]
		if r.usableLocked(p) {
			usable = append(usable, p)
		} else {
			fallback = append(fallback, p)
		}
	}
	return append(usable, fallback...)
}

func (r *DefaultRouter) usableLocked(p provider.Provider) bool {
	if m, ok := r.providerHealth[p.GetName()]; ok && m.circuitOpen {
		if time.Since(m.lastFailureAt) < circuitCooldown {
			return false
		}
	}
	return p.IsAvailable()
}

// RecordSuccess records a successful call.
func (r *DefaultRouter) RecordSuccess(providerName string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics, ok := r.providerHealth[providerName]
	if !ok {
		return
	}

	metrics.successCount++
	metrics.totalLatency += latency
	metrics.lastSuccessAt = time.Now()
	metrics.consecutiveFails = 0
	metrics.circuitOpen = false
}

// RecordFailure records a failed call.
func (r *DefaultRouter) RecordFailure(providerName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics, ok := r.providerHealth[providerName]
	if !ok {
		return
	}

	metrics.failureCount++
	metrics.lastFailureAt = time.Now()
	metrics.consecutiveFails++

	if metrics.consecutiveFails >= circuitThreshold {
		metrics.circuitOpen = true
	}
}

// CircuitOpen reports whether the named provider is currently tripped.
func (r *DefaultRouter) CircuitOpen(providerName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.providerHealth[providerName]
	return ok && m.circuitOpen && time.Since(m.lastFailureAt) < circuitCooldown
}
