// Package rpc provides a resilient JSON-RPC client for EVM networks.
//
// This package offers:
//   - Multiple provider support per chain (Alchemy, Infura, self-hosted, etc.)
//   - Automatic failover and round-robin rotation
//   - Retry with exponential backoff for transient errors
//   - Health monitoring and Prometheus metrics
//
// # Quick Start
//
//	router := rpc.NewRouter()
//	router.AddProvider("1", rpc.NewHTTPProvider("alchemy", alchemyURL, 10*time.Second))
//	router.AddProvider("1", rpc.NewHTTPProvider("infura", infuraURL, 10*time.Second))
//
//	client := rpc.NewClient("1", router)
//	result, err := client.Call(ctx, "eth_blockNumber", nil)
//
// # Package Structure
//
//   - provider/ - Provider implementations (HTTPProvider, monitoring)
//   - routing/  - Provider selection, circuit breaking, retry logic
//
// Most types are re-exported at the root level for convenience.
package rpc

import (
	"time"

	"github.com/vietddude/stager/internal/infra/rpc/provider"
	"github.com/vietddude/stager/internal/infra/rpc/routing"
)

// Provider is the core interface for RPC endpoints.
type Provider = provider.Provider

// RPCProvider is the interface for providers that support JSON-RPC calls.
type RPCProvider = provider.RPCProvider

// HTTPProvider implements Provider for JSON-RPC over HTTP.
type HTTPProvider = provider.HTTPProvider

// HealthStatus represents the health state of a provider.
type HealthStatus = provider.HealthStatus

// RPCError is a JSON-RPC error object returned by a node.
type RPCError = provider.RPCError

// Router handles provider selection and health tracking.
type Router = routing.Router

// DefaultRouter implements round-robin selection with circuit breaker.
type DefaultRouter = routing.DefaultRouter

// RetryConfig defines retry behavior.
type RetryConfig = routing.RetryConfig

// DefaultRetryConfig provides sensible retry defaults.
var DefaultRetryConfig = routing.DefaultRetryConfig

// NewHTTPProvider creates a new HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return provider.NewHTTPProvider(name, endpoint, timeout)
}

// NewRouter creates a new router.
func NewRouter() *DefaultRouter {
	return routing.NewRouter()
}
