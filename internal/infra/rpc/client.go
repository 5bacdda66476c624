package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vietddude/stager/internal/infra/rpc/provider"
	"github.com/vietddude/stager/internal/infra/rpc/routing"
	"github.com/vietddude/stager/internal/ops/metrics"
)

// RPCClient is what chain gateways depend on.
type RPCClient interface {
	Call(ctx context.Context, method string, params []any) (any, error)
}

// Client is the chain-scoped RPC client application layers should use.
type Client struct {
	router  routing.Router
	chainID string
	retry   routing.RetryConfig
}

// NewClient creates a client for the providers registered under chainID.
func NewClient(chainID string, router routing.Router) *Client {
	return &Client{
		chainID: chainID,
		router:  router,
		retry:   routing.DefaultRetryConfig,
	}
}

// WithRetry returns a copy of the client using cfg for retries.
func (c *Client) WithRetry(cfg routing.RetryConfig) *Client {
	cp := *c
	cp.retry = cfg
	return &cp
}

// Call makes an RPC call with automatic failover and retry.
func (c *Client) Call(ctx context.Context, method string, params []any) (any, error) {
	start := time.Now()
	result, name, err := routing.CallWithRetryAndFailover(ctx, c.router, c.chainID, method, params, c.retry)

	if name != "" {
		metrics.RPCCallsTotal.WithLabelValues(c.chainID, name, method).Inc()
		metrics.RPCLatency.WithLabelValues(c.chainID, name, method).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(c.chainID, name, errorType(err)).Inc()
		return nil, err
	}
	return result, nil
}

// ChainID asks the node for its chain id.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "eth_chainId", nil)
	if err != nil {
		return 0, fmt.Errorf("eth_chainId failed: %w", err)
	}
	return ParseQuantity(result)
}

// ProviderHealth returns the health of every provider for the chain.
func (c *Client) ProviderHealth() map[string]provider.HealthStatus {
	out := make(map[string]provider.HealthStatus)
	for _, p := range c.router.GetAllProviders(c.chainID) {
		out[p.GetName()] = p.GetHealth()
	}
	return out
}

// ParseQuantity decodes a hex QUANTITY result such as "0x89".
func ParseQuantity(result any) (uint64, error) {
	s, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("invalid quantity response: %T", result)
	}
	v, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return v, nil
}

func errorType(err error) string {
	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.ExecutionReverted() {
			return "reverted"
		}
		return "rpc"
	}
	return routing.ClassifyError(err).String()
}
