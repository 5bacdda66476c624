// Package control wires configuration into a running staging coordinator.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/stager/internal/api"
	"github.com/vietddude/stager/internal/core/config"
	"github.com/vietddude/stager/internal/core/domain"
	"github.com/vietddude/stager/internal/core/staging"
	"github.com/vietddude/stager/internal/infra/chain"
	"github.com/vietddude/stager/internal/infra/chain/safe"
	"github.com/vietddude/stager/internal/infra/rpc"
	"github.com/vietddude/stager/internal/ops/health"
	"golang.org/x/sync/errgroup"
)

// Coordinator is the main application struct that manages the server lifecycle.
type Coordinator struct {
	cfg       Config
	registry  *chain.Registry
	store     *staging.Store
	apiServer *api.Server
	opsServer *health.Server
	errs      chan error
	log       *slog.Logger
}

// Config holds the application configuration.
type Config struct {
	Port           int
	OpsPort        int // 0 disables the ops server
	Chains         []config.ChainConfig
	CallTimeout    time.Duration
	RequestTimeout time.Duration
}

// ConfigFrom converts the loaded file configuration.
func ConfigFrom(cfg *config.AppConfig) Config {
	return Config{
		Port:           cfg.Server.Port,
		OpsPort:        cfg.Server.OpsPort,
		Chains:         cfg.Chains,
		CallTimeout:    cfg.Gateway.CallTimeout,
		RequestTimeout: cfg.Gateway.RequestTimeout,
	}
}

type resolvedChain struct {
	id        domain.ChainID
	name      string
	providers []*rpc.HTTPProvider
}

// NewCoordinator resolves every configured chain and builds the servers.
// Chains without an id are discovered via eth_chainId; ctx bounds discovery.
func NewCoordinator(ctx context.Context, cfg Config) (*Coordinator, error) {
	log := slog.Default().With("component", "control")

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}

	// 1. Build providers and resolve chain IDs concurrently
	resolved := make([]resolvedChain, len(cfg.Chains))
	g, gctx := errgroup.WithContext(ctx)
	for i, chainCfg := range cfg.Chains {
		providers := make([]*rpc.HTTPProvider, 0, len(chainCfg.Providers))
		for _, p := range chainCfg.Providers {
			providers = append(providers, rpc.NewHTTPProvider(p.Name, p.URL, cfg.CallTimeout))
		}
		resolved[i] = resolvedChain{id: chainCfg.ChainID, name: chainCfg.Name, providers: providers}

		g.Go(func() error {
			id, err := resolveChainID(gctx, chainCfg.ChainID, providers, log)
			if err != nil {
				return fmt.Errorf("chain #%d (%s): %w", i, chainCfg.Name, err)
			}
			resolved[i].id = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 2. Build clients and gateways
	gateways := make(map[domain.ChainID]chain.Gateway, len(resolved))
	clients := make(map[domain.ChainID]*rpc.Client, len(resolved))
	for _, rc := range resolved {
		if _, dup := gateways[rc.id]; dup {
			return nil, fmt.Errorf("chain id %d is configured more than once", rc.id)
		}

		router := rpc.NewRouter()
		for _, p := range rc.providers {
			router.AddProvider(rc.id.String(), p)
		}
		client := rpc.NewClient(rc.id.String(), router)
		clients[rc.id] = client
		gateways[rc.id] = chain.WithTimeout(safe.NewGateway(rc.id, client), cfg.CallTimeout)

		if rc.name != "" {
			log.Info("Mapping ChainID to Name", "chainID", rc.id, "name", rc.name)
		}
	}
	registry := chain.NewRegistry(gateways)

	// 3. Store and API
	store := staging.NewStore(slog.Default())
	handler := api.NewHandler(store, registry, cfg.RequestTimeout, slog.Default())
	apiServer := api.NewServer(handler, cfg.Port, slog.Default())

	// 4. Health and metrics
	probers := make(map[domain.ChainID]health.ChainProber, len(clients))
	for id, c := range clients {
		probers[id] = c
	}
	healthMon := health.NewMonitor(probers, store)
	var opsServer *health.Server
	if cfg.OpsPort > 0 {
		opsServer = health.NewServer(healthMon, cfg.OpsPort)
	}

	networks := registry.Networks()
	names := make([]string, len(networks))
	for i, id := range networks {
		names[i] = id.String()
	}
	log.Info("Registered networks", "networks", strings.Join(names, " "))

	return &Coordinator{
		cfg:       cfg,
		registry:  registry,
		store:     store,
		apiServer: apiServer,
		opsServer: opsServer,
		errs:      make(chan error, 2),
		log:       log,
	}, nil
}

// resolveChainID asks the providers for their chain id. A configured id
// wins when every provider is unreachable; a disagreeing provider is an error.
func resolveChainID(ctx context.Context, configured domain.ChainID, providers []*rpc.HTTPProvider, log *slog.Logger) (domain.ChainID, error) {
	var errs []error
	for _, p := range providers {
		result, err := p.Call(ctx, "eth_chainId", nil)
		if err == nil {
			var reported uint64
			reported, err = rpc.ParseQuantity(result)
			if err == nil {
				id := domain.ChainID(reported)
				if configured != 0 && id != configured {
					return 0, fmt.Errorf("provider %s reports chain %d, configured %d", p.GetName(), id, configured)
				}
				return id, nil
			}
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.GetName(), err))
	}

	if configured != 0 {
		log.Warn("Could not confirm chain id, using configured value",
			"chainID", configured,
			"error", errors.Join(errs...),
		)
		return configured, nil
	}
	return 0, fmt.Errorf("discover chain id: %w", errors.Join(errs...))
}

// Registry returns the gateway registry.
func (c *Coordinator) Registry() *chain.Registry {
	return c.registry
}

// Store returns the staging store.
func (c *Coordinator) Store() *staging.Store {
	return c.store
}

// Errors reports servers that stopped unexpectedly.
func (c *Coordinator) Errors() <-chan error {
	return c.errs
}

// Start starts the API and ops servers. It does not block.
func (c *Coordinator) Start(_ context.Context) error {
	go func() {
		if err := c.apiServer.Start(); err != nil {
			c.log.Error("API server failed", "error", err)
			c.errs <- fmt.Errorf("api server: %w", err)
		}
	}()

	if c.opsServer != nil {
		go func() {
			if err := c.opsServer.Start(); err != nil {
				c.log.Error("Ops server failed", "error", err)
				c.errs <- fmt.Errorf("ops server: %w", err)
			}
		}()
	}

	c.log.Info("Coordinator started", "port", c.cfg.Port, "ops_port", c.cfg.OpsPort)
	return nil
}

// Stop gracefully shuts both servers down.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.log.Info("Stopping coordinator...")

	var errs []error
	if err := c.apiServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api server: %w", err))
	}
	if c.opsServer != nil {
		if err := c.opsServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ops server: %w", err))
		}
	}
	return errors.Join(errs...)
}
