package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	// EnvRPCURLs is a comma separated list of RPC endpoints, one network each.
	EnvRPCURLs = "RPC_URLS"
	// EnvPort overrides server.port.
	EnvPort = "PORT"
)

// Load reads configuration from a YAML file, then applies environment
// overrides and defaults. A missing file is accepted when RPC_URLS is set.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && os.Getenv(EnvRPCURLs) != "":
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Server.Port = port
	}

	for i, url := range strings.Split(os.Getenv(EnvRPCURLs), ",") {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		cfg.Chains = append(cfg.Chains, ChainConfig{
			Providers: []ProviderConfig{{Name: fmt.Sprintf("rpc-%d", i), URL: url}},
		})
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.OpsPort == 0 {
		cfg.Server.OpsPort = 9090
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Gateway.CallTimeout == 0 {
		cfg.Gateway.CallTimeout = 10 * time.Second
	}
	if cfg.Gateway.RequestTimeout == 0 {
		cfg.Gateway.RequestTimeout = 15 * time.Second
	}

	for i := range cfg.Chains {
		for j := range cfg.Chains[i].Providers {
			if cfg.Chains[i].Providers[j].Name == "" {
				cfg.Chains[i].Providers[j].Name = fmt.Sprintf("provider-%d", j)
			}
		}
	}
}

// Validate checks the parts of the configuration that do not need the
// network. Duplicate discovered chain IDs are checked after discovery.
func (c *AppConfig) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.OpsPort < 0 || c.Server.OpsPort > 65535 {
		return fmt.Errorf("invalid ops port %d", c.Server.OpsPort)
	}
	if c.Server.OpsPort != 0 && c.Server.OpsPort == c.Server.Port {
		return fmt.Errorf("ops port %d collides with server port", c.Server.OpsPort)
	}

	seen := make(map[uint64]int)
	for i, ch := range c.Chains {
		if len(ch.Providers) == 0 {
			return fmt.Errorf("chain #%d (%s): no providers configured", i, ch.Name)
		}
		for _, p := range ch.Providers {
			if p.URL == "" {
				return fmt.Errorf("chain #%d (%s): provider %q has no url", i, ch.Name, p.Name)
			}
		}
		if ch.ChainID == 0 {
			continue
		}
		if prev, ok := seen[uint64(ch.ChainID)]; ok {
			return fmt.Errorf("chain id %d configured twice (entries #%d and #%d)", ch.ChainID, prev, i)
		}
		seen[uint64(ch.ChainID)] = i
	}
	return nil
}
