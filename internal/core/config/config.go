package config

import (
	"time"

	"github.com/vietddude/stager/internal/core/domain"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Gateway GatewayConfig `yaml:"gateway"`
	Chains  []ChainConfig `yaml:"chains"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    int `yaml:"port"`     // staging API
	OpsPort int `yaml:"ops_port"` // health and metrics
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// GatewayConfig bounds chain access.
type GatewayConfig struct {
	CallTimeout    time.Duration `yaml:"call_timeout"`    // one gateway call, retries included
	RequestTimeout time.Duration `yaml:"request_timeout"` // one POST, lock wait included
}

// ChainConfig holds settings for a specific network.
type ChainConfig struct {
	ChainID   domain.ChainID   `yaml:"id"` // 0 = discover via eth_chainId
	Name      string           `yaml:"name"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}
