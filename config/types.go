package config

// NodeConfig holds the listen addresses of the node
type NodeConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	RPCAddr        string `yaml:"rpc_addr"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	Version        string `yaml:"version"`
}

// StoreSection selects the block store backend
type StoreSection struct {
	Type      string `yaml:"type"`
	Directory string `yaml:"directory"`
	Address   string `yaml:"address"`
}

// ValidationConfig drives the wallet validation window
type ValidationConfig struct {
	WindowSeconds int `yaml:"window_seconds" ini:"window_seconds"`
}

// RateLimitConfig limits the validation endpoints
type RateLimitConfig struct {
	MaxRequests       int `yaml:"max_requests" ini:"max_requests"`
	WindowSeconds     int `yaml:"window_seconds" ini:"window_seconds"`
	WalletMaxRequests int `yaml:"wallet_max_requests" ini:"wallet_max_requests"`
}

// LedgerConfig holds the configuration from node.yml
type LedgerConfig struct {
	Node       NodeConfig       `yaml:"node"`
	Store      StoreSection     `yaml:"store"`
	Validation ValidationConfig `yaml:"validation"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
}

// ConfigFile is the top-level structure for node.yml
type ConfigFile struct {
	Config LedgerConfig `yaml:"config"`
}
