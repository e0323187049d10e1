package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/mezonai/starledger/logx"
	"github.com/mezonai/starledger/ratelimit"
	"github.com/mezonai/starledger/store"
)

// Default returns a configuration with every field set to its default.
func Default() *LedgerConfig {
	cfg := &LedgerConfig{Node: NodeConfig{MetricsEnabled: true}}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig reads and parses node.yml, then applies defaults and validates it
func LoadConfig(path string) (*LedgerConfig, error) {
	logx.Info("CONFIG", "LoadConfig called with path: ", path)
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfgFile := ConfigFile{Config: LedgerConfig{Node: NodeConfig{MetricsEnabled: true}}}
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	cfg := &cfgFile.Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded config: listen=%s rpc=%s store=%s:%s window=%ds",
		cfg.Node.ListenAddr, cfg.Node.RPCAddr, cfg.Store.Type, cfg.Store.Directory, cfg.Validation.WindowSeconds))
	return cfg, nil
}

// LoadValidationOverrides applies the [validation] and [ratelimit] sections of
// an .ini file on top of cfg. Keys that are absent keep their current value.
func LoadValidationOverrides(cfg *LedgerConfig, path string) error {
	file, err := ini.Load(path)
	if err != nil {
		return err
	}
	if err := file.Section("validation").MapTo(&cfg.Validation); err != nil {
		return err
	}
	if err := file.Section("ratelimit").MapTo(&cfg.RateLimit); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c *LedgerConfig) ApplyDefaults() {
	if c.Node.ListenAddr == "" {
		c.Node.ListenAddr = DefaultListenAddr
	}
	if c.Node.RPCAddr == "" {
		c.Node.RPCAddr = DefaultRPCAddr
	}
	if c.Node.Version == "" {
		c.Node.Version = DefaultVersion
	}
	if c.Store.Type == "" {
		c.Store.Type = DefaultStoreType
	}
	if c.Store.Directory == "" && c.Store.Type != string(store.MemoryStoreType) && c.Store.Type != string(store.RedisStoreType) {
		c.Store.Directory = DefaultStoreDirectory
	}
	if c.Validation.WindowSeconds == 0 {
		c.Validation.WindowSeconds = DefaultValidationWindow
	}
	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = DefaultRateMaxRequests
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = DefaultRateWindow
	}
	if c.RateLimit.WalletMaxRequests == 0 {
		c.RateLimit.WalletMaxRequests = DefaultWalletRequests
	}
}

func (c *LedgerConfig) Validate() error {
	if err := c.StoreConfig().Validate(); err != nil {
		return err
	}
	if c.Validation.WindowSeconds < 1 {
		return fmt.Errorf("validation.window_seconds must be positive, got %d", c.Validation.WindowSeconds)
	}
	if c.RateLimit.MaxRequests < 1 || c.RateLimit.WindowSeconds < 1 || c.RateLimit.WalletMaxRequests < 1 {
		return fmt.Errorf("ratelimit values must be positive")
	}
	return nil
}

func (c *LedgerConfig) StoreConfig() *store.StoreConfig {
	return &store.StoreConfig{
		Type:      store.StoreType(strings.ToLower(c.Store.Type)),
		Directory: c.Store.Directory,
		Address:   c.Store.Address,
	}
}

func (c *LedgerConfig) ValidationWindow() time.Duration {
	return time.Duration(c.Validation.WindowSeconds) * time.Second
}

// RateLimiterConfigs returns the per IP and per wallet limiter settings
func (c *LedgerConfig) RateLimiterConfigs() (ip, wallet *ratelimit.RateLimiterConfig) {
	window := time.Duration(c.RateLimit.WindowSeconds) * time.Second
	ip = &ratelimit.RateLimiterConfig{
		MaxRequests:     c.RateLimit.MaxRequests,
		WindowSize:      window,
		CleanupInterval: 5 * time.Minute,
	}
	wallet = &ratelimit.RateLimiterConfig{
		MaxRequests:     c.RateLimit.WalletMaxRequests,
		WindowSize:      window,
		CleanupInterval: 5 * time.Minute,
	}
	return ip, wallet
}

// LoadKeyFile reads a signing key stored as text, as written by `starledger sign --new`
func LoadKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("key file %s is empty", path)
	}
	return key, nil
}
