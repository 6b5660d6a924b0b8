package config

import (
	"fmt"
	"time"
)

// Config is the router's complete configuration.
type Config struct {
	Listen     string        `yaml:"listen"`      // client-facing ASCII listener, e.g. ":11211"
	Admin      string        `yaml:"admin"`       // admin HTTP server, e.g. ":9090"
	NumProxies int           `yaml:"num_proxies"` // worker shard count
	Route      RouteConfig   `yaml:"route"`
	Stats      StatsConfig   `yaml:"stats"`
	Logging    LoggingConfig `yaml:"logging"`
}

// RouteConfig holds the routing options consumed at this layer. The
// selection algorithm itself lives behind the dispatcher.
type RouteConfig struct {
	Destinations    []string `yaml:"destinations"`      // "host:port" backends
	EnableFlushCmd  bool     `yaml:"enable_flush_cmd"`  // allow flush_all
	TkoFailureLimit uint32   `yaml:"tko_failure_limit"` // soft knockout threshold
}

// StatsConfig sizes the moving-average window.
type StatsConfig struct {
	NumBins     int           `yaml:"num_bins"`
	BinDuration time.Duration `yaml:"bin_duration"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	return &Config{
		Listen:     ":11211",
		Admin:      ":9090",
		NumProxies: 4,
		Route: RouteConfig{
			TkoFailureLimit: 3,
		},
		Stats: StatsConfig{
			NumBins:     60,
			BinDuration: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.NumProxies < 1 {
		return fmt.Errorf("num_proxies must be at least 1, got %d", c.NumProxies)
	}
	if c.Stats.NumBins < 1 {
		return fmt.Errorf("stats.num_bins must be at least 1, got %d", c.Stats.NumBins)
	}
	if c.Stats.BinDuration <= 0 {
		return fmt.Errorf("stats.bin_duration must be positive, got %s", c.Stats.BinDuration)
	}
	if len(c.Route.Destinations) == 0 {
		return fmt.Errorf("route.destinations must name at least one backend")
	}
	return nil
}

// Snapshot is an immutable view of a successfully loaded configuration.
// Request contexts capture the current snapshot at creation and hold it
// until destroyed, so a reload never mutates what an in-flight request
// sees.
type Snapshot struct {
	cfg      *Config
	loadedAt time.Time
}

// NewSnapshot wraps a validated config.
func NewSnapshot(cfg *Config) *Snapshot {
	return &Snapshot{cfg: cfg, loadedAt: time.Now()}
}

// Config returns the wrapped configuration. Callers must not mutate it.
func (s *Snapshot) Config() *Config {
	return s.cfg
}

// LoadedAt returns when this snapshot became current.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}
