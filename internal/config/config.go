// Package config holds cluster configuration for the sharded store and
// the URL-shortener driver, loadable from YAML or flag-style lists.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Defaults applied by Normalize when a field is unset.
const (
	DefaultVirtualNodes = 150
	DefaultBaseURL      = "https://short.ly/"
)

// Config describes a store cluster.
type Config struct {
	VirtualNodes int      `yaml:"virtual_nodes"`
	Servers      []string `yaml:"servers"`
	BaseURL      string   `yaml:"base_url"`
}

// Default returns a single-server configuration with default settings.
func Default() *Config {
	return &Config{
		VirtualNodes: DefaultVirtualNodes,
		Servers:      []string{"server1"},
		BaseURL:      DefaultBaseURL,
	}
}

// ParseServers parses a comma-separated list of server IDs:
// "server1,server2,server3"
func ParseServers(serversStr string) ([]string, error) {
	if serversStr == "" {
		return []string{}, nil
	}

	parts := strings.Split(serversStr, ",")
	servers := make([]string, 0, len(parts))
	seen := make(map[string]bool)

	for _, part := range parts {
		id := strings.TrimSpace(part)
		if id == "" {
			return nil, fmt.Errorf("server ID cannot be empty in %q", serversStr)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate server ID %q", id)
		}
		seen[id] = true
		servers = append(servers, id)
	}
	return servers, nil
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	if c.VirtualNodes == 0 {
		c.VirtualNodes = DefaultVirtualNodes
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
}

// Validate rejects configurations the ring or store would refuse.
func (c *Config) Validate() error {
	if c.VirtualNodes <= 0 {
		return fmt.Errorf("virtual_nodes must be positive, got %d", c.VirtualNodes)
	}
	seen := make(map[string]bool)
	for _, id := range c.Servers {
		if id == "" {
			return fmt.Errorf("server ID cannot be empty")
		}
		if seen[id] {
			return fmt.Errorf("duplicate server ID %q", id)
		}
		seen[id] = true
	}
	return nil
}
