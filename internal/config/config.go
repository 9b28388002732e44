// Package config handles Waypoint configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./waypoint.yaml, ~/.config/waypoint/waypoint.yaml, /etc/waypoint/waypoint.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"waypoint.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "waypoint", "waypoint.yaml"))
	}

	paths = append(paths, "/etc/waypoint/waypoint.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Waypoint configuration.
type Config struct {
	Listen       ListenConfig       `yaml:"listen"`
	Anthropic    AnthropicConfig    `yaml:"anthropic"`
	ToolServer   ToolServerConfig   `yaml:"tool_server"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Memory       MemoryConfig       `yaml:"memory"`
	RouteTable   string             `yaml:"route_table"` // optional YAML file overriding the builtin route templates
	LogLevel     string             `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ToolServerConfig defines how to reach the map tool MCP server.
// Exactly one of Command or URL should be set: a command spawns a
// stdio subprocess, a URL uses streamable HTTP.
type ToolServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     []string          `yaml:"env"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// OrchestratorConfig tunes the query loop. Zero values mean the
// built-in defaults.
type OrchestratorConfig struct {
	MaxIterations     int     `yaml:"max_iterations"`
	MinCallDelaySec   float64 `yaml:"min_call_delay_sec"`
	IterationDelaySec float64 `yaml:"iteration_delay_sec"`
	MaxRetries        int     `yaml:"max_retries"`
	BackoffFactor     float64 `yaml:"backoff_factor"`
	CacheTTLSec       int     `yaml:"cache_ttl_sec"`
	CompressBudget    int     `yaml:"compress_budget"`
}

// MemoryConfig defines cross-query memory persistence.
type MemoryConfig struct {
	// Path is the SQLite file for memory snapshots. Empty disables
	// persistence; the store is then purely in-process.
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file. Environment variables in
// the file body are expanded before parsing, so secrets can be
// referenced as ${CLAUDE_API_KEY}.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Anthropic: AnthropicConfig{
			APIKey: os.Getenv("CLAUDE_API_KEY"),
			Model:  "claude-3-5-sonnet-20241022",
		},
	}
}

// CacheTTL returns the tool cache TTL as a duration.
func (c *OrchestratorConfig) CacheTTL() time.Duration {
	if c.CacheTTLSec <= 0 {
		return time.Hour
	}
	return time.Duration(c.CacheTTLSec) * time.Second
}
