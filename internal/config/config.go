// Package config loads the scenario engine's single YAML configuration
// document, following a Load(path) -> Parse(bytes) -> env overrides ->
// Defaults -> Validate split, kept to one document since this domain has no multi-kind resource
// model.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	Templates TemplatesConfig `yaml:"templates"`
	Notify    NotifyConfig    `yaml:"notify"`
	LLM       LLMConfig       `yaml:"llm"`
}

// HTTPConfig configures the edge's listener.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Driver is "inmem" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// TemplatesConfig configures the hazard-template rule directory.
type TemplatesConfig struct {
	Dir      string `yaml:"dir"`
	Autoload bool   `yaml:"autoload"`
}

// NotifyConfig configures the critical-sector-health notifier.
type NotifyConfig struct {
	SlackToken   string `yaml:"slack_token"`
	SlackChannel string `yaml:"slack_channel"`
}

// LLMConfig configures the optional narrative-phrasing call.
type LLMConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	Enabled         bool   `yaml:"enabled"`
}

// Load reads and parses the config file at path, applying env overrides,
// defaults, and validation in that order.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Parse parses a single YAML document into a Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides lets deployment environments override secrets, the
// listener host/port, and the store DSN without editing the checked-in YAML.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SCENARIO_ENGINE_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("SCENARIO_ENGINE_HTTP_HOST"); v != "" {
		c.HTTP.Host = v
	}
	if v := os.Getenv("SCENARIO_ENGINE_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = port
		}
	}
	if v := os.Getenv("SCENARIO_ENGINE_TEMPLATES_DIR"); v != "" {
		c.Templates.Dir = v
	}
	if v := os.Getenv("SCENARIO_ENGINE_TEMPLATES_AUTOLOAD"); v != "" {
		c.Templates.Autoload = v == "1" || v == "true"
	}
	if v := os.Getenv("SCENARIO_ENGINE_SLACK_TOKEN"); v != "" {
		c.Notify.SlackToken = v
	}
	if v := os.Getenv("SCENARIO_ENGINE_SLACK_CHANNEL"); v != "" {
		c.Notify.SlackChannel = v
	}
	if v := os.Getenv("SCENARIO_ENGINE_ANTHROPIC_API_KEY"); v != "" {
		c.LLM.AnthropicAPIKey = v
		c.LLM.Enabled = true
	}
}

// Defaults fills in unset fields with production-reasonable values.
func (c *Config) Defaults() {
	if c.HTTP.Host == "" {
		c.HTTP.Host = "0.0.0.0"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "inmem"
	}
}

// Validate checks the configuration for errors that Defaults cannot paper
// over.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "inmem":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.driver is postgres")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.LLM.Enabled && c.LLM.AnthropicAPIKey == "" {
		return fmt.Errorf("llm.enabled requires llm.anthropic_api_key")
	}
	return nil
}

// Addr is the host:port the HTTP edge should listen on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// RegistryGCInterval is how often the run registry's GC sweep runs.
const RegistryGCInterval = 5 * time.Minute
