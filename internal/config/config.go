package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where commands look for the configuration file.
const DefaultPath = "playbox.yml"

// Environment overrides.
const (
	EnvRedisURL = "PLAYBOX_REDIS_URL"
	EnvToken    = "PLAYBOX_TOKEN"
)

const (
	SandboxModeInProcess = "inprocess"
	SandboxModeProcess   = "process"
)

// PlayboxConfig represents the top-level playbox.yml configuration
type PlayboxConfig struct {
	Version  string         `yaml:"version"`
	Instance string         `yaml:"instance,omitempty"`
	Redis    *RedisConfig   `yaml:"redis,omitempty"`
	Auth     *AuthConfig    `yaml:"auth,omitempty"`
	Sandbox  *SandboxConfig `yaml:"sandbox,omitempty"`
	Timing   *TimingConfig  `yaml:"timing,omitempty"`
	Drafts   *DraftsConfig  `yaml:"drafts,omitempty"`

	// Token is never read from the file, only from PLAYBOX_TOKEN.
	Token string `yaml:"-"`
}

// RedisConfig points at the gist store
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig configures the sign-in exchange
type AuthConfig struct {
	AuthenticatorURL string `yaml:"authenticator_url"`
	APIURL           string `yaml:"api_url"`
	AuthorizeURL     string `yaml:"authorize_url,omitempty"`
	ClientID         string `yaml:"client_id"`
}

// SandboxConfig selects how programs are isolated
type SandboxConfig struct {
	Mode     string          `yaml:"mode,omitempty"`     // "inprocess" (default) or "process"
	Command  []string        `yaml:"command,omitempty"`  // process mode only; default: this binary with "sandbox"
	Renderer string          `yaml:"renderer,omitempty"` // "" or "framebuffer"
	BudgetMs *int            `yaml:"budget_ms,omitempty"`
	Viewport *ViewportConfig `yaml:"viewport,omitempty"`
}

// ViewportConfig is the size of the host surface
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// TimingConfig tunes debounce and throttle windows
type TimingConfig struct {
	ResizeDebounceMs *int `yaml:"resize_debounce_ms,omitempty"` // default 100
	TokenIntervalMs  *int `yaml:"token_interval_ms,omitempty"`  // default 1000
}

// DraftsConfig configures the local draft history
type DraftsConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// Default returns a validated configuration with every default applied.
func Default() *PlayboxConfig {
	c := &PlayboxConfig{Version: "1.0"}
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return c
}

// Validate performs strict validation on the configuration and fills in defaults
func (c *PlayboxConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		c.Instance = "default"
	}

	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Redis.URL == "" {
		c.Redis.URL = "redis://localhost:6379/0"
	}
	if _, err := redis.ParseURL(c.Redis.URL); err != nil {
		return fmt.Errorf("invalid redis.url: %w", err)
	}

	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}
	if c.Auth.APIURL == "" {
		c.Auth.APIURL = "https://api.github.com"
	}

	if err := c.validateSandbox(); err != nil {
		return err
	}

	if c.Timing == nil {
		c.Timing = &TimingConfig{}
	}
	if c.Timing.ResizeDebounceMs == nil {
		defaultDebounce := 100
		c.Timing.ResizeDebounceMs = &defaultDebounce
	}
	if c.Timing.TokenIntervalMs == nil {
		defaultInterval := 1000
		c.Timing.TokenIntervalMs = &defaultInterval
	}
	if *c.Timing.ResizeDebounceMs <= 0 {
		return fmt.Errorf("timing.resize_debounce_ms must be > 0, got %d", *c.Timing.ResizeDebounceMs)
	}
	if *c.Timing.TokenIntervalMs <= 0 {
		return fmt.Errorf("timing.token_interval_ms must be > 0, got %d", *c.Timing.TokenIntervalMs)
	}

	if c.Drafts == nil {
		c.Drafts = &DraftsConfig{}
	}
	if c.Drafts.Enabled == nil {
		enabled := true
		c.Drafts.Enabled = &enabled
	}
	if c.Drafts.Path == "" {
		c.Drafts.Path = ".playbox/drafts.db"
	}

	return nil
}

func (c *PlayboxConfig) validateSandbox() error {
	if c.Sandbox == nil {
		c.Sandbox = &SandboxConfig{}
	}
	s := c.Sandbox

	switch s.Mode {
	case "":
		s.Mode = SandboxModeInProcess
	case SandboxModeInProcess, SandboxModeProcess:
	default:
		return fmt.Errorf("invalid sandbox.mode: %s (must be '%s' or '%s')", s.Mode, SandboxModeInProcess, SandboxModeProcess)
	}

	if s.Mode == SandboxModeInProcess && len(s.Command) > 0 {
		return fmt.Errorf("sandbox.command is only valid with mode '%s'", SandboxModeProcess)
	}

	if s.Renderer != "" && s.Renderer != "framebuffer" {
		return fmt.Errorf("invalid sandbox.renderer: %s (must be 'framebuffer' or omitted)", s.Renderer)
	}

	if s.BudgetMs == nil {
		defaultBudget := 2000
		s.BudgetMs = &defaultBudget
	}
	if *s.BudgetMs <= 0 {
		return fmt.Errorf("sandbox.budget_ms must be > 0, got %d", *s.BudgetMs)
	}

	if s.Viewport == nil {
		s.Viewport = &ViewportConfig{Width: 512, Height: 512}
	}
	if s.Viewport.Width < 0 || s.Viewport.Height < 0 {
		return fmt.Errorf("sandbox.viewport must not be negative")
	}

	return nil
}

// ApplyEnv applies environment overrides.
func (c *PlayboxConfig) ApplyEnv() {
	if url := os.Getenv(EnvRedisURL); url != "" {
		if c.Redis == nil {
			c.Redis = &RedisConfig{}
		}
		c.Redis.URL = url
	}
	if token := os.Getenv(EnvToken); token != "" {
		c.Token = token
	}
}

// ResizeDebounce returns the resize debounce window.
func (c *PlayboxConfig) ResizeDebounce() time.Duration {
	return time.Duration(*c.Timing.ResizeDebounceMs) * time.Millisecond
}

// TokenInterval returns the token estimator's throttle window.
func (c *PlayboxConfig) TokenInterval() time.Duration {
	return time.Duration(*c.Timing.TokenIntervalMs) * time.Millisecond
}

// Budget returns the per-evaluation execution budget.
func (c *PlayboxConfig) Budget() time.Duration {
	return time.Duration(*c.Sandbox.BudgetMs) * time.Millisecond
}

// RedisOptions parses the redis URL into client options.
func (c *PlayboxConfig) RedisOptions() (*redis.Options, error) {
	return redis.ParseURL(c.Redis.URL)
}

// Load reads and validates playbox.yml from the specified path
func Load(path string) (*PlayboxConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config PlayboxConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path, falling back to defaults (plus environment overrides) when
// the file does not exist.
func LoadOrDefault(path string) (*PlayboxConfig, error) {
	config, err := Load(path)
	if err == nil {
		return config, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	config = &PlayboxConfig{Version: "1.0"}
	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
