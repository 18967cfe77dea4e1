package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "playbox.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
instance: "studio"
redis:
  url: "redis://cache:6380/2"
auth:
  authenticator_url: "https://auth.example.com"
  client_id: "abc"
sandbox:
  mode: "process"
  renderer: "framebuffer"
  viewport:
    width: 800
    height: 600
timing:
  resize_debounce_ms: 50
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "studio", config.Instance)
	assert.Equal(t, "redis://cache:6380/2", config.Redis.URL)
	assert.Equal(t, "https://auth.example.com", config.Auth.AuthenticatorURL)
	assert.Equal(t, "https://api.github.com", config.Auth.APIURL)
	assert.Equal(t, SandboxModeProcess, config.Sandbox.Mode)
	assert.Equal(t, "framebuffer", config.Sandbox.Renderer)
	assert.Equal(t, 800, config.Sandbox.Viewport.Width)
	assert.Equal(t, 50*time.Millisecond, config.ResizeDebounce())
	assert.Equal(t, time.Second, config.TokenInterval())

	opts, err := config.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}

func TestLoad_Defaults(t *testing.T) {
	config, err := Load(writeConfig(t, `version: "1.0"`))
	require.NoError(t, err)

	assert.Equal(t, "default", config.Instance)
	assert.Equal(t, SandboxModeInProcess, config.Sandbox.Mode)
	assert.Equal(t, 100*time.Millisecond, config.ResizeDebounce())
	assert.Equal(t, time.Second, config.TokenInterval())
	assert.Equal(t, 2*time.Second, config.Budget())
	assert.True(t, *config.Drafts.Enabled)
	assert.Equal(t, ".playbox/drafts.db", config.Drafts.Path)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/playbox.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	config, err := Load(writeConfig(t, "version: \"1.0\"\nsandbox:\n  - nope\n    bad"))
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"wrong version", `version: "2.0"`, "unsupported version"},
		{"bad mode", "version: \"1.0\"\nsandbox:\n  mode: docker", "invalid sandbox.mode"},
		{"command without process mode", "version: \"1.0\"\nsandbox:\n  command: [\"x\"]", "sandbox.command"},
		{"bad renderer", "version: \"1.0\"\nsandbox:\n  renderer: webgl", "invalid sandbox.renderer"},
		{"zero debounce", "version: \"1.0\"\ntiming:\n  resize_debounce_ms: 0", "resize_debounce_ms"},
		{"negative interval", "version: \"1.0\"\ntiming:\n  token_interval_ms: -5", "token_interval_ms"},
		{"bad redis url", "version: \"1.0\"\nredis:\n  url: \"http://nope\"", "invalid redis.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvRedisURL, "redis://env-host:6379/0")
	t.Setenv(EnvToken, "secret")

	config, err := Load(writeConfig(t, "version: \"1.0\"\nredis:\n  url: \"redis://file:6379/0\""))
	require.NoError(t, err)

	assert.Equal(t, "redis://env-host:6379/0", config.Redis.URL)
	assert.Equal(t, "secret", config.Token)
}

func TestLoadOrDefault(t *testing.T) {
	config, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, "default", config.Instance)

	_, err = LoadOrDefault(writeConfig(t, `version: "0.1"`))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	config := Default()
	assert.Equal(t, 512, config.Sandbox.Viewport.Width)
	assert.Equal(t, 100*time.Millisecond, config.ResizeDebounce())
}
