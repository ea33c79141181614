package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	assert.Equal(t, 80, c.Server.Port)
	assert.Equal(t, 443, c.Server.TLS.Port)
	assert.False(t, c.Server.TLS.Enabled)
	assert.Equal(t, "responses.json", c.Fixtures.File)
	assert.Equal(t, "path", c.Fixtures.KeyPolicy)
	assert.Equal(t, time.Second, c.Presence.HeartbeatInterval)
	assert.Equal(t, 300, c.Presence.MaxChunks)
	assert.Zero(t, c.Sessions.IdleTimeout)
	assert.Equal(t, "info", c.Log.Level)
	require.NoError(t, c.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	yml := "server:\n  port: 8080\nfixtures:\n  file: ./fx.json\n  key_policy: path_query\npresence:\n  heartbeat_interval: 250ms\nsessions:\n  idle_timeout: 10m\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yml), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./fx.json", cfg.Fixtures.File)
	assert.Equal(t, "path_query", cfg.Fixtures.KeyPolicy)
	assert.Equal(t, 250*time.Millisecond, cfg.Presence.HeartbeatInterval)
	assert.Equal(t, 10*time.Minute, cfg.Sessions.IdleTimeout)
	assert.Equal(t, 300, cfg.Presence.MaxChunks)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Server.Port)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server: [\n"), 0o644))
	_, err := Load(cfgPath)
	assert.Error(t, err)
}

func TestEncryptedServerKeyEnablesTLS(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("isEncryptedServer: true\nserver:\n  tls:\n    cert_file: c.pem\n    key_file: k.pem\n"), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.True(t, cfg.Server.TLS.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SESSIONMOCK_SERVER_PORT", "9090")
	t.Setenv("SESSIONMOCK_HEARTBEAT_INTERVAL", "2s")
	t.Setenv("SESSIONMOCK_ENCRYPTED_SERVER", "true")
	t.Setenv("SESSIONMOCK_TLS_CERT_FILE", "cert.pem")
	t.Setenv("SESSIONMOCK_TLS_KEY_FILE", "key.pem")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Presence.HeartbeatInterval)
	assert.True(t, cfg.Server.TLS.Enabled)
	assert.Equal(t, "cert.pem", cfg.Server.TLS.CertFile)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad key policy", func(c *Config) { c.Fixtures.KeyPolicy = "fuzzy" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"tls without material", func(c *Config) { c.Server.TLS.Enabled = true }},
		{"tls half files", func(c *Config) {
			c.Server.TLS.Enabled = true
			c.Server.TLS.CertFile = "cert.pem"
		}},
		{"tls same port", func(c *Config) {
			c.Server.TLS.Enabled = true
			c.Server.TLS.Port = 80
			c.Server.TLS.AutocertDomains = []string{"example.com"}
		}},
		{"negative idle", func(c *Config) { c.Sessions.IdleTimeout = -time.Second }},
		{"negative sweep", func(c *Config) { c.Sessions.SweepInterval = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{}
			c.SetDefaults()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestAddr(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	c.Server.Host = "127.0.0.1"
	assert.Equal(t, "127.0.0.1:80", c.Addr())
	assert.Equal(t, "127.0.0.1:443", c.TLSAddr())
}
