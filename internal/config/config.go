package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yourorg/sessionmock/internal/fixture"
)

const (
	defaultConfigRelPath  = ".sessionmock/config.yaml"
	defaultLibraryRelPath = ".sessionmock/library.db"
)

type TLSConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Port            int      `yaml:"port"`
	CertFile        string   `yaml:"cert_file"`
	KeyFile         string   `yaml:"key_file"`
	ChainFile       string   `yaml:"chain_file"`
	AutocertDomains []string `yaml:"autocert_domains"`
	AutocertCache   string   `yaml:"autocert_cache"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TLS             TLSConfig     `yaml:"tls"`
}

type FixturesConfig struct {
	File      string `yaml:"file"`
	KeyPolicy string `yaml:"key_policy"`
}

type PresenceConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	MaxChunks         int           `yaml:"max_chunks"`
	WebSocket         bool          `yaml:"websocket"`
}

type SessionsConfig struct {
	OwnerID       string        `yaml:"owner_id"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type FilterConfig struct {
	IgnoreExtensions   []string `yaml:"ignore_extensions"`
	IgnoreContentTypes []string `yaml:"ignore_content_types"`
	IgnorePaths        []string `yaml:"ignore_paths"`
}

type SanitizeConfig struct {
	BodyFields  []string `yaml:"body_fields"`
	Replacement string   `yaml:"replacement"`
}

type LibraryConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	// IsEncryptedServer is the legacy top-level switch for the TLS listener.
	IsEncryptedServer bool           `yaml:"isEncryptedServer"`
	Server            ServerConfig   `yaml:"server"`
	Fixtures          FixturesConfig `yaml:"fixtures"`
	Presence          PresenceConfig `yaml:"presence"`
	Sessions          SessionsConfig `yaml:"sessions"`
	Filter            FilterConfig   `yaml:"filter"`
	Sanitize          SanitizeConfig `yaml:"sanitize"`
	Library           LibraryConfig  `yaml:"library"`
	Log               LogConfig      `yaml:"log"`
}

// Load loads YAML config, then applies env overrides.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		configPath = filepath.Join(home, defaultConfigRelPath)
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.SetDefaults()
	return cfg, nil
}

func (c *Config) SetDefaults() {
	if c.IsEncryptedServer {
		c.Server.TLS.Enabled = true
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 80
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Server.TLS.Port == 0 {
		c.Server.TLS.Port = 443
	}
	if c.Server.TLS.AutocertCache == "" {
		c.Server.TLS.AutocertCache = "./certs"
	}
	if c.Fixtures.File == "" {
		c.Fixtures.File = "responses.json"
	}
	if c.Fixtures.KeyPolicy == "" {
		c.Fixtures.KeyPolicy = string(fixture.KeyPath)
	}
	if c.Presence.HeartbeatInterval == 0 {
		c.Presence.HeartbeatInterval = time.Second
	}
	if c.Presence.MaxChunks == 0 {
		c.Presence.MaxChunks = 300
	}
	if c.Sessions.OwnerID == "" {
		c.Sessions.OwnerID = "00000000-0000-0000-0000-000000000001"
	}
	if len(c.Filter.IgnoreExtensions) == 0 {
		c.Filter.IgnoreExtensions = []string{".js", ".css", ".png", ".jpg", ".gif", ".svg", ".woff", ".woff2", ".ico", ".map"}
	}
	if len(c.Filter.IgnoreContentTypes) == 0 {
		c.Filter.IgnoreContentTypes = []string{"text/html", "text/css", "image/*", "font/*", "application/javascript"}
	}
	if len(c.Filter.IgnorePaths) == 0 {
		c.Filter.IgnorePaths = []string{"/static/**", "/assets/**", "/favicon*"}
	}
	if len(c.Sanitize.BodyFields) == 0 {
		c.Sanitize.BodyFields = []string{"password", "secret", "token", "api_key", "access_token", "refresh_token", "credential", "challengeKey"}
	}
	if c.Sanitize.Replacement == "" {
		c.Sanitize.Replacement = "***REDACTED***"
	}
	if c.Library.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Library.Path = filepath.Join(home, defaultLibraryRelPath)
		} else {
			c.Library.Path = "library.db"
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the settings needed to serve.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := fixture.ParseKeyPolicy(c.Fixtures.KeyPolicy); err != nil {
		return fmt.Errorf("fixtures.key_policy: %w", err)
	}
	if c.Presence.MaxChunks < 1 {
		return errors.New("presence.max_chunks must be at least 1")
	}
	if c.Presence.HeartbeatInterval < 0 {
		return errors.New("presence.heartbeat_interval cannot be negative")
	}
	if c.Sessions.IdleTimeout < 0 {
		return errors.New("sessions.idle_timeout cannot be negative")
	}
	if c.Sessions.SweepInterval < 0 {
		return errors.New("sessions.sweep_interval cannot be negative")
	}
	return c.ValidateTLS()
}

// ValidateTLS enforces listener requirements when TLS is enabled.
func (c *Config) ValidateTLS() error {
	t := c.Server.TLS
	if !t.Enabled {
		return nil
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("server.tls.port out of range: %d", t.Port)
	}
	if t.Port == c.Server.Port {
		return errors.New("server.tls.port must differ from server.port")
	}
	hasFiles := strings.TrimSpace(t.CertFile) != "" || strings.TrimSpace(t.KeyFile) != ""
	if hasFiles && (strings.TrimSpace(t.CertFile) == "" || strings.TrimSpace(t.KeyFile) == "") {
		return errors.New("server.tls.cert_file and server.tls.key_file must be set together")
	}
	if !hasFiles && len(t.AutocertDomains) == 0 {
		return errors.New("tls enabled but neither cert_file/key_file nor autocert_domains is set")
	}
	return nil
}

// Addr returns the plaintext listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// TLSAddr returns the encrypted listen address.
func (c *Config) TLSAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.TLS.Port)
}

func applyEnvOverrides(c *Config) {
	setBool(&c.IsEncryptedServer, "SESSIONMOCK_ENCRYPTED_SERVER")
	setString(&c.Server.Host, "SESSIONMOCK_SERVER_HOST")
	setInt(&c.Server.Port, "SESSIONMOCK_SERVER_PORT")
	setBool(&c.Server.TLS.Enabled, "SESSIONMOCK_TLS_ENABLED")
	setInt(&c.Server.TLS.Port, "SESSIONMOCK_TLS_PORT")
	setString(&c.Server.TLS.CertFile, "SESSIONMOCK_TLS_CERT_FILE")
	setString(&c.Server.TLS.KeyFile, "SESSIONMOCK_TLS_KEY_FILE")
	setString(&c.Server.TLS.ChainFile, "SESSIONMOCK_TLS_CHAIN_FILE")
	setString(&c.Fixtures.File, "SESSIONMOCK_FIXTURES_FILE")
	setString(&c.Fixtures.KeyPolicy, "SESSIONMOCK_FIXTURES_KEY_POLICY")
	setDuration(&c.Presence.HeartbeatInterval, "SESSIONMOCK_HEARTBEAT_INTERVAL")
	setInt(&c.Presence.MaxChunks, "SESSIONMOCK_HEARTBEAT_MAX_CHUNKS")
	setDuration(&c.Sessions.IdleTimeout, "SESSIONMOCK_SESSION_IDLE_TIMEOUT")
	setString(&c.Library.Path, "SESSIONMOCK_LIBRARY_PATH")
	setString(&c.Log.Level, "SESSIONMOCK_LOG_LEVEL")
	setString(&c.Log.Format, "SESSIONMOCK_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
