package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/bpm-client/bpm"
	"github.com/florianilch/bpm-client/internal/bpmstub"
	"github.com/florianilch/bpm-client/internal/observability"
	"github.com/florianilch/bpm-client/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = observability.FormatText
	LogFormatJSON LogFormat = observability.FormatJSON
	LogFormatOTel LogFormat = observability.FormatOTel
)

// TokenStorageType represents the different storage types supported for access tokens.
type TokenStorageType string

const (
	TokenStorageTypeMemory  TokenStorageType = "memory"
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigClientName      = "bpmctl"
	DefaultConfigHTTPTimeout     = 30 * time.Second
	DefaultConfigTokenStorage    = TokenStorageTypeFile
	DefaultConfigKeyringService  = "bpmctl"
	DefaultConfigTokenEnvPrefix  = "BPMCTL_TOKEN_"
	DefaultConfigStubHost        = "127.0.0.1"
	DefaultConfigStubPort        = 8080
	DefaultConfigShutdownTimeout = 5 * time.Second
)

// LogConfig holds settings of the otel log pipeline.
type LogConfig struct {
	// OTLPEndpoint enables OTLP export for the otel log format, e.g. http://localhost:4318.
	OTLPEndpoint string `json:"otlp_endpoint" validate:"omitempty,url"`
	OTLPProtocol string `json:"otlp_protocol" validate:"omitempty,oneof=http grpc"`
}

// ServerConfig locates the BPM server the client talks to.
type ServerConfig struct {
	BaseURL       string `json:"base_url" validate:"omitempty,url"`
	APIRoot       string `json:"api_root" validate:"omitempty,startswith=/"`
	TokenEndpoint string `json:"token_endpoint" validate:"omitempty,startswith=/"`
}

// ClientConfig identifies the client against the token endpoint.
type ClientConfig struct {
	// Name namespaces the stored access token.
	Name   string `json:"name"`
	ID     string `json:"id"`
	Secret string `json:"secret"`
	Locale string `json:"locale"`
}

// HTTPConfig holds outbound HTTP settings.
type HTTPConfig struct {
	// Timeout bounds each request including reading the body. Zero means no timeout.
	Timeout time.Duration `json:"timeout"`
}

// TokenConfig describes how to construct the TokenStore.
type TokenConfig struct {
	Storage TokenStorageType `json:"storage" validate:"required,oneof=memory file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	Dir            string `json:"dir,omitempty"`             // For file storage: token directory
	KeyringService string `json:"keyring_service,omitempty"` // For keyring storage: service name
	EnvPrefix      string `json:"env_prefix,omitempty"`      // For env storage: variable name prefix
}

// NewTokenStore creates a TokenStore from the token configuration.
func (t *TokenConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch t.Storage {
	case TokenStorageTypeMemory:
		return tokenstore.NewMemoryStore(), nil
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(t.Dir)
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(t.EnvPrefix), nil
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(t.KeyringService)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", t.Storage)
	}
}

// StubConfig holds settings of the emulated BPM server.
type StubConfig struct {
	Host     string `json:"host" validate:"hostname_rfc1123|ip"`
	Port     uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
	APIRoot  string `json:"api_root" validate:"omitempty,startswith=/"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json otel"`
	Log       LogConfig      `json:"log"`
	Server    ServerConfig   `json:"server"`
	Client    ClientConfig   `json:"client"`
	HTTP      HTTPConfig     `json:"http"`
	Token     TokenConfig    `json:"token"`
	Stub      StubConfig     `json:"stub"`
	Shutdown  ShutdownConfig `json:"shutdown"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Client.Name == "" {
		c.Client.Name = DefaultConfigClientName
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = DefaultConfigHTTPTimeout
	}
	if c.Token.Storage == "" {
		c.Token.Storage = DefaultConfigTokenStorage
	}
	if c.Stub.Host == "" {
		c.Stub.Host = DefaultConfigStubHost
	}
	if c.Stub.Port == 0 {
		c.Stub.Port = DefaultConfigStubPort
	}
	if c.Stub.APIRoot == "" {
		c.Stub.APIRoot = bpmstub.DefaultAPIRoot
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}

	// Dynamic defaults based on storage type
	switch c.Token.Storage {
	case TokenStorageTypeFile:
		if c.Token.Dir == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("token.dir required (auto-detect failed: %w)", err)
			}
			c.Token.Dir = filepath.Join(configDir, "bpmctl", "tokens")
		}
	case TokenStorageTypeKeyring:
		if c.Token.KeyringService == "" {
			c.Token.KeyringService = DefaultConfigKeyringService
		}
	case TokenStorageTypeEnv:
		if c.Token.EnvPrefix == "" {
			c.Token.EnvPrefix = DefaultConfigTokenEnvPrefix
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
// Server settings are checked when a client is built, so commands that do not
// talk to a server run without them.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Token.Storage {
	case TokenStorageTypeFile:
		if c.Token.Dir == "" {
			return errors.New("token.dir required for file storage")
		}
	case TokenStorageTypeKeyring:
		if c.Token.KeyringService == "" {
			return errors.New("token.keyring_service required for keyring storage")
		}
	}

	if c.LogFormat != LogFormatOTel && c.Log.OTLPEndpoint != "" {
		return errors.New("log.otlp_endpoint requires log_format otel")
	}

	return nil
}

// ObservabilityOptions returns the logging setup described by the configuration.
func (c *Config) ObservabilityOptions() observability.Options {
	return observability.Options{
		Level:        c.LogLevel,
		Format:       string(c.LogFormat),
		OTLPEndpoint: c.Log.OTLPEndpoint,
		OTLPProtocol: c.Log.OTLPProtocol,
		ServiceName:  DefaultConfigClientName,
	}
}

// BPMConfig returns the bpm client configuration.
func (c *Config) BPMConfig() bpm.Config {
	return bpm.Config{
		Name:         c.Client.Name,
		BaseURL:      c.Server.BaseURL,
		APIRoot:      c.Server.APIRoot,
		ClientID:     c.Client.ID,
		ClientSecret: c.Client.Secret,
		Locale:       c.Client.Locale,
	}
}

// NewClient creates a bpm.Client backed by the configured token store.
// Extra options are applied after the configured ones.
func (c *Config) NewClient(opts ...bpm.Option) (*bpm.Client, error) {
	store, err := c.Token.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	base := []bpm.Option{
		bpm.WithTokenStore(store),
		bpm.WithHTTPClient(&http.Client{Timeout: c.HTTP.Timeout}),
	}
	client, err := bpm.New(c.BPMConfig(), append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// StubOptions returns the emulated server settings.
func (c *Config) StubOptions() bpmstub.Options {
	opts := bpmstub.Options{
		APIRoot:       c.Stub.APIRoot,
		TokenEndpoint: c.Server.TokenEndpoint,
		ClientID:      c.Client.ID,
		ClientSecret:  c.Client.Secret,
	}
	if c.Stub.User != "" {
		opts.Users = map[string]string{c.Stub.User: c.Stub.Password}
	}
	return opts
}
