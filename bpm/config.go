package bpm

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Default configuration values
const (
	DefaultClientID      = "client"
	DefaultClientSecret  = "secret"
	DefaultLocale        = "en"
	DefaultTokenEndpoint = "/oauth/token"
)

// tokenKeySuffix is appended to the client name to build the token store key.
const tokenKeySuffix = "jmixBpmAccessToken"

// Config identifies a client against one BPM server.
type Config struct {
	// Name namespaces the stored token so several clients can share a store.
	Name string `json:"name"`

	// BaseURL is the server origin, e.g. http://localhost:8080.
	BaseURL string `json:"base_url" validate:"required,url"`

	// APIRoot is prefixed to every process API path. Servers disagree on it
	// (e.g. /bpm/api/process vs /rest/bpm/process), so there is no default.
	APIRoot string `json:"api_root" validate:"required,startswith=/"`

	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`

	// Locale is sent as Accept-Language on token requests.
	Locale string `json:"locale"`
}

// ApplyDefaults fills unset fields and strips trailing slashes from URLs.
func (c *Config) ApplyDefaults() {
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.ClientSecret == "" {
		c.ClientSecret = DefaultClientSecret
	}
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	// Endpoint paths start with "/", so a bare "/" root trims to empty and fails validation
	c.APIRoot = strings.TrimRight(c.APIRoot, "/")
}

// Validate validates the configuration using struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
