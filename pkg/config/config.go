// Package config loads and validates the TechDirect client configuration.
// Sources implement a single Provider interface and are consulted in an
// explicit precedence order; there is no runtime probing of ambient state.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Default endpoints for the Dell TechDirect production API.
const (
	DefaultBaseURL  = "https://apigtwb2c.us.dell.com/PROD/sbil/eapi/v5"
	DefaultTokenURL = "https://apigtwb2c.us.dell.com/auth/oauth/v2/token"
)

// Config is the immutable client configuration. Load it once and pass it by
// value; the client never mutates it.
type Config struct {
	ClientID             string `envconfig:"CLIENT_ID"`
	ClientSecret         string `envconfig:"CLIENT_SECRET"`
	BaseURL              string `envconfig:"BASE_URL"`
	TokenURL             string `envconfig:"TOKEN_URL"`
	MaxRequestsPerWindow int    `envconfig:"MAX_REQUESTS" default:"50"`
	DebugMode            bool   `envconfig:"DEBUG_MODE"`
}

// Provider supplies configuration from one source.
type Provider interface {
	Load() (Config, error)
}

// EnvProvider reads configuration from environment variables with the given
// prefix (e.g. prefix "DELL" reads DELL_CLIENT_ID, DELL_CLIENT_SECRET, ...).
type EnvProvider struct {
	Prefix string
}

// Load implements Provider.
func (p EnvProvider) Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(p.Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config from environment: %w", err)
	}
	return cfg, nil
}

// StaticProvider returns a fixed configuration. Used in tests and for
// programmatic setup.
type StaticProvider struct {
	Config Config
}

// Load implements Provider.
func (p StaticProvider) Load() (Config, error) {
	return p.Config, nil
}

// Chain consults providers in order. Earlier providers win: a field already
// set by an earlier provider is never overwritten by a later one. DebugMode
// is true if any provider sets it.
type Chain []Provider

// Load implements Provider.
func (c Chain) Load() (Config, error) {
	var merged Config
	for _, p := range c {
		cfg, err := p.Load()
		if err != nil {
			return Config{}, err
		}
		if merged.ClientID == "" {
			merged.ClientID = cfg.ClientID
		}
		if merged.ClientSecret == "" {
			merged.ClientSecret = cfg.ClientSecret
		}
		if merged.BaseURL == "" {
			merged.BaseURL = cfg.BaseURL
		}
		if merged.TokenURL == "" {
			merged.TokenURL = cfg.TokenURL
		}
		if merged.MaxRequestsPerWindow == 0 {
			merged.MaxRequestsPerWindow = cfg.MaxRequestsPerWindow
		}
		merged.DebugMode = merged.DebugMode || cfg.DebugMode
	}
	return merged, nil
}

// displayNames maps config fields to the names users see in error messages.
var displayNames = map[string]string{
	"clientId":     "Client ID",
	"clientSecret": "Client Secret",
	"baseUrl":      "Base URL",
	"tokenUrl":     "Token URL",
}

// MissingParamsError reports required configuration fields that were absent
// from every source.
type MissingParamsError struct {
	Missing []string
}

func (e *MissingParamsError) Error() string {
	return fmt.Sprintf("missing required configuration parameters: %s", strings.Join(e.Missing, ", "))
}

// Validate checks the four required fields and applies defaults for the
// optional ones. It returns a MissingParamsError naming every absent field
// so the caller can surface all of them at once.
func Validate(cfg Config) (Config, error) {
	var missing []string
	if cfg.ClientID == "" {
		missing = append(missing, displayNames["clientId"])
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, displayNames["clientSecret"])
	}
	if cfg.BaseURL == "" {
		missing = append(missing, displayNames["baseUrl"])
	}
	if cfg.TokenURL == "" {
		missing = append(missing, displayNames["tokenUrl"])
	}
	if len(missing) > 0 {
		return Config{}, &MissingParamsError{Missing: missing}
	}

	if cfg.MaxRequestsPerWindow <= 0 {
		cfg.MaxRequestsPerWindow = 50
	}
	return cfg, nil
}

// Load resolves configuration from the given providers (or the default
// DELL-prefixed environment when none are given) and validates it.
func Load(providers ...Provider) (Config, error) {
	if len(providers) == 0 {
		providers = []Provider{EnvProvider{Prefix: "DELL"}}
	}
	cfg, err := Chain(providers).Load()
	if err != nil {
		return Config{}, err
	}
	return Validate(cfg)
}
