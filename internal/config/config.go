package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"

	"TokenBridge/internal/models"
)

const (
	RefreshWithin = "within"
	RefreshAfter  = "after"
)

type Config struct {
	// ----------------------------
	// Template service
	// ----------------------------
	TemplateHost string `envconfig:"TEMPLATE_HOST"`
	TemplatePath string `envconfig:"TEMPLATE_PATH"`
	TemplatePort int    `envconfig:"TEMPLATE_PORT" default:"443"`

	// ----------------------------
	// Token service
	// ----------------------------
	TokenHost   string `envconfig:"TOKEN_HOST"`
	TokenPath   string `envconfig:"TOKEN_PATH"`
	TokenPort   int    `envconfig:"TOKEN_PORT" default:"443"`
	BearerToken string `envconfig:"BEARER_TOKEN"`

	// ----------------------------
	// Outbound calls
	// ----------------------------
	OutboundScheme  string        `envconfig:"OUTBOUND_SCHEME" default:"https"`
	OutboundTimeout time.Duration `envconfig:"OUTBOUND_TIMEOUT" default:"10s"`

	// ----------------------------
	// Template cache
	// ----------------------------
	TemplateRefreshSeconds int    `envconfig:"TEMPLATE_REFRESH_SECONDS" default:"60"`
	TemplateRefreshMode    string `envconfig:"TEMPLATE_REFRESH_MODE" default:"within"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort      string `envconfig:"API_PORT" default:"8080"`
	DefaultEmail string `envconfig:"DEFAULT_EMAIL" default:"user@example.com"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Logging
	// ----------------------------
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	LogRedact       bool   `envconfig:"LOG_REDACT" default:"true"`
	LogTokenPayload bool   `envconfig:"LOG_TOKEN_PAYLOAD" default:"false"`
}

// Load reads the configuration from the environment. Hosts, paths and the
// bearer credential are not checked here: a missing value shows up as a
// failed outbound call.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	switch cfg.TemplateRefreshMode {
	case RefreshWithin, RefreshAfter:
	default:
		return nil, fmt.Errorf("%w: TEMPLATE_REFRESH_MODE must be %q or %q, got %q",
			models.ErrConfiguration, RefreshWithin, RefreshAfter, cfg.TemplateRefreshMode)
	}

	return &cfg, nil
}

// TokenBaseURL is the token-service URL the email gets appended to.
func (c *Config) TokenBaseURL() string {
	return baseURL(c.OutboundScheme, c.TokenHost, c.TokenPort, c.TokenPath)
}

func (c *Config) TemplateURL() string {
	return baseURL(c.OutboundScheme, c.TemplateHost, c.TemplatePort, c.TemplatePath)
}

func (c *Config) RefreshThreshold() time.Duration {
	return time.Duration(c.TemplateRefreshSeconds) * time.Second
}

func baseURL(scheme, host string, port int, path string) string {
	return scheme + "://" + host + ":" + strconv.Itoa(port) + path
}
