package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete server configuration, loadable from environment
// variables (BUNDLE_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string   `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string   `usage:"PostgreSQL connection URL (BUNDLE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper  string   `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	APIKeys       []string `usage:"Accepted API keys as name:hex-hmac entries" flag:"api-keys"`
	WebhookSecret string   `usage:"Shared secret verifying platform webhook signatures" flag:"webhook-secret"`
	Shopify       ShopifyConfig
	RateLimit     RateLimitConfig
	Graceful      GracefulConfig
}

// ShopifyConfig controls the Admin API client.
type ShopifyConfig struct {
	APIVersion string        `default:"2024-10" usage:"Admin API version" flag:"shopify-api-version"`
	BaseURL    string        `default:"" usage:"Override for the shop Admin API origin" flag:"shopify-base-url"`
	Timeout    time.Duration `default:"10s" usage:"Admin API request timeout" flag:"shopify-timeout"`
}

// RateLimitConfig controls the per-shop token bucket limiter on /api.
type RateLimitConfig struct {
	Rate  float64 `default:"5" usage:"Sustained requests per second per shop"`
	Burst int     `default:"20" usage:"Burst size per shop"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "BUNDLE",
		Files:     []string{"config.yaml", "/etc/bundle/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set BUNDLE_DATABASE_URL or DATABASE_URL")
	}
	if c.WebhookSecret == "" {
		return errors.New("webhook secret is required: set BUNDLE_WEBHOOK_SECRET or SHOPIFY_API_SECRET")
	}
	return nil
}

// applyPlatformDefaults maps conventional environment variables (DATABASE_URL,
// PORT, SHOPIFY_API_SECRET) onto the BUNDLE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.WebhookSecret == "" {
		c.WebhookSecret = os.Getenv("SHOPIFY_API_SECRET")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
