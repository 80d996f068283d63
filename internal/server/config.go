package server

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	TokenSecret  string `usage:"HMAC secret for bearer tokens (STOREFRONT_TOKEN_SECRET)" flag:"token-secret"`
	Gateway      GatewayConfig
	Pricing      PricingConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// GatewayConfig holds the payment provider connection settings. Empty
// credentials disable the gateway flow; cash orders keep working.
type GatewayConfig struct {
	BaseURL   string        `default:"" usage:"Payment provider base URL" flag:"gateway-base-url"`
	KeyID     string        `default:"" usage:"Payment provider key id" flag:"gateway-key-id"`
	KeySecret string        `default:"" usage:"Payment provider key secret (STOREFRONT_GATEWAY_KEY_SECRET)" flag:"gateway-key-secret"`
	Timeout   time.Duration `default:"10s" usage:"Payment provider request timeout" flag:"gateway-timeout"`
}

// PricingConfig holds the server-side pricing policy. Monetary values are
// decimal strings so no precision is lost on load.
type PricingConfig struct {
	TaxRate          string `default:"0.15" usage:"Tax rate applied to the items subtotal" flag:"tax-rate"`
	ShippingFee      string `default:"10"   usage:"Flat shipping fee" flag:"shipping-fee"`
	FreeShippingOver string `default:"100"  usage:"Subtotal threshold for free shipping, 0 disables" flag:"free-shipping-over"`
	Currency         string `default:"USD"  usage:"ISO currency code passed to the payment gateway"`
}

// Pricing parses the config strings into the domain pricing policy.
func (c PricingConfig) Pricing() (order.Pricing, error) {
	taxRate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "parse tax rate")
	}
	shippingFee, err := decimal.NewFromString(c.ShippingFee)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "parse shipping fee")
	}
	freeOver, err := decimal.NewFromString(c.FreeShippingOver)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "parse free shipping threshold")
	}
	return order.Pricing{
		TaxRate:          taxRate,
		ShippingFee:      shippingFee,
		FreeShippingOver: freeOver,
		Currency:         c.Currency,
	}, nil
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	}
	if cfg.TokenSecret == "" {
		return nil, errors.New("token secret is required: set STOREFRONT_TOKEN_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
