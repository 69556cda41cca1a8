// Package config holds the application's configuration settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"stripe-checkout-portal/internal/services/checkout"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// AppConfig defines environment-based configuration for the application.
type AppConfig struct {
	Http     HttpConfig     `yaml:"http"`
	Stripe   StripeConfig   `yaml:"stripe"`
	Checkout CheckoutConfig `yaml:"checkout"`
}

type HttpConfig struct {
	Addr          string `yaml:"addr" env:"PAYMENTS_HTTP_ADDR" env-default:":8080"`
	PublicURL     string `yaml:"public_url" env:"PAYMENTS_PUBLIC_URL" env-default:"http://localhost:8080"`
	SecureCookies bool   `yaml:"secure_cookies" env:"PAYMENTS_SECURE_COOKIES" env-default:"false"`
}

type StripeConfig struct {
	SecretKey      string `yaml:"secret_key" env:"STRIPE_SECRET_KEY" env-required:"true"`
	PublishableKey string `yaml:"publishable_key" env:"STRIPE_PUBLISHABLE_KEY" env-required:"true"`
	// APIURL overrides the Stripe API base URL, e.g. for stripe-mock.
	APIURL string `yaml:"api_url" env:"STRIPE_API_URL"`
}

type CheckoutConfig struct {
	Currency      string        `yaml:"currency" env:"CHECKOUT_CURRENCY" env-default:"usd"`
	MinimumAmount int64         `yaml:"minimum_amount" env:"CHECKOUT_MINIMUM_AMOUNT" env-default:"50"`
	MaximumAmount int64         `yaml:"maximum_amount" env:"CHECKOUT_MAXIMUM_AMOUNT" env-default:"99999999"`
	DefaultAmount string        `yaml:"default_amount" env:"CHECKOUT_DEFAULT_AMOUNT" env-default:"100.00"`
	MerchantName  string        `yaml:"merchant_name" env:"CHECKOUT_MERCHANT_NAME" env-default:"Gamma Fund LLC"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"CHECKOUT_SESSION_TTL" env-default:"30m"`
}

// MinSessionTTL is the shortest accepted CHECKOUT_SESSION_TTL.
const MinSessionTTL = time.Second

var (
	ErrSecretKeyExposed = errors.New("publishable key must not be a secret key")
	ErrInvalidCurrency  = errors.New("invalid checkout currency")
	ErrInvalidLimits    = errors.New("invalid checkout amount limits")
)

// Load reads the configuration from the YAML file named by CONFIG_PATH when
// set, otherwise from the environment only.
func Load() (*AppConfig, error) {
	var cfg AppConfig

	var err error
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if strings.HasPrefix(c.Stripe.PublishableKey, "sk_") || strings.HasPrefix(c.Stripe.PublishableKey, "rk_") {
		return ErrSecretKeyExposed
	}

	if err := validator.New().Var(strings.ToUpper(c.Checkout.Currency), "required,iso4217"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, c.Checkout.Currency)
	}
	// amounts are entered with at most two decimal places
	if checkout.CurrencyExponent(c.Checkout.Currency) != 2 {
		return fmt.Errorf("%w: %q has no two-decimal minor unit", ErrInvalidCurrency, c.Checkout.Currency)
	}

	if c.Checkout.MinimumAmount <= 0 || c.Checkout.MaximumAmount < c.Checkout.MinimumAmount {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidLimits, c.Checkout.MinimumAmount, c.Checkout.MaximumAmount)
	}

	if c.Checkout.SessionTTL < MinSessionTTL {
		return fmt.Errorf("%w: session ttl %s", ErrInvalidLimits, c.Checkout.SessionTTL)
	}

	return nil
}
