// Package config holds the application's configuration settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// AppConfig defines environment-based configuration for the application.
type AppConfig struct {
	Http      HttpConfig      `env-prefix:"PAYMENTS_HTTP_" json:"http" yaml:"http"`
	Logger    LoggerConfig    `env-prefix:"PAYMENTS_LOG_" json:"logger" yaml:"logger"`
	Callbacks CallbacksConfig `env-prefix:"PAYMENTS_CALLBACKS_" json:"callbacks" yaml:"callbacks"`
	Stripe    StripeConfig    `env-prefix:"STRIPE_" json:"stripe" yaml:"stripe"`
	PayPal    PaypalConfig    `env-prefix:"PAYPAL_" json:"paypal" yaml:"paypal"`
	Razorpay  RazorpayConfig  `env-prefix:"RAZORPAY_" json:"razorpay" yaml:"razorpay"`
	Paystack  PaystackConfig  `env-prefix:"PAYSTACK_" json:"paystack" yaml:"paystack"`
	Cryptomus CryptomusConfig `env-prefix:"CRYPTOMUS_" json:"cryptomus" yaml:"cryptomus"`
	Payeer    PayeerConfig    `env-prefix:"PAYEER_" json:"payeer" yaml:"payeer"`
	VNPay     VNPayConfig     `env-prefix:"VNPAY_" json:"vnpay" yaml:"vnpay"`
	Zarinpal  ZarinpalConfig  `env-prefix:"ZARINPAL_" json:"zarinpal" yaml:"zarinpal"`
}

type HttpConfig struct {
	Addr            string        `env:"ADDR" env-default:":8080" validate:"required" json:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" env-default:"5s" validate:"gte=10ms,lte=1m" json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" env-default:"15s" validate:"gte=10ms,lte=1m" json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s" validate:"gte=10ms,lte=1m" json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" env-default:"65536" validate:"min=1024" json:"max_body_bytes" yaml:"max_body_bytes"`
	// NodeID distinguishes instances in generated order ids.
	NodeID int64 `env:"NODE_ID" env-default:"0" validate:"min=0,max=1023" json:"node_id" yaml:"node_id"`
}

type LoggerConfig struct {
	Level      string `env:"LEVEL" env-default:"info" validate:"oneof=debug info warn error" json:"level" yaml:"level"`
	Filename   string `env:"FILENAME" json:"filename" yaml:"filename"`
	MaxSize    int    `env:"MAX_SIZE" env-default:"100" validate:"min=1,max=1000" json:"max_size" yaml:"max_size"`
	MaxBackups int    `env:"MAX_BACKUPS" env-default:"3" validate:"min=0,max=20" json:"max_backups" yaml:"max_backups"`
	MaxAge     int    `env:"MAX_AGE" env-default:"28" validate:"min=1,max=365" json:"max_age" yaml:"max_age"`
}

// CallbacksConfig bounds the memory of already fulfilled payments used to
// absorb duplicate provider deliveries.
type CallbacksConfig struct {
	DedupeSize int           `env:"DEDUPE_SIZE" env-default:"10000" validate:"min=1" json:"dedupe_size" yaml:"dedupe_size"`
	DedupeTTL  time.Duration `env:"DEDUPE_TTL" env-default:"72h" validate:"gt=0s" json:"dedupe_ttl" yaml:"dedupe_ttl"`
}

// ProviderCommon is embedded in every provider section. Credentials are not
// validated here: adapters validate them on construction so that a disabled
// provider never blocks startup. Boolean flags carry no env-default: cleanenv
// would apply it over a false read from a config file.
type ProviderCommon struct {
	Enabled bool          `env:"ENABLED" json:"enabled" yaml:"enabled"`
	Sandbox bool          `env:"SANDBOX" json:"sandbox" yaml:"sandbox"`
	BaseURL string        `env:"BASE_URL" json:"base_url" yaml:"base_url"`
	Timeout time.Duration `env:"TIMEOUT" json:"timeout" yaml:"timeout" env-default:"15s"`
}

type StripeConfig struct {
	ProviderCommon `yaml:",inline"`
	SecretKey     string `env:"SECRET_KEY" json:"secret_key" yaml:"secret_key" validate:"required"`
	WebhookSecret string `env:"WEBHOOK_SECRET" json:"webhook_secret" yaml:"webhook_secret" validate:"required"`
}

type PaypalConfig struct {
	ProviderCommon `yaml:",inline"`
	ClientID  string `env:"CLIENT_ID" json:"client_id" yaml:"client_id" validate:"required"`
	SecretKey string `env:"SECRET_KEY" json:"secret_key" yaml:"secret_key" validate:"required"`
	WebhookID string `env:"WEBHOOK_ID" json:"webhook_id" yaml:"webhook_id" validate:"required"`
}

type RazorpayConfig struct {
	ProviderCommon `yaml:",inline"`
	KeyID         string `env:"KEY_ID" json:"key_id" yaml:"key_id" validate:"required"`
	KeySecret     string `env:"KEY_SECRET" json:"key_secret" yaml:"key_secret" validate:"required"`
	WebhookSecret string `env:"WEBHOOK_SECRET" json:"webhook_secret" yaml:"webhook_secret" validate:"required"`
}

type PaystackConfig struct {
	ProviderCommon `yaml:",inline"`
	SecretKey string `env:"SECRET_KEY" json:"secret_key" yaml:"secret_key" validate:"required"`
}

type CryptomusConfig struct {
	ProviderCommon `yaml:",inline"`
	MerchantID string `env:"MERCHANT_ID" json:"merchant_id" yaml:"merchant_id" validate:"required"`
	APIKey     string `env:"API_KEY" json:"api_key" yaml:"api_key" validate:"required"`
}

type PayeerConfig struct {
	ProviderCommon `yaml:",inline"`
	Account   string `env:"ACCOUNT" json:"account" yaml:"account" validate:"required"`
	APIID     string `env:"API_ID" json:"api_id" yaml:"api_id" validate:"required"`
	APIPass   string `env:"API_PASS" json:"api_pass" yaml:"api_pass" validate:"required"`
	ShopID    string `env:"SHOP_ID" json:"shop_id" yaml:"shop_id" validate:"required"`
	SecretKey string `env:"SECRET_KEY" json:"secret_key" yaml:"secret_key" validate:"required"`
}

type VNPayConfig struct {
	ProviderCommon `yaml:",inline"`
	TmnCode    string `env:"TMN_CODE" json:"tmn_code" yaml:"tmn_code" validate:"required"`
	HashSecret string `env:"HASH_SECRET" json:"hash_secret" yaml:"hash_secret" validate:"required"`
	Version    string `env:"VERSION" json:"version" yaml:"version" env-default:"2.1.0"`
	Locale     string `env:"LOCALE" json:"locale" yaml:"locale" env-default:"vn"`
}

type ZarinpalConfig struct {
	ProviderCommon `yaml:",inline"`
	MerchantID string `env:"MERCHANT_ID" json:"merchant_id" yaml:"merchant_id" validate:"required"`
	// CallbackSecret signs the parameters added to the callback URL.
	CallbackSecret string `env:"CALLBACK_SECRET" json:"callback_secret" yaml:"callback_secret" validate:"required"`
}

// Load reads the configuration from the environment, or from the file named
// by CONFIG_PATH when it is set, and validates it.
func Load() (*AppConfig, error) {
	const op = "config.Load"

	var cfg AppConfig
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: read config %s: %w", op, path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: read env: %w", op, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate checks the application level settings. Provider sections are
// left to the adapters.
func Validate(cfg *AppConfig) error {
	validate := validator.New()
	for _, section := range []any{&cfg.Http, &cfg.Logger, &cfg.Callbacks} {
		if err := validate.Struct(section); err != nil {
			var validationErrs validator.ValidationErrors
			if !errors.As(err, &validationErrs) {
				return fmt.Errorf("config validation: %w", err)
			}
			msgs := make([]string, 0, len(validationErrs))
			for _, ve := range validationErrs {
				msgs = append(msgs, fmt.Sprintf("%s=%v must satisfy '%s'", ve.Namespace(), ve.Value(), ve.Tag()))
			}
			return fmt.Errorf("config validation: %s", strings.Join(msgs, "; "))
		}
	}
	return nil
}
