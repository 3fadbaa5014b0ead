package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Features   FeatureFlagsConfig
	Settlement SettlementConfig
	Shipping   ShippingConfig
	Payments   PaymentsConfig
	Stripe     StripeConfig
	Outbox     OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.Features.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var errs error
	if !c.Settlement.PayoutTrigger.IsValid() {
		errs = multierr.Append(errs, fmt.Errorf("%s must be one of release, delivery, both", EnvPayoutTrigger))
	}
	if c.Settlement.TaxBPS < 0 || c.Settlement.TaxBPS > 10000 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be between 0 and 10000", EnvTaxBPS))
	}
	if c.Settlement.CommissionBPS < 0 || c.Settlement.CommissionBPS > 10000 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be between 0 and 10000", EnvCommissionBPS))
	}
	if c.Settlement.ProcessingBPS < 0 || c.Settlement.ProcessingBPS > 10000 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be between 0 and 10000", EnvProcessingBPS))
	}
	if c.Settlement.ProcessingFixedCents < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must not be negative", EnvProcessingFixedCents))
	}
	if len(strings.TrimSpace(c.Settlement.Currency)) != 3 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be a three letter currency code", EnvCurrency))
	}
	if c.Payments.Provider == PaymentProviderStripe && strings.TrimSpace(c.Stripe.APIKey) == "" {
		errs = multierr.Append(errs, fmt.Errorf("%s is required when %s=stripe", EnvStripeAPIKey, EnvPaymentsProvider))
	}
	if c.App.IsProd() && c.WebhookSigningSecret() == "" {
		errs = multierr.Append(errs, fmt.Errorf("a webhook signing secret (%s or %s) is required in prod", EnvStripeSecret, EnvPaymentsWebhookSecret))
	}
	return errs
}

// WebhookSigningSecret returns the secret gateway webhooks are verified with.
// Stripe's own secret wins when the Stripe provider is active.
func (c *Config) WebhookSigningSecret() string {
	if c.Payments.Provider == PaymentProviderStripe {
		if secret := strings.TrimSpace(c.Stripe.Secret); secret != "" {
			return secret
		}
	}
	return strings.TrimSpace(c.Payments.WebhookSecret)
}

type AppConfig struct {
	Env          string   `envconfig:"SETTLEMENT_APP_ENV" required:"true"`
	Port         string   `envconfig:"SETTLEMENT_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"SETTLEMENT_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"SETTLEMENT_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"SETTLEMENT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"SETTLEMENT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SETTLEMENT_DB_DSN"`
	Driver string `envconfig:"SETTLEMENT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SETTLEMENT_DB_HOST"`
	Port     int    `envconfig:"SETTLEMENT_DB_PORT" default:"5432"`
	User     string `envconfig:"SETTLEMENT_DB_USER"`
	Password string `envconfig:"SETTLEMENT_DB_PASSWORD"`
	Name     string `envconfig:"SETTLEMENT_DB_NAME"`
	SSLMode  string `envconfig:"SETTLEMENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SETTLEMENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SETTLEMENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SETTLEMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SETTLEMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SETTLEMENT_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SETTLEMENT_REDIS_URL"`
	Address      string        `envconfig:"SETTLEMENT_REDIS_ADDR"`
	Password     string        `envconfig:"SETTLEMENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SETTLEMENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SETTLEMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SETTLEMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SETTLEMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SETTLEMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SETTLEMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SETTLEMENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SETTLEMENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SETTLEMENT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"SETTLEMENT_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"SETTLEMENT_SQLITE_PATH" default:"settlement.db"`
	AutoMigrate bool   `envconfig:"SETTLEMENT_AUTO_MIGRATE" default:"false"`
}

type SettlementConfig struct {
	Currency             string        `envconfig:"SETTLEMENT_CURRENCY" default:"KES"`
	TaxBPS               int64         `envconfig:"SETTLEMENT_TAX_BPS" default:"1600"`
	CommissionBPS        int64         `envconfig:"SETTLEMENT_COMMISSION_BPS" default:"500"`
	ProcessingBPS        int64         `envconfig:"SETTLEMENT_PROCESSING_BPS" default:"290"`
	ProcessingFixedCents int64         `envconfig:"SETTLEMENT_PROCESSING_FIXED_CENTS" default:"30"`
	PayoutTrigger        PayoutTrigger `envconfig:"SETTLEMENT_PAYOUT_TRIGGER" default:"both"`
}

// PayoutTrigger selects which lifecycle events settle an order.
type PayoutTrigger string

const (
	PayoutTriggerRelease  PayoutTrigger = "release"
	PayoutTriggerDelivery PayoutTrigger = "delivery"
	PayoutTriggerBoth     PayoutTrigger = "both"
)

func (p PayoutTrigger) IsValid() bool {
	switch p {
	case PayoutTriggerRelease, PayoutTriggerDelivery, PayoutTriggerBoth:
		return true
	}
	return false
}

// OnRelease reports whether an escrow release settles the order.
func (p PayoutTrigger) OnRelease() bool {
	return p == PayoutTriggerRelease || p == PayoutTriggerBoth
}

// OnDelivery reports whether reaching delivered settles the order.
func (p PayoutTrigger) OnDelivery() bool {
	return p == PayoutTriggerDelivery || p == PayoutTriggerBoth
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"SETTLEMENT_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"SETTLEMENT_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"SETTLEMENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	StreamMaxLen   int64  `envconfig:"SETTLEMENT_OUTBOX_STREAM_MAXLEN" default:"100000"`
	MetricsAddr    string `envconfig:"SETTLEMENT_OUTBOX_METRICS_ADDR" default:":9091"`
}

type ShippingConfig struct {
	CacheTTL time.Duration `envconfig:"SETTLEMENT_SHIPPING_CACHE_TTL" default:"10m"`
}

const (
	PaymentProviderStripe = "stripe"
	PaymentProviderNoop   = "noop"
)

type PaymentsConfig struct {
	Provider         string        `envconfig:"SETTLEMENT_PAYMENTS_PROVIDER" default:"noop"`
	WebhookSecret    string        `envconfig:"SETTLEMENT_PAYMENTS_WEBHOOK_SECRET"`
	BreakerTimeout   time.Duration `envconfig:"SETTLEMENT_PAYMENTS_BREAKER_TIMEOUT" default:"30s"`
	BreakerThreshold uint32        `envconfig:"SETTLEMENT_PAYMENTS_BREAKER_THRESHOLD" default:"5"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SETTLEMENT_STRIPE_API_KEY"`
	Secret string `envconfig:"SETTLEMENT_STRIPE_SECRET"`
	Env    string `envconfig:"SETTLEMENT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
