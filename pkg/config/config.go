package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Printful     PrintfulConfig
	Sendgrid     SendgridConfig
	Webhooks     WebhooksConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string `envconfig:"DR_APP_ENV" required:"true"`
	Port          string `envconfig:"DR_APP_PORT" required:"true"`
	PublicBaseURL string `envconfig:"DR_PUBLIC_BASE_URL" default:"http://localhost:3000"`
	LogLevel      string `envconfig:"DR_LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"DR_LOG_FORMAT" default:"json"`
	LogWarnStack  bool   `envconfig:"DR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"DR_DB_DSN"`

	LegacyHost     string `envconfig:"DR_DB_HOST"`
	LegacyPort     int    `envconfig:"DR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DR_DB_USER"`
	LegacyPassword string `envconfig:"DR_DB_PASSWORD"`
	LegacyName     string `envconfig:"DR_DB_NAME"`
	LegacySSLMode  string `envconfig:"DR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DR_REDIS_URL"`
	Address      string        `envconfig:"DR_REDIS_ADDR"`
	Password     string        `envconfig:"DR_REDIS_PASSWORD"`
	DB           int           `envconfig:"DR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the tokens minted by the identity provider.
type JWTConfig struct {
	Secret string `envconfig:"DR_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"DR_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DR_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"DR_STRIPE_API_KEY"`
	Secret string `envconfig:"DR_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"DR_STRIPE_ENV" default:"test"`
	// ShippingCountries limits the address collected on hosted checkout.
	ShippingCountries []string `envconfig:"DR_STRIPE_SHIPPING_COUNTRIES" default:"US"`
	// ShippingRates maps Printful methods to Stripe rate ids, e.g. STANDARD:shr_1,EXPRESS:shr_2.
	ShippingRates map[string]string `envconfig:"DR_STRIPE_SHIPPING_RATES"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PrintfulConfig struct {
	APIKey                string        `envconfig:"DR_PRINTFUL_API_KEY"`
	StoreID               string        `envconfig:"DR_PRINTFUL_STORE_ID"`
	BaseURL               string        `envconfig:"DR_PRINTFUL_BASE_URL" default:"https://api.printful.com"`
	WebhookSecret         string        `envconfig:"DR_PRINTFUL_WEBHOOK_SECRET"`
	Timeout               time.Duration `envconfig:"DR_PRINTFUL_TIMEOUT" default:"15s"`
	ConfirmOrders         bool          `envconfig:"DR_PRINTFUL_CONFIRM_ORDERS" default:"false"`
	BreakerFailures       uint32        `envconfig:"DR_PRINTFUL_BREAKER_FAILURES" default:"5"`
	BreakerOpenTimeout    time.Duration `envconfig:"DR_PRINTFUL_BREAKER_OPEN_TIMEOUT" default:"30s"`
	BreakerHalfOpenProbes uint32        `envconfig:"DR_PRINTFUL_BREAKER_HALF_OPEN_PROBES" default:"1"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"DR_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"DR_SENDGRID_FROM_EMAIL" default:"hello@digitalrevolution.org"`
	FromName    string `envconfig:"DR_SENDGRID_FROM_NAME" default:"Digital Revolution"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"DR_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type CronConfig struct {
	Interval               time.Duration `envconfig:"DR_CRON_INTERVAL" default:"15m"`
	FulfillmentRetryBatch  int           `envconfig:"DR_CRON_FULFILLMENT_RETRY_BATCH" default:"25"`
	FulfillmentRetryMinAge time.Duration `envconfig:"DR_CRON_FULFILLMENT_RETRY_MIN_AGE" default:"10m"`
	SubscriptionBatch      int           `envconfig:"DR_CRON_SUBSCRIPTION_BATCH" default:"100"`
	SubscriptionLimit      int           `envconfig:"DR_CRON_SUBSCRIPTION_LIMIT" default:"1000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
