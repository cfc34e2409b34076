package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Cashfree     CashfreeConfig
	Payments     PaymentsConfig
	Mail         MailConfig
	Fulfillment  FulfillmentConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.Payments.MaxAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%s must be positive", EnvPaymentsMaxAmount)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string `envconfig:"AHARRAA_APP_ENV" required:"true"`
	Port            string `envconfig:"AHARRAA_APP_PORT" required:"true"`
	LogLevel        string `envconfig:"AHARRAA_LOG_LEVEL" default:"info"`
	LogWarnStack    bool   `envconfig:"AHARRAA_LOG_WARN_STACK" default:"false"`
	FrontendBaseURL string `envconfig:"AHARRAA_FRONTEND_BASE_URL" default:"http://localhost:3000"`
	// MetricsAddr is where background workers expose /metrics. Empty disables it.
	MetricsAddr     string `envconfig:"AHARRAA_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AHARRAA_DB_DSN"`
	Driver string `envconfig:"AHARRAA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AHARRAA_DB_HOST"`
	LegacyPort     int    `envconfig:"AHARRAA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AHARRAA_DB_USER"`
	LegacyPassword string `envconfig:"AHARRAA_DB_PASSWORD"`
	LegacyName     string `envconfig:"AHARRAA_DB_NAME"`
	LegacySSLMode  string `envconfig:"AHARRAA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AHARRAA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AHARRAA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AHARRAA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AHARRAA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AHARRAA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AHARRAA_REDIS_ADDR"`
	Password     string        `envconfig:"AHARRAA_REDIS_PASSWORD"`
	DB           int           `envconfig:"AHARRAA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AHARRAA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AHARRAA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AHARRAA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AHARRAA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AHARRAA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens issued by the identity provider.
type JWTConfig struct {
	Secret            string `envconfig:"AHARRAA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AHARRAA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AHARRAA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AHARRAA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AHARRAA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AHARRAA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"AHARRAA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AHARRAA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"AHARRAA_GCS_BUCKET_NAME"`
	InvoicePrefix string `envconfig:"AHARRAA_GCS_INVOICE_PREFIX" default:"invoices"`
	PublicBaseURL string `envconfig:"AHARRAA_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"AHARRAA_PUBSUB_ORDERS_TOPIC" default:"aharraa-order-events"`
	AnalyticsSubscription string `envconfig:"AHARRAA_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"aharraa-order-analytics"`
}

type BigQueryConfig struct {
	Dataset           string `envconfig:"AHARRAA_BIGQUERY_DATASET" default:"aharraa"`
	OrderEventsTable  string `envconfig:"AHARRAA_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
	InsertMaxAttempts int    `envconfig:"AHARRAA_BIGQUERY_INSERT_MAX_ATTEMPTS" default:"3"`
}

// OutboxConfig drives the publisher loop. IdempotencyTTL bounds how long
// consumers remember processed event ids; Retention is how long published
// rows are kept before the cron deletes them.
type OutboxConfig struct {
	BatchSize      int           `envconfig:"AHARRAA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"AHARRAA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"AHARRAA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"AHARRAA_OUTBOX_IDEMPOTENCY_TTL" default:"720h"`
	Retention      time.Duration `envconfig:"AHARRAA_OUTBOX_RETENTION" default:"168h"`
	PublishTimeout time.Duration `envconfig:"AHARRAA_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

type CashfreeConfig struct {
	Env           string        `envconfig:"AHARRAA_CASHFREE_ENV" default:"sandbox"`
	BaseURL       string        `envconfig:"AHARRAA_CASHFREE_BASE_URL"`
	APIVersion    string        `envconfig:"AHARRAA_CASHFREE_API_VERSION" default:"2022-09-01"`
	ClientID      string        `envconfig:"AHARRAA_CASHFREE_CLIENT_ID"`
	ClientSecret  string        `envconfig:"AHARRAA_CASHFREE_CLIENT_SECRET"`
	WebhookSecret string        `envconfig:"AHARRAA_CASHFREE_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"AHARRAA_CASHFREE_TIMEOUT" default:"10s"`
}

// ResolvedBaseURL returns the explicit base URL or the environment default.
func (c CashfreeConfig) ResolvedBaseURL() string {
	if trimmed := strings.TrimSpace(c.BaseURL); trimmed != "" {
		return strings.TrimRight(trimmed, "/")
	}
	if strings.EqualFold(strings.TrimSpace(c.Env), "production") {
		return "https://api.cashfree.com"
	}
	return "https://sandbox.cashfree.com"
}

type PaymentsConfig struct {
	MaxAmount decimal.Decimal `envconfig:"AHARRAA_PAYMENTS_MAX_AMOUNT" default:"100000"`
	Currency  string          `envconfig:"AHARRAA_PAYMENTS_CURRENCY" default:"INR"`
}

type MailConfig struct {
	Host     string `envconfig:"AHARRAA_MAIL_HOST" default:"smtp.gmail.com"`
	Port     int    `envconfig:"AHARRAA_MAIL_PORT" default:"587"`
	Username string `envconfig:"AHARRAA_MAIL_USERNAME"`
	Password string `envconfig:"AHARRAA_MAIL_PASSWORD"`
	From     string `envconfig:"AHARRAA_MAIL_FROM"`
	Brand    string `envconfig:"AHARRAA_MAIL_BRAND" default:"Aharraa"`
}

type FulfillmentConfig struct {
	StepTimeout time.Duration `envconfig:"AHARRAA_FULFILLMENT_STEP_TIMEOUT" default:"20s"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"AHARRAA_CRON_INTERVAL" default:"5m"`
	LockTTL        time.Duration `envconfig:"AHARRAA_CRON_LOCK_TTL" default:"4m"`
	ReconcileGrace time.Duration `envconfig:"AHARRAA_CRON_RECONCILE_GRACE" default:"10m"`
	AbandonAfter   time.Duration `envconfig:"AHARRAA_CRON_ABANDON_AFTER" default:"1h"`
	BatchSize      int           `envconfig:"AHARRAA_CRON_BATCH_SIZE" default:"100"`
	RetentionEvery time.Duration `envconfig:"AHARRAA_CRON_RETENTION_EVERY" default:"24h"`
}

type RateLimitConfig struct {
	VerifyWindow time.Duration `envconfig:"AHARRAA_RATE_LIMIT_VERIFY_WINDOW" default:"1m"`
	VerifyLimit  int64         `envconfig:"AHARRAA_RATE_LIMIT_VERIFY_LIMIT" default:"30"`
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
