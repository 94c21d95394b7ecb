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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Checkout     CheckoutConfig
	Cron         CronConfig
	API          APIConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEAFSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"LEAFSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEAFSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEAFSHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// ServiceConfig identifies the running binary. Background workers expose
// /metrics on MetricsAddr when it is set.
type ServiceConfig struct {
	Kind        string `envconfig:"LEAFSHOP_SERVICE_KIND" default:"api"`
	MetricsAddr string `envconfig:"LEAFSHOP_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"LEAFSHOP_DB_DSN"`
	Driver string `envconfig:"LEAFSHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEAFSHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"LEAFSHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEAFSHOP_DB_USER"`
	LegacyPassword string `envconfig:"LEAFSHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEAFSHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEAFSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEAFSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEAFSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEAFSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEAFSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"LEAFSHOP_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEAFSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEAFSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"LEAFSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEAFSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEAFSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEAFSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEAFSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEAFSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEAFSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LEAFSHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LEAFSHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LEAFSHOP_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LEAFSHOP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LEAFSHOP_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"LEAFSHOP_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LEAFSHOP_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LEAFSHOP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LEAFSHOP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"LEAFSHOP_PUBSUB_ORDERS_TOPIC" default:"leafshop-order-events"`
	OrdersSubscription string `envconfig:"LEAFSHOP_PUBSUB_ORDERS_SUBSCRIPTION" default:"leafshop-order-analytics"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"LEAFSHOP_BIGQUERY_DATASET" default:"leafshop"`
	OrderEventsTable string `envconfig:"LEAFSHOP_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
	CreateTable      bool   `envconfig:"LEAFSHOP_BIGQUERY_CREATE_TABLE" default:"false"`
	BatchSize        int    `envconfig:"LEAFSHOP_BIGQUERY_BATCH_SIZE" default:"1"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LEAFSHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LEAFSHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LEAFSHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CheckoutConfig struct {
	ShippingFlatFee    decimal.Decimal `envconfig:"LEAFSHOP_CHECKOUT_SHIPPING_FLAT_FEE" default:"10.00"`
	ReserveMaxAttempts int             `envconfig:"LEAFSHOP_CHECKOUT_RESERVE_MAX_ATTEMPTS" default:"3"`
	LockTTL            time.Duration   `envconfig:"LEAFSHOP_CHECKOUT_LOCK_TTL" default:"30s"`
	IdempotencyWindow  time.Duration   `envconfig:"LEAFSHOP_CHECKOUT_IDEMPOTENCY_WINDOW" default:"24h"`
	PendingTimeout     time.Duration   `envconfig:"LEAFSHOP_CHECKOUT_PENDING_TIMEOUT" default:"15m"`
	SweepBatchSize     int             `envconfig:"LEAFSHOP_CHECKOUT_SWEEP_BATCH_SIZE" default:"50"`
	IdempotencyKeyTTL  time.Duration   `envconfig:"LEAFSHOP_CHECKOUT_IDEMPOTENCY_KEY_TTL" default:"24h"`
}

func (c CheckoutConfig) validate() error {
	if c.ShippingFlatFee.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvCheckoutShippingFee)
	}
	if c.ReserveMaxAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvCheckoutMaxAttempts)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutLockTTL)
	}
	return nil
}

// APIConfig holds HTTP edge settings. A zero rate limit disables that counter.
type APIConfig struct {
	CORSOrigins         []string      `envconfig:"LEAFSHOP_API_CORS_ORIGINS" default:"http://localhost:3000"`
	CheckoutRateWindow  time.Duration `envconfig:"LEAFSHOP_API_CHECKOUT_RATE_WINDOW" default:"1m"`
	CheckoutIPLimit     int           `envconfig:"LEAFSHOP_API_CHECKOUT_IP_LIMIT" default:"30"`
	CheckoutOwnerLimit  int           `envconfig:"LEAFSHOP_API_CHECKOUT_OWNER_LIMIT" default:"10"`
	ShutdownGracePeriod time.Duration `envconfig:"LEAFSHOP_API_SHUTDOWN_GRACE" default:"10s"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"LEAFSHOP_CRON_INTERVAL" default:"1m"`
	LockTTL         time.Duration `envconfig:"LEAFSHOP_CRON_LOCK_TTL" default:"5m"`
	JobTimeout      time.Duration `envconfig:"LEAFSHOP_CRON_JOB_TIMEOUT" default:"2m"`
	OutboxRetention time.Duration `envconfig:"LEAFSHOP_CRON_OUTBOX_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.Driver = "sqlite"
		db.DSN = "file:leafshop.db?cache=shared"
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
