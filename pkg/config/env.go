package config

// EnvPrefix is passed to envconfig; every key below is also an explicit tag so
// operators can grep for the exact variable name.
const EnvPrefix = "LEAFSHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "LEAFSHOP_APP_ENV"
	EnvPort         = "LEAFSHOP_APP_PORT"
	EnvLogLevel     = "LEAFSHOP_LOG_LEVEL"
	EnvLogWarnStack = "LEAFSHOP_LOG_WARN_STACK"
	EnvServiceKind  = "LEAFSHOP_SERVICE_KIND"

	EnvDBDSN      = "LEAFSHOP_DB_DSN"
	EnvDBDriver   = "LEAFSHOP_DB_DRIVER"
	EnvDBHost     = "LEAFSHOP_DB_HOST"
	EnvDBPort     = "LEAFSHOP_DB_PORT"
	EnvDBUser     = "LEAFSHOP_DB_USER"
	EnvDBPassword = "LEAFSHOP_DB_PASSWORD"
	EnvDBName     = "LEAFSHOP_DB_NAME"
	EnvDBSSLMode  = "LEAFSHOP_DB_SSLMODE"

	EnvRedisURL = "LEAFSHOP_REDIS_URL"

	EnvJWTSecret  = "LEAFSHOP_JWT_SECRET"
	EnvJWTIssuer  = "LEAFSHOP_JWT_ISSUER"
	EnvJWTExpMins = "LEAFSHOP_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite   = "LEAFSHOP_USE_SQLITE"
	EnvAutoMigrate = "LEAFSHOP_AUTO_MIGRATE"

	EnvGCPProjectID           = "LEAFSHOP_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "LEAFSHOP_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub        = "LEAFSHOP_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvBigQueryDataset        = "LEAFSHOP_BIGQUERY_DATASET"
	EnvBigQueryOrderTable     = "LEAFSHOP_BIGQUERY_ORDER_EVENTS_TABLE"
	EnvCheckoutShippingFee    = "LEAFSHOP_CHECKOUT_SHIPPING_FLAT_FEE"
	EnvCheckoutMaxAttempts    = "LEAFSHOP_CHECKOUT_RESERVE_MAX_ATTEMPTS"
	EnvCheckoutLockTTL        = "LEAFSHOP_CHECKOUT_LOCK_TTL"
	EnvCheckoutIdemWindow     = "LEAFSHOP_CHECKOUT_IDEMPOTENCY_WINDOW"
	EnvCheckoutPendingTimeout = "LEAFSHOP_CHECKOUT_PENDING_TIMEOUT"
	EnvAPICORSOrigins         = "LEAFSHOP_API_CORS_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
