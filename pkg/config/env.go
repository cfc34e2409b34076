package config

const (
	EnvPrefix = "AHARRAA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "AHARRAA_APP_ENV"
	EnvPort     = "AHARRAA_APP_PORT"
	EnvLogLevel = "AHARRAA_LOG_LEVEL"

	EnvDBDSN  = "AHARRAA_DB_DSN"
	EnvDBHost = "AHARRAA_DB_HOST"
	EnvDBUser = "AHARRAA_DB_USER"
	EnvDBName = "AHARRAA_DB_NAME"

	EnvRedisURL = "AHARRAA_REDIS_URL"

	EnvJWTSecret = "AHARRAA_JWT_SECRET"
	EnvJWTIssuer = "AHARRAA_JWT_ISSUER"

	EnvGCPProjectID = "AHARRAA_GCP_PROJECT_ID"
	EnvGCSBucket    = "AHARRAA_GCS_BUCKET_NAME"

	EnvCashfreeClientID      = "AHARRAA_CASHFREE_CLIENT_ID"
	EnvCashfreeClientSecret  = "AHARRAA_CASHFREE_CLIENT_SECRET"
	EnvCashfreeWebhookSecret = "AHARRAA_CASHFREE_WEBHOOK_SECRET"
	EnvCashfreeTimeout       = "AHARRAA_CASHFREE_TIMEOUT"

	EnvPaymentsMaxAmount = "AHARRAA_PAYMENTS_MAX_AMOUNT"

	EnvFulfillmentStepTimeout = "AHARRAA_FULFILLMENT_STEP_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
