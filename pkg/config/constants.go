package config

const (
	EnvPrefix = "HYDROFARM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "HYDROFARM_APP_ENV"
	EnvPort     = "HYDROFARM_APP_PORT"
	EnvLogLevel = "HYDROFARM_LOG_LEVEL"

	EnvDBDSN  = "HYDROFARM_DB_DSN"
	EnvDBHost = "HYDROFARM_DB_HOST"
	EnvDBUser = "HYDROFARM_DB_USER"
	EnvDBName = "HYDROFARM_DB_NAME"

	EnvRedisURL = "HYDROFARM_REDIS_URL"

	EnvPixBaseURL      = "HYDROFARM_PIX_BASE_URL"
	EnvPixClientID     = "HYDROFARM_PIX_CLIENT_ID"
	EnvPixClientSecret = "HYDROFARM_PIX_CLIENT_SECRET"
	EnvPixCertPath     = "HYDROFARM_PIX_CERT_PATH"
	EnvPixKeyPath      = "HYDROFARM_PIX_KEY_PATH"
	EnvPixKey          = "HYDROFARM_PIX_KEY"
	EnvPixWebhookHMAC  = "HYDROFARM_PIX_WEBHOOK_HMAC"

	EnvStripeAPIKey = "HYDROFARM_STRIPE_API_KEY"
	EnvStripeSecret = "HYDROFARM_STRIPE_SECRET"
	EnvStripeEnv    = "HYDROFARM_STRIPE_ENV"

	EnvRateLimitBackend = "HYDROFARM_RATE_LIMIT_BACKEND"
	EnvOutboxTransport  = "HYDROFARM_OUTBOX_TRANSPORT"

	EnvGCPProjectID       = "HYDROFARM_GCP_PROJECT_ID"
	EnvGCSCertBucket      = "HYDROFARM_GCS_CERT_BUCKET"
	EnvPubSubPaymentTopic = "HYDROFARM_PUBSUB_PAYMENTS_TOPIC"
	EnvKafkaBrokers       = "HYDROFARM_KAFKA_BROKERS"
	EnvKafkaTopic         = "HYDROFARM_KAFKA_TOPIC"
)

const (
	OutboxTransportPubSub = "pubsub"
	OutboxTransportKafka  = "kafka"

	RateLimitBackendRedis = "redis"
	RateLimitBackendLocal = "local"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
