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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Pix          PixConfig
	Stripe       StripeConfig
	RateLimit    RateLimitConfig
	Reconcile    ReconcileConfig
	Cron         CronConfig
	Outbox       OutboxConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Outbox.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"HYDROFARM_APP_ENV" required:"true"`
	Port         string   `envconfig:"HYDROFARM_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"HYDROFARM_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"HYDROFARM_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"HYDROFARM_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"HYDROFARM_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HYDROFARM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HYDROFARM_DB_DSN"`
	Driver string `envconfig:"HYDROFARM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HYDROFARM_DB_HOST"`
	LegacyPort     int    `envconfig:"HYDROFARM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HYDROFARM_DB_USER"`
	LegacyPassword string `envconfig:"HYDROFARM_DB_PASSWORD"`
	LegacyName     string `envconfig:"HYDROFARM_DB_NAME"`
	LegacySSLMode  string `envconfig:"HYDROFARM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HYDROFARM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HYDROFARM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HYDROFARM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HYDROFARM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"HYDROFARM_DB_SLOW_QUERY" default:"200ms"`
	TxRetries       int           `envconfig:"HYDROFARM_DB_TX_RETRIES" default:"3"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HYDROFARM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HYDROFARM_REDIS_ADDR"`
	Password     string        `envconfig:"HYDROFARM_REDIS_PASSWORD"`
	DB           int           `envconfig:"HYDROFARM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HYDROFARM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HYDROFARM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HYDROFARM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HYDROFARM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HYDROFARM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HYDROFARM_AUTO_MIGRATE" default:"false"`
}

// PixConfig holds the instant-payment provider credentials. The client
// certificate either comes from CertPath/KeyPath or from the uploaded bundle
// referenced by the pix_certificate setting.
type PixConfig struct {
	BaseURL         string        `envconfig:"HYDROFARM_PIX_BASE_URL" default:"https://pix-h.api.efipay.com.br"`
	ClientID        string        `envconfig:"HYDROFARM_PIX_CLIENT_ID"`
	ClientSecret    string        `envconfig:"HYDROFARM_PIX_CLIENT_SECRET"`
	CertPath        string        `envconfig:"HYDROFARM_PIX_CERT_PATH"`
	KeyPath         string        `envconfig:"HYDROFARM_PIX_KEY_PATH"`
	Key             string        `envconfig:"HYDROFARM_PIX_KEY"`
	ChargeExpiry    time.Duration `envconfig:"HYDROFARM_PIX_CHARGE_EXPIRY" default:"1h"`
	WebhookHMAC     string        `envconfig:"HYDROFARM_PIX_WEBHOOK_HMAC"`
	RequestTimeout  time.Duration `envconfig:"HYDROFARM_PIX_REQUEST_TIMEOUT" default:"15s"`
	CertFromStorage bool          `envconfig:"HYDROFARM_PIX_CERT_FROM_STORAGE" default:"false"`
}

// Enabled reports whether enough credentials exist to talk to the provider.
func (p PixConfig) Enabled() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.ClientSecret) != ""
}

type StripeConfig struct {
	APIKey string `envconfig:"HYDROFARM_STRIPE_API_KEY"`
	Secret string `envconfig:"HYDROFARM_STRIPE_SECRET"`
	Env    string `envconfig:"HYDROFARM_STRIPE_ENV" default:"test"`

	WebhookTolerance time.Duration `envconfig:"HYDROFARM_STRIPE_WEBHOOK_TOLERANCE" default:"5m"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type RateLimitConfig struct {
	Backend       string  `envconfig:"HYDROFARM_RATE_LIMIT_BACKEND" default:"redis"`
	RatePerSecond float64 `envconfig:"HYDROFARM_RATE_LIMIT_RPS" default:"1"`
	Burst         int     `envconfig:"HYDROFARM_RATE_LIMIT_BURST" default:"20"`
}

type ReconcileConfig struct {
	PollInterval   time.Duration `envconfig:"HYDROFARM_RECONCILE_POLL_INTERVAL" default:"1m"`
	PollLookback   time.Duration `envconfig:"HYDROFARM_RECONCILE_POLL_LOOKBACK" default:"48h"`
	PollBatchSize  int           `envconfig:"HYDROFARM_RECONCILE_POLL_BATCH_SIZE" default:"100"`
	PollWorkers    int           `envconfig:"HYDROFARM_RECONCILE_POLL_WORKERS" default:"4"`
	IdempotencyTTL time.Duration `envconfig:"HYDROFARM_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type CronConfig struct {
	LockTTL            time.Duration `envconfig:"HYDROFARM_CRON_LOCK_TTL" default:"55s"`
	OutboxRetentionDay int           `envconfig:"HYDROFARM_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"HYDROFARM_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"HYDROFARM_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"HYDROFARM_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Transport      string `envconfig:"HYDROFARM_OUTBOX_TRANSPORT" default:"pubsub"`
}

func (o OutboxConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.Transport)) {
	case OutboxTransportPubSub, OutboxTransportKafka:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvOutboxTransport, OutboxTransportPubSub, OutboxTransportKafka)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"HYDROFARM_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"HYDROFARM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"HYDROFARM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	CertBucket string `envconfig:"HYDROFARM_GCS_CERT_BUCKET"`
}

type PubSubConfig struct {
	PaymentsTopic string `envconfig:"HYDROFARM_PUBSUB_PAYMENTS_TOPIC" default:"hf-payment-events"`
	StockTopic    string `envconfig:"HYDROFARM_PUBSUB_STOCK_TOPIC" default:"hf-stock-events"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"HYDROFARM_KAFKA_BROKERS"`
	Topic        string        `envconfig:"HYDROFARM_KAFKA_TOPIC" default:"hydrofarm.payment-events"`
	WriteTimeout time.Duration `envconfig:"HYDROFARM_KAFKA_WRITE_TIMEOUT" default:"10s"`
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
