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
	Identity     IdentityConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Stripe       StripeConfig
	Chain        ChainConfig
	Wallet       WalletConfig
	Internal     InternalConfig
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
	Env          string `envconfig:"KITEA_APP_ENV" required:"true"`
	Port         string `envconfig:"KITEA_APP_PORT" required:"true"`
	SiteURL      string `envconfig:"KITEA_SITE_URL" default:"http://localhost:3000"`
	LogLevel     string `envconfig:"KITEA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KITEA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KITEA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KITEA_DB_DSN"`
	Driver string `envconfig:"KITEA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KITEA_DB_HOST"`
	LegacyPort     int    `envconfig:"KITEA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KITEA_DB_USER"`
	LegacyPassword string `envconfig:"KITEA_DB_PASSWORD"`
	LegacyName     string `envconfig:"KITEA_DB_NAME"`
	LegacySSLMode  string `envconfig:"KITEA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KITEA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KITEA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KITEA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KITEA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KITEA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KITEA_REDIS_ADDR"`
	Password     string        `envconfig:"KITEA_REDIS_PASSWORD"`
	DB           int           `envconfig:"KITEA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KITEA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KITEA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KITEA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KITEA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KITEA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// IdentityConfig holds the shared secret used to verify access tokens issued by the identity provider.
type IdentityConfig struct {
	JWTSecret string `envconfig:"KITEA_IDENTITY_JWT_SECRET" required:"true"`
	Issuer    string `envconfig:"KITEA_IDENTITY_ISSUER"`
	Audience  string `envconfig:"KITEA_IDENTITY_AUDIENCE" default:"authenticated"`
}

type RateLimitConfig struct {
	ScanWindow    time.Duration `envconfig:"KITEA_RATE_LIMIT_SCAN_WINDOW" default:"1m"`
	ScanIPLimit   int           `envconfig:"KITEA_RATE_LIMIT_SCAN_IP_LIMIT" default:"30"`
	ScanUserLimit int           `envconfig:"KITEA_RATE_LIMIT_SCAN_USER_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KITEA_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL  time.Duration `envconfig:"KITEA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookIdempotencyTTL time.Duration `envconfig:"KITEA_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"KITEA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON string `envconfig:"KITEA_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	MintTopic        string `envconfig:"KITEA_PUBSUB_MINT_TOPIC" default:"kitea-mint-requests"`
	MintSubscription string `envconfig:"KITEA_PUBSUB_MINT_SUBSCRIPTION" required:"true"`
	OrdersTopic      string `envconfig:"KITEA_PUBSUB_ORDERS_TOPIC" default:"kitea-orders"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KITEA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KITEA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KITEA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"KITEA_STRIPE_API_KEY"`
	Secret   string `envconfig:"KITEA_STRIPE_WEBHOOK_SECRET"`
	Env      string `envconfig:"KITEA_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"KITEA_STRIPE_CURRENCY" default:"aud"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type ChainConfig struct {
	RPCURL             string        `envconfig:"KITEA_CHAIN_RPC_URL"`
	ChainID            int64         `envconfig:"KITEA_CHAIN_ID" default:"84532"`
	Name               string        `envconfig:"KITEA_CHAIN_NAME" default:"base-sepolia"`
	ContractAddress    string        `envconfig:"KITEA_NFT_CONTRACT_ADDRESS"`
	DeployerPrivateKey string        `envconfig:"KITEA_DEPLOYER_PRIVATE_KEY"`
	FounderTokenID     string        `envconfig:"KITEA_FOUNDER_TOKEN_ID" default:"0"`
	GasLimit           uint64        `envconfig:"KITEA_CHAIN_GAS_LIMIT" default:"0"`
	ReceiptTimeout     time.Duration `envconfig:"KITEA_CHAIN_RECEIPT_TIMEOUT" default:"2m"`
	SignerLockTTL      time.Duration `envconfig:"KITEA_CHAIN_SIGNER_LOCK_TTL" default:"30s"`
}

type WalletConfig struct {
	Salt string `envconfig:"KITEA_WALLET_SALT"`
}

type InternalConfig struct {
	APIKey string `envconfig:"KITEA_INTERNAL_API_KEY"`
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"KITEA_CRON_INTERVAL" default:"15m"`
	PendingSweepBatch    int           `envconfig:"KITEA_CRON_PENDING_SWEEP_BATCH" default:"100"`
	OutboxRetentionDays  int           `envconfig:"KITEA_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	OutboxRetentionFloor int           `envconfig:"KITEA_CRON_OUTBOX_RETENTION_MIN_ATTEMPTS" default:"0"`
	JobTimeout           time.Duration `envconfig:"KITEA_CRON_JOB_TIMEOUT" default:"10m"`
	StaleMintBatch       int           `envconfig:"KITEA_CRON_STALE_MINT_BATCH" default:"50"`
	DLQLookback          time.Duration `envconfig:"KITEA_CRON_DLQ_LOOKBACK" default:"24h"`
	DLQSample            int           `envconfig:"KITEA_CRON_DLQ_SAMPLE" default:"20"`
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
