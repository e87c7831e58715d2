package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Signing      SigningConfig
	AWS          AWSConfig
	Gateway      GatewayConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. KeyCacheTTLSeconds bounds how
// long a fetched public key is reused.
type RedisConfig struct {
	Addr               string
	Password           string
	DB                 int
	KeyCacheTTLSeconds int
}

// LoggerConfig configures logging behavior. Format is "json" or "console".
type LoggerConfig struct {
	Level  string
	Format string
}

// SigningConfig identifies the keys used to mint and check tokens.
type SigningConfig struct {
	KeyID string
	// PrivateKeyFile selects a local PEM signer instead of KMS.
	PrivateKeyFile string
	// PublicKeyFile pins the public half of KeyID so lookups skip KMS.
	PublicKeyFile string
	// ReceiptPublicKey is the vendor receipt key in PEM form.
	ReceiptPublicKey string
	Partition        string
}

// AWSConfig configures the KMS client.
type AWSConfig struct {
	Region      string
	KMSEndpoint string
}

// GatewayConfig describes the API stage used to build method ARNs for
// in-process authorization.
type GatewayConfig struct {
	Region    string
	AccountID string
	APIID     string
	Stage     string
}

// NotificationConfig drives the schedule dispatcher and expiry sweep.
type NotificationConfig struct {
	WebhookURL          string
	Message             string
	SlotSeconds         int
	PurgeIntervalSecond int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	receiptKey, err := loadReceiptKey()
	if err != nil {
		return nil, err
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "entitlement-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:               getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:           os.Getenv("REDIS_PASSWORD"),
			DB:                 redisDB,
			KeyCacheTTLSeconds: getEnvAsInt("KEY_CACHE_TTL_SECONDS", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Signing: SigningConfig{
			KeyID:            os.Getenv("SIGNING_KEY_ID"),
			PrivateKeyFile:   os.Getenv("SIGNING_PRIVATE_KEY_FILE"),
			PublicKeyFile:    os.Getenv("SIGNING_PUBLIC_KEY_FILE"),
			ReceiptPublicKey: receiptKey,
			Partition:        getEnv("PARTITION", "default"),
		},
		AWS: AWSConfig{
			Region:      getEnv("AWS_REGION", "us-east-1"),
			KMSEndpoint: os.Getenv("KMS_ENDPOINT"),
		},
		Gateway: GatewayConfig{
			Region:    getEnv("GATEWAY_REGION", "us-east-1"),
			AccountID: getEnv("GATEWAY_ACCOUNT_ID", "000000000000"),
			APIID:     getEnv("GATEWAY_API_ID", "local"),
			Stage:     getEnv("GATEWAY_STAGE", "dev"),
		},
		Notification: NotificationConfig{
			WebhookURL:          getEnv("NOTIFY_WEBHOOK_URL", ""),
			Message:             getEnv("NOTIFY_MESSAGE", "test message"),
			SlotSeconds:         getEnvAsInt("NOTIFY_SLOT_SECONDS", 300),
			PurgeIntervalSecond: getEnvAsInt("PURGE_INTERVAL_SECONDS", 3600),
		},
	}

	if cfg.Signing.KeyID == "" {
		return nil, fmt.Errorf("SIGNING_KEY_ID is required")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// KeyCacheTTL returns how long public keys stay cached.
func (r RedisConfig) KeyCacheTTL() time.Duration {
	if r.KeyCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(r.KeyCacheTTLSeconds) * time.Second
}

// Slot returns the notification slot length.
func (n NotificationConfig) Slot() time.Duration {
	if n.SlotSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(n.SlotSeconds) * time.Second
}

// PurgeInterval returns how often expired entitlements are swept.
func (n NotificationConfig) PurgeInterval() time.Duration {
	if n.PurgeIntervalSecond <= 0 {
		return time.Hour
	}
	return time.Duration(n.PurgeIntervalSecond) * time.Second
}

// loadReceiptKey prefers the inline RECEIPT_PUBLIC_KEY over RECEIPT_PUBLIC_KEY_FILE.
func loadReceiptKey() (string, error) {
	if key := os.Getenv("RECEIPT_PUBLIC_KEY"); key != "" {
		return key, nil
	}
	path := os.Getenv("RECEIPT_PUBLIC_KEY_FILE")
	if path == "" {
		return "", fmt.Errorf("RECEIPT_PUBLIC_KEY or RECEIPT_PUBLIC_KEY_FILE is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read receipt key: %w", err)
	}
	return string(content), nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
