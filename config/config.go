package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppName     string
	Environment string
	ListenAddr  string
	LogLevel    string `validate:"oneof=debug info warn error"`

	JWTSecret string `validate:"required"`
	TokenTTL  time.Duration

	DBDriver   string `validate:"oneof=mysql sqlite"`
	DBHost     string
	DBPort     string
	DBUser     string
	DBPass     string
	DBName     string
	DBNameTest string
	SQLitePath string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL      string
	RabbitMQHost     string
	RabbitMQPort     string
	RabbitMQUser     string
	RabbitMQPass     string
	RabbitMQVhost    string
	RabbitMQPrefetch int

	CacheDir             string `validate:"required"`
	CacheTTL             time.Duration
	CacheSyncMode        string `validate:"oneof=inline amqp"`
	CacheSyncConcurrency int
	CacheSyncRate        float64
	CacheSyncBurst       int
	CacheSyncRetryMax    int
	CacheSyncRetryDelays []time.Duration
	ListCacheTTL         time.Duration

	UserWhitelist         []string
	DailyUploadLimitBytes int64
	MaxUploadBytes        int64 `validate:"gt=0"`
	UserLimit             int

	PublicBaseURL    string `validate:"required,url"`
	CORSAllowOrigins []string
	SMTPHost         string
	SMTPPort         string
	SMTPUser         string
	SMTPPass         string
	SMTPFrom         string
	SMTPImplicitTLS  bool
	SMTPStartTLS     bool
}

var AppConfig Config

// env is the lookup source for every setting: process env first, then the .env file.
var env = newEnv()

func newEnv() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

// loadEnvFile reads a dotenv style file into env. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// getEnv returns the environment value or a default.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(env.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvDurationList(key string, defaultValue []time.Duration) []time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := time.ParseDuration(part)
		if err != nil {
			return defaultValue
		}
		out = append(out, parsed)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// InitConfig loads configuration from the environment (and VAULT_ENV_FILE, default .env)
// and initializes sub-configs.
func InitConfig() error {
	if err := loadEnvFile(getEnv("VAULT_ENV_FILE", ".env")); err != nil {
		return err
	}
	rabbitHost := getEnv("RABBITMQ_HOST", "localhost")
	rabbitPort := getEnv("RABBITMQ_PORT", "5672")
	rabbitUser := getEnv("RABBITMQ_USER", "guest")
	rabbitPass := getEnv("RABBITMQ_PASSWORD", "guest")
	rabbitVhost := getEnv("RABBITMQ_VHOST", "/")
	rabbitURL := getEnv("RABBITMQ_URL", "")
	if rabbitURL == "" {
		rabbitURL = fmt.Sprintf(
			"amqp://%s:%s@%s:%s/%s",
			url.PathEscape(rabbitUser),
			url.PathEscape(rabbitPass),
			rabbitHost,
			rabbitPort,
			url.PathEscape(rabbitVhost),
		)
	}
	AppConfig = Config{
		AppName:     getEnv("APP_NAME", "filevault"),
		Environment: getEnv("ENVIRONMENT", "dev"),
		ListenAddr:  getEnv("LISTEN_ADDR", ":8000"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),

		JWTSecret: getEnv("AUTH_SECRET_KEY", ""),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPass:     getEnv("DB_PASS", "root"),
		DBName:     getEnv("DB_NAME", "file_vault"),
		DBNameTest: getEnv("DB_NAME_TEST", "file_vault_test"),
		SQLitePath: getEnv("SQLITE_PATH", "file_metadata.db"),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", true),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RabbitMQURL:      rabbitURL,
		RabbitMQHost:     rabbitHost,
		RabbitMQPort:     rabbitPort,
		RabbitMQUser:     rabbitUser,
		RabbitMQPass:     rabbitPass,
		RabbitMQVhost:    rabbitVhost,
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 8),

		CacheDir:             getEnv("VAULT_CACHE_DIR", "cache"),
		CacheTTL:             getEnvDuration("VAULT_CACHE_TTL", 0),
		CacheSyncMode:        strings.ToLower(getEnv("CACHE_SYNC_MODE", "inline")),
		CacheSyncConcurrency: getEnvInt("CACHE_SYNC_CONCURRENCY", 4),
		CacheSyncRate:        getEnvFloat("CACHE_SYNC_RATE", 50),
		CacheSyncBurst:       getEnvInt("CACHE_SYNC_BURST", 20),
		CacheSyncRetryMax:    getEnvInt("CACHE_SYNC_RETRY_MAX", 5),
		CacheSyncRetryDelays: getEnvDurationList(
			"CACHE_SYNC_RETRY_DELAYS",
			[]time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
		),
		ListCacheTTL: getEnvDuration("LIST_CACHE_TTL", 2*time.Minute),

		UserWhitelist:         getEnvList("USER_WHITELIST", nil),
		DailyUploadLimitBytes: getEnvInt64("DAILY_UPLOAD_LIMIT_BYTES", 1_000_000_000),
		MaxUploadBytes:        getEnvInt64("MAX_UPLOAD_BYTES", 512<<20),
		UserLimit:             getEnvInt("USER_LIMIT", 0),

		PublicBaseURL:    strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8000"), "/"),
		CORSAllowOrigins: getEnvList("CORS_ALLOW_ORIGINS", nil),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnv("SMTP_PORT", ""),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPass:         getEnv("SMTP_PASS", ""),
		SMTPFrom:         getEnv("SMTP_FROM", ""),
		SMTPImplicitTLS:  getEnvBool("SMTP_TLS", false),
		SMTPStartTLS:     getEnvBool("SMTP_STARTTLS", false),
	}
	if AppConfig.SMTPPort == "465" {
		AppConfig.SMTPImplicitTLS = true
	}

	InitStorageConfig()
	return Validate(&AppConfig)
}
