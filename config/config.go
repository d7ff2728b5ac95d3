package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/cyblex/backend/internal/payhere"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	Email     EmailConfig
	PayHere   PayHereConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	SecureCookies      bool
	FrontendURL        string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
	CookieName  string
}

// AWSConfig holds AWS credentials and the private documents bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	DocumentsBucket      string
	PresignExpireMinutes int
}

// EmailConfig for SMTP delivery. An empty SMTPHost makes the worker log emails instead.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// PayHereConfig holds merchant credentials and checkout limits.
type PayHereConfig struct {
	MerchantID     string
	MerchantSecret string
	Environment    payhere.Environment
	Currency       string
	MinAmountCents int64
	MaxAmountCents int64
	TimeoutSeconds int
	ReturnURL      string
	CancelURL      string
	NotifyURL      string
	AppID          string
	AppSecret      string
	LogFile        string
	ExpirePending  bool
}

// Merchant returns the signing configuration for checkouts.
func (c PayHereConfig) Merchant() payhere.Merchant {
	return payhere.Merchant{
		ID:          c.MerchantID,
		Secret:      c.MerchantSecret,
		Currency:    c.Currency,
		Environment: c.Environment,
		ReturnURL:   c.ReturnURL,
		CancelURL:   c.CancelURL,
		NotifyURL:   c.NotifyURL,
	}
}

// RateLimitConfig holds ulule-style rates such as "10-M".
type RateLimitConfig struct {
	Auth string
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	env, err := payhere.ParseEnvironment(getEnv("PAYHERE_ENVIRONMENT", "sandbox"))
	if err != nil {
		return nil, err
	}
	minAmount, err := getEnvAmount("PAYHERE_MIN_AMOUNT", "100")
	if err != nil {
		return nil, err
	}
	maxAmount, err := getEnvAmount("PAYHERE_MAX_AMOUNT", "100000")
	if err != nil {
		return nil, err
	}
	if minAmount > maxAmount {
		return nil, fmt.Errorf("PAYHERE_MIN_AMOUNT exceeds PAYHERE_MAX_AMOUNT")
	}
	baseURL := strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:8080"), "/")

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			SecureCookies:      getEnvBool("SECURE_COOKIES", false),
			FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cyblex"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
			CookieName:  getEnv("SESSION_COOKIE_NAME", "cyblex_session"),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			DocumentsBucket:      getEnv("AWS_S3_DOCUMENTS_BUCKET", "cyblex-verification-documents"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@cyblex.lk"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Cyblex"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		PayHere: PayHereConfig{
			MerchantID:     getEnv("PAYHERE_MERCHANT_ID", ""),
			MerchantSecret: getEnv("PAYHERE_MERCHANT_SECRET", ""),
			Environment:    env,
			Currency:       getEnv("PAYHERE_CURRENCY", "LKR"),
			MinAmountCents: minAmount,
			MaxAmountCents: maxAmount,
			TimeoutSeconds: getEnvInt("PAYHERE_TIMEOUT_SECONDS", 300),
			ReturnURL:      getEnv("PAYHERE_RETURN_URL", baseURL+"/payments/return"),
			CancelURL:      getEnv("PAYHERE_CANCEL_URL", baseURL+"/payments/cancel"),
			NotifyURL:      getEnv("PAYHERE_NOTIFY_URL", baseURL+"/payments/notify"),
			AppID:          getEnv("PAYHERE_APP_ID", ""),
			AppSecret:      getEnv("PAYHERE_APP_SECRET", ""),
			LogFile:        getEnv("PAYHERE_LOG_FILE", "logs/payhere.log"),
			ExpirePending:  getEnvBool("PAYHERE_EXPIRE_PENDING", false),
		},
		RateLimit: RateLimitConfig{
			Auth: getEnv("RATE_LIMIT_AUTH", "10-M"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
	return cfg, nil
}

func getEnvAmount(key, fallback string) (int64, error) {
	cents, err := payhere.ParseAmount(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return cents, nil
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
