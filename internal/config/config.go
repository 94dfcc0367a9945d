package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	Port        string

	AuthJWTSecret string
	AuthTokenTTL  time.Duration
	FrontendURL   string

	OTLPEndpoint string

	DBType            string
	DBPath            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Stripe StripeConfig
	Email  EmailConfig
	Redis  RedisConfig
	Google GoogleConfig

	RateLimit RateLimitConfig

	SchedulerEnabled  bool
	SchedulerInterval time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	APIBaseURL    string
}

type EmailConfig struct {
	From           string
	FromName       string
	ResendAPIKey   string
	SendGridAPIKey string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	// SendRate caps outbound messages per second; 0 disables the cap.
	SendRate       int
}

// GoogleConfig enables Google sign-in. An empty ClientID disables it.
type GoogleConfig struct {
	ClientID     string
	TokenInfoURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig carries per-window request budgets. Zero values fall back to
// environment-dependent defaults.
type RateLimitConfig struct {
	Window  time.Duration
	General int
	Auth    int
	Store   string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("NODE_ENV", getenv("ENVIRONMENT", "development"))

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "fintrack"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   environment,
		Port:          getenv("PORT", "5000"),
		AuthJWTSecret: strings.TrimSpace(getenv("JWT_SECRET", "")),
		AuthTokenTTL:  getenvDuration("JWT_TTL", 7*24*time.Hour),
		FrontendURL:   strings.TrimRight(getenv("FRONTEND_URL", "http://localhost:3000"), "/"),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "sqlite")),
		DBPath:            getenv("DATABASE_PATH", "fintrack.db"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "fintrack"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Stripe: StripeConfig{
			SecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			PriceID:       strings.TrimSpace(getenv("STRIPE_PRICE_ID", "")),
			APIBaseURL:    getenv("STRIPE_API_BASE_URL", "https://api.stripe.com"),
		},
		Email: EmailConfig{
			From:           getenv("EMAIL_FROM", "noreply@fintrack.app"),
			FromName:       getenv("EMAIL_FROM_NAME", "FinTrack"),
			ResendAPIKey:   strings.TrimSpace(getenv("RESEND_API_KEY", "")),
			SendGridAPIKey: strings.TrimSpace(getenv("SENDGRID_API_KEY", "")),
			SMTPHost:       strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:       getenvInt("SMTP_PORT", 587),
			SMTPUser:       strings.TrimSpace(getenv("SMTP_USER", "")),
			SMTPPassword:   getenv("SMTP_PASS", ""),
			SendRate:       getenvInt("EMAIL_SEND_RATE", 2),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Google: GoogleConfig{
			ClientID:     strings.TrimSpace(getenv("GOOGLE_CLIENT_ID", "")),
			TokenInfoURL: getenv("GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo"),
		},
		RateLimit: RateLimitConfig{
			Window:  getenvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			General: getenvInt("RATE_LIMIT_GENERAL", 0),
			Auth:    getenvInt("RATE_LIMIT_AUTH", 0),
			Store:   strings.ToLower(getenv("RATE_LIMIT_STORE", "memory")),
		},
		SchedulerEnabled:  getenvBool("SCHEDULER_ENABLED", true),
		SchedulerInterval: getenvDuration("SCHEDULER_INTERVAL", time.Minute),
	}

	if cfg.RateLimit.General <= 0 {
		cfg.RateLimit.General = 1000
		if cfg.IsProduction() {
			cfg.RateLimit.General = 200
		}
	}
	if cfg.RateLimit.Auth <= 0 {
		cfg.RateLimit.Auth = 20
		if cfg.IsProduction() {
			cfg.RateLimit.Auth = 5
		}
	}

	return cfg
}

// IsProduction reports whether the process runs with production defaults.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func (c Config) IsEmbeddedDB() bool {
	return c.DBType == "" || c.DBType == "sqlite"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
