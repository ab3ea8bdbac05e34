package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	MailDriverLog    = "log"
	MailDriverResend = "resend"
	MailDriverSMTP   = "smtp"
)

type Config struct {
	// Application
	AppName      string
	AppEnv       string
	AppURL       string
	Port         string
	SupportEmail string
	ContentPath  string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret       string
	JWTExpiry       time.Duration
	FlowStateExpiry time.Duration
	TrustedProxies  []string // forwarding headers are only honoured from these IPs/CIDRs

	// Verification codes
	VerificationCodeTTL      time.Duration
	VerificationMaxAttempts  int
	VerificationResendLimit  int
	VerificationResendWindow time.Duration
	CleanupSchedule          string

	// Contest phases
	PhaseJudgingDuration time.Duration
	PhaseWinnersDuration time.Duration

	// Email
	MailDriver   string // "log", "resend" or "smtp"
	EmailFrom    string
	AdminEmail   string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	// Observability (optional)
	SentryDSN      string
	MetricsEnabled bool

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Endpoint      string
	S3PresignExpiry time.Duration

	// Uploads
	UploadMaxAudioMB int
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	appEnv := envRequired("APP_ENV") // Required: 'development' or 'production'
	defaultMailDriver := MailDriverResend
	if appEnv == "development" {
		defaultMailDriver = MailDriverLog
	}

	cfg := &Config{
		// Application
		AppName:      envString("APP_NAME", "AI Song Contest"),
		AppEnv:       appEnv,
		AppURL:       envRequired("APP_URL"), // Required: base URL used in email links
		Port:         envString("PORT", "8090"),
		SupportEmail: envString("SUPPORT_EMAIL", "hello@example.com"),
		ContentPath:  envString("CONTENT_PATH", "content"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/songcontest.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),

		// Security
		JWTSecret:       envRequired("JWT_SECRET"),
		JWTExpiry:       envDuration("JWT_EXPIRY", 168*time.Hour),       // 7 days
		FlowStateExpiry: envDuration("FLOW_STATE_EXPIRY", 30*time.Minute), // pending verification flows
		TrustedProxies:  envList("TRUSTED_PROXIES"),                        // e.g. "127.0.0.1,10.0.0.0/8"

		// Verification codes
		VerificationCodeTTL:      envDuration("VERIFICATION_CODE_TTL", 15*time.Minute),
		VerificationMaxAttempts:  envInt("VERIFICATION_MAX_ATTEMPTS", 5),
		VerificationResendLimit:  envInt("VERIFICATION_RESEND_LIMIT", 3),
		VerificationResendWindow: envDuration("VERIFICATION_RESEND_WINDOW", 10*time.Minute),
		CleanupSchedule:          envString("CLEANUP_SCHEDULE", "@every 15m"),

		// Contest phases
		PhaseJudgingDuration: envDuration("PHASE_JUDGING_DURATION", 7*24*time.Hour),
		PhaseWinnersDuration: envDuration("PHASE_WINNERS_DURATION", 30*24*time.Hour),

		// Email
		MailDriver:   envString("MAIL_DRIVER", defaultMailDriver),
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		AdminEmail:   envString("ADMIN_EMAIL", ""),
		ResendAPIKey: envString("RESEND_API_KEY", ""),
		SMTPHost:     envString("SMTP_HOST", ""),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: envString("SMTP_USERNAME", ""),
		SMTPPassword: envString("SMTP_PASSWORD", ""),

		// Observability
		SentryDSN:      envString("SENTRY_DSN", ""),
		MetricsEnabled: envBool("METRICS_ENABLED", true),

		// Storage (S3-compatible - required for song uploads)
		S3Region:        envRequired("S3_REGION"),
		S3Bucket:        envRequired("S3_BUCKET"),
		S3AccessKey:     envRequired("S3_ACCESS_KEY"),
		S3SecretKey:     envRequired("S3_SECRET_KEY"),
		S3Endpoint:      envString("S3_ENDPOINT", ""),
		S3PresignExpiry: envDuration("S3_PRESIGN_EXPIRY", 1*time.Hour),

		// Uploads
		UploadMaxAudioMB: envInt("UPLOAD_MAX_AUDIO_MB", 50),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures a real mail transport is configured for production deployments.
// Verification codes are useless if they only end up in the log.
func validateProduction(cfg *Config) {
	switch cfg.MailDriver {
	case MailDriverResend:
		if cfg.ResendAPIKey == "" {
			slog.Error("production deployment requires RESEND_API_KEY",
				"hint", "set MAIL_DRIVER=smtp to use an SMTP relay instead")
			os.Exit(1)
		}
	case MailDriverSMTP:
		if cfg.SMTPHost == "" {
			slog.Error("production deployment requires SMTP_HOST when MAIL_DRIVER=smtp")
			os.Exit(1)
		}
	default:
		slog.Error("production deployment requires MAIL_DRIVER=resend or MAIL_DRIVER=smtp",
			"mail_driver", cfg.MailDriver,
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList splits a comma separated value, dropping empty entries.
func envList(key string) []string {
	var list []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}
	return list
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Sanitized returns a copy of the config with only public/safe fields.
// Secrets and credentials are excluded so it can travel in the request context.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:      c.AppName,
		AppEnv:       c.AppEnv,
		AppURL:       c.AppURL,
		Port:         c.Port,
		SupportEmail: c.SupportEmail,

		EmailFrom: c.EmailFrom,

		VerificationCodeTTL:      c.VerificationCodeTTL,
		VerificationResendLimit:  c.VerificationResendLimit,
		VerificationResendWindow: c.VerificationResendWindow,
		UploadMaxAudioMB:         c.UploadMaxAudioMB,

		S3Endpoint: c.S3Endpoint,
	}
}
