package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T, appEnv string) {
	t.Setenv("APP_ENV", appEnv)
	t.Setenv("APP_URL", "http://localhost:8090")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_BUCKET", "songs")
	t.Setenv("S3_ACCESS_KEY", "minio")
	t.Setenv("S3_SECRET_KEY", "minio-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t, "development")

	cfg := Load()
	require.NotNil(t, cfg)

	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, MailDriverLog, cfg.MailDriver)
	assert.Equal(t, 15*time.Minute, cfg.VerificationCodeTTL)
	assert.Equal(t, 5, cfg.VerificationMaxAttempts)
	assert.Equal(t, 3, cfg.VerificationResendLimit)
	assert.Equal(t, 10*time.Minute, cfg.VerificationResendWindow)
	assert.Equal(t, 7*24*time.Hour, cfg.PhaseJudgingDuration)
	assert.Equal(t, 30*24*time.Hour, cfg.PhaseWinnersDuration)
	assert.Equal(t, 50, cfg.UploadMaxAudioMB)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t, "production")
	t.Setenv("MAIL_DRIVER", MailDriverSMTP)
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("VERIFICATION_CODE_TTL", "5m")
	t.Setenv("VERIFICATION_MAX_ATTEMPTS", "3")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("TRUSTED_PROXIES", "127.0.0.1, 10.0.0.0/8,")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, MailDriverSMTP, cfg.MailDriver)
	assert.Equal(t, 5*time.Minute, cfg.VerificationCodeTTL)
	assert.Equal(t, 3, cfg.VerificationMaxAttempts)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, []string{"127.0.0.1", "10.0.0.0/8"}, cfg.TrustedProxies)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	setRequired(t, "development")
	t.Setenv("VERIFICATION_CODE_TTL", "soon")
	t.Setenv("SMTP_PORT", "many")

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.VerificationCodeTTL)
	assert.Equal(t, 587, cfg.SMTPPort)
}

func TestSanitizedDropsSecrets(t *testing.T) {
	setRequired(t, "development")
	t.Setenv("RESEND_API_KEY", "re_secret")

	safe := Load().Sanitized()

	assert.Empty(t, safe.JWTSecret)
	assert.Empty(t, safe.S3SecretKey)
	assert.Empty(t, safe.ResendAPIKey)
	assert.Equal(t, "http://localhost:8090", safe.AppURL)
	assert.Equal(t, 3, safe.VerificationResendLimit)
}
