package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	t.Setenv("EMAIL_USERNAME", "")

	cfg := LoadFrom(viper.New())
	assert.Len(t, cfg.SecretKey, 64, "random secret is generated")
	assert.True(t, cfg.SecretKeyGenerated)
	assert.Equal(t, "./data/attachments", cfg.UploadFolder)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 12, cfg.TokenExpireHours)
	assert.Equal(t, "08:00", cfg.NotificationSendTime)
	assert.False(t, cfg.EmailEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/ledger")
	t.Setenv("SMTP_SERVER", "smtp.example.com")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("EMAIL_USERNAME", "notifier@example.com")
	t.Setenv("NOTIFICATION_SEND_TIME", "25:99")

	cfg := LoadFrom(viper.New())
	assert.Equal(t, "s3cret", cfg.SecretKey)
	assert.Equal(t, "postgres://u:p@db:5432/ledger", cfg.DatabaseURL)
	assert.Equal(t, 465, cfg.SMTPPort)
	assert.Equal(t, "notifier@example.com", cfg.EmailFrom)
	assert.Equal(t, "08:00", cfg.NotificationSendTime)
	assert.True(t, cfg.EmailEnabled())
}
