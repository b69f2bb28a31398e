package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/viper"
)

type Config struct {
	// Security
	SecretKey          string
	SecretKeyGenerated bool
	TokenExpireHours   int

	// Database
	DatabaseURL string

	// Redis (optional)
	RedisURL string

	// Attachments
	UploadFolder string

	// SMTP
	SMTPServer    string
	SMTPPort      int
	EmailUsername string
	EmailPassword string
	EmailFrom     string

	// Webhook fallback when the notification settings row has none
	WebhookURL string

	// API
	APIPort int

	// Daily notifier run time, HH:MM in UTC
	NotificationSendTime string
}

// generateSecureSecret generates a cryptographically secure random secret
func generateSecureSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return hex.EncodeToString([]byte(os.Getenv("HOSTNAME") + time.Now().String()))
	}
	return hex.EncodeToString(bytes)
}

// setDefaults registers every key so AutomaticEnv picks it up.
func setDefaults(v *viper.Viper) {
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("TOKEN_EXPIRE_HOURS", 12)
	v.SetDefault("DATABASE_URL", "sqlite://data/opsledger.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("UPLOAD_FOLDER", "./data/attachments")
	v.SetDefault("SMTP_SERVER", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("EMAIL_USERNAME", "")
	v.SetDefault("EMAIL_PASSWORD", "")
	v.SetDefault("EMAIL_FROM", "")
	v.SetDefault("WEBHOOK_URL", "")
	v.SetDefault("API_PORT", 8080)
	v.SetDefault("NOTIFICATION_SEND_TIME", "08:00")
}

// Load reads the configuration from the environment.
func Load() *Config {
	return LoadFrom(viper.New())
}

// LoadFrom reads the configuration through v, which tests may pre-populate.
func LoadFrom(v *viper.Viper) *Config {
	setDefaults(v)
	v.AutomaticEnv()

	secret := v.GetString("SECRET_KEY")
	generated := secret == ""
	if generated {
		secret = generateSecureSecret(32)
		glog.Warning("SECRET_KEY not set - generated random secret. Sessions will not persist across restarts.")
	}

	emailUser := v.GetString("EMAIL_USERNAME")
	if emailUser == "" {
		glog.Info("EMAIL_USERNAME not set - email notifications are disabled")
	}

	from := v.GetString("EMAIL_FROM")
	if from == "" {
		from = emailUser
	}

	sendTime := v.GetString("NOTIFICATION_SEND_TIME")
	if _, err := time.Parse("15:04", sendTime); err != nil {
		glog.Warningf("NOTIFICATION_SEND_TIME %q is not HH:MM - using 08:00", sendTime)
		sendTime = "08:00"
	}

	return &Config{
		SecretKey:          secret,
		SecretKeyGenerated: generated,
		TokenExpireHours:   v.GetInt("TOKEN_EXPIRE_HOURS"),

		DatabaseURL: v.GetString("DATABASE_URL"),
		RedisURL:    v.GetString("REDIS_URL"),

		UploadFolder: v.GetString("UPLOAD_FOLDER"),

		SMTPServer:    v.GetString("SMTP_SERVER"),
		SMTPPort:      v.GetInt("SMTP_PORT"),
		EmailUsername: emailUser,
		EmailPassword: v.GetString("EMAIL_PASSWORD"),
		EmailFrom:     from,

		WebhookURL: v.GetString("WEBHOOK_URL"),

		APIPort:              v.GetInt("API_PORT"),
		NotificationSendTime: sendTime,
	}
}

// EmailEnabled reports whether SMTP credentials are configured.
func (c *Config) EmailEnabled() bool {
	return c.EmailUsername != "" && c.SMTPServer != ""
}
