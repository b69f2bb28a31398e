package database

import (
	"github.com/golang/glog"

	"github.com/opsledger/backend/internal/config"
	"github.com/opsledger/backend/internal/models"
)

const secretKeyPreference = "secret_key"

// EnsureSecretKey returns the token signing key. An explicit SECRET_KEY
// wins; otherwise the key persisted in system_preferences is reused, and
// the generated one from config is stored on first start.
func EnsureSecretKey(cfg *config.Config) string {
	if !cfg.SecretKeyGenerated || DB == nil {
		return cfg.SecretKey
	}

	var pref models.SystemPreference
	if err := DB.Where("key = ?", secretKeyPreference).First(&pref).Error; err == nil && pref.Value != "" {
		glog.Info("Secret key loaded from database - sessions will persist across restarts")
		return pref.Value
	}

	pref = models.SystemPreference{Key: secretKeyPreference, Value: cfg.SecretKey}
	if err := DB.Create(&pref).Error; err != nil {
		// Another process may have won the race; use whatever is stored.
		var existing models.SystemPreference
		if DB.Where("key = ?", secretKeyPreference).First(&existing).Error == nil && existing.Value != "" {
			return existing.Value
		}
		glog.Warningf("Failed to persist secret key: %v", err)
		return cfg.SecretKey
	}

	glog.Info("Secret key generated and persisted to database")
	return cfg.SecretKey
}
