package database

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/config"
	"github.com/opsledger/backend/internal/models"
)

func TestOpenSQLiteAndTranslateUnique(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	require.NoError(t, db.Create(&models.Tag{Name: "finance"}).Error)
	err = db.Create(&models.Tag{Name: "finance"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	var tag models.Tag
	err = db.Where("name = ?", "missing").First(&tag).Error
	assert.True(t, IsNotFound(err))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestIsSQLite(t *testing.T) {
	assert.True(t, IsSQLite("sqlite://data/app.db"))
	assert.True(t, IsSQLite(":memory:"))
	assert.False(t, IsSQLite("postgres://localhost/app"))
}

func TestLocalCache(t *testing.T) {
	Redis = nil
	key := UpcomingRenewalsKey("2025-01-01", 30)

	var out []string
	assert.Error(t, CacheGet(key, &out))

	require.NoError(t, CacheSet(key, []string{"a", "b"}, CacheTTLRenewals))
	require.NoError(t, CacheGet(key, &out))
	assert.Equal(t, []string{"a", "b"}, out)

	InvalidateRenewalsCache()
	assert.Error(t, CacheGet(key, &out))
}

func TestEnsureSecretKeyPersists(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	DB = db
	t.Cleanup(func() { DB = nil })

	first := EnsureSecretKey(&config.Config{SecretKey: "generated-1", SecretKeyGenerated: true})
	assert.Equal(t, "generated-1", first)

	second := EnsureSecretKey(&config.Config{SecretKey: "generated-2", SecretKeyGenerated: true})
	assert.Equal(t, "generated-1", second, "stored key survives restarts")

	explicit := EnsureSecretKey(&config.Config{SecretKey: "from-env"})
	assert.Equal(t, "from-env", explicit)
}

func TestLocalTokenBlacklist(t *testing.T) {
	Redis = nil

	require.NoError(t, BlacklistToken("long-lived", 72*time.Hour))
	for i := 0; i < 4200; i++ {
		require.NoError(t, BlacklistToken(fmt.Sprintf("token-%d", i), time.Hour))
	}
	assert.True(t, IsTokenBlacklisted("long-lived"), "revocations are not evicted by volume")
	assert.True(t, IsTokenBlacklisted("token-0"))
	assert.False(t, IsTokenBlacklisted("never-revoked"))

	require.NoError(t, BlacklistToken("short-lived", 20*time.Millisecond))
	assert.True(t, IsTokenBlacklisted("short-lived"))
	time.Sleep(40 * time.Millisecond)
	assert.False(t, IsTokenBlacklisted("short-lived"), "revocation ends with the token lifetime")

	require.NoError(t, BlacklistToken("already-expired", 0))
	assert.False(t, IsTokenBlacklisted("already-expired"))
}

func TestInvalidateSurvivesRedisFailure(t *testing.T) {
	Redis = redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() {
		Redis.Close()
		Redis = nil
	})

	assert.Error(t, CacheDeletePrefix(CacheKeyUpcomingRenewals))
	assert.Error(t, CacheDelete(CacheKeyNotificationSetting))
	assert.NotPanics(t, InvalidateRenewalsCache)
	assert.NotPanics(t, InvalidateNotificationSettingCache)
}
