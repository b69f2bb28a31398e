package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/database"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/storage"
)

var ctx = context.Background()

// testNow is the instant every fixture clock reports.
var testNow = time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

func testClock() calendar.FixedClock {
	return calendar.FixedClock{At: testNow}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestLinks(t *testing.T, db *gorm.DB) *LinkRegistry {
	t.Helper()
	blobs, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	return NewLinkRegistry(db, blobs)
}

func mkUser(t *testing.T, db *gorm.DB, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func mkSupplier(t *testing.T, db *gorm.DB, name string) *models.Supplier {
	t.Helper()
	s := &models.Supplier{Name: name, ComplianceStatus: models.CompliancePending}
	require.NoError(t, db.Create(s).Error)
	return s
}

func mkPurchase(t *testing.T, db *gorm.DB, budgetID *uint) *models.Purchase {
	t.Helper()
	p := &models.Purchase{Description: "laptops", PurchaseDate: calendar.Date(2024, 12, 1), BudgetID: budgetID}
	require.NoError(t, db.Create(p).Error)
	return p
}

func ptr[T any](v T) *T {
	return &v
}

func day(y int, m time.Month, d int) time.Time {
	return calendar.Date(y, m, d)
}
