package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/config"
	"github.com/opsledger/backend/internal/database"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/services"
	"github.com/opsledger/backend/internal/storage"
)

func TestSeedDemoDataRunsOnce(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	blobs, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	clock := calendar.FixedClock{At: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	svc := services.New(db, &config.Config{}, blobs, services.Options{Clock: clock})

	created, err := svc.Users.EnsureAdmin(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	seeded, err := seedDemoData(ctx, db, svc)
	require.NoError(t, err)
	assert.True(t, seeded)

	var count int64
	db.Model(&models.Framework{}).Where("is_builtin = ?", true).Count(&count)
	assert.EqualValues(t, 2, count)
	db.Model(&models.Subscription{}).Count(&count)
	assert.EqualValues(t, 2, count)

	// Built-in frameworks refuse new controls.
	var iso models.Framework
	require.NoError(t, db.Where("name = ?", "ISO 27001").First(&iso).Error)
	_, err = svc.Frameworks.AddControl(ctx, iso.ID, "A.9.9", "Extra", "")
	assert.Error(t, err)

	outstanding, err := svc.Policies.OutstandingSummary(ctx)
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, 1, outstanding[0].Required)

	seeded, err = seedDemoData(ctx, db, svc)
	require.NoError(t, err)
	assert.False(t, seeded)
	db.Model(&models.Supplier{}).Count(&count)
	assert.EqualValues(t, 2, count)
}
