package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/risk"
)

func TestFrameworkBuiltinAndCoverage(t *testing.T) {
	db := newTestDB(t)
	svc := NewFrameworkService(db)
	links := newTestLinks(t, db)

	builtin, err := svc.Create(ctx, "ISO 27001", "", true)
	require.NoError(t, err)
	_, err = svc.AddControl(ctx, builtin.ID, "A.5.1", "Policies", "")
	assert.ErrorIs(t, err, apperr.ErrBuiltinFramework)

	_, err = svc.Create(ctx, "ISO 27001", "", false)
	assert.True(t, apperr.IsKind(err, apperr.KindUniqueness))

	custom, err := svc.Create(ctx, "Internal", "", false)
	require.NoError(t, err)
	c1, err := svc.AddControl(ctx, custom.ID, "C-1", "Inventory", "")
	require.NoError(t, err)
	_, err = svc.AddControl(ctx, custom.ID, "C-2", "Backups", "")
	require.NoError(t, err)

	a := &models.Asset{Name: "srv"}
	require.NoError(t, db.Create(a).Error)
	p := &models.Peripheral{Name: "ups"}
	require.NoError(t, db.Create(p).Error)
	_, err = links.CreateComplianceLink(ctx, c1.ID, models.LinkAsset, a.ID, "")
	require.NoError(t, err)
	_, err = links.CreateComplianceLink(ctx, c1.ID, models.LinkPeripheral, p.ID, "")
	require.NoError(t, err)

	cov, err := svc.Coverage(ctx, custom.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cov.TotalControls)
	assert.Equal(t, 1, cov.CoveredControls)
	assert.Equal(t, 50.0, cov.CoveragePercent)
	require.Len(t, cov.Controls, 2)
	assert.Equal(t, int64(2), cov.Controls[0].LinkCount)
	assert.Zero(t, cov.Controls[1].LinkCount)

	off, err := svc.SetActive(ctx, custom.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	cov, err = svc.Coverage(ctx, custom.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cov.CoveredControls, "disabling keeps existing links")
}

func TestIncidentTimelineAndReview(t *testing.T) {
	db := newTestDB(t)
	svc := NewIncidentService(db, testClock())

	inc, err := svc.Report(ctx, "Phishing wave", "", "High", nil)
	require.NoError(t, err)
	assert.Equal(t, "Open", inc.Status)

	_, err = svc.AddTimelineEvent(ctx, inc.ID, time.Time{}, "contained", map[string]any{"hosts": 3})
	require.NoError(t, err)
	_, err = svc.AddTimelineEvent(ctx, inc.ID, testNow.Add(-2*time.Hour), "first report", nil)
	require.NoError(t, err)
	_, err = svc.AddTimelineEvent(ctx, inc.ID, testNow.Add(-2*time.Hour), "ticket opened", nil)
	require.NoError(t, err)
	_, err = svc.AddTimelineEvent(ctx, 999, time.Time{}, "x", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	events, err := svc.Timeline(ctx, inc.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "first report", events[0].Description)
	assert.Equal(t, "ticket opened", events[1].Description)
	assert.Equal(t, "contained", events[2].Description)
	assert.EqualValues(t, 3, events[2].Metadata["hosts"])

	r1, err := svc.UpsertReview(ctx, inc.ID, ReviewInput{RootCause: "weak filter"})
	require.NoError(t, err)
	r2, err := svc.UpsertReview(ctx, inc.ID, ReviewInput{RootCause: "no MFA", LessonsLearned: "enforce MFA"})
	require.NoError(t, err)
	assert.Equal(t, r1.ID, r2.ID)
	assert.Equal(t, "no MFA", r2.RootCause)
	assert.Equal(t, day(2025, 1, 1), r2.ReviewDate)

	var reviews int64
	require.NoError(t, db.Model(&models.PostIncidentReview{}).Count(&reviews).Error)
	assert.Equal(t, int64(1), reviews)

	_, err = svc.Resolve(ctx, inc.ID)
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, inc.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindState))
}

func TestRiskRegister(t *testing.T) {
	db := newTestDB(t)
	svc := NewRiskService(db)

	_, err := svc.Create(ctx, RiskInput{Title: "bad", InherentImpact: 6, InherentLikelihood: 1, ResidualImpact: 1, ResidualLikelihood: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.Create(ctx, RiskInput{Title: "bad", InherentImpact: 1, InherentLikelihood: 1, ResidualImpact: 1, ResidualLikelihood: 1, TreatmentStrategy: "Ignore"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	low, err := svc.Create(ctx, RiskInput{Title: "low", InherentImpact: 2, InherentLikelihood: 2, ResidualImpact: 1, ResidualLikelihood: 2})
	require.NoError(t, err)
	high, err := svc.Create(ctx, RiskInput{Title: "ransomware", InherentImpact: 5, InherentLikelihood: 4, ResidualImpact: 4, ResidualLikelihood: 4, TreatmentStrategy: models.TreatmentMitigate})
	require.NoError(t, err)
	assert.Equal(t, 20, high.InherentScore)
	assert.Equal(t, risk.BandCritical, high.InherentBand)
	assert.Equal(t, 16, high.ResidualScore)
	assert.Equal(t, risk.BandHigh, high.ResidualBand)
	assert.Equal(t, 20.0, high.ReductionPercentage)

	reg, err := svc.Register(ctx)
	require.NoError(t, err)
	require.Len(t, reg, 2)
	assert.Equal(t, high.Risk.ID, reg[0].Risk.ID)
	assert.Equal(t, low.Risk.ID, reg[1].Risk.ID)

	body, err := json.Marshal(reg[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), `"residual_score":16`)
	assert.Contains(t, string(body), `"title":"ransomware"`)
}

func TestDisposalRecord(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db, testClock())
	admin := mkUser(t, db, "admin", models.RoleAdmin)
	a := &models.Asset{Name: "old laptop"}
	require.NoError(t, db.Create(a).Error)
	p := &models.Peripheral{Name: "old screen"}
	require.NoError(t, db.Create(p).Error)

	_, err := svc.Record(ctx, DisposalInput{Reason: "x"}, &admin.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.Record(ctx, DisposalInput{AssetID: &a.ID, PeripheralID: &p.ID, Reason: "x"}, &admin.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.Record(ctx, DisposalInput{AssetID: &a.ID}, &admin.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	rec, err := svc.Record(ctx, DisposalInput{AssetID: &a.ID, Method: "recycling", Reason: "end of life"}, &admin.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 1, 1), rec.DisposalDate)

	var stored models.Asset
	require.NoError(t, db.First(&stored, a.ID).Error)
	assert.True(t, stored.IsArchived)

	again, err := svc.Record(ctx, DisposalInput{AssetID: &a.ID, Method: "resale", Reason: "buyer found"}, &admin.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)
	assert.Equal(t, "resale", again.Method)

	history, err := svc.History(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "end of life", history[0].Reason)
	assert.JSONEq(t, `{"created":true}`, history[0].Changes)
	assert.JSONEq(t, `{"method":["recycling","resale"]}`, history[1].Changes)

	prec, err := svc.Record(ctx, DisposalInput{PeripheralID: &p.ID, Reason: "broken"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, prec.ID)
}

func TestOwnershipResolution(t *testing.T) {
	db := newTestDB(t)
	svc := NewSoftwareService(db)
	u := mkUser(t, db, "owner", models.RoleUser)
	g := &models.Group{Name: "it"}
	require.NoError(t, db.Create(g).Error)

	sw, err := svc.Create(ctx, models.Software{Name: "Jira", OwnerType: models.OwnerUser, OwnerID: &u.ID})
	require.NoError(t, err)
	view, err := svc.Get(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OwnerUser, view.Owner.Kind)
	assert.Equal(t, "owner", view.Owner.Name())

	view, err = svc.SetOwner(ctx, sw.ID, models.OwnerGroup, &g.ID)
	require.NoError(t, err)
	assert.Equal(t, "it", view.Owner.Name())
	assert.Nil(t, view.Owner.User)

	_, err = svc.SetOwner(ctx, sw.ID, models.OwnerGroup, ptr(uint(99)))
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = svc.SetOwner(ctx, sw.ID, models.OwnerNone, &g.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	// A dangling reference resolves to no owner rather than failing.
	require.NoError(t, db.Delete(g).Error)
	view, err = svc.Get(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OwnerNone, view.Owner.Kind)
	assert.Empty(t, view.Owner.Name())

	doc := &models.Documentation{Title: "Runbook", OwnerType: models.OwnerUser, OwnerID: &u.ID}
	require.NoError(t, db.Create(doc).Error)
	owner, err := DocumentationOwner(ctx, db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, owner.User.ID)
}

func TestUserAuthentication(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)

	created, err := svc.EnsureAdmin(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = svc.EnsureAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	u, err := svc.Authenticate(ctx, DefaultAdminName, DefaultAdminPassword)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	_, err = svc.Authenticate(ctx, "ADMIN@localhost", DefaultAdminPassword)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, DefaultAdminName, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	nopw, err := svc.Create(ctx, UserInput{Name: "nopw", Email: "nopw@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, nopw.Role)
	_, err = svc.Authenticate(ctx, "nopw", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Create(ctx, UserInput{Name: "dup", Email: "NOPW@example.com"})
	assert.True(t, apperr.IsKind(err, apperr.KindUniqueness))
	_, err = svc.Create(ctx, UserInput{Name: "x", Email: "x@example.com", Role: "root"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	require.NoError(t, svc.SetArchived(ctx, u.ID, true))
	_, err = svc.Authenticate(ctx, DefaultAdminName, DefaultAdminPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateGroup(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	a := mkUser(t, db, "a", models.RoleUser)
	b := mkUser(t, db, "b", models.RoleUser)

	g, err := svc.CreateGroup(ctx, "ops", "", []uint{a.ID, b.ID})
	require.NoError(t, err)
	var loaded models.Group
	require.NoError(t, db.Preload("Users").First(&loaded, g.ID).Error)
	assert.Len(t, loaded.Users, 2)

	_, err = svc.CreateGroup(ctx, "ops", "", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindUniqueness))
	_, err = svc.CreateGroup(ctx, "ghosts", "", []uint{404})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
