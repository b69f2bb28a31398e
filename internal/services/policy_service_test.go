package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/models"
)

func names(users []models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Name)
	}
	return out
}

type policyFixture struct {
	db     *gorm.DB
	svc    *PolicyService
	policy *models.Policy
}

func newPolicyFixture(t *testing.T) *policyFixture {
	db := newTestDB(t)
	p := &models.Policy{Title: "Acceptable use", Category: "Security"}
	require.NoError(t, db.Create(p).Error)
	return &policyFixture{db: db, svc: NewPolicyService(db, newTestLinks(t, db), testClock()), policy: p}
}

func (f *policyFixture) activeVersion(t *testing.T, number string, userIDs, groupIDs []uint) *models.PolicyVersion {
	pv, err := f.svc.CreateVersion(ctx, f.policy.ID, VersionInput{
		VersionNumber: number,
		Content:       "be nice",
		EffectiveDate: day(2025, 1, 1),
		UserIDs:       userIDs,
		GroupIDs:      groupIDs,
	})
	require.NoError(t, err)
	pv, err = f.svc.ActivateVersion(ctx, pv.ID)
	require.NoError(t, err)
	return pv
}

func TestPolicyAcknowledgementClosure(t *testing.T) {
	f := newPolicyFixture(t)
	u1 := mkUser(t, f.db, "u1", models.RoleUser)
	u2 := mkUser(t, f.db, "u2", models.RoleUser)
	u3 := mkUser(t, f.db, "u3", models.RoleUser)
	mkUser(t, f.db, "outsider", models.RoleUser)

	g := &models.Group{Name: "ops", Users: []models.User{*u2, *u3}}
	require.NoError(t, f.db.Create(g).Error)

	pv := f.activeVersion(t, "1.0", []uint{u1.ID}, []uint{g.ID})

	required, err := f.svc.RequiredUsers(ctx, pv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, names(required))

	ack, created, err := f.svc.Acknowledge(ctx, pv.ID, u1.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, testNow, ack.AcknowledgedAt.UTC())

	pending, err := f.svc.PendingUsers(ctx, pv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3"}, names(pending))

	again, created, err := f.svc.Acknowledge(ctx, pv.ID, u1.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, ack.ID, again.ID)

	var count int64
	require.NoError(t, f.db.Model(&models.PolicyAcknowledgement{}).Where("policy_version_id = ?", pv.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPolicyUniversalFallbackSkipsArchived(t *testing.T) {
	f := newPolicyFixture(t)
	mkUser(t, f.db, "alice", models.RoleUser)
	bob := mkUser(t, f.db, "bob", models.RoleUser)
	require.NoError(t, f.db.Model(bob).Update("is_archived", true).Error)

	pv := f.activeVersion(t, "1.0", nil, nil)
	required, err := f.svc.RequiredUsers(ctx, pv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names(required))
}

func TestPolicyExplicitArchivedUserIsNotRequired(t *testing.T) {
	f := newPolicyFixture(t)
	alice := mkUser(t, f.db, "alice", models.RoleUser)
	bob := mkUser(t, f.db, "bob", models.RoleUser)
	mkUser(t, f.db, "carol", models.RoleUser)
	require.NoError(t, f.db.Model(bob).Update("is_archived", true).Error)

	pv := f.activeVersion(t, "1.0", []uint{alice.ID, bob.ID}, nil)
	required, err := f.svc.RequiredUsers(ctx, pv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names(required), "an explicit audience never falls back to everyone")
}

func TestPolicyAcknowledgeRequiresActive(t *testing.T) {
	f := newPolicyFixture(t)
	u := mkUser(t, f.db, "u", models.RoleUser)
	pv, err := f.svc.CreateVersion(ctx, f.policy.ID, VersionInput{VersionNumber: "draft", EffectiveDate: day(2025, 1, 1)})
	require.NoError(t, err)

	_, _, err = f.svc.Acknowledge(ctx, pv.ID, u.ID)
	assert.ErrorIs(t, err, apperr.ErrPolicyNotActive)
	assert.True(t, apperr.IsKind(err, apperr.KindState))
}

func TestPolicyActivationArchivesPrevious(t *testing.T) {
	f := newPolicyFixture(t)
	v1 := f.activeVersion(t, "1.0", nil, nil)
	v2 := f.activeVersion(t, "2.0", nil, nil)

	var stored models.PolicyVersion
	require.NoError(t, f.db.First(&stored, v1.ID).Error)
	assert.Equal(t, models.PolicyArchived, stored.Status)
	require.NotNil(t, stored.EndDate)
	assert.Equal(t, day(2025, 1, 1), stored.EndDate.UTC())

	var active int64
	require.NoError(t, f.db.Model(&models.PolicyVersion{}).
		Where("policy_id = ? AND status = ?", f.policy.ID, models.PolicyActive).Count(&active).Error)
	assert.Equal(t, int64(1), active)

	got, err := f.svc.ActiveVersion(ctx, f.policy.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, got.ID)

	// Re-activating the archived version flips them back.
	_, err = f.svc.ActivateVersion(ctx, v1.ID)
	require.NoError(t, err)
	got, err = f.svc.ActiveVersion(ctx, f.policy.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, got.ID)
}

func TestPolicySecondActiveRowRejectedByIndex(t *testing.T) {
	f := newPolicyFixture(t)
	f.activeVersion(t, "1.0", nil, nil)
	err := f.db.Create(&models.PolicyVersion{
		PolicyID:      f.policy.ID,
		VersionNumber: "rogue",
		Status:        models.PolicyActive,
		EffectiveDate: day(2025, 1, 1),
	}).Error
	require.Error(t, err)
}

func TestPolicyDeleteVersionCascades(t *testing.T) {
	f := newPolicyFixture(t)
	u := mkUser(t, f.db, "u", models.RoleUser)
	pv := f.activeVersion(t, "1.0", []uint{u.ID}, nil)
	_, _, err := f.svc.Acknowledge(ctx, pv.ID, u.ID)
	require.NoError(t, err)

	att, err := f.svc.links.Attach(ctx, models.LinkPolicyVersion, pv.ID, "signed.pdf", strings.NewReader("pdf"), &u.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteVersion(ctx, pv.ID))

	var acks, atts int64
	require.NoError(t, f.db.Model(&models.PolicyAcknowledgement{}).Count(&acks).Error)
	require.NoError(t, f.db.Model(&models.Attachment{}).Count(&atts).Error)
	assert.Zero(t, acks)
	assert.Zero(t, atts)
	assert.False(t, f.svc.links.blobs.Exists(att.SecureFilename))

	err = f.db.First(&models.PolicyVersion{}, pv.ID).Error
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	_, err = f.svc.RequiredUsers(ctx, pv.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestPolicyOutstandingSummary(t *testing.T) {
	f := newPolicyFixture(t)
	u1 := mkUser(t, f.db, "u1", models.RoleUser)
	mkUser(t, f.db, "u2", models.RoleUser)
	pv := f.activeVersion(t, "1.0", nil, nil)
	_, _, err := f.svc.Acknowledge(ctx, pv.ID, u1.ID)
	require.NoError(t, err)

	sums, err := f.svc.OutstandingSummary(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "Acceptable use", sums[0].PolicyTitle)
	assert.Equal(t, 2, sums[0].Required)
	assert.Equal(t, 1, sums[0].Acknowledged)
	assert.Equal(t, 1, sums[0].Pending)
}
