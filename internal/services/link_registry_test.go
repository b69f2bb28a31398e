package services

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/models"
)

func TestAttachListDetach(t *testing.T) {
	db := newTestDB(t)
	links := newTestLinks(t, db)
	sup := mkSupplier(t, db, "Acme")

	att, err := links.Attach(ctx, models.LinkSupplier, sup.ID, "DPA.pdf", strings.NewReader("signed"), nil)
	require.NoError(t, err)
	assert.Equal(t, "DPA.pdf", att.Filename)
	assert.NotEqual(t, att.Filename, att.SecureFilename)
	assert.Equal(t, int64(6), att.Size)
	assert.True(t, links.blobs.Exists(att.SecureFilename))

	list, err := links.AttachmentsFor(ctx, models.LinkSupplier, sup.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	other, err := links.AttachmentsFor(ctx, models.LinkAsset, sup.ID)
	require.NoError(t, err)
	assert.Empty(t, other, "the pair, not the id alone, selects attachments")

	require.NoError(t, links.Detach(ctx, att.ID))
	assert.False(t, links.blobs.Exists(att.SecureFilename))
	err = links.Detach(ctx, att.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestAttachRejectsMissingTargetWithoutBlob(t *testing.T) {
	db := newTestDB(t)
	links := newTestLinks(t, db)

	_, err := links.Attach(ctx, models.LinkAsset, 99, "x.txt", strings.NewReader("x"), nil)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = links.Attach(ctx, models.LinkableType("Spaceship"), 1, "x.txt", strings.NewReader("x"), nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	entries, err := os.ReadDir(links.blobs.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "no blob is written for a rejected target")
}

func mkControl(t *testing.T, svc *FrameworkService, name string) *models.FrameworkControl {
	f, err := svc.Create(ctx, name, "", false)
	require.NoError(t, err)
	c, err := svc.AddControl(ctx, f.ID, "A.1", "Inventory", "")
	require.NoError(t, err)
	return c
}

func TestComplianceLinkRules(t *testing.T) {
	db := newTestDB(t)
	links := newTestLinks(t, db)
	frameworks := NewFrameworkService(db)
	control := mkControl(t, frameworks, "Custom")
	asset := &models.Asset{Name: "server"}
	require.NoError(t, db.Create(asset).Error)

	link, err := links.CreateComplianceLink(ctx, control.ID, models.LinkAsset, asset.ID, "tracked in CMDB")
	require.NoError(t, err)
	assert.Equal(t, models.LinkAsset, link.LinkableType)

	_, err = links.CreateComplianceLink(ctx, control.ID, models.LinkAsset, asset.ID, "again")
	assert.ErrorIs(t, err, apperr.ErrDuplicateLink)
	assert.True(t, apperr.IsKind(err, apperr.KindUniqueness))

	// Same id, different kind is a different target.
	risk := &models.Risk{Title: "r", InherentImpact: 1, InherentLikelihood: 1, ResidualImpact: 1, ResidualLikelihood: 1}
	require.NoError(t, db.Create(risk).Error)
	require.Equal(t, asset.ID, risk.ID)
	_, err = links.CreateComplianceLink(ctx, control.ID, models.LinkRisk, risk.ID, "")
	require.NoError(t, err)

	_, err = links.CreateComplianceLink(ctx, control.ID, models.LinkAsset, 404, "")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = frameworks.SetActive(ctx, control.FrameworkID, false)
	require.NoError(t, err)
	peripheral := &models.Peripheral{Name: "dock"}
	require.NoError(t, db.Create(peripheral).Error)
	_, err = links.CreateComplianceLink(ctx, control.ID, models.LinkPeripheral, peripheral.ID, "")
	assert.ErrorIs(t, err, apperr.ErrFrameworkDisabled)

	forAsset, err := links.ComplianceLinksFor(ctx, models.LinkAsset, asset.ID)
	require.NoError(t, err)
	require.Len(t, forAsset, 1)
	require.NotNil(t, forAsset[0].FrameworkControl)
	assert.Equal(t, "Custom", forAsset[0].FrameworkControl.Framework.Name)

	byControl, err := links.LinksForControl(ctx, control.ID)
	require.NoError(t, err)
	assert.Len(t, byControl, 2)

	require.NoError(t, links.DeleteComplianceLink(ctx, link.ID))
	assert.True(t, apperr.IsKind(links.DeleteComplianceLink(ctx, link.ID), apperr.KindNotFound))
}

func TestComplianceLinkUniqueIndex(t *testing.T) {
	db := newTestDB(t)
	row := models.ComplianceLink{FrameworkControlID: 1, LinkableType: models.LinkAsset, LinkableID: 1}
	require.NoError(t, db.Create(&row).Error)
	dup := models.ComplianceLink{FrameworkControlID: 1, LinkableType: models.LinkAsset, LinkableID: 1}
	assert.Error(t, db.Create(&dup).Error)
}

func TestDeleteEntityCascadesLinks(t *testing.T) {
	db := newTestDB(t)
	links := newTestLinks(t, db)
	frameworks := NewFrameworkService(db)
	control := mkControl(t, frameworks, "ISO")

	risk := &models.Risk{Title: "r", InherentImpact: 2, InherentLikelihood: 2, ResidualImpact: 1, ResidualLikelihood: 1}
	require.NoError(t, db.Create(risk).Error)
	keep := &models.Risk{Title: "keep", InherentImpact: 2, InherentLikelihood: 2, ResidualImpact: 1, ResidualLikelihood: 1}
	require.NoError(t, db.Create(keep).Error)

	a1, err := links.Attach(ctx, models.LinkRisk, risk.ID, "a.txt", strings.NewReader("a"), nil)
	require.NoError(t, err)
	kept, err := links.Attach(ctx, models.LinkRisk, keep.ID, "k.txt", strings.NewReader("k"), nil)
	require.NoError(t, err)
	_, err = links.CreateComplianceLink(ctx, control.ID, models.LinkRisk, risk.ID, "")
	require.NoError(t, err)

	require.NoError(t, links.DeleteEntity(ctx, models.LinkRisk, risk.ID, nil))

	var atts, cls int64
	require.NoError(t, db.Model(&models.Attachment{}).Count(&atts).Error)
	require.NoError(t, db.Model(&models.ComplianceLink{}).Count(&cls).Error)
	assert.Equal(t, int64(1), atts)
	assert.Zero(t, cls)
	assert.False(t, links.blobs.Exists(a1.SecureFilename))
	assert.True(t, links.blobs.Exists(kept.SecureFilename))

	err = links.DeleteEntity(ctx, models.LinkRisk, risk.ID, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestDeleteEntityRollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	links := newTestLinks(t, db)
	risk := &models.Risk{Title: "r", InherentImpact: 1, InherentLikelihood: 1, ResidualImpact: 1, ResidualLikelihood: 1}
	require.NoError(t, db.Create(risk).Error)
	att, err := links.Attach(ctx, models.LinkRisk, risk.ID, "a.txt", strings.NewReader("a"), nil)
	require.NoError(t, err)

	err = links.DeleteEntity(ctx, models.LinkRisk, risk.ID, func(tx *gorm.DB) error {
		return apperr.State("blocked")
	})
	assert.True(t, apperr.IsKind(err, apperr.KindState))

	var atts int64
	require.NoError(t, db.Model(&models.Attachment{}).Count(&atts).Error)
	assert.Equal(t, int64(1), atts)
	assert.True(t, links.blobs.Exists(att.SecureFilename))
}
