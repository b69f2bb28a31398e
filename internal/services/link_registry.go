package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/database"
	"github.com/opsledger/backend/internal/metrics"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/storage"
)

// LinkRegistry binds attachments and compliance links to any linkable
// entity by (linkable_type, linkable_id).
type LinkRegistry struct {
	db    *gorm.DB
	blobs *storage.BlobStore
}

func NewLinkRegistry(db *gorm.DB, blobs *storage.BlobStore) *LinkRegistry {
	return &LinkRegistry{db: db, blobs: blobs}
}

// EnsureTarget checks that t is a known kind and that row id exists.
func (r *LinkRegistry) EnsureTarget(tx *gorm.DB, t models.LinkableType, id uint) error {
	model, ok := t.NewModel()
	if !ok {
		return apperr.Validation("unknown linkable type %q", t)
	}
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check %s %d: %w", t, id, err)
	}
	if count == 0 {
		return apperr.NotFound("%s %d not found", t, id)
	}
	return nil
}

// Attach stores the blob and records it against (t, id).
func (r *LinkRegistry) Attach(ctx context.Context, t models.LinkableType, id uint, filename string, body io.Reader, uploadedBy *uint) (*models.Attachment, error) {
	var att *models.Attachment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		att, err = r.AttachInTx(tx, t, id, filename, body, uploadedBy)
		return err
	})
	if err != nil {
		return nil, err
	}
	return att, nil
}

// AttachInTx is Attach inside a caller's transaction. If the insert fails
// the blob is removed; if the caller later rolls back, the blob stays
// behind as an orphan.
func (r *LinkRegistry) AttachInTx(tx *gorm.DB, t models.LinkableType, id uint, filename string, body io.Reader, uploadedBy *uint) (*models.Attachment, error) {
	if filename == "" {
		return nil, apperr.Validation("filename is required")
	}
	if err := r.EnsureTarget(tx, t, id); err != nil {
		return nil, err
	}

	saved, err := r.blobs.Save(body, filename)
	if err != nil {
		return nil, apperr.Integration(err, "failed to store attachment")
	}

	att := &models.Attachment{
		Filename:       filename,
		SecureFilename: saved.Name,
		Size:           saved.Size,
		LinkableType:   t,
		LinkableID:     id,
		UploadedBy:     uploadedBy,
	}
	if err := tx.Create(att).Error; err != nil {
		if derr := r.blobs.Delete(saved.Name); derr != nil {
			glog.Warningf("LinkRegistry: orphan blob %s: %v", saved.Name, derr)
		}
		return nil, fmt.Errorf("create attachment: %w", err)
	}
	metrics.AttachmentBytes.Add(float64(saved.Size))
	return att, nil
}

// AttachmentsFor lists the attachments of (t, id), oldest first.
func (r *LinkRegistry) AttachmentsFor(ctx context.Context, t models.LinkableType, id uint) ([]models.Attachment, error) {
	if !t.Valid() {
		return nil, apperr.Validation("unknown linkable type %q", t)
	}
	var out []models.Attachment
	err := r.db.WithContext(ctx).
		Where("linkable_type = ? AND linkable_id = ?", t, id).
		Order("created_at, id").
		Find(&out).Error
	return out, err
}

// OpenAttachment returns the row and an open reader for its blob.
func (r *LinkRegistry) OpenAttachment(ctx context.Context, attachmentID uint) (*models.Attachment, *os.File, error) {
	att, err := findByID[models.Attachment](r.db.WithContext(ctx), attachmentID, "attachment")
	if err != nil {
		return nil, nil, err
	}
	f, err := r.blobs.Open(att.SecureFilename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperr.NotFound("attachment file %s is missing", att.Filename)
		}
		return nil, nil, err
	}
	return att, f, nil
}

// Detach deletes one attachment row and then its blob.
func (r *LinkRegistry) Detach(ctx context.Context, attachmentID uint) error {
	var name string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		att, err := findByID[models.Attachment](tx, attachmentID, "attachment")
		if err != nil {
			return err
		}
		name = att.SecureFilename
		return tx.Delete(att).Error
	})
	if err != nil {
		return err
	}
	r.removeBlobs([]string{name})
	return nil
}

// CreateComplianceLink ties a framework control to (t, id). It fails with
// ErrFrameworkDisabled when the control's framework is inactive and with
// ErrDuplicateLink when the triple already exists.
func (r *LinkRegistry) CreateComplianceLink(ctx context.Context, controlID uint, t models.LinkableType, id uint, description string) (*models.ComplianceLink, error) {
	var link *models.ComplianceLink
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var control models.FrameworkControl
		if err := tx.Preload("Framework").First(&control, controlID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("framework control %d not found", controlID)
			}
			return err
		}
		if control.Framework == nil || !control.Framework.IsActive {
			return apperr.ErrFrameworkDisabled
		}
		if err := r.EnsureTarget(tx, t, id); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.ComplianceLink{}).
			Where("framework_control_id = ? AND linkable_type = ? AND linkable_id = ?", controlID, t, id).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.ErrDuplicateLink
		}

		link = &models.ComplianceLink{
			FrameworkControlID: controlID,
			LinkableType:       t,
			LinkableID:         id,
			Description:        description,
		}
		if err := tx.Create(link).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.ErrDuplicateLink
			}
			return fmt.Errorf("create compliance link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// ComplianceLinksFor lists the controls linked to (t, id).
func (r *LinkRegistry) ComplianceLinksFor(ctx context.Context, t models.LinkableType, id uint) ([]models.ComplianceLink, error) {
	var out []models.ComplianceLink
	err := r.db.WithContext(ctx).
		Preload("FrameworkControl.Framework").
		Where("linkable_type = ? AND linkable_id = ?", t, id).
		Order("id").
		Find(&out).Error
	return out, err
}

// LinksForControl lists what a control is linked to.
func (r *LinkRegistry) LinksForControl(ctx context.Context, controlID uint) ([]models.ComplianceLink, error) {
	var out []models.ComplianceLink
	err := r.db.WithContext(ctx).Where("framework_control_id = ?", controlID).Order("id").Find(&out).Error
	return out, err
}

func (r *LinkRegistry) DeleteComplianceLink(ctx context.Context, linkID uint) error {
	res := r.db.WithContext(ctx).Delete(&models.ComplianceLink{}, linkID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("compliance link %d not found", linkID)
	}
	return nil
}

// DeleteLinkedInTx removes every attachment row and compliance link of
// (t, id) and returns the blob names to delete once the transaction has
// committed.
func (r *LinkRegistry) DeleteLinkedInTx(tx *gorm.DB, t models.LinkableType, id uint) ([]string, error) {
	var names []string
	if err := tx.Model(&models.Attachment{}).
		Where("linkable_type = ? AND linkable_id = ?", t, id).
		Pluck("secure_filename", &names).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("linkable_type = ? AND linkable_id = ?", t, id).Delete(&models.Attachment{}).Error; err != nil {
		return nil, fmt.Errorf("delete attachments of %s %d: %w", t, id, err)
	}
	if err := tx.Where("linkable_type = ? AND linkable_id = ?", t, id).Delete(&models.ComplianceLink{}).Error; err != nil {
		return nil, fmt.Errorf("delete compliance links of %s %d: %w", t, id, err)
	}
	return names, nil
}

// DeleteEntity hard-deletes row (t, id) together with its attachments and
// compliance links in one transaction. extra runs inside the same
// transaction before the row is removed, for kind-specific cascades.
func (r *LinkRegistry) DeleteEntity(ctx context.Context, t models.LinkableType, id uint, extra func(tx *gorm.DB) error) error {
	model, ok := t.NewModel()
	if !ok {
		return apperr.Validation("unknown linkable type %q", t)
	}
	var names []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.EnsureTarget(tx, t, id); err != nil {
			return err
		}
		if extra != nil {
			if err := extra(tx); err != nil {
				return err
			}
		}
		var err error
		names, err = r.DeleteLinkedInTx(tx, t, id)
		if err != nil {
			return err
		}
		return tx.Delete(model, id).Error
	})
	if err != nil {
		return err
	}
	r.removeBlobs(names)
	return nil
}

// removeBlobs deletes committed-away blobs. Failures leave orphans and are
// only logged.
func (r *LinkRegistry) removeBlobs(names []string) {
	for _, n := range names {
		if err := r.blobs.Delete(n); err != nil {
			glog.Warningf("LinkRegistry: failed to delete blob %s: %v", n, err)
		}
	}
}
