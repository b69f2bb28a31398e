package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/models"
)

// DisposalService records the end of life of assets and peripherals.
type DisposalService struct {
	db    *gorm.DB
	clock calendar.Clock
}

func NewDisposalService(db *gorm.DB, clock calendar.Clock) *DisposalService {
	return &DisposalService{db: db, clock: clock}
}

// DisposalInput describes a disposal. Exactly one of AssetID and
// PeripheralID must be set; Reason is mandatory on every change.
type DisposalInput struct {
	AssetID      *uint      `json:"asset_id"`
	PeripheralID *uint      `json:"peripheral_id"`
	DisposalDate *time.Time `json:"disposal_date"`
	Method       string     `json:"method"`
	Notes        string     `json:"notes"`
	Reason       string     `json:"reason"`
}

// Record creates the disposal record of the target, or updates it if one
// exists, and appends a history row. The target is archived.
func (s *DisposalService) Record(ctx context.Context, in DisposalInput, actorID *uint) (*models.DisposalRecord, error) {
	if (in.AssetID == nil) == (in.PeripheralID == nil) {
		return nil, apperr.Validation("a disposal targets exactly one asset or peripheral")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperr.Validation("a reason is required for every disposal change")
	}
	date := calendar.Today(s.clock)
	if in.DisposalDate != nil {
		date = calendar.Truncate(*in.DisposalDate)
	}

	var rec models.DisposalRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if in.AssetID != nil {
			a, err := findByID[models.Asset](tx, *in.AssetID, "asset")
			if err != nil {
				return err
			}
			if err := tx.Model(a).Update("is_archived", true).Error; err != nil {
				return err
			}
			q = q.Where("asset_id = ?", a.ID)
		} else {
			p, err := findByID[models.Peripheral](tx, *in.PeripheralID, "peripheral")
			if err != nil {
				return err
			}
			if err := tx.Model(p).Update("is_archived", true).Error; err != nil {
				return err
			}
			q = q.Where("peripheral_id = ?", p.ID)
		}

		changes := map[string]any{}
		err := q.First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = models.DisposalRecord{
				AssetID:      in.AssetID,
				PeripheralID: in.PeripheralID,
				DisposalDate: date,
				Method:       in.Method,
				Notes:        in.Notes,
			}
			changes["created"] = true
			if err := tx.Omit("History").Create(&rec).Error; err != nil {
				return uniqueOr(err, "the target already has a disposal record")
			}
		case err != nil:
			return err
		default:
			if !rec.DisposalDate.Equal(date) {
				changes["disposal_date"] = []string{calendar.Format(rec.DisposalDate), calendar.Format(date)}
				rec.DisposalDate = date
			}
			if rec.Method != in.Method {
				changes["method"] = []string{rec.Method, in.Method}
				rec.Method = in.Method
			}
			if rec.Notes != in.Notes {
				changes["notes"] = []string{rec.Notes, in.Notes}
				rec.Notes = in.Notes
			}
			if err := tx.Omit("History").Save(&rec).Error; err != nil {
				return err
			}
		}

		body, err := json.Marshal(changes)
		if err != nil {
			return err
		}
		return tx.Create(&models.DisposalHistory{
			DisposalRecordID: rec.ID,
			UserID:           actorID,
			Reason:           reason,
			Changes:          string(body),
			Timestamp:        s.clock.Now().UTC(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// History returns the change log of a disposal record, oldest first.
func (s *DisposalService) History(ctx context.Context, recordID uint) ([]models.DisposalHistory, error) {
	db := s.db.WithContext(ctx)
	if _, err := findByID[models.DisposalRecord](db, recordID, "disposal record"); err != nil {
		return nil, err
	}
	var out []models.DisposalHistory
	err := db.Where("disposal_record_id = ?", recordID).Order("timestamp, id").Find(&out).Error
	return out, err
}
