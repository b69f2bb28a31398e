package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golang/glog"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/database"
	"github.com/opsledger/backend/internal/metrics"
	"github.com/opsledger/backend/internal/models"
)

// PolicyService resolves who must acknowledge a policy version and runs
// the version lifecycle.
type PolicyService struct {
	db    *gorm.DB
	links *LinkRegistry
	clock calendar.Clock
}

func NewPolicyService(db *gorm.DB, links *LinkRegistry, clock calendar.Clock) *PolicyService {
	return &PolicyService{db: db, links: links, clock: clock}
}

// VersionInput describes a new draft version.
type VersionInput struct {
	VersionNumber string
	Content       string
	EffectiveDate time.Time
	UserIDs       []uint
	GroupIDs      []uint
}

// AckSummary is the acknowledgement progress of one active version.
type AckSummary struct {
	PolicyID        uint   `json:"policy_id"`
	PolicyTitle     string `json:"policy_title"`
	PolicyVersionID uint   `json:"policy_version_id"`
	VersionNumber   string `json:"version_number"`
	Required        int    `json:"required"`
	Acknowledged    int    `json:"acknowledged"`
	Pending         int    `json:"pending"`
}

func loadVersion(tx *gorm.DB, id uint) (*models.PolicyVersion, error) {
	var pv models.PolicyVersion
	err := tx.Preload("UsersToAcknowledge").
		Preload("GroupsToAcknowledge.Users").
		First(&pv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("policy version %d not found", id)
		}
		return nil, err
	}
	return &pv, nil
}

// requiredIDs is the explicit users plus the members of the explicit
// groups, restricted to non-archived users. With no explicit assignment
// every non-archived user is required.
func requiredIDs(tx *gorm.DB, pv *models.PolicyVersion) (mapset.Set[uint], error) {
	explicit := mapset.NewThreadUnsafeSet[uint]()
	for _, u := range pv.UsersToAcknowledge {
		explicit.Add(u.ID)
	}
	for _, g := range pv.GroupsToAcknowledge {
		for _, u := range g.Users {
			explicit.Add(u.ID)
		}
	}

	q := tx.Model(&models.User{}).Where("is_archived = ?", false)
	if explicit.Cardinality() > 0 {
		q = q.Where("id IN ?", explicit.ToSlice())
	}
	var ids []uint
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("resolve required users: %w", err)
	}
	return mapset.NewThreadUnsafeSet(ids...), nil
}

func acknowledgedIDs(tx *gorm.DB, pvID uint) (mapset.Set[uint], error) {
	var ids []uint
	if err := tx.Model(&models.PolicyAcknowledgement{}).
		Where("policy_version_id = ?", pvID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return mapset.NewThreadUnsafeSet(ids...), nil
}

func usersByID(tx *gorm.DB, ids mapset.Set[uint]) ([]models.User, error) {
	if ids.Cardinality() == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	err := tx.Where("id IN ?", ids.ToSlice()).Order("name, id").Find(&users).Error
	return users, err
}

// RequiredUsers lists the users who must acknowledge version pvID.
func (s *PolicyService) RequiredUsers(ctx context.Context, pvID uint) ([]models.User, error) {
	db := s.db.WithContext(ctx)
	pv, err := loadVersion(db, pvID)
	if err != nil {
		return nil, err
	}
	ids, err := requiredIDs(db, pv)
	if err != nil {
		return nil, err
	}
	return usersByID(db, ids)
}

// PendingUsers lists required users who have not acknowledged yet.
func (s *PolicyService) PendingUsers(ctx context.Context, pvID uint) ([]models.User, error) {
	db := s.db.WithContext(ctx)
	pv, err := loadVersion(db, pvID)
	if err != nil {
		return nil, err
	}
	required, err := requiredIDs(db, pv)
	if err != nil {
		return nil, err
	}
	acked, err := acknowledgedIDs(db, pvID)
	if err != nil {
		return nil, err
	}
	return usersByID(db, required.Difference(acked))
}

// Acknowledge records that userID read version pvID. A second call
// returns the existing row with created=false. Only Active versions can
// be acknowledged.
func (s *PolicyService) Acknowledge(ctx context.Context, pvID, userID uint) (*models.PolicyAcknowledgement, bool, error) {
	var (
		ack     models.PolicyAcknowledgement
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pv, err := findByID[models.PolicyVersion](tx, pvID, "policy version")
		if err != nil {
			return err
		}
		if pv.Status != models.PolicyActive {
			return apperr.ErrPolicyNotActive
		}
		if _, err := findActive[models.User](tx, userID, "user"); err != nil {
			return err
		}

		err = tx.Where("policy_version_id = ? AND user_id = ?", pvID, userID).First(&ack).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		ack = models.PolicyAcknowledgement{
			PolicyVersionID: pvID,
			UserID:          userID,
			AcknowledgedAt:  s.clock.Now().UTC(),
		}
		if err := tx.Create(&ack).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil && database.IsUniqueViolation(err) {
		// A concurrent request inserted the row first.
		if ferr := s.db.WithContext(ctx).
			Where("policy_version_id = ? AND user_id = ?", pvID, userID).
			First(&ack).Error; ferr == nil {
			return &ack, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}
	if created {
		metrics.PolicyAcknowledgements.Inc()
	}
	return &ack, created, nil
}

// CreateVersion adds a Draft version to a policy.
func (s *PolicyService) CreateVersion(ctx context.Context, policyID uint, in VersionInput) (*models.PolicyVersion, error) {
	if in.VersionNumber == "" {
		return nil, apperr.Validation("version number is required")
	}
	if in.EffectiveDate.IsZero() {
		return nil, apperr.Validation("effective date is required")
	}

	var pv *models.PolicyVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findByID[models.Policy](tx, policyID, "policy"); err != nil {
			return err
		}
		pv = &models.PolicyVersion{
			PolicyID:      policyID,
			VersionNumber: in.VersionNumber,
			Status:        models.PolicyDraft,
			Content:       in.Content,
			EffectiveDate: calendar.Truncate(in.EffectiveDate),
		}
		if err := tx.Create(pv).Error; err != nil {
			return fmt.Errorf("create policy version: %w", err)
		}
		return s.setAudience(tx, pv, in.UserIDs, in.GroupIDs)
	})
	if err != nil {
		return nil, err
	}
	return pv, nil
}

// SetAudience replaces the explicit users and groups of a version.
func (s *PolicyService) SetAudience(ctx context.Context, pvID uint, userIDs, groupIDs []uint) (*models.PolicyVersion, error) {
	var pv *models.PolicyVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		pv, err = findByID[models.PolicyVersion](tx, pvID, "policy version")
		if err != nil {
			return err
		}
		return s.setAudience(tx, pv, userIDs, groupIDs)
	})
	if err != nil {
		return nil, err
	}
	return pv, nil
}

func (s *PolicyService) setAudience(tx *gorm.DB, pv *models.PolicyVersion, userIDs, groupIDs []uint) error {
	users, err := loadByIDs[models.User](tx, userIDs, "users")
	if err != nil {
		return err
	}
	groups, err := loadByIDs[models.Group](tx, groupIDs, "groups")
	if err != nil {
		return err
	}
	if err := replaceAssociation(tx, pv, "UsersToAcknowledge", users); err != nil {
		return fmt.Errorf("set users to acknowledge: %w", err)
	}
	if err := replaceAssociation(tx, pv, "GroupsToAcknowledge", groups); err != nil {
		return fmt.Errorf("set groups to acknowledge: %w", err)
	}
	pv.UsersToAcknowledge = users
	pv.GroupsToAcknowledge = groups
	return nil
}

// ActivateVersion makes pvID the Active version of its policy. The
// previously Active version, if any, becomes Archived with end_date set to
// today. Both changes commit together or not at all.
func (s *PolicyService) ActivateVersion(ctx context.Context, pvID uint) (*models.PolicyVersion, error) {
	today := calendar.Today(s.clock)
	var pv *models.PolicyVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		pv, err = findByID[models.PolicyVersion](tx, pvID, "policy version")
		if err != nil {
			return err
		}
		if pv.Status == models.PolicyActive {
			return nil
		}

		if err := tx.Model(&models.PolicyVersion{}).
			Where("policy_id = ? AND status = ? AND id <> ?", pv.PolicyID, models.PolicyActive, pv.ID).
			Updates(map[string]any{"status": models.PolicyArchived, "end_date": today}).Error; err != nil {
			return fmt.Errorf("archive active version: %w", err)
		}

		if err := tx.Model(&models.PolicyVersion{}).
			Where("id = ?", pv.ID).
			Updates(map[string]any{"status": models.PolicyActive, "end_date": nil}).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.State("policy %d was activated concurrently, retry", pv.PolicyID)
			}
			return fmt.Errorf("activate version: %w", err)
		}
		pv.Status = models.PolicyActive
		pv.EndDate = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	glog.Infof("Policy[%d]: version %s activated", pv.PolicyID, pv.VersionNumber)
	return pv, nil
}

// DeleteVersion removes a version with its acknowledgements, audience,
// attachments and compliance links.
func (s *PolicyService) DeleteVersion(ctx context.Context, pvID uint) error {
	return s.links.DeleteEntity(ctx, models.LinkPolicyVersion, pvID, func(tx *gorm.DB) error {
		if err := tx.Where("policy_version_id = ?", pvID).Delete(&models.PolicyAcknowledgement{}).Error; err != nil {
			return fmt.Errorf("delete acknowledgements: %w", err)
		}
		pv := &models.PolicyVersion{ID: pvID}
		if err := tx.Model(pv).Association("UsersToAcknowledge").Clear(); err != nil {
			return err
		}
		return tx.Model(pv).Association("GroupsToAcknowledge").Clear()
	})
}

// ActiveVersion returns the Active version of a policy.
func (s *PolicyService) ActiveVersion(ctx context.Context, policyID uint) (*models.PolicyVersion, error) {
	var pv models.PolicyVersion
	err := s.db.WithContext(ctx).
		Where("policy_id = ? AND status = ?", policyID, models.PolicyActive).
		First(&pv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("policy %d has no active version", policyID)
		}
		return nil, err
	}
	return &pv, nil
}

// OutstandingSummary reports acknowledgement progress for every Active
// version.
func (s *PolicyService) OutstandingSummary(ctx context.Context) ([]AckSummary, error) {
	db := s.db.WithContext(ctx)
	var versions []models.PolicyVersion
	if err := db.Preload("Policy").
		Preload("UsersToAcknowledge").
		Preload("GroupsToAcknowledge.Users").
		Where("status = ?", models.PolicyActive).
		Order("policy_id").
		Find(&versions).Error; err != nil {
		return nil, err
	}

	out := make([]AckSummary, 0, len(versions))
	for i := range versions {
		pv := &versions[i]
		required, err := requiredIDs(db, pv)
		if err != nil {
			return nil, err
		}
		acked, err := acknowledgedIDs(db, pv.ID)
		if err != nil {
			return nil, err
		}
		sum := AckSummary{
			PolicyID:        pv.PolicyID,
			PolicyVersionID: pv.ID,
			VersionNumber:   pv.VersionNumber,
			Required:        required.Cardinality(),
			Acknowledged:    required.Intersect(acked).Cardinality(),
			Pending:         required.Difference(acked).Cardinality(),
		}
		if pv.Policy != nil {
			sum.PolicyTitle = pv.Policy.Title
		}
		out = append(out, sum)
	}
	return out, nil
}
