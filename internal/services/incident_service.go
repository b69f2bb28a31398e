package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/models"
)

// IncidentService records security incidents, their timeline and the
// post-incident review.
type IncidentService struct {
	db    *gorm.DB
	clock calendar.Clock
}

func NewIncidentService(db *gorm.DB, clock calendar.Clock) *IncidentService {
	return &IncidentService{db: db, clock: clock}
}

// Report opens an incident.
func (s *IncidentService) Report(ctx context.Context, title, description, severity string, reportedBy *uint) (*models.SecurityIncident, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation("incident title is required")
	}
	inc := &models.SecurityIncident{
		Title:        title,
		Description:  description,
		Severity:     severity,
		Status:       "Open",
		ReportedAt:   s.clock.Now().UTC(),
		ReportedByID: reportedBy,
	}
	if err := s.db.WithContext(ctx).Create(inc).Error; err != nil {
		return nil, err
	}
	return inc, nil
}

// Resolve closes an incident.
func (s *IncidentService) Resolve(ctx context.Context, incidentID uint) (*models.SecurityIncident, error) {
	var inc *models.SecurityIncident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inc, err = findByID[models.SecurityIncident](tx, incidentID, "security incident")
		if err != nil {
			return err
		}
		if inc.ResolvedAt != nil {
			return apperr.State("incident %d is already resolved", inc.ID)
		}
		now := s.clock.Now().UTC()
		inc.ResolvedAt = &now
		inc.Status = "Resolved"
		return tx.Model(inc).Updates(map[string]any{"resolved_at": now, "status": "Resolved"}).Error
	})
	if err != nil {
		return nil, err
	}
	return inc, nil
}

// AddTimelineEvent appends an event. A zero eventTime means now.
func (s *IncidentService) AddTimelineEvent(ctx context.Context, incidentID uint, eventTime time.Time, description string, metadata map[string]any) (*models.IncidentTimelineEvent, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperr.Validation("event description is required")
	}
	if eventTime.IsZero() {
		eventTime = s.clock.Now()
	}
	ev := &models.IncidentTimelineEvent{
		IncidentID:  incidentID,
		EventTime:   eventTime.UTC(),
		Description: description,
	}
	if metadata != nil {
		ev.Metadata = datatypes.JSONMap(metadata)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findByID[models.SecurityIncident](tx, incidentID, "security incident"); err != nil {
			return err
		}
		return tx.Create(ev).Error
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Timeline returns the events of an incident by event time, then
// insertion order.
func (s *IncidentService) Timeline(ctx context.Context, incidentID uint) ([]models.IncidentTimelineEvent, error) {
	db := s.db.WithContext(ctx)
	if _, err := findByID[models.SecurityIncident](db, incidentID, "security incident"); err != nil {
		return nil, err
	}
	var out []models.IncidentTimelineEvent
	err := db.Where("incident_id = ?", incidentID).Order("event_time, id").Find(&out).Error
	return out, err
}

// ReviewInput is the content of a post-incident review.
type ReviewInput struct {
	RootCause      string     `json:"root_cause"`
	LessonsLearned string     `json:"lessons_learned"`
	ActionItems    string     `json:"action_items"`
	ReviewDate     *time.Time `json:"review_date"`
}

// UpsertReview creates the incident's single review or replaces its
// content.
func (s *IncidentService) UpsertReview(ctx context.Context, incidentID uint, in ReviewInput) (*models.PostIncidentReview, error) {
	review := &models.PostIncidentReview{
		IncidentID:     incidentID,
		RootCause:      in.RootCause,
		LessonsLearned: in.LessonsLearned,
		ActionItems:    in.ActionItems,
		ReviewDate:     calendar.Today(s.clock),
	}
	if in.ReviewDate != nil {
		review.ReviewDate = calendar.Truncate(*in.ReviewDate)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findByID[models.SecurityIncident](tx, incidentID, "security incident"); err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "incident_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"root_cause", "lessons_learned", "action_items", "review_date", "updated_at"}),
		}).Create(review).Error; err != nil {
			return err
		}
		var saved models.PostIncidentReview
		if err := tx.Where("incident_id = ?", incidentID).First(&saved).Error; err != nil {
			return err
		}
		review = &saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}
