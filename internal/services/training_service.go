package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/database"
	"github.com/opsledger/backend/internal/models"
)

// TrainingService assigns courses and records completions.
type TrainingService struct {
	db    *gorm.DB
	links *LinkRegistry
	clock calendar.Clock
}

func NewTrainingService(db *gorm.DB, links *LinkRegistry, clock calendar.Clock) *TrainingService {
	return &TrainingService{db: db, links: links, clock: clock}
}

// Upload is a file submitted alongside another operation.
type Upload struct {
	Filename string
	Body     io.Reader
}

// CompletionInput describes a completion. A nil Date means today, which is
// what self-completion uses; admins may back-date.
type CompletionInput struct {
	Date       *time.Time
	Notes      string
	RecordedBy *uint
	Attachment *Upload
}

// Assign creates the assignment of courseID to userID, due CompletionDays
// from today. An existing assignment is returned with created=false.
func (s *TrainingService) Assign(ctx context.Context, courseID, userID uint) (*models.CourseAssignment, bool, error) {
	var (
		a       models.CourseAssignment
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.assignInTx(tx, courseID, userID, &a)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return &a, created, nil
}

func (s *TrainingService) assignInTx(tx *gorm.DB, courseID, userID uint, out *models.CourseAssignment) (bool, error) {
	course, err := findActive[models.Course](tx, courseID, "course")
	if err != nil {
		return false, err
	}
	if _, err := findActive[models.User](tx, userID, "user"); err != nil {
		return false, err
	}

	err = tx.Where("course_id = ? AND user_id = ?", courseID, userID).First(out).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	today := calendar.Today(s.clock)
	*out = models.CourseAssignment{
		CourseID:     courseID,
		UserID:       userID,
		AssignedDate: today,
		DueDate:      calendar.AddDays(today, course.CompletionDays),
	}
	if err := tx.Create(out).Error; err != nil {
		return false, uniqueOr(err, "course %d is already assigned to user %d", courseID, userID)
	}
	return true, nil
}

// AssignGroup assigns courseID to every non-archived member of groupID
// and returns how many new assignments were created.
func (s *TrainingService) AssignGroup(ctx context.Context, courseID, groupID uint) (int, error) {
	created := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Preload("Users", "is_archived = ?", false).First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group %d not found", groupID)
			}
			return err
		}
		for _, u := range group.Users {
			var a models.CourseAssignment
			ok, err := s.assignInTx(tx, courseID, u.ID, &a)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	glog.Infof("Training: course %d assigned to %d members of group %d", courseID, created, groupID)
	return created, nil
}

// Complete records the completion of an assignment, optionally storing a
// certificate. An existing completion is returned with created=false and
// the upload is ignored.
func (s *TrainingService) Complete(ctx context.Context, assignmentID uint, in CompletionInput) (*models.CourseCompletion, bool, error) {
	date := calendar.Today(s.clock)
	if in.Date != nil {
		date = calendar.Truncate(*in.Date)
	}

	var (
		c       models.CourseCompletion
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findByID[models.CourseAssignment](tx, assignmentID, "course assignment"); err != nil {
			return err
		}

		err := tx.Where("assignment_id = ?", assignmentID).First(&c).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		c = models.CourseCompletion{
			AssignmentID:   assignmentID,
			CompletionDate: date,
			Notes:          in.Notes,
			RecordedBy:     in.RecordedBy,
		}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		created = true

		if in.Attachment != nil {
			if _, err := s.links.AttachInTx(tx, models.LinkCourseCompletion, c.ID, in.Attachment.Filename, in.Attachment.Body, in.RecordedBy); err != nil {
				return fmt.Errorf("attach certificate: %w", err)
			}
		}
		return nil
	})
	if err != nil && database.IsUniqueViolation(err) {
		if ferr := s.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).First(&c).Error; ferr == nil {
			return &c, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}
	return &c, created, nil
}

// Assignment loads one assignment with its course and completion.
func (s *TrainingService) Assignment(ctx context.Context, id uint) (*models.CourseAssignment, error) {
	var a models.CourseAssignment
	err := s.db.WithContext(ctx).Preload("Course").Preload("Completion").First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("course assignment %d not found", id)
		}
		return nil, err
	}
	return &a, nil
}

// ForUser lists a user's assignments, soonest due first.
func (s *TrainingService) ForUser(ctx context.Context, userID uint) ([]models.CourseAssignment, error) {
	var out []models.CourseAssignment
	err := s.db.WithContext(ctx).
		Preload("Course").Preload("Completion").
		Where("user_id = ?", userID).
		Order("due_date, id").
		Find(&out).Error
	return out, err
}

// Overdue lists incomplete assignments whose due date is before today.
func (s *TrainingService) Overdue(ctx context.Context) ([]models.CourseAssignment, error) {
	today := calendar.Today(s.clock)
	var out []models.CourseAssignment
	err := s.db.WithContext(ctx).
		Preload("Course").Preload("User").
		Where("due_date < ?", today).
		Where("NOT EXISTS (SELECT 1 FROM course_completions cc WHERE cc.assignment_id = course_assignments.id)").
		Order("due_date, id").
		Find(&out).Error
	return out, err
}
