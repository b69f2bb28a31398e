package services

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/models"
)

func TestTrainingAssignSetsDueDate(t *testing.T) {
	db := newTestDB(t)
	svc := NewTrainingService(db, newTestLinks(t, db), testClock())
	u := mkUser(t, db, "u", models.RoleUser)
	course := &models.Course{Title: "Phishing", CompletionDays: 14}
	require.NoError(t, db.Create(course).Error)

	a, created, err := svc.Assign(ctx, course.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, day(2025, 1, 1), a.AssignedDate)
	assert.Equal(t, day(2025, 1, 15), a.DueDate)

	again, created, err := svc.Assign(ctx, course.ID, u.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, again.ID)
}

func TestTrainingAssignRejectsArchived(t *testing.T) {
	db := newTestDB(t)
	svc := NewTrainingService(db, newTestLinks(t, db), testClock())
	u := mkUser(t, db, "u", models.RoleUser)
	course := &models.Course{Title: "Old", CompletionDays: 7, IsArchived: true}
	require.NoError(t, db.Create(course).Error)

	_, _, err := svc.Assign(ctx, course.ID, u.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestTrainingCompleteOnce(t *testing.T) {
	db := newTestDB(t)
	links := newTestLinks(t, db)
	svc := NewTrainingService(db, links, testClock())
	admin := mkUser(t, db, "admin", models.RoleAdmin)
	u := mkUser(t, db, "u", models.RoleUser)
	course := &models.Course{Title: "GDPR", CompletionDays: 30}
	require.NoError(t, db.Create(course).Error)
	a, _, err := svc.Assign(ctx, course.ID, u.ID)
	require.NoError(t, err)

	backdated := day(2024, 12, 20)
	c, created, err := svc.Complete(ctx, a.ID, CompletionInput{
		Date:       &backdated,
		Notes:      "classroom",
		RecordedBy: &admin.ID,
		Attachment: &Upload{Filename: "cert.pdf", Body: strings.NewReader("certificate")},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, backdated, c.CompletionDate)

	second, created, err := svc.Complete(ctx, a.ID, CompletionInput{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.CourseCompletion{}).Where("assignment_id = ?", a.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	loaded, err := svc.Assignment(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsCompleted())

	atts, err := links.AttachmentsFor(ctx, models.LinkCourseCompletion, c.ID)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	_, f, err := links.OpenAttachment(ctx, atts[0].ID)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "certificate", string(body))
}

func TestTrainingSelfCompletionDefaultsToToday(t *testing.T) {
	db := newTestDB(t)
	svc := NewTrainingService(db, newTestLinks(t, db), testClock())
	u := mkUser(t, db, "u", models.RoleUser)
	course := &models.Course{Title: "Passwords", CompletionDays: 5}
	require.NoError(t, db.Create(course).Error)
	a, _, err := svc.Assign(ctx, course.ID, u.ID)
	require.NoError(t, err)

	c, _, err := svc.Complete(ctx, a.ID, CompletionInput{RecordedBy: &u.ID})
	require.NoError(t, err)
	assert.Equal(t, day(2025, 1, 1), c.CompletionDate)
}

func TestTrainingAssignGroupAndOverdue(t *testing.T) {
	db := newTestDB(t)
	links := newTestLinks(t, db)
	svc := NewTrainingService(db, links, testClock())
	u1 := mkUser(t, db, "u1", models.RoleUser)
	u2 := mkUser(t, db, "u2", models.RoleUser)
	g := &models.Group{Name: "all", Users: []models.User{*u1, *u2}}
	require.NoError(t, db.Create(g).Error)
	course := &models.Course{Title: "Security basics", CompletionDays: 10}
	require.NoError(t, db.Create(course).Error)

	_, _, err := svc.Assign(ctx, course.ID, u1.ID)
	require.NoError(t, err)
	n, err := svc.AssignGroup(ctx, course.ID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "existing assignments are kept")

	// Three weeks later both are overdue until one completes.
	later := NewTrainingService(db, links, calendar.FixedClock{At: testNow.AddDate(0, 0, 21)})
	overdue, err := later.Overdue(ctx)
	require.NoError(t, err)
	assert.Len(t, overdue, 2)

	mine, err := svc.ForUser(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	_, _, err = later.Complete(ctx, mine[0].ID, CompletionInput{})
	require.NoError(t, err)

	overdue, err = later.Overdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, u2.ID, overdue[0].UserID)
}
