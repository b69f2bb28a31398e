package models

import (
	"time"
)

// Course is a training module users must finish within CompletionDays of
// being assigned.
type Course struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	Title          string    `gorm:"column:title;size:255;not null" json:"title"`
	Description    string    `gorm:"column:description;type:text" json:"description"`
	CompletionDays int       `gorm:"column:completion_days;not null;default:30" json:"completion_days"`
	IsArchived     bool      `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

type CourseAssignment struct {
	ID           uint              `gorm:"column:id;primaryKey" json:"id"`
	CourseID     uint              `gorm:"column:course_id;not null;uniqueIndex:idx_course_user,priority:1" json:"course_id"`
	Course       *Course           `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	UserID       uint              `gorm:"column:user_id;not null;uniqueIndex:idx_course_user,priority:2" json:"user_id"`
	User         *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AssignedDate time.Time         `gorm:"column:assigned_date;type:date;not null" json:"assigned_date"`
	DueDate      time.Time         `gorm:"column:due_date;type:date;not null" json:"due_date"`
	Completion   *CourseCompletion `gorm:"foreignKey:AssignmentID" json:"completion,omitempty"`
}

// IsCompleted reports whether a completion has been loaded for a.
func (a *CourseAssignment) IsCompleted() bool {
	return a.Completion != nil
}

// CourseCompletion closes an assignment. Attachments (certificates) bind
// to it through the link registry.
type CourseCompletion struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	AssignmentID   uint      `gorm:"column:assignment_id;not null;uniqueIndex" json:"assignment_id"`
	CompletionDate time.Time `gorm:"column:completion_date;type:date;not null" json:"completion_date"`
	Notes          string    `gorm:"column:notes;type:text" json:"notes"`
	RecordedBy     *uint     `gorm:"column:recorded_by" json:"recorded_by"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Course) TableName() string {
	return "courses"
}

func (CourseAssignment) TableName() string {
	return "course_assignments"
}

func (CourseCompletion) TableName() string {
	return "course_completions"
}
