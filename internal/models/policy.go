package models

import (
	"time"
)

type PolicyVersionStatus string

const (
	PolicyDraft    PolicyVersionStatus = "Draft"
	PolicyActive   PolicyVersionStatus = "Active"
	PolicyArchived PolicyVersionStatus = "Archived"
)

// Policy is a governance document with versioned content.
type Policy struct {
	ID          uint            `gorm:"column:id;primaryKey" json:"id"`
	Title       string          `gorm:"column:title;size:255;not null" json:"title"`
	Category    string          `gorm:"column:category;size:100" json:"category"`
	Description string          `gorm:"column:description;type:text" json:"description"`
	IsArchived  bool            `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`
	Versions    []PolicyVersion `gorm:"foreignKey:PolicyID" json:"versions,omitempty"`
}

// PolicyVersion is one revision of a policy. At most one version per
// policy is Active; the database enforces it with a partial unique index.
type PolicyVersion struct {
	ID            uint                `gorm:"column:id;primaryKey" json:"id"`
	PolicyID      uint                `gorm:"column:policy_id;not null;index" json:"policy_id"`
	Policy        *Policy             `gorm:"foreignKey:PolicyID" json:"policy,omitempty"`
	VersionNumber string              `gorm:"column:version_number;size:50;not null" json:"version_number"`
	Status        PolicyVersionStatus `gorm:"column:status;size:20;not null;default:Draft;index" json:"status"`
	Content       string              `gorm:"column:content;type:text" json:"content"`
	EffectiveDate time.Time           `gorm:"column:effective_date;type:date;not null" json:"effective_date"`
	EndDate       *time.Time          `gorm:"column:end_date;type:date" json:"end_date"`
	CreatedAt     time.Time           `gorm:"column:created_at" json:"created_at"`

	UsersToAcknowledge  []User                  `gorm:"many2many:policy_version_users;" json:"users_to_acknowledge,omitempty"`
	GroupsToAcknowledge []Group                 `gorm:"many2many:policy_version_groups;" json:"groups_to_acknowledge,omitempty"`
	Acknowledgements    []PolicyAcknowledgement `gorm:"foreignKey:PolicyVersionID" json:"acknowledgements,omitempty"`
}

// PolicyAcknowledgement records that a user read a version.
type PolicyAcknowledgement struct {
	ID              uint      `gorm:"column:id;primaryKey" json:"id"`
	PolicyVersionID uint      `gorm:"column:policy_version_id;not null;uniqueIndex:idx_ack_version_user,priority:1" json:"policy_version_id"`
	UserID          uint      `gorm:"column:user_id;not null;uniqueIndex:idx_ack_version_user,priority:2" json:"user_id"`
	User            *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AcknowledgedAt  time.Time `gorm:"column:acknowledged_at;not null" json:"acknowledged_at"`
}

func (Policy) TableName() string {
	return "policies"
}

func (PolicyVersion) TableName() string {
	return "policy_versions"
}

func (PolicyAcknowledgement) TableName() string {
	return "policy_acknowledgements"
}
