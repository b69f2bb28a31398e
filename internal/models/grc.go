package models

import (
	"time"

	"gorm.io/datatypes"
)

type TreatmentStrategy string

const (
	TreatmentAvoid    TreatmentStrategy = "Avoid"
	TreatmentMitigate TreatmentStrategy = "Mitigate"
	TreatmentTransfer TreatmentStrategy = "Transfer"
	TreatmentAccept   TreatmentStrategy = "Accept"
)

func (t TreatmentStrategy) Valid() bool {
	switch t {
	case TreatmentAvoid, TreatmentMitigate, TreatmentTransfer, TreatmentAccept:
		return true
	}
	return false
}

// Risk is a register entry. Ratings are 1..5; scores are derived.
type Risk struct {
	ID                 uint              `gorm:"column:id;primaryKey" json:"id"`
	Title              string            `gorm:"column:title;size:255;not null" json:"title"`
	Description        string            `gorm:"column:description;type:text" json:"description"`
	InherentImpact     int               `gorm:"column:inherent_impact;not null" json:"inherent_impact"`
	InherentLikelihood int               `gorm:"column:inherent_likelihood;not null" json:"inherent_likelihood"`
	ResidualImpact     int               `gorm:"column:residual_impact;not null" json:"residual_impact"`
	ResidualLikelihood int               `gorm:"column:residual_likelihood;not null" json:"residual_likelihood"`
	TreatmentStrategy  TreatmentStrategy `gorm:"column:treatment_strategy;size:20" json:"treatment_strategy"`
	OwnerID            *uint             `gorm:"column:owner_id" json:"owner_id"`
	IsArchived         bool              `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt          time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

// SecurityIncident is a reported security event.
type SecurityIncident struct {
	ID           uint                    `gorm:"column:id;primaryKey" json:"id"`
	Title        string                  `gorm:"column:title;size:255;not null" json:"title"`
	Description  string                  `gorm:"column:description;type:text" json:"description"`
	Severity     string                  `gorm:"column:severity;size:20" json:"severity"`
	Status       string                  `gorm:"column:status;size:20;default:Open" json:"status"`
	ReportedAt   time.Time               `gorm:"column:reported_at;not null" json:"reported_at"`
	ResolvedAt   *time.Time              `gorm:"column:resolved_at" json:"resolved_at"`
	ReportedByID *uint                   `gorm:"column:reported_by_id" json:"reported_by_id"`
	IsArchived   bool                    `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt    time.Time               `gorm:"column:created_at" json:"created_at"`
	Timeline     []IncidentTimelineEvent `gorm:"foreignKey:IncidentID" json:"timeline,omitempty"`
	Review       *PostIncidentReview     `gorm:"foreignKey:IncidentID" json:"review,omitempty"`
}

type PostIncidentReview struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	IncidentID     uint      `gorm:"column:incident_id;not null;uniqueIndex" json:"incident_id"`
	RootCause      string    `gorm:"column:root_cause;type:text" json:"root_cause"`
	LessonsLearned string    `gorm:"column:lessons_learned;type:text" json:"lessons_learned"`
	ActionItems    string    `gorm:"column:action_items;type:text" json:"action_items"`
	ReviewDate     time.Time `gorm:"column:review_date;type:date" json:"review_date"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

type IncidentTimelineEvent struct {
	ID          uint              `gorm:"column:id;primaryKey" json:"id"`
	IncidentID  uint              `gorm:"column:incident_id;not null;index" json:"incident_id"`
	EventTime   time.Time         `gorm:"column:event_time;not null" json:"event_time"`
	Description string            `gorm:"column:description;type:text;not null" json:"description"`
	Metadata    datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"column:created_at" json:"created_at"`
}

// Framework is a compliance framework (ISO 27001, SOC 2, ...). Built-in
// frameworks ship with a fixed control set.
type Framework struct {
	ID          uint               `gorm:"column:id;primaryKey" json:"id"`
	Name        string             `gorm:"column:name;size:255;uniqueIndex;not null" json:"name"`
	Description string             `gorm:"column:description;type:text" json:"description"`
	IsBuiltin   bool               `gorm:"column:is_builtin;default:false" json:"is_builtin"`
	IsActive    bool               `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt   time.Time          `gorm:"column:created_at" json:"created_at"`
	Controls    []FrameworkControl `gorm:"foreignKey:FrameworkID" json:"controls,omitempty"`
}

type FrameworkControl struct {
	ID          uint       `gorm:"column:id;primaryKey" json:"id"`
	FrameworkID uint       `gorm:"column:framework_id;not null;index" json:"framework_id"`
	Framework   *Framework `gorm:"foreignKey:FrameworkID" json:"framework,omitempty"`
	ControlID   string     `gorm:"column:control_id;size:50;not null" json:"control_id"`
	Name        string     `gorm:"column:name;size:255;not null" json:"name"`
	Description string     `gorm:"column:description;type:text" json:"description"`
}

// ComplianceLink ties a control to any linkable entity.
type ComplianceLink struct {
	ID                 uint              `gorm:"column:id;primaryKey" json:"id"`
	FrameworkControlID uint              `gorm:"column:framework_control_id;not null;uniqueIndex:idx_compliance_link,priority:1" json:"framework_control_id"`
	FrameworkControl   *FrameworkControl `gorm:"foreignKey:FrameworkControlID" json:"framework_control,omitempty"`
	LinkableType       LinkableType      `gorm:"column:linkable_type;size:50;not null;uniqueIndex:idx_compliance_link,priority:3;index:idx_compliance_target,priority:1" json:"linkable_type"`
	LinkableID         uint              `gorm:"column:linkable_id;not null;uniqueIndex:idx_compliance_link,priority:2;index:idx_compliance_target,priority:2" json:"linkable_id"`
	Description        string            `gorm:"column:description;type:text" json:"description"`
	CreatedAt          time.Time         `gorm:"column:created_at" json:"created_at"`
}

// BCDRPlan is a business continuity or disaster recovery plan.
type BCDRPlan struct {
	ID          uint          `gorm:"column:id;primaryKey" json:"id"`
	Name        string        `gorm:"column:name;size:255;not null" json:"name"`
	Description string        `gorm:"column:description;type:text" json:"description"`
	RTOHours    *int          `gorm:"column:rto_hours" json:"rto_hours"`
	RPOHours    *int          `gorm:"column:rpo_hours" json:"rpo_hours"`
	IsArchived  bool          `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt   time.Time     `gorm:"column:created_at" json:"created_at"`
	TestLogs    []BCDRTestLog `gorm:"foreignKey:PlanID" json:"test_logs,omitempty"`
}

type BCDRTestLog struct {
	ID       uint      `gorm:"column:id;primaryKey" json:"id"`
	PlanID   uint      `gorm:"column:plan_id;not null;index" json:"plan_id"`
	TestDate time.Time `gorm:"column:test_date;type:date;not null" json:"test_date"`
	Outcome  string    `gorm:"column:outcome;size:20" json:"outcome"`
	Notes    string    `gorm:"column:notes;type:text" json:"notes"`
}

// DisposalRecord documents the end of life of exactly one asset or
// peripheral.
type DisposalRecord struct {
	ID           uint              `gorm:"column:id;primaryKey" json:"id"`
	AssetID      *uint             `gorm:"column:asset_id;uniqueIndex" json:"asset_id"`
	PeripheralID *uint             `gorm:"column:peripheral_id;uniqueIndex" json:"peripheral_id"`
	DisposalDate time.Time         `gorm:"column:disposal_date;type:date;not null" json:"disposal_date"`
	Method       string            `gorm:"column:method;size:100" json:"method"`
	Notes        string            `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt    time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at" json:"updated_at"`
	History      []DisposalHistory `gorm:"foreignKey:DisposalRecordID" json:"history,omitempty"`
}

type DisposalHistory struct {
	ID               uint      `gorm:"column:id;primaryKey" json:"id"`
	DisposalRecordID uint      `gorm:"column:disposal_record_id;not null;index" json:"disposal_record_id"`
	UserID           *uint     `gorm:"column:user_id" json:"user_id"`
	Reason           string    `gorm:"column:reason;type:text;not null" json:"reason"`
	Changes          string    `gorm:"column:changes;type:text" json:"changes"`
	Timestamp        time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
}

func (Risk) TableName() string                  { return "risks" }
func (SecurityIncident) TableName() string      { return "security_incidents" }
func (PostIncidentReview) TableName() string    { return "post_incident_reviews" }
func (IncidentTimelineEvent) TableName() string { return "incident_timeline_events" }
func (Framework) TableName() string             { return "frameworks" }
func (FrameworkControl) TableName() string      { return "framework_controls" }
func (ComplianceLink) TableName() string        { return "compliance_links" }
func (BCDRPlan) TableName() string              { return "bcdr_plans" }
func (BCDRTestLog) TableName() string           { return "bcdr_test_logs" }
func (DisposalRecord) TableName() string        { return "disposal_records" }
func (DisposalHistory) TableName() string       { return "disposal_history" }
