package models

import (
	"time"
)

// Opportunity is a prospective deal with a supplier.
type Opportunity struct {
	ID            uint       `gorm:"column:id;primaryKey" json:"id"`
	Name          string     `gorm:"column:name;size:255;not null" json:"name"`
	SupplierID    *uint      `gorm:"column:supplier_id" json:"supplier_id"`
	Stage         string     `gorm:"column:stage;size:50" json:"stage"`
	EstimatedCost *float64   `gorm:"column:estimated_cost;type:decimal(15,2)" json:"estimated_cost"`
	Currency      string     `gorm:"column:currency;size:3;default:EUR" json:"currency"`
	CloseDate     *time.Time `gorm:"column:close_date;type:date" json:"close_date"`
	IsArchived    bool       `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	Activities    []Activity `gorm:"foreignKey:OpportunityID" json:"activities,omitempty"`
}

type Activity struct {
	ID            uint      `gorm:"column:id;primaryKey" json:"id"`
	OpportunityID *uint     `gorm:"column:opportunity_id;index" json:"opportunity_id"`
	ContactID     *uint     `gorm:"column:contact_id" json:"contact_id"`
	Type          string    `gorm:"column:type;size:50" json:"type"`
	Notes         string    `gorm:"column:notes;type:text" json:"notes"`
	ActivityDate  time.Time `gorm:"column:activity_date" json:"activity_date"`
	IsArchived    bool      `gorm:"column:is_archived;default:false" json:"is_archived"`
}

type Lead struct {
	ID         uint      `gorm:"column:id;primaryKey" json:"id"`
	Name       string    `gorm:"column:name;size:255;not null" json:"name"`
	Company    string    `gorm:"column:company;size:255" json:"company"`
	Email      string    `gorm:"column:email;size:255" json:"email"`
	Status     string    `gorm:"column:status;size:50;default:New" json:"status"`
	IsArchived bool      `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

// Documentation is an internal knowledge-base page owned by a user or
// a group.
type Documentation struct {
	ID         uint      `gorm:"column:id;primaryKey" json:"id"`
	Title      string    `gorm:"column:title;size:255;not null" json:"title"`
	Content    string    `gorm:"column:content;type:text" json:"content"`
	OwnerType  OwnerType `gorm:"column:owner_type;size:20" json:"owner_type"`
	OwnerID    *uint     `gorm:"column:owner_id" json:"owner_id"`
	IsArchived bool      `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Opportunity) TableName() string   { return "opportunities" }
func (Activity) TableName() string      { return "activities" }
func (Lead) TableName() string          { return "leads" }
func (Documentation) TableName() string { return "documentation" }
