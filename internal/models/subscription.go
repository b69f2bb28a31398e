package models

import (
	"time"
)

// RenewalPeriodType selects how a subscription advances between renewals.
type RenewalPeriodType string

const (
	RenewalMonthly RenewalPeriodType = "monthly"
	RenewalYearly  RenewalPeriodType = "yearly"
	RenewalCustom  RenewalPeriodType = "custom"
)

func (t RenewalPeriodType) Valid() bool {
	switch t {
	case RenewalMonthly, RenewalYearly, RenewalCustom:
		return true
	}
	return false
}

// Subscription is a recurring SaaS or service contract.
type Subscription struct {
	ID                 uint              `gorm:"column:id;primaryKey" json:"id"`
	Name               string            `gorm:"column:name;size:255;not null" json:"name"`
	SubscriptionType   string            `gorm:"column:subscription_type;size:100" json:"subscription_type"`
	Description        string            `gorm:"column:description;type:text" json:"description"`
	RenewalDate        time.Time         `gorm:"column:renewal_date;type:date;not null" json:"renewal_date"`
	RenewalPeriodType  RenewalPeriodType `gorm:"column:renewal_period_type;size:20;not null;default:monthly" json:"renewal_period_type"`
	RenewalPeriodValue int               `gorm:"column:renewal_period_value;not null;default:1" json:"renewal_period_value"`
	// MonthlyRenewalDay is "", "first", "last" or "1".."31".
	MonthlyRenewalDay string  `gorm:"column:monthly_renewal_day;size:10" json:"monthly_renewal_day"`
	Cost              float64 `gorm:"column:cost;type:decimal(15,2);not null;default:0" json:"cost"`
	Currency          string  `gorm:"column:currency;size:3;not null;default:EUR" json:"currency"`
	AutoRenew         bool    `gorm:"column:auto_renew;default:false" json:"auto_renew"`

	SupplierID uint      `gorm:"column:supplier_id;not null;index" json:"supplier_id"`
	Supplier   *Supplier `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	SoftwareID *uint     `gorm:"column:software_id;index" json:"software_id"`
	Software   *Software `gorm:"foreignKey:SoftwareID" json:"software,omitempty"`

	Tags           []Tag           `gorm:"many2many:subscription_tags;" json:"tags,omitempty"`
	Contacts       []Contact       `gorm:"many2many:subscription_contacts;" json:"contacts,omitempty"`
	PaymentMethods []PaymentMethod `gorm:"many2many:subscription_payment_methods;" json:"payment_methods,omitempty"`
	CostHistory    []CostHistory   `gorm:"foreignKey:SubscriptionID" json:"cost_history,omitempty"`

	IsArchived bool      `gorm:"column:is_archived;default:false;index" json:"is_archived"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// CostHistory records each distinct (cost, currency) a subscription has held.
type CostHistory struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	SubscriptionID uint      `gorm:"column:subscription_id;not null;index" json:"subscription_id"`
	Cost           float64   `gorm:"column:cost;type:decimal(15,2);not null" json:"cost"`
	Currency       string    `gorm:"column:currency;size:3;not null" json:"currency"`
	ChangedDate    time.Time `gorm:"column:changed_date;not null" json:"changed_date"`
}

// OwnerType tags the kind of a polymorphic owner.
type OwnerType string

const (
	OwnerNone  OwnerType = ""
	OwnerUser  OwnerType = "user"
	OwnerGroup OwnerType = "group"
)

// Software is an application in the catalogue, owned by a user or a group.
type Software struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;size:255;uniqueIndex;not null" json:"name"`
	Category    string    `gorm:"column:category;size:100" json:"category"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	OwnerType   OwnerType `gorm:"column:owner_type;size:20" json:"owner_type"`
	OwnerID     *uint     `gorm:"column:owner_id" json:"owner_id"`
	SupplierID  *uint     `gorm:"column:supplier_id;index" json:"supplier_id"`
	Supplier    *Supplier `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	IsArchived  bool      `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

func (CostHistory) TableName() string {
	return "cost_history"
}

func (Software) TableName() string {
	return "software"
}
