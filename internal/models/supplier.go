package models

import (
	"time"
)

// ComplianceStatus tracks a supplier's vendor-risk review outcome.
type ComplianceStatus string

const (
	CompliancePending      ComplianceStatus = "Pending"
	ComplianceCompliant    ComplianceStatus = "Compliant"
	ComplianceNonCompliant ComplianceStatus = "Non-Compliant"
	ComplianceApproved     ComplianceStatus = "Approved"
	ComplianceRejected     ComplianceStatus = "Rejected"
)

func (s ComplianceStatus) Valid() bool {
	switch s {
	case CompliancePending, ComplianceCompliant, ComplianceNonCompliant, ComplianceApproved, ComplianceRejected:
		return true
	}
	return false
}

// Supplier is a vendor of hardware, software or services.
type Supplier struct {
	ID                uint             `gorm:"column:id;primaryKey" json:"id"`
	Name              string           `gorm:"column:name;size:255;not null" json:"name"`
	Email             string           `gorm:"column:email;size:255" json:"email"`
	Phone             string           `gorm:"column:phone;size:50" json:"phone"`
	Website           string           `gorm:"column:website;size:255" json:"website"`
	ComplianceStatus  ComplianceStatus `gorm:"column:compliance_status;size:20;default:Pending" json:"compliance_status"`
	GDPRDPASigned     *time.Time       `gorm:"column:gdpr_dpa_signed;type:date" json:"gdpr_dpa_signed"`
	DataStorageRegion string           `gorm:"column:data_storage_region;size:100" json:"data_storage_region"`
	IsArchived        bool             `gorm:"column:is_archived;default:false;index" json:"is_archived"`
	CreatedAt         time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"column:updated_at" json:"updated_at"`

	Contacts []Contact `gorm:"foreignKey:SupplierID" json:"contacts,omitempty"`
}

// Contact is a person at a supplier.
type Contact struct {
	ID         uint      `gorm:"column:id;primaryKey" json:"id"`
	Name       string    `gorm:"column:name;size:255;not null" json:"name"`
	Email      string    `gorm:"column:email;size:255" json:"email"`
	Phone      string    `gorm:"column:phone;size:50" json:"phone"`
	Role       string    `gorm:"column:role;size:100" json:"role"`
	SupplierID uint      `gorm:"column:supplier_id;not null;index" json:"supplier_id"`
	Supplier   *Supplier `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	IsArchived bool      `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// Location is a physical site where assets live.
type Location struct {
	ID         uint      `gorm:"column:id;primaryKey" json:"id"`
	Name       string    `gorm:"column:name;size:255;uniqueIndex;not null" json:"name"`
	Address    string    `gorm:"column:address;size:500" json:"address"`
	IsArchived bool      `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

// Tag is a free-form label shared by subscriptions and purchases.
type Tag struct {
	ID    uint   `gorm:"column:id;primaryKey" json:"id"`
	Name  string `gorm:"column:name;size:100;uniqueIndex;not null" json:"name"`
	Color string `gorm:"column:color;size:20" json:"color"`
}

// PaymentMethod is a card or account used to pay for subscriptions and
// purchases. ExpiryDate is only meaningful month-wise.
type PaymentMethod struct {
	ID          uint       `gorm:"column:id;primaryKey" json:"id"`
	Name        string     `gorm:"column:name;size:255;not null" json:"name"`
	MethodType  string     `gorm:"column:method_type;size:50" json:"method_type"`
	Description string     `gorm:"column:description;size:500" json:"description"`
	ExpiryDate  *time.Time `gorm:"column:expiry_date;type:date" json:"expiry_date"`
	IsArchived  bool       `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (Supplier) TableName() string {
	return "suppliers"
}

func (Contact) TableName() string {
	return "contacts"
}

func (Location) TableName() string {
	return "locations"
}

func (Tag) TableName() string {
	return "tags"
}

func (PaymentMethod) TableName() string {
	return "payment_methods"
}
