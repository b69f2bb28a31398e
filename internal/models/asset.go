package models

import (
	"time"

	"gorm.io/datatypes"
)

// Asset is a tracked piece of hardware.
type Asset struct {
	ID             uint       `gorm:"column:id;primaryKey" json:"id"`
	Name           string     `gorm:"column:name;size:255;not null" json:"name"`
	Model          string     `gorm:"column:model;size:255" json:"model"`
	Brand          string     `gorm:"column:brand;size:255" json:"brand"`
	SerialNumber   *string    `gorm:"column:serial_number;size:255;uniqueIndex" json:"serial_number"`
	Status         string     `gorm:"column:status;size:50;default:In Stock" json:"status"`
	InternalID     string     `gorm:"column:internal_id;size:100" json:"internal_id"`
	PurchaseDate   *time.Time `gorm:"column:purchase_date;type:date" json:"purchase_date"`
	Cost           *float64   `gorm:"column:cost;type:decimal(15,2)" json:"cost"`
	Currency       string     `gorm:"column:currency;size:3;default:EUR" json:"currency"`
	WarrantyLength *int       `gorm:"column:warranty_length" json:"warranty_length"`
	Notes          string     `gorm:"column:notes;type:text" json:"notes"`

	UserID     *uint     `gorm:"column:user_id;index" json:"user_id"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LocationID *uint     `gorm:"column:location_id" json:"location_id"`
	Location   *Location `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	SupplierID *uint     `gorm:"column:supplier_id" json:"supplier_id"`
	Supplier   *Supplier `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	PurchaseID *uint     `gorm:"column:purchase_id;index" json:"purchase_id"`
	Purchase   *Purchase `gorm:"foreignKey:PurchaseID" json:"purchase,omitempty"`

	IsArchived bool      `gorm:"column:is_archived;default:false;index" json:"is_archived"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// AssetAssignment is one check-out period. CheckedInDate is nil while the
// asset is still out.
type AssetAssignment struct {
	ID             uint       `gorm:"column:id;primaryKey" json:"id"`
	AssetID        uint       `gorm:"column:asset_id;not null;index" json:"asset_id"`
	UserID         *uint      `gorm:"column:user_id;index" json:"user_id"`
	User           *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CheckedOutDate time.Time  `gorm:"column:checked_out_date;not null" json:"checked_out_date"`
	CheckedInDate  *time.Time `gorm:"column:checked_in_date" json:"checked_in_date"`
	Notes          string     `gorm:"column:notes;size:500" json:"notes"`
}

// AssetHistory is an append-only field change log.
type AssetHistory struct {
	ID        uint           `gorm:"column:id;primaryKey" json:"id"`
	AssetID   uint           `gorm:"column:asset_id;not null;index" json:"asset_id"`
	UserID    *uint          `gorm:"column:user_id" json:"user_id"`
	Field     string         `gorm:"column:field;size:100;not null" json:"field"`
	OldValue  datatypes.JSON `gorm:"column:old_value" json:"old_value"`
	NewValue  datatypes.JSON `gorm:"column:new_value" json:"new_value"`
	Timestamp time.Time      `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

// Peripheral is a smaller device, optionally attached to an Asset.
type Peripheral struct {
	ID             uint       `gorm:"column:id;primaryKey" json:"id"`
	Name           string     `gorm:"column:name;size:255;not null" json:"name"`
	Type           string     `gorm:"column:type;size:100" json:"type"`
	Brand          string     `gorm:"column:brand;size:255" json:"brand"`
	SerialNumber   *string    `gorm:"column:serial_number;size:255;uniqueIndex" json:"serial_number"`
	Status         string     `gorm:"column:status;size:50;default:In Stock" json:"status"`
	PurchaseDate   *time.Time `gorm:"column:purchase_date;type:date" json:"purchase_date"`
	Cost           *float64   `gorm:"column:cost;type:decimal(15,2)" json:"cost"`
	Currency       string     `gorm:"column:currency;size:3;default:EUR" json:"currency"`
	WarrantyLength *int       `gorm:"column:warranty_length" json:"warranty_length"`

	AssetID    *uint     `gorm:"column:asset_id;index" json:"asset_id"`
	Asset      *Asset    `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
	UserID     *uint     `gorm:"column:user_id;index" json:"user_id"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SupplierID *uint     `gorm:"column:supplier_id" json:"supplier_id"`
	PurchaseID *uint     `gorm:"column:purchase_id;index" json:"purchase_id"`
	Purchase   *Purchase `gorm:"foreignKey:PurchaseID" json:"purchase,omitempty"`

	IsArchived bool      `gorm:"column:is_archived;default:false;index" json:"is_archived"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

type PeripheralAssignment struct {
	ID             uint       `gorm:"column:id;primaryKey" json:"id"`
	PeripheralID   uint       `gorm:"column:peripheral_id;not null;index" json:"peripheral_id"`
	UserID         *uint      `gorm:"column:user_id;index" json:"user_id"`
	User           *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CheckedOutDate time.Time  `gorm:"column:checked_out_date;not null" json:"checked_out_date"`
	CheckedInDate  *time.Time `gorm:"column:checked_in_date" json:"checked_in_date"`
	Notes          string     `gorm:"column:notes;size:500" json:"notes"`
}

type PeripheralHistory struct {
	ID           uint           `gorm:"column:id;primaryKey" json:"id"`
	PeripheralID uint           `gorm:"column:peripheral_id;not null;index" json:"peripheral_id"`
	UserID       *uint          `gorm:"column:user_id" json:"user_id"`
	Field        string         `gorm:"column:field;size:100;not null" json:"field"`
	OldValue     datatypes.JSON `gorm:"column:old_value" json:"old_value"`
	NewValue     datatypes.JSON `gorm:"column:new_value" json:"new_value"`
	Timestamp    time.Time      `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

// License is a software license seat. A license with a SubscriptionID is
// paid through that subscription; one without is perpetual.
type License struct {
	ID             uint       `gorm:"column:id;primaryKey" json:"id"`
	Name           string     `gorm:"column:name;size:255;not null" json:"name"`
	LicenseKey     string     `gorm:"column:license_key;size:500" json:"license_key"`
	Cost           *float64   `gorm:"column:cost;type:decimal(15,2)" json:"cost"`
	Currency       string     `gorm:"column:currency;size:3;default:EUR" json:"currency"`
	PurchaseDate   *time.Time `gorm:"column:purchase_date;type:date" json:"purchase_date"`
	ExpiryDate     *time.Time `gorm:"column:expiry_date;type:date" json:"expiry_date"`
	UserID         *uint      `gorm:"column:user_id;index" json:"user_id"`
	User           *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	PurchaseID     *uint      `gorm:"column:purchase_id;index" json:"purchase_id"`
	SubscriptionID *uint      `gorm:"column:subscription_id;index" json:"subscription_id"`
	SoftwareID     *uint      `gorm:"column:software_id;index" json:"software_id"`
	IsArchived     bool       `gorm:"column:is_archived;default:false;index" json:"is_archived"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// IsPerpetual reports whether the license counts toward its purchase cost.
func (l *License) IsPerpetual() bool {
	return l.SubscriptionID == nil
}

func (Asset) TableName() string {
	return "assets"
}

func (AssetAssignment) TableName() string {
	return "asset_assignments"
}

func (AssetHistory) TableName() string {
	return "asset_history"
}

func (Peripheral) TableName() string {
	return "peripherals"
}

func (PeripheralAssignment) TableName() string {
	return "peripheral_assignments"
}

func (PeripheralHistory) TableName() string {
	return "peripheral_history"
}

func (License) TableName() string {
	return "licenses"
}
