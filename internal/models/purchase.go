package models

import (
	"time"
)

// CostAction is the kind of a PurchaseCostHistory entry.
type CostAction string

const (
	CostActionValidated   CostAction = "Validated"
	CostActionUnvalidated CostAction = "Un-validated"
)

// Purchase is a procurement event grouping assets, peripherals and
// licenses. While ValidatedCost is set it overrides the computed cost.
type Purchase struct {
	ID              uint           `gorm:"column:id;primaryKey" json:"id"`
	Description     string         `gorm:"column:description;size:500;not null" json:"description"`
	InvoiceNumber   string         `gorm:"column:invoice_number;size:100" json:"invoice_number"`
	PurchaseDate    time.Time      `gorm:"column:purchase_date;type:date;not null" json:"purchase_date"`
	SupplierID      *uint          `gorm:"column:supplier_id;index" json:"supplier_id"`
	Supplier        *Supplier      `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	PaymentMethodID *uint          `gorm:"column:payment_method_id" json:"payment_method_id"`
	PaymentMethod   *PaymentMethod `gorm:"foreignKey:PaymentMethodID" json:"payment_method,omitempty"`
	BudgetID        *uint          `gorm:"column:budget_id;index" json:"budget_id"`
	Budget          *Budget        `gorm:"foreignKey:BudgetID" json:"budget,omitempty"`

	ValidatedCost   *float64   `gorm:"column:validated_cost;type:decimal(15,2)" json:"validated_cost"`
	CostValidatedAt *time.Time `gorm:"column:cost_validated_at" json:"cost_validated_at"`
	CostValidatedBy *uint      `gorm:"column:cost_validated_by" json:"cost_validated_by"`

	Users       []User       `gorm:"many2many:purchase_users;" json:"users,omitempty"`
	Tags        []Tag        `gorm:"many2many:purchase_tags;" json:"tags,omitempty"`
	Assets      []Asset      `gorm:"foreignKey:PurchaseID" json:"assets,omitempty"`
	Peripherals []Peripheral `gorm:"foreignKey:PurchaseID" json:"peripherals,omitempty"`
	Licenses    []License    `gorm:"foreignKey:PurchaseID" json:"licenses,omitempty"`

	IsArchived bool      `gorm:"column:is_archived;default:false;index" json:"is_archived"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// IsCostValidated reports whether the purchase is in the Validated state.
func (p *Purchase) IsCostValidated() bool {
	return p != nil && p.ValidatedCost != nil
}

// PurchaseCostHistory is an append-only audit trail of validation actions.
type PurchaseCostHistory struct {
	ID         uint       `gorm:"column:id;primaryKey" json:"id"`
	PurchaseID uint       `gorm:"column:purchase_id;not null;index" json:"purchase_id"`
	Action     CostAction `gorm:"column:action;size:20;not null" json:"action"`
	Cost       float64    `gorm:"column:cost;type:decimal(15,2)" json:"cost"`
	UserID     *uint      `gorm:"column:user_id" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Timestamp  time.Time  `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

// Budget is a spending envelope consumed by purchases.
type Budget struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;size:255;not null" json:"name"`
	Amount      float64   `gorm:"column:amount;type:decimal(15,2);not null" json:"amount"`
	Currency    string    `gorm:"column:currency;size:3;not null;default:EUR" json:"currency"`
	Year        int       `gorm:"column:year" json:"year"`
	Description string    `gorm:"column:description;size:500" json:"description"`
	IsArchived  bool      `gorm:"column:is_archived;default:false" json:"is_archived"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Purchase) TableName() string {
	return "purchases"
}

func (PurchaseCostHistory) TableName() string {
	return "purchase_cost_history"
}

func (Budget) TableName() string {
	return "budgets"
}
