package models

import (
	"time"
)

// AuditAction represents the type of audit action
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionLogin  AuditAction = "login"
	AuditActionLogout AuditAction = "logout"
)

// AuditLog is one successful mutating API call.
type AuditLog struct {
	ID          uint        `gorm:"column:id;primaryKey" json:"id"`
	UserID      uint        `gorm:"column:user_id;index" json:"user_id"`
	User        *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	UserName    string      `gorm:"column:user_name;size:255" json:"user_name"`
	Role        Role        `gorm:"column:role;size:20" json:"role"`
	Action      AuditAction `gorm:"column:action;size:50;not null;index" json:"action"`
	EntityType  string      `gorm:"column:entity_type;size:50;index" json:"entity_type"`
	EntityID    uint        `gorm:"column:entity_id;index" json:"entity_id"`
	EntityName  string      `gorm:"column:entity_name;size:255" json:"entity_name"`
	Description string      `gorm:"column:description;size:500" json:"description"`
	IPAddress   string      `gorm:"column:ip_address;size:50" json:"ip_address"`
	UserAgent   string      `gorm:"column:user_agent;size:255" json:"user_agent"`
	CreatedAt   time.Time   `gorm:"column:created_at;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
