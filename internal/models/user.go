package models

import (
	"time"
)

// Role is a user's privilege level.
type Role string

const (
	RoleUser   Role = "user"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// rank orders roles so guards can compare them.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleEditor:
		return 2
	case RoleUser:
		return 1
	}
	return 0
}

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank()
}

// User is an employee tracked by the system. Users own assets, peripherals
// and licenses, receive training assignments and acknowledge policies.
type User struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	Name         string    `gorm:"column:name;size:255;not null" json:"name"`
	Email        string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	PasswordHash *string   `gorm:"column:password_hash;size:255" json:"-"`
	Role         Role      `gorm:"column:role;size:20;default:user;not null" json:"role"`
	IsArchived   bool      `gorm:"column:is_archived;default:false;index" json:"is_archived"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`

	Groups []Group `gorm:"many2many:group_users;" json:"groups,omitempty"`
}

// CanManage reports whether the user holds editor or admin rights.
func (u *User) CanManage() bool {
	return u != nil && u.Role.AtLeast(RoleEditor)
}

// IsAdmin reports whether the user is an admin.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Group is a named set of users, used for policy acknowledgement targeting
// and software ownership.
type Group struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"column:description;size:500" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`

	Users []User `gorm:"many2many:group_users;" json:"users,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (Group) TableName() string {
	return "user_groups"
}
